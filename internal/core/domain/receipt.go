package domain

// Receipt execution status values.
const (
	ReceiptStatusReverted = 0
	ReceiptStatusSuccess  = 1
)

// Receipt is the execution outcome of one transaction, keyed 1:1 by the
// transaction hash. ContractAddress is set only on contract-creation
// transactions.
type Receipt struct {
	TransactionHash   string  `db:"transaction_hash"    json:"transaction_hash"`
	BlockNumber       uint64  `db:"block_number"        json:"block_number"`
	BlockHash         string  `db:"block_hash"          json:"block_hash"`
	TransactionIndex  uint64  `db:"transaction_index"   json:"transaction_index"`
	FromAddress       string  `db:"from_address"        json:"from_address"`
	ToAddress         *string `db:"to_address"          json:"to_address"`
	ContractAddress   *string `db:"contract_address"    json:"contract_address"`
	CumulativeGasUsed uint64  `db:"cumulative_gas_used" json:"cumulative_gas_used"`
	GasUsed           uint64  `db:"gas_used"            json:"gas_used"`
	EffectiveGasPrice string  `db:"effective_gas_price" json:"effective_gas_price"`
	Status            uint64  `db:"status"              json:"status"`
	Type              uint64  `db:"type"                json:"type"`
	LogsBloom         string  `db:"logs_bloom"          json:"logs_bloom"`
}
