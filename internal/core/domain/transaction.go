package domain

// Transaction is a normalized chain transaction. Exactly one gas fee family is
// populated per transaction type: legacy carries GasPrice, fee-market (EIP-1559)
// carries MaxFeePerGas/MaxPriorityFeePerGas.
type Transaction struct {
	Hash                 string  `db:"hash"                     json:"hash"`
	BlockNumber          uint64  `db:"block_number"             json:"block_number"`
	BlockHash            string  `db:"block_hash"               json:"block_hash"`
	TransactionIndex     uint64  `db:"transaction_index"        json:"transaction_index"`
	FromAddress          string  `db:"from_address"             json:"from_address"`
	ToAddress            *string `db:"to_address"               json:"to_address"`
	Value                string  `db:"value"                    json:"value"`
	InputData            string  `db:"input_data"               json:"input_data"`
	Nonce                uint64  `db:"nonce"                    json:"nonce"`
	Gas                  uint64  `db:"gas"                      json:"gas"`
	GasPrice             *string `db:"gas_price"                json:"gas_price"`
	MaxFeePerGas         *string `db:"max_fee_per_gas"          json:"max_fee_per_gas"`
	MaxPriorityFeePerGas *string `db:"max_priority_fee_per_gas" json:"max_priority_fee_per_gas"`
	Type                 uint64  `db:"type"                     json:"type"`
	ChainID              uint64  `db:"chain_id"                 json:"chain_id"`
	V                    string  `db:"v"                        json:"v"`
	R                    string  `db:"r"                        json:"r"`
	S                    string  `db:"s"                        json:"s"`
}
