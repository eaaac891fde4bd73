package domain

// Block is a fully normalized chain block. Big numeric fields (difficulty,
// base fee) are kept as decimal strings to avoid precision loss. A block is
// immutable once written; historical rows are never updated.
type Block struct {
	Number           uint64  `db:"number"            json:"number"`
	Hash             string  `db:"hash"              json:"hash"`
	ParentHash       string  `db:"parent_hash"       json:"parent_hash"`
	Timestamp        uint64  `db:"timestamp"         json:"timestamp"`
	Miner            string  `db:"miner"             json:"miner"`
	Difficulty       string  `db:"difficulty"        json:"difficulty"`
	TotalDifficulty  string  `db:"total_difficulty"  json:"total_difficulty"`
	Size             uint64  `db:"size"              json:"size"`
	Nonce            string  `db:"nonce"             json:"nonce"`
	GasLimit         uint64  `db:"gas_limit"         json:"gas_limit"`
	GasUsed          uint64  `db:"gas_used"          json:"gas_used"`
	BaseFeePerGas    *string `db:"base_fee_per_gas"  json:"base_fee_per_gas"`
	StateRoot        string  `db:"state_root"        json:"state_root"`
	TransactionsRoot string  `db:"transactions_root" json:"transactions_root"`
	ReceiptsRoot     string  `db:"receipts_root"     json:"receipts_root"`
	ExtraData        string  `db:"extra_data"        json:"extra_data"`
	LogsBloom        string  `db:"logs_bloom"        json:"logs_bloom"`
	Sha3Uncles       string  `db:"sha3_uncles"       json:"sha3_uncles"`
	MixHash          string  `db:"mix_hash"          json:"mix_hash"`
	ChainID          uint64  `db:"chain_id"          json:"chain_id"`
}
