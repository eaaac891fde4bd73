package domain

// NetworkStats is the last-observed network snapshot for one chain. Unlike all
// other entities it is mutated in place, upserted by ChainID on every batch.
type NetworkStats struct {
	ChainID            uint64 `db:"chain_id"             json:"chain_id"`
	CurrentBlockNumber uint64 `db:"current_block_number" json:"current_block_number"`
	CurrentGasPrice    string `db:"current_gas_price"    json:"current_gas_price"`
	IsSyncing          bool   `db:"is_syncing"           json:"is_syncing"`
	LastUpdated        int64  `db:"last_updated"         json:"last_updated"`
}
