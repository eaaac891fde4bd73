package domain

// Log is an event log emitted during a transaction, ordered by LogIndex within
// the transaction. Topic0 is conventionally the event signature hash. Removed
// mirrors the node's reorg flag and is stored literally; nothing downstream
// acts on it.
type Log struct {
	ID               uint64  `db:"id"                json:"-"`
	TransactionHash  string  `db:"transaction_hash"  json:"transaction_hash"`
	LogIndex         uint64  `db:"log_index"         json:"log_index"`
	BlockNumber      uint64  `db:"block_number"      json:"block_number"`
	BlockHash        string  `db:"block_hash"        json:"block_hash"`
	TransactionIndex uint64  `db:"transaction_index" json:"transaction_index"`
	Address          string  `db:"address"           json:"address"`
	Data             string  `db:"data"              json:"data"`
	Topic0           *string `db:"topic0"            json:"topic0"`
	Topic1           *string `db:"topic1"            json:"topic1"`
	Topic2           *string `db:"topic2"            json:"topic2"`
	Topic3           *string `db:"topic3"            json:"topic3"`
	Removed          bool    `db:"removed"           json:"removed"`
}
