package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksIndexed tracks blocks committed per chain.
	BlocksIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscan_blocks_indexed_total",
			Help: "Total number of blocks committed to storage",
		},
		[]string{"chain"},
	)

	// TransactionsIndexed tracks transactions written per chain.
	TransactionsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscan_transactions_indexed_total",
			Help: "Total number of transactions written",
		},
		[]string{"chain"},
	)

	// LogsIndexed tracks event logs written per chain.
	LogsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscan_logs_indexed_total",
			Help: "Total number of event logs written",
		},
		[]string{"chain"},
	)

	// ReceiptFetchErrors tracks per-transaction receipt fetch failures.
	ReceiptFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscan_receipt_fetch_errors_total",
			Help: "Total number of failed receipt fetches",
		},
		[]string{"chain"},
	)

	// BlockIngestErrors tracks blocks rolled back during batch ingestion.
	BlockIngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscan_block_ingest_errors_total",
			Help: "Total number of blocks that failed ingestion",
		},
		[]string{"chain"},
	)

	// RPCCalls tracks JSON-RPC calls by method.
	RPCCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscan_rpc_calls_total",
			Help: "Total number of JSON-RPC calls",
		},
		[]string{"chain", "method"},
	)

	// RPCErrors tracks failed JSON-RPC calls by method.
	RPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openscan_rpc_errors_total",
			Help: "Total number of failed JSON-RPC calls",
		},
		[]string{"chain", "method"},
	)

	// RPCLatency tracks JSON-RPC call latency.
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openscan_rpc_latency_seconds",
			Help:    "JSON-RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	// ChainHead tracks the latest block number reported by the node.
	ChainHead = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openscan_chain_head_block",
			Help: "Latest block number known to the RPC source",
		},
		[]string{"chain"},
	)

	// IndexedBlock tracks the local watermark.
	IndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openscan_indexed_block",
			Help: "Highest block number committed to local storage",
		},
		[]string{"chain"},
	)

	// BlocksBehind tracks the gap between chain head and watermark.
	BlocksBehind = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openscan_blocks_behind",
			Help: "Number of blocks pending ingestion",
		},
		[]string{"chain"},
	)

	// DBConnectionPoolUsage tracks database pool utilization percentage.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openscan_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
