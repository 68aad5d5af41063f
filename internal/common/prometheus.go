package common

import "github.com/prometheus/client_golang/prometheus"

const (
	HTTPRequestTotal             = "http_requests_total"
	HTTPRequestDurationSeconds   = "http_request_duration_seconds"
	BlockchainTransactionFailure = "blockchain_transaction_failure"
	BlockchainTransactionCleared = "blockchain_transaction_cleared"
	BlockchainReceiptWaitSeconds = "blockchain_receipt_wait_seconds"
	LedgerStaleTransactions      = "ledger_stale_transactions"
)

var (
	PromGauges = map[string]*prometheus.GaugeVec{
		LedgerStaleTransactions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: LedgerStaleTransactions,
			Help: "Number of transactions stuck in a non terminal status",
		}, []string{"status"}),
	}

	PromCounters = map[string]*prometheus.CounterVec{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: HTTPRequestTotal,
			Help: "Count of all HTTP requests",
		}, []string{"method", "status_code"}),
		BlockchainTransactionFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: BlockchainTransactionFailure,
			Help: "Count of all blockchain transaction failure",
		}, []string{"method"}),
		BlockchainTransactionCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: BlockchainTransactionCleared,
			Help: "Count of all blockchain transaction confirmed on-chain",
		}, []string{"method"}),
	}

	PromHistograms = map[string]*prometheus.HistogramVec{
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: HTTPRequestDurationSeconds,
			Help: "Duration of all HTTP requests",
		}, []string{"method", "status_code"}),
		BlockchainReceiptWaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    BlockchainReceiptWaitSeconds,
			Help:    "Duration between submission and receipt of blockchain transactions",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"method"}),
	}
)
