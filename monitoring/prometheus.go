package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/mezonai/powledger/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TxRejectedReason string

var (
	TxInvalidSignature TxRejectedReason = "invalid_signature"
	TxMalformed        TxRejectedReason = "malformed"
	TxMempoolFull      TxRejectedReason = "mempool_full"
	TxReservedSender   TxRejectedReason = "reserved_sender"
	TxRateLimited      TxRejectedReason = "rate_limited"
	TxDroppedAtMining  TxRejectedReason = "dropped_at_mining"
	TxRejectedUnknown  TxRejectedReason = "other"
)

type ledgerPromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	mempoolSize       prometheus.Gauge
	blockTime         prometheus.Histogram
	miningDuration    prometheus.Histogram
	hashAttempts      prometheus.Counter
	rejectedTxCount   *prometheus.CounterVec
	blockHeight       prometheus.Gauge
	txInBlock         prometheus.Histogram
	ingressTxCount    prometheus.Counter
	feesCollected     prometheus.Counter
	miningCancelled   prometheus.Counter
	chainValid        prometheus.Gauge
	panicCount        prometheus.Counter
}

func newLedgerPromMetrics() *ledgerPromMetrics {
	return &ledgerPromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "powledger_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		mempoolSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "powledger_mempool_size",
				Help: "The total pending transactions waiting to be mined",
			},
		),
		blockTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "powledger_block_time",
				Help: "Duration in second between two consecutive mined blocks",
			},
		),
		miningDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "powledger_mining_duration_seconds",
				Help:    "Wall time spent in the nonce search of one block",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		hashAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powledger_hash_attempts_total",
				Help: "The total number of nonces tried while mining",
			},
		),
		rejectedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powledger_rejected_tx_count",
				Help: "The total number of rejected transactions",
			},
			[]string{"reason"},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "powledger_block_height",
				Help: "The current block height",
			},
		),
		txInBlock: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "powledger_tx_in_block",
				Help: "Number of tx in block, reward included",
			},
		),
		ingressTxCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powledger_ingress_tx_count",
				Help: "The total number of submitted transactions",
			},
		),
		feesCollected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powledger_fees_collected_total",
				Help: "Sum of fees paid out in mining rewards",
			},
		),
		miningCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powledger_mining_cancelled_total",
				Help: "The total number of mining rounds aborted before a nonce was found",
			},
		),
		chainValid: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "powledger_chain_valid",
				Help: "1 when the last integrity check passed, 0 otherwise",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "powledger_panic_count",
				Help: "The total number of recovered goroutine panics",
			},
		),
	}
}

var (
	ledgerMetrics *ledgerPromMetrics
	metricsOnce   sync.Once
)

// metrics registers the collectors on first use so packages can record
// without an explicit init call.
func metrics() *ledgerPromMetrics {
	metricsOnce.Do(func() {
		ledgerMetrics = newLedgerPromMetrics()
	})
	return ledgerMetrics
}

// InitMetrics registers collectors and stamps the node start time
func InitMetrics() {
	metrics().nodeUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetMempoolSize(size int) {
	metrics().mempoolSize.Set(float64(size))
}

func RecordBlockTime(duration time.Duration) {
	metrics().blockTime.Observe(duration.Seconds())
}

func RecordMining(duration time.Duration, attempts uint64) {
	m := metrics()
	m.miningDuration.Observe(duration.Seconds())
	m.hashAttempts.Add(float64(attempts))
}

func IncreaseMiningCancelled() {
	metrics().miningCancelled.Inc()
}

func RecordRejectedTx(reason TxRejectedReason) {
	metrics().rejectedTxCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func SetBlockHeight(blockHeight uint64) {
	metrics().blockHeight.Set(float64(blockHeight))
}

func RecordTxInBlock(txCount int) {
	metrics().txInBlock.Observe(float64(txCount))
}

func IncreaseIngressTxCount() {
	metrics().ingressTxCount.Inc()
}

func AddFeesCollected(fees float64) {
	metrics().feesCollected.Add(fees)
}

func SetChainValid(valid bool) {
	v := 0.0
	if valid {
		v = 1
	}
	metrics().chainValid.Set(v)
}

func IncreasePanicCount() {
	metrics().panicCount.Inc()
}
