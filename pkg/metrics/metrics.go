package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsFilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_filled_total",
		Help: "The total number of intents filled on the destination chain",
	}, []string{"chain_id"})

	IntentsReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_released_total",
		Help: "The total number of intents released on the source chain after proof verification",
	}, []string{"chain_id"})

	IntentsRefunded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_refunded_total",
		Help: "The total number of intents refunded after deadline expiry",
	}, []string{"chain_id"})

	IntentProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayer_intent_processing_seconds",
		Help:    "Time taken from pickup to fill submission",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"chain_id"})

	PendingIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_pending_intents",
		Help: "The number of pending intents waiting to be processed",
	})

	IntentsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_intents_skipped_total",
		Help: "Intents the relayer declined to fill, by reason",
	}, []string{"chain_id", "reason"})

	FillErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_fill_errors_total",
		Help: "Total number of fill errors by type",
	}, []string{"chain_id", "error_type"})

	PermanentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_permanent_errors_total",
		Help: "Total number of permanent errors that won't be retried",
	}, []string{"chain_id", "error_type"})

	MaxRetriesReached = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_max_retries_reached_total",
		Help: "Number of intents that reached maximum retry attempts",
	}, []string{"chain_id", "error_type"})

	RetryQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayer_retry_queue_size",
		Help: "Current size of the retry queue",
	})

	RetriesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_retries_executed_total",
		Help: "Number of fill retries that were executed",
	}, []string{"chain_id", "error_type"})

	DroppedRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_retries_dropped_total",
		Help: "Number of retries that were dropped due to queue capacity",
	}, []string{"chain_id"})

	NotifyRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_notify_retries_total",
		Help: "Number of proof redeliveries attempted via retryNotify",
	}, []string{"chain_id", "adapter_id"})

	RescansExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_rescans_total",
		Help: "Number of pending-intent rescans executed per chain",
	}, []string{"chain_id"})

	CircuitBreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayer_circuit_breaker_open",
		Help: "Whether the per-chain circuit breaker is currently open (1) or closed (0)",
	}, []string{"chain_id"})
)
