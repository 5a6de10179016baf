package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "forecourt_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	readingRecordTotal   *prometheus.CounterVec
	readingRecordLatency *prometheus.HistogramVec

	settlementCreateTotal   *prometheus.CounterVec
	settlementCreateLatency *prometheus.HistogramVec
	settlementStatusTotal   *prometheus.CounterVec

	settlementExportTotal   *prometheus.CounterVec
	settlementExportLatency *prometheus.HistogramVec

	handoverCreateTotal    *prometheus.CounterVec
	handoverConfirmTotal   *prometheus.CounterVec
	handoverConfirmLatency *prometheus.HistogramVec

	bankDepositTotal *prometheus.CounterVec

	shiftCloseTotal *prometheus.CounterVec

	auditFailures prometheus.Counter

	consumerLag *prometheus.GaugeVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		readingRecordTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_record_total",
				Help: "Total meter reading submissions by result",
			},
			[]string{"result"},
		)
		readingRecordLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reading_record_latency_seconds",
				Help:    "Meter reading submission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		settlementCreateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_create_total",
				Help: "Total settlement create operations by result",
			},
			[]string{"result"},
		)
		settlementCreateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_create_latency_seconds",
				Help:    "Settlement create latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		settlementStatusTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_status_total",
				Help: "Total created settlements by variance status",
			},
			[]string{"status"},
		)

		settlementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_export_total",
				Help: "Total settlement export operations by format and result",
			},
			[]string{"format", "result"},
		)
		settlementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_export_latency_seconds",
				Help:    "Settlement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		handoverCreateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "handover_create_total",
				Help: "Total handover create operations by type and result",
			},
			[]string{"type", "result"},
		)
		handoverConfirmTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "handover_confirm_total",
				Help: "Total handover confirmations by outcome",
			},
			[]string{"outcome"},
		)
		handoverConfirmLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "handover_confirm_latency_seconds",
				Help:    "Handover confirmation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		bankDepositTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bank_deposit_total",
				Help: "Total bank deposit recordings by result",
			},
			[]string{"result"},
		)

		shiftCloseTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "shift_close_total",
				Help: "Total shift close operations by result",
			},
			[]string{"result"},
		)

		auditFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_failures_total",
				Help: "Total audit writes that failed and were dropped",
			},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		prometheus.MustRegister(
			readingRecordTotal,
			readingRecordLatency,
			settlementCreateTotal,
			settlementCreateLatency,
			settlementStatusTotal,
			settlementExportTotal,
			settlementExportLatency,
			handoverCreateTotal,
			handoverConfirmTotal,
			handoverConfirmLatency,
			bankDepositTotal,
			shiftCloseTotal,
			auditFailures,
			consumerLag,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveReadingRecord records reading submission duration and result.
func ObserveReadingRecord(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if readingRecordTotal != nil {
		readingRecordTotal.WithLabelValues(result).Inc()
	}
	if readingRecordLatency != nil {
		readingRecordLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveSettlementCreate records settlement create latency and result.
func ObserveSettlementCreate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if settlementCreateTotal != nil {
		settlementCreateTotal.WithLabelValues(result).Inc()
	}
	if settlementCreateLatency != nil {
		settlementCreateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncSettlementStatus increments the per-status settlement counter.
func IncSettlementStatus(status string) {
	if status == "" {
		status = "unknown"
	}
	if settlementStatusTotal != nil {
		settlementStatusTotal.WithLabelValues(status).Inc()
	}
}

// ObserveSettlementExport records export latency and result.
func ObserveSettlementExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if settlementExportTotal != nil {
		settlementExportTotal.WithLabelValues(format, result).Inc()
	}
	if settlementExportLatency != nil {
		settlementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncHandoverCreate increments handover create counter.
func IncHandoverCreate(handoverType, result string) {
	if handoverType == "" {
		handoverType = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if handoverCreateTotal != nil {
		handoverCreateTotal.WithLabelValues(handoverType, result).Inc()
	}
}

// ObserveHandoverConfirm records confirmation latency and outcome.
func ObserveHandoverConfirm(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if handoverConfirmTotal != nil {
		handoverConfirmTotal.WithLabelValues(outcome).Inc()
	}
	if handoverConfirmLatency != nil {
		handoverConfirmLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// IncBankDeposit increments bank deposit counter.
func IncBankDeposit(result string) {
	if result == "" {
		result = resultSuccess
	}
	if bankDepositTotal != nil {
		bankDepositTotal.WithLabelValues(result).Inc()
	}
}

// IncShiftClose increments shift close counter.
func IncShiftClose(result string) {
	if result == "" {
		result = resultSuccess
	}
	if shiftCloseTotal != nil {
		shiftCloseTotal.WithLabelValues(result).Inc()
	}
}

// IncAuditFailure increments the dropped audit write counter.
func IncAuditFailure() {
	if auditFailures != nil {
		auditFailures.Inc()
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
