package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	DepositCreditedTotal   *prometheus.CounterVec
	DepositSuspiciousTotal *prometheus.CounterVec
	WithdrawalTotal        *prometheus.CounterVec
	ScanCycleDuration      *prometheus.HistogramVec
	AuditEventsTotal       *prometheus.CounterVec
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		DepositCreditedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_deposit_credited_total",
			Help: "Total number of deposits credited to the ledger",
		}, []string{"symbol"}),
		DepositSuspiciousTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_deposit_suspicious_total",
			Help: "Total number of deposits frozen on sender mismatch",
		}, []string{"symbol"}),
		WithdrawalTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_withdrawal_total",
			Help: "Total number of withdrawal requests by final outcome",
		}, []string{"symbol", "outcome"}),
		ScanCycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custody_scan_cycle_duration_seconds",
			Help:    "Duration of deposit scan cycles",
			Buckets: prometheus.DefBuckets,
		}, []string{"symbol"}),
		AuditEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_audit_events_total",
			Help: "Total number of audit events emitted",
		}, []string{"kind"}),
	}
}
