package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит метрики платежного контура и споров
type Metrics struct {
	// Сделки
	OrdersCreatedTotal prometheus.CounterVec
	OrdersAmountTotal  prometheus.CounterVec
	OrdersExpiredTotal prometheus.Counter

	// Переходы эскроу-счетов
	EscrowTransitionsTotal prometheus.CounterVec
	EscrowAmountReleased   prometheus.Counter
	EscrowAmountRefunded   prometheus.Counter
	EscrowHeldCount        prometheus.Gauge

	// Споры
	DisputesOpenedTotal   prometheus.Counter
	DisputesResolvedTotal prometheus.CounterVec
	DisputeResolutionTime prometheus.Histogram

	// Ошибки
	ConflictErrorsTotal prometheus.CounterVec
}

// New создает и регистрирует метрики
func New() *Metrics {
	return &Metrics{
		OrdersCreatedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Общее количество созданных сделок",
			},
			[]string{"order_type"},
		),

		OrdersAmountTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_amount_total",
				Help: "Общая сумма созданных сделок",
			},
			[]string{"order_type"},
		),

		OrdersExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orders_expired_total",
				Help: "Количество сделок, отмененных по истечении срока оплаты",
			},
		),

		EscrowTransitionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_transitions_total",
				Help: "Количество переходов эскроу-счетов по статусам",
			},
			[]string{"to_status"},
		),

		EscrowAmountReleased: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "escrow_amount_released_total",
				Help: "Общая сумма, выплаченная исполнителям",
			},
		),

		EscrowAmountRefunded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "escrow_amount_refunded_total",
				Help: "Общая сумма, возвращенная заказчикам",
			},
		),

		EscrowHeldCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "escrow_held_count",
				Help: "Текущее количество счетов со статусом held",
			},
		),

		DisputesOpenedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "disputes_opened_total",
				Help: "Общее количество открытых споров",
			},
		),

		DisputesResolvedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disputes_resolved_total",
				Help: "Количество разрешенных споров по вердиктам",
			},
			[]string{"resolution"},
		),

		DisputeResolutionTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispute_resolution_time_seconds",
				Help:    "Время от открытия спора до вердикта в секундах",
				Buckets: prometheus.ExponentialBuckets(60, 4, 10), // 1m, 4m, 16m...
			},
		),

		ConflictErrorsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conflict_errors_total",
				Help: "Количество отказанных конкурентных переходов",
			},
			[]string{"entity"},
		),
	}
}

// RecordOrderCreated записывает созданную сделку
func (m *Metrics) RecordOrderCreated(orderType string, amount float64) {
	m.OrdersCreatedTotal.WithLabelValues(orderType).Inc()
	m.OrdersAmountTotal.WithLabelValues(orderType).Add(amount)
}

// RecordOrdersExpired записывает отмененные по таймауту сделки
func (m *Metrics) RecordOrdersExpired(count int) {
	m.OrdersExpiredTotal.Add(float64(count))
}

// RecordEscrowOpened записывает открытие эскроу-счета
func (m *Metrics) RecordEscrowOpened() {
	m.EscrowTransitionsTotal.WithLabelValues("held").Inc()
	m.EscrowHeldCount.Inc()
}

// RecordEscrowReleased записывает выплату исполнителю
func (m *Metrics) RecordEscrowReleased(amount float64) {
	m.EscrowTransitionsTotal.WithLabelValues("released").Inc()
	m.EscrowAmountReleased.Add(amount)
	m.EscrowHeldCount.Dec()
}

// RecordEscrowRefunded записывает возврат заказчику
func (m *Metrics) RecordEscrowRefunded(amount float64, partial bool) {
	status := "refunded"
	if partial {
		status = "partial_refund"
	}
	m.EscrowTransitionsTotal.WithLabelValues(status).Inc()
	m.EscrowAmountRefunded.Add(amount)
	m.EscrowHeldCount.Dec()
}

// RecordEscrowDisputed записывает заморозку счета из-за спора
func (m *Metrics) RecordEscrowDisputed() {
	m.EscrowTransitionsTotal.WithLabelValues("disputed").Inc()
}

// RecordDisputeOpened записывает открытый спор
func (m *Metrics) RecordDisputeOpened() {
	m.DisputesOpenedTotal.Inc()
}

// RecordDisputeResolved записывает вердикт и время разрешения
func (m *Metrics) RecordDisputeResolved(resolution string, durationSeconds float64) {
	m.DisputesResolvedTotal.WithLabelValues(resolution).Inc()
	m.DisputeResolutionTime.Observe(durationSeconds)
}

// RecordConflict записывает отказанный конкурентный переход
func (m *Metrics) RecordConflict(entity string) {
	m.ConflictErrorsTotal.WithLabelValues(entity).Inc()
}
