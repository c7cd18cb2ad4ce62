// Package metrics счётчики исходов команд движка для Prometheus
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
)

const outcomeOK = "ok"

// Metrics набор счётчиков. Нулевой указатель допустим, вызовы тогда ничего не делают.
type Metrics struct {
	registry  *prometheus.Registry
	commands  *prometheus.CounterVec
	txRetries prometheus.Counter
	events    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driving_booking",
			Name:      "commands_total",
			Help:      "Engine commands by operation and outcome kind.",
		}, []string{"op", "outcome"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "driving_booking",
			Name:      "tx_retries_total",
			Help:      "Transactions retried after a serialization failure.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "driving_booking",
			Name:      "events_published_total",
			Help:      "Notification events by type and publish result.",
		}, []string{"type", "result"}),
	}

	m.registry.MustRegister(
		m.commands,
		m.txRetries,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Command учитывает исход команды: ok или вид ошибки
func (m *Metrics) Command(op string, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	m.commands.WithLabelValues(op, outcome).Inc()
}

// TxRetry учитывает повтор транзакции
func (m *Metrics) TxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// Event учитывает публикацию события
func (m *Metrics) Event(eventType string, err error) {
	if m == nil {
		return
	}
	result := outcomeOK
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(eventType, result).Inc()
}

// Registry реестр для тестов и экспорта
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler HTTP обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
