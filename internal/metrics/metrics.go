// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "birthday_bot"

var (
	BootTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "boot_time",
		Help:      "Bot startup time in unix milliseconds",
	})

	Updates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_total",
		Help:      "Telegram updates handled, by kind",
	}, []string{"kind"})

	Throttled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "throttled_total",
		Help:      "Telegram updates dropped by the rate limiter, by kind",
	}, []string{"kind"})

	Reminders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_total",
		Help:      "Reminder digests by delivery result",
	}, []string{"result"})

	LastDispatch = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_dispatch_timestamp_seconds",
		Help:      "Time of the last reminder dispatch",
	})
)

func init() {
	prometheus.MustRegister(BootTime, Updates, Throttled, Reminders, LastDispatch)
}

// MarkBoot records the startup time.
func MarkBoot(t time.Time) {
	BootTime.Set(float64(t.UnixMilli()))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
