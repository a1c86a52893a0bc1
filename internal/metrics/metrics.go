package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del pipeline de envío, del scheduler y de la capa HTTP. Viven en un
// paquete propio para que dispatch y scheduler no dependan de http.

var (
	EmailsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hellomail_emails_dispatched_total",
		Help: "Emails procesados por el dispatcher, por estado final",
	}, []string{"status"}) // sent|partially_sent|failed|skipped

	RecipientSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hellomail_recipient_sends_total",
		Help: "Envíos individuales a destinatarios, por resultado",
	}, []string{"result"}) // sent|failed

	DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hellomail_dispatch_duration_seconds",
		Help:    "Duración de un dispatch completo (todos los destinatarios)",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	SchedulerTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hellomail_scheduler_ticks_total",
		Help: "Ticks ejecutados por el scheduler",
	})

	SchedulerDue = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hellomail_scheduler_due_total",
		Help: "Emails vencidos encontrados por el scheduler",
	})
)

// HTTP
var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo",
	})
)

// Register registra las métricas en el registry dado (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		EmailsDispatched,
		RecipientSends,
		DispatchDuration,
		SchedulerTicks,
		SchedulerDue,
		HTTPRequests,
		HTTPRequestDuration,
		HTTPInflight,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
