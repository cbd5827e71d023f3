package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Propagation-related Prometheus metrics. Defined in a standalone package to
// avoid import cycles between the pipeline and HTTP packages.

var (
	MutationsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propagation_mutations_total",
		Help: "Mutaciones de entidad procesadas por el pipeline",
	}, []string{"entity_type", "event"})

	MutationsShortCircuited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propagation_mutations_short_circuited_total",
		Help: "Mutaciones sin cambios relevantes para ningún grant",
	})

	NotificationsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propagation_notifications_enqueued_total",
		Help: "Payloads appendeados al mailbox durable",
	})

	QueuePublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propagation_queue_publish_failures_total",
		Help: "Fallas best-effort publicando punteros al delivery queue",
	})

	MappingsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "propagation_identity_mappings_created_total",
		Help: "Identity mappings creados (primer touch por clave)",
	})

	CascadeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propagation_cascade_failures_total",
		Help: "Fallas parciales del cascade cleanup, por colección",
	}, []string{"collection"})

	MailboxBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "propagation_mailbox_backlog",
		Help: "Mailboxes (client, user) con payloads sin entregar, según el último barrido",
	})
)

// Register registers the propagation metrics on the given registry (or
// default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		MutationsProcessed,
		MutationsShortCircuited,
		NotificationsEnqueued,
		QueuePublishFailures,
		MappingsCreated,
		CascadeFailures,
		MailboxBacklog,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
