package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Domain Prometheus metrics. Defined in a standalone package to avoid import
// cycles between the handler packages and the HTTP middleware package.

var (
	EmailsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Emails sent by kind and result",
	}, []string{"kind", "result"}) // kind: download|download_admin|contact_admin|contact_confirm|test

	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataset_exports_total",
		Help: "Dataset exports rendered by format",
	}, []string{"format"})

	MirrorSyncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_syncs_total",
		Help: "Mirror sync runs by result",
	}, []string{"result"}) // result: ok|failed

	MirrorSyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_sync_duration_seconds",
		Help:    "Duration of successful mirror sync runs",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// RegisterDomain registers the domain metrics on the given registry
// (or the default if nil), ignoring duplicate registrations.
func RegisterDomain(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		EmailsSentTotal, ExportsTotal, MirrorSyncsTotal, MirrorSyncDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// RecordEmailSent counts one email send attempt.
func RecordEmailSent(kind, result string) {
	EmailsSentTotal.WithLabelValues(kind, result).Inc()
}

// RecordExport counts one rendered export.
func RecordExport(format string) {
	ExportsTotal.WithLabelValues(format).Inc()
}

// RecordMirrorSync records the outcome of a mirror run.
func RecordMirrorSync(result string, duration time.Duration) {
	MirrorSyncsTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		MirrorSyncDuration.Observe(duration.Seconds())
	}
}
