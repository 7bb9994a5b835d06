// Package metrics counts what each pass did. There is no HTTP listener:
// after a pass the registry can be written to a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"econbot/internal/notify"
	"econbot/internal/scheduler"
	"econbot/internal/source"
	"econbot/pkg/logx"
)

type Metrics struct {
	reg *prometheus.Registry
	log logx.Logger

	passesTotal        *prometheus.CounterVec
	passDuration       prometheus.Histogram
	lastSuccess        prometheus.Gauge
	fetchesTotal       *prometheus.CounterVec
	recordsTotal       *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	deliveriesTotal    *prometheus.CounterVec
	expiredTotal       prometheus.Counter
	pendingResults     prometheus.Gauge
}

// New builds the collectors on a private registry.
func New(log logx.Logger) *Metrics {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Metrics{reg: prometheus.NewRegistry(), log: log.With(logx.String("comp", "metrics"))}

	m.passesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "econbot_passes_total",
		Help: "Passes run, by result.",
	}, []string{"result"})
	m.passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "econbot_pass_duration_seconds",
		Help:    "Wall time of one pass.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "econbot_last_success_timestamp_seconds",
		Help: "Unix time of the last pass that saved its state.",
	})
	m.fetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "econbot_source_fetches_total",
		Help: "Source attempts, by source and outcome (used, empty, error).",
	}, []string{"source", "outcome"})
	m.recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "econbot_records_total",
		Help: "Raw records seen by normalization, by outcome.",
	}, []string{"outcome"})
	m.notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "econbot_notifications_total",
		Help: "Alerts emitted, by phase.",
	}, []string{"phase"})
	m.deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "econbot_deliveries_total",
		Help: "Per-recipient send attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})
	m.expiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "econbot_pending_expired_total",
		Help: "Pending results dropped without a published value.",
	})
	m.pendingResults = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "econbot_pending_results",
		Help: "Pending results held after the last pass.",
	})

	m.register(m.passesTotal, "econbot_passes_total")
	m.register(m.passDuration, "econbot_pass_duration_seconds")
	m.register(m.lastSuccess, "econbot_last_success_timestamp_seconds")
	m.register(m.fetchesTotal, "econbot_source_fetches_total")
	m.register(m.recordsTotal, "econbot_records_total")
	m.register(m.notificationsTotal, "econbot_notifications_total")
	m.register(m.deliveriesTotal, "econbot_deliveries_total")
	m.register(m.expiredTotal, "econbot_pending_expired_total")
	m.register(m.pendingResults, "econbot_pending_results")
	return m
}

func (m *Metrics) register(c prometheus.Collector, name string) {
	if err := m.reg.Register(c); err != nil {
		m.log.Warn("failed to register collector", logx.String("name", name), logx.Err(err))
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObservePass records the outcome of one pass. err is the save error, if any.
func (m *Metrics) ObservePass(took time.Duration, finished time.Time, err error) {
	m.passDuration.Observe(took.Seconds())
	if err != nil {
		m.passesTotal.WithLabelValues("error").Inc()
		return
	}
	m.passesTotal.WithLabelValues("ok").Inc()
	m.lastSuccess.Set(float64(finished.Unix()))
}

func (m *Metrics) ObserveChain(res source.Result) {
	for _, at := range res.Attempts {
		m.fetchesTotal.WithLabelValues(at.Source, string(at.Outcome)).Inc()
		m.recordsTotal.WithLabelValues("accepted").Add(float64(at.Stats.Accepted))
		m.recordsTotal.WithLabelValues("filtered").Add(float64(at.Stats.Filtered))
		m.recordsTotal.WithLabelValues("malformed").Add(float64(at.Stats.Malformed))
		m.recordsTotal.WithLabelValues("duplicate").Add(float64(at.Stats.Duplicates))
	}
}

func (m *Metrics) ObserveReport(rep scheduler.Report, pending int) {
	m.notificationsTotal.WithLabelValues(string(scheduler.KindPre)).Add(float64(rep.PreSent))
	m.notificationsTotal.WithLabelValues(string(scheduler.KindPost)).Add(float64(rep.PostSent))
	m.expiredTotal.Add(float64(rep.Expired))
	m.pendingResults.Set(float64(pending))
}

// ObserveDelivery is meant for notify.Dispatcher.OnResult.
func (m *Metrics) ObserveDelivery(r notify.Result) {
	outcome := "ok"
	if r.Err != nil {
		outcome = "error"
	}
	m.deliveriesTotal.WithLabelValues(string(r.Recipient.Channel), outcome).Inc()
}

// WriteTextfile writes the registry in the text exposition format,
// atomically, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
