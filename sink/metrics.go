package sink

import (
	"errors"

	"github.com/indigo-web/httpdec/decoder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by all the decoders of a process. Use
// Wrap to count the events of a particular decoder.
type Metrics struct {
	messages  *prometheus.CounterVec
	flushes   prometheus.Counter
	bodyBytes prometheus.Counter
	upgrades  prometheus.Counter
	errors    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of completely decoded messages",
			},
			[]string{"kind"},
		),
		flushes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "header_flushes_total",
				Help:      "Number of header batches flushed before the header section was complete",
			},
		),
		bodyBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "body_bytes_total",
				Help:      "Total size of decoded message bodies in bytes",
			},
		),
		upgrades: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upgrades_total",
				Help:      "Number of messages switching the connection to another protocol",
			},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Number of decoding errors by name",
			},
			[]string{"error"},
		),
	}
}

// Wrap returns a consumer counting the events before passing them to next.
func (m *Metrics) Wrap(kind decoder.Kind, next decoder.Consumer) decoder.Consumer {
	return metricsConsumer{
		metrics:  m,
		messages: m.messages.WithLabelValues(kind.String()),
		next:     next,
	}
}

// ObserveError counts the error returned by Execute or Finish.
func (m *Metrics) ObserveError(err error) {
	if err == nil {
		return
	}

	name := "OTHER"

	var perr decoder.ParseError
	if errors.As(err, &perr) {
		name = perr.Name
	}

	m.errors.WithLabelValues(name).Inc()
}

type metricsConsumer struct {
	metrics  *Metrics
	messages prometheus.Counter
	next     decoder.Consumer
}

func (c metricsConsumer) OnHeaders(headers []string, url string) {
	c.metrics.flushes.Inc()
	c.next.OnHeaders(headers, url)
}

func (c metricsConsumer) OnHeadersComplete(info decoder.HeadersInfo) bool {
	if info.Upgrade {
		c.metrics.upgrades.Inc()
	}

	return c.next.OnHeadersComplete(info)
}

func (c metricsConsumer) OnBody(view decoder.View, offset, length int) {
	c.metrics.bodyBytes.Add(float64(length))
	c.next.OnBody(view, offset, length)
}

func (c metricsConsumer) OnMessageComplete() {
	c.messages.Inc()
	c.next.OnMessageComplete()
}
