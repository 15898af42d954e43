// Package metrics holds the Prometheus collectors for the rehearsal service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

const namespace = "rehearse"

// Metrics exposes the collectors registered for one service instance.
type Metrics struct {
	gatherer prometheus.Gatherer

	llmCalls       *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
	sessionsActive prometheus.Gauge
	sessions       *prometheus.CounterVec
	reportScores   prometheus.Histogram
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// New registers all collectors on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Model calls by operation and result.",
		}, []string{"op", "result"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Latency of model calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"op"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Rehearsal sessions currently open.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "events_total",
			Help:      "Session lifecycle events.",
		}, []string{"event"}),
		reportScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "score",
			Help:      "Overall scores of compiled feedback reports.",
			Buckets:   []float64{40, 60, 70, 80, 90, 100},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	collectors := []prometheus.Collector{
		m.llmCalls, m.llmLatency, m.sessionsActive, m.sessions,
		m.reportScores, m.httpRequests, m.httpLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted() {
	m.sessionsActive.Inc()
	m.sessions.WithLabelValues("started").Inc()
}

// SessionEnded records a closed session and, when a report was produced, its score.
func (m *Metrics) SessionEnded(outcome string, score *float64) {
	m.sessionsActive.Dec()
	m.sessions.WithLabelValues(outcome).Inc()
	if score != nil {
		m.reportScores.Observe(*score)
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) observeCall(op string, start time.Time, err error) {
	m.llmLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.llmCalls.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, llm.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, llm.ErrEmptyResponse):
		return "empty"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// WrapClient instruments every call made through c.
func (m *Metrics) WrapClient(c llm.Client) llm.Client {
	return &instrumentedClient{next: c, m: m}
}

type instrumentedClient struct {
	next llm.Client
	m    *Metrics
}

func (c *instrumentedClient) GenerateText(ctx context.Context, prompt string, opts llm.TextOptions) (string, error) {
	start := time.Now()
	out, err := c.next.GenerateText(ctx, prompt, opts)
	c.m.observeCall("text", start, err)
	return out, err
}

func (c *instrumentedClient) GenerateStructured(ctx context.Context, prompt string, schema *llm.Schema) (string, error) {
	start := time.Now()
	out, err := c.next.GenerateStructured(ctx, prompt, schema)
	c.m.observeCall("structured", start, err)
	return out, err
}

func (c *instrumentedClient) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	start := time.Now()
	out, err := c.next.SynthesizeSpeech(ctx, text, voice)
	c.m.observeCall("speech", start, err)
	return out, err
}

func (c *instrumentedClient) NewChat(ctx context.Context, opts llm.ChatOptions) (llm.Chat, error) {
	start := time.Now()
	chat, err := c.next.NewChat(ctx, opts)
	c.m.observeCall("chat_open", start, err)
	if err != nil {
		return nil, err
	}
	return &instrumentedChat{next: chat, m: c.m}, nil
}

type instrumentedChat struct {
	next llm.Chat
	m    *Metrics
}

func (c *instrumentedChat) Send(ctx context.Context, text string) (string, error) {
	start := time.Now()
	out, err := c.next.Send(ctx, text)
	c.m.observeCall("chat_send", start, err)
	return out, err
}
