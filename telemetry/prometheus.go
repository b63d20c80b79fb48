package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/n-r-w/txcmd/txmgr"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultNamespace namespace of the metrics.
const DefaultNamespace = "txcmd"

// Transaction statuses.
const (
	StatusCommit   = "commit"
	StatusRollback = "rollback"
	StatusPanic    = "panic"
)

// Prometheus implements ITelemetry with prometheus metrics and optional OpenTelemetry spans.
// It also implements txmgr.IObserver.
type Prometheus struct {
	namespace  string
	registerer prometheus.Registerer
	tracer     trace.Tracer
	stats      func() txmgr.Stats

	requests            *prometheus.CounterVec
	requestErrors       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	transactions        *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
}

var (
	_ ITelemetry      = (*Prometheus)(nil)
	_ txmgr.IObserver = (*Prometheus)(nil)
)

// PrometheusOption option for Prometheus.
type PrometheusOption func(*Prometheus)

// WithNamespace sets the metrics namespace. Default is DefaultNamespace.
func WithNamespace(namespace string) PrometheusOption {
	return func(p *Prometheus) {
		p.namespace = namespace
	}
}

// WithRegisterer sets the registerer. Default is prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) PrometheusOption {
	return func(p *Prometheus) {
		p.registerer = r
	}
}

// WithTracer enables spans.
func WithTracer(tracer trace.Tracer) PrometheusOption {
	return func(p *Prometheus) {
		p.tracer = tracer
	}
}

// WithStatsSource exports the number of active transaction scopes, e.g. Manager.Stats.
func WithStatsSource(f func() txmgr.Stats) PrometheusOption {
	return func(p *Prometheus) {
		p.stats = f
	}
}

// NewPrometheus creates and registers the metrics.
func NewPrometheus(opts ...PrometheusOption) (*Prometheus, error) {
	p := &Prometheus{
		namespace:  DefaultNamespace,
		registerer: prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "requests_total",
		Help:      "Total number of connector requests",
	}, []string{"command"})

	p.requestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "request_errors_total",
		Help:      "Total number of failed connector requests",
	}, []string{"command"})

	p.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      "request_duration_seconds",
		Help:      "Duration of connector requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command"})

	p.transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "transactions_total",
		Help:      "Total number of finished transaction scopes",
	}, []string{"scope", "status"})

	p.transactionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      "transaction_duration_seconds",
		Help:      "Duration of transaction scopes",
		Buckets:   prometheus.DefBuckets,
	}, []string{"scope"})

	collectors := []prometheus.Collector{
		p.requests, p.requestErrors, p.requestDuration, p.transactions, p.transactionDuration,
	}

	if p.stats != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "active_transactions",
			Help:      "Number of active transaction scopes",
		}, func() float64 {
			return float64(p.stats().ActiveTransactions)
		}))
	}

	for _, c := range collectors {
		if err := p.registerer.Register(c); err != nil {
			return nil, fmt.Errorf("telemetry.NewPrometheus: %w", err)
		}
	}

	return p, nil
}

// StartSpan implements ITelemetry. Returns nil span if the tracer is not set.
func (p *Prometheus) StartSpan(ctx context.Context, name string) (context.Context, ISpan) {
	if p.tracer == nil {
		return ctx, nil
	}

	ctx, span := p.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

// ObserveRequestDuration implements ITelemetry.
func (p *Prometheus) ObserveRequestDuration(_ context.Context, command string, duration time.Duration) {
	p.requestDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// ObserveRequest implements ITelemetry.
func (p *Prometheus) ObserveRequest(_ context.Context, command string) {
	p.requests.WithLabelValues(command).Inc()
}

// ObserveRequestError implements ITelemetry.
func (p *Prometheus) ObserveRequestError(ctx context.Context, command string, err error) {
	p.requestErrors.WithLabelValues(command).Inc()

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err)
	}
}

// ObserveTransaction implements txmgr.IObserver.
func (p *Prometheus) ObserveTransaction(_ context.Context, e txmgr.Event) {
	scope := "nested"
	if e.Root {
		scope = "root"
	}

	status := StatusCommit
	switch {
	case errors.Is(e.Err, txmgr.ErrPanicked):
		status = StatusPanic
	case e.Err != nil:
		status = StatusRollback
	}

	p.transactions.WithLabelValues(scope, status).Inc()
	p.transactionDuration.WithLabelValues(scope).Observe(e.Duration.Seconds())
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) AddAttributes(attributes []Attribute) {
	kv := make([]attribute.KeyValue, 0, len(attributes))
	for _, a := range attributes {
		kv = append(kv, toAttribute(a))
	}
	s.span.SetAttributes(kv...)
}

func (s otelSpan) End() {
	s.span.End()
}

func toAttribute(a Attribute) attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	default:
		return attribute.String(a.Key, fmt.Sprint(v))
	}
}
