// Package metrics exposes Prometheus metrics and OpenTelemetry spans for the
// build and query phases.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Registry holds every finchat collector.
var Registry = prometheus.NewRegistry()

var (
	documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finchat_documents_total",
			Help: "Documents ingested by outcome",
		},
		[]string{"outcome"},
	)
	elementsIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finchat_elements_indexed_total",
			Help: "Elements indexed by kind",
		},
		[]string{"kind"},
	)
	elementsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finchat_elements_skipped_total",
			Help: "Elements dropped during summarization or indexing",
		},
	)
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finchat_questions_total",
			Help: "Questions answered by route and reply kind",
		},
		[]string{"route", "reply"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finchat_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
		},
		[]string{"stage"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "finchat_sessions_active",
			Help: "Number of open chat sessions",
		},
	)
)

var tracer = otel.Tracer("github.com/bull/finchat")

func init() {
	Registry.MustRegister(
		documentsTotal, elementsIndexed, elementsSkipped,
		questionsTotal, stageDuration, sessionsActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// DocumentIngested counts one ingest attempt.
func DocumentIngested(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	documentsTotal.WithLabelValues(outcome).Inc()
}

// ElementsIndexed counts indexed elements of one kind.
func ElementsIndexed(kind string, n int) {
	elementsIndexed.WithLabelValues(kind).Add(float64(n))
}

// ElementsSkipped counts elements that did not make it into the index.
func ElementsSkipped(n int) {
	elementsSkipped.Add(float64(n))
}

// QuestionAnswered counts one question.
func QuestionAnswered(route, reply string) {
	questionsTotal.WithLabelValues(route, reply).Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func SessionOpened() { sessionsActive.Inc() }
func SessionClosed() { sessionsActive.Dec() }

// Stage is a running pipeline stage.
type Stage struct {
	name  string
	start time.Time
	span  trace.Span
}

// StartStage starts a span named after the stage and a duration timer.
func StartStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Stage) {
	ctx, span := tracer.Start(ctx, "finchat."+name, trace.WithAttributes(attrs...))
	return ctx, &Stage{name: name, start: time.Now(), span: span}
}

// End records the duration and closes the span, marking it failed when err is set.
func (s *Stage) End(err error) {
	stageDuration.WithLabelValues(s.name).Observe(time.Since(s.start).Seconds())
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

// Event adds a named event to the stage span.
func (s *Stage) Event(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}
