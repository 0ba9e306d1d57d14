package middleware

import (
	"net/http"
	"time"

	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// ObservabilityMiddleware continues the caller's trace, opens a span named
// after the matched route and records request metrics. Register it per
// route inside the mux so r.Pattern and path values are set.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := observability.StartSpan(ctx, route)
			defer span.End()

			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
			}
			if id := RequestIDFromContext(ctx); id != "" {
				attrs = append(attrs, attribute.String("http.request_id", id))
			}
			if kind := r.PathValue("kind"); kind != "" {
				attrs = append(attrs, attribute.String("search.kind", kind))
			}
			if term := r.URL.Query().Get("q"); term != "" {
				attrs = append(attrs, attribute.Int("search.term_length", len([]rune(term))))
			}
			observability.SetSpanAttributes(span, attrs...)

			rec := newStatusRecorder(w)
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rec.statusCode, time.Since(start))
			observability.SetSpanAttributes(span, attribute.Int("http.status_code", rec.statusCode))
			if rec.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
			}
		})
	}
}

// statusRecorder captures the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
