package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware continues an incoming W3C trace context and wraps each request
// in a server span named after the request path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := StartSpan(ctx, r.Method+" "+r.URL.Path,
			WithSpanKind(SpanKindServer),
			WithAttributes(map[string]any{
				"http.request.method": r.Method,
				"url.path":            r.URL.Path,
			}),
		)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttribute("http.response.status_code", rec.status)
		if rec.status >= http.StatusInternalServerError {
			span.EndWithStatus(StatusError, http.StatusText(rec.status))
			return
		}
		span.End()
	})
}
