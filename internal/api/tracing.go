package api

import (
	"context"
	"net/http"

	"github.com/dunamismax/imagebinding/internal/domain"
	"github.com/dunamismax/imagebinding/internal/id"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// bindingOperation names the server span after the binding call rather
// than the raw path, which is arbitrary on the transform route.
func bindingOperation(route string) string {
	switch route {
	case "/info":
		return "binding.info"
	case "/{transform}":
		return "binding.transform"
	default:
		return "binding" + route
	}
}

func (s *Server) withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeLabel(r.URL.Path)
		ctx, span := s.tracer.Start(r.Context(), bindingOperation(route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", id.RequestIDFromContext(r.Context())),
			),
		)
		defer span.End()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
		}
	})
}

// annotateSpan records the binding error on the request's server span.
func annotateSpan(ctx context.Context, err *domain.Error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("binding.error.kind", err.Kind.String()),
		attribute.Int("binding.error.code", err.Code),
	)
	span.RecordError(err)
}
