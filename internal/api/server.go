package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dunamismax/imagebinding/internal/domain"
	"github.com/dunamismax/imagebinding/internal/id"
	"github.com/dunamismax/imagebinding/internal/pipeline"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	fieldImage        = "image"
	fieldTransforms   = "transforms"
	fieldOutputFormat = "output_format"

	multipartMemory = 8 << 20
)

type Options struct {
	MaxUploadBytes         int64
	MaxActiveRequests      int
	RateLimiter            RateLimiter
	RateLimitSubjectHeader string
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

type Server struct {
	logger                 zerolog.Logger
	processor              *pipeline.Processor
	metrics                *metrics
	tracer                 trace.Tracer
	rateLimiter            RateLimiter
	rateLimitSubjectHeader string
	maxUploadBytes         int64
	slots                  chan struct{}
	mux                    *http.ServeMux
}

func NewServer(logger zerolog.Logger, processor *pipeline.Processor, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.MaxActiveRequests <= 0 {
		opts.MaxActiveRequests = 1
	}
	if opts.RateLimitSubjectHeader == "" {
		opts.RateLimitSubjectHeader = "X-Client-ID"
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	s := &Server{
		logger:                 logger.With().Str("component", "api").Logger(),
		processor:              processor,
		metrics:                newMetrics(),
		tracer:                 opts.TracerProvider.Tracer("imagebinding/api"),
		rateLimiter:            opts.RateLimiter,
		rateLimitSubjectHeader: opts.RateLimitSubjectHeader,
		maxUploadBytes:         opts.MaxUploadBytes,
		slots:                  make(chan struct{}, opts.MaxActiveRequests),
		mux:                    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withTracing(s.withAccessLog(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /info", s.handleInfo)
	s.mux.HandleFunc("POST /", s.handleTransform)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"engine": s.processor.EngineName(),
	})
}

// upload is the decomposed multipart request.
type upload struct {
	image        []byte
	transforms   string
	outputFormat string
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return upload{}, domain.InvalidImage(fmt.Errorf("parse multipart form: %w", err))
	}

	file, _, err := r.FormFile(fieldImage)
	if err != nil {
		return upload{}, domain.InvalidImage(fmt.Errorf("read %s field: %w", fieldImage, err))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, domain.InvalidImage(fmt.Errorf("read %s payload: %w", fieldImage, err))
	}

	var up upload
	up.image = data
	if values := r.MultipartForm.Value[fieldTransforms]; len(values) > 0 {
		up.transforms = values[0]
	}
	if values := r.MultipartForm.Value[fieldOutputFormat]; len(values) > 0 {
		up.outputFormat = values[0]
	}
	return up, nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	defer s.cleanupForm(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	release, err := s.acquire(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	defer release()

	info, err := s.processor.Info(r.Context(), up.image)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp, err := JSONResponse(http.StatusOK, info)
	if err != nil {
		s.handleError(w, r, domain.EngineFailure(err))
		return
	}
	s.metrics.infoFormats.WithLabelValues(info.Format).Inc()
	resp.Write(w)
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	defer s.cleanupForm(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	// A missing field parses like an empty one and is rejected.
	transforms, err := pipeline.ParseTransforms(up.transforms)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	release, err := s.acquire(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	defer release()

	result, err := s.processor.Transform(r.Context(), pipeline.Request{
		Image:        up.image,
		Transforms:   transforms,
		OutputFormat: up.outputFormat,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.metrics.operationsTotal.WithLabelValues("applied").Add(float64(result.Applied))
	s.metrics.operationsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	s.metrics.outputBytes.WithLabelValues(result.ContentType).Observe(float64(len(result.Data)))
	ImageResponse(result.Data, result.ContentType).Write(w)
}

func (s *Server) acquire(ctx context.Context) (func(), error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.metrics.activePipelines.Inc()
	return func() {
		<-s.slots
		s.metrics.activePipelines.Dec()
	}, nil
}

func (s *Server) cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.requestLogger(r)

	if errors.Is(err, context.Canceled) {
		logger.Debug().Err(err).Msg("request cancelled by client")
		return
	}

	var bindErr *domain.Error
	if !errors.As(err, &bindErr) {
		bindErr = domain.EngineFailure(err)
	}

	s.metrics.bindingErrors.WithLabelValues(bindErr.Kind.String(), fmt.Sprint(bindErr.Code)).Inc()
	annotateSpan(r.Context(), bindErr)

	event := logger.Warn()
	if !bindErr.ClientCaused() {
		event = logger.Error()
	}
	event.Err(err).
		Str("kind", bindErr.Kind.String()).
		Int("code", bindErr.Code).
		Int("status", bindErr.Status).
		Msg("binding request failed")

	ErrorResponse(bindErr.Status, bindErr.Code, bindErr.Message).Write(w)
}

func (s *Server) requestLogger(r *http.Request) zerolog.Logger {
	return s.logger.With().
		Str("request_id", id.RequestIDFromContext(r.Context())).
		Str("route", routeLabel(r.URL.Path)).
		Logger()
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := id.Normalize(r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(id.WithRequestID(r.Context(), requestID)))
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		logger := s.requestLogger(r)
		logger.Info().
			Str("method", r.Method).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
