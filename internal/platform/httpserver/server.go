package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	custodyledger "commonpool/contexts/finance-core/custody-ledger"
	mutualinsurance "commonpool/contexts/finance-core/mutual-insurance"
	authorization "commonpool/contexts/identity-access/authorization-service"
	contractsv1 "commonpool/contracts/gen/events/v1"
	"commonpool/internal/platform/metrics"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	_ "commonpool/internal/platform/httpserver/docs"
)

const moduleName = "internal/platform/httpserver"

type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	logger  *slog.Logger
	addr    string
	metrics *metrics.Metrics
	tracer  trace.Tracer
	http    *http.Server

	insurance     mutualinsurance.Module
	authorization authorization.Module
	custody       custodyledger.Module

	custodyServiceToken string
}

type Option func(*Server)

// WithCustodyServiceToken enables the internal transfer route for callers
// presenting the token as a bearer credential. Without it the route rejects
// every request.
func WithCustodyServiceToken(token string) Option {
	return func(s *Server) {
		s.custodyServiceToken = strings.TrimSpace(token)
	}
}

func New(
	insurance mutualinsurance.Module,
	authorizationModule authorization.Module,
	custody custodyledger.Module,
	registry *metrics.Metrics,
	logger *slog.Logger,
	addr string,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if registry == nil {
		registry = metrics.New("commonpool")
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		metrics:       registry,
		tracer:        otel.Tracer(moduleName),
		insurance:     insurance,
		authorization: authorizationModule,
		custody:       custody,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	s.handler = s.instrument(s.mux)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed mux wrapped in tracing and metrics middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", moduleName,
		"layer", "platform",
		"addr", s.addr,
	)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.registerInsuranceRoutes()
	s.registerAuthorizationRoutes()
	s.registerCustodyRoutes()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument opens one span per request, tags the context with a correlation
// id for emitted events and records the matched route.
// ServeMux sets r.Pattern on the request it is handed, so the pattern is
// readable once next returns.
func (s *Server) instrument(next http.Handler) http.Handler {
	propagator := propagation.TraceContext{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		correlationID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if correlationID == "" && span.SpanContext().HasTraceID() {
			correlationID = span.SpanContext().TraceID().String()
		}
		ctx = contractsv1.WithCorrelationID(ctx, correlationID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route != "" {
			span.SetName(route)
		}
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", recorder.status),
		)
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
		}
		s.metrics.ObserveHTTPRequest(r.Method, route, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// errorBody is shared by every module; each module's ErrorResponse DTO has
// the same JSON shape.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// requireCaller reads the caller identity. Mutating routes reject anonymous
// requests before any module code runs.
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
