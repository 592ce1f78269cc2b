// Package http provides the HTTP surface of the SIA service: the query,
// VOSI and index endpoints, health checks, metrics and API docs.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lsst-sqre/vo-siav2/adapters/metrics"
	"github.com/lsst-sqre/vo-siav2/adapters/votable"
	"github.com/lsst-sqre/vo-siav2/app"
	_ "github.com/lsst-sqre/vo-siav2/docs/swagger" // swagger docs
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/sia"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// AppInfo is the application metadata served by the index endpoint.
type AppInfo struct {
	Name             string `json:"name" example:"vo-siav2"`
	Version          string `json:"version" example:"1.0.0"`
	Description      string `json:"description"`
	RepositoryURL    string `json:"repository_url,omitempty"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

// IndexResponse is the body of GET /{prefix}/.
type IndexResponse struct {
	Metadata    AppInfo  `json:"metadata"`
	Collections []string `json:"collections"`
}

// SIADeps contains dependencies for SIAHandler.
type SIADeps struct {
	Queries      *app.QueryService
	Availability *app.AvailabilityChecker
	Registry     *collection.Registry
	Writer       *votable.Writer
	Metrics      *metrics.Collector
	Clock        ports.Clock
	Logger       zerolog.Logger
}

// SIAHandler serves the per-collection SIA and VOSI endpoints.
type SIAHandler struct {
	queries      *app.QueryService
	availability *app.AvailabilityChecker
	registry     *collection.Registry
	info         AppInfo
	prefix       string
	logger       zerolog.Logger

	stages *pipeline
}

// NewSIAHandler creates the SIA handler mounted under prefix.
func NewSIAHandler(deps SIADeps, prefix string, info AppInfo) *SIAHandler {
	writer := deps.Writer
	if writer == nil {
		writer = votable.NewWriter()
	}
	p := &pipeline{
		logger: deps.Logger,
		clock:  deps.Clock,
		writer: writer,
	}
	if deps.Metrics != nil {
		p.faults = deps.Metrics
	}
	return &SIAHandler{
		queries:      deps.Queries,
		availability: deps.Availability,
		registry:     deps.Registry,
		info:         info,
		prefix:       normalizePrefix(prefix),
		logger:       deps.Logger,
		stages:       p,
	}
}

// Routes returns the handler's routes, relative to the prefix.
func (h *SIAHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Index)
	r.Method(http.MethodGet, "/{collection}/query", h.stages.wrap("query", h.query))
	r.Method(http.MethodPost, "/{collection}/query", h.stages.wrap("query", h.query))
	r.Method(http.MethodGet, "/{collection}/availability", h.stages.wrap("availability", h.vosiAvailability))
	r.Method(http.MethodGet, "/{collection}/capabilities", h.stages.wrap("capabilities", h.vosiCapabilities))
	return r
}

// Index lists application metadata and the configured collections.
//
//	@Summary		Service index
//	@Tags			SIA
//	@Produce		json
//	@Success		200	{object}	IndexResponse
//	@Router			/ [get]
func (h *SIAHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(IndexResponse{
		Metadata:    h.info,
		Collections: h.registry.Names(),
	})
}

// query runs an SIA v2 query.
//
//	@Summary		SIA v2 query
//	@Description	Runs an IVOA SIA v2 query. Parameter names are case-insensitive. An empty query or MAXREC=0 returns the service self-description.
//	@Tags			SIA
//	@Accept			x-www-form-urlencoded
//	@Accept			json
//	@Produce		application/x-votable+xml
//	@Param			collection				path	string	true	"Collection name"
//	@Param			POS						query	string	false	"CIRCLE, RANGE or POLYGON region"
//	@Param			TIME					query	string	false	"Time interval (MJD)"
//	@Param			BAND					query	string	false	"Wavelength interval (m)"
//	@Param			CALIB					query	string	false	"Calibration level"
//	@Param			INSTRUMENT				query	string	false	"Instrument name"
//	@Param			MAXREC					query	integer	false	"Maximum number of records"
//	@Param			X-Auth-Request-Token	header	string	false	"Delegated credential for remote repositories"
//	@Success		200	"VOTable results"
//	@Failure		400	"VOTable error document"
//	@Router			/{collection}/query [get]
//	@Router			/{collection}/query [post]
func (h *SIAHandler) query(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "collection")

	raw, err := ExtractParams(r)
	if err != nil {
		return err
	}
	params, err := sia.Normalize(raw)
	if err != nil {
		return err
	}

	resp, err := h.queries.Process(r.Context(), app.QueryRequest{
		Params:     params,
		Collection: name,
		Token:      r.Header.Get(TokenHeader),
		AccessURL:  h.endpointURL(r, name, "query"),
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Content-Disposition", resp.ContentDisposition)
	if resp.QueryID != "" {
		w.Header().Set("X-Query-ID", resp.QueryID)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response body")
	}
	return nil
}

// vosiAvailability reports whether the collection's repository is reachable.
//
//	@Summary		VOSI availability
//	@Tags			VOSI
//	@Produce		xml
//	@Param			collection	path	string	true	"Collection name"
//	@Success		200	"VOSI availability document"
//	@Router			/{collection}/availability [get]
func (h *SIAHandler) vosiAvailability(w http.ResponseWriter, r *http.Request) error {
	coll, err := h.registry.ByName(chi.URLParam(r, "collection"))
	if err != nil {
		return err
	}
	a := h.availability.Check(r.Context(), coll, coll.Backend)
	w.Header().Set("Content-Type", votable.XMLContentType)
	return votable.WriteAvailability(w, a)
}

// vosiCapabilities lists the collection's endpoints.
//
//	@Summary		VOSI capabilities
//	@Tags			VOSI
//	@Produce		xml
//	@Param			collection	path	string	true	"Collection name"
//	@Success		200	"VOSI capabilities document"
//	@Router			/{collection}/capabilities [get]
func (h *SIAHandler) vosiCapabilities(w http.ResponseWriter, r *http.Request) error {
	coll, err := h.registry.ByName(chi.URLParam(r, "collection"))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", votable.XMLContentType)
	return votable.WriteCapabilities(w, sia.Capabilities{
		CapabilitiesURL: h.endpointURL(r, coll.Name, "capabilities"),
		AvailabilityURL: h.endpointURL(r, coll.Name, "availability"),
		QueryURL:        h.endpointURL(r, coll.Name, "query"),
	})
}

// endpointURL builds the absolute URL of a collection endpoint as seen
// by the client.
func (h *SIAHandler) endpointURL(r *http.Request, name, leaf string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = fh
	}
	return scheme + "://" + host + h.prefix + "/" + name + "/" + leaf
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checker HealthChecker
}

// HealthChecker reports whether the service can serve queries.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Liveness returns a simple liveness check.
//
//	@Summary		Liveness check
//	@Description	Returns OK if the service is running
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string	"status: ok"
//	@Router			/health [get]
//	@Router			/health/live [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness checks if the service is ready to handle traffic.
//
//	@Summary		Readiness check
//	@Description	Checks that a default collection resolves and backends are initialized
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string		"status: ok"
//	@Failure		503	{object}	map[string]interface{}	"status: unhealthy, error: message"
//	@Router			/health/ready [get]
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.checker != nil {
		if err := h.checker.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	PathPrefix     string
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // Optional exporter handler; promhttp.Handler() otherwise
	MetricsPath    string
	EnableOpenAPI  bool
	RequestTimeout time.Duration
}

// NewRouter creates the main HTTP router.
func NewRouter(siaHandler *SIAHandler, healthHandler *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	// Health endpoints
	r.Get("/health", healthHandler.Liveness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if cfg.MetricsHandler != nil {
		r.Handle(metricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(metricsPath, promhttp.Handler())
	}

	prefix := normalizePrefix(cfg.PathPrefix)
	if cfg.EnableOpenAPI {
		r.Get(prefix+"/docs/*", httpSwagger.Handler(
			httpSwagger.URL(prefix+"/docs/doc.json"),
		))
	}

	if prefix == "" {
		r.Mount("/", siaHandler.Routes())
	} else {
		r.Mount(prefix, siaHandler.Routes())
	}

	return r
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" || strings.Contains(r.URL.Path, "/docs/") {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := statusLabel(ww.Status())
			route := metrics.NormalizePath(r.URL.Path)

			m.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route, status).Observe(duration)
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
