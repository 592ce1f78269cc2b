// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file or SIA_* environment variables; the
// collection registry is built once and never changes while serving.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lsst-sqre/vo-siav2/adapters/clock"
	"github.com/lsst-sqre/vo-siav2/adapters/direct"
	"github.com/lsst-sqre/vo-siav2/adapters/exportconfig"
	apihttp "github.com/lsst-sqre/vo-siav2/adapters/http"
	"github.com/lsst-sqre/vo-siav2/adapters/idgen"
	"github.com/lsst-sqre/vo-siav2/adapters/metrics"
	"github.com/lsst-sqre/vo-siav2/adapters/remote"
	"github.com/lsst-sqre/vo-siav2/adapters/votable"
	"github.com/lsst-sqre/vo-siav2/app"
	"github.com/lsst-sqre/vo-siav2/config"
	"github.com/lsst-sqre/vo-siav2/docs/swagger"
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Options provides optional settings for application initialization.
type Options struct {
	// Info is reported by the index endpoint.
	Info apihttp.AppInfo
	// LogOutput receives log lines. Defaults to os.Stdout.
	LogOutput io.Writer
	// Transport is used by availability probes. Defaults to a clone of
	// http.DefaultTransport per probe.
	Transport http.RoundTripper
}

// App represents the running application.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	HTTPServer *http.Server
	Handler    http.Handler
	Metrics    *metrics.Collector
	Registry   *collection.Registry
	Process    *app.ProcessContext

	promRegistry *prometheus.Registry
	configs      *exportconfig.Store
	remote       *remote.Factory
}

// New creates and initializes the application from a validated config.
func New(cfg *config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := setupLogger(cfg.Logging, out)

	logger.Info().
		Str("name", cfg.Service.Name).
		Str("path_prefix", cfg.Service.PathPrefix).
		Msg("initializing sia service")

	a := &App{
		Config: cfg,
		Logger: logger,
	}

	collections, err := cfg.DataCollections()
	if err != nil {
		return nil, fmt.Errorf("data collections: %w", err)
	}
	a.Registry, err = collection.NewRegistry(collections)
	if err != nil {
		return nil, fmt.Errorf("collection registry: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.promRegistry = prometheus.NewRegistry()
		a.promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.promRegistry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initConfigStore(); err != nil {
		return nil, fmt.Errorf("init export config store: %w", err)
	}

	a.remote = remote.NewFactory(remote.FactoryConfig{
		Timeout: cfg.Remote.Timeout,
		Headers: cfg.Remote.Headers,
	}, logger)
	a.Process = app.NewProcessContext(a.Registry, a.remote, a.configs, logger)
	a.Process.Initialize()

	a.initHTTPServer(opts)

	for _, c := range collections {
		logger.Info().
			Str("collection", c.Name).
			Str("label", c.Label).
			Str("backend", string(c.Backend)).
			Bool("default", c.Default).
			Msg("data collection configured")
	}

	return a, nil
}

// NewFromFile loads configuration from path, falling back to the
// environment, and initializes the application.
func NewFromFile(path string, opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}

func (a *App) initConfigStore() error {
	storeOpts := exportconfig.Options{
		HTTPTimeout: a.Config.Remote.Timeout,
		Watch:       true,
	}
	if a.Metrics != nil {
		storeOpts.Metrics = a.Metrics
	}

	if s3 := a.Config.Storage.S3; s3.Endpoint != "" {
		client, err := exportconfig.NewS3Client(exportconfig.S3Config{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Region:    s3.Region,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		storeOpts.Objects = client
		a.Logger.Info().Str("endpoint", s3.Endpoint).Msg("s3 export config source enabled")
	}

	store, err := exportconfig.NewStore(storeOpts, a.Logger)
	if err != nil {
		return err
	}
	a.configs = store
	return nil
}

func (a *App) initHTTPServer(opts Options) {
	cfg := a.Config

	// Nil collectors must not reach the services as typed-nil interfaces.
	var queryMetrics ports.QueryMetrics
	if a.Metrics != nil {
		queryMetrics = a.Metrics
	}

	engines := app.NewEngineFactory(app.EngineDeps{
		Direct:  direct.NewOpener(a.Logger),
		Remote:  a.remote,
		Configs: a.configs,
		Metrics: queryMetrics,
		Logger:  a.Logger,
	})

	writer := votable.NewWriter()
	clk := clock.Real{}

	queries := app.NewQueryService(app.QueryDeps{
		Registry: a.Registry,
		Engines:  engines,
		Writer:   writer,
		Metrics:  queryMetrics,
		Clock:    clk,
		IDGen:    idgen.UUID{},
		Logger:   a.Logger,
	})

	availability := app.NewAvailabilityChecker(app.AvailabilityConfig{
		Timeout:   cfg.Availability.Timeout,
		Transport: opts.Transport,
	}, queryMetrics, a.Logger)

	info := opts.Info
	if info.Name == "" {
		info.Name = cfg.Service.Name
	}

	siaHandler := apihttp.NewSIAHandler(apihttp.SIADeps{
		Queries:      queries,
		Availability: availability,
		Registry:     a.Registry,
		Writer:       writer,
		Metrics:      a.Metrics,
		Clock:        clk,
		Logger:       a.Logger,
	}, cfg.Service.PathPrefix, info)
	healthHandler := apihttp.NewHealthHandler(a.Process)

	routerCfg := apihttp.RouterConfig{
		PathPrefix:     cfg.Service.PathPrefix,
		Metrics:        a.Metrics,
		MetricsPath:    cfg.Metrics.Path,
		EnableOpenAPI:  cfg.OpenAPI.Enabled,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if a.promRegistry != nil {
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.promRegistry, promhttp.HandlerOpts{})
	}
	if cfg.OpenAPI.Enabled {
		swagger.SwaggerInfo.BasePath = cfg.Service.PathPrefix
		if info.Version != "" {
			swagger.SwaggerInfo.Version = info.Version
		}
		a.Logger.Info().Str("path", cfg.Service.PathPrefix+"/docs/").Msg("openapi documentation enabled")
	}

	a.Handler = apihttp.NewRouter(siaHandler, healthHandler, a.Logger, routerCfg)
	a.HTTPServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. It is safe to call more than
// once.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var firstErr error

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
			firstErr = err
		}
	}

	// Releases the remote factory and the export config watcher.
	if a.Process != nil {
		if err := a.Process.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("process context close error")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return firstErr
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
