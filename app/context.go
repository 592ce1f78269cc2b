package app

import (
	"context"
	"errors"
	"io"

	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/rs/zerolog"
)

// ProcessContext owns the process-wide state shared by request pipelines:
// the collection registry, the remote connection factory and the export
// config loader. It is read-only between Initialize and Close.
type ProcessContext struct {
	Registry *collection.Registry
	Remote   ports.ManagedRemoteFactory
	Configs  ports.ExportConfigLoader

	logger zerolog.Logger
}

// NewProcessContext creates an uninitialized process context.
func NewProcessContext(reg *collection.Registry, remote ports.ManagedRemoteFactory, configs ports.ExportConfigLoader, logger zerolog.Logger) *ProcessContext {
	return &ProcessContext{
		Registry: reg,
		Remote:   remote,
		Configs:  configs,
		logger:   logger,
	}
}

// Initialize seeds the remote factory with the registry's repository
// bindings. It must run before the first request.
func (p *ProcessContext) Initialize() {
	if p.Remote == nil || p.Registry == nil {
		return
	}
	bindings := p.Registry.RepositoryBindings()
	p.Remote.Initialize(bindings)
	p.logger.Info().
		Int("bindings", len(bindings)).
		Int("collections", len(p.Registry.All())).
		Msg("process context initialized")
}

// Close tears down the remote factory and the config loader.
func (p *ProcessContext) Close() error {
	var errs []error
	if p.Remote != nil {
		if err := p.Remote.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := p.Configs.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HealthCheck reports whether the process can serve queries: a default
// collection resolves and, when REMOTE collections exist, the remote
// factory is initialized.
func (p *ProcessContext) HealthCheck(ctx context.Context) error {
	if p.Registry == nil {
		return fault.Fatalf("No Data Collections configured. Please configure at least one Data collection.")
	}
	if _, err := p.Registry.Default(); err != nil {
		return err
	}
	if p.Registry.HasBackend(collection.BackendRemote) && (p.Remote == nil || !p.Remote.Initialized()) {
		return fault.Fatalf("No labeled connection factory configured")
	}
	return ctx.Err()
}
