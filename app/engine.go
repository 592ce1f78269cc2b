package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/rs/zerolog"
)

// EngineState tracks an engine through creation.
type EngineState int

const (
	EngineUnconfigured EngineState = iota
	EngineValidating
	EngineBound
	EngineFailed
)

func (s EngineState) String() string {
	switch s {
	case EngineValidating:
		return "VALIDATING"
	case EngineBound:
		return "BOUND"
	case EngineFailed:
		return "FAILED"
	default:
		return "UNCONFIGURED"
	}
}

// Engine is a per-request handle on one collection's repository. It is
// owned by the request that created it and must be closed.
type Engine struct {
	Collection collection.DataCollection
	Kind       collection.BackendKind
	Config     *obscore.ExporterConfig

	conn  ports.Connection
	state EngineState
}

// State returns the engine's lifecycle state.
func (e *Engine) State() EngineState {
	return e.state
}

// Execute runs the query. Typed parameters go to Connection.Query;
// generic parameters need a connection implementing FieldQuerier.
func (e *Engine) Execute(ctx context.Context, params EngineParams) (*obscore.Table, error) {
	if e.state != EngineBound {
		return nil, fault.Fatalf("Query engine for %s is %s", e.Collection.Name, e.state)
	}
	if params.IsTyped() {
		return e.conn.Query(ctx, e.Config, params.Typed)
	}
	fq, ok := e.conn.(ports.FieldQuerier)
	if !ok {
		return nil, fault.Fatalf("Backend %s does not accept untyped parameters", e.Kind)
	}
	return fq.QueryFields(ctx, e.Config, params.Fields)
}

// Instruments lists the repository's instruments.
func (e *Engine) Instruments(ctx context.Context) ([]string, error) {
	if e.state != EngineBound {
		return nil, fault.Fatalf("Query engine for %s is %s", e.Collection.Name, e.state)
	}
	return e.conn.Instruments(ctx)
}

// Close releases the underlying connection.
func (e *Engine) Close() error {
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

type connBuilder func(ctx context.Context, coll collection.DataCollection, token string) (ports.Connection, error)

// EngineDeps contains dependencies for EngineFactory.
type EngineDeps struct {
	Direct  ports.DirectOpener
	Remote  ports.RemoteFactory
	Configs ports.ExportConfigLoader
	Metrics ports.QueryMetrics
	Logger  zerolog.Logger
}

// EngineFactory builds engines, dispatching on backend kind.
type EngineFactory struct {
	direct  ports.DirectOpener
	remote  ports.RemoteFactory
	configs ports.ExportConfigLoader
	metrics ports.QueryMetrics
	logger  zerolog.Logger

	builders map[collection.BackendKind]connBuilder
}

// NewEngineFactory creates an engine factory.
func NewEngineFactory(deps EngineDeps) *EngineFactory {
	f := &EngineFactory{
		direct:  deps.Direct,
		remote:  deps.Remote,
		configs: deps.Configs,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	f.builders = map[collection.BackendKind]connBuilder{
		collection.BackendDirect: f.buildDirect,
		collection.BackendRemote: f.buildRemote,
	}
	return f
}

// Create validates the collection's configuration for kind and binds a
// connection. Missing configuration or credentials are FatalFaults.
func (f *EngineFactory) Create(ctx context.Context, coll collection.DataCollection, kind collection.BackendKind, token string) (*Engine, error) {
	e := &Engine{Collection: coll, Kind: kind}
	e.state = EngineValidating

	build, ok := f.builders[kind]
	if !ok {
		return nil, f.fail(e, fault.Fatalf("Unsupported backend kind %q for collection %s", kind, coll.Name))
	}
	if coll.Config == "" {
		return nil, f.fail(e, fault.Fatalf("No export config configured for collection %s", coll.Name))
	}

	conn, err := build(ctx, coll, token)
	if err != nil {
		return nil, f.fail(e, err)
	}

	cfg, err := f.loadConfig(ctx, coll)
	if err != nil {
		_ = conn.Close()
		return nil, f.fail(e, err)
	}

	e.conn = conn
	e.Config = cfg
	e.state = EngineBound
	f.record(kind, "ok")
	f.logger.Debug().
		Str("collection", coll.Name).
		Str("backend", string(kind)).
		Str("state", e.state.String()).
		Msg("engine bound")
	return e, nil
}

func (f *EngineFactory) fail(e *Engine, err error) error {
	e.state = EngineFailed
	f.record(e.Kind, "error")
	f.logger.Debug().
		Err(err).
		Str("collection", e.Collection.Name).
		Str("backend", string(e.Kind)).
		Str("state", e.state.String()).
		Msg("engine creation failed")
	return err
}

func (f *EngineFactory) record(kind collection.BackendKind, result string) {
	if f.metrics != nil {
		f.metrics.RecordEngineCreation(string(kind), result)
	}
}

func (f *EngineFactory) buildDirect(ctx context.Context, coll collection.DataCollection, _ string) (ports.Connection, error) {
	if coll.Repository == "" {
		return nil, fault.Fatalf("No repository configured for collection %s", coll.Name)
	}
	if f.direct == nil {
		return nil, fault.Fatalf("No direct repository opener configured")
	}
	conn, err := f.direct.Open(ctx, coll.Repository)
	if err != nil {
		return nil, fmt.Errorf("open repository for %s: %w", coll.Name, err)
	}
	return conn, nil
}

func (f *EngineFactory) buildRemote(ctx context.Context, coll collection.DataCollection, token string) (ports.Connection, error) {
	if coll.Label == "" {
		return nil, fault.Fatalf("No Butler label configured for collection %s", coll.Name)
	}
	if token == "" {
		return nil, fault.Fatalf("Token is required for REMOTE backend")
	}
	if !f.remoteReady() {
		return nil, fault.Fatalf("No labeled connection factory configured")
	}
	conn, err := f.remote.Connect(ctx, coll.Label, token)
	if err != nil {
		var ff *fault.Fault
		if errors.As(err, &ff) {
			return nil, err
		}
		return nil, fault.Fatalf("Connect to repository %s: %w", coll.Label, err)
	}
	conn.SetDefaults(obscore.Defaults{Instrument: coll.DefaultInstrument})
	return conn, nil
}

func (f *EngineFactory) remoteReady() bool {
	if f.remote == nil {
		return false
	}
	if m, ok := f.remote.(ports.ManagedRemoteFactory); ok {
		return m.Initialized()
	}
	return true
}

func (f *EngineFactory) loadConfig(ctx context.Context, coll collection.DataCollection) (*obscore.ExporterConfig, error) {
	if f.configs == nil {
		return nil, fault.Fatalf("No export config loader configured")
	}
	cfg, err := f.configs.Load(ctx, coll.Config)
	if err != nil {
		return nil, fault.Fatalf("Failed to load export config for %s: %w", coll.Name, err)
	}
	return cfg.WithDatalinkURL(coll.DatalinkURL), nil
}
