package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/ports"
)

const exportYAML = `
facility_name: Rubin
obs_collection: LSST.DP02
collections: [2.2i/runs/DP0.2]
dataset_types:
  calexp:
    dataproduct_type: image
    dataproduct_subtype: lsst.calexp
    calib_level: 2
spectral_ranges:
  u: [330.0e-9, 400.0e-9]
  g: [402.0e-9, 552.0e-9]
  y: [970.0e-9, 1060.0e-9]
  NB0387: [null, 400.0e-9]
`

func mustConfig() *obscore.ExporterConfig {
	cfg, err := obscore.ParseExporterConfig([]byte(exportYAML))
	if err != nil {
		panic(err)
	}
	return cfg
}

func oneRowTable() *obscore.Table {
	t := obscore.NewTable([]obscore.Column{
		{Name: "obs_id", Datatype: "char", Arraysize: "*"},
		{Name: "s_ra", Datatype: "double", Unit: "deg"},
	})
	_ = t.Append([]any{"calexp-1", 320.0})
	return t
}

// mockConnection implements ports.Connection for testing.
type mockConnection struct {
	mu          sync.Mutex
	table       *obscore.Table
	err         error
	instruments []string
	defaults    obscore.Defaults
	queries     []*obscore.Parameters
	closed      int
}

func (m *mockConnection) Query(ctx context.Context, cfg *obscore.ExporterConfig, params *obscore.Parameters) (*obscore.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, params)
	return m.table, m.err
}

func (m *mockConnection) Instruments(ctx context.Context) ([]string, error) {
	return m.instruments, nil
}

func (m *mockConnection) SetDefaults(d obscore.Defaults) { m.defaults = d }

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockConnection) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockFieldConnection also accepts untyped parameters.
type mockFieldConnection struct {
	mockConnection
	fields map[string]any
}

func (m *mockFieldConnection) QueryFields(ctx context.Context, cfg *obscore.ExporterConfig, fields map[string]any) (*obscore.Table, error) {
	m.fields = fields
	return m.table, m.err
}

// mockOpener implements ports.DirectOpener for testing.
type mockOpener struct {
	conn   ports.Connection
	err    error
	opened []string
}

func (m *mockOpener) Open(ctx context.Context, repository string) (ports.Connection, error) {
	m.opened = append(m.opened, repository)
	if m.err != nil {
		return nil, m.err
	}
	return m.conn, nil
}

// mockRemote implements ports.ManagedRemoteFactory for testing.
type mockRemote struct {
	conn        ports.Connection
	bindings    map[string]string
	initialized bool
	closed      bool
	labels      []string
	tokens      []string
}

func (m *mockRemote) Initialize(bindings map[string]string) {
	m.bindings = bindings
	m.initialized = true
}

func (m *mockRemote) Initialized() bool { return m.initialized }

func (m *mockRemote) Close() error {
	m.closed = true
	m.initialized = false
	return nil
}

func (m *mockRemote) Connect(ctx context.Context, label, token string) (ports.Connection, error) {
	if _, ok := m.bindings[label]; !ok {
		return nil, errors.New("unknown label " + label)
	}
	m.labels = append(m.labels, label)
	m.tokens = append(m.tokens, token)
	return m.conn, nil
}

// mockLoader implements ports.ExportConfigLoader for testing.
type mockLoader struct {
	cfg       *obscore.ExporterConfig
	err       error
	locations []string
	closed    bool
}

func (m *mockLoader) Load(ctx context.Context, location string) (*obscore.ExporterConfig, error) {
	m.locations = append(m.locations, location)
	return m.cfg, m.err
}

func (m *mockLoader) Close() error {
	m.closed = true
	return nil
}

// mockMetrics implements ports.QueryMetrics for testing.
type mockMetrics struct {
	mu           sync.Mutex
	queries      []string
	engines      []string
	availability []string
}

func (m *mockMetrics) RecordQuery(collection, backend, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, collection+"/"+backend+"/"+outcome)
}

func (m *mockMetrics) RecordEngineCreation(backend, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines = append(m.engines, backend+"/"+result)
}

func (m *mockMetrics) RecordAvailabilityCheck(backend string, available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := "down"
	if available {
		state = "up"
	}
	m.availability = append(m.availability, backend+"/"+state)
}

func dp02() collection.DataCollection {
	return collection.DataCollection{
		Name:              "dp02",
		Label:             "LSST.DP02",
		Config:            "/etc/sia/dp02.yaml",
		Repository:        "/data/dp02.sqlite3",
		Backend:           collection.BackendDirect,
		DefaultInstrument: "LSSTCam-imSim",
		Default:           true,
	}
}

func dp1Remote() collection.DataCollection {
	return collection.DataCollection{
		Name:              "dp1",
		Label:             "LSST.DP1",
		Config:            "/etc/sia/dp1.yaml",
		Repository:        "https://butler.example/repo/dp1/butler.yaml",
		Backend:           collection.BackendRemote,
		DefaultInstrument: "LSSTComCam",
		DatalinkURL:       "https://data.example/api/datalink/links?ID={id}",
	}
}
