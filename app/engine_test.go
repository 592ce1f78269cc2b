package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lsst-sqre/vo-siav2/app"
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/rs/zerolog"
)

func newEngineFactory(opener *mockOpener, remote *mockRemote, loader *mockLoader, metrics *mockMetrics) *app.EngineFactory {
	deps := app.EngineDeps{Configs: loader, Logger: zerolog.Nop()}
	if opener != nil {
		deps.Direct = opener
	}
	if remote != nil {
		deps.Remote = remote
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	return app.NewEngineFactory(deps)
}

func TestEngineFactory_Direct(t *testing.T) {
	conn := &mockConnection{table: oneRowTable()}
	opener := &mockOpener{conn: conn}
	loader := &mockLoader{cfg: mustConfig()}
	metrics := &mockMetrics{}
	f := newEngineFactory(opener, nil, loader, metrics)

	e, err := f.Create(context.Background(), dp02(), collection.BackendDirect, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.State() != app.EngineBound {
		t.Errorf("State() = %v, want BOUND", e.State())
	}
	if len(opener.opened) != 1 || opener.opened[0] != "/data/dp02.sqlite3" {
		t.Errorf("opened = %v", opener.opened)
	}
	if len(loader.locations) != 1 || loader.locations[0] != "/etc/sia/dp02.yaml" {
		t.Errorf("config locations = %v", loader.locations)
	}
	if conn.defaults.Instrument != "" {
		t.Errorf("direct engine bound defaults %+v, want none", conn.defaults)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if conn.closed != 1 {
		t.Errorf("closed = %d, want 1", conn.closed)
	}
	if len(metrics.engines) != 1 || metrics.engines[0] != "DIRECT/ok" {
		t.Errorf("engine metrics = %v", metrics.engines)
	}
}

func TestEngineFactory_Remote(t *testing.T) {
	conn := &mockConnection{}
	remote := &mockRemote{conn: conn}
	remote.Initialize(map[string]string{"LSST.DP1": "https://butler.example/repo/dp1/butler.yaml"})
	loader := &mockLoader{cfg: mustConfig()}
	f := newEngineFactory(nil, remote, loader, nil)

	e, err := f.Create(context.Background(), dp1Remote(), collection.BackendRemote, "tok-123")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer e.Close()

	if conn.defaults.Instrument != "LSSTComCam" {
		t.Errorf("default instrument = %q, want LSSTComCam", conn.defaults.Instrument)
	}
	if remote.tokens[0] != "tok-123" || remote.labels[0] != "LSST.DP1" {
		t.Errorf("connect = %v %v", remote.labels, remote.tokens)
	}
	dt, ok := e.Config.DatasetTypeFor("calexp")
	if !ok || dt.DatalinkURLFmt != "https://data.example/api/datalink/links?ID={id}" {
		t.Errorf("datalink override not applied: %+v", dt)
	}
}

func TestEngineFactory_Failures(t *testing.T) {
	initialized := func() *mockRemote {
		r := &mockRemote{conn: &mockConnection{}}
		r.Initialize(map[string]string{"LSST.DP1": "https://butler.example/repo/dp1"})
		return r
	}

	tests := []struct {
		name     string
		coll     func() collection.DataCollection
		kind     collection.BackendKind
		token    string
		remote   *mockRemote
		opener   *mockOpener
		loader   *mockLoader
		wantKind fault.Kind
		wantMsg  string
	}{
		{
			name:     "remote token omitted",
			coll:     dp1Remote,
			kind:     collection.BackendRemote,
			remote:   initialized(),
			wantKind: fault.Fatal,
			wantMsg:  "Token is required",
		},
		{
			name: "remote label omitted",
			coll: func() collection.DataCollection {
				c := dp1Remote()
				c.Label = ""
				return c
			},
			kind:     collection.BackendRemote,
			token:    "tok",
			remote:   initialized(),
			wantKind: fault.Fatal,
			wantMsg:  "No Butler label configured",
		},
		{
			name:     "remote factory missing",
			coll:     dp1Remote,
			kind:     collection.BackendRemote,
			token:    "tok",
			wantKind: fault.Fatal,
			wantMsg:  "No labeled connection factory configured",
		},
		{
			name:     "remote factory not initialized",
			coll:     dp1Remote,
			kind:     collection.BackendRemote,
			token:    "tok",
			remote:   &mockRemote{},
			wantKind: fault.Fatal,
			wantMsg:  "No labeled connection factory configured",
		},
		{
			name: "remote label unbound",
			coll: func() collection.DataCollection {
				c := dp1Remote()
				c.Label = "LSST.OTHER"
				return c
			},
			kind:     collection.BackendRemote,
			token:    "tok",
			remote:   initialized(),
			wantKind: fault.Fatal,
			wantMsg:  "unknown label LSST.OTHER",
		},
		{
			name: "direct repository missing",
			coll: func() collection.DataCollection {
				c := dp02()
				c.Repository = ""
				return c
			},
			kind:     collection.BackendDirect,
			opener:   &mockOpener{conn: &mockConnection{}},
			wantKind: fault.Fatal,
			wantMsg:  "No repository configured",
		},
		{
			name:     "direct open error",
			coll:     dp02,
			kind:     collection.BackendDirect,
			opener:   &mockOpener{err: errors.New("disk gone")},
			wantKind: fault.Default,
			wantMsg:  "disk gone",
		},
		{
			name: "export config missing",
			coll: func() collection.DataCollection {
				c := dp02()
				c.Config = ""
				return c
			},
			kind:     collection.BackendDirect,
			opener:   &mockOpener{conn: &mockConnection{}},
			wantKind: fault.Fatal,
			wantMsg:  "No export config configured",
		},
		{
			name:     "export config load error",
			coll:     dp02,
			kind:     collection.BackendDirect,
			opener:   &mockOpener{conn: &mockConnection{}},
			loader:   &mockLoader{err: errors.New("no such file")},
			wantKind: fault.Fatal,
			wantMsg:  "Failed to load export config for dp02",
		},
		{
			name:     "unknown backend kind",
			coll:     dp02,
			kind:     collection.BackendKind("TAPE"),
			wantKind: fault.Fatal,
			wantMsg:  "Unsupported backend kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := tt.loader
			if loader == nil {
				loader = &mockLoader{cfg: mustConfig()}
			}
			metrics := &mockMetrics{}
			f := newEngineFactory(tt.opener, tt.remote, loader, metrics)

			e, err := f.Create(context.Background(), tt.coll(), tt.kind, tt.token)
			if err == nil {
				t.Fatalf("Create() = %v, want error", e)
			}
			if e != nil {
				t.Errorf("Create() returned engine %v with error", e)
			}
			if got := fault.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(err) = %v, want %v (%v)", got, tt.wantKind, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
			if len(metrics.engines) != 1 || !strings.HasSuffix(metrics.engines[0], "/error") {
				t.Errorf("engine metrics = %v", metrics.engines)
			}
		})
	}
}

func TestEngineFactory_ConfigErrorClosesConnection(t *testing.T) {
	conn := &mockConnection{}
	f := newEngineFactory(&mockOpener{conn: conn}, nil, &mockLoader{err: errors.New("boom")}, nil)

	if _, err := f.Create(context.Background(), dp02(), collection.BackendDirect, ""); err == nil {
		t.Fatal("Create() error = nil, want error")
	}
	if conn.closed != 1 {
		t.Errorf("closed = %d, want 1", conn.closed)
	}
}

func TestEngine_Execute(t *testing.T) {
	t.Run("typed", func(t *testing.T) {
		conn := &mockConnection{table: oneRowTable()}
		f := newEngineFactory(&mockOpener{conn: conn}, nil, &mockLoader{cfg: mustConfig()}, nil)
		e, err := f.Create(context.Background(), dp02(), collection.BackendDirect, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		params, _ := obscore.ParseSIAv2(nil, []string{"CIRCLE 1 2 3"}, nil, nil, nil, nil, nil)
		table, err := e.Execute(context.Background(), app.EngineParams{Typed: params})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if table.Len() != 1 || conn.queryCount() != 1 {
			t.Errorf("rows = %d queries = %d, want 1 and 1", table.Len(), conn.queryCount())
		}
	})

	t.Run("generic needs field querier", func(t *testing.T) {
		conn := &mockConnection{table: oneRowTable()}
		f := newEngineFactory(&mockOpener{conn: conn}, nil, &mockLoader{cfg: mustConfig()}, nil)
		e, _ := f.Create(context.Background(), dp02(), collection.BackendDirect, "")
		_, err := e.Execute(context.Background(), app.EngineParams{Fields: map[string]any{"pos": []string{"CIRCLE 1 2 3"}}})
		if !fault.Is(err, fault.Fatal) {
			t.Errorf("Execute() error = %v, want FatalFault", err)
		}
	})

	t.Run("generic", func(t *testing.T) {
		conn := &mockFieldConnection{mockConnection: mockConnection{table: oneRowTable()}}
		f := newEngineFactory(&mockOpener{conn: conn}, nil, &mockLoader{cfg: mustConfig()}, nil)
		e, _ := f.Create(context.Background(), dp02(), collection.BackendDirect, "")
		fields := map[string]any{"pos": []string{"CIRCLE 1 2 3"}}
		if _, err := e.Execute(context.Background(), app.EngineParams{Fields: fields}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if conn.fields["pos"] == nil {
			t.Errorf("fields = %v, want pos forwarded", conn.fields)
		}
	})

	t.Run("closed engine", func(t *testing.T) {
		conn := &mockConnection{}
		f := newEngineFactory(&mockOpener{conn: conn}, nil, &mockLoader{cfg: mustConfig()}, nil)
		e, _ := f.Create(context.Background(), dp02(), collection.BackendDirect, "")
		_ = e.Close()
		if err := e.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
		if conn.closed != 1 {
			t.Errorf("closed = %d, want 1", conn.closed)
		}
	})
}

func TestEngineState_String(t *testing.T) {
	tests := map[app.EngineState]string{
		app.EngineUnconfigured: "UNCONFIGURED",
		app.EngineValidating:   "VALIDATING",
		app.EngineBound:        "BOUND",
		app.EngineFailed:       "FAILED",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
