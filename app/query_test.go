package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lsst-sqre/vo-siav2/adapters/clock"
	"github.com/lsst-sqre/vo-siav2/adapters/idgen"
	"github.com/lsst-sqre/vo-siav2/adapters/votable"
	"github.com/lsst-sqre/vo-siav2/app"
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/rs/zerolog"
)

type queryFixture struct {
	svc     *app.QueryService
	direct  *mockConnection
	remote  *mockConnection
	rf      *mockRemote
	metrics *mockMetrics
}

func newQueryFixture(t *testing.T, collections ...collection.DataCollection) *queryFixture {
	t.Helper()
	if len(collections) == 0 {
		collections = []collection.DataCollection{dp02(), dp1Remote()}
	}
	reg, err := collection.NewRegistry(collections)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	fx := &queryFixture{
		direct:  &mockConnection{table: oneRowTable(), instruments: []string{"LSSTCam-imSim"}},
		remote:  &mockConnection{table: oneRowTable(), instruments: []string{"LSSTComCam"}},
		metrics: &mockMetrics{},
	}
	fx.rf = &mockRemote{conn: fx.remote}
	fx.rf.Initialize(reg.RepositoryBindings())

	engines := app.NewEngineFactory(app.EngineDeps{
		Direct:  &mockOpener{conn: fx.direct},
		Remote:  fx.rf,
		Configs: &mockLoader{cfg: mustConfig()},
		Metrics: fx.metrics,
		Logger:  zerolog.Nop(),
	})
	fx.svc = app.NewQueryService(app.QueryDeps{
		Registry: reg,
		Engines:  engines,
		Writer:   votable.NewWriter(),
		Metrics:  fx.metrics,
		Clock:    clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDGen:    idgen.NewSequential("q"),
		Logger:   zerolog.Nop(),
	})
	return fx
}

func TestQueryService_Query(t *testing.T) {
	fx := newQueryFixture(t)
	p := normalize(t, map[string][]string{"POS": {"CIRCLE 320 -0.1 10.7"}})

	resp, err := fx.svc.Process(context.Background(), app.QueryRequest{Params: p, Collection: "dp02"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.ContentType != "application/x-votable+xml" {
		t.Errorf("ContentType = %q", resp.ContentType)
	}
	if resp.ContentDisposition != "attachment; filename=result.xml" {
		t.Errorf("ContentDisposition = %q", resp.ContentDisposition)
	}
	if resp.Rows != 1 || strings.Count(string(resp.Body), "<TR>") != 1 {
		t.Errorf("rows = %d, body TR count = %d, want 1", resp.Rows, strings.Count(string(resp.Body), "<TR>"))
	}
	if resp.QueryID == "" {
		t.Error("QueryID is empty")
	}
	if fx.direct.queryCount() != 1 || fx.direct.closed != 1 {
		t.Errorf("queries = %d closed = %d, want 1 and 1", fx.direct.queryCount(), fx.direct.closed)
	}
	if len(fx.metrics.queries) != 1 || fx.metrics.queries[0] != "dp02/DIRECT/ok" {
		t.Errorf("query metrics = %v", fx.metrics.queries)
	}
}

func TestQueryService_CollectionResolution(t *testing.T) {
	tests := []struct {
		name       string
		raw        map[string][]string
		path       string
		token      string
		wantRemote bool
		wantErr    fault.Kind
	}{
		{"default when nothing named", map[string][]string{"pos": {"CIRCLE 1 2 3"}}, "", "", false, -1},
		{"path collection by name", map[string][]string{"pos": {"CIRCLE 1 2 3"}}, "dp1", "tok", true, -1},
		{"first requested label wins", map[string][]string{"collection": {"LSST.DP1", "LSST.DP02"}}, "dp02", "tok", true, -1},
		{"label is case sensitive", map[string][]string{"collection": {"lsst.dp02"}}, "", "", false, fault.Usage},
		{"unknown path name", map[string][]string{"pos": {"CIRCLE 1 2 3"}}, "nope", "", false, fault.Usage},
		{"unknown path name with label", map[string][]string{"collection": {"LSST.DP02"}}, "nope", "", false, fault.Usage},
		{"remote without token", map[string][]string{"pos": {"CIRCLE 1 2 3"}}, "dp1", "", true, fault.Fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newQueryFixture(t)
			_, err := fx.svc.Process(context.Background(), app.QueryRequest{
				Params:     normalize(t, tt.raw),
				Collection: tt.path,
				Token:      tt.token,
			})
			if tt.wantErr >= 0 {
				if !fault.Is(err, tt.wantErr) {
					t.Fatalf("Process() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			gotRemote := fx.remote.queryCount() == 1
			if gotRemote != tt.wantRemote {
				t.Errorf("remote queried = %v, want %v", gotRemote, tt.wantRemote)
			}
		})
	}
}

func TestQueryService_BackendOverride(t *testing.T) {
	fx := newQueryFixture(t)
	p := normalize(t, map[string][]string{"pos": {"CIRCLE 1 2 3"}})
	_, err := fx.svc.Process(context.Background(), app.QueryRequest{
		Params:     p,
		Collection: "dp02",
		Backend:    collection.BackendRemote,
		Token:      "tok",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if fx.remote.queryCount() != 1 || fx.direct.queryCount() != 0 {
		t.Errorf("remote = %d direct = %d, want 1 and 0", fx.remote.queryCount(), fx.direct.queryCount())
	}
}

func TestQueryService_SelfDescription(t *testing.T) {
	fx := newQueryFixture(t)
	p := normalize(t, map[string][]string{"MAXREC": {"0"}})

	resp, err := fx.svc.Process(context.Background(), app.QueryRequest{
		Params:     p,
		Collection: "dp02",
		AccessURL:  "http://localhost/api/sia/dp02/query",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !resp.SelfDescription {
		t.Error("SelfDescription = false")
	}
	if fx.direct.queryCount() != 0 {
		t.Errorf("backend queried %d times, want 0", fx.direct.queryCount())
	}
	body := string(resp.Body)
	for _, want := range []string{
		`name="Rubin band u" value="365.0e-9"`,
		`name="Rubin band g" value="477.0e-9"`,
		`name="Rubin band y" value="1015.0e-9"`,
		`value="LSSTCam-imSim"`,
		`value="LSST.DP02"`,
		`value="ivo://rubin/dp02"`,
		`value="http://localhost/api/sia/dp02/query"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("self-description missing %s", want)
		}
	}
	if strings.Contains(body, "NB0387") {
		t.Error("partial spectral range emitted as a band")
	}
}

func TestQueryService_EmptyQueryIsSelfDescription(t *testing.T) {
	fx := newQueryFixture(t)
	resp, err := fx.svc.Process(context.Background(), app.QueryRequest{
		Params:     normalize(t, map[string][]string{}),
		Collection: "dp02",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !resp.SelfDescription {
		t.Error("empty query did not produce a self-description")
	}
}

func TestQueryService_Overflow(t *testing.T) {
	fx := newQueryFixture(t)
	tbl := oneRowTable()
	_ = tbl.Append([]any{"calexp-2", 321.0})
	_ = tbl.Append([]any{"calexp-3", 322.0})
	fx.direct.table = tbl

	p := normalize(t, map[string][]string{"pos": {"CIRCLE 1 2 3"}, "maxrec": {"2"}})
	resp, err := fx.svc.Process(context.Background(), app.QueryRequest{Params: p, Collection: "dp02"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !resp.Overflow || resp.Rows != 2 {
		t.Errorf("Overflow = %v Rows = %d, want true and 2", resp.Overflow, resp.Rows)
	}
	if !strings.Contains(string(resp.Body), `value="OVERFLOW"`) {
		t.Error("body missing OVERFLOW status")
	}
}

func TestQueryService_Errors(t *testing.T) {
	t.Run("adapter value error", func(t *testing.T) {
		fx := newQueryFixture(t)
		p := normalize(t, map[string][]string{"POS": {"SOME_SHAPE 321 0 1"}})
		_, err := fx.svc.Process(context.Background(), app.QueryRequest{Params: p, Collection: "dp02"})
		if err == nil || !strings.HasPrefix(err.Error(), "UsageFault: Unrecognized shape") {
			t.Fatalf("Process() error = %v, want UsageFault: Unrecognized shape", err)
		}
		if fx.metrics.queries[0] != "dp02/DIRECT/UsageFault" {
			t.Errorf("query metrics = %v", fx.metrics.queries)
		}
	})

	t.Run("backend error propagates", func(t *testing.T) {
		fx := newQueryFixture(t)
		fx.direct.err = errors.New("database is locked")
		p := normalize(t, map[string][]string{"pos": {"CIRCLE 1 2 3"}})
		_, err := fx.svc.Process(context.Background(), app.QueryRequest{Params: p, Collection: "dp02"})
		if err == nil || fault.KindOf(err) != fault.Default {
			t.Fatalf("Process() error = %v, want unclassified error", err)
		}
		if fx.direct.closed != 1 {
			t.Errorf("closed = %d, want engine closed after failure", fx.direct.closed)
		}
	})

	t.Run("nil params", func(t *testing.T) {
		fx := newQueryFixture(t)
		_, err := fx.svc.Process(context.Background(), app.QueryRequest{Collection: "dp02"})
		if !fault.Is(err, fault.Usage) {
			t.Errorf("Process() error = %v, want UsageFault", err)
		}
	})
}
