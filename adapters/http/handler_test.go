package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lsst-sqre/vo-siav2/adapters/clock"
	apihttp "github.com/lsst-sqre/vo-siav2/adapters/http"
	"github.com/lsst-sqre/vo-siav2/adapters/idgen"
	"github.com/lsst-sqre/vo-siav2/adapters/metrics"
	"github.com/lsst-sqre/vo-siav2/adapters/votable"
	"github.com/lsst-sqre/vo-siav2/app"
	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

const exportYAML = `
facility_name: Rubin
obs_collection: LSST.DP02
dataset_types:
  calexp:
    dataproduct_type: image
    calib_level: 2
spectral_ranges:
  u: [330.0e-9, 400.0e-9]
  g: [402.0e-9, 552.0e-9]
  NB0387: [null, 400.0e-9]
`

// mockConnection implements ports.Connection for testing.
type mockConnection struct {
	table   *obscore.Table
	queries int
	last    *obscore.Parameters
}

func (m *mockConnection) Query(ctx context.Context, cfg *obscore.ExporterConfig, params *obscore.Parameters) (*obscore.Table, error) {
	m.queries++
	m.last = params
	return m.table, nil
}
func (m *mockConnection) Instruments(ctx context.Context) ([]string, error) {
	return []string{"LSSTCam-imSim"}, nil
}
func (m *mockConnection) SetDefaults(obscore.Defaults) {}
func (m *mockConnection) Close() error                 { return nil }

// mockOpener implements ports.DirectOpener for testing.
type mockOpener struct{ conn *mockConnection }

func (m *mockOpener) Open(ctx context.Context, repository string) (ports.Connection, error) {
	return m.conn, nil
}

// mockLoader implements ports.ExportConfigLoader for testing.
type mockLoader struct{ cfg *obscore.ExporterConfig }

func (m *mockLoader) Load(ctx context.Context, location string) (*obscore.ExporterConfig, error) {
	return m.cfg, nil
}

// mockHealth implements apihttp.HealthChecker for testing.
type mockHealth struct{ err error }

func (m *mockHealth) HealthCheck(ctx context.Context) error { return m.err }

type testServer struct {
	router  http.Handler
	conn    *mockConnection
	metrics *metrics.Collector
	reg     *prometheus.Registry
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg, err := obscore.ParseExporterConfig([]byte(exportYAML))
	if err != nil {
		t.Fatalf("ParseExporterConfig() error = %v", err)
	}
	registry, err := collection.NewRegistry([]collection.DataCollection{{
		Name:       "dp02",
		Label:      "LSST.DP02",
		Config:     "dp02.yaml",
		Repository: "dp02.sqlite3",
		Backend:    collection.BackendDirect,
		Default:    true,
	}})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	tbl := obscore.NewTable(obscore.StandardColumns())
	row := make([]any, len(tbl.Columns))
	row[tbl.ColumnIndex("obs_id")] = "calexp-1"
	row[tbl.ColumnIndex("s_ra")] = 320.0
	row[tbl.ColumnIndex("s_dec")] = -0.1
	_ = tbl.Append(row)

	conn := &mockConnection{table: tbl}
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	logger := zerolog.Nop()
	clk := clock.NewFake(baseTime)

	engines := app.NewEngineFactory(app.EngineDeps{
		Direct:  &mockOpener{conn: conn},
		Configs: &mockLoader{cfg: cfg},
		Metrics: m,
		Logger:  logger,
	})
	queries := app.NewQueryService(app.QueryDeps{
		Registry: registry,
		Engines:  engines,
		Writer:   votable.NewWriter(),
		Metrics:  m,
		Clock:    clk,
		IDGen:    idgen.NewSequential("q"),
		Logger:   logger,
	})
	sia := apihttp.NewSIAHandler(apihttp.SIADeps{
		Queries:      queries,
		Availability: app.NewAvailabilityChecker(app.AvailabilityConfig{}, m, logger),
		Registry:     registry,
		Metrics:      m,
		Clock:        clk,
		Logger:       logger,
	}, "/api/sia", apihttp.AppInfo{Name: "vo-siav2", Version: "test"})

	router := apihttp.NewRouter(sia, apihttp.NewHealthHandler(&mockHealth{}), logger, apihttp.RouterConfig{
		PathPrefix:     "/api/sia",
		Metrics:        m,
		MetricsHandler: promhttpFor(reg),
		EnableOpenAPI:  true,
	})
	return &testServer{router: router, conn: conn, metrics: m, reg: reg}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// votableDoc mirrors the parts of a VOTable the tests look at.
type votableDoc struct {
	Resources []struct {
		Type  string `xml:"type,attr"`
		Infos []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value,attr"`
			Text  string `xml:",chardata"`
		} `xml:"INFO"`
		Rows []struct{} `xml:"TABLE>DATA>TABLEDATA>TR"`
	} `xml:"RESOURCE"`
}

func parseVOTable(t *testing.T, body []byte) votableDoc {
	t.Helper()
	var doc votableDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal VOTable: %v\n%s", err, body)
	}
	return doc
}

func TestQuery_OneRow(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/sia/dp02/query?POS=CIRCLE+320+-0.1+10.7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-votable+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=result.xml" {
		t.Errorf("Content-Disposition = %q", cd)
	}
	doc := parseVOTable(t, rec.Body.Bytes())
	if len(doc.Resources) != 1 || len(doc.Resources[0].Rows) != 1 {
		t.Fatalf("rows = %+v, want exactly one TR", doc.Resources)
	}
	if strings.Count(rec.Body.String(), "<TR>") != 1 {
		t.Errorf("body has %d <TR>, want 1", strings.Count(rec.Body.String(), "<TR>"))
	}
	if s.conn.queries != 1 || len(s.conn.last.Regions) != 1 {
		t.Errorf("backend queries = %d, regions = %v", s.conn.queries, s.conn.last)
	}
}

func TestQuery_UnrecognizedShape(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/sia/dp02/query?POS=SOME_SHAPE+321+0+1", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
	doc := parseVOTable(t, rec.Body.Bytes())
	info := doc.Resources[0].Infos[0]
	if info.Name != "QUERY_STATUS" || info.Value != "ERROR" {
		t.Errorf("INFO = %s=%s, want QUERY_STATUS=ERROR", info.Name, info.Value)
	}
	if !strings.HasPrefix(info.Text, "UsageFault: Unrecognized shape") {
		t.Errorf("INFO text = %q", info.Text)
	}
	if s.conn.queries != 0 {
		t.Errorf("backend queried %d times", s.conn.queries)
	}
}

func TestQuery_SelfDescription(t *testing.T) {
	s := setupTestServer(t)
	for _, target := range []string{"/api/sia/dp02/query?MAXREC=0", "/api/sia/dp02/query"} {
		t.Run(target, func(t *testing.T) {
			rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			body := rec.Body.String()
			if !strings.Contains(body, `utype="adhoc:service"`) {
				t.Error("missing adhoc:service resource")
			}
			if !strings.Contains(body, `name="Rubin band u"`) || !strings.Contains(body, `name="Rubin band g"`) {
				t.Error("missing complete bands")
			}
			if strings.Contains(body, "NB0387") {
				t.Error("partial band emitted")
			}
			if !strings.Contains(body, `value="http://example.com/api/sia/dp02/query"`) {
				t.Error("accessURL not derived from the request")
			}
		})
	}
	if s.conn.queries != 0 {
		t.Errorf("backend queried %d times, want 0", s.conn.queries)
	}
}

func TestQuery_Errors(t *testing.T) {
	s := setupTestServer(t)
	tests := []struct {
		name   string
		target string
		prefix string
	}{
		{"unknown parameter", "/api/sia/dp02/query?FOO=1", "UsageFault: Validation of 'foo' failed"},
		{"bad enum", "/api/sia/dp02/query?POS=CIRCLE+1+2+3&POL=ZZ", "UsageFault: Validation of 'pol' failed: 'ZZ' is not a valid Polarization."},
		{"unknown collection", "/api/sia/dp99/query?POS=CIRCLE+1+2+3", "UsageFault: Name dp99 not found"},
		{"unknown label", "/api/sia/dp02/query?COLLECTION=lsst.dp02", "UsageFault: Label lsst.dp02 not found"},
		{"unknown collection with label", "/api/sia/nosuchcollection/query?COLLECTION=LSST.DP02&POS=CIRCLE+320+-0.1+10.7", "UsageFault: Name nosuchcollection not found"},
		{"bad maxrec", "/api/sia/dp02/query?MAXREC=ten", "UsageFault: Validation of 'maxrec' failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			doc := parseVOTable(t, rec.Body.Bytes())
			if got := doc.Resources[0].Infos[0].Text; !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("INFO text = %q, want prefix %q", got, tt.prefix)
			}
		})
	}
}

func TestQuery_Post(t *testing.T) {
	t.Run("form", func(t *testing.T) {
		s := setupTestServer(t)
		form := url.Values{"pos": {"CIRCLE 320 -0.1 10.7"}, "calib": {"2"}}
		req := httptest.NewRequest(http.MethodPost, "/api/sia/dp02/query", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := s.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if len(s.conn.last.Calib) != 1 || s.conn.last.Calib[0] != 2 {
			t.Errorf("Calib = %v, want [2]", s.conn.last.Calib)
		}
	})

	t.Run("json", func(t *testing.T) {
		s := setupTestServer(t)
		body := `{"POS": "CIRCLE 320 -0.1 10.7", "calib": [2, 3], "maxrec": 5, "target": null}`
		req := httptest.NewRequest(http.MethodPost, "/api/sia/dp02/query", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := s.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		last := s.conn.last
		if len(last.Pos) != 1 || len(last.Calib) != 2 || last.MaxRec == nil || *last.MaxRec != 5 {
			t.Errorf("params = %+v", last)
		}
	})

	t.Run("file upload", func(t *testing.T) {
		s := setupTestServer(t)
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("pos", "CIRCLE 1 2 3")
		fw, _ := mw.CreateFormFile("upload", "table.xml")
		_, _ = io.WriteString(fw, "<VOTABLE/>")
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/sia/dp02/query", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := s.do(req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "UsageFault: File upload not supported") {
			t.Errorf("body = %s", rec.Body.String())
		}
	})
}

func TestVOSI(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/sia/dp02/availability", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("availability status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<available>true</available>") {
		t.Errorf("availability body = %s", rec.Body.String())
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/sia/dp02/capabilities", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("capabilities status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http://example.com/api/sia/dp02/query") {
		t.Errorf("capabilities body = %s", rec.Body.String())
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/sia/nope/availability", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown collection availability status = %d, want 400", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/sia/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got apihttp.IndexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Metadata.Name != "vo-siav2" || len(got.Collections) != 1 || got.Collections[0] != "dp02" {
		t.Errorf("index = %+v", got)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		path string
		want int
	}{
		{"liveness", nil, "/health", http.StatusOK},
		{"live", errors.New("ignored"), "/health/live", http.StatusOK},
		{"ready", nil, "/health/ready", http.StatusOK},
		{"not ready", errors.New("No default Collection found."), "/health/ready", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := apihttp.NewHealthHandler(&mockHealth{err: tt.err})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if strings.HasSuffix(tt.path, "ready") {
				h.Readiness(rec, req)
			} else {
				h.Liveness(rec, req)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMetricsRecorded(t *testing.T) {
	s := setupTestServer(t)
	s.do(httptest.NewRequest(http.MethodGet, "/api/sia/dp02/query?POS=CIRCLE+320+-0.1+10.7", nil))
	s.do(httptest.NewRequest(http.MethodGet, "/api/sia/dp02/query?POS=BOX+1+2", nil))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`sia_requests_total{method="GET",route="/api/sia/{collection}/query",status="2xx"} 1`,
		`sia_requests_total{method="GET",route="/api/sia/{collection}/query",status="4xx"} 1`,
		`sia_faults_total{kind="UsageFault"} 1`,
		`sia_queries_total{backend="DIRECT",collection="dp02",outcome="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestSwaggerDocs(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/sia/docs/doc.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`"/{collection}/query"`,
		`"/{collection}/availability"`,
		`"/health/live"`,
		"Checks that a default collection resolves and backends are initialized",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("swagger document missing %s", want)
		}
	}
}
