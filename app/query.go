package app

import (
	"bytes"
	"context"
	"time"

	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/domain/sia"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/rs/zerolog"
)

// ResultDisposition is sent with every successful query response.
const ResultDisposition = "attachment; filename=result.xml"

// QueryDeps contains dependencies for QueryService.
type QueryDeps struct {
	Registry *collection.Registry
	Engines  *EngineFactory
	Writer   ports.ResultWriter
	Metrics  ports.QueryMetrics
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   zerolog.Logger
}

// QueryService runs SIA queries end to end.
type QueryService struct {
	registry *collection.Registry
	engines  *EngineFactory
	writer   ports.ResultWriter
	metrics  ports.QueryMetrics
	clock    ports.Clock
	idGen    ports.IDGenerator
	logger   zerolog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(deps QueryDeps) *QueryService {
	return &QueryService{
		registry: deps.Registry,
		engines:  deps.Engines,
		writer:   deps.Writer,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		logger:   deps.Logger,
	}
}

// QueryRequest is one query after parameter normalization.
type QueryRequest struct {
	Params *sia.Params
	// Collection is the collection addressed by the request path.
	Collection string
	// Backend overrides the collection's backend kind when set.
	Backend collection.BackendKind
	// Token is the delegated credential for REMOTE backends.
	Token string
	// AccessURL is the query endpoint advertised in self-descriptions.
	AccessURL string
}

// QueryResponse is a serialized query result.
type QueryResponse struct {
	QueryID            string
	ContentType        string
	ContentDisposition string
	Body               []byte
	Rows               int
	Overflow           bool
	SelfDescription    bool
}

// Process resolves the collection, binds an engine and either describes
// the service (MAXREC=0) or runs the query and serializes its rows.
func (s *QueryService) Process(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	start := s.now()
	queryID := s.newID()
	logger := s.logger.With().Str("query_id", queryID).Logger()

	if req.Params == nil {
		return nil, fault.Usagef("No query parameters")
	}

	coll, err := s.resolveCollection(req)
	if err != nil {
		s.recordQuery("", req.Backend, err, start)
		return nil, err
	}
	kind := req.Backend
	if kind == "" {
		kind = coll.Backend
	}

	resp, err := s.run(ctx, logger, req, coll, kind)
	s.recordQuery(coll.Name, kind, err, start)
	if err != nil {
		return nil, err
	}
	resp.QueryID = queryID
	logger.Info().
		Str("collection", coll.Name).
		Str("backend", string(kind)).
		Int("rows", resp.Rows).
		Bool("overflow", resp.Overflow).
		Bool("self_description", resp.SelfDescription).
		Msg("query completed")
	return resp, nil
}

func (s *QueryService) run(ctx context.Context, logger zerolog.Logger, req QueryRequest, coll collection.DataCollection, kind collection.BackendKind) (*QueryResponse, error) {
	engine, err := s.engines.Create(ctx, coll, kind, req.Token)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close engine")
		}
	}()

	var buf bytes.Buffer
	resp := &QueryResponse{
		ContentType:        s.writer.ContentType(),
		ContentDisposition: ResultDisposition,
	}

	if req.Params.SelfDescription() {
		desc, err := s.describe(ctx, engine, coll, req.AccessURL)
		if err != nil {
			return nil, err
		}
		if err := s.writer.WriteSelfDescription(&buf, desc); err != nil {
			return nil, err
		}
		resp.SelfDescription = true
		resp.Body = buf.Bytes()
		return resp, nil
	}

	params, err := AdapterFor(kind)(req.Params)
	if err != nil {
		return nil, err
	}
	table, err := engine.Execute(ctx, params)
	if err != nil {
		return nil, err
	}
	if table == nil {
		table = obscore.NewTable(obscore.StandardColumns())
	}
	if req.Params.MaxRec != nil {
		resp.Overflow = table.Truncate(*req.Params.MaxRec)
	}
	if err := s.writer.WriteTable(&buf, table, resp.Overflow); err != nil {
		return nil, err
	}
	resp.Rows = table.Len()
	resp.Body = buf.Bytes()
	return resp, nil
}

// resolveCollection checks the path collection (by name) first, then lets
// the first COLLECTION parameter (by label) override it. With neither, the
// registry default is used.
func (s *QueryService) resolveCollection(req QueryRequest) (collection.DataCollection, error) {
	var (
		coll collection.DataCollection
		err  error
	)
	if req.Collection != "" {
		coll, err = s.registry.ByName(req.Collection)
		if err != nil {
			return collection.DataCollection{}, err
		}
	}
	if label, ok := req.Params.RequestedCollection(); ok {
		return s.registry.ByLabel(label)
	}
	if req.Collection != "" {
		return coll, nil
	}
	return s.registry.Default()
}

func (s *QueryService) describe(ctx context.Context, engine *Engine, coll collection.DataCollection, accessURL string) (sia.ServiceDescription, error) {
	instruments, err := engine.Instruments(ctx)
	if err != nil {
		return sia.ServiceDescription{}, err
	}
	cfg := engine.Config
	desc := sia.ServiceDescription{
		ResourceIdentifier: sia.ResourceIdentifier(coll.Name),
		AccessURL:          accessURL,
		Instruments:        instruments,
	}
	if cfg != nil {
		desc.FacilityName = cfg.FacilityName
		desc.Bands = obscore.DeriveBands(cfg)
		if cfg.ObsCollection != "" {
			desc.Collections = []string{cfg.ObsCollection}
		}
	}
	return desc, nil
}

func (s *QueryService) recordQuery(name string, kind collection.BackendKind, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = fault.KindOf(err).String()
	}
	s.metrics.RecordQuery(name, string(kind), outcome, s.now().Sub(start))
}

func (s *QueryService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *QueryService) newID() string {
	if s.idGen == nil {
		return ""
	}
	return s.idGen.New()
}
