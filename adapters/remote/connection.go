package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/ports"
)

// Repository endpoints relative to the repository base URL.
const (
	QueryPath       = "/siav2/query"
	InstrumentsPath = "/dimensions/instrument"
)

// queryRequest is the JSON body of a remote query.
type queryRequest struct {
	ObsCollection string   `json:"obs_collection"`
	Collections   []string `json:"collections"`
	DatasetTypes  []string `json:"dataset_types"`
	Parameters    any      `json:"parameters"`
}

type dimensionRecord struct {
	Name string `json:"name"`
}

// Connection runs queries against one remote repository.
type Connection struct {
	client *Client

	mu       sync.RWMutex
	defaults obscore.Defaults
}

// NewConnection wraps a repository client.
func NewConnection(client *Client) *Connection {
	return &Connection{client: client}
}

// SetDefaults binds implicit query dimensions.
func (c *Connection) SetDefaults(d obscore.Defaults) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults = d
}

// Defaults returns the bound defaults.
func (c *Connection) Defaults() obscore.Defaults {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults
}

// Query posts typed parameters to the repository.
func (c *Connection) Query(ctx context.Context, cfg *obscore.ExporterConfig, params *obscore.Parameters) (*obscore.Table, error) {
	return c.query(ctx, cfg, params.WithDefaults(c.Defaults()))
}

// QueryFields posts untyped parameters to the repository.
func (c *Connection) QueryFields(ctx context.Context, cfg *obscore.ExporterConfig, fields map[string]any) (*obscore.Table, error) {
	if d := c.Defaults(); d.Instrument != "" {
		if _, ok := fields["instrument"]; !ok {
			withDefault := make(map[string]any, len(fields)+1)
			for k, v := range fields {
				withDefault[k] = v
			}
			withDefault["instrument"] = []string{d.Instrument}
			fields = withDefault
		}
	}
	return c.query(ctx, cfg, fields)
}

func (c *Connection) query(ctx context.Context, cfg *obscore.ExporterConfig, params any) (*obscore.Table, error) {
	req := queryRequest{Parameters: params}
	if cfg != nil {
		req.ObsCollection = cfg.ObsCollection
		req.Collections = cfg.Collections
		req.DatasetTypes = datasetTypeNames(cfg)
	}

	var table obscore.Table
	if err := c.client.Request(ctx, http.MethodPost, QueryPath, req, &table); err != nil {
		return nil, classify(err)
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("remote row %d has %d cells, table has %d columns", i, len(row), len(table.Columns))
		}
	}
	if table.Rows == nil {
		table.Rows = [][]any{}
	}
	return &table, nil
}

// Instruments lists the repository's instrument dimension records.
func (c *Connection) Instruments(ctx context.Context) ([]string, error) {
	var records []dimensionRecord
	if err := c.client.Request(ctx, http.MethodGet, InstrumentsPath, nil, &records); err != nil {
		return nil, classify(err)
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out, nil
}

// Close is a no-op; the HTTP pool belongs to the Factory.
func (c *Connection) Close() error {
	return nil
}

// classify maps repository responses onto fault kinds.
func classify(err error) error {
	var re *RemoteError
	if !errors.As(err, &re) {
		return err
	}
	switch re.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return &fault.Fault{Kind: fault.Usage, Detail: re.Message, Err: err}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fault.Wrap(fault.Transient, err)
	default:
		return err
	}
}

func datasetTypeNames(cfg *obscore.ExporterConfig) []string {
	if len(cfg.DatasetTypeOrder) > 0 {
		return cfg.DatasetTypeOrder
	}
	names := make([]string, 0, len(cfg.DatasetTypes))
	for name := range cfg.DatasetTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	_ ports.Connection   = (*Connection)(nil)
	_ ports.FieldQuerier = (*Connection)(nil)
)
