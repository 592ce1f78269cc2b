package direct

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/ports"
)

// datalinkFormat is the access format of rows served through datalink.
const datalinkFormat = "application/x-votable+xml;content=datalink"

// Connection queries the obscore table of one repository.
type Connection struct {
	db      *sql.DB
	dialect Dialect

	mu       sync.RWMutex
	defaults obscore.Defaults
}

// NewConnection wraps an open database.
func NewConnection(db *sql.DB, dialect Dialect) *Connection {
	return &Connection{db: db, dialect: dialect}
}

// SetDefaults binds implicit query dimensions.
func (c *Connection) SetDefaults(d obscore.Defaults) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults = d
}

// Close closes the underlying database.
func (c *Connection) Close() error {
	return c.db.Close()
}

// Instruments returns the distinct instrument names in the repository.
func (c *Connection) Instruments(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT DISTINCT instrument_name FROM obscore
		WHERE instrument_name IS NOT NULL
		ORDER BY instrument_name
	`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Query selects matching ObsCore rows. Spatial constraints are applied
// after the SQL filter.
func (c *Connection) Query(ctx context.Context, cfg *obscore.ExporterConfig, params *obscore.Parameters) (*obscore.Table, error) {
	c.mu.RLock()
	params = params.WithDefaults(c.defaults)
	c.mu.RUnlock()

	columns := obscore.StandardColumns()
	query, args := c.buildQuery(cfg, params, columns)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query obscore: %w", err)
	}
	defer rows.Close()

	table := obscore.NewTable(columns)
	raIdx, decIdx := table.ColumnIndex("s_ra"), table.ColumnIndex("s_dec")
	for rows.Next() {
		cells := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan obscore row: %w", err)
		}
		for i, v := range cells {
			cells[i] = normalizeCell(v)
		}

		if len(params.Regions) > 0 && !inAnyRegion(params.Regions, cells[raIdx], cells[decIdx]) {
			continue
		}
		applyDatalink(cfg, table, cells)
		if err := table.Append(cells); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read obscore rows: %w", err)
	}
	return table, nil
}

func (c *Connection) buildQuery(cfg *obscore.ExporterConfig, params *obscore.Parameters, columns []obscore.Column) (string, []any) {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}

	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		if c.dialect == Postgres {
			return "$" + strconv.Itoa(len(args))
		}
		return "?"
	}
	in := func(column string, values []any) {
		if len(values) == 0 {
			return
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = bind(v)
		}
		where = append(where, column+" IN ("+strings.Join(marks, ", ")+")")
	}
	overlaps := func(lowCol, highCol string, intervals []obscore.Interval) {
		if len(intervals) == 0 {
			return
		}
		var alts []string
		for _, iv := range intervals {
			var conds []string
			if !math.IsInf(iv.High, 1) {
				conds = append(conds, lowCol+" <= "+bind(iv.High))
			}
			if !math.IsInf(iv.Low, -1) {
				conds = append(conds, highCol+" >= "+bind(iv.Low))
			}
			if len(conds) == 0 {
				return
			}
			alts = append(alts, "("+strings.Join(conds, " AND ")+")")
		}
		where = append(where, "("+strings.Join(alts, " OR ")+")")
	}

	if cfg != nil && cfg.ObsCollection != "" {
		where = append(where, "obs_collection = "+bind(cfg.ObsCollection))
	}
	in("instrument_name", toAny(params.Instrument))
	calib := make([]any, len(params.Calib))
	for i, v := range params.Calib {
		calib[i] = v
	}
	in("calib_level", calib)
	overlaps("t_min", "t_max", params.TimeRanges)
	overlaps("em_min", "em_max", params.BandRanges)
	overlaps("t_exptime", "t_exptime", params.ExpTimeRanges)

	query := "SELECT " + strings.Join(names, ", ") + " FROM obscore"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY obs_id"
	// One extra row lets the caller detect overflow.
	if params.MaxRec != nil && *params.MaxRec < math.MaxInt && len(params.Regions) == 0 {
		query += " LIMIT " + bind(*params.MaxRec+1)
	}
	return query, args
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func normalizeCell(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func inAnyRegion(regions []obscore.Region, ra, dec any) bool {
	raVal, okRA := toFloat(ra)
	decVal, okDec := toFloat(dec)
	if !okRA || !okDec {
		return false
	}
	for _, r := range regions {
		if r.Contains(raVal, decVal) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// applyDatalink rewrites access_url for dataset types exported through
// datalink. The format's {id} placeholder takes obs_publisher_did.
func applyDatalink(cfg *obscore.ExporterConfig, table *obscore.Table, cells []any) {
	if cfg == nil {
		return
	}
	subtype, _ := cells[table.ColumnIndex("dataproduct_subtype")].(string)
	if subtype == "" {
		return
	}
	for _, dt := range cfg.DatasetTypes {
		if dt.DataproductSubtype != subtype || dt.DatalinkURLFmt == "" {
			continue
		}
		did, _ := cells[table.ColumnIndex("obs_publisher_did")].(string)
		cells[table.ColumnIndex("access_url")] = strings.ReplaceAll(dt.DatalinkURLFmt, "{id}", did)
		cells[table.ColumnIndex("access_format")] = datalinkFormat
		return
	}
}

var _ ports.Connection = (*Connection)(nil)
