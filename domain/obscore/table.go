package obscore

import "fmt"

// Column describes one ObsCore column.
type Column struct {
	Name      string `json:"name"`
	Datatype  string `json:"datatype"`
	Arraysize string `json:"arraysize,omitempty"`
	Unit      string `json:"unit,omitempty"`
	UCD       string `json:"ucd,omitempty"`
	Utype     string `json:"utype,omitempty"`
}

// Table is a query result: ordered columns and rows aligned with them.
// A nil cell is a null value.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []Column) *Table {
	return &Table{Columns: columns, Rows: [][]any{}}
}

// Append adds a row. The row must have one cell per column.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Truncate keeps at most n rows and reports whether rows were dropped.
func (t *Table) Truncate(n int) bool {
	if n < 0 || len(t.Rows) <= n {
		return false
	}
	t.Rows = t.Rows[:n]
	return true
}

// StandardColumns returns the ObsCore columns every backend produces, in
// result order.
func StandardColumns() []Column {
	return []Column{
		{Name: "dataproduct_type", Datatype: "char", Arraysize: "*", UCD: "meta.code.class", Utype: "obscore:ObsDataset.dataProductType"},
		{Name: "dataproduct_subtype", Datatype: "char", Arraysize: "*", UCD: "meta.code.class", Utype: "obscore:ObsDataset.dataProductSubtype"},
		{Name: "calib_level", Datatype: "int", UCD: "meta.code;obs.calib", Utype: "obscore:ObsDataset.calibLevel"},
		{Name: "obs_collection", Datatype: "char", Arraysize: "*", UCD: "meta.id", Utype: "obscore:DataID.Collection"},
		{Name: "obs_id", Datatype: "char", Arraysize: "*", UCD: "meta.id", Utype: "obscore:DataID.observationID"},
		{Name: "obs_publisher_did", Datatype: "char", Arraysize: "*", UCD: "meta.ref.uri;meta.curation", Utype: "obscore:Curation.PublisherDID"},
		{Name: "access_url", Datatype: "char", Arraysize: "*", UCD: "meta.ref.url", Utype: "obscore:Access.Reference"},
		{Name: "access_format", Datatype: "char", Arraysize: "*", UCD: "meta.code.mime", Utype: "obscore:Access.Format"},
		{Name: "s_ra", Datatype: "double", Unit: "deg", UCD: "pos.eq.ra", Utype: "obscore:Char.SpatialAxis.Coverage.Location.Coord.Position2D.Value2.C1"},
		{Name: "s_dec", Datatype: "double", Unit: "deg", UCD: "pos.eq.dec", Utype: "obscore:Char.SpatialAxis.Coverage.Location.Coord.Position2D.Value2.C2"},
		{Name: "s_fov", Datatype: "double", Unit: "deg", UCD: "phys.angSize;instr.fov", Utype: "obscore:Char.SpatialAxis.Coverage.Bounds.Extent.diameter"},
		{Name: "s_region", Datatype: "char", Arraysize: "*", UCD: "pos.outline;obs.field", Utype: "obscore:Char.SpatialAxis.Coverage.Support.Area"},
		{Name: "t_min", Datatype: "double", Unit: "d", UCD: "time.start;obs.exposure", Utype: "obscore:Char.TimeAxis.Coverage.Bounds.Limits.StartTime"},
		{Name: "t_max", Datatype: "double", Unit: "d", UCD: "time.end;obs.exposure", Utype: "obscore:Char.TimeAxis.Coverage.Bounds.Limits.StopTime"},
		{Name: "t_exptime", Datatype: "double", Unit: "s", UCD: "time.duration;obs.exposure", Utype: "obscore:Char.TimeAxis.Coverage.Support.Extent"},
		{Name: "em_min", Datatype: "double", Unit: "m", UCD: "em.wl;stat.min", Utype: "obscore:Char.SpectralAxis.Coverage.Bounds.Limits.LoLimit"},
		{Name: "em_max", Datatype: "double", Unit: "m", UCD: "em.wl;stat.max", Utype: "obscore:Char.SpectralAxis.Coverage.Bounds.Limits.HiLimit"},
		{Name: "pol_states", Datatype: "char", Arraysize: "*", UCD: "meta.code;phys.polarization", Utype: "obscore:Char.PolarizationAxis.stateList"},
		{Name: "facility_name", Datatype: "char", Arraysize: "*", UCD: "meta.id;instr.tel", Utype: "obscore:Provenance.ObsConfig.Facility.name"},
		{Name: "instrument_name", Datatype: "char", Arraysize: "*", UCD: "meta.id;instr", Utype: "obscore:Provenance.ObsConfig.Instrument.name"},
		{Name: "target_name", Datatype: "char", Arraysize: "*", UCD: "meta.id;src", Utype: "obscore:Target.Name"},
		{Name: "o_ucd", Datatype: "char", Arraysize: "*", UCD: "meta.ucd", Utype: "obscore:Char.ObservableAxis.ucd"},
	}
}
