// Package sia provides the canonical SIA v2 query parameter model.
// A Params value is built once per request by Normalize and is not
// mutated afterwards.
package sia

import (
	"github.com/lsst-sqre/vo-siav2/domain/enum"
)

// Polarization is an SIA polarization state.
type Polarization string

const (
	PolI  Polarization = "I"
	PolQ  Polarization = "Q"
	PolU  Polarization = "U"
	PolV  Polarization = "V"
	PolRR Polarization = "RR"
	PolLL Polarization = "LL"
	PolRL Polarization = "RL"
	PolLR Polarization = "LR"
	PolXX Polarization = "XX"
	PolYY Polarization = "YY"
	PolXY Polarization = "XY"
	PolYX Polarization = "YX"
)

// DPType is an ObsCore data product type.
type DPType string

const (
	DPTypeImage DPType = "image"
	DPTypeCube  DPType = "cube"
)

// CalibLevel is an ObsCore calibration level.
type CalibLevel int

const (
	CalibRaw      CalibLevel = 0
	CalibInstr    CalibLevel = 1
	CalibScience  CalibLevel = 2
	CalibEnhanced CalibLevel = 3
)

// Enumerations used when coercing raw values.
var (
	Polarizations = enum.New("Polarization",
		PolI, PolQ, PolU, PolV, PolRR, PolLL, PolRL, PolLR, PolXX, PolYY, PolXY, PolYX)
	DPTypes     = enum.New("DPType", DPTypeImage, DPTypeCube)
	CalibLevels = enum.New("CalibLevel", CalibRaw, CalibInstr, CalibScience, CalibEnhanced)
)

// ResponseFormats is the allow-list for RESPONSEFORMAT.
var ResponseFormats = enum.New("ResponseFormat",
	"votable", "application/x-votable", "application/x-votable+xml")

// Params holds one query's parameters. A nil slice means the field was not
// supplied; MaxRec is nil when MAXREC was not supplied.
type Params struct {
	Pos     []string
	Time    []string
	Band    []string
	FOV     []string
	SpatRes []string
	ExpTime []string
	TimeRes []string
	SpecRP  []string

	Pol    []Polarization
	DPType []DPType
	Calib  []CalibLevel

	ID         []string
	Target     []string
	Collection []string
	Facility   []string
	Instrument []string

	MaxRec         *int
	ResponseFormat string
	Format         []string
}

// IsEmpty reports whether every field other than MaxRec and
// ResponseFormat is unset.
func (p *Params) IsEmpty() bool {
	return len(p.Pos) == 0 &&
		len(p.Time) == 0 &&
		len(p.Band) == 0 &&
		len(p.FOV) == 0 &&
		len(p.SpatRes) == 0 &&
		len(p.ExpTime) == 0 &&
		len(p.TimeRes) == 0 &&
		len(p.SpecRP) == 0 &&
		len(p.Pol) == 0 &&
		len(p.DPType) == 0 &&
		len(p.Calib) == 0 &&
		len(p.ID) == 0 &&
		len(p.Target) == 0 &&
		len(p.Collection) == 0 &&
		len(p.Facility) == 0 &&
		len(p.Instrument) == 0 &&
		len(p.Format) == 0
}

// Finalize applies the self-description rule: an otherwise empty query
// becomes MAXREC=0. It is idempotent.
func (p *Params) Finalize() {
	if p.IsEmpty() {
		zero := 0
		p.MaxRec = &zero
	}
}

// SelfDescription reports whether the query asks for the service
// description instead of data.
func (p *Params) SelfDescription() bool {
	return p.MaxRec != nil && *p.MaxRec == 0
}

// RequestedCollection returns the first requested collection, if any.
// Only the first one is honoured.
func (p *Params) RequestedCollection() (string, bool) {
	if len(p.Collection) == 0 {
		return "", false
	}
	return p.Collection[0], true
}

// CalibInts returns the calibration levels as plain integers.
func (p *Params) CalibInts() []int {
	out := make([]int, 0, len(p.Calib))
	for _, c := range p.Calib {
		out = append(out, int(c))
	}
	return out
}

// Fields returns the set fields keyed by their lower-case parameter name.
// Unset fields are omitted rather than reported as nil.
func (p *Params) Fields() map[string]any {
	out := make(map[string]any)
	putStrings := func(name string, v []string) {
		if len(v) > 0 {
			out[name] = append([]string(nil), v...)
		}
	}
	putStrings("pos", p.Pos)
	putStrings("time", p.Time)
	putStrings("band", p.Band)
	putStrings("fov", p.FOV)
	putStrings("spatres", p.SpatRes)
	putStrings("exptime", p.ExpTime)
	putStrings("timeres", p.TimeRes)
	putStrings("specrp", p.SpecRP)
	if len(p.Pol) > 0 {
		pol := make([]string, len(p.Pol))
		for i, v := range p.Pol {
			pol[i] = string(v)
		}
		out["pol"] = pol
	}
	if len(p.DPType) > 0 {
		dp := make([]string, len(p.DPType))
		for i, v := range p.DPType {
			dp[i] = string(v)
		}
		out["dptype"] = dp
	}
	if len(p.Calib) > 0 {
		out["calib"] = p.CalibInts()
	}
	putStrings("id", p.ID)
	putStrings("target", p.Target)
	putStrings("collection", p.Collection)
	putStrings("facility", p.Facility)
	putStrings("instrument", p.Instrument)
	if p.MaxRec != nil {
		out["maxrec"] = *p.MaxRec
	}
	if p.ResponseFormat != "" {
		out["responseformat"] = p.ResponseFormat
	}
	putStrings("format", p.Format)
	return out
}
