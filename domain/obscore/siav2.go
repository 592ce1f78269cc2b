package obscore

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidValue marks caller input the engine grammar rejects.
var ErrInvalidValue = errors.New("invalid value")

// ValueError is a grammar error. Its message is shown to clients verbatim.
type ValueError struct {
	Msg string
}

func (e *ValueError) Error() string { return e.Msg }

// Is makes every ValueError match ErrInvalidValue.
func (e *ValueError) Is(target error) bool { return target == ErrInvalidValue }

func valueErrorf(format string, args ...any) error {
	return &ValueError{Msg: fmt.Sprintf(format, args...)}
}

// Parameters are the typed engine parameters. Raw strings are kept for
// backends that re-parse them; list fields are never nil.
type Parameters struct {
	Instrument []string `json:"instrument"`
	Pos        []string `json:"pos"`
	Time       []string `json:"time"`
	Band       []string `json:"band"`
	ExpTime    []string `json:"exptime"`
	Calib      []int    `json:"calib"`
	MaxRec     *int     `json:"maxrec,omitempty"`

	Regions       []Region   `json:"-"`
	TimeRanges    []Interval `json:"-"`
	BandRanges    []Interval `json:"-"`
	ExpTimeRanges []Interval `json:"-"`
}

// Defaults are implicit query dimensions bound to a connection.
type Defaults struct {
	Instrument string
}

// ParseSIAv2 validates the SIA v2 grammar of every field and returns the
// engine parameters.
func ParseSIAv2(instrument, pos, time, band, exptime []string, calib []int, maxrec *int) (*Parameters, error) {
	p := &Parameters{
		Instrument: nonNil(instrument),
		Pos:        nonNil(pos),
		Time:       nonNil(time),
		Band:       nonNil(band),
		ExpTime:    nonNil(exptime),
		Calib:      make([]int, 0, len(calib)),
	}

	for _, c := range calib {
		if c < 0 || c > 3 {
			return nil, valueErrorf("Invalid calibration level %d", c)
		}
		p.Calib = append(p.Calib, c)
	}
	if maxrec != nil {
		if *maxrec < 0 {
			return nil, valueErrorf("MAXREC must not be negative, got %d", *maxrec)
		}
		n := *maxrec
		p.MaxRec = &n
	}

	for _, raw := range p.Pos {
		region, err := ParseRegion(raw)
		if err != nil {
			return nil, err
		}
		p.Regions = append(p.Regions, region)
	}

	var err error
	if p.TimeRanges, err = parseIntervals(p.Time); err != nil {
		return nil, err
	}
	if p.BandRanges, err = parseIntervals(p.Band); err != nil {
		return nil, err
	}
	if p.ExpTimeRanges, err = parseIntervals(p.ExpTime); err != nil {
		return nil, err
	}
	return p, nil
}

// WithDefaults returns a copy with defaults applied to unset dimensions.
func (p *Parameters) WithDefaults(d Defaults) *Parameters {
	out := *p
	if len(out.Instrument) == 0 && d.Instrument != "" {
		out.Instrument = []string{d.Instrument}
	}
	return &out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// Interval is a closed numeric range. Either bound may be infinite.
type Interval struct {
	Low  float64
	High float64
}

// Contains reports whether v lies in the interval.
func (i Interval) Contains(v float64) bool {
	return v >= i.Low && v <= i.High
}

// Overlaps reports whether [lo, hi] intersects the interval.
func (i Interval) Overlaps(lo, hi float64) bool {
	return lo <= i.High && hi >= i.Low
}

// ParseInterval parses "v" or "low high".
func ParseInterval(raw string) (Interval, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 || len(fields) > 2 {
		return Interval{}, valueErrorf("Interval must have one or two values, got '%s'", raw)
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return Interval{}, err
		}
		values[i] = v
	}
	iv := Interval{Low: values[0], High: values[len(values)-1]}
	if iv.Low > iv.High {
		return Interval{}, valueErrorf("Interval lower bound %s exceeds upper bound %s in '%s'", fields[0], fields[1], raw)
	}
	return iv, nil
}

func parseIntervals(raws []string) ([]Interval, error) {
	out := make([]Interval, 0, len(raws))
	for _, raw := range raws {
		iv, err := ParseInterval(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

func parseFloat(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) {
		return 0, valueErrorf("could not convert string to float: '%s'", tok)
	}
	return v, nil
}

// Region is a sky region from a POS constraint. Coordinates are degrees.
type Region interface {
	Contains(ra, dec float64) bool
	String() string
}

// Circle is a cone around a centre.
type Circle struct {
	RA, Dec, Radius float64
}

func (c Circle) Contains(ra, dec float64) bool {
	return angularDistance(c.RA, c.Dec, ra, dec) <= c.Radius
}

func (c Circle) String() string {
	return fmt.Sprintf("CIRCLE %g %g %g", c.RA, c.Dec, c.Radius)
}

// Range is a box in RA and Dec. An RA range with RAMin > RAMax wraps
// through zero.
type Range struct {
	RAMin, RAMax, DecMin, DecMax float64
}

func (r Range) Contains(ra, dec float64) bool {
	if dec < r.DecMin || dec > r.DecMax {
		return false
	}
	ra = normalizeRA(ra)
	lo, hi := r.RAMin, r.RAMax
	if math.IsInf(lo, -1) || math.IsInf(hi, 1) {
		return ra >= lo && ra <= hi
	}
	lo, hi = normalizeRA(lo), normalizeRA(hi)
	if lo <= hi {
		return ra >= lo && ra <= hi
	}
	return ra >= lo || ra <= hi
}

func (r Range) String() string {
	return fmt.Sprintf("RANGE %g %g %g %g", r.RAMin, r.RAMax, r.DecMin, r.DecMax)
}

// Polygon is a closed polygon given by its vertices.
type Polygon struct {
	Vertices [][2]float64
}

// Contains uses ray casting in the RA/Dec plane.
func (p Polygon) Contains(ra, dec float64) bool {
	inside := false
	n := len(p.Vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p.Vertices[i][0], p.Vertices[i][1]
		xj, yj := p.Vertices[j][0], p.Vertices[j][1]
		if (yi > dec) != (yj > dec) && ra < (xj-xi)*(dec-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func (p Polygon) String() string {
	var b strings.Builder
	b.WriteString("POLYGON")
	for _, v := range p.Vertices {
		fmt.Fprintf(&b, " %g %g", v[0], v[1])
	}
	return b.String()
}

// ParseRegion parses a POS value: CIRCLE, RANGE or POLYGON, with the
// shape keyword matched case-insensitively.
func ParseRegion(raw string) (Region, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, valueErrorf("Unrecognized shape in POS string '%s'", raw)
	}

	shape := strings.ToUpper(fields[0])
	switch shape {
	case "CIRCLE", "RANGE", "POLYGON":
	default:
		return nil, valueErrorf("Unrecognized shape in POS string '%s'", raw)
	}

	values := make([]float64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		v, err := parseFloat(f)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	switch shape {
	case "CIRCLE":
		if len(values) != 3 {
			return nil, valueErrorf("CIRCLE requires 3 values in POS string '%s'", raw)
		}
		if values[2] < 0 {
			return nil, valueErrorf("CIRCLE radius must not be negative in POS string '%s'", raw)
		}
		return Circle{RA: values[0], Dec: values[1], Radius: values[2]}, nil
	case "RANGE":
		if len(values) != 4 {
			return nil, valueErrorf("RANGE requires 4 values in POS string '%s'", raw)
		}
		if values[2] > values[3] {
			return nil, valueErrorf("RANGE declination bounds are reversed in POS string '%s'", raw)
		}
		return Range{RAMin: values[0], RAMax: values[1], DecMin: values[2], DecMax: values[3]}, nil
	default:
		if len(values) < 6 || len(values)%2 != 0 {
			return nil, valueErrorf("POLYGON requires at least 3 vertex pairs in POS string '%s'", raw)
		}
		poly := Polygon{Vertices: make([][2]float64, 0, len(values)/2)}
		for i := 0; i < len(values); i += 2 {
			poly.Vertices = append(poly.Vertices, [2]float64{values[i], values[i+1]})
		}
		return poly, nil
	}
}

func normalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

// angularDistance returns the great-circle distance in degrees.
func angularDistance(ra1, dec1, ra2, dec2 float64) float64 {
	const rad = math.Pi / 180
	dRA := (ra2 - ra1) * rad
	dDec := (dec2 - dec1) * rad
	a := math.Sin(dDec/2)*math.Sin(dDec/2) +
		math.Cos(dec1*rad)*math.Cos(dec2*rad)*math.Sin(dRA/2)*math.Sin(dRA/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(a))) / rad
}
