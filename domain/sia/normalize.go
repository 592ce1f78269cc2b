package sia

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lsst-sqre/vo-siav2/domain/fault"
)

// singleValued lists the keys that keep only their first value.
var singleValued = map[string]bool{
	"maxrec":         true,
	"responseformat": true,
}

var errUnknownParameter = errors.New("unknown parameter")

// FoldKeys lower-cases every key and merges the values of keys that fold
// to the same name. Original keys are visited in sorted byte order, so
// for {"POS": [a], "pos": [b]} the result is pos=[a b].
func FoldKeys(raw map[string][]string) map[string][]string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string][]string, len(raw))
	for _, k := range keys {
		lower := strings.ToLower(k)
		out[lower] = append(out[lower], raw[k]...)
	}
	return out
}

// Normalize builds Params from a raw multi-valued parameter map.
// Key case is ignored. Every invalid field is reported in a single
// UsageFault.
func Normalize(raw map[string][]string) (*Params, error) {
	merged := FoldKeys(raw)

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := &Params{}
	var problems []string
	for _, key := range keys {
		values := merged[key]
		if len(values) == 0 {
			continue
		}
		if singleValued[key] {
			values = values[:1]
		}
		if err := p.assign(key, values); err != nil {
			problems = append(problems, fmt.Sprintf("Validation of '%s' failed: %s.", key, err))
		}
	}
	if len(problems) > 0 {
		return nil, fault.New(fault.Usage, strings.Join(problems, " "))
	}

	p.Finalize()
	return p, nil
}

func (p *Params) assign(key string, values []string) error {
	var err error
	switch key {
	case "pos":
		p.Pos = values
	case "time":
		p.Time = values
	case "band":
		p.Band = values
	case "fov":
		p.FOV = values
	case "spatres":
		p.SpatRes = values
	case "exptime":
		p.ExpTime = values
	case "timeres":
		p.TimeRes = values
	case "specrp":
		p.SpecRP = values
	case "pol":
		p.Pol, err = Polarizations.ResolveAll(trimAll(values))
	case "dptype":
		p.DPType, err = DPTypes.ResolveAll(trimAll(values))
	case "calib":
		p.Calib, err = CalibLevels.ResolveAll(trimAll(values))
	case "id":
		p.ID = values
	case "target":
		p.Target = values
	case "collection":
		p.Collection = values
	case "facility":
		p.Facility = values
	case "instrument":
		p.Instrument = values
	case "format":
		p.Format = values
	case "maxrec":
		var n int
		n, err = parseMaxRec(values[0])
		if err == nil {
			p.MaxRec = &n
		}
	case "responseformat":
		p.ResponseFormat, err = ResponseFormats.Resolve(strings.TrimSpace(values[0]))
	default:
		err = errUnknownParameter
	}
	return err
}

func parseMaxRec(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a valid integer", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("'%s' must not be negative", raw)
	}
	return n, nil
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
