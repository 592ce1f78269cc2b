package app

import (
	"errors"

	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/domain/sia"
)

// EngineParams is a query in the shape a backend accepts. Exactly one of
// Typed or Fields is set.
type EngineParams struct {
	Typed  *obscore.Parameters
	Fields map[string]any
}

// IsTyped reports whether the parameters went through the typed adapter.
func (p EngineParams) IsTyped() bool {
	return p.Typed != nil
}

// ParamAdapter converts validated parameters for one backend kind.
type ParamAdapter func(p *sia.Params) (EngineParams, error)

var paramAdapters = map[collection.BackendKind]ParamAdapter{
	collection.BackendDirect: TypedAdapter,
	collection.BackendRemote: TypedAdapter,
}

// AdapterFor returns the adapter registered for kind. Unknown kinds get
// the generic adapter.
func AdapterFor(kind collection.BackendKind) ParamAdapter {
	if a, ok := paramAdapters[kind]; ok {
		return a
	}
	return GenericAdapter
}

// GenericAdapter maps set fields by name. Unset fields are omitted.
func GenericAdapter(p *sia.Params) (EngineParams, error) {
	return EngineParams{Fields: p.Fields()}, nil
}

// TypedAdapter builds the typed engine parameters. Grammar errors from
// the backend parser become UsageFaults carrying the parser's message.
func TypedAdapter(p *sia.Params) (EngineParams, error) {
	typed, err := obscore.ParseSIAv2(p.Instrument, p.Pos, p.Time, p.Band, p.ExpTime, p.CalibInts(), p.MaxRec)
	if err != nil {
		if errors.Is(err, obscore.ErrInvalidValue) {
			return EngineParams{}, fault.Wrap(fault.Usage, err)
		}
		return EngineParams{}, err
	}
	return EngineParams{Typed: typed}, nil
}
