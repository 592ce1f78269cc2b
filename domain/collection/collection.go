// Package collection provides data collection value types and the
// registry that resolves them by label, by name or as the default.
package collection

import (
	"errors"

	"github.com/lsst-sqre/vo-siav2/domain/enum"
)

// BackendKind identifies how a collection's repository is reached.
type BackendKind string

const (
	// BackendDirect is a repository opened locally and read-only.
	BackendDirect BackendKind = "DIRECT"
	// BackendRemote is a label-addressed, token-authenticated repository.
	BackendRemote BackendKind = "REMOTE"
)

// BackendKinds resolves configuration values such as "direct" or "Remote".
var BackendKinds = enum.New("BackendKind", BackendDirect, BackendRemote)

// ErrNotFound is returned when no collection matches a lookup.
var ErrNotFound = errors.New("collection not found")

// DataCollection is one queryable dataset (immutable value type).
type DataCollection struct {
	// Name addresses the collection in URLs.
	Name string
	// Label binds the collection to a remote repository.
	Label string
	// Config is the location of the ObsCore export configuration.
	Config string
	// Repository is the location of the data store.
	Repository string
	Backend    BackendKind

	DefaultInstrument string
	Default           bool
	// DatalinkURL overrides every dataset type's datalink format when set.
	DatalinkURL string
}

// HasBinding reports whether the collection can seed a remote factory.
func (c DataCollection) HasBinding() bool {
	return c.Label != "" && c.Repository != ""
}
