// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/domain/sia"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Repository Ports
// -----------------------------------------------------------------------------

// Connection is an open handle on one data repository.
type Connection interface {
	// Query runs an SIA query and returns ObsCore rows.
	Query(ctx context.Context, cfg *obscore.ExporterConfig, params *obscore.Parameters) (*obscore.Table, error)

	// Instruments lists the instrument names known to the repository.
	Instruments(ctx context.Context) ([]string, error)

	// SetDefaults binds implicit query dimensions.
	SetDefaults(d obscore.Defaults)

	// Close releases the connection.
	Close() error
}

// FieldQuerier is implemented by connections that accept untyped
// parameters keyed by SIA field name.
type FieldQuerier interface {
	QueryFields(ctx context.Context, cfg *obscore.ExporterConfig, fields map[string]any) (*obscore.Table, error)
}

// DirectOpener opens read-only connections to local repositories.
type DirectOpener interface {
	Open(ctx context.Context, repository string) (Connection, error)
}

// RemoteFactory hands out connections to label-addressed repositories.
type RemoteFactory interface {
	// Connect returns a connection for the label, authenticated with token.
	Connect(ctx context.Context, label, token string) (Connection, error)
}

// ManagedRemoteFactory is a RemoteFactory with an explicit lifecycle.
// Initialize is called once at startup with the label to repository
// bindings; Close releases pooled connections at shutdown.
type ManagedRemoteFactory interface {
	RemoteFactory
	Initialize(bindings map[string]string)
	Initialized() bool
	Close() error
}

// ExportConfigLoader loads ObsCore export configurations by location.
type ExportConfigLoader interface {
	Load(ctx context.Context, location string) (*obscore.ExporterConfig, error)
}

// -----------------------------------------------------------------------------
// Response Ports
// -----------------------------------------------------------------------------

// ResultWriter serializes query results.
type ResultWriter interface {
	// ContentType is the media type of written documents.
	ContentType() string

	// WriteTable writes a result table. overflow marks a table cut at MAXREC.
	WriteTable(w io.Writer, t *obscore.Table, overflow bool) error

	// WriteSelfDescription writes the MAXREC=0 service description.
	WriteSelfDescription(w io.Writer, d sia.ServiceDescription) error
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// QueryMetrics records query pipeline events.
type QueryMetrics interface {
	RecordQuery(collection, backend, outcome string, duration time.Duration)
	RecordEngineCreation(backend, result string)
	RecordAvailabilityCheck(backend string, available bool)
}
