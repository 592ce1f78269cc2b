package sia

import "github.com/lsst-sqre/vo-siav2/domain/obscore"

// Standard identifiers advertised by the service.
const (
	StandardID     = "ivo://ivoa.net/std/SIA#query-2.0"
	ResourcePrefix = "ivo://rubin/"
)

// ServiceDescription is the content of a MAXREC=0 response.
type ServiceDescription struct {
	ResourceIdentifier string
	AccessURL          string
	FacilityName       string
	Collections        []string
	Instruments        []string
	Bands              []obscore.BandInfo
}

// ResourceIdentifier returns the IVOA identifier for a collection name.
func ResourceIdentifier(name string) string {
	return ResourcePrefix + name
}

// Availability is a VOSI availability report.
type Availability struct {
	Available bool
	Notes     []string
}

// Capabilities lists the VOSI endpoints of one collection.
type Capabilities struct {
	CapabilitiesURL string
	AvailabilityURL string
	QueryURL        string
}
