package votable

import (
	"encoding/xml"
	"io"

	"github.com/lsst-sqre/vo-siav2/domain/sia"
)

// VOSI namespaces and standard identifiers.
const (
	AvailabilityNamespace = "http://www.ivoa.net/xml/VOSIAvailability/v1.0"
	CapabilitiesNamespace = "http://www.ivoa.net/xml/VOSICapabilities/v1.0"
	VODataServiceNS       = "http://www.ivoa.net/xml/VODataService/v1.1"

	CapabilitiesStandardID = "ivo://ivoa.net/std/VOSI#capabilities"
	AvailabilityStandardID = "ivo://ivoa.net/std/VOSI#availability"
)

type availabilityDoc struct {
	XMLName   xml.Name `xml:"availability"`
	Xmlns     string   `xml:"xmlns,attr"`
	Available bool     `xml:"available"`
	Notes     []string `xml:"note"`
}

// WriteAvailability writes a VOSI availability document.
func WriteAvailability(w io.Writer, a sia.Availability) error {
	return encode(w, availabilityDoc{
		Xmlns:     AvailabilityNamespace,
		Available: a.Available,
		Notes:     a.Notes,
	})
}

type capabilitiesDoc struct {
	XMLName      xml.Name     `xml:"vosi:capabilities"`
	Vosi         string       `xml:"xmlns:vosi,attr"`
	XSI          string       `xml:"xmlns:xsi,attr"`
	VOD          string       `xml:"xmlns:vod,attr"`
	Capabilities []capability `xml:"capability"`
}

type capability struct {
	StandardID string       `xml:"standardID,attr"`
	Interface  capInterface `xml:"interface"`
}

type capInterface struct {
	Type      string    `xml:"xsi:type,attr"`
	Role      string    `xml:"role,attr,omitempty"`
	Version   string    `xml:"version,attr"`
	AccessURL accessURL `xml:"accessURL"`
}

type accessURL struct {
	Use string `xml:"use,attr"`
	URL string `xml:",chardata"`
}

// WriteCapabilities writes a VOSI capabilities document for one collection.
func WriteCapabilities(w io.Writer, c sia.Capabilities) error {
	return encode(w, capabilitiesDoc{
		Vosi: CapabilitiesNamespace,
		XSI:  "http://www.w3.org/2001/XMLSchema-instance",
		VOD:  VODataServiceNS,
		Capabilities: []capability{
			newCapability(CapabilitiesStandardID, "", "1.0", c.CapabilitiesURL),
			newCapability(AvailabilityStandardID, "", "1.0", c.AvailabilityURL),
			newCapability(sia.StandardID, "std", "2.0", c.QueryURL),
		},
	})
}

func newCapability(standardID, role, version, url string) capability {
	return capability{
		StandardID: standardID,
		Interface: capInterface{
			Type:      "vod:ParamHTTP",
			Role:      role,
			Version:   version,
			AccessURL: accessURL{Use: "full", URL: url},
		},
	}
}
