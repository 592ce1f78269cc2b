package votable

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/domain/sia"
)

type param struct {
	XMLName     xml.Name `xml:"PARAM"`
	Name        string   `xml:"name,attr"`
	Datatype    string   `xml:"datatype,attr"`
	Arraysize   string   `xml:"arraysize,attr,omitempty"`
	Unit        string   `xml:"unit,attr,omitempty"`
	UCD         string   `xml:"ucd,attr,omitempty"`
	Xtype       string   `xml:"xtype,attr,omitempty"`
	Value       string   `xml:"value,attr"`
	Description string   `xml:"DESCRIPTION,omitempty"`
	Values      *values  `xml:"VALUES,omitempty"`
}

type values struct {
	Options []option `xml:"OPTION"`
}

type option struct {
	Name  string `xml:"name,attr,omitempty"`
	Value string `xml:"value,attr"`
}

type group struct {
	XMLName xml.Name `xml:"GROUP"`
	Name    string   `xml:"name,attr"`
	Params  []param
}

// WriteSelfDescription writes the MAXREC=0 service description: an empty
// results table followed by the adhoc:service meta resource.
func (*Writer) WriteSelfDescription(w io.Writer, d sia.ServiceDescription) error {
	results := resource{Type: "results"}
	results.Children = append(results.Children,
		info{Name: "QUERY_STATUS", Value: StatusOK},
		buildTable(obscore.NewTable(obscore.StandardColumns())),
	)

	meta := resource{Type: "meta", Utype: "adhoc:service", Name: "this"}
	meta.Children = append(meta.Children,
		charParam("standardID", sia.StandardID),
		charParam("accessURL", d.AccessURL),
		charParam("resourceIdentifier", d.ResourceIdentifier),
		group{Name: "inputParams", Params: inputParams(d)},
	)
	return encode(w, newDocument(results, meta))
}

func charParam(name, value string) param {
	return param{Name: name, Datatype: "char", Arraysize: "*", Value: value}
}

func inputParams(d sia.ServiceDescription) []param {
	bands := &values{}
	for _, b := range d.Bands {
		bands.Options = append(bands.Options, option{Name: b.Label, Value: b.FormattedMidpoint()})
	}

	params := []param{
		{Name: "POS", Datatype: "char", Arraysize: "*", UCD: "pos.outline;obs",
			Description: "Region to search: CIRCLE ra dec radius, RANGE ra1 ra2 dec1 dec2 or POLYGON ra1 dec1 ... raN decN (ICRS degrees)"},
		{Name: "BAND", Datatype: "double", Arraysize: "2", Unit: "m", UCD: "em.wl;stat.interval", Xtype: "interval",
			Description: "Energy bounds as wavelength in metres", Values: optionalValues(bands)},
		{Name: "TIME", Datatype: "double", Arraysize: "2", Unit: "d", UCD: "time.interval;obs.exposure", Xtype: "interval",
			Description: "Time bounds as MJD"},
		{Name: "POL", Datatype: "char", Arraysize: "*", UCD: "meta.code;phys.polarization",
			Description: "Polarization states", Values: stringValues(sia.Polarizations.Values())},
		{Name: "FOV", Datatype: "double", Arraysize: "2", Unit: "deg", Xtype: "interval",
			Description: "Field of view bounds"},
		{Name: "SPATRES", Datatype: "double", Arraysize: "2", Unit: "arcsec", Xtype: "interval",
			Description: "Spatial resolution bounds"},
		{Name: "EXPTIME", Datatype: "double", Arraysize: "2", Unit: "s", Xtype: "interval",
			Description: "Exposure time bounds"},
		{Name: "TIMERES", Datatype: "double", Arraysize: "2", Unit: "s", Xtype: "interval",
			Description: "Temporal resolution bounds"},
		{Name: "SPECRP", Datatype: "double", Arraysize: "2", Xtype: "interval",
			Description: "Spectral resolving power bounds"},
		{Name: "ID", Datatype: "char", Arraysize: "*", UCD: "meta.ref.ivoid",
			Description: "Publisher dataset identifier"},
		{Name: "COLLECTION", Datatype: "char", Arraysize: "*", UCD: "meta.id",
			Description: "Data collection", Values: optionalValues(stringValues(d.Collections))},
		{Name: "FACILITY", Datatype: "char", Arraysize: "*", UCD: "meta.id;instr.tel",
			Description: "Facility name", Values: optionalValues(stringValues(nonEmpty(d.FacilityName)))},
		{Name: "INSTRUMENT", Datatype: "char", Arraysize: "*", UCD: "meta.id;instr",
			Description: "Instrument name", Values: optionalValues(stringValues(d.Instruments))},
		{Name: "DPTYPE", Datatype: "char", Arraysize: "*", UCD: "meta.code.class",
			Description: "Data product type", Values: stringValues(sia.DPTypes.Values())},
		{Name: "CALIB", Datatype: "int", UCD: "meta.code;obs.calib",
			Description: "Calibration level", Values: intValues(sia.CalibLevels.Values())},
		{Name: "TARGET", Datatype: "char", Arraysize: "*", UCD: "meta.id;src",
			Description: "Target name"},
		{Name: "FORMAT", Datatype: "char", Arraysize: "*", UCD: "meta.code.mime",
			Description: "Content format of the datasets"},
		{Name: "MAXREC", Datatype: "int", UCD: "meta.number",
			Description: "Maximum number of records to return"},
	}
	return params
}

func stringValues[T ~string](vs []T) *values {
	out := &values{}
	for _, v := range vs {
		out.Options = append(out.Options, option{Value: string(v)})
	}
	return out
}

func intValues[T ~int](vs []T) *values {
	out := &values{}
	for _, v := range vs {
		out.Options = append(out.Options, option{Value: strconv.Itoa(int(v))})
	}
	return out
}

// optionalValues drops an empty VALUES element.
func optionalValues(v *values) *values {
	if v == nil || len(v.Options) == 0 {
		return nil
	}
	return v
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
