// Package votable writes VOTable 1.3 result, error and self-description
// documents and the VOSI availability and capabilities documents.
package votable

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/lsst-sqre/vo-siav2/domain/fault"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/ports"
)

// Media types.
const (
	ContentType      = "application/x-votable+xml"
	XMLContentType   = "application/xml"
	ErrorContentType = XMLContentType
	Namespace        = "http://www.ivoa.net/xml/VOTable/v1.3"
	Version          = "1.3"
)

// QUERY_STATUS values.
const (
	StatusOK       = "OK"
	StatusError    = "ERROR"
	StatusOverflow = "OVERFLOW"
)

type document struct {
	XMLName   xml.Name `xml:"VOTABLE"`
	Version   string   `xml:"version,attr"`
	Xmlns     string   `xml:"xmlns,attr"`
	XSI       string   `xml:"xmlns:xsi,attr"`
	Resources []resource
}

type resource struct {
	XMLName  xml.Name `xml:"RESOURCE"`
	Type     string   `xml:"type,attr"`
	Utype    string   `xml:"utype,attr,omitempty"`
	Name     string   `xml:"name,attr,omitempty"`
	Children []any    `xml:",any"`
}

type info struct {
	XMLName xml.Name `xml:"INFO"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
	Text    string   `xml:",chardata"`
}

type field struct {
	XMLName   xml.Name `xml:"FIELD"`
	Name      string   `xml:"name,attr"`
	Datatype  string   `xml:"datatype,attr"`
	Arraysize string   `xml:"arraysize,attr,omitempty"`
	Unit      string   `xml:"unit,attr,omitempty"`
	UCD       string   `xml:"ucd,attr,omitempty"`
	Utype     string   `xml:"utype,attr,omitempty"`
}

type table struct {
	XMLName xml.Name `xml:"TABLE"`
	Fields  []field
	Data    tableData `xml:"DATA"`
}

type tableData struct {
	Rows []row `xml:"TABLEDATA>TR"`
}

type row struct {
	Cells []cell `xml:"TD"`
}

type cell struct {
	Value string `xml:",chardata"`
}

// Writer implements ports.ResultWriter for VOTable output.
type Writer struct{}

// NewWriter creates a VOTable writer.
func NewWriter() *Writer {
	return &Writer{}
}

// ContentType returns the VOTable media type.
func (*Writer) ContentType() string {
	return ContentType
}

// WriteTable writes a results document. An overflowing table gets a
// trailing OVERFLOW status.
func (*Writer) WriteTable(w io.Writer, t *obscore.Table, overflow bool) error {
	res := resource{Type: "results"}
	res.Children = append(res.Children, info{Name: "QUERY_STATUS", Value: StatusOK})
	res.Children = append(res.Children, buildTable(t))
	if overflow {
		res.Children = append(res.Children, info{Name: "QUERY_STATUS", Value: StatusOverflow})
	}
	return encode(w, newDocument(res))
}

// WriteError writes an error document whose status text is the fault
// message.
func (*Writer) WriteError(w io.Writer, err error) error {
	f := fault.From(err)
	if f == nil {
		f = fault.New(fault.Default, "unknown error")
	}
	res := resource{Type: "results"}
	res.Children = append(res.Children, info{Name: "QUERY_STATUS", Value: StatusError, Text: f.Error()})
	return encode(w, newDocument(res))
}

func newDocument(resources ...resource) document {
	return document{
		Version:   Version,
		Xmlns:     Namespace,
		XSI:       "http://www.w3.org/2001/XMLSchema-instance",
		Resources: resources,
	}
}

func buildTable(t *obscore.Table) table {
	out := table{}
	if t == nil {
		return out
	}
	for _, c := range t.Columns {
		out.Fields = append(out.Fields, field{
			Name:      c.Name,
			Datatype:  c.Datatype,
			Arraysize: c.Arraysize,
			Unit:      c.Unit,
			UCD:       c.UCD,
			Utype:     c.Utype,
		})
	}
	for _, r := range t.Rows {
		tr := row{Cells: make([]cell, len(r))}
		for i, v := range r {
			tr.Cells[i] = cell{Value: formatCell(v)}
		}
		out.Data.Rows = append(out.Data.Rows, tr)
	}
	return out
}

// formatCell renders a value as TABLEDATA text. Nulls are empty cells.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "T"
		}
		return "F"
	case time.Time:
		return x.UTC().Format("2006-01-02T15:04:05.000")
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

func encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode votable: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

var _ ports.ResultWriter = (*Writer)(nil)
