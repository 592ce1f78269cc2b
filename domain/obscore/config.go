// Package obscore provides the ObsCore export configuration, the SIA v2
// engine parameter grammar and the result table model shared by every
// repository backend.
package obscore

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DatasetType describes how one dataset type is exported as ObsCore rows.
type DatasetType struct {
	DataproductType    string `yaml:"dataproduct_type"`
	DataproductSubtype string `yaml:"dataproduct_subtype,omitempty"`
	CalibLevel         int    `yaml:"calib_level"`
	ObsIDFmt           string `yaml:"obs_id_fmt,omitempty"`
	DatalinkURLFmt     string `yaml:"datalink_url_fmt,omitempty"`
	OUCD               string `yaml:"o_ucd,omitempty"`
	AccessFormat       string `yaml:"access_format,omitempty"`
}

// SpectralRange is a band's wavelength interval in metres. Either bound
// may be missing.
type SpectralRange struct {
	Name string
	Low  *float64
	High *float64
}

// Complete reports whether both bounds are present.
func (r SpectralRange) Complete() bool {
	return r.Low != nil && r.High != nil
}

// SpectralRanges keeps the band order of the configuration document.
type SpectralRanges []SpectralRange

// UnmarshalYAML decodes a mapping of band name to [low, high].
func (s *SpectralRanges) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("spectral_ranges: expected a mapping, got %s", nodeKind(node))
	}
	out := make(SpectralRanges, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var bounds []*float64
		if err := node.Content[i+1].Decode(&bounds); err != nil {
			return fmt.Errorf("spectral_ranges.%s: %w", name, err)
		}
		if len(bounds) != 2 {
			return fmt.Errorf("spectral_ranges.%s: expected [low, high], got %d values", name, len(bounds))
		}
		out = append(out, SpectralRange{Name: name, Low: bounds[0], High: bounds[1]})
	}
	*s = out
	return nil
}

// ExtraColumn is a constant-valued column added to every row.
type ExtraColumn struct {
	Template string `yaml:"template,omitempty"`
	Type     string `yaml:"type,omitempty"`
	Length   int    `yaml:"length,omitempty"`
	Doc      string `yaml:"doc,omitempty"`
}

// ExporterConfig is the per-collection ObsCore export configuration.
type ExporterConfig struct {
	FacilityName   string                 `yaml:"facility_name"`
	ObsCollection  string                 `yaml:"obs_collection"`
	Collections    []string               `yaml:"collections"`
	DatasetTypes   map[string]DatasetType `yaml:"dataset_types"`
	SpectralRanges SpectralRanges         `yaml:"spectral_ranges"`
	ExtraColumns   map[string]ExtraColumn `yaml:"extra_columns"`

	// DatasetTypeOrder lists dataset type names as written in the document.
	DatasetTypeOrder []string `yaml:"-"`
}

// ParseExporterConfig decodes a YAML export configuration.
func ParseExporterConfig(data []byte) (*ExporterConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse export config: %w", err)
	}
	var cfg ExporterConfig
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode export config: %w", err)
	}
	cfg.DatasetTypeOrder = mappingKeys(&root, "dataset_types")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every backend relies on.
func (c *ExporterConfig) Validate() error {
	if c.FacilityName == "" {
		return fmt.Errorf("export config: facility_name is required")
	}
	if c.ObsCollection == "" {
		return fmt.Errorf("export config: obs_collection is required")
	}
	for name, dt := range c.DatasetTypes {
		if dt.CalibLevel < 0 || dt.CalibLevel > 3 {
			return fmt.Errorf("export config: dataset_types.%s.calib_level %d out of range", name, dt.CalibLevel)
		}
	}
	return nil
}

// WithDatalinkURL returns a copy whose dataset types all use the given
// datalink format. An empty url returns c unchanged.
func (c *ExporterConfig) WithDatalinkURL(url string) *ExporterConfig {
	if url == "" {
		return c
	}
	out := *c
	out.DatasetTypes = make(map[string]DatasetType, len(c.DatasetTypes))
	for name, dt := range c.DatasetTypes {
		dt.DatalinkURLFmt = url
		out.DatasetTypes[name] = dt
	}
	return &out
}

// DatasetTypeFor returns the export settings for one dataset type.
func (c *ExporterConfig) DatasetTypeFor(name string) (DatasetType, bool) {
	dt, ok := c.DatasetTypes[name]
	return dt, ok
}

func mappingKeys(root *yaml.Node, key string) []string {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != key {
			continue
		}
		m := doc.Content[i+1]
		if m.Kind != yaml.MappingNode {
			return nil
		}
		keys := make([]string, 0, len(m.Content)/2)
		for j := 0; j+1 < len(m.Content); j += 2 {
			keys = append(keys, m.Content[j].Value)
		}
		return keys
	}
	return nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
