package obscore

import "fmt"

// BandInfo is a named spectral band advertised in the service
// self-description. Bounds are wavelengths in metres.
type BandInfo struct {
	Label string
	Low   float64
	High  float64
}

// Midpoint returns the centre of the band in metres.
func (b BandInfo) Midpoint() float64 {
	return (b.Low + b.High) / 2
}

// FormattedMidpoint renders the midpoint in nanometres, e.g. "365.0e-9".
func (b BandInfo) FormattedMidpoint() string {
	return fmt.Sprintf("%.1fe-9", b.Midpoint()*1e9)
}

// DeriveBands builds one BandInfo per spectral range with both bounds,
// labelled "<facility> band <name>". Partial ranges are skipped.
func DeriveBands(cfg *ExporterConfig) []BandInfo {
	if cfg == nil {
		return nil
	}
	bands := make([]BandInfo, 0, len(cfg.SpectralRanges))
	for _, r := range cfg.SpectralRanges {
		if !r.Complete() {
			continue
		}
		bands = append(bands, BandInfo{
			Label: fmt.Sprintf("%s band %s", cfg.FacilityName, r.Name),
			Low:   *r.Low,
			High:  *r.High,
		})
	}
	return bands
}
