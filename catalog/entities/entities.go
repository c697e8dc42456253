package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/geoharvest/geoharvest/common"
	"github.com/go-spatial/geom/encoding/geojson"
)

// SatelliteLevel is a constellation at a given processing level, e.g. SENTINEL2:L2A
type SatelliteLevel struct {
	Constellation common.Constellation `json:"satellite"`
	Level         string               `json:"level"`
}

func (sl SatelliteLevel) String() string {
	if sl.Level == "" {
		return sl.Constellation.String()
	}
	return sl.Constellation.String() + ":" + sl.Level
}

// ParseSatelliteLevel parses "SATELLITE[:LEVEL]", e.g. "SENTINEL2:L2A".
// The level is left empty when omitted.
func ParseSatelliteLevel(s string) (SatelliteLevel, error) {
	name, level := s, ""
	if i := strings.Index(s, ":"); i != -1 {
		name, level = s[:i], s[i+1:]
	}
	constellation := common.GetConstellationFromString(name)
	if constellation == common.Unknown {
		return SatelliteLevel{}, fmt.Errorf("ParseSatelliteLevel: unknown satellite: %s", name)
	}
	return SatelliteLevel{Constellation: constellation, Level: strings.ToUpper(level)}, nil
}

// Frequency splits a time interval into periods for best-candidate selection
type Frequency string

const (
	None    Frequency = ""
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(s)); f {
	case None, Daily, Weekly, Monthly, Yearly:
		return f, nil
	default:
		return None, fmt.Errorf("ParseFrequency: unknown frequency: %s", s)
	}
}

// Next returns the start of the period following the one starting at t
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Yearly:
		return t.AddDate(1, 0, 0)
	case None:
		return t
	}
	// Unrecognized frequencies still advance, so that period loops terminate
	return t.AddDate(0, 0, 1)
}

// Range is a closed interval of percentages
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Query describes a catalogue search over an area and a time interval
type Query struct {
	AOI        geojson.Geometry `json:"roi"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Satellites []SatelliteLevel `json:"satellites"`
	CloudCover *Range           `json:"cloud_cover,omitempty"`
	Frequency  Frequency        `json:"frequency,omitempty"`
}

func (q *Query) Validate() error {
	if q.AOI.Geometry == nil {
		return fmt.Errorf("Query.Validate: missing region of interest")
	}
	if q.Start.IsZero() || q.End.IsZero() {
		return fmt.Errorf("Query.Validate: missing time interval")
	}
	// Both ends are inclusive: a single-instant interval is valid
	if q.End.Before(q.Start) {
		return fmt.Errorf("Query.Validate: end %v is before start %v", q.End, q.Start)
	}
	if len(q.Satellites) == 0 {
		return fmt.Errorf("Query.Validate: no satellite requested")
	}
	if q.CloudCover != nil && (q.CloudCover.Min < 0 || q.CloudCover.Max > 100 || q.CloudCover.Min > q.CloudCover.Max) {
		return fmt.Errorf("Query.Validate: invalid cloud cover range [%g, %g]", q.CloudCover.Min, q.CloudCover.Max)
	}
	if _, err := ParseFrequency(string(q.Frequency)); err != nil {
		return fmt.Errorf("Query.Validate: %w", err)
	}
	return nil
}

// SatelliteSpec binds a satellite/level to the services able to search and retrieve it
type SatelliteSpec struct {
	Satellite        SatelliteLevel
	SearchProvider   string
	DownloadProvider string
	// CloudCover is true when the catalogue reports a cloud coverage for this satellite
	CloudCover bool
}
