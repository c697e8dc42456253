package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
)

// MalformedInterchangeError is returned when an imported document misses a
// required member
type MalformedInterchangeError struct {
	Feature int
	Reason  string
}

func (e MalformedInterchangeError) Error() string {
	return fmt.Sprintf("malformed geojson: feature %d: %s", e.Feature, e.Reason)
}

type Feature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	ID          string   `json:"id"`
	Satellite   string   `json:"satellite"`
	Level       string   `json:"level,omitempty"`
	Provider    string   `json:"provider"`
	SensingTime string   `json:"sensing_time"`
	CloudCover  *float64 `json:"cloud_cover,omitempty"`
	SizeBytes   int64    `json:"size_bytes,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Links       []string `json:"links,omitempty"`
	Retrieved   string   `json:"retrieved,omitempty"`
}

type FeatureCollection struct {
	Type     string          `json:"type"`
	Query    *entities.Query `json:"query,omitempty"`
	Features []Feature       `json:"features"`
}

// ExportGeoJSON serializes the products as a FeatureCollection, one feature per
// product with its footprint as geometry. The originating query is embedded as
// a foreign member so that an imported collection can be downloaded without
// repeating the search parameters.
func ExportGeoJSON(products []common.Product, query *entities.Query) ([]byte, error) {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Query:    query,
		Features: make([]Feature, len(products)),
	}
	for i, product := range products {
		feature := Feature{
			Type: "Feature",
			Properties: featureProperties{
				ID:          product.ID,
				Satellite:   product.Constellation,
				Level:       product.Level,
				Provider:    product.Provider,
				SensingTime: product.SensingTime.UTC().Format(time.RFC3339Nano),
				CloudCover:  product.CloudCover,
				SizeBytes:   product.SizeBytes,
				Filename:    product.Filename,
				Links:       product.Links,
			},
		}
		if !product.Retrieved.IsZero() {
			feature.Properties.Retrieved = product.Retrieved.UTC().Format(time.RFC3339Nano)
		}
		if product.GeometryWKT != "" {
			g, err := wkt.DecodeString(product.GeometryWKT)
			if err != nil {
				return nil, fmt.Errorf("ExportGeoJSON.DecodeString[%s]: %w", product.ID, err)
			}
			feature.Geometry = &geojson.Geometry{Geometry: g}
		}
		fc.Features[i] = feature
	}
	return json.MarshalIndent(fc, "", "  ")
}

// ImportGeoJSON parses a FeatureCollection previously exported (and possibly
// hand-curated) and returns the products along with the embedded query, if any.
// Timestamps are parsed leniently to survive edits by external tools.
func ImportGeoJSON(data []byte) ([]common.Product, *entities.Query, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, nil, fmt.Errorf("ImportGeoJSON.Unmarshal: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, nil, fmt.Errorf("ImportGeoJSON: not a FeatureCollection: %q", fc.Type)
	}

	products := make([]common.Product, len(fc.Features))
	for i, feature := range fc.Features {
		props := feature.Properties
		switch {
		case props.ID == "":
			return nil, nil, MalformedInterchangeError{Feature: i, Reason: "missing id"}
		case props.Satellite == "":
			return nil, nil, MalformedInterchangeError{Feature: i, Reason: "missing satellite"}
		case props.Provider == "":
			return nil, nil, MalformedInterchangeError{Feature: i, Reason: "missing provider"}
		case props.SensingTime == "":
			return nil, nil, MalformedInterchangeError{Feature: i, Reason: "missing sensing_time"}
		case feature.Geometry == nil || feature.Geometry.Geometry == nil:
			return nil, nil, MalformedInterchangeError{Feature: i, Reason: "missing geometry"}
		}
		if common.GetConstellationFromString(props.Satellite) == common.Unknown {
			return nil, nil, MalformedInterchangeError{Feature: i, Reason: "unknown satellite: " + props.Satellite}
		}
		sensingTime, err := dateparse.ParseAny(props.SensingTime)
		if err != nil {
			return nil, nil, MalformedInterchangeError{Feature: i, Reason: "invalid sensing_time: " + props.SensingTime}
		}

		product := common.Product{
			ID:            props.ID,
			Constellation: common.GetConstellationFromString(props.Satellite).String(),
			Level:         props.Level,
			Provider:      props.Provider,
			SensingTime:   sensingTime,
			CloudCover:    props.CloudCover,
			SizeBytes:     props.SizeBytes,
			Filename:      props.Filename,
			Links:         props.Links,
			GeometryWKT:   wkt.MustEncode(feature.Geometry.Geometry),
		}
		if props.Retrieved != "" {
			if retrieved, err := dateparse.ParseAny(props.Retrieved); err == nil {
				product.Retrieved = retrieved
			}
		}
		products[i] = product
	}
	return products, fc.Query, nil
}
