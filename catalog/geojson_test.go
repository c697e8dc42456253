package catalog_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"

	"github.com/geoharvest/geoharvest/catalog"
	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
)

func TestGeoJSONRoundTrip(t *testing.T) {
	cover := 12.5
	products := []common.Product{
		{
			ID:            "S2B_MSIL2A_20211127T103309_N0301_R108_T32TLR_20211127T123342",
			Constellation: "SENTINEL2",
			Level:         "L2A",
			Provider:      common.ProviderCopernicus,
			SensingTime:   time.Date(2021, 11, 27, 10, 33, 9, 0, time.UTC),
			CloudCover:    &cover,
			SizeBytes:     812345678,
			Filename:      "S2B_MSIL2A_20211127T103309_N0301_R108_T32TLR_20211127T123342.zip",
			Links:         []string{"https://zipper.dataspace.copernicus.eu/odata/v1/Products(uuid)/$value"},
			GeometryWKT:   "POLYGON ((7.6 46.8,8.9 46.8,8.9 47.8,7.6 47.8,7.6 46.8))",
			Retrieved:     time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	query := &entities.Query{
		AOI:        geojson.Geometry{Geometry: geom.Polygon{{{5.95, 45.81}, {10.5, 45.81}, {10.5, 47.81}, {5.95, 47.81}}}},
		Start:      time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC),
		Satellites: []entities.SatelliteLevel{{Constellation: common.Sentinel2, Level: "L2A"}},
	}

	data, err := catalog.ExportGeoJSON(products, query)
	if err != nil {
		t.Fatal(err)
	}
	imported, importedQuery, err := catalog.ImportGeoJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(imported) != 1 {
		t.Fatalf("expected 1 product, got %d", len(imported))
	}
	p := imported[0]
	if p.ID != products[0].ID || p.Constellation != "SENTINEL2" || p.Level != "L2A" || p.Provider != common.ProviderCopernicus {
		t.Errorf("unexpected product: %+v", p)
	}
	if !p.SensingTime.Equal(products[0].SensingTime) {
		t.Errorf("unexpected sensing time: %v", p.SensingTime)
	}
	if p.CloudCover == nil || *p.CloudCover != cover {
		t.Errorf("unexpected cloud cover: %v", p.CloudCover)
	}
	if p.SizeBytes != products[0].SizeBytes {
		t.Errorf("unexpected size: %d", p.SizeBytes)
	}
	if p.GeometryWKT == "" {
		t.Errorf("expected a footprint")
	}
	if importedQuery == nil || len(importedQuery.Satellites) != 1 {
		t.Errorf("expected the embedded query, got %+v", importedQuery)
	}
}

func TestImportGeoJSONMissingMembers(t *testing.T) {
	for reason, doc := range map[string]string{
		"missing id": `{"type":"FeatureCollection","features":[{"type":"Feature",
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]},
			"properties":{"satellite":"SENTINEL2","provider":"copernicus","sensing_time":"2021-11-27T10:33:09Z"}}]}`,
		"missing satellite": `{"type":"FeatureCollection","features":[{"type":"Feature",
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]},
			"properties":{"id":"X","provider":"copernicus","sensing_time":"2021-11-27T10:33:09Z"}}]}`,
		"missing geometry": `{"type":"FeatureCollection","features":[{"type":"Feature",
			"properties":{"id":"X","satellite":"SENTINEL2","provider":"copernicus","sensing_time":"2021-11-27T10:33:09Z"}}]}`,
		"missing sensing_time": `{"type":"FeatureCollection","features":[{"type":"Feature",
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]},
			"properties":{"id":"X","satellite":"SENTINEL2","provider":"copernicus"}}]}`,
	} {
		_, _, err := catalog.ImportGeoJSON([]byte(doc))
		var malformed catalog.MalformedInterchangeError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: expected MalformedInterchangeError, got %v", reason, err)
		} else if !strings.Contains(malformed.Reason, strings.TrimPrefix(reason, "missing ")) {
			t.Errorf("%s: unexpected reason: %s", reason, malformed.Reason)
		}
	}
}

func TestImportGeoJSONLenientTimestamps(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature",
		"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]},
		"properties":{"id":"X","satellite":"SENTINEL2","provider":"copernicus","sensing_time":"2021-11-27 10:33:09"}}]}`
	products, _, err := catalog.ImportGeoJSON([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !products[0].SensingTime.Equal(time.Date(2021, 11, 27, 10, 33, 9, 0, time.UTC)) {
		t.Errorf("unexpected sensing time: %v", products[0].SensingTime)
	}
}

func TestImportGeoJSONNotACollection(t *testing.T) {
	if _, _, err := catalog.ImportGeoJSON([]byte(`{"type":"Feature"}`)); err == nil {
		t.Errorf("expected error")
	}
}
