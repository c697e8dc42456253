package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"

	"github.com/geoharvest/geoharvest/catalog"
	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	ifcatalog "github.com/geoharvest/geoharvest/interface/catalog"
)

type fakeProvider struct {
	name     string
	products map[entities.SatelliteLevel][]common.Product
	err      error
	rejected bool
	// throttled fails the first N calls with a RateLimitError
	throttled int
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SearchProducts(ctx context.Context, query *entities.Query, spec entities.SatelliteSpec) ([]common.Product, error) {
	f.calls++
	if f.calls <= f.throttled {
		return nil, ifcatalog.RateLimitError{Provider: f.name, RetryAfter: time.Millisecond}
	}
	if f.rejected && query.CloudCover != nil {
		return nil, ifcatalog.QueryRejectedError{Provider: f.name, Reason: "cloud cover not supported"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.products[spec.Satellite], nil
}

func searchQuery(satellites ...entities.SatelliteLevel) *entities.Query {
	return &entities.Query{
		AOI:        geojson.Geometry{Geometry: geom.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}},
		Start:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		Satellites: satellites,
	}
}

func TestSearchIsolatesFailures(t *testing.T) {
	s1 := entities.SatelliteLevel{Constellation: common.Sentinel1, Level: "L1"}
	s3 := entities.SatelliteLevel{Constellation: common.Sentinel3, Level: "L1"}

	copernicus := &fakeProvider{
		name: common.ProviderCopernicus,
		products: map[entities.SatelliteLevel][]common.Product{
			s1: {{
				ID:            "S1B_IW_GRDH_1SDV_20230105T000000",
				Constellation: "SENTINEL1",
				Level:         "L1",
				Provider:      common.ProviderCopernicus,
				SensingTime:   time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
				GeometryWKT:   "POLYGON ((1 1, 2 1, 2 2, 1 2, 1 1))",
			}},
		},
	}
	cmr := &fakeProvider{name: common.ProviderCMR, err: fmt.Errorf("cmr is down")}

	c := &catalog.Catalog{Providers: map[string]ifcatalog.ProductsProvider{
		common.ProviderCopernicus: copernicus,
		common.ProviderCMR:        cmr,
	}}

	products, err := c.Search(context.Background(), searchQuery(s1, s3))
	if err == nil {
		t.Fatal("expected an aggregate error")
	}
	if len(products) != 1 {
		t.Fatalf("expected the Sentinel1 results despite the CMR failure, got %d products", len(products))
	}
}

func TestSearchUnknownSatelliteFailsFast(t *testing.T) {
	copernicus := &fakeProvider{name: common.ProviderCopernicus}
	c := &catalog.Catalog{Providers: map[string]ifcatalog.ProductsProvider{common.ProviderCopernicus: copernicus}}

	_, err := c.Search(context.Background(), searchQuery(entities.SatelliteLevel{Constellation: common.Sentinel1, Level: "LX"}))
	if err == nil {
		t.Fatal("expected error")
	}
	if copernicus.calls != 0 {
		t.Errorf("no provider must be called for an unknown satellite")
	}
}

func TestSearchRetriesRateLimited(t *testing.T) {
	s1 := entities.SatelliteLevel{Constellation: common.Sentinel1, Level: "L1"}
	provider := &fakeProvider{
		name:      common.ProviderCopernicus,
		throttled: 2,
		products: map[entities.SatelliteLevel][]common.Product{
			s1: {{
				ID:            "S1B_IW_GRDH_1SDV_20230105T000000",
				Constellation: "SENTINEL1",
				Level:         "L1",
				Provider:      common.ProviderCopernicus,
				SensingTime:   time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
				GeometryWKT:   "POLYGON ((1 1, 2 1, 2 2, 1 2, 1 1))",
			}},
		},
	}
	c := &catalog.Catalog{Providers: map[string]ifcatalog.ProductsProvider{common.ProviderCopernicus: provider}}

	products, err := c.Search(context.Background(), searchQuery(s1))
	if err != nil {
		t.Fatalf("a throttled page must be retried, got %v", err)
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", provider.calls)
	}
	if len(products) != 1 {
		t.Errorf("expected 1 product, got %d", len(products))
	}
}

func TestSearchRateLimitedAttemptsAreBounded(t *testing.T) {
	s1 := entities.SatelliteLevel{Constellation: common.Sentinel1, Level: "L1"}
	provider := &fakeProvider{name: common.ProviderCopernicus, throttled: 10}
	c := &catalog.Catalog{Providers: map[string]ifcatalog.ProductsProvider{common.ProviderCopernicus: provider}}

	_, err := c.Search(context.Background(), searchQuery(s1))
	if err == nil {
		t.Fatal("expected an error once the retry budget is exhausted")
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", provider.calls)
	}
}

func TestSearchRetriesWithoutRejectedFilter(t *testing.T) {
	s2 := entities.SatelliteLevel{Constellation: common.Sentinel2, Level: "L2A"}
	cover := 80.0
	provider := &fakeProvider{
		name:     common.ProviderCopernicus,
		rejected: true,
		products: map[entities.SatelliteLevel][]common.Product{
			s2: {
				{ID: "CLEAR", Constellation: "SENTINEL2", Level: "L2A", Provider: common.ProviderCopernicus,
					SensingTime: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), CloudCover: new(float64)},
				{ID: "CLOUDY", Constellation: "SENTINEL2", Level: "L2A", Provider: common.ProviderCopernicus,
					SensingTime: time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC), CloudCover: &cover},
			},
		},
	}
	c := &catalog.Catalog{Providers: map[string]ifcatalog.ProductsProvider{common.ProviderCopernicus: provider}}

	query := searchQuery(s2)
	query.CloudCover = &entities.Range{Min: 0, Max: 50}
	products, err := c.Search(context.Background(), query)
	if err != nil {
		t.Fatal(err)
	}
	if provider.calls != 2 {
		t.Errorf("expected a single retry without the filter, got %d calls", provider.calls)
	}
	if len(products) != 1 || products[0].ID != "CLEAR" {
		t.Errorf("expected the filter to be applied client-side, got %+v", products)
	}
}
