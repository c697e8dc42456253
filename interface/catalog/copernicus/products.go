package copernicus

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"golang.org/x/time/rate"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/interface/catalog"
	"github.com/geoharvest/geoharvest/service/log"
)

const (
	PageLimit     = 1000
	ODataQueryURL = "https://catalogue.dataspace.copernicus.eu/odata/v1/Products?$filter="
	DownloadURL   = "https://zipper.dataspace.copernicus.eu/odata/v1/Products(%s)/$value"
)

var productTypes = map[entities.SatelliteLevel]string{
	{Constellation: common.Sentinel1, Level: "L1"}:  "GRD",
	{Constellation: common.Sentinel1, Level: "L2"}:  "OCN",
	{Constellation: common.Sentinel2, Level: "L1C"}: "S2MSI1C",
	{Constellation: common.Sentinel2, Level: "L2A"}: "S2MSI2A",
}

type Provider struct {
	// Limit is the page size (default PageLimit)
	Limit int
	// URL overrides the catalogue endpoint (default ODataQueryURL)
	URL     string
	limiter *rate.Limiter
}

// NewProvider returns a catalogue client throttled to reqPerSec requests
func NewProvider(reqPerSec float64) *Provider {
	return &Provider{Limit: PageLimit, limiter: rate.NewLimiter(rate.Limit(reqPerSec), 1)}
}

func (p *Provider) Name() string {
	return common.ProviderCopernicus
}

func (p *Provider) SearchProducts(ctx context.Context, query *entities.Query, spec entities.SatelliteSpec) ([]common.Product, error) {
	if p.Limit == 0 {
		p.Limit = PageLimit
	}

	productType, ok := productTypes[spec.Satellite]
	if !ok {
		return nil, fmt.Errorf("Copernicus: satellite not supported: %s", spec.Satellite)
	}

	var parameters []string
	switch spec.Satellite.Constellation {
	case common.Sentinel1:
		parameters = append(parameters, "Collection/Name eq 'SENTINEL-1'")
	case common.Sentinel2:
		parameters = append(parameters, "Collection/Name eq 'SENTINEL-2'")
	}
	parameters = append(parameters,
		fmt.Sprintf("Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'productType' and att/OData.CSC.StringAttribute/Value eq '%s')", productType))

	{
		aoiWKT, err := wkt.EncodeString(query.AOI.Geometry)
		if err != nil {
			return nil, fmt.Errorf("Copernicus.SearchProducts.EncodeString: %w", err)
		}
		parameters = append(parameters, "OData.CSC.Intersects(area=geography'SRID=4326;"+aoiWKT+"')")
	}

	parameters = append(parameters,
		fmt.Sprintf("ContentDate/Start ge %s", query.Start.UTC().Format("2006-01-02T15:04:05.999Z")),
		fmt.Sprintf("ContentDate/Start le %s", query.End.UTC().Format("2006-01-02T15:04:05.999Z")))

	if query.CloudCover != nil && spec.CloudCover {
		parameters = append(parameters, fmt.Sprintf(
			"Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value ge %g) and "+
				"Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value le %g)",
			query.CloudCover.Min, query.CloudCover.Max))
	}

	rawProducts, err := p.queryOData(ctx, strings.Join(parameters, " and "))
	if err != nil {
		return nil, fmt.Errorf("Copernicus.SearchProducts.%w", err)
	}

	retrieved := time.Now().UTC()
	products := make([]common.Product, 0, len(rawProducts))
	for _, hit := range rawProducts {
		sensingTime, err := time.Parse(time.RFC3339Nano, hit.ContentDate.BeginPosition)
		if err != nil {
			return nil, fmt.Errorf("Copernicus.SearchProducts.TimeParse: %w", err)
		}
		product := common.Product{
			ID:            strings.TrimSuffix(hit.Identifier, ".SAFE"),
			Constellation: spec.Satellite.Constellation.String(),
			Level:         spec.Satellite.Level,
			Provider:      p.Name(),
			SensingTime:   sensingTime,
			SizeBytes:     hit.ContentLength,
			Filename:      strings.TrimSuffix(hit.Identifier, ".SAFE") + ".zip",
			Links:         []string{fmt.Sprintf(DownloadURL, hit.Uuid)},
			Retrieved:     retrieved,
		}
		if hit.Footprint.Geometry != nil {
			product.GeometryWKT = wkt.MustEncode(hit.Footprint.Geometry)
		}
		if spec.CloudCover {
			if cc, err := strconv.ParseFloat(hit.AttributesMap["cloudCover"], 64); err == nil {
				product.CloudCover = &cc
			}
		}
		products = append(products, product)
	}
	return products, nil
}

type Hits struct {
	Uuid          string           `json:"Id"`
	Identifier    string           `json:"Name"`
	ContentLength int64            `json:"ContentLength"`
	Footprint     geojson.Geometry `json:"GeoFootprint"`
	ContentDate   struct {
		BeginPosition string `json:"Start"`
	} `json:"ContentDate"`
	Attributes []struct {
		Name      string      `json:"Name"`
		Value     interface{} `json:"Value"`
		ValueType string      `json:"ValueType"`
	} `json:"Attributes"`
	AttributesMap map[string]string
}

func (p *Provider) queryOData(ctx context.Context, query string) ([]Hits, error) {
	var rawProducts []Hits
	query = neturl.QueryEscape(query)
	baseurl := p.URL
	if baseurl == "" {
		baseurl = ODataQueryURL
	}

	for page := 0; ; page++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("queryOData.Wait: %w", err)
			}
		}
		log.Logger(ctx).Sugar().Debugf("[Copernicus] Search page %d", page+1)
		url := baseurl + query + fmt.Sprintf("&$orderby=ContentDate/Start&$top=%d&$skip=%d&$expand=Attributes", p.Limit, p.Limit*page)
		jsonResults, err := catalog.GetBody(ctx, p.Name(), url, nil)
		if err != nil {
			return nil, fmt.Errorf("queryOData: %w", err)
		}

		results := struct {
			Next string `json:"@odata.nextLink"`
			Hits []Hits `json:"value"`
		}{}
		if err := json.Unmarshal(jsonResults, &results); err != nil {
			return nil, fmt.Errorf("queryOData.Unmarshal: %w (response: %s)", err, jsonResults)
		}

		for i, hit := range results.Hits {
			results.Hits[i].AttributesMap = map[string]string{}
			for _, elem := range hit.Attributes {
				results.Hits[i].AttributesMap[elem.Name] = fmt.Sprintf("%v", elem.Value)
			}
			results.Hits[i].Attributes = nil
		}
		rawProducts = append(rawProducts, results.Hits...)

		if results.Next == "" || len(results.Hits) < p.Limit {
			break
		}
	}
	return rawProducts, nil
}
