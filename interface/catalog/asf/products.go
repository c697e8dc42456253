package asf

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
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

const SearchURL = "https://api.daac.asf.alaska.edu/services/search/param?"

var processingLevels = map[entities.SatelliteLevel]string{
	{Constellation: common.Sentinel1, Level: "L1"}: "GRD_HD,GRD_MD,GRD_FD,GRD_HS",
	{Constellation: common.Sentinel1, Level: "L2"}: "OCN",
}

// Provider searches the Alaska Satellite Facility SAR catalogue
type Provider struct {
	// URL overrides the search endpoint (default SearchURL)
	URL     string
	limiter *rate.Limiter
}

func NewProvider(reqPerSec float64) *Provider {
	return &Provider{limiter: rate.NewLimiter(rate.Limit(reqPerSec), 1)}
}

func (p *Provider) Name() string {
	return common.ProviderASF
}

type FeatureCollection struct {
	Features []Feature `json:"features"`
}

type Feature struct {
	Geometry   geojson.Geometry `json:"geometry"`
	Properties struct {
		FileID          string `json:"fileID"`
		FileName        string `json:"fileName"`
		SceneName       string `json:"sceneName"`
		URL             string `json:"url"`
		Bytes           int64  `json:"bytes"`
		Md5sum          string `json:"md5sum"`
		StartTime       string `json:"startTime"`
		ProcessingLevel string `json:"processingLevel"`
		Platform        string `json:"platform"`
	} `json:"properties"`
}

func (p *Provider) SearchProducts(ctx context.Context, query *entities.Query, spec entities.SatelliteSpec) ([]common.Product, error) {
	level, ok := processingLevels[spec.Satellite]
	if !ok {
		return nil, fmt.Errorf("ASF: satellite not supported: %s", spec.Satellite)
	}
	aoiWKT, err := wkt.EncodeString(query.AOI.Geometry)
	if err != nil {
		return nil, fmt.Errorf("ASF.SearchProducts.EncodeString: %w", err)
	}

	params := neturl.Values{}
	params.Set("output", "geojson")
	params.Set("platform", "Sentinel-1")
	params.Set("processingLevel", level)
	params.Set("intersectsWith", aoiWKT)
	params.Set("start", query.Start.UTC().Format(time.RFC3339))
	params.Set("end", query.End.UTC().Format(time.RFC3339))

	features, err := p.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ASF.SearchProducts.%w", err)
	}

	retrieved := time.Now().UTC()
	products := make([]common.Product, 0, len(features))
	for _, f := range features {
		sensingTime, err := parseASFTime(f.Properties.StartTime)
		if err != nil {
			return nil, fmt.Errorf("ASF.SearchProducts.TimeParse: %w", err)
		}
		product := common.Product{
			ID:            f.Properties.SceneName,
			Constellation: spec.Satellite.Constellation.String(),
			Level:         spec.Satellite.Level,
			Provider:      p.Name(),
			SensingTime:   sensingTime,
			SizeBytes:     f.Properties.Bytes,
			Filename:      f.Properties.FileName,
			Links:         []string{f.Properties.URL},
			Retrieved:     retrieved,
		}
		if f.Geometry.Geometry != nil {
			product.GeometryWKT = wkt.MustEncode(f.Geometry.Geometry)
		}
		products = append(products, product)
	}
	return products, nil
}

// FindProduct looks up a single scene by name and returns its download description
func (p *Provider) FindProduct(ctx context.Context, sceneName string) (common.Product, error) {
	params := neturl.Values{}
	params.Set("output", "geojson")
	params.Set("granule_list", sceneName)

	features, err := p.query(ctx, params)
	if err != nil {
		return common.Product{}, fmt.Errorf("ASF.FindProduct.%w", err)
	}
	for _, f := range features {
		if strings.EqualFold(f.Properties.SceneName, sceneName) {
			sensingTime, _ := parseASFTime(f.Properties.StartTime)
			return common.Product{
				ID:            f.Properties.SceneName,
				Constellation: common.GetConstellationFromProductId(f.Properties.SceneName).String(),
				Provider:      p.Name(),
				SensingTime:   sensingTime,
				SizeBytes:     f.Properties.Bytes,
				Filename:      f.Properties.FileName,
				Links:         []string{f.Properties.URL},
			}, nil
		}
	}
	return common.Product{}, fmt.Errorf("ASF.FindProduct: %s not found", sceneName)
}

func (p *Provider) query(ctx context.Context, params neturl.Values) ([]Feature, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("query.Wait: %w", err)
		}
	}
	baseurl := p.URL
	if baseurl == "" {
		baseurl = SearchURL
	}
	log.Logger(ctx).Sugar().Debugf("[ASF] Search %s", params.Encode())
	body, err := catalog.GetBody(ctx, p.Name(), baseurl+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	var fc FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("query.Unmarshal: %w (response: %s)", err, body)
	}
	return fc.Features, nil
}

func parseASFTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}
