package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"strconv"
	"time"

	"github.com/go-spatial/geom"
	"golang.org/x/time/rate"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/interface/catalog"
	"github.com/geoharvest/geoharvest/service/log"
)

const (
	SearchURL = "https://cmr.earthdata.nasa.gov/search/granules.umm_json?"
	PageLimit = 2000
)

// Provider searches the NASA Common Metadata Repository
type Provider struct {
	// Limit is the page size (default PageLimit)
	Limit int
	// URL overrides the search endpoint (default SearchURL)
	URL     string
	limiter *rate.Limiter
}

func NewProvider(reqPerSec float64) *Provider {
	return &Provider{Limit: PageLimit, limiter: rate.NewLimiter(rate.Limit(reqPerSec), 1)}
}

func (p *Provider) Name() string {
	return common.ProviderCMR
}

type Item struct {
	Meta struct {
		ConceptID string `json:"concept-id"`
	} `json:"meta"`
	Umm struct {
		GranuleUR      string `json:"GranuleUR"`
		TemporalExtent struct {
			RangeDateTime struct {
				BeginningDateTime string `json:"BeginningDateTime"`
			} `json:"RangeDateTime"`
		} `json:"TemporalExtent"`
		DataGranule struct {
			ArchiveAndDistributionInformation []struct {
				Name        string `json:"Name"`
				SizeInBytes int64  `json:"SizeInBytes"`
			} `json:"ArchiveAndDistributionInformation"`
		} `json:"DataGranule"`
		RelatedUrls []struct {
			URL  string `json:"URL"`
			Type string `json:"Type"`
		} `json:"RelatedUrls"`
	} `json:"umm"`
}

func (p *Provider) SearchProducts(ctx context.Context, query *entities.Query, spec entities.SatelliteSpec) ([]common.Product, error) {
	if p.Limit == 0 {
		p.Limit = PageLimit
	}
	if spec.Satellite.Constellation != common.Sentinel3 {
		return nil, fmt.Errorf("CMR: satellite not supported: %s", spec.Satellite)
	}

	extent, err := geom.NewExtentFromGeometry(query.AOI.Geometry)
	if err != nil {
		return nil, fmt.Errorf("CMR.SearchProducts.NewExtentFromGeometry: %w", err)
	}

	params := neturl.Values{}
	params.Add("platform[]", "Sentinel-3A")
	params.Add("platform[]", "Sentinel-3B")
	params.Set("bounding_box", fmt.Sprintf("%g,%g,%g,%g", extent.MinX(), extent.MinY(), extent.MaxX(), extent.MaxY()))
	params.Set("temporal", query.Start.UTC().Format(time.RFC3339)+","+query.End.UTC().Format(time.RFC3339))

	items, err := p.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("CMR.SearchProducts.%w", err)
	}

	retrieved := time.Now().UTC()
	var products []common.Product
	for _, item := range items {
		info, err := common.Info(item.Umm.GranuleUR)
		if err != nil {
			// CMR indexes other missions over the same platforms, skip them
			continue
		}
		// The processing level is not a CMR search parameter, filter here
		if "L"+info["PROCESSING_LEVEL"] != spec.Satellite.Level {
			continue
		}
		sensingTime, err := time.Parse(time.RFC3339Nano, item.Umm.TemporalExtent.RangeDateTime.BeginningDateTime)
		if err != nil {
			return nil, fmt.Errorf("CMR.SearchProducts.TimeParse: %w", err)
		}
		product := common.Product{
			ID:            item.Umm.GranuleUR,
			Constellation: spec.Satellite.Constellation.String(),
			Level:         spec.Satellite.Level,
			Provider:      p.Name(),
			SensingTime:   sensingTime,
			Retrieved:     retrieved,
		}
		for _, adi := range item.Umm.DataGranule.ArchiveAndDistributionInformation {
			product.SizeBytes = adi.SizeInBytes
			product.Filename = adi.Name
			break
		}
		if product.Filename == "" {
			product.Filename = item.Umm.GranuleUR + ".zip"
		}
		for _, u := range item.Umm.RelatedUrls {
			if u.Type == "GET DATA" {
				product.Links = append(product.Links, u.URL)
			}
		}
		products = append(products, product)
	}
	return products, nil
}

func (p *Provider) query(ctx context.Context, params neturl.Values) ([]Item, error) {
	baseurl := p.URL
	if baseurl == "" {
		baseurl = SearchURL
	}
	params.Set("page_size", strconv.Itoa(p.Limit))

	var items []Item
	for page := 1; ; page++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("query.Wait: %w", err)
			}
		}
		log.Logger(ctx).Sugar().Debugf("[CMR] Search page %d", page)
		params.Set("page_num", strconv.Itoa(page))
		body, err := catalog.GetBody(ctx, p.Name(), baseurl+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		results := struct {
			Hits  int    `json:"hits"`
			Items []Item `json:"items"`
		}{}
		if err := json.Unmarshal(body, &results); err != nil {
			return nil, fmt.Errorf("query.Unmarshal: %w (response: %s)", err, body)
		}
		items = append(items, results.Items...)
		if len(results.Items) < p.Limit || len(items) >= results.Hits {
			break
		}
	}
	return items, nil
}
