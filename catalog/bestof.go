package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
	"github.com/geoharvest/geoharvest/service/log"
)

// SelectBest keeps, for each satellite and each period of the query interval,
// the single product with the lowest cloud cover. Periods are half-open
// [start, next), stepping from the query start by the query frequency up to
// the inclusive query end.
// Ties are broken by the latest sensing time, then by the greatest id.
// Satellites whose catalogue does not report cloud cover are passed through
// unchanged.
func SelectBest(ctx context.Context, products []common.Product, query *entities.Query) []common.Product {
	if query.Frequency == entities.None {
		return products
	}

	bySatellite := map[entities.SatelliteLevel][]common.Product{}
	for _, product := range products {
		sl := entities.SatelliteLevel{Constellation: common.GetConstellationFromString(product.Constellation), Level: product.Level}
		bySatellite[sl] = append(bySatellite[sl], product)
	}

	var selected []common.Product
	for sl, satProducts := range bySatellite {
		// The capability flag of the satellite decides, not the records: a
		// catalogue may omit the attribute on records it does cover
		if spec, err := Resolve(sl); err != nil || !spec.CloudCover {
			log.Logger(ctx).Sugar().Warnf("%s does not report cloud cover: keeping all %d products", sl, len(satProducts))
			selected = append(selected, satProducts...)
			continue
		}
		for start := query.Start; !start.After(query.End); start = query.Frequency.Next(start) {
			end := query.Frequency.Next(start)
			if best, ok := bestInPeriod(satProducts, start, end); ok {
				selected = append(selected, best)
			}
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].SensingTime.Equal(selected[j].SensingTime) {
			return selected[i].SensingTime.Before(selected[j].SensingTime)
		}
		return selected[i].ID < selected[j].ID
	})
	return selected
}

func bestInPeriod(products []common.Product, start, end time.Time) (common.Product, bool) {
	var best common.Product
	found := false
	for _, product := range products {
		if product.SensingTime.Before(start) || !product.SensingTime.Before(end) {
			continue
		}
		if !found || better(product, best) {
			best, found = product, true
		}
	}
	return best, found
}

func better(a, b common.Product) bool {
	ca, cb := cloudCover(a), cloudCover(b)
	if ca != cb {
		return ca < cb
	}
	if !a.SensingTime.Equal(b.SensingTime) {
		return a.SensingTime.After(b.SensingTime)
	}
	return a.ID > b.ID
}

// cloudCover returns the reported coverage, counting an unknown one as fully
// clouded so that documented products are always preferred
func cloudCover(p common.Product) float64 {
	if p.CloudCover == nil {
		return 100
	}
	return *p.CloudCover
}
