package catalog

import (
	"fmt"
	"sort"

	"github.com/geoharvest/geoharvest/catalog/entities"
	"github.com/geoharvest/geoharvest/common"
)

// specs binds each supported satellite/level to its search and download services.
// Sentinel1 products are searched on Copernicus but retrieved from the Alaska
// Satellite Facility mirror, which is far more reliable for SAR data.
var specs = map[entities.SatelliteLevel]entities.SatelliteSpec{
	{Constellation: common.Sentinel1, Level: "L1"}: {
		Satellite:        entities.SatelliteLevel{Constellation: common.Sentinel1, Level: "L1"},
		SearchProvider:   common.ProviderCopernicus,
		DownloadProvider: common.ProviderASF,
	},
	{Constellation: common.Sentinel1, Level: "L2"}: {
		Satellite:        entities.SatelliteLevel{Constellation: common.Sentinel1, Level: "L2"},
		SearchProvider:   common.ProviderCopernicus,
		DownloadProvider: common.ProviderASF,
	},
	{Constellation: common.Sentinel2, Level: "L1C"}: {
		Satellite:        entities.SatelliteLevel{Constellation: common.Sentinel2, Level: "L1C"},
		SearchProvider:   common.ProviderCopernicus,
		DownloadProvider: common.ProviderCopernicus,
		CloudCover:       true,
	},
	{Constellation: common.Sentinel2, Level: "L2A"}: {
		Satellite:        entities.SatelliteLevel{Constellation: common.Sentinel2, Level: "L2A"},
		SearchProvider:   common.ProviderCopernicus,
		DownloadProvider: common.ProviderCopernicus,
		CloudCover:       true,
	},
	{Constellation: common.Sentinel3, Level: "L1"}: {
		Satellite:        entities.SatelliteLevel{Constellation: common.Sentinel3, Level: "L1"},
		SearchProvider:   common.ProviderCMR,
		DownloadProvider: common.ProviderCMR,
	},
	{Constellation: common.Sentinel3, Level: "L2"}: {
		Satellite:        entities.SatelliteLevel{Constellation: common.Sentinel3, Level: "L2"},
		SearchProvider:   common.ProviderCMR,
		DownloadProvider: common.ProviderCMR,
	},
}

var defaultLevels = map[common.Constellation]string{
	common.Sentinel1: "L1",
	common.Sentinel2: "L2A",
	common.Sentinel3: "L1",
}

// UnknownSatelliteError is returned before any network call when a requested
// satellite/level has no registered services
type UnknownSatelliteError struct {
	Satellite entities.SatelliteLevel
}

func (e UnknownSatelliteError) Error() string {
	return fmt.Sprintf("no registered provider for %s (supported: %v)", e.Satellite, Satellites())
}

// Resolve returns the services registered for the satellite/level.
// An empty level selects the default level of the constellation.
func Resolve(sl entities.SatelliteLevel) (entities.SatelliteSpec, error) {
	if sl.Level == "" {
		sl.Level = defaultLevels[sl.Constellation]
	}
	spec, ok := specs[sl]
	if !ok {
		return entities.SatelliteSpec{}, UnknownSatelliteError{Satellite: sl}
	}
	return spec, nil
}

// Satellites lists all supported satellite/levels in a stable order
func Satellites() []string {
	sats := make([]string, 0, len(specs))
	for sl := range specs {
		sats = append(sats, sl.String())
	}
	sort.Strings(sats)
	return sats
}
