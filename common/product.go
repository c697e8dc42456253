package common

import (
	"time"
)

// Product is the provider-agnostic description of a catalogued acquisition
type Product struct {
	// ID is the scene name, without archive extension
	ID            string    `json:"id"`
	Constellation string    `json:"satellite"`
	Level         string    `json:"level"`
	Provider      string    `json:"provider"`
	SensingTime   time.Time `json:"sensing_time"`
	CloudCover    *float64  `json:"cloud_cover,omitempty"`
	SizeBytes     int64     `json:"size_bytes,omitempty"`
	Filename      string    `json:"filename,omitempty"`
	Links         []string  `json:"links,omitempty"`
	GeometryWKT   string    `json:"-"`
	Retrieved     time.Time `json:"retrieved,omitempty"`
}

// Key identifies a product regardless of the provider that returned it
func (p Product) Key() ProductKey {
	return ProductKey{Constellation: p.Constellation, ID: p.ID}
}

type ProductKey struct {
	Constellation string
	ID            string
}
