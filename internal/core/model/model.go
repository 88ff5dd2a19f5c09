// Package model defines core domain types shared across the service.
package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultBufferKm is the clipping radius used when a subgroup declares none.
const DefaultBufferKm = 5.0

type Coordinate struct {
	Lat float64
	Lon float64
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return errors.New("coordinate must be a number")
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v must be in [-90,90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v must be in [-180,180]", c.Lon)
	}
	return nil
}

func (c Coordinate) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Manifest is the per-property-type configuration of groups to report on.
type Manifest struct {
	PropertyType string  `bson:"type" json:"type"`
	Groups       []Group `bson:"groups" json:"groups"`
}

func (m Manifest) GroupNames() []string {
	out := make([]string, 0, len(m.Groups))
	for _, g := range m.Groups {
		out = append(out, g.Name)
	}
	return out
}

type Group struct {
	Name               string     `bson:"name" json:"name"`
	DisplayName        string     `bson:"display_name" json:"display_name"`
	IsochroneFiltering bool       `bson:"isochrone_filtering,omitempty" json:"isochrone_filtering,omitempty"`
	Subgroups          []Subgroup `bson:"sub_groups" json:"sub_groups"`
}

// Subgroup names one tile layer and how its features are filtered.
// Filter keeps the raw manifest shape; see package filter for its grammar.
type Subgroup struct {
	Name           string         `bson:"name" json:"name"`
	DisplayName    string         `bson:"display_name" json:"display_name"`
	SourceLayer    string         `bson:"source-layer,omitempty" json:"source-layer,omitempty"`
	TileSource     string         `bson:"tile-source,omitempty" json:"tile-source,omitempty"`
	CustomBuffer   *float64       `bson:"custom_buffer,omitempty" json:"custom_buffer,omitempty"`
	Filter         map[string]any `bson:"filter,omitempty" json:"filter,omitempty"`
	MetadataFields []string       `bson:"metadata_fields,omitempty" json:"metadata_fields,omitempty"`
	Overview       bool           `bson:"overview,omitempty" json:"overview,omitempty"`
}

// Fetchable reports whether the subgroup names both a tile source and a layer.
func (s Subgroup) Fetchable() bool {
	return s.SourceLayer != "" && s.TileSource != ""
}

func (s Subgroup) BufferKm() float64 {
	if s.CustomBuffer != nil {
		return *s.CustomBuffer
	}
	return DefaultBufferKm
}

// GeoPoint is a GeoJSON Point as stored in the report collection.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(c Coordinate) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{c.Lon, c.Lat}}
}

func (p GeoPoint) Coordinate() Coordinate {
	if len(p.Coordinates) < 2 {
		return Coordinate{}
	}
	return Coordinate{Lat: p.Coordinates[1], Lon: p.Coordinates[0]}
}

// Report is pending until Complete is set by the generation run.
type Report struct {
	ID           string    `bson:"propscope_id" json:"reportId"`
	PropertyType string    `bson:"property_type" json:"propertyType"`
	Location     GeoPoint  `bson:"location" json:"location"`
	H3Cell       string    `bson:"h3_cell,omitempty" json:"h3Cell,omitempty"`
	Complete     bool      `bson:"propscope_instance_status" json:"reportComplete"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type FeatureSetDocument struct {
	ReportID            string             `bson:"propscope_id"`
	GroupName           string             `bson:"group_name"`
	GroupDisplayName    string             `bson:"group_display_name"`
	SubgroupName        string             `bson:"subgroup_name"`
	SubgroupDisplayName string             `bson:"subgroup_display_name"`
	Features            []*geojson.Feature `bson:"features"`
	Features2Km         []*geojson.Feature `bson:"features_2km,omitempty"`
	Overview            bool               `bson:"overview"`
	CreatedAt           time.Time          `bson:"createdAt"`
}

type MetadataDocument struct {
	ReportID     string           `bson:"propscope_id"`
	GroupName    string           `bson:"group_name"`
	SubgroupName string           `bson:"subgroup_name"`
	Metadata     []map[string]any `bson:"metadata"`
	CreatedAt    time.Time        `bson:"createdAt"`
}

// WithGeometry returns a copy of f carrying g. Properties are copied so the
// result can be changed without touching the source feature.
func WithGeometry(f *geojson.Feature, g orb.Geometry) *geojson.Feature {
	out := geojson.NewFeature(g)
	out.ID = f.ID
	out.Properties = f.Properties.Clone()
	return out
}
