package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/stuntlytics/stuntlytics/internal/domain"
)

// Boundary feature property names carrying the administrative names used as
// join targets.
const (
	propRegency  = "KABKOT"
	propDistrict = "KECAMATAN"
)

// Injected display property names.
const (
	propRiskMean     = "risk_mean"
	propSampleCount  = "sample_count"
	propPropHigh     = "proportion_high"
	propPropMedium   = "proportion_medium"
	propPropLow      = "proportion_low"
	propDisplayColor = "display_color"
)

// neutralColor marks features with no matching aggregate stats.
const neutralColor = "#9ca3af"

// Feature is a single GeoJSON boundary feature. Geometry passes through
// untouched; only properties are read and extended.
type Feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// FeatureCollection is a GeoJSON boundary file.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Viewport is a bbox-derived map center and zoom for the rendered features.
type Viewport struct {
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	Zoom      float64 `json:"zoom"`
}

// West Java fallback when no feature carries usable geometry.
var defaultViewport = Viewport{CenterLat: -6.9, CenterLon: 107.6, Zoom: 8}

// LoadBoundaries reads and parses a GeoJSON boundary file.
func LoadBoundaries(path string) (*FeatureCollection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundary file %s: %w", path, err)
	}

	var fc FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse boundary file %s: %w", path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("boundary file %s: expected FeatureCollection, got %q", path, fc.Type)
	}
	return &fc, nil
}

// Enrich joins aggregated per-region stats onto boundary features by
// normalized key and injects display properties. Every feature leaves with a
// valid display_color; unmatched features get the neutral color and null
// stats, so rendering never needs a null check.
func Enrich(fc *FeatureCollection, stats []domain.RegionStat, kind RegionKind) *FeatureCollection {
	byKey := make(map[string]domain.RegionStat, len(stats))
	for _, st := range stats {
		byKey[NormalizeRegion(st.Key, kind)] = st
	}

	prop := propRegency
	if kind == District {
		prop = propDistrict
	}

	out := &FeatureCollection{Type: fc.Type, Features: make([]Feature, len(fc.Features))}
	for i, f := range fc.Features {
		props := make(map[string]any, len(f.Properties)+6)
		for k, v := range f.Properties {
			props[k] = v
		}

		name, _ := props[prop].(string)
		st, ok := byKey[NormalizeRegion(name, kind)]
		if ok && st.RiskMean != nil {
			props[propRiskMean] = *st.RiskMean
			props[propDisplayColor] = RiskColor(*st.RiskMean)
		} else {
			props[propRiskMean] = nil
			props[propDisplayColor] = neutralColor
		}
		if ok {
			props[propSampleCount] = st.SampleCount
			props[propPropHigh] = st.PropHigh
			props[propPropMedium] = st.PropMedium
			props[propPropLow] = st.PropLow
		} else {
			props[propSampleCount] = nil
			props[propPropHigh] = nil
			props[propPropMedium] = nil
			props[propPropLow] = nil
		}

		out.Features[i] = Feature{Type: f.Type, Properties: props, Geometry: f.Geometry}
	}
	return out
}

// RiskColor maps a risk score to a hex color via two linear segments:
// green at 0, yellow at 0.5, red at 1. Scores outside [0,1] are clamped
// before mapping.
func RiskColor(score float64) string {
	s := math.Max(0, math.Min(1, score))

	var r, g float64
	if s <= 0.5 {
		r = s / 0.5 * 255
		g = 255
	} else {
		r = 255
		g = (1 - s) / 0.5 * 255
	}
	return fmt.Sprintf("#%02x%02x00", int(math.Round(r)), int(math.Round(g)))
}

// FitViewport computes the bounding box of the given features and derives a
// map center and zoom. Features without parseable geometry are skipped; if
// none remain the default viewport is returned.
func FitViewport(features []Feature) Viewport {
	minLat, minLon := math.Inf(1), math.Inf(1)
	maxLat, maxLon := math.Inf(-1), math.Inf(-1)
	found := false

	for _, f := range features {
		var geom struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		}
		if err := json.Unmarshal(f.Geometry, &geom); err != nil || len(geom.Coordinates) == 0 {
			continue
		}
		var coords any
		if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
			continue
		}
		walkPositions(coords, func(lon, lat float64) {
			found = true
			minLat, maxLat = math.Min(minLat, lat), math.Max(maxLat, lat)
			minLon, maxLon = math.Min(minLon, lon), math.Max(maxLon, lon)
		})
	}
	if !found {
		return defaultViewport
	}

	span := math.Max(maxLat-minLat, maxLon-minLon)
	zoom := 11.0
	if span > 0 {
		zoom = math.Log2(360 / span)
	}
	zoom = math.Max(5, math.Min(12, zoom))

	return Viewport{
		CenterLat: (minLat + maxLat) / 2,
		CenterLon: (minLon + maxLon) / 2,
		Zoom:      math.Round(zoom*10) / 10,
	}
}

// walkPositions descends nested coordinate arrays down to [lon, lat] pairs.
func walkPositions(node any, visit func(lon, lat float64)) {
	arr, ok := node.([]any)
	if !ok || len(arr) == 0 {
		return
	}
	if lon, lonOK := arr[0].(float64); lonOK && len(arr) >= 2 {
		if lat, latOK := arr[1].(float64); latOK {
			visit(lon, lat)
			return
		}
	}
	for _, child := range arr {
		walkPositions(child, visit)
	}
}
