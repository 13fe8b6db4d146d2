package domain

import "time"

// KPISet holds the executive summary scalars for the main dashboard view.
type KPISet struct {
	TotalBirths             int64   `json:"total_bayi_lahir"`
	TotalStunting           int64   `json:"total_bayi_stunting"`
	NutritionWorkers        float64 `json:"jumlah_nakes"`
	ImmunizationCoveragePct float64 `json:"cakupan_imunisasi_pct"`
	CleanWaterAccessPct     float64 `json:"akses_air_layak_pct"`
}

// TrendPoint is one calendar-month bucket of a time series. Months with zero
// matching records are present with Value 0, never dropped.
type TrendPoint struct {
	Month string  `json:"month"` // yyyy-MM
	Value float64 `json:"value"`
}

// RegionCount is an aggregated value for one administrative region.
type RegionCount struct {
	Region string  `json:"region"`
	Value  float64 `json:"value"`
}

// BucketCount is a generic terms-bucket result.
type BucketCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// NamedPct is a labelled percentage, used for the risk-factor breakdown.
type NamedPct struct {
	Name string  `json:"name"`
	Pct  float64 `json:"pct"`
}

// Summary is everything the main dashboard view needs, fetched in two
// aggregation round trips (stunting index + nutrition-worker index).
type Summary struct {
	KPI               KPISet        `json:"kpi"`
	WorkersByRegion   []RegionCount `json:"nakes_by_region"`
	ImmunizationTrend []TrendPoint  `json:"imunisasi_trend"`
	WaterDistribution []BucketCount `json:"air_distribusi"`
}

// RegionStat is the per-region aggregate joined onto map features.
// RiskMean is nil when the region has no matching rows.
type RegionStat struct {
	Key         string   `json:"key"`
	RiskMean    *float64 `json:"risk_mean"`
	SampleCount int64    `json:"sample_count"`
	PropHigh    float64  `json:"proportion_high"`
	PropMedium  float64  `json:"proportion_medium"`
	PropLow     float64  `json:"proportion_low"`
}

// FilterOptions are the resolved dropdown values for the filter panel.
type FilterOptions struct {
	RegencyField  string   `json:"regency_field"`
	Regencies     []string `json:"regencies"`
	DistrictField string   `json:"district_field"`
	Districts     []string `json:"districts"`
}

// TopRegions is a ranked count listing for the drill-down chart. Level is
// "kecamatan" when a regency restriction is active, otherwise "kabupaten".
type TopRegions struct {
	Level   string        `json:"level"`
	Buckets []BucketCount `json:"buckets"`
}

// Report is the exportable KPI snapshot with the filters that produced it.
type Report struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Filters     *FilterSet `json:"filters"`
	KPI         KPISet     `json:"kpi"`
	RowCount    int        `json:"row_count"`
}

// HealthStatus represents the health of the service and its dependencies.
type HealthStatus struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}
