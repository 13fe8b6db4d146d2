// Package service orchestrates the dashboard's data paths: filter-scoped
// aggregation, field resolution, geo enrichment, insight metrics and
// exports, with a per-filter TTL cache in front of the datastore.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stuntlytics/stuntlytics/internal/cache"
	"github.com/stuntlytics/stuntlytics/internal/config"
	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/elastic"
	"github.com/stuntlytics/stuntlytics/internal/geo"
	"github.com/stuntlytics/stuntlytics/internal/insight"
	"github.com/stuntlytics/stuntlytics/internal/logger"
	"github.com/stuntlytics/stuntlytics/internal/rules"
)

// HealthChecker reports datastore connectivity and server identity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Info(ctx context.Context) (string, error)
}

// Choropleth is the map payload: enriched boundaries plus a fitted viewport.
type Choropleth struct {
	Level      string                 `json:"level"`
	Boundaries *geo.FeatureCollection `json:"boundaries"`
	Viewport   geo.Viewport           `json:"viewport"`
}

// Dashboard wires the aggregation, resolution, geo and advisory components
// behind the HTTP surface.
type Dashboard struct {
	summarizer *elastic.Summarizer
	resolver   *elastic.Resolver
	health     HealthChecker
	store      cache.Store
	boundaries *geo.FeatureCollection
	rules      *rules.Engine
	cfg        *config.Config
	logger     logger.Logger
}

// NewDashboard creates the orchestration service. boundaries may be nil when
// no boundary file is configured; choropleth requests then fail cleanly.
func NewDashboard(
	summarizer *elastic.Summarizer,
	resolver *elastic.Resolver,
	health HealthChecker,
	store cache.Store,
	boundaries *geo.FeatureCollection,
	ruleEngine *rules.Engine,
	cfg *config.Config,
	log logger.Logger,
) *Dashboard {
	return &Dashboard{
		summarizer: summarizer,
		resolver:   resolver,
		health:     health,
		store:      store,
		boundaries: boundaries,
		rules:      ruleEngine,
		cfg:        cfg,
		logger:     log,
	}
}

// FilterOptions resolves the region field names and their distinct values
// for the filter panel. Cached per filter hash for the session TTL.
func (d *Dashboard) FilterOptions(ctx context.Context, f *domain.FilterSet) (*domain.FilterOptions, error) {
	key := cache.Key("filter-options", f.Hash())

	var cached domain.FilterOptions
	if err := cache.GetJSON(ctx, d.store, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		d.logger.Warn("cache read failed", logger.String("key", key), logger.Error(err))
	}

	regencyField, regencies, err := d.resolver.Resolve(ctx, d.cfg.Elasticsearch.RegencyFieldCandidates, f)
	if err != nil {
		return nil, err
	}
	districtField, districts, err := d.resolver.Resolve(ctx, d.cfg.Elasticsearch.DistrictFieldCandidates, f)
	if err != nil {
		return nil, err
	}

	// Exhausted candidates degrade to the configured static lists so the
	// filter panel and map keep working against an empty index.
	if regencyField == "" {
		regencyField = firstCandidate(d.cfg.Elasticsearch.RegencyFieldCandidates)
		regencies = d.cfg.Elasticsearch.DefaultRegencies
		d.logger.Warn("regency resolution exhausted, serving static defaults",
			logger.Int("defaults", len(regencies)))
	}
	if districtField == "" {
		districtField = firstCandidate(d.cfg.Elasticsearch.DistrictFieldCandidates)
		districts = d.cfg.Elasticsearch.DefaultDistricts
	}

	opts := &domain.FilterOptions{
		RegencyField:  regencyField,
		Regencies:     regencies,
		DistrictField: districtField,
		Districts:     districts,
	}
	d.cachePut(ctx, key, opts)
	return opts, nil
}

// Summary returns the main dashboard aggregates for the filter set.
func (d *Dashboard) Summary(ctx context.Context, f *domain.FilterSet) (*domain.Summary, error) {
	if err := d.prepare(ctx, f); err != nil {
		return nil, err
	}

	key := cache.Key("summary", f.Hash())
	var cached domain.Summary
	if err := cache.GetJSON(ctx, d.store, key, &cached); err == nil {
		return &cached, nil
	}

	summary, err := d.summarizer.MainSummary(ctx, f)
	if err != nil {
		return nil, err
	}
	d.cachePut(ctx, key, summary)
	return summary, nil
}

// Trend returns the monthly stunting percentage series.
func (d *Dashboard) Trend(ctx context.Context, f *domain.FilterSet) ([]domain.TrendPoint, error) {
	if err := d.prepare(ctx, f); err != nil {
		return nil, err
	}
	return d.summarizer.MonthlyStuntingTrend(ctx, f)
}

// RiskFactors returns the threshold-exceedance breakdown.
func (d *Dashboard) RiskFactors(ctx context.Context, f *domain.FilterSet) ([]domain.NamedPct, error) {
	if err := d.prepare(ctx, f); err != nil {
		return nil, err
	}
	return d.summarizer.RiskFactors(ctx, f)
}

// TopRegions returns the ranked region counts, drilled to district level
// when a regency restriction is active.
func (d *Dashboard) TopRegions(ctx context.Context, f *domain.FilterSet) (*domain.TopRegions, error) {
	if err := d.prepare(ctx, f); err != nil {
		return nil, err
	}
	return d.summarizer.TopRegions(ctx, f)
}

// Choropleth aggregates per-region stats and joins them onto the boundary
// features. level is "kabupaten" or "kecamatan".
func (d *Dashboard) Choropleth(ctx context.Context, f *domain.FilterSet, level string) (*Choropleth, error) {
	if d.boundaries == nil {
		return nil, fmt.Errorf("no boundary file loaded")
	}
	if err := d.prepare(ctx, f); err != nil {
		return nil, err
	}

	kind := geo.Regency
	field := f.RegencyField
	if level == "kecamatan" {
		kind = geo.District
		field = f.DistrictField
	}
	if field == "" {
		opts, optErr := d.FilterOptions(ctx, &domain.FilterSet{DateFrom: f.DateFrom, DateTo: f.DateTo})
		if optErr != nil {
			return nil, optErr
		}
		field = opts.RegencyField
		if level == "kecamatan" {
			field = opts.DistrictField
		}
	}

	stats, err := d.summarizer.RegionStats(ctx, f, field)
	if err != nil {
		return nil, err
	}

	enriched := geo.Enrich(d.boundaries, stats, kind)
	return &Choropleth{
		Level:      level,
		Boundaries: enriched,
		Viewport:   geo.FitViewport(enriched.Features),
	}, nil
}

// InsightMetrics assembles the aggregate snapshot the insight generator and
// the advisory rules consume.
func (d *Dashboard) InsightMetrics(ctx context.Context, f *domain.FilterSet) (insight.Metrics, error) {
	if err := d.prepare(ctx, f); err != nil {
		return insight.Metrics{}, err
	}

	summary, err := d.Summary(ctx, f)
	if err != nil {
		return insight.Metrics{}, err
	}
	highRisk, err := d.summarizer.HighRiskPct(ctx, f)
	if err != nil {
		return insight.Metrics{}, err
	}

	return insight.Metrics{
		PctHighRisk:          highRisk,
		ImmunizationCoverage: summary.KPI.ImmunizationCoveragePct,
		WaterAccess:          summary.KPI.CleanWaterAccessPct,
	}, nil
}

// Advisories evaluates the static rule set over the aggregate metrics. The
// rule dataset works in proportions; the sanitation indicator is proxied by
// water access, the only sanitation signal aggregated here.
func (d *Dashboard) Advisories(ctx context.Context, f *domain.FilterSet, m insight.Metrics) ([]string, error) {
	bblr := 0.0
	factors, err := d.summarizer.RiskFactors(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, factor := range factors {
		if factor.Name == "BBLR (<2500 gr)" {
			bblr = factor.Pct / 100
		}
	}

	dataset := rules.Dataset{
		"akses_air_layak":   m.WaterAccess / 100,
		"jamban_sehat":      m.WaterAccess / 100,
		"imunisasi_lengkap": m.ImmunizationCoverage / 100,
		"bblr":              bblr,
	}
	return d.rules.Evaluate(dataset), nil
}

// SampleRows returns filtered source rows for the explorer and exports,
// capped at the configured export maximum. A filter set matching no rows
// yields ErrNoData rather than an empty file.
func (d *Dashboard) SampleRows(ctx context.Context, f *domain.FilterSet, size int) ([]map[string]any, error) {
	if err := d.prepare(ctx, f); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = d.cfg.Service.SampleSize
	}
	if size > d.cfg.Service.MaxExport {
		size = d.cfg.Service.MaxExport
	}
	rows, err := d.summarizer.SampleRows(ctx, f, nil, size, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNoData
	}
	return rows, nil
}

// HealthCheck reports service and dependency health.
func (d *Dashboard) HealthCheck(ctx context.Context) *domain.HealthStatus {
	status := &domain.HealthStatus{
		Status:       "healthy",
		Timestamp:    time.Now(),
		Version:      d.cfg.Service.Version,
		Dependencies: map[string]string{},
	}

	if err := d.health.HealthCheck(ctx); err != nil {
		status.Status = "unhealthy"
		status.Dependencies["elasticsearch"] = err.Error()
	} else if ver, verErr := d.health.Info(ctx); verErr == nil && ver != "" {
		status.Dependencies["elasticsearch"] = "healthy (v" + ver + ")"
	} else {
		status.Dependencies["elasticsearch"] = "healthy"
	}
	return status
}

// prepare validates the filter set and resolves region field names for any
// active selection that arrived without one.
func (d *Dashboard) prepare(ctx context.Context, f *domain.FilterSet) error {
	if (len(f.Regencies) > 0 && f.RegencyField == "") ||
		(len(f.Districts) > 0 && f.DistrictField == "") {
		opts, err := d.FilterOptions(ctx, &domain.FilterSet{DateFrom: f.DateFrom, DateTo: f.DateTo})
		if err != nil {
			return err
		}
		if f.RegencyField == "" {
			f.RegencyField = opts.RegencyField
		}
		if f.DistrictField == "" {
			f.DistrictField = opts.DistrictField
		}
	}
	return f.Validate()
}

func firstCandidate(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

func (d *Dashboard) cachePut(ctx context.Context, key string, value any) {
	if err := cache.SetJSON(ctx, d.store, key, value, d.cfg.Service.CacheTTL); err != nil {
		d.logger.Warn("cache write failed", logger.String("key", key), logger.Error(err))
	}
}
