package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/stuntlytics/stuntlytics/internal/config"
	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/logger"
)

// Document field names and value encodings observed across dataset revisions.
// These are literal, case-sensitive strings from the store's schema.
const (
	fieldStuntingBinary  = "Status Stunting (Biner)"
	fieldStuntingTernary = "Status Stunting (Stunting / Berisiko / Normal)"
	fieldZScore          = "Z-Score TB/U"
	fieldImmunization    = "Status Imunisasi Anak"
	fieldCleanWater      = "Akses Air Bersih"
	fieldRegencyNakes    = "nama_kabupaten_kota"
	fieldNakesCount      = "jumlah_nakes_gizi"
	fieldRiskScore       = "risk_score"
	fieldRiskLabel       = "risk_label"
)

// Value encodings are inconsistent across revisions; match every spelling.
var (
	stuntingLabels     = []string{"Stunting", "Ya", "YA", "ya", "1", "true", "TRUE", "True"}
	ternaryStunting    = []string{"Stunting", "stunting"}
	immunizationDone   = []string{"lengkap", "Lengkap"}
	cleanWaterLabels   = []string{"Layak", "Ya", "Bersih", "Aman"}
	zScoreStuntingMax  = -2.0
	riskLabelHigh      = "Tinggi"
	riskLabelMedium    = "Sedang"
	riskLabelLow       = "Rendah"
	topRegionsSize     = 10
	regionStatsMaxSize = 1000
)

// Summarizer issues composite aggregation requests and flattens the nested
// bucket responses into the flat summaries the dashboard renders. Every call
// is attempt-once; connectivity failures surface as *ConnError, never as
// silently zeroed results.
type Summarizer struct {
	searcher Searcher
	qb       *QueryBuilder
	cfg      *config.ElasticsearchConfig
	logger   logger.Logger
}

// NewSummarizer creates an aggregation summarizer.
func NewSummarizer(searcher Searcher, qb *QueryBuilder, cfg *config.ElasticsearchConfig, log logger.Logger) *Summarizer {
	return &Summarizer{
		searcher: searcher,
		qb:       qb,
		cfg:      cfg,
		logger:   log,
	}
}

// stuntingAnyClause matches a record as stunted under any of the encodings
// the dataset revisions used: binary label, ternary label, or z-score.
func stuntingAnyClause() map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"terms": map[string]any{fieldStuntingBinary: stuntingLabels}},
				map[string]any{"terms": map[string]any{fieldStuntingTernary: ternaryStunting}},
				map[string]any{"range": map[string]any{fieldZScore: map[string]any{"lte": zScoreStuntingMax}}},
			},
			"minimum_should_match": 1,
		},
	}
}

// pct derives a percentage, defined as 0 when the denominator is 0.
func pct(count, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return count / total * 100
}

// MainSummary fetches everything the main dashboard view needs: KPI scalars,
// the per-region nutrition-worker sums, the monthly immunization trend and
// the clean-water distribution. Two round trips: one per index. Each KPI's
// filtered sub-count and total are computed in the same request.
func (s *Summarizer) MainSummary(ctx context.Context, f *domain.FilterSet) (*domain.Summary, error) {
	body := s.qb.Build(f)
	body["size"] = 0
	body["track_total_hits"] = true
	body["aggs"] = map[string]any{
		"stunting_count": map[string]any{
			"filter": map[string]any{
				"bool": map[string]any{
					"should": []any{
						map[string]any{"terms": map[string]any{fieldStuntingBinary: stuntingLabels}},
						map[string]any{"range": map[string]any{fieldZScore: map[string]any{"lte": zScoreStuntingMax}}},
					},
					"minimum_should_match": 1,
				},
			},
		},
		"imunisasi_lengkap": map[string]any{
			"filter": map[string]any{"terms": map[string]any{fieldImmunization: immunizationDone}},
		},
		"total_imunisasi_field": map[string]any{
			"value_count": map[string]any{"field": fieldImmunization},
		},
		"air_bersih_dist": map[string]any{
			"terms": map[string]any{"field": fieldCleanWater, "size": 5},
		},
		"imunisasi_trend": map[string]any{
			"date_histogram": map[string]any{
				"field":             s.cfg.DateField,
				"calendar_interval": "month",
				"format":            "yyyy-MM",
			},
			"aggs": map[string]any{
				"imunisasi_lengkap_in_bucket": map[string]any{
					"filter": map[string]any{"terms": map[string]any{fieldImmunization: immunizationDone}},
				},
			},
		},
	}

	var stunting mainSummaryResponse
	if err := s.query(ctx, s.cfg.StuntingIndex, body, &stunting); err != nil {
		return nil, err
	}

	nakes, err := s.nutritionSummary(ctx, f)
	if err != nil {
		return nil, err
	}

	summary := &domain.Summary{}
	summary.KPI.TotalBirths = stunting.Hits.Total.Value
	summary.KPI.TotalStunting = stunting.Aggregations.StuntingCount.DocCount
	summary.KPI.NutritionWorkers = nakes.total
	summary.KPI.ImmunizationCoveragePct = pct(
		float64(stunting.Aggregations.ImunisasiLengkap.DocCount),
		stunting.Aggregations.TotalImunisasiField.Value,
	)

	var waterOK, waterTotal int64
	for _, b := range stunting.Aggregations.AirBersihDist.Buckets {
		waterTotal += b.DocCount
		if containsLabel(cleanWaterLabels, fmt.Sprint(b.Key)) {
			waterOK += b.DocCount
		}
	}
	summary.KPI.CleanWaterAccessPct = pct(float64(waterOK), float64(waterTotal))
	summary.WaterDistribution = []domain.BucketCount{
		{Key: "Layak", Count: waterOK},
		{Key: "Tidak Layak", Count: waterTotal - waterOK},
	}

	// One trend entry per month bucket returned by the store; an empty
	// month yields 0, not a missing point.
	for _, b := range stunting.Aggregations.ImunisasiTrend.Buckets {
		value := 0.0
		if b.DocCount > 0 {
			value = float64(b.ImunisasiLengkapInBucket.DocCount) / float64(b.DocCount)
		}
		summary.ImmunizationTrend = append(summary.ImmunizationTrend, domain.TrendPoint{
			Month: b.KeyAsString,
			Value: value,
		})
	}

	summary.WorkersByRegion = nakes.byRegion
	return summary, nil
}

type nutritionTotals struct {
	total    float64
	byRegion []domain.RegionCount
}

// nutritionSummary aggregates the nutrition-worker index. The only filter
// that applies there is the regency selection; its canonical field name in
// that index never drifted.
func (s *Summarizer) nutritionSummary(ctx context.Context, f *domain.FilterSet) (*nutritionTotals, error) {
	var query map[string]any
	if len(f.Regencies) > 0 {
		query = map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"terms": map[string]any{fieldRegencyNakes: f.Regencies}},
				},
			},
		}
	} else {
		query = map[string]any{"match_all": map[string]any{}}
	}

	body := map[string]any{
		"size":  0,
		"query": query,
		"aggs": map[string]any{
			"total_nakes": map[string]any{
				"sum": map[string]any{"field": fieldNakesCount},
			},
			"nakes_by_region": map[string]any{
				"terms": map[string]any{"field": fieldRegencyNakes, "size": 100},
				"aggs": map[string]any{
					"sum_nakes_in_bucket": map[string]any{
						"sum": map[string]any{"field": fieldNakesCount},
					},
				},
			},
		},
	}

	var resp struct {
		Aggregations struct {
			TotalNakes struct {
				Value float64 `json:"value"`
			} `json:"total_nakes"`
			NakesByRegion struct {
				Buckets []struct {
					Key              any `json:"key"`
					SumNakesInBucket struct {
						Value float64 `json:"value"`
					} `json:"sum_nakes_in_bucket"`
				} `json:"buckets"`
			} `json:"nakes_by_region"`
		} `json:"aggregations"`
	}
	if err := s.query(ctx, s.cfg.NutritionIndex, body, &resp); err != nil {
		return nil, err
	}

	out := &nutritionTotals{total: resp.Aggregations.TotalNakes.Value}
	for _, b := range resp.Aggregations.NakesByRegion.Buckets {
		out.byRegion = append(out.byRegion, domain.RegionCount{
			Region: fmt.Sprint(b.Key),
			Value:  b.SumNakesInBucket.Value,
		})
	}
	return out, nil
}

// MonthlyStuntingTrend buckets the filtered range by calendar month and
// derives the per-month stunting percentage. Each bucket computes its own
// sub-filtered count over total-in-bucket.
func (s *Summarizer) MonthlyStuntingTrend(ctx context.Context, f *domain.FilterSet) ([]domain.TrendPoint, error) {
	body := s.qb.Build(f)
	body["size"] = 0
	body["aggs"] = map[string]any{
		"per_month": map[string]any{
			"date_histogram": map[string]any{
				"field":             s.cfg.DateField,
				"calendar_interval": "month",
				"format":            "yyyy-MM",
			},
			"aggs": map[string]any{
				"stunting_any": map[string]any{"filter": stuntingAnyClause()},
			},
		},
	}

	var resp struct {
		Aggregations struct {
			PerMonth struct {
				Buckets []struct {
					KeyAsString string `json:"key_as_string"`
					DocCount    int64  `json:"doc_count"`
					StuntingAny struct {
						DocCount int64 `json:"doc_count"`
					} `json:"stunting_any"`
				} `json:"buckets"`
			} `json:"per_month"`
		} `json:"aggregations"`
	}
	if err := s.query(ctx, s.cfg.StuntingIndex, body, &resp); err != nil {
		return nil, err
	}

	points := make([]domain.TrendPoint, 0, len(resp.Aggregations.PerMonth.Buckets))
	for _, b := range resp.Aggregations.PerMonth.Buckets {
		points = append(points, domain.TrendPoint{
			Month: b.KeyAsString,
			Value: pct(float64(b.StuntingAny.DocCount), float64(b.DocCount)),
		})
	}
	return points, nil
}

// riskFactorDef binds a display name to an aggregation filter clause.
type riskFactorDef struct {
	name   string
	clause map[string]any
}

// riskFactorDefs are the clinical threshold breakdowns shown on the
// dashboard, as percentages of the filtered total.
var riskFactorDefs = []riskFactorDef{
	{"BBLR (<2500 gr)", map[string]any{"range": map[string]any{"Berat Lahir (gram)": map[string]any{"lt": 2500}}}},
	{"Anemia Ibu (Hb < 11)", map[string]any{"range": map[string]any{"Hb (g/dL)": map[string]any{"lt": 11}}}},
	{"LiLA Ibu (<23.5 cm)", map[string]any{"range": map[string]any{"LiLA (cm)": map[string]any{"lt": 23.5}}}},
	{"Imunisasi Tidak Lengkap", AnyOfFields(
		[]string{"Imunisasi (lengkap/tidak lengkap)", "Status Imunisasi Anak"},
		[]string{"Tidak Lengkap", "tidak lengkap"},
	)},
	{"ASI Tidak Eksklusif", AnyOfFields(
		[]string{"ASI Eksklusif (ya/tidak)", "ASI Eksklusif"},
		[]string{"Tidak", "tidak"},
	)},
}

// RiskFactors computes the threshold-exceedance percentages in one pass,
// sorted descending by percentage.
func (s *Summarizer) RiskFactors(ctx context.Context, f *domain.FilterSet) ([]domain.NamedPct, error) {
	aggs := map[string]any{}
	for i, def := range riskFactorDefs {
		aggs[fmt.Sprintf("risk_%d", i)] = map[string]any{"filter": def.clause}
	}

	body := s.qb.Build(f)
	body["size"] = 0
	body["track_total_hits"] = true
	body["aggs"] = aggs

	var resp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations map[string]struct {
			DocCount int64 `json:"doc_count"`
		} `json:"aggregations"`
	}
	if err := s.query(ctx, s.cfg.StuntingIndex, body, &resp); err != nil {
		return nil, err
	}

	total := float64(resp.Hits.Total.Value)
	out := make([]domain.NamedPct, 0, len(riskFactorDefs))
	for i, def := range riskFactorDefs {
		agg := resp.Aggregations[fmt.Sprintf("risk_%d", i)]
		out = append(out, domain.NamedPct{Name: def.name, Pct: pct(float64(agg.DocCount), total)})
	}

	// Insertion sort keeps it stable for equal percentages.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Pct > out[j-1].Pct; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// TopRegions ranks regions by record count. With a regency restriction the
// breakdown drills down to districts; otherwise it stays at regency level.
func (s *Summarizer) TopRegions(ctx context.Context, f *domain.FilterSet) (*domain.TopRegions, error) {
	field := f.RegencyField
	level := "kabupaten"
	if len(f.Regencies) > 0 && f.DistrictField != "" {
		field = f.DistrictField
		level = "kecamatan"
	}
	if field == "" {
		field = fieldRegencyNakes
	}

	body := s.qb.Build(f)
	body["size"] = 0
	body["aggs"] = map[string]any{
		"counts_by_region": map[string]any{
			"terms": map[string]any{"field": field, "size": topRegionsSize},
		},
	}

	var resp struct {
		Aggregations struct {
			CountsByRegion struct {
				Buckets []struct {
					Key      any   `json:"key"`
					DocCount int64 `json:"doc_count"`
				} `json:"buckets"`
			} `json:"counts_by_region"`
		} `json:"aggregations"`
	}
	if err := s.query(ctx, s.cfg.StuntingIndex, body, &resp); err != nil {
		return nil, err
	}

	out := &domain.TopRegions{Level: level}
	for _, b := range resp.Aggregations.CountsByRegion.Buckets {
		out.Buckets = append(out.Buckets, domain.BucketCount{
			Key:   fmt.Sprint(b.Key),
			Count: b.DocCount,
		})
	}
	return out, nil
}

// RegionStats aggregates mean risk, sample count and risk-label proportions
// per region for the choropleth join. The region keys are raw document
// values; the geo layer normalizes them before matching boundary features.
func (s *Summarizer) RegionStats(ctx context.Context, f *domain.FilterSet, regionField string) ([]domain.RegionStat, error) {
	if regionField == "" {
		return nil, &SchemaError{Field: "region", Message: "no resolved region field for choropleth aggregation"}
	}

	body := s.qb.Build(f)
	body["size"] = 0
	body["aggs"] = map[string]any{
		"by_region": map[string]any{
			"terms": map[string]any{"field": regionField, "size": regionStatsMaxSize},
			"aggs": map[string]any{
				"risk_mean": map[string]any{"avg": map[string]any{"field": fieldRiskScore}},
				"high":      map[string]any{"filter": map[string]any{"term": map[string]any{fieldRiskLabel: riskLabelHigh}}},
				"medium":    map[string]any{"filter": map[string]any{"term": map[string]any{fieldRiskLabel: riskLabelMedium}}},
				"low":       map[string]any{"filter": map[string]any{"term": map[string]any{fieldRiskLabel: riskLabelLow}}},
			},
		},
	}

	var resp struct {
		Aggregations struct {
			ByRegion struct {
				Buckets []struct {
					Key      any   `json:"key"`
					DocCount int64 `json:"doc_count"`
					RiskMean struct {
						Value *float64 `json:"value"`
					} `json:"risk_mean"`
					High struct {
						DocCount int64 `json:"doc_count"`
					} `json:"high"`
					Medium struct {
						DocCount int64 `json:"doc_count"`
					} `json:"medium"`
					Low struct {
						DocCount int64 `json:"doc_count"`
					} `json:"low"`
				} `json:"buckets"`
			} `json:"by_region"`
		} `json:"aggregations"`
	}
	if err := s.query(ctx, s.cfg.StuntingIndex, body, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.RegionStat, 0, len(resp.Aggregations.ByRegion.Buckets))
	for _, b := range resp.Aggregations.ByRegion.Buckets {
		total := float64(b.DocCount)
		out = append(out, domain.RegionStat{
			Key:         fmt.Sprint(b.Key),
			RiskMean:    b.RiskMean.Value,
			SampleCount: b.DocCount,
			PropHigh:    pct(float64(b.High.DocCount), total) / 100,
			PropMedium:  pct(float64(b.Medium.DocCount), total) / 100,
			PropLow:     pct(float64(b.Low.DocCount), total) / 100,
		})
	}
	return out, nil
}

// HighRiskPct computes the share of filtered records labelled high risk,
// as a percentage. 0 when nothing matches.
func (s *Summarizer) HighRiskPct(ctx context.Context, f *domain.FilterSet) (float64, error) {
	body := s.qb.Build(f)
	body["size"] = 0
	body["track_total_hits"] = true
	body["aggs"] = map[string]any{
		"high_risk": map[string]any{
			"filter": map[string]any{"term": map[string]any{fieldRiskLabel: riskLabelHigh}},
		},
	}

	var resp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			HighRisk struct {
				DocCount int64 `json:"doc_count"`
			} `json:"high_risk"`
		} `json:"aggregations"`
	}
	if err := s.query(ctx, s.cfg.StuntingIndex, body, &resp); err != nil {
		return 0, err
	}
	return pct(float64(resp.Aggregations.HighRisk.DocCount), float64(resp.Hits.Total.Value)), nil
}

// SampleRows fetches filtered source documents for the explorer table,
// exports and the correlation sample. sortField may be empty.
func (s *Summarizer) SampleRows(ctx context.Context, f *domain.FilterSet, sourceFields []string, size int, sortField string) ([]map[string]any, error) {
	body := s.qb.Build(f)
	body["size"] = size
	if len(sourceFields) > 0 {
		body["_source"] = sourceFields
	}
	if sortField != "" {
		body["sort"] = []any{map[string]any{sortField: "asc"}}
	}

	var resp struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := s.query(ctx, s.cfg.StuntingIndex, body, &resp); err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		rows = append(rows, h.Source)
	}
	return rows, nil
}

// mainSummaryResponse mirrors the composite aggregation shape of MainSummary.
type mainSummaryResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
	} `json:"hits"`
	Aggregations struct {
		StuntingCount struct {
			DocCount int64 `json:"doc_count"`
		} `json:"stunting_count"`
		ImunisasiLengkap struct {
			DocCount int64 `json:"doc_count"`
		} `json:"imunisasi_lengkap"`
		TotalImunisasiField struct {
			Value float64 `json:"value"`
		} `json:"total_imunisasi_field"`
		AirBersihDist struct {
			Buckets []struct {
				Key      any   `json:"key"`
				DocCount int64 `json:"doc_count"`
			} `json:"buckets"`
		} `json:"air_bersih_dist"`
		ImunisasiTrend struct {
			Buckets []struct {
				KeyAsString              string `json:"key_as_string"`
				DocCount                 int64  `json:"doc_count"`
				ImunisasiLengkapInBucket struct {
					DocCount int64 `json:"doc_count"`
				} `json:"imunisasi_lengkap_in_bucket"`
			} `json:"buckets"`
		} `json:"imunisasi_trend"`
	} `json:"aggregations"`
}

// query executes one request and decodes the body into out.
func (s *Summarizer) query(ctx context.Context, index string, body map[string]any, out any) error {
	rc, err := s.searcher.Search(ctx, index, body)
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	if err := decode(rc, out); err != nil {
		return fmt.Errorf("parse %s response: %w", index, err)
	}
	return nil
}

func decode(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

func containsLabel(labels []string, v string) bool {
	for _, l := range labels {
		if l == v {
			return true
		}
	}
	return false
}
