package predict

import (
	"math"

	"github.com/stuntlytics/stuntlytics/internal/domain"
)

// Heuristic weight table. The indicators are binary (1 = protective factor
// present / risk factor present as named); the two continuous terms are
// normalized against the form maxima (60 months, 7 dependents).
const (
	wNoBreastfeed    = 0.28
	wNoImmunization  = 0.20
	wNoWaterAccess   = 0.16
	wNoSanitation    = 0.12
	wLowBirthWeight  = 0.14
	wAgeMonths       = 0.05
	wDependents      = 0.05
	lowBirthWeightGr = 2500
)

// Risk label cut points.
const (
	highRiskAbove   = 0.66
	mediumRiskAbove = 0.33
)

// HeuristicScore computes a weighted-indicator risk score clamped to [0,1].
// Used when neither a local artifact nor the remote service can score.
func HeuristicScore(rec *domain.PredictionRecord) float64 {
	asi := indicator(rec.ExclusiveBreastfeed == "Ya")
	imun := indicator(rec.ImmunizationStatus == "Lengkap")
	air := indicator(rec.CleanWaterAccess == "Layak")
	// The form carries no sanitation field; water access stands in.
	jamban := air
	bblr := indicator(rec.BirthWeightGrams > 0 && rec.BirthWeightGrams < lowBirthWeightGr)

	score := wNoBreastfeed*(1-asi) +
		wNoImmunization*(1-imun) +
		wNoWaterAccess*(1-air) +
		wNoSanitation*(1-jamban) +
		wLowBirthWeight*bblr +
		wAgeMonths*(rec.ChildAgeMonths/60.0) +
		wDependents*(rec.ChildCount/7.0)

	return math.Max(0, math.Min(1, score))
}

// HeuristicLabel maps a score to the advisory risk category.
func HeuristicLabel(score float64) string {
	switch {
	case score > highRiskAbove:
		return "Tinggi"
	case score > mediumRiskAbove:
		return "Sedang"
	default:
		return "Rendah"
	}
}

// Recommendations derives quick intervention advice from the record's risk
// indicators. Never empty: a record with no flags gets routine monitoring.
func Recommendations(rec *domain.PredictionRecord) []string {
	var recs []string
	if rec.BirthWeightGrams > 0 && rec.BirthWeightGrams < lowBirthWeightGr {
		recs = append(recs, "Pantau BBLR & PMT spesifik gizi")
	}
	if rec.ExclusiveBreastfeed != "Ya" {
		recs = append(recs, "Konseling ASI & dukungan laktasi")
	}
	if rec.ImmunizationStatus != "Lengkap" {
		recs = append(recs, "Lengkapi imunisasi dasar")
	}
	if rec.CleanWaterAccess != "Layak" {
		recs = append(recs, "Program WASH (air & jamban sehat)")
	}
	if len(recs) == 0 {
		recs = append(recs, "Monitoring berkala oleh kader/posyandu")
	}
	return recs
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
