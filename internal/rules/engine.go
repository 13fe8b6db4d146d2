// Package rules evaluates declarative advisory thresholds against an
// aggregated dataset view and emits intervention messages.
package rules

import (
	"github.com/stuntlytics/stuntlytics/internal/logger"
)

// Dataset is the aggregated view a rule predicate reads: mean values of
// indicator fields over the filtered population, keyed by field name.
type Dataset map[string]float64

// Rule binds a predicate to an advisory message. Requires lists the dataset
// fields the predicate reads; if any is absent the rule fails closed (not
// triggered) instead of raising.
type Rule struct {
	Name     string
	Requires []string
	When     func(d Dataset) bool
	Message  string
}

// Engine evaluates an ordered rule set. Evaluation is deterministic: the
// same dataset always yields the same triggered messages, in registration
// order.
type Engine struct {
	rules  []Rule
	logger logger.Logger
}

// NewEngine creates a rule engine over the given ordered rules.
func NewEngine(rules []Rule, log logger.Logger) *Engine {
	return &Engine{rules: rules, logger: log}
}

// Evaluate returns the messages of all triggered rules in registration
// order. A rule whose required fields are missing is skipped with a warning;
// one missing field never suppresses sibling rules.
func (e *Engine) Evaluate(d Dataset) []string {
	var out []string
	for _, r := range e.rules {
		if missing := missingFields(r.Requires, d); missing != "" {
			e.logger.Warn("rule skipped, dataset field absent",
				logger.String("rule", r.Name),
				logger.String("field", missing),
			)
			continue
		}
		if r.When(d) {
			out = append(out, r.Message)
		}
	}
	return out
}

func missingFields(required []string, d Dataset) string {
	for _, f := range required {
		if _, ok := d[f]; !ok {
			return f
		}
	}
	return ""
}

// DefaultRules are the advisory thresholds shown on the insight panel. Field
// values are population means of binary indicators, so 1-mean is the share
// lacking the indicator.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "sanitasi",
			Requires: []string{"akses_air_layak", "jamban_sehat"},
			When: func(d Dataset) bool {
				return 1-d["akses_air_layak"] > 0.35 || 1-d["jamban_sehat"] > 0.35
			},
			Message: "Prioritaskan program PAMSIMAS/air bersih & jamban sehat di wilayah dengan sanitasi buruk.",
		},
		{
			Name:     "imunisasi",
			Requires: []string{"imunisasi_lengkap"},
			When: func(d Dataset) bool {
				return 1-d["imunisasi_lengkap"] > 0.35
			},
			Message: "Lakukan sweeping imunisasi dasar lengkap di kecamatan dengan cakupan rendah.",
		},
		{
			Name:     "bblr",
			Requires: []string{"bblr"},
			When: func(d Dataset) bool {
				return d["bblr"] > 0.18
			},
			Message: "Perkuat kelas ibu hamil & pemantauan BBLR, distribusikan PMT spesifik gizi.",
		},
	}
}
