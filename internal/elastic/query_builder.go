package elastic

import (
	"sort"

	"github.com/stuntlytics/stuntlytics/internal/config"
	"github.com/stuntlytics/stuntlytics/internal/domain"
)

// QueryBuilder translates a FilterSet into an Elasticsearch bool query.
// Clauses are independent and conjunctive; order never changes the result
// set, only possibly the execution plan.
type QueryBuilder struct {
	dateField string
}

// NewQueryBuilder creates a new query builder.
func NewQueryBuilder(cfg *config.ElasticsearchConfig) *QueryBuilder {
	return &QueryBuilder{
		dateField: cfg.DateField,
	}
}

// Build constructs the query clause for a filter set. No active filter
// yields the match-everything query.
func (qb *QueryBuilder) Build(f *domain.FilterSet) map[string]any {
	filters := qb.buildFilters(f)
	if len(filters) == 0 {
		return map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": filters,
			},
		},
	}
}

// buildFilters constructs the individual filter clauses.
func (qb *QueryBuilder) buildFilters(f *domain.FilterSet) []any {
	var result []any

	// Date range clause, open-ended on a missing bound.
	if f.DateFrom != nil || f.DateTo != nil {
		dateRange := map[string]any{}
		if f.DateFrom != nil {
			dateRange["gte"] = f.DateFrom.Format("2006-01-02")
		}
		if f.DateTo != nil {
			dateRange["lte"] = f.DateTo.Format("2006-01-02")
		}
		result = append(result, map[string]any{
			"range": map[string]any{
				qb.dateField: dateRange,
			},
		})
	}

	if f.RegencyField != "" && len(f.Regencies) > 0 {
		result = append(result, map[string]any{
			"terms": map[string]any{
				f.RegencyField: f.Regencies,
			},
		})
	}

	if f.DistrictField != "" && len(f.Districts) > 0 {
		result = append(result, map[string]any{
			"terms": map[string]any{
				f.DistrictField: f.Districts,
			},
		})
	}

	// Category selections, one terms clause per field. Fields are walked in
	// sorted order so the generated body is deterministic.
	fields := make([]string, 0, len(f.Categories))
	for field := range f.Categories {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		values := f.Categories[field]
		if len(values) == 0 {
			continue
		}
		result = append(result, map[string]any{
			"terms": map[string]any{
				field: values,
			},
		})
	}

	return result
}

// AnyOfFields builds a should clause matching the given values on any of a
// set of synonym fields. Dataset revisions renamed several categorical
// columns, so a single logical filter may probe two physical fields.
func AnyOfFields(fields []string, values []string) map[string]any {
	should := make([]any, 0, len(fields))
	for _, field := range fields {
		should = append(should, map[string]any{
			"terms": map[string]any{field: values},
		})
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}
