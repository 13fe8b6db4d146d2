package elastic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stuntlytics/stuntlytics/internal/config"
	"github.com/stuntlytics/stuntlytics/internal/domain"
	"github.com/stuntlytics/stuntlytics/internal/elastic"
)

func getTestESConfig() *config.ElasticsearchConfig {
	return &config.ElasticsearchConfig{
		StuntingIndex:           "stunting-data",
		NutritionIndex:          "jabar-tenaga-gizi",
		DateField:               "Tanggal",
		RegencyFieldCandidates:  []string{"nama_kabupaten_kota", "Wilayah"},
		DistrictFieldCandidates: []string{"Kecamatan"},
		ResolverTermsSize:       500,
	}
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestQueryBuilder_Build_EmptyFilters(t *testing.T) {
	qb := elastic.NewQueryBuilder(getTestESConfig())

	query := qb.Build(&domain.FilterSet{})

	queryField, ok := query["query"].(map[string]any)
	if !ok {
		t.Fatal("Build() 'query' field not a map")
	}
	if _, hasMatchAll := queryField["match_all"]; !hasMatchAll {
		t.Error("empty filter set should build a match_all query")
	}
}

func TestQueryBuilder_Build_DateRange(t *testing.T) {
	qb := elastic.NewQueryBuilder(getTestESConfig())

	tests := []struct {
		name    string
		filters *domain.FilterSet
		wantGte string
		wantLte string
	}{
		{
			name:    "both bounds",
			filters: &domain.FilterSet{DateFrom: date("2024-01-01"), DateTo: date("2024-06-30")},
			wantGte: "2024-01-01",
			wantLte: "2024-06-30",
		},
		{
			name:    "open-ended upper",
			filters: &domain.FilterSet{DateFrom: date("2024-01-01")},
			wantGte: "2024-01-01",
		},
		{
			name:    "open-ended lower",
			filters: &domain.FilterSet{DateTo: date("2024-06-30")},
			wantLte: "2024-06-30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := qb.Build(tt.filters)
			clauses := filterClauses(t, query)
			if len(clauses) != 1 {
				t.Fatalf("expected 1 clause, got %d", len(clauses))
			}
			rangeClause, ok := clauses[0].(map[string]any)["range"].(map[string]any)
			if !ok {
				t.Fatal("expected a range clause")
			}
			dateRange, ok := rangeClause["Tanggal"].(map[string]any)
			if !ok {
				t.Fatal("range clause should target the Tanggal field")
			}
			if tt.wantGte != "" && dateRange["gte"] != tt.wantGte {
				t.Errorf("gte = %v, want %v", dateRange["gte"], tt.wantGte)
			}
			if tt.wantGte == "" {
				if _, present := dateRange["gte"]; present {
					t.Error("gte should be absent for open-ended lower bound")
				}
			}
			if tt.wantLte != "" && dateRange["lte"] != tt.wantLte {
				t.Errorf("lte = %v, want %v", dateRange["lte"], tt.wantLte)
			}
			if tt.wantLte == "" {
				if _, present := dateRange["lte"]; present {
					t.Error("lte should be absent for open-ended upper bound")
				}
			}
		})
	}
}

func TestQueryBuilder_Build_RegionAndCategorySelections(t *testing.T) {
	qb := elastic.NewQueryBuilder(getTestESConfig())

	query := qb.Build(&domain.FilterSet{
		RegencyField:  "nama_kabupaten_kota",
		Regencies:     []string{"GARUT", "KOTA BANDUNG"},
		DistrictField: "Kecamatan",
		Districts:     []string{"Tarogong Kidul"},
		Categories: map[string][]string{
			"Pendidikan Ibu": {"SD", "SMP"},
		},
	})

	clauses := filterClauses(t, query)
	if len(clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(clauses))
	}

	// Every clause must be a terms whitelist on its own field.
	seen := map[string]bool{}
	for _, c := range clauses {
		terms, ok := c.(map[string]any)["terms"].(map[string]any)
		if !ok {
			t.Fatalf("expected terms clause, got %v", c)
		}
		for field := range terms {
			seen[field] = true
		}
	}
	for _, field := range []string{"nama_kabupaten_kota", "Kecamatan", "Pendidikan Ibu"} {
		if !seen[field] {
			t.Errorf("missing terms clause for field %q", field)
		}
	}
}

func TestQueryBuilder_Build_EmptySelectionIsUnfiltered(t *testing.T) {
	qb := elastic.NewQueryBuilder(getTestESConfig())

	query := qb.Build(&domain.FilterSet{
		RegencyField: "nama_kabupaten_kota",
		Regencies:    nil,
		Categories:   map[string][]string{"Pendidikan Ibu": {}},
	})

	queryField := query["query"].(map[string]any)
	if _, hasMatchAll := queryField["match_all"]; !hasMatchAll {
		t.Error("empty selections should not produce filter clauses")
	}
}

func TestFilterSet_Validate_RejectsInvertedDateRange(t *testing.T) {
	f := &domain.FilterSet{DateFrom: date("2024-06-30"), DateTo: date("2024-01-01")}
	err := f.Validate()
	if err == nil {
		t.Fatal("Validate() should reject date_from after date_to")
	}

	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Validate() error = %T, want *domain.ValidationError", err)
	} else if valErr.Field != "date_from" {
		t.Errorf("ValidationError.Field = %q, want %q", valErr.Field, "date_from")
	}
}

func TestFilterSet_Validate_SelectionNeedsResolvedField(t *testing.T) {
	f := &domain.FilterSet{Regencies: []string{"GARUT"}}
	var valErr *domain.ValidationError
	if !errors.As(f.Validate(), &valErr) {
		t.Fatal("regency selection without a resolved field should return a ValidationError")
	}
	if valErr.Field != "regencies" {
		t.Errorf("ValidationError.Field = %q, want %q", valErr.Field, "regencies")
	}
}

func TestFilterSet_Hash_OrderIndependent(t *testing.T) {
	a := &domain.FilterSet{
		RegencyField: "nama_kabupaten_kota",
		Regencies:    []string{"GARUT", "BANDUNG"},
	}
	b := &domain.FilterSet{
		RegencyField: "nama_kabupaten_kota",
		Regencies:    []string{"BANDUNG", "GARUT"},
	}
	if a.Hash() != b.Hash() {
		t.Error("hash should not depend on selection order")
	}

	c := &domain.FilterSet{
		RegencyField: "nama_kabupaten_kota",
		Regencies:    []string{"BANDUNG"},
	}
	if a.Hash() == c.Hash() {
		t.Error("different selections should hash differently")
	}
}

func TestAnyOfFields(t *testing.T) {
	clause := elastic.AnyOfFields(
		[]string{"ASI Eksklusif", "ASI Eksklusif (ya/tidak)"},
		[]string{"Ya", "ya"},
	)

	boolClause, ok := clause["bool"].(map[string]any)
	if !ok {
		t.Fatal("expected bool clause")
	}
	should, ok := boolClause["should"].([]any)
	if !ok || len(should) != 2 {
		t.Fatalf("expected 2 should clauses, got %v", boolClause["should"])
	}
	if boolClause["minimum_should_match"] != 1 {
		t.Error("minimum_should_match must be 1")
	}
}

// filterClauses digs the bool filter array out of a built query.
func filterClauses(t *testing.T, query map[string]any) []any {
	t.Helper()
	queryField, ok := query["query"].(map[string]any)
	if !ok {
		t.Fatal("query field not a map")
	}
	boolClause, ok := queryField["bool"].(map[string]any)
	if !ok {
		t.Fatal("expected a bool query")
	}
	clauses, ok := boolClause["filter"].([]any)
	if !ok {
		t.Fatal("expected a filter array")
	}
	return clauses
}
