package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNoData marks a data-empty condition: the filter set matched no rows.
// Not a failure; callers render an explicit empty state.
var ErrNoData = errors.New("no data for this filter")

// ValidationError reports a filter invariant violation. The API layer matches
// it with errors.As and renders a 400 rather than an internal error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// DateLayout is the wire format for filter dates on both the query string
// and JSON bodies.
const DateLayout = "2006-01-02"

// ParseDate parses a filter date. RFC 3339 timestamps are accepted for
// clients that serialize time values directly.
func ParseDate(s string) (*time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("date %q must be yyyy-mm-dd", s)
}

// FilterSet is the user-facing filter state for one interaction. Selections
// are whitelists; an empty slice means unfiltered. Region fields carry the
// resolved physical field name because it differs across dataset revisions.
type FilterSet struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	RegencyField string   `json:"regency_field,omitempty"`
	Regencies    []string `json:"regencies,omitempty"`

	DistrictField string   `json:"district_field,omitempty"`
	Districts     []string `json:"districts,omitempty"`

	// Categories maps a physical document field to the selected values,
	// e.g. "Pendidikan Ibu" -> ["SD", "SMP"].
	Categories map[string][]string `json:"categories,omitempty"`
}

// UnmarshalJSON binds date fields from the same yyyy-mm-dd format the query
// string uses, so GET and POST accept identical filter payloads.
func (f *FilterSet) UnmarshalJSON(data []byte) error {
	type plain FilterSet
	aux := struct {
		DateFrom *string `json:"date_from"`
		DateTo   *string `json:"date_to"`
		*plain
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.DateFrom != nil {
		t, err := ParseDate(*aux.DateFrom)
		if err != nil {
			return fmt.Errorf("date_from: %w", err)
		}
		f.DateFrom = t
	}
	if aux.DateTo != nil {
		t, err := ParseDate(*aux.DateTo)
		if err != nil {
			return fmt.Errorf("date_to: %w", err)
		}
		f.DateTo = t
	}
	return nil
}

// MarshalJSON emits dates in the same yyyy-mm-dd format UnmarshalJSON binds.
func (f *FilterSet) MarshalJSON() ([]byte, error) {
	type plain FilterSet
	aux := struct {
		DateFrom string `json:"date_from,omitempty"`
		DateTo   string `json:"date_to,omitempty"`
		*plain
	}{plain: (*plain)(f)}
	if f.DateFrom != nil {
		aux.DateFrom = f.DateFrom.Format(DateLayout)
	}
	if f.DateTo != nil {
		aux.DateTo = f.DateTo.Format(DateLayout)
	}
	return json.Marshal(aux)
}

// Validate checks filter invariants. An inverted date range is rejected
// rather than treated as an empty range.
func (f *FilterSet) Validate() error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return &ValidationError{
			Field: "date_from",
			Message: fmt.Sprintf("%s is after date_to %s",
				f.DateFrom.Format(DateLayout), f.DateTo.Format(DateLayout)),
		}
	}
	if len(f.Regencies) > 0 && f.RegencyField == "" {
		return &ValidationError{Field: "regencies", Message: "selection requires a resolved regency_field"}
	}
	if len(f.Districts) > 0 && f.DistrictField == "" {
		return &ValidationError{Field: "districts", Message: "selection requires a resolved district_field"}
	}
	return nil
}

// IsEmpty reports whether no filter is active at all.
func (f *FilterSet) IsEmpty() bool {
	return f.DateFrom == nil && f.DateTo == nil &&
		len(f.Regencies) == 0 && len(f.Districts) == 0 && len(f.Categories) == 0
}

// Hash returns a stable key for this filter set, used for caching derived
// payloads. Selection order does not change the hash.
func (f *FilterSet) Hash() string {
	canonical := struct {
		DateFrom   string              `json:"df"`
		DateTo     string              `json:"dt"`
		RegField   string              `json:"rf"`
		Regencies  []string            `json:"r"`
		DistField  string              `json:"kf"`
		Districts  []string            `json:"k"`
		Categories map[string][]string `json:"c"`
	}{
		RegField:   f.RegencyField,
		DistField:  f.DistrictField,
		Regencies:  sortedCopy(f.Regencies),
		Districts:  sortedCopy(f.Districts),
		Categories: make(map[string][]string, len(f.Categories)),
	}
	if f.DateFrom != nil {
		canonical.DateFrom = f.DateFrom.Format(DateLayout)
	}
	if f.DateTo != nil {
		canonical.DateTo = f.DateTo.Format(DateLayout)
	}
	for field, values := range f.Categories {
		canonical.Categories[field] = sortedCopy(values)
	}

	// json.Marshal sorts map keys, so the encoding is deterministic.
	data, err := json.Marshal(canonical)
	if err != nil {
		// Only reachable with a broken struct definition.
		data = []byte(fmt.Sprint(canonical))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

// String renders a short human-readable description for logging.
func (f *FilterSet) String() string {
	var parts []string
	if f.DateFrom != nil || f.DateTo != nil {
		from, to := "*", "*"
		if f.DateFrom != nil {
			from = f.DateFrom.Format(DateLayout)
		}
		if f.DateTo != nil {
			to = f.DateTo.Format(DateLayout)
		}
		parts = append(parts, from+".."+to)
	}
	if len(f.Regencies) > 0 {
		parts = append(parts, fmt.Sprintf("%d regencies", len(f.Regencies)))
	}
	if len(f.Districts) > 0 {
		parts = append(parts, fmt.Sprintf("%d districts", len(f.Districts)))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, fmt.Sprintf("%d category filters", len(f.Categories)))
	}
	if len(parts) == 0 {
		return "unfiltered"
	}
	return strings.Join(parts, ", ")
}
