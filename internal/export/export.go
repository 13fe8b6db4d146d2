// Package export renders filtered datasets and KPI snapshots into the
// download formats offered by the dashboard: CSV, JSON and XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/stuntlytics/stuntlytics/internal/domain"
)

// Columns derives a stable column order for row exports: the union of all
// row keys, sorted.
func Columns(rows []map[string]any) []string {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// CSV renders rows under the given column order. Missing cells are empty.
func CSV(rows []map[string]any, columns []string) ([]byte, error) {
	if len(columns) == 0 {
		columns = Columns(rows)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = cell(row[col])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildReport assembles the exportable KPI snapshot for the active filters.
func BuildReport(filters *domain.FilterSet, kpi domain.KPISet, rowCount int, now time.Time) *domain.Report {
	return &domain.Report{
		GeneratedAt: now,
		Filters:     filters,
		KPI:         kpi,
		RowCount:    rowCount,
	}
}

// ReportJSON renders the report as indented JSON.
func ReportJSON(report *domain.Report) ([]byte, error) {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return raw, nil
}

const (
	sheetData = "Data"
	sheetKPI  = "Ringkasan KPI"
)

// XLSX renders a workbook with the filtered rows and a KPI summary sheet.
func XLSX(rows []map[string]any, columns []string, kpi domain.KPISet) ([]byte, error) {
	if len(columns) == 0 {
		columns = Columns(rows)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	f.SetSheetName(f.GetSheetName(0), sheetData)
	for i, col := range columns {
		name, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetData, name, col); err != nil {
			return nil, fmt.Errorf("write header %s: %w", col, err)
		}
	}
	for r, row := range rows {
		for c, col := range columns {
			name, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheetData, name, cell(row[col])); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	if _, err := f.NewSheet(sheetKPI); err != nil {
		return nil, fmt.Errorf("create kpi sheet: %w", err)
	}
	kpiRows := []struct {
		label string
		value any
	}{
		{"Total Bayi Lahir", kpi.TotalBirths},
		{"Total Bayi Stunting", kpi.TotalStunting},
		{"Jumlah Nakes Gizi", kpi.NutritionWorkers},
		{"Cakupan Imunisasi (%)", kpi.ImmunizationCoveragePct},
		{"Akses Air Layak (%)", kpi.CleanWaterAccessPct},
	}
	for i, kv := range kpiRows {
		axis := fmt.Sprintf("A%d", i+1)
		if err := f.SetCellValue(sheetKPI, axis, kv.label); err != nil {
			return nil, fmt.Errorf("write kpi label: %w", err)
		}
		axis = fmt.Sprintf("B%d", i+1)
		if err := f.SetCellValue(sheetKPI, axis, kv.value); err != nil {
			return nil, fmt.Errorf("write kpi value: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cell formats a source value for a spreadsheet cell.
func cell(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// Whole numbers from JSON decoding print without the trailing .0.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(v)
	}
}
