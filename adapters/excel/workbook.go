package excel

import (
	"fmt"
	"io"
	"strings"

	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/internal/report"
	"ceaiinsights/models"

	"github.com/montanaflynn/stats"
	"github.com/xuri/excelize/v2"
)

const (
	ReportSheet      = "Report"
	DepartmentsSheet = "Departments"
)

// ExportWorkbook builds a workbook from a successful analysis: the report text
// one line per row, and the parsed department scores with a mean row.
func ExportWorkbook(record *models.AnalysisRecord) (*excelize.File, error) {
	if record == nil || record.Status != models.OutcomeSuccess || record.Summary == "" {
		return nil, apperrors.ValidationError("only successful analyses can be exported")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name report sheet: %w", err)
	}

	if err := writeReportSheet(f, record); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeDepartmentsSheet(f, report.ParseDepartments(record.Summary)); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// WriteWorkbook exports record as xlsx into w
func WriteWorkbook(w io.Writer, record *models.AnalysisRecord) error {
	f, err := ExportWorkbook(record)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeReportSheet(f *excelize.File, record *models.AnalysisRecord) error {
	header := []interface{}{
		fmt.Sprintf("%s (%s, %s)", record.FileName, record.Provider, record.Model),
	}
	if err := f.SetSheetRow(ReportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}

	for i, line := range strings.Split(record.Summary, "\n") {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(ReportSheet, cell, line); err != nil {
			return fmt.Errorf("failed to write report line %d: %w", i+1, err)
		}
	}

	return f.SetColWidth(ReportSheet, "A", "A", 100)
}

func writeDepartmentsSheet(f *excelize.File, departments []report.Department) error {
	if _, err := f.NewSheet(DepartmentsSheet); err != nil {
		return fmt.Errorf("failed to create departments sheet: %w", err)
	}

	header := []interface{}{"Department"}
	for _, dim := range report.Dimensions {
		header = append(header, dim)
	}
	if err := f.SetSheetRow(DepartmentsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write departments header: %w", err)
	}

	columns := make([]stats.Float64Data, len(report.Dimensions))
	for i, dept := range departments {
		row := []interface{}{dept.Name}
		for j, dim := range report.Dimensions {
			score, ok := dept.Scores[dim]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, score)
			columns[j] = append(columns[j], score)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DepartmentsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write department %s: %w", dept.Name, err)
		}
	}

	if len(departments) == 0 {
		return nil
	}

	meanRow := []interface{}{"Mean"}
	for _, col := range columns {
		mean, err := stats.Mean(col)
		if err != nil {
			meanRow = append(meanRow, "")
			continue
		}
		rounded, _ := stats.Round(mean, 2)
		meanRow = append(meanRow, rounded)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(departments)+2)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(DepartmentsSheet, cell, &meanRow); err != nil {
		return fmt.Errorf("failed to write mean row: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(report.Dimensions) + 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(DepartmentsSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	meanEnd := fmt.Sprintf("%s%d", lastCol, len(departments)+2)
	return f.SetCellStyle(DepartmentsSheet, cell, meanEnd, bold)
}
