package services

import (
	"context"
	"fmt"
	"io"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"

	"github.com/xuri/excelize/v2"
)

// ReportService builds stock and task reports.
type ReportService interface {
	StockSummary(ctx context.Context) (*models.StockSummary, error)
	StockValuation(ctx context.Context) ([]models.ValuationRow, error)
	// WriteValuationWorkbook renders the valuation as an .xlsx workbook into w.
	WriteValuationWorkbook(ctx context.Context, w io.Writer) error

	TaskReport(ctx context.Context, actor models.Principal, req TaskReportRequest) (*models.TaskReport, error)
	// UserReport covers userID's tasks and the shifts between dateFrom and dateTo,
	// which default to the last 30 days.
	UserReport(ctx context.Context, actor models.Principal, userID int64, dateFrom, dateTo string) (*models.UserReport, error)
	SummaryReport(ctx context.Context, actor models.Principal, req SummaryReportRequest) (*models.SummaryReport, error)
}

type reportService struct {
	reportRepo     repositories.ReportRepository
	work           WorkDeps
	now            Clock
	expiringWithin int
}

// NewReportService creates a new instance of ReportService. Task reports read
// through work. expiringWithinDays sets the window for the expiring batch count.
func NewReportService(rr repositories.ReportRepository, work WorkDeps, expiringWithinDays int) ReportService {
	if expiringWithinDays < 0 {
		expiringWithinDays = 7
	}
	return &reportService{reportRepo: rr, work: work, now: work.clock(), expiringWithin: expiringWithinDays}
}

func (s *reportService) StockSummary(ctx context.Context) (*models.StockSummary, error) {
	from, to, err := expiryWindow(s.now(), s.expiringWithin)
	if err != nil {
		return nil, err
	}
	summary, err := s.reportRepo.StockSummary(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to build stock summary: %w", err)
	}
	return summary, nil
}

func (s *reportService) StockValuation(ctx context.Context) ([]models.ValuationRow, error) {
	rows, err := s.reportRepo.StockValuation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build stock valuation: %w", err)
	}
	return rows, nil
}

const valuationSheet = "Valuation"

func (s *reportService) WriteValuationWorkbook(ctx context.Context, w io.Writer) error {
	rows, err := s.StockValuation(ctx)
	if err != nil {
		return err
	}

	f, err := newWorkbook(valuationSheet)
	if err != nil {
		return err
	}
	defer f.Close()

	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		category := ""
		if r.CategoryName != nil {
			category = *r.CategoryName
		}
		unitCost, _ := r.UnitCost.Float64()
		total, _ := r.TotalValue.Float64()
		values = append(values, []interface{}{r.Name, category, r.Unit, r.CurrentQuantity, unitCost, total})
	}
	headers := []interface{}{"Item", "Category", "Unit", "Quantity", "Unit Cost", "Total Value"}
	if err := writeSheet(f, valuationSheet, headers, values); err != nil {
		return err
	}

	totalRow := len(rows) + 2
	if err := f.SetCellValue(valuationSheet, fmt.Sprintf("E%d", totalRow), "Total"); err != nil {
		return fmt.Errorf("writing total label: %w", err)
	}
	if len(rows) > 0 {
		formula := fmt.Sprintf("SUM(F2:F%d)", totalRow-1)
		if err := f.SetCellFormula(valuationSheet, fmt.Sprintf("F%d", totalRow), formula); err != nil {
			return fmt.Errorf("writing total formula: %w", err)
		}
	} else if err := f.SetCellValue(valuationSheet, fmt.Sprintf("F%d", totalRow), 0); err != nil {
		return fmt.Errorf("writing total: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// newWorkbook starts a workbook whose first sheet is named first.
func newWorkbook(first string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", first); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("preparing workbook: %w", err)
	}
	return f, nil
}

// writeSheet writes headers into row 1 of sheet and rows below it, creating the sheet if needed.
func writeSheet(f *excelize.File, sheet string, headers []interface{}, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("adding sheet %s: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("writing %s header row: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
