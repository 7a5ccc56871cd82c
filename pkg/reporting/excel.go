package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/forex-phase-bot/internal/backtest"
)

// ExcelReporter writes replay results as an Excel workbook.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteResultsXLSX writes a Summary and a Trades sheet to path
func (r *ExcelReporter) WriteResultsXLSX(symbol, variant string, results *backtest.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const tradesSheet = "Trades"

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	if err := r.writeSummary(fx, summarySheet, symbol, variant, results, headerStyle); err != nil {
		return err
	}
	if err := r.writeTrades(fx, tradesSheet, results, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) writeSummary(fx *excelize.File, sheet, symbol, variant string, results *backtest.Result, headerStyle int) error {
	rows := [][]interface{}{
		{"Symbol", symbol},
		{"Variant", variant},
		{"Initial Balance", results.InitialBalance},
		{"Final Balance", results.FinalBalance},
		{"Total P&L", results.TotalPnL},
		{"Bars Processed", results.BarsProcessed},
		{"Warm-up Bars", results.WarmupBars},
		{"Total Trades", results.TotalTrades},
		{"Winning Trades", results.Wins},
		{"Losing Trades", results.Losses},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "A", "B", 20)
}

func (r *ExcelReporter) writeTrades(fx *excelize.File, sheet string, results *backtest.Result, headerStyle int) error {
	header := []interface{}{"#", "Opened", "Closed", "Symbol", "Entry", "Exit", "Size", "Stop", "Take", "Reason", "P&L"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "K1", headerStyle); err != nil {
		return err
	}

	for i, tr := range results.Trades {
		pos := tr.Position
		row := []interface{}{
			i + 1,
			pos.OpenedAt.Format("2006-01-02 15:04:05"),
			pos.ClosedAt.Format("2006-01-02 15:04:05"),
			pos.Symbol,
			pos.EntryPrice,
			pos.ExitPrice,
			pos.Size,
			pos.StopPrice,
			pos.TakePrice,
			pos.ExitReason.String(),
			TradePnL(tr),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheet, "A", "K", 16)
}
