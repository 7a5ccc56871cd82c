package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ducminhle1904/forex-phase-bot/internal/backtest"
)

// CSVReporter writes trade lists as CSV files.
type CSVReporter struct{}

// NewCSVReporter creates a new CSV reporter
func NewCSVReporter() *CSVReporter {
	return &CSVReporter{}
}

// WriteTradesCSV writes the completed trades of one run to path
func (r *CSVReporter) WriteTradesCSV(results *backtest.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"opened_at", "closed_at", "symbol", "entry", "exit", "size", "stop", "take", "exit_reason", "pnl"}); err != nil {
		return err
	}

	for _, tr := range results.Trades {
		pos := tr.Position
		record := []string{
			pos.OpenedAt.Format("2006-01-02 15:04:05"),
			pos.ClosedAt.Format("2006-01-02 15:04:05"),
			pos.Symbol,
			fmt.Sprintf("%.5f", pos.EntryPrice),
			fmt.Sprintf("%.5f", pos.ExitPrice),
			fmt.Sprintf("%.0f", pos.Size),
			fmt.Sprintf("%.5f", pos.StopPrice),
			fmt.Sprintf("%.5f", pos.TakePrice),
			pos.ExitReason.String(),
			fmt.Sprintf("%.2f", TradePnL(tr)),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
