// Package reporting renders replay results for humans and spreadsheets.
package reporting

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/forex-phase-bot/internal/backtest"
	"github.com/ducminhle1904/forex-phase-bot/internal/sizing"
	"github.com/ducminhle1904/forex-phase-bot/internal/strategy"
)

// TradePnL returns the account-currency P&L of one completed trade.
func TradePnL(t strategy.Trade) float64 {
	raw := (t.Position.ExitPrice - t.Position.EntryPrice) * t.Position.Size
	return sizing.ReportedPnL(raw, t.Correction)
}

// ConsoleReporter prints replay results to stdout.
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// OutputResults prints the replay summary and trade list to console
func (r *ConsoleReporter) OutputResults(symbol, variant string, results *backtest.Result) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Printf("📊 REPLAY RESULTS: %s / %s\n", symbol, variant)
	fmt.Println(strings.Repeat("=", 50))

	fmt.Printf("💰 Initial Balance:  $%.2f\n", results.InitialBalance)
	fmt.Printf("💰 Final Balance:    $%.2f\n", results.FinalBalance)
	fmt.Printf("📈 Total P&L:        $%.2f (%.2f%%)\n", results.TotalPnL, results.TotalPnL/results.InitialBalance*100)
	fmt.Printf("🔄 Bars Processed:   %d (warm-up %d)\n", results.BarsProcessed, results.WarmupBars)
	fmt.Printf("🔄 Total Trades:     %d\n", results.TotalTrades)

	winRate := 0.0
	if results.TotalTrades > 0 {
		winRate = float64(results.Wins) / float64(results.TotalTrades) * 100
	}
	fmt.Printf("✅ Winning Trades:   %d (%.1f%%)\n", results.Wins, winRate)
	fmt.Printf("❌ Losing Trades:    %d\n", results.Losses)

	if len(results.Trades) > 0 {
		r.printTrades(results.Trades)
	}
}

func (r *ConsoleReporter) printTrades(trades []strategy.Trade) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADES")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"#", "Opened", "Closed", "Entry", "Exit", "Size", "Reason", "P&L"})
	for i, tr := range trades {
		pos := tr.Position
		t.AppendRow(table.Row{
			i + 1,
			pos.OpenedAt.Format("2006-01-02 15:04"),
			pos.ClosedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.5f", pos.EntryPrice),
			fmt.Sprintf("%.5f", pos.ExitPrice),
			fmt.Sprintf("%.0f", pos.Size),
			pos.ExitReason.String(),
			fmt.Sprintf("%.2f", TradePnL(tr)),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 8, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}
