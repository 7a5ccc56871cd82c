package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/forex-phase-bot/internal/backtest"
	appbuild "github.com/ducminhle1904/forex-phase-bot/internal/config"
	"github.com/ducminhle1904/forex-phase-bot/internal/tradelog"
	"github.com/ducminhle1904/forex-phase-bot/pkg/config"
	"github.com/ducminhle1904/forex-phase-bot/pkg/data"
	"github.com/ducminhle1904/forex-phase-bot/pkg/reporting"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		configFile = flag.String("config", "config.json", "Path to configuration file")
		envFile    = flag.String("env", ".env", "Environment file path")
		mt5Format  = flag.Bool("mt5", false, "Parse data files as MT5 exports")
		fromStr    = flag.String("from", "", "Replay start date (YYYY-MM-DD)")
		toStr      = flag.String("to", "", "Replay end date (YYYY-MM-DD)")
		outputDir  = flag.String("output", "", "Directory for CSV and Excel reports (console only when empty)")
	)
	flag.Parse()

	// Load .env file if it exists
	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("⚠️ Failed to load %s: %v", *envFile, err)
		}
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	from, to, err := parseDateRange(*fromStr, *toStr)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	events, closeEvents, err := openTradeLog(cfg.TradeLogFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer closeEvents()

	provider := newProvider(*mt5Format)
	console := reporting.NewConsoleReporter()

	for _, inst := range cfg.Instances {
		if err := runInstance(cfg, inst, provider, console, logger, events, from, to, *outputDir); err != nil {
			log.Fatalf("❌ %s/%s: %v", inst.Instrument.Symbol, inst.Variant.Kind, err)
		}
	}
}

func runInstance(
	cfg *config.Config,
	inst config.InstanceConfig,
	provider data.Provider,
	console *reporting.ConsoleReporter,
	logger zerolog.Logger,
	events *tradelog.Logger,
	from, to time.Time,
	outputDir string,
) error {
	symbol := inst.Instrument.Symbol

	if inst.DataFile == "" {
		return fmt.Errorf("no data_file configured")
	}

	bars, err := provider.LoadData(inst.DataFile)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	if err := provider.ValidateData(bars); err != nil {
		return fmt.Errorf("validate data: %w", err)
	}
	if !from.IsZero() || !to.IsZero() {
		bars = data.FilterByDateRange(bars, from, to)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars in the selected range")
	}

	variant, err := appbuild.BuildVariant(inst)
	if err != nil {
		return err
	}

	eng, err := backtest.NewEngine(backtest.Config{
		InitialBalance: cfg.InitialBalance,
		Instrument:     inst.Instrument,
		RiskFraction:   inst.RiskFraction,
		Variant:        variant,
		Indicators:     appbuild.BuildIndicators(inst),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("📊 Replaying %s (%s): %d bars from %s\n",
		symbol, variant.Name, len(bars), filepath.Base(inst.DataFile))

	res, err := eng.Run(context.Background(), bars)
	if err != nil {
		return err
	}

	if events != nil {
		for _, tr := range res.Transitions {
			events.Transition(symbol, variant.Name, tr)
		}
		for _, trade := range res.Trades {
			events.Exit(symbol, variant.Name, trade)
		}
	}

	console.OutputResults(symbol, variant.Name, res)

	if outputDir != "" {
		stem := fmt.Sprintf("%s_%s", strings.ToLower(symbol), variant.Name)
		csvPath := filepath.Join(outputDir, stem+"_trades.csv")
		if err := reporting.NewCSVReporter().WriteTradesCSV(res, csvPath); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		xlsxPath := filepath.Join(outputDir, stem+".xlsx")
		if err := reporting.NewExcelReporter().WriteResultsXLSX(symbol, variant.Name, res, xlsxPath); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		fmt.Printf("✅ Reports written to %s and %s\n", csvPath, xlsxPath)
	}

	return nil
}

func newProvider(mt5 bool) data.Provider {
	if mt5 {
		return data.NewCSVProviderWithFormat(data.MT5CSVFormat)
	}
	return data.NewCSVProvider()
}

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error

	if fromStr != "" {
		if from, err = time.Parse(dateLayout, fromStr); err != nil {
			return from, to, fmt.Errorf("invalid -from date %q: %w", fromStr, err)
		}
	}
	if toStr != "" {
		if to, err = time.Parse(dateLayout, toStr); err != nil {
			return from, to, fmt.Errorf("invalid -to date %q: %w", toStr, err)
		}
		// Make the end date inclusive of its whole day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("-to date is before -from date")
	}
	return from, to, nil
}

func openTradeLog(path string) (*tradelog.Logger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create trade log directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create trade log: %w", err)
	}
	return tradelog.New(file), func() { file.Close() }, nil
}
