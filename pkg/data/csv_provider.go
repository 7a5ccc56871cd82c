package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// CSVColumnMapping defines the column positions for different CSV layouts
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat matches the broker export layout:
// timestamp,open,high,low,close,volume
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// MT5CSVFormat matches MetaTrader exports with separate date and time
// columns joined as "2006.01.02<tab>15:04".
var MT5CSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006.01.02 15:04",
}

// CSVProvider implements Provider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
}

// NewCSVProvider creates a new CSV provider with the default format
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultCSVFormat}
}

// NewCSVProviderWithFormat creates a new CSV provider with a custom format
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

// GetName returns the name of the provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads historical bars from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.Bar, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s is empty", source)
		}
		return nil, err
	}

	var bars []types.Bar
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading %s line %d: %w", source, lineNum, err)
		}
		lineNum++

		if len(record) < p.format.MinColumns {
			log.Printf("⚠️ insufficient columns at line %d (expected %d, got %d), skipping", lineNum, p.format.MinColumns, len(record))
			continue
		}

		timestamp, err := time.Parse(p.format.DateFormat, record[p.format.TimestampCol])
		if err != nil {
			log.Printf("⚠️ invalid timestamp '%s' at line %d, skipping: %v", record[p.format.TimestampCol], lineNum, err)
			continue
		}

		open, err := strconv.ParseFloat(record[p.format.OpenCol], 64)
		if err != nil {
			log.Printf("⚠️ invalid open price '%s' at line %d, skipping: %v", record[p.format.OpenCol], lineNum, err)
			continue
		}
		high, err := strconv.ParseFloat(record[p.format.HighCol], 64)
		if err != nil {
			log.Printf("⚠️ invalid high price '%s' at line %d, skipping: %v", record[p.format.HighCol], lineNum, err)
			continue
		}
		low, err := strconv.ParseFloat(record[p.format.LowCol], 64)
		if err != nil {
			log.Printf("⚠️ invalid low price '%s' at line %d, skipping: %v", record[p.format.LowCol], lineNum, err)
			continue
		}
		closePrice, err := strconv.ParseFloat(record[p.format.CloseCol], 64)
		if err != nil {
			log.Printf("⚠️ invalid close price '%s' at line %d, skipping: %v", record[p.format.CloseCol], lineNum, err)
			continue
		}
		volume, err := strconv.ParseFloat(record[p.format.VolumeCol], 64)
		if err != nil {
			log.Printf("⚠️ invalid volume '%s' at line %d, skipping: %v", record[p.format.VolumeCol], lineNum, err)
			continue
		}

		bars = append(bars, types.Bar{
			Timestamp: timestamp,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%s contained no parseable bars", source)
	}
	return bars, nil
}

// ValidateData validates the integrity of the loaded series
func (p *CSVProvider) ValidateData(bars []types.Bar) error {
	return ValidateSequence(bars)
}
