package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDataDefaultFormat(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-03-04 10:00:00,1.1000,1.1010,1.0995,1.1005,1200
2024-03-04 10:05:00,1.1005,1.1020,1.1004,1.1018,900
`)

	p := NewCSVProvider()
	bars, err := p.LoadData(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, 1.1000, bars[0].Open)
	assert.Equal(t, 1.1018, bars[1].Close)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC), bars[1].Timestamp)
	require.NoError(t, p.ValidateData(bars))
}

func TestLoadDataSkipsMalformedLines(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2024-03-04 10:00:00,1.1000,1.1010,1.0995,1.1005,1200
not-a-date,1.1005,1.1020,1.1004,1.1018,900
2024-03-04 10:10:00,abc,1.1020,1.1004,1.1018,900
2024-03-04 10:15:00,1.1010,1.1025,1.1008,1.1022,800
`)

	bars, err := NewCSVProvider().LoadData(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.1022, bars[1].Close)
}

func TestLoadDataMissingFile(t *testing.T) {
	_, err := NewCSVProvider().LoadData(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestLoadDataEmptyFileErrors(t *testing.T) {
	path := writeCSV(t, "timestamp,open,high,low,close,volume\n")
	_, err := NewCSVProvider().LoadData(path)
	assert.Error(t, err)
}

func TestValidateSequenceRejectsOutOfOrder(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Timestamp: t0, Open: 1, High: 1.1, Low: 0.9, Close: 1},
		{Timestamp: t0.Add(-time.Minute), Open: 1, High: 1.1, Low: 0.9, Close: 1},
	}
	assert.Error(t, ValidateSequence(bars))

	dup := []types.Bar{
		{Timestamp: t0, Open: 1, High: 1.1, Low: 0.9, Close: 1},
		{Timestamp: t0, Open: 1, High: 1.1, Low: 0.9, Close: 1},
	}
	assert.Error(t, ValidateSequence(dup))
}

func TestValidateSequenceRejectsInconsistentBar(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	assert.Error(t, ValidateSequence([]types.Bar{
		{Timestamp: t0, Open: 1, High: 0.9, Low: 1.1, Close: 1}, // high < low
	}))
	assert.Error(t, ValidateSequence([]types.Bar{
		{Timestamp: t0, Open: 2, High: 1.1, Low: 0.9, Close: 1}, // open above range
	}))
}

func TestFilterByDateRange(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	var bars []types.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, types.Bar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: 1, High: 1.1, Low: 0.9, Close: 1})
	}

	out := FilterByDateRange(bars, t0.Add(time.Hour), t0.Add(3*time.Hour))
	assert.Len(t, out, 3)

	all := FilterByDateRange(bars, time.Time{}, time.Time{})
	assert.Len(t, all, 5)
}
