package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `{
  "instances": [
    {
      "instrument": {"symbol": "EURJPY"},
      "variant": {"kind": "engulfing-momentum", "cci_threshold": 110, "offset_pips": 2},
      "indicators": {"ema_periods": [5, 10, 20, 50, 100]}
    }
  ]
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 100000.0, cfg.InitialBalance)
	require.Len(t, cfg.Instances, 1)

	inst := cfg.Instances[0]
	assert.Equal(t, DefaultRiskFraction, inst.RiskFraction)
	assert.Equal(t, types.ClassJPY, inst.Instrument.Class)
	assert.Equal(t, 0.01, inst.Instrument.PipSize)
	assert.Equal(t, DefaultContractSize, inst.Instrument.ContractSize)
	assert.Equal(t, DefaultJPYRate, inst.Instrument.QuoteRate)
	assert.Equal(t, DefaultWindowBars, inst.Variant.WindowBars)
	assert.Equal(t, DefaultATRPeriod, inst.Indicators.ATRPeriod)
	assert.Equal(t, DefaultKamaPeriod, inst.Indicators.KamaPeriod)
	assert.Equal(t, 8080, cfg.Live.PrometheusPort)
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {"instrument": {"symbol": "EURUSD"}, "variant": {"kind": "martingale"}}
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variant kind")
}

func TestLoadRejectsMissingIndicatorLines(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {"instrument": {"symbol": "EURUSD"}, "variant": {"kind": "engulfing-momentum"}}
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ema_periods")
}

func TestValidateChecksCrossoverIndices(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {
	      "instrument": {"symbol": "EURUSD"},
	      "variant": {
	        "kind": "crossover-pullback",
	        "confirm_idx": 0, "target_idxs": [7], "filter_idx": 3,
	        "angle_min": 45, "angle_max": 95
	      },
	      "indicators": {"ema_periods": [1, 20, 50, 70]}
	    }
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestValidateEntropyBounds(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {
	      "instrument": {"symbol": "GLD"},
	      "variant": {"kind": "entropy-structure", "entropy_max": 1.5}
	    }
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy_max")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INITIAL_BALANCE", "25000")
	t.Setenv("FEED_URL", "wss://example.test/stream")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, 25000.0, cfg.InitialBalance)
	assert.Equal(t, "wss://example.test/stream", cfg.Live.FeedURL)
}

func TestRiskFractionBounds(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {
	      "instrument": {"symbol": "EURUSD"},
	      "risk_fraction": 0.5,
	      "variant": {"kind": "engulfing-trend"},
	      "indicators": {"hl2_ema_period": 7}
	    }
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_fraction")
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays([]string{"Monday", "friday"})
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, days)

	days, err = ParseWeekdays(nil)
	require.NoError(t, err)
	assert.Nil(t, days)
}

func TestValidateRejectsUnknownWeekday(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {
	      "instrument": {"symbol": "EURUSD"},
	      "variant": {"kind": "engulfing-trend", "allowed_days": ["monday", "someday"]},
	      "indicators": {"hl2_ema_period": 7}
	    }
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown weekday")
}

func TestValidateATRFilterBounds(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {
	      "instrument": {"symbol": "EURUSD"},
	      "variant": {"kind": "engulfing-trend", "atr_min": 0.005, "atr_max": 0.001},
	      "indicators": {"hl2_ema_period": 7}
	    }
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atr_min exceeds atr_max")
}

func TestValidateExtensionBounds(t *testing.T) {
	_, err := Load(writeConfig(t, `{
	  "instances": [
	    {
	      "instrument": {"symbol": "EURUSD"},
	      "variant": {
	        "kind": "range-reversion",
	        "er_max": 0.4, "adxr_max": 25,
	        "extension_min_bars": 10, "extension_max_bars": 5
	      }
	    }
	  ]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extension_min_bars exceeds extension_max_bars")
}
