// Package config loads and validates the application configuration:
// instruments, strategy variants, indicator periods and the runtime
// settings of the replay and live commands.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// Default parameter values
const (
	DefaultRiskFraction  = 0.005
	DefaultContractSize  = 100000.0
	DefaultMarginPct     = 0.20
	DefaultJPYRate       = 150.0
	DefaultWindowBars    = 3
	DefaultOffsetPips    = 2.0
	DefaultStopMult      = 2.0
	DefaultTakeMult      = 6.0
	DefaultKamaPeriod    = 10
	DefaultKamaFast      = 2
	DefaultKamaSlow      = 30
	DefaultERPeriod      = 10
	DefaultADXPeriod     = 14
	DefaultADXRLookback  = 10
	DefaultEntropyPeriod = 32
	DefaultATRPeriod     = 14
	DefaultATRAvgPeriod  = 5
	DefaultCCIPeriod     = 20
)

// IndicatorConfig selects periods for the indicator engine.
type IndicatorConfig struct {
	EMAPeriods    []int `json:"ema_periods"`
	HL2EMAPeriod  int   `json:"hl2_ema_period"`
	KamaPeriod    int   `json:"kama_period"`
	KamaFast      int   `json:"kama_fast"`
	KamaSlow      int   `json:"kama_slow"`
	KamaSlopeBars int   `json:"kama_slope_bars"`
	KamaOnHL2     bool  `json:"kama_on_hl2"`
	ERPeriod      int   `json:"er_period"`
	ADXPeriod     int   `json:"adx_period"`
	ADXRLookback  int   `json:"adxr_lookback"`
	EntropyPeriod int   `json:"entropy_period"`
	ATRPeriod     int   `json:"atr_period"`
	ATRAvgPeriod  int   `json:"atr_avg_period"`
	CCIPeriod     int   `json:"cci_period"`
	CCIOnHL2      bool  `json:"cci_on_hl2"`
}

// VariantConfig selects and parameterizes one strategy variant.
type VariantConfig struct {
	// Kind is one of: engulfing-momentum, engulfing-trend,
	// crossover-pullback, range-reversion, entropy-structure.
	Kind string `json:"kind"`

	// Shared knobs.
	WindowBars int     `json:"window_bars"`
	OffsetPips float64 `json:"offset_pips"`
	StopMult   float64 `json:"stop_mult"`
	TakeMult   float64 `json:"take_mult"`
	SLPipsMin  float64 `json:"sl_pips_min"`
	SLPipsMax  float64 `json:"sl_pips_max"`

	// Momentum oscillator gate.
	CCIThreshold float64 `json:"cci_threshold"`
	CCIMax       float64 `json:"cci_max"`

	// Crossover family.
	ConfirmIdx      int     `json:"confirm_idx"`
	TargetIdxs      []int   `json:"target_idxs"`
	FilterIdx       int     `json:"filter_idx"`
	AngleScale      float64 `json:"angle_scale"`
	AngleMin        float64 `json:"angle_min"`
	AngleMax        float64 `json:"angle_max"`
	ATRMin          float64 `json:"atr_min"`
	ATRMax          float64 `json:"atr_max"`
	PullbackBars    int     `json:"pullback_bars"`
	OffsetRangeMult float64 `json:"offset_range_mult"`

	// Range-reversion family.
	ERMax             float64 `json:"er_max"`
	ADXRMax           float64 `json:"adxr_max"`
	SlopeATRMul       float64 `json:"slope_atr_mult"`
	BandATRMul        float64 `json:"band_atr_mult"`
	ExtensionMinBars  int     `json:"extension_min_bars"`
	ExtensionMaxBars  int     `json:"extension_max_bars"`
	ERCancelThreshold float64 `json:"er_cancel_threshold"`

	// Structure family.
	EntropyMax float64 `json:"entropy_max"`

	UseKamaExit bool `json:"use_kama_exit"`

	// Trading-hours filter, inclusive; nil disables.
	Hours *HoursConfig `json:"hours,omitempty"`

	// Entry weekday filter by name ("Monday", "tuesday"); empty allows
	// every day.
	AllowedDays []string `json:"allowed_days,omitempty"`
}

// HoursConfig restricts entries to an intraday interval.
type HoursConfig struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// InstanceConfig binds one instrument to one variant.
type InstanceConfig struct {
	Instrument   types.Instrument `json:"instrument"`
	RiskFraction float64          `json:"risk_fraction"`
	Variant      VariantConfig    `json:"variant"`
	Indicators   IndicatorConfig  `json:"indicators"`
	DataFile     string           `json:"data_file"` // replay source
}

// Config is the full application configuration.
type Config struct {
	InitialBalance float64          `json:"initial_balance"`
	Instances      []InstanceConfig `json:"instances"`

	Live struct {
		FeedURL        string `json:"feed_url"`
		PrometheusPort int    `json:"prometheus_port"`
		HealthPort     int    `json:"health_port"`
	} `json:"live"`

	TradeLogFile string `json:"trade_log_file"`
}

// Load reads a JSON config file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.InitialBalance == 0 {
		c.InitialBalance = 100000
	}
	if c.Live.PrometheusPort == 0 {
		c.Live.PrometheusPort = 8080
	}
	if c.Live.HealthPort == 0 {
		c.Live.HealthPort = 8081
	}

	for i := range c.Instances {
		inst := &c.Instances[i]
		if inst.RiskFraction == 0 {
			inst.RiskFraction = DefaultRiskFraction
		}
		if inst.Instrument.Class == types.ClassStandard {
			inst.Instrument.Class = types.ClassifySymbol(inst.Instrument.Symbol)
		}
		if inst.Instrument.PipSize == 0 {
			inst.Instrument.PipSize = types.DefaultPipSize(inst.Instrument.Class)
		}
		if inst.Instrument.ContractSize == 0 && inst.Instrument.Class != types.ClassETF {
			inst.Instrument.ContractSize = DefaultContractSize
		}
		if inst.Instrument.MarginFraction == 0 && inst.Instrument.Class == types.ClassETF {
			inst.Instrument.MarginFraction = DefaultMarginPct
		}
		if inst.Instrument.QuoteRate == 0 && inst.Instrument.Class == types.ClassJPY {
			inst.Instrument.QuoteRate = DefaultJPYRate
		}

		v := &inst.Variant
		if v.WindowBars == 0 {
			v.WindowBars = DefaultWindowBars
		}
		if v.StopMult == 0 {
			v.StopMult = DefaultStopMult
		}
		if v.TakeMult == 0 {
			v.TakeMult = DefaultTakeMult
		}

		ind := &inst.Indicators
		if ind.KamaPeriod == 0 {
			ind.KamaPeriod = DefaultKamaPeriod
		}
		if ind.KamaFast == 0 {
			ind.KamaFast = DefaultKamaFast
		}
		if ind.KamaSlow == 0 {
			ind.KamaSlow = DefaultKamaSlow
		}
		if ind.ERPeriod == 0 {
			ind.ERPeriod = DefaultERPeriod
		}
		if ind.ATRPeriod == 0 {
			ind.ATRPeriod = DefaultATRPeriod
		}
		if ind.ATRAvgPeriod == 0 {
			ind.ATRAvgPeriod = DefaultATRAvgPeriod
		}
		if ind.CCIPeriod == 0 {
			ind.CCIPeriod = DefaultCCIPeriod
		}
		if ind.ADXPeriod == 0 {
			ind.ADXPeriod = DefaultADXPeriod
		}
		if ind.ADXRLookback == 0 {
			ind.ADXRLookback = DefaultADXRLookback
		}
		if ind.EntropyPeriod == 0 && inst.Variant.Kind == "entropy-structure" {
			ind.EntropyPeriod = DefaultEntropyPeriod
		}
	}
}

// applyEnv overrides selected settings from the environment; .env files
// are loaded by the commands before this runs.
func (c *Config) applyEnv() {
	if v := os.Getenv("FEED_URL"); v != "" {
		c.Live.FeedURL = v
	}
	if v := os.Getenv("PROMETHEUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Live.PrometheusPort = port
		}
	}
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Live.HealthPort = port
		}
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if bal, err := strconv.ParseFloat(v, 64); err == nil {
			c.InitialBalance = bal
		}
	}
	if v := os.Getenv("TRADE_LOG_FILE"); v != "" {
		c.TradeLogFile = v
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekdays converts configured day names to weekdays,
// case-insensitively.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out = append(out, day)
	}
	return out, nil
}

var knownVariants = map[string]bool{
	"engulfing-momentum": true,
	"engulfing-trend":    true,
	"crossover-pullback": true,
	"range-reversion":    true,
	"entropy-structure":  true,
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial_balance must be positive, got %.2f", c.InitialBalance)
	}
	if len(c.Instances) == 0 {
		return fmt.Errorf("at least one instance is required")
	}

	for i, inst := range c.Instances {
		if inst.Instrument.Symbol == "" {
			return fmt.Errorf("instance %d: instrument symbol is required", i)
		}
		if inst.RiskFraction <= 0 || inst.RiskFraction > 0.1 {
			return fmt.Errorf("instance %d (%s): risk_fraction %.4f outside (0, 0.1]", i, inst.Instrument.Symbol, inst.RiskFraction)
		}
		if !knownVariants[inst.Variant.Kind] {
			return fmt.Errorf("instance %d (%s): unknown variant kind %q", i, inst.Instrument.Symbol, inst.Variant.Kind)
		}
		if inst.Variant.WindowBars <= 0 {
			return fmt.Errorf("instance %d (%s): window_bars must be positive", i, inst.Instrument.Symbol)
		}
		if inst.Variant.StopMult <= 0 || inst.Variant.TakeMult <= 0 {
			return fmt.Errorf("instance %d (%s): stop/take multipliers must be positive", i, inst.Instrument.Symbol)
		}
		if _, err := ParseWeekdays(inst.Variant.AllowedDays); err != nil {
			return fmt.Errorf("instance %d (%s): %w", i, inst.Instrument.Symbol, err)
		}
		if inst.Variant.ATRMax > 0 && inst.Variant.ATRMin > inst.Variant.ATRMax {
			return fmt.Errorf("instance %d (%s): atr_min exceeds atr_max", i, inst.Instrument.Symbol)
		}

		switch inst.Variant.Kind {
		case "engulfing-momentum":
			if len(inst.Indicators.EMAPeriods) == 0 {
				return fmt.Errorf("instance %d (%s): engulfing-momentum needs ema_periods", i, inst.Instrument.Symbol)
			}
		case "engulfing-trend":
			if inst.Indicators.HL2EMAPeriod <= 0 {
				return fmt.Errorf("instance %d (%s): engulfing-trend needs hl2_ema_period", i, inst.Instrument.Symbol)
			}
		case "crossover-pullback":
			n := len(inst.Indicators.EMAPeriods)
			if n == 0 {
				return fmt.Errorf("instance %d (%s): crossover-pullback needs ema_periods", i, inst.Instrument.Symbol)
			}
			if inst.Variant.ConfirmIdx >= n || inst.Variant.FilterIdx >= n {
				return fmt.Errorf("instance %d (%s): ema line index out of range", i, inst.Instrument.Symbol)
			}
			for _, idx := range inst.Variant.TargetIdxs {
				if idx < 0 || idx >= n {
					return fmt.Errorf("instance %d (%s): target index %d out of range", i, inst.Instrument.Symbol, idx)
				}
			}
			if inst.Variant.AngleMax <= inst.Variant.AngleMin {
				return fmt.Errorf("instance %d (%s): angle bounds inverted", i, inst.Instrument.Symbol)
			}
		case "range-reversion":
			if inst.Variant.ERMax <= 0 || inst.Variant.ADXRMax <= 0 {
				return fmt.Errorf("instance %d (%s): range-reversion needs er_max and adxr_max", i, inst.Instrument.Symbol)
			}
			if inst.Variant.ExtensionMaxBars > 0 && inst.Variant.ExtensionMinBars > inst.Variant.ExtensionMaxBars {
				return fmt.Errorf("instance %d (%s): extension_min_bars exceeds extension_max_bars", i, inst.Instrument.Symbol)
			}
		case "entropy-structure":
			if inst.Variant.EntropyMax <= 0 || inst.Variant.EntropyMax > 1 {
				return fmt.Errorf("instance %d (%s): entropy_max %.3f outside (0, 1]", i, inst.Instrument.Symbol, inst.Variant.EntropyMax)
			}
			if inst.Indicators.EntropyPeriod <= 0 {
				return fmt.Errorf("instance %d (%s): entropy-structure needs entropy_period", i, inst.Instrument.Symbol)
			}
		}
	}
	return nil
}
