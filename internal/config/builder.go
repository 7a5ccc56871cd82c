// Package config converts the declarative application configuration into
// wired runtime components: indicator engine configs and strategy variant
// tables.
package config

import (
	"fmt"

	"github.com/ducminhle1904/forex-phase-bot/internal/detect"
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/internal/strategy"
	appcfg "github.com/ducminhle1904/forex-phase-bot/pkg/config"
)

// BuildIndicators maps an instance's indicator selection onto the engine
// config.
func BuildIndicators(inst appcfg.InstanceConfig) indicators.Config {
	ind := inst.Indicators
	return indicators.Config{
		EMAPeriods:        ind.EMAPeriods,
		HL2EMAPeriod:      ind.HL2EMAPeriod,
		KamaPeriod:        ind.KamaPeriod,
		KamaFast:          ind.KamaFast,
		KamaSlow:          ind.KamaSlow,
		KamaSlopeLookback: ind.KamaSlopeBars,
		KamaOnHL2:         ind.KamaOnHL2,
		ERPeriod:          ind.ERPeriod,
		ADXPeriod:         ind.ADXPeriod,
		ADXRLookback:      ind.ADXRLookback,
		EntropyPeriod:     ind.EntropyPeriod,
		ATRPeriod:         ind.ATRPeriod,
		ATRAvgPeriod:      ind.ATRAvgPeriod,
		CCIPeriod:         ind.CCIPeriod,
		CCIOnHL2:          ind.CCIOnHL2,
	}
}

// BuildVariant constructs the variant gate table for one instance.
func BuildVariant(inst appcfg.InstanceConfig) (strategy.Variant, error) {
	v := inst.Variant
	pip := inst.Instrument.PipSize

	var hours *strategy.TimeWindow
	if v.Hours != nil {
		hours = &strategy.TimeWindow{
			StartHour:   v.Hours.StartHour,
			StartMinute: v.Hours.StartMinute,
			EndHour:     v.Hours.EndHour,
			EndMinute:   v.Hours.EndMinute,
		}
	}

	days, err := appcfg.ParseWeekdays(v.AllowedDays)
	if err != nil {
		return strategy.Variant{}, err
	}

	var variant strategy.Variant
	switch v.Kind {
	case "engulfing-momentum":
		variant = strategy.NewEngulfingMomentum(strategy.EngulfingMomentumParams{
			CCIThreshold: v.CCIThreshold,
			CCIMax:       v.CCIMax,
			WindowBars:   v.WindowBars,
			OffsetPips:   v.OffsetPips,
			PipSize:      pip,
			StopMult:     v.StopMult,
			TakeMult:     v.TakeMult,
			SLPipsMin:    v.SLPipsMin,
			SLPipsMax:    v.SLPipsMax,
			Hours:        hours,
		})

	case "engulfing-trend":
		variant = strategy.NewEngulfingTrend(strategy.EngulfingTrendParams{
			WindowBars:  v.WindowBars,
			OffsetPips:  v.OffsetPips,
			PipSize:     pip,
			StopMult:    v.StopMult,
			TakeMult:    v.TakeMult,
			UseKamaExit: v.UseKamaExit,
			Hours:       hours,
		})

	case "crossover-pullback":
		variant = strategy.NewCrossoverPullback(strategy.CrossoverPullbackParams{
			Crossover: &detect.Crossover{
				ConfirmIdx: v.ConfirmIdx,
				TargetIdxs: v.TargetIdxs,
				FilterIdx:  v.FilterIdx,
				AngleScale: v.AngleScale,
				AngleMin:   v.AngleMin,
				AngleMax:   v.AngleMax,
				ATRMin:     v.ATRMin,
				ATRMax:     v.ATRMax,
			},
			PullbackBars:    v.PullbackBars,
			WindowBars:      v.WindowBars,
			OffsetRangeMult: v.OffsetRangeMult,
			StopMult:        v.StopMult,
			TakeMult:        v.TakeMult,
			Hours:           hours,
		})

	case "range-reversion":
		variant = strategy.NewRangeReversion(strategy.RangeReversionParams{
			Regime: &detect.RangeRegime{
				ERMax:       v.ERMax,
				ADXRMax:     v.ADXRMax,
				SlopeATRMul: v.SlopeATRMul,
				BandATRMul:  v.BandATRMul,
			},
			ExtensionMinBars:  v.ExtensionMinBars,
			ExtensionMaxBars:  v.ExtensionMaxBars,
			WindowBars:        v.WindowBars,
			OffsetPips:        v.OffsetPips,
			PipSize:           pip,
			ERCancelThreshold: v.ERCancelThreshold,
			StopMult:          v.StopMult,
			TakeMult:          v.TakeMult,
		})

	case "entropy-structure":
		variant = strategy.NewEntropyStructure(strategy.EntropyStructureParams{
			EntropyMax:   v.EntropyMax,
			PullbackBars: v.PullbackBars,
			WindowBars:   v.WindowBars,
			OffsetPips:   v.OffsetPips,
			PipSize:      pip,
			StopMult:     v.StopMult,
			TakeMult:     v.TakeMult,
			UseKamaExit:  v.UseKamaExit,
		})

	default:
		return strategy.Variant{}, fmt.Errorf("unknown variant kind %q", v.Kind)
	}

	// Shared entry-time filters apply to every kind.
	variant.AllowedDays = days
	variant.ATRMin = v.ATRMin
	variant.ATRMax = v.ATRMax
	return variant, nil
}
