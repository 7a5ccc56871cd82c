package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngineConfig() Config {
	return Config{
		EMAPeriods:        []int{10, 20},
		HL2EMAPeriod:      1,
		KamaPeriod:        10,
		KamaFast:          2,
		KamaSlow:          30,
		KamaSlopeLookback: 3,
		ERPeriod:          10,
		ADXPeriod:         14,
		ADXRLookback:      10,
		EntropyPeriod:     32,
		ATRPeriod:         10,
		ATRAvgPeriod:      20,
		CCIPeriod:         20,
	}
}

func TestNewEngine_RequiredFields(t *testing.T) {
	_, err := NewEngine(Config{KamaPeriod: 10, ERPeriod: 10})
	assert.Error(t, err, "missing ATR period must be rejected")

	_, err = NewEngine(Config{ATRPeriod: 10, ERPeriod: 10})
	assert.Error(t, err, "missing KAMA period must be rejected")
}

func TestEngine_WarmupNotReady(t *testing.T) {
	engine, err := NewEngine(testEngineConfig())
	require.NoError(t, err)

	bars := generateNoiseBars(engine.WarmupBars() + 10)
	for i, bar := range bars {
		snap, err := engine.Update(bar)
		require.NoError(t, err)
		assert.Equal(t, i, snap.BarIndex)

		if i < engine.WarmupBars()-1 {
			assert.False(t, snap.Ready, "bar %d should be warm-up", i)
		} else {
			assert.True(t, snap.Ready, "bar %d should be ready", i)
			assert.Len(t, snap.EMA, 2)
			assert.Greater(t, snap.ATR, 0.0)
			assert.GreaterOrEqual(t, snap.Entropy, 0.0)
			assert.LessOrEqual(t, snap.Entropy, 1.0)
		}
	}
}

func TestEngine_RejectsOutOfOrderBar(t *testing.T) {
	engine, err := NewEngine(testEngineConfig())
	require.NoError(t, err)

	bars := generateNoiseBars(5)
	for _, bar := range bars {
		_, err := engine.Update(bar)
		require.NoError(t, err)
	}

	indexBefore := engine.BarIndex()

	// Same timestamp as the last accepted bar.
	stale := bars[4]
	_, err = engine.Update(stale)
	assert.ErrorIs(t, err, ErrOutOfOrderBar)
	assert.Equal(t, indexBefore, engine.BarIndex(), "rejected bar must not advance state")

	// Earlier timestamp.
	earlier := bars[2]
	_, err = engine.Update(earlier)
	assert.ErrorIs(t, err, ErrOutOfOrderBar)
	assert.Equal(t, indexBefore, engine.BarIndex())
}

func TestEngine_RejectsMalformedBar(t *testing.T) {
	engine, err := NewEngine(testEngineConfig())
	require.NoError(t, err)

	bad := barAt(0, 100, 99, 101, 100) // high below low
	_, err = engine.Update(bad)
	assert.ErrorIs(t, err, ErrMalformedBar)
	assert.Equal(t, -1, engine.BarIndex())

	zero := barAt(1, 100, 101, 99, 100)
	zero.Timestamp = time.Time{}
	_, err = engine.Update(zero)
	assert.ErrorIs(t, err, ErrMalformedBar)
}

func TestEngine_Deterministic(t *testing.T) {
	bars := generateNoiseBars(220)

	run := func() []Snapshot {
		engine, err := NewEngine(testEngineConfig())
		require.NoError(t, err)
		var snaps []Snapshot
		for _, bar := range bars {
			snap, err := engine.Update(bar)
			require.NoError(t, err)
			if snap.Ready {
				snaps = append(snaps, snap)
			}
		}
		return snaps
	}

	first := run()
	second := run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "identical input must produce identical snapshots")
}

func TestEngine_SnapshotPrevValues(t *testing.T) {
	engine, err := NewEngine(testEngineConfig())
	require.NoError(t, err)

	var prev Snapshot
	bars := generateTrendBars(engine.WarmupBars() + 20)
	for _, bar := range bars {
		snap, err := engine.Update(bar)
		require.NoError(t, err)
		if prev.Ready && snap.Ready {
			// The one-bar-back values of this snapshot should match the
			// current values of the previous snapshot closely. The window
			// slide introduces a tiny seed drift, nothing more.
			assert.InDelta(t, prev.Kama, snap.KamaPrev, 0.05)
			for i := range snap.EMAPrev {
				assert.InDelta(t, prev.EMA[i], snap.EMAPrev[i], 0.05)
			}
		}
		prev = snap
	}
}
