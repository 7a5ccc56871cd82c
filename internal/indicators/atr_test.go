package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestATR_InsufficientData(t *testing.T) {
	atr := NewATR(14)
	_, err := atr.Calculate(generateTrendBars(10))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient data")
}

func TestATR_ConstantRange(t *testing.T) {
	atr := NewATR(10)

	// Flat bars all have the same 0.4 high-low range and no close gaps,
	// so ATR must converge to exactly that range.
	value, err := atr.Calculate(generateFlatBars(40))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, value, 0.001)
}

func TestATR_Positive(t *testing.T) {
	atr := NewATR(14)
	value, err := atr.Calculate(generateNoiseBars(60))
	require.NoError(t, err)
	assert.Greater(t, value, 0.0)
}

func TestATR_AverageSmoothsSpikes(t *testing.T) {
	atr := NewATR(10)
	bars := generateFlatBars(60)

	// Inject one wide-range bar near the end.
	wide := bars[55]
	wide.High += 3.0
	wide.Low -= 3.0
	bars[55] = wide

	instant, err := atr.Calculate(bars)
	require.NoError(t, err)
	averaged, err := atr.CalculateAverage(bars, 20)
	require.NoError(t, err)

	// The averaged reading reacts less to the single spike.
	assert.Less(t, averaged, instant)
}

func TestATR_AverageFallsBackToInstant(t *testing.T) {
	atr := NewATR(10)
	bars := generateFlatBars(15)

	instant, err := atr.Calculate(bars)
	require.NoError(t, err)
	averaged, err := atr.CalculateAverage(bars, 50)
	require.NoError(t, err)
	assert.Equal(t, instant, averaged)
}

func TestCCI_FlatIsZero(t *testing.T) {
	cci := NewCCI(20)
	value, err := cci.Calculate(generateFlatBars(30))
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)
}

func TestCCI_PositiveInUptrend(t *testing.T) {
	cci := NewCCI(20)
	value, err := cci.Calculate(generateTrendBars(40))
	require.NoError(t, err)
	assert.Greater(t, value, 0.0)
}

func TestCCI_HL2Source(t *testing.T) {
	cci := NewCCIHL2(20)
	value, err := cci.Calculate(generateTrendBars(40))
	require.NoError(t, err)
	assert.Greater(t, value, 0.0)
}

func TestADXR_InsufficientData(t *testing.T) {
	adxr := NewADXR(14, 10)
	_, err := adxr.Calculate(generateTrendBars(20))
	assert.Error(t, err)
}

func TestADXR_TrendVsNoise(t *testing.T) {
	adxr := NewADXR(14, 10)

	trending, err := adxr.Calculate(generateTrendBars(120))
	require.NoError(t, err)
	noisy, err := adxr.Calculate(generateNoiseBars(120))
	require.NoError(t, err)

	assert.Greater(t, trending, noisy)
	assert.GreaterOrEqual(t, noisy, 0.0)
	assert.LessOrEqual(t, trending, 100.0)
}
