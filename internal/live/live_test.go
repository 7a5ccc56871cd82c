package live

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/forex-phase-bot/internal/detect"
	"github.com/ducminhle1904/forex-phase-bot/internal/indicators"
	"github.com/ducminhle1904/forex-phase-bot/internal/strategy"
	"github.com/ducminhle1904/forex-phase-bot/internal/tradelog"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

// barServer speaks just enough of the feed protocol for tests: it waits
// for the subscribe message, plays a script of raw frames and then holds
// the connection open until the test finishes.
func barServer(t *testing.T, frames []string) (url string, shutdown func()) {
	t.Helper()

	done := make(chan struct{})
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil { // subscribe
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		<-done
	}))

	return "ws" + strings.TrimPrefix(srv.URL, "http"), func() {
		close(done)
		srv.Close()
	}
}

func TestFeedDeliversOnlyClosedBars(t *testing.T) {
	frames := []string{
		`{"symbol":"EURUSD","time":1709546400000,"open":"1.1000","high":"1.1008","low":"1.0995","close":"1.1003","confirm":false}`,
		`not even json`,
		`{"symbol":"EURUSD","time":1709546400000,"open":"1.1000","high":"1.1008","low":"1.0995","close":"1.1003","confirm":true}`,
		`{"symbol":"GBPUSD","time":1709546700000,"open":"1.2700","high":"1.2710","low":"1.2695","close":"1.2705","confirm":true}`,
		`{"symbol":"EURUSD","time":1709546700000,"open":"1.1003","high":"1.1010","low":"1.1000","close":"1.1007","confirm":true}`,
	}
	url, shutdown := barServer(t, frames)
	defer shutdown()

	feed, err := NewFeed(FeedConfig{URL: url, Symbols: []string{"EURUSD"}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, ok, err := feed.Next(ctx, "EURUSD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.1003, first.Close)
	assert.Equal(t, time.UnixMilli(1709546400000).UTC(), first.Timestamp)

	// The unconfirmed frame, the garbage frame and the foreign symbol
	// must all have been skipped.
	second, ok, err := feed.Next(ctx, "EURUSD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.1007, second.Close)
	assert.True(t, second.Timestamp.After(first.Timestamp))
}

func TestFeedUnknownSymbol(t *testing.T) {
	url, shutdown := barServer(t, nil)
	defer shutdown()

	feed, err := NewFeed(FeedConfig{URL: url, Symbols: []string{"EURUSD"}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Close()

	_, _, err = feed.Next(context.Background(), "USDJPY")
	assert.Error(t, err)
}

func TestFeedNextHonorsContext(t *testing.T) {
	url, shutdown := barServer(t, nil)
	defer shutdown()

	feed, err := NewFeed(FeedConfig{URL: url, Symbols: []string{"EURUSD"}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, feed.Start(context.Background()))
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = feed.Next(ctx, "EURUSD")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeedConfigValidation(t *testing.T) {
	_, err := NewFeed(FeedConfig{Symbols: []string{"EURUSD"}})
	assert.Error(t, err)

	_, err = NewFeed(FeedConfig{URL: "ws://localhost:9999"})
	assert.Error(t, err)
}

// sliceFeed replays canned bars and then ends the stream.
type sliceFeed struct {
	bars []types.Bar
	i    int
}

func (f *sliceFeed) Next(_ context.Context, _ string) (types.Bar, bool, error) {
	if f.i >= len(f.bars) {
		return types.Bar{}, false, nil
	}
	bar := f.bars[f.i]
	f.i++
	return bar, true, nil
}

// errFeed fails on the first read.
type errFeed struct{}

func (errFeed) Next(_ context.Context, _ string) (types.Bar, bool, error) {
	return types.Bar{}, false, errors.New("feed gone")
}

// closeLevelDetector fires on the bar whose close equals the armed level.
type closeLevelDetector struct {
	level float64
}

func (d *closeLevelDetector) Name() string { return "close-level" }

func (d *closeLevelDetector) Detect(window []types.Bar, _ indicators.Snapshot) detect.Signal {
	curr := window[len(window)-1]
	if curr.Close != d.level {
		return detect.Signal{}
	}
	return detect.Signal{Present: true, ReferenceHigh: curr.High, ReferenceLow: curr.Low}
}

func liveBar(i int, open, high, low, close float64) types.Bar {
	return types.Bar{
		Timestamp: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute),
		Open:      open, High: high, Low: low, Close: close, Volume: 1000,
	}
}

func runnerConfig(feed *sliceFeed, tl *tradelog.Logger) RunnerConfig {
	return RunnerConfig{
		Instrument:     types.Instrument{Symbol: "EURUSD", Class: types.ClassStandard, PipSize: 0.0001, ContractSize: 100000},
		Variant: strategy.Variant{
			Name:           "live-test",
			Detector:       &closeLevelDetector{level: 1.1050},
			WindowBars:     3,
			BreakoutOffset: func(*strategy.PhaseContext) float64 { return 0.0002 },
			StopMult:       2.0,
			TakeMult:       1.0,
		},
		Indicators: indicators.Config{
			ATRPeriod:  3,
			KamaPeriod: 4,
			KamaFast:   2,
			KamaSlow:   30,
			ERPeriod:   4,
		},
		InitialBalance: 100000,
		RiskFraction:   0.01,
		Feed:           feed,
		TradeLog:       tl,
		Logger:         zerolog.Nop(),
	}
}

func TestRunnerTakeProfitCycle(t *testing.T) {
	bars := make([]types.Bar, 0, 15)
	for i := 0; i < 10; i++ {
		bars = append(bars, liveBar(i, 1.1000, 1.1008, 1.0995, 1.1003))
	}
	bars = append(bars,
		liveBar(10, 1.1040, 1.1052, 1.1038, 1.1050), // detection; trigger 1.1054
		liveBar(11, 1.1050, 1.1060, 1.1048, 1.1058), // breakout, entry at close
		liveBar(12, 1.1060, 1.1062, 1.1055, 1.1060),
		liveBar(13, 1.1060, 1.1130, 1.1058, 1.1120), // rallies through the take
		liveBar(14, 1.1120, 1.1125, 1.1115, 1.1118),
	)

	var events bytes.Buffer
	runner, err := NewRunner(runnerConfig(&sliceFeed{bars: bars}, tradelog.New(&events)))
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background()))

	trades := runner.machine.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, types.ExitTakeProfit, trades[0].Position.ExitReason)
	assert.Greater(t, runner.Balance(), 100000.0)

	logged := events.String()
	assert.Contains(t, logged, "position opened")
	assert.Contains(t, logged, "position closed")
	assert.Contains(t, logged, "phase transition")
}

func TestRunnerValidation(t *testing.T) {
	cfg := runnerConfig(&sliceFeed{}, nil)
	cfg.Feed = nil
	_, err := NewRunner(cfg)
	assert.Error(t, err)

	cfg = runnerConfig(&sliceFeed{}, nil)
	cfg.InitialBalance = 0
	_, err = NewRunner(cfg)
	assert.Error(t, err)
}

func TestSupervisorPropagatesFirstError(t *testing.T) {
	healthy := runnerConfig(&sliceFeed{}, nil)
	good, err := NewRunner(healthy)
	require.NoError(t, err)

	broken := runnerConfig(&sliceFeed{}, nil)
	broken.Feed = errFeed{}
	bad, err := NewRunner(broken)
	require.NoError(t, err)

	sup := NewSupervisor([]*Runner{good, bad}, zerolog.Nop())
	err = sup.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed gone")
}

func TestSupervisorCleanShutdown(t *testing.T) {
	a, err := NewRunner(runnerConfig(&sliceFeed{}, nil))
	require.NoError(t, err)
	b, err := NewRunner(runnerConfig(&sliceFeed{}, nil))
	require.NoError(t, err)

	sup := NewSupervisor([]*Runner{a, b}, zerolog.Nop())
	assert.NoError(t, sup.Run(context.Background()))
}

func TestRunnerSkipsStaleBarsAfterReconnect(t *testing.T) {
	bars := make([]types.Bar, 0, 18)
	for i := 0; i < 10; i++ {
		bars = append(bars, liveBar(i, 1.1000, 1.1008, 1.0995, 1.1003))
	}
	detection := liveBar(10, 1.1040, 1.1052, 1.1038, 1.1050)
	bars = append(bars,
		detection,
		detection, // a reconnect replays the last delivered bar
		liveBar(8, 1.1000, 1.1008, 1.0995, 1.1003), // and sometimes older ones
		liveBar(11, 1.1050, 1.1060, 1.1048, 1.1058),
		liveBar(12, 1.1060, 1.1062, 1.1055, 1.1060),
		liveBar(13, 1.1060, 1.1130, 1.1058, 1.1120),
		liveBar(14, 1.1120, 1.1125, 1.1115, 1.1118),
	)

	var events bytes.Buffer
	runner, err := NewRunner(runnerConfig(&sliceFeed{bars: bars}, tradelog.New(&events)))
	require.NoError(t, err)

	// The stale bars are dropped; the cycle completes as if the feed
	// had never repeated itself.
	require.NoError(t, runner.Run(context.Background()))

	trades := runner.machine.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, types.ExitTakeProfit, trades[0].Position.ExitReason)
}
