// Package live runs strategy instances against a streaming bar feed.
// Each instrument/variant pair gets its own runner goroutine; runners
// share nothing mutable and only meet again at the process exit.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/forex-phase-bot/internal/monitoring"
	"github.com/ducminhle1904/forex-phase-bot/pkg/types"
)

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	feedBuffer       = 64
)

// barMessage is the wire format of one kline event. Prices arrive as
// strings, matching how most venue streams encode decimals.
type barMessage struct {
	Symbol  string `json:"symbol"`
	Time    int64  `json:"time"` // bar open, unix milliseconds
	Open    string `json:"open"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Close   string `json:"close"`
	Confirm bool   `json:"confirm"`
}

// FeedConfig wires one websocket bar feed.
type FeedConfig struct {
	URL     string
	Symbols []string
	Health  *monitoring.HealthChecker
	Logger  zerolog.Logger
}

// Feed is a websocket MarketGateway. It reconnects with exponential
// backoff and only ever delivers confirmed (closed) bars, so a dropped
// connection can never advance a strategy on a partial bar.
type Feed struct {
	cfg FeedConfig
	log zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	streams map[string]chan types.Bar

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeed builds a feed for the given symbols. Start must be called
// before Next.
func NewFeed(cfg FeedConfig) (*Feed, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("feed URL is required")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("feed needs at least one symbol")
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "feed").Logger(),
		streams: make(map[string]chan types.Bar, len(cfg.Symbols)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, sym := range cfg.Symbols {
		f.streams[sym] = make(chan types.Bar, feedBuffer)
	}
	return f, nil
}

// Start dials the feed and begins delivering bars. It returns once the
// first connection is established or the context is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.connect(ctx, true); err != nil {
		return err
	}
	go f.readLoop()
	go f.pingLoop()
	return nil
}

// Next blocks for the next closed bar of symbol. ok=false means the
// feed was shut down and the stream ended cleanly.
func (f *Feed) Next(ctx context.Context, symbol string) (types.Bar, bool, error) {
	ch, found := f.streams[symbol]
	if !found {
		return types.Bar{}, false, fmt.Errorf("symbol %s is not subscribed", symbol)
	}

	select {
	case <-ctx.Done():
		return types.Bar{}, false, ctx.Err()
	case bar, open := <-ch:
		if !open {
			return types.Bar{}, false, nil
		}
		return bar, true, nil
	}
}

// Close tears the connection down and closes every symbol stream.
func (f *Feed) Close() error {
	f.cancel()

	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	<-f.done
	for _, ch := range f.streams {
		close(ch)
	}
	if f.cfg.Health != nil {
		f.cfg.Health.SetConnected(false)
	}
	return nil
}

// connect dials and subscribes, retrying with exponential backoff until
// the context is cancelled. Reconnects bump the reconnect counter.
func (f *Feed) connect(ctx context.Context, initial bool) error {
	dial := func() error {
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = handshakeTimeout

		conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
		}

		if err := f.subscribe(conn); err != nil {
			conn.Close()
			return err
		}

		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0 // retry until the context says stop

	notify := func(err error, wait time.Duration) {
		f.log.Warn().Err(err).Dur("retry_in", wait).Msg("⚠️ Feed connection failed")
	}

	if err := backoff.RetryNotify(dial, backoff.WithContext(policy, ctx), notify); err != nil {
		return err
	}

	if !initial {
		for _, sym := range f.cfg.Symbols {
			monitoring.RecordReconnect(sym)
		}
	}
	if f.cfg.Health != nil {
		f.cfg.Health.SetConnected(true)
	}
	f.log.Info().Str("url", f.cfg.URL).Strs("symbols", f.cfg.Symbols).Msg("✅ Feed connected")
	return nil
}

func (f *Feed) subscribe(conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": f.cfg.Symbols,
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}
	return nil
}

// readLoop pumps messages into the symbol streams for the life of the
// feed, reconnecting on read errors.
func (f *Feed) readLoop() {
	defer close(f.done)

	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.ctx.Done():
				return
			default:
			}

			f.log.Warn().Err(err).Msg("⚠️ Feed read error, reconnecting")
			if f.cfg.Health != nil {
				f.cfg.Health.SetConnected(false)
			}
			if err := f.connect(f.ctx, false); err != nil {
				return
			}
			continue
		}

		f.handleMessage(message)
	}
}

func (f *Feed) handleMessage(message []byte) {
	var msg barMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		f.log.Warn().Err(err).Msg("⚠️ Skipping malformed feed message")
		monitoring.RecordError("feed_decode")
		return
	}

	// In-progress bars update every tick; the strategy contract is
	// closed bars only.
	if !msg.Confirm {
		return
	}

	ch, found := f.streams[msg.Symbol]
	if !found {
		return
	}

	bar, err := msg.toBar()
	if err != nil {
		f.log.Warn().Err(err).Str("symbol", msg.Symbol).Msg("⚠️ Skipping unparseable bar")
		monitoring.RecordError("feed_decode")
		return
	}

	select {
	case ch <- bar:
	default:
		// A stalled runner must not block the read loop for the
		// other symbols.
		f.log.Error().Str("symbol", msg.Symbol).Msg("❌ Feed buffer full, dropping bar")
		monitoring.RecordError("feed_overflow")
	}
}

func (f *Feed) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			conn := f.conn
			f.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				f.log.Warn().Err(err).Msg("⚠️ Failed to send ping")
			}
		}
	}
}

func (m barMessage) toBar() (types.Bar, error) {
	open, err := strconv.ParseFloat(m.Open, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("open %q: %w", m.Open, err)
	}
	high, err := strconv.ParseFloat(m.High, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("high %q: %w", m.High, err)
	}
	low, err := strconv.ParseFloat(m.Low, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("low %q: %w", m.Low, err)
	}
	closePrice, err := strconv.ParseFloat(m.Close, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("close %q: %w", m.Close, err)
	}

	return types.Bar{
		Timestamp: time.UnixMilli(m.Time).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
	}, nil
}
