package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradeforge/kalshi-go/internal/telemetry"
)

// Handler processes one inbound feed message. Handlers run on the feed's
// dispatch goroutine, in registration order; a handler that panics is
// recovered and logged without stopping dispatch.
type Handler func(Message)

// FeedConfig controls one feed connection's timing behaviour. The zero
// value is usable; unset fields fall back to the defaults below.
type FeedConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	ReconnectWait    time.Duration
	MaxReconnectWait time.Duration
	// DialAttempts bounds how many times Start retries the initial dial
	// before giving up. Reconnects after a successful Start are unbounded.
	DialAttempts int
}

func (cfg *FeedConfig) applyDefaults() {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.PongWait == 0 {
		// Kalshi pings every ~10s; 30s allows three missed pings.
		cfg.PongWait = 30 * time.Second
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = time.Second
	}
	if cfg.MaxReconnectWait == 0 {
		cfg.MaxReconnectWait = 30 * time.Second
	}
	if cfg.DialAttempts == 0 {
		cfg.DialAttempts = 3
	}
}

// FeedStats is a point-in-time snapshot of a feed's counters.
type FeedStats struct {
	Connected        bool
	Uptime           time.Duration
	MessagesReceived int64
	ReconnectCount   int64
	Latency          time.Duration
	SinceLastMessage time.Duration
}

type subscription struct {
	channel Channel
	tickers []string
	sid     int64
}

// subKey identifies a (channel, ticker set) subscription. Tickers are
// sorted so identical subscribe calls collapse to one entry.
func newSubKey(channel Channel, tickers []string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	return string(channel) + "|" + strings.Join(sorted, ",")
}

// Feed is one WebSocket connection to the Kalshi trading feed.
//
// Socket I/O and handler dispatch run on background goroutines owned by
// the feed; Start and Stop are the only synchronization points exposed.
// Messages for a market on a channel reach handlers in server order.
//
// Gorilla/websocket allows one concurrent reader and one writer, so all
// command writes are serialized through mu.
type Feed struct {
	cfg    FeedConfig
	signer *Signer

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*subscription
	pending map[int64]string // command id -> sub key, for sid capture
	cmdID   int64
	started bool
	stopped bool

	handlersMu sync.RWMutex
	handlers   map[Channel][]Handler

	cancel context.CancelFunc
	done   chan struct{}

	connected  atomic.Bool
	startedAt  atomic.Int64 // unix nanos; 0 until Start succeeds
	messages   atomic.Int64
	reconnects atomic.Int64
	lastMsgAt  atomic.Int64 // unix nanos; 0 until first message
	lastRTT    atomic.Int64 // nanos; 0 until first pong
}

// NewFeed builds a feed bound to cfg.URL with the given signer. The
// connection is not opened until Start.
func NewFeed(cfg FeedConfig, signer *Signer) *Feed {
	cfg.applyDefaults()
	return &Feed{
		cfg:      cfg,
		signer:   signer,
		subs:     make(map[string]*subscription),
		pending:  make(map[int64]string),
		handlers: make(map[Channel][]Handler),
		done:     make(chan struct{}),
	}
}

// On registers a handler for every message on channel. Multiple handlers
// per channel are allowed; they run in registration order.
func (f *Feed) On(channel Channel, h Handler) {
	f.handlersMu.Lock()
	f.handlers[channel] = append(f.handlers[channel], h)
	f.handlersMu.Unlock()
}

// Start dials the feed, performing the signed handshake, and launches the
// dispatch loop. It blocks until the socket is open or returns an error
// after cfg.DialAttempts failed dials. ctx bounds the dials and, once
// connected, the feed's lifetime alongside Stop.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return fmt.Errorf("kalshi: feed already started")
	}
	if f.stopped {
		f.mu.Unlock()
		return fmt.Errorf("kalshi: feed already stopped")
	}
	f.started = true
	f.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	var lastErr error
	wait := f.cfg.ReconnectWait
	for attempt := 1; attempt <= f.cfg.DialAttempts; attempt++ {
		if lastErr = f.dial(runCtx); lastErr == nil {
			break
		}
		telemetry.Warnf("kalshi feed: dial attempt %d failed: %v", attempt, lastErr)
		if attempt == f.cfg.DialAttempts {
			break
		}
		select {
		case <-runCtx.Done():
			f.abortStart(cancel)
			return runCtx.Err()
		case <-time.After(wait):
		}
		wait = minDuration(wait*2, f.cfg.MaxReconnectWait)
	}
	if lastErr != nil {
		f.abortStart(cancel)
		return fmt.Errorf("kalshi feed: connect: %w", lastErr)
	}

	f.startedAt.Store(time.Now().UnixNano())
	telemetry.Metrics.ActiveFeeds.Inc()
	go f.run(runCtx)
	return nil
}

// abortStart rolls back a failed Start. No run goroutine exists to close
// done, so started must be cleared or a later Stop would wait forever.
func (f *Feed) abortStart(cancel context.CancelFunc) {
	cancel()
	f.mu.Lock()
	f.started = false
	f.cancel = nil
	f.mu.Unlock()
}

// Stop closes the connection and terminates the dispatch loop. It is safe
// to call more than once and from any goroutine; a blocked receive is
// unblocked by closing the socket.
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.stopped {
		started := f.started
		f.mu.Unlock()
		if started {
			<-f.done
		}
		return
	}
	f.stopped = true
	started := f.started
	conn := f.conn
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	if started {
		<-f.done
		telemetry.Metrics.ActiveFeeds.Dec()
	}
}

// Subscribe adds a (channel, tickers) subscription. Identical calls are
// idempotent: the subscription set is keyed by channel plus the sorted
// ticker list, so repeats neither duplicate local state nor resend the
// command. With no tickers the subscription is channel-wide. May be
// called before Start; the command is sent once connected.
func (f *Feed) Subscribe(channel Channel, tickers ...string) error {
	key := newSubKey(channel, tickers)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.subs[key]; exists {
		return nil
	}
	sub := &subscription{channel: channel, tickers: append([]string(nil), tickers...)}
	f.subs[key] = sub

	if f.conn == nil {
		return nil
	}
	return f.sendSubscribeLocked(key, sub)
}

// Unsubscribe removes exactly the subscription matching (channel, tickers).
// Unknown subscriptions are a no-op.
func (f *Feed) Unsubscribe(channel Channel, tickers ...string) error {
	key := newSubKey(channel, tickers)

	f.mu.Lock()
	defer f.mu.Unlock()

	sub, exists := f.subs[key]
	if !exists {
		return nil
	}
	delete(f.subs, key)

	if f.conn == nil {
		return nil
	}

	f.cmdID++
	cmd := feedCommand{ID: f.cmdID, Cmd: "unsubscribe"}
	if sub.sid != 0 {
		cmd.Params = unsubscribeParams{SIDs: []int64{sub.sid}}
	} else {
		cmd.Params = subscribeParams{
			Channels:      []string{string(channel)},
			MarketTickers: sub.tickers,
		}
	}
	return f.writeCommandLocked(cmd)
}

// Subscription is one active (channel, tickers) pair as tracked by the
// feed. Tickers are a copy; mutating them does not affect the feed.
type Subscription struct {
	Channel Channel
	Tickers []string
}

// Subscriptions returns the active (channel, tickers) set.
func (f *Feed) Subscriptions() []Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		out = append(out, Subscription{
			Channel: sub.channel,
			Tickers: append([]string(nil), sub.tickers...),
		})
	}
	return out
}

// IsConnected reports whether the socket is currently open.
func (f *Feed) IsConnected() bool { return f.connected.Load() }

// Uptime returns the time since Start succeeded; ok is false before then.
func (f *Feed) Uptime() (time.Duration, bool) {
	at := f.startedAt.Load()
	if at == 0 {
		return 0, false
	}
	return time.Since(time.Unix(0, at)), true
}

// MessagesReceived returns the monotonic count of inbound frames.
func (f *Feed) MessagesReceived() int64 { return f.messages.Load() }

// ReconnectCount returns how many times the feed has reconnected after an
// abnormal close.
func (f *Feed) ReconnectCount() int64 { return f.reconnects.Load() }

// Latency returns the most recent ping round-trip time; ok is false until
// the first pong arrives.
func (f *Feed) Latency() (time.Duration, bool) {
	rtt := f.lastRTT.Load()
	if rtt == 0 {
		return 0, false
	}
	return time.Duration(rtt), true
}

// SinceLastMessage returns the time since the last inbound frame; ok is
// false until the first message.
func (f *Feed) SinceLastMessage() (time.Duration, bool) {
	at := f.lastMsgAt.Load()
	if at == 0 {
		return 0, false
	}
	return time.Since(time.Unix(0, at)), true
}

// Stats bundles the feed's counters into one snapshot.
func (f *Feed) Stats() FeedStats {
	stats := FeedStats{
		Connected:        f.IsConnected(),
		MessagesReceived: f.MessagesReceived(),
		ReconnectCount:   f.ReconnectCount(),
	}
	if up, ok := f.Uptime(); ok {
		stats.Uptime = up
	}
	if rtt, ok := f.Latency(); ok {
		stats.Latency = rtt
	}
	if since, ok := f.SinceLastMessage(); ok {
		stats.SinceLastMessage = since
	}
	return stats
}

// dial opens the socket with signed handshake headers and installs the
// ping/pong deadline handlers.
func (f *Feed) dial(ctx context.Context) error {
	parsed, err := url.Parse(f.cfg.URL)
	if err != nil {
		return fmt.Errorf("parse feed url: %w", err)
	}
	wsPath := parsed.Path
	if wsPath == "" {
		wsPath = wsPathV2
	}

	header, err := f.signer.WSHeaders(wsPath)
	if err != nil {
		return fmt.Errorf("sign handshake: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, header)
	if err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(f.cfg.PongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(f.cfg.PongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(f.cfg.WriteTimeout))
	})
	conn.SetPongHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(f.cfg.PongWait))
		if sent, err := strconv.ParseInt(data, 10, 64); err == nil {
			rtt := time.Now().UnixNano() - sent
			if rtt > 0 {
				f.lastRTT.Store(rtt)
				telemetry.Metrics.FeedPingLatency.Record(time.Duration(rtt))
			}
		}
		return nil
	})

	f.mu.Lock()
	f.conn = conn
	f.pending = make(map[int64]string)
	f.mu.Unlock()
	return nil
}

// run owns the connection lifecycle: resubscribe, read until failure,
// then redial with exponential backoff until stopped.
func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	for {
		f.connected.Store(true)
		f.resubscribeAll()
		f.readLoop(ctx)
		f.connected.Store(false)

		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := f.cfg.ReconnectWait
		for attempt := 1; ; attempt++ {
			telemetry.Warnf("kalshi feed: reconnecting (attempt %d) in %s", attempt, wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			if err := f.dial(ctx); err != nil {
				telemetry.Warnf("kalshi feed: redial failed: %v", err)
				wait = minDuration(wait*2, f.cfg.MaxReconnectWait)
				continue
			}
			break
		}
		f.reconnects.Add(1)
		telemetry.Metrics.FeedReconnects.Inc()
		telemetry.Infof("kalshi feed: reconnected to %s", f.cfg.URL)
	}
}

// resubscribeAll replays every tracked subscription. Called after each
// successful connect so the caller's subscription state survives
// reconnects transparently.
func (f *Feed) resubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, sub := range f.subs {
		sub.sid = 0
		if err := f.sendSubscribeLocked(key, sub); err != nil {
			telemetry.Warnf("kalshi feed: resubscribe %s failed: %v", sub.channel, err)
		}
	}
}

// sendSubscribeLocked writes a subscribe command. Caller must hold mu.
func (f *Feed) sendSubscribeLocked(key string, sub *subscription) error {
	f.cmdID++
	f.pending[f.cmdID] = key
	cmd := feedCommand{
		ID:  f.cmdID,
		Cmd: "subscribe",
		Params: subscribeParams{
			Channels:      []string{string(sub.channel)},
			MarketTickers: sub.tickers,
		},
	}
	return f.writeCommandLocked(cmd)
}

// writeCommandLocked marshals and sends one command frame. Caller must
// hold mu.
func (f *Feed) writeCommandLocked(cmd feedCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	defer f.conn.SetWriteDeadline(time.Time{})
	return f.conn.WriteMessage(websocket.TextMessage, data)
}

// pingLoop sends timestamped pings so the pong handler can measure RTT.
func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := strconv.FormatInt(time.Now().UnixNano(), 10)
			// WriteControl is safe concurrently with data writes.
			if err := conn.WriteControl(websocket.PingMessage, []byte(payload), time.Now().Add(f.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (f *Feed) readLoop(ctx context.Context) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()

	defer conn.Close()

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go f.pingLoop(pingCtx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				telemetry.Warnf("kalshi feed: read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(f.cfg.PongWait))

		f.messages.Add(1)
		f.lastMsgAt.Store(time.Now().UnixNano())
		telemetry.Metrics.FeedMessages.Inc()

		f.handleFrame(data)
	}
}

// handleFrame decodes one inbound frame and dispatches it. Control frames
// (subscribed, unsubscribed, ok, error) update local state; data frames go
// to the registered handlers for their channel.
func (f *Feed) handleFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		telemetry.Metrics.FeedParseErrors.Inc()
		telemetry.Warnf("kalshi feed: bad frame: %v", err)
		return
	}

	switch env.Type {
	case "subscribed":
		f.captureSID(&env)
		return
	case "unsubscribed", "ok":
		return
	case "error":
		telemetry.Warnf("kalshi feed: server error: %s", string(env.Msg))
		return
	}

	msg, err := decodeMessage(&env)
	if err != nil {
		telemetry.Metrics.FeedParseErrors.Inc()
		telemetry.Warnf("kalshi feed: %v", err)
		return
	}
	if msg == nil {
		return
	}

	f.handlersMu.RLock()
	handlers := f.handlers[msg.Channel()]
	f.handlersMu.RUnlock()

	for _, h := range handlers {
		f.invoke(h, msg)
	}
}

// invoke runs one handler, containing panics so a bad handler cannot kill
// the dispatch loop or starve later handlers.
func (f *Feed) invoke(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Metrics.HandlerPanics.Inc()
			telemetry.Errorf("kalshi feed: handler panic on %s: %v", msg.Channel(), r)
		}
	}()
	h(msg)
}

// captureSID records the server-issued subscription id from a subscribed
// response, correlated by command id.
func (f *Feed) captureSID(env *envelope) {
	var sub struct {
		Channel string `json:"channel"`
		SID     int64  `json:"sid"`
	}
	if err := json.Unmarshal(env.Msg, &sub); err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.pending[env.ID]
	if !ok {
		return
	}
	delete(f.pending, env.ID)
	if s, ok := f.subs[key]; ok {
		s.sid = sub.SID
	}
}

type feedCommand struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params"`
}

type subscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

type unsubscribeParams struct {
	SIDs []int64 `json:"sids"`
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
