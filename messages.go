package kalshi

import (
	"encoding/json"
	"fmt"
)

// Message is one decoded inbound frame from the feed. Concrete types are
// TickerMessage, TradeMessage, FillMessage, OrderbookSnapshotMessage,
// OrderbookDeltaMessage, and MarketLifecycleMessage.
type Message interface {
	// Channel returns the subscription channel the message arrived on.
	Channel() Channel
	// MarketTicker returns the market the message concerns, or "" for
	// channel-wide messages.
	MarketTicker() string
}

// envelope is the outer frame shared by every inbound message:
// a type discriminator plus the channel payload.
type envelope struct {
	ID   int64           `json:"id,omitempty"`
	Type string          `json:"type"`
	SID  int64           `json:"sid,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Msg  json.RawMessage `json:"msg"`
}

// TickerMessage is a top-of-book quote update.
type TickerMessage struct {
	Ticker       string `json:"market_ticker"`
	Price        int    `json:"price"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	Volume       int64  `json:"volume"`
	OpenInterest int64  `json:"open_interest"`
	TS           int64  `json:"ts"`
}

func (m *TickerMessage) Channel() Channel     { return ChannelTicker }
func (m *TickerMessage) MarketTicker() string { return m.Ticker }

// NoBid is the bid on the no side, derived from the complementary yes ask.
func (m *TickerMessage) NoBid() int { return 100 - m.YesAsk }

// NoAsk is the ask on the no side, derived from the complementary yes bid.
func (m *TickerMessage) NoAsk() int { return 100 - m.YesBid }

// TradeMessage is a public trade print.
type TradeMessage struct {
	Ticker    string `json:"market_ticker"`
	YesPrice  int    `json:"yes_price"`
	NoPrice   int    `json:"no_price"`
	Count     int    `json:"count"`
	TakerSide string `json:"taker_side"`
	TS        int64  `json:"ts"`
}

func (m *TradeMessage) Channel() Channel     { return ChannelTrade }
func (m *TradeMessage) MarketTicker() string { return m.Ticker }

// FillMessage reports a fill against one of the account's own orders.
type FillMessage struct {
	TradeID  string `json:"trade_id"`
	OrderID  string `json:"order_id"`
	Ticker   string `json:"market_ticker"`
	IsTaker  bool   `json:"is_taker"`
	Side     string `json:"side"`
	Action   string `json:"action"`
	YesPrice int    `json:"yes_price"`
	NoPrice  int    `json:"no_price"`
	Count    int    `json:"count"`
	TS       int64  `json:"ts"`
}

func (m *FillMessage) Channel() Channel     { return ChannelFill }
func (m *FillMessage) MarketTicker() string { return m.Ticker }

// OrderbookSnapshotMessage carries the full resting book for one market.
// Levels are (price_cents, quantity) pairs.
type OrderbookSnapshotMessage struct {
	Ticker string   `json:"market_ticker"`
	Yes    [][2]int `json:"yes"`
	No     [][2]int `json:"no"`
}

func (m *OrderbookSnapshotMessage) Channel() Channel     { return ChannelOrderbookDelta }
func (m *OrderbookSnapshotMessage) MarketTicker() string { return m.Ticker }

// OrderbookDeltaMessage is an incremental change to one price level.
type OrderbookDeltaMessage struct {
	Ticker string `json:"market_ticker"`
	Price  int    `json:"price"`
	Delta  int    `json:"delta"`
	Side   string `json:"side"`
}

func (m *OrderbookDeltaMessage) Channel() Channel     { return ChannelOrderbookDelta }
func (m *OrderbookDeltaMessage) MarketTicker() string { return m.Ticker }

// MarketLifecycleMessage reports a market status transition.
type MarketLifecycleMessage struct {
	Ticker    string `json:"market_ticker"`
	EventType string `json:"event_type"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Result    string `json:"result"`
	TS        int64  `json:"ts"`
}

func (m *MarketLifecycleMessage) Channel() Channel     { return ChannelMarketLifecycle }
func (m *MarketLifecycleMessage) MarketTicker() string { return m.Ticker }

// messageDecoders maps the envelope type discriminator to the constructor
// for its payload. Control frames (subscribed, unsubscribed, ok, error)
// are handled by the feed itself and do not appear here.
var messageDecoders = map[string]func(json.RawMessage) (Message, error){
	"ticker":             func(raw json.RawMessage) (Message, error) { return decodePayload(raw, &TickerMessage{}) },
	"trade":              func(raw json.RawMessage) (Message, error) { return decodePayload(raw, &TradeMessage{}) },
	"fill":               func(raw json.RawMessage) (Message, error) { return decodePayload(raw, &FillMessage{}) },
	"orderbook_snapshot": func(raw json.RawMessage) (Message, error) { return decodePayload(raw, &OrderbookSnapshotMessage{}) },
	"orderbook_delta":    func(raw json.RawMessage) (Message, error) { return decodePayload(raw, &OrderbookDeltaMessage{}) },
	"market_lifecycle":   func(raw json.RawMessage) (Message, error) { return decodePayload(raw, &MarketLifecycleMessage{}) },
}

func decodePayload(raw json.RawMessage, msg Message) (Message, error) {
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %T: %w", msg, err)
	}
	return msg, nil
}

// decodeMessage turns a data frame into its typed message. Returns
// (nil, nil) for frame types this client does not dispatch.
func decodeMessage(env *envelope) (Message, error) {
	decode, ok := messageDecoders[env.Type]
	if !ok {
		return nil, nil
	}
	return decode(env.Msg)
}
