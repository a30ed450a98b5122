package kalshi

// Channel identifies a WebSocket subscription channel.
type Channel string

// Channels the feed can subscribe to.
const (
	ChannelTicker          Channel = "ticker"
	ChannelTrade           Channel = "trade"
	ChannelOrderbookDelta  Channel = "orderbook_delta"
	ChannelMarketLifecycle Channel = "market_lifecycle"

	// Private channels, scoped to the authenticated account.
	ChannelFill Channel = "fill"
)

func (c Channel) String() string { return string(c) }

// RequiresAuth reports whether the channel carries account-private data.
// The connection itself is always authenticated; this only marks channels
// that cannot be served without credentials.
func (c Channel) RequiresAuth() bool {
	return c == ChannelFill
}

// IsValid reports whether c is a channel this client knows how to decode.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelTicker, ChannelTrade, ChannelOrderbookDelta,
		ChannelMarketLifecycle, ChannelFill:
		return true
	}
	return false
}
