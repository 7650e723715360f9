package streaming

// Commands enqueued by the facade and consumed by the event loop. The command queue is the only
// way user calls reach the loop: the transport, the book replicas and the subscription registry
// are owned by the loop and are never touched from other goroutines.
type command interface {
	isCommand()
}

// Command which asks the loop to subscribe to a channel.
type subscribeCommand struct {
	// Base channel name (cf. messages.ChannelEnum)
	channel string
	// Pairs to subscribe to. Empty for private channels.
	pairs []string
	// Optional - book depth
	depth int
	// Optional - ohlc interval in minutes
	interval int
	// True for private channels (ownTrades, openOrders)
	private bool
	// Optional - token to use for private channels. When empty, the loop asks its token
	// provider for one.
	token string
	// Optional - whether to request the historical snapshot (ownTrades)
	snapshot *bool
	// Optional - whether to request the rate-limit counter (openOrders)
	rateCounter bool
}

func (c *subscribeCommand) isCommand() {}

// Command which asks the loop to unsubscribe from a channel.
type unsubscribeCommand struct {
	// Base channel name (cf. messages.ChannelEnum)
	channel string
	// Pairs to unsubscribe from. Empty for private channels.
	pairs []string
	// Optional - book depth
	depth int
	// Optional - ohlc interval in minutes
	interval int
	// True for private channels (ownTrades, openOrders)
	private bool
}

func (c *unsubscribeCommand) isCommand() {}

// Command which asks the loop to send an application level ping. The matching pong is published
// as an event; a missing pong within the ack timeout is treated as a stalled connection.
type pingCommand struct{}

func (c *pingCommand) isCommand() {}
