package streaming

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gbdevw/purple-gomarket/noncegen"
	"github.com/gbdevw/purple-gomarket/spot/streaming/events"
	"github.com/gbdevw/purple-gomarket/spot/streaming/messages"
	"github.com/gbdevw/purple-gomarket/spot/streaming/tracing"
)

// # Description
//
// High level client for the Kraken spot websocket API. The client maintains local replicas of
// the subscribed order books, verifies them against the server provided checksums and publishes
// typed events to its consumers.
//
// Public and private environments use separate servers and connections: use the public factory
// for market data channels (ticker, ohlc, trade, spread, book) and the private factory for the
// account channels (ownTrades, openOrders).
//
// All methods are safe to call from any goroutine. Methods never block on I/O: they enqueue a
// command for the event loop and return. When the command queue is full, ErrCommandQueueFull is
// returned and the caller can retry.
type Client struct {
	// Client configuration
	cfg *ClientConfiguration
	// Target of the connection
	endpoint url.URL
	// Transport used by the event loop
	transport Transport
	// Provider of private subscription tokens. Nil on public clients.
	tokens WebsocketTokenProvider
	// True when the client targets the private environment
	private bool
	// Nonce generator used for request IDs
	ngen noncegen.NonceGenerator
	// Logger used to publish debug/verbose logs
	logger *log.Logger
	// Tracer used to instrument code
	tracer trace.Tracer
	// Metric instruments. Nil when instruments could not be built.
	metrics *clientMetrics
	// Broadcast used to publish events to consumers
	broadcaster *events.Broadcaster
	// Command queue between the facade and the event loop
	commands chan command
	// Mutex which protects the lifecycle state below
	mu sync.Mutex
	// True while the event loop is running
	started bool
	// Cancels the event loop context
	cancelLoop context.CancelFunc
	// Closed when the event loop has exited
	loopDone chan struct{}
}

// # Description
//
// Build a client for the public environment of the Kraken spot websocket API.
//
// # Inputs
//
//   - transport: Transport to use. Nil defaults to a gorilla/websocket backed transport.
//   - cfg: Client configuration. Nil means all default configuration options.
//   - logger: Optional logger for debug/verbose messages. If nil, logs are discarded.
//   - tracerProvider: Tracer provider used to instrument code. If nil, the global tracer
//     provider is used.
//
// # Return
//
// A ready to use client. Call Connect to start it.
func NewKrakenSpotPublicStreamingClient(
	transport Transport,
	cfg *ClientConfiguration,
	logger *log.Logger,
	tracerProvider trace.TracerProvider,
) (*Client, error) {
	client, err := newClient(transport, nil, cfg, logger, tracerProvider, false)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// # Description
//
// Build a client for the private environment of the Kraken spot websocket API. Private
// subscriptions require an authentication token: tokens are obtained from the provided token
// provider, or can be supplied explicitly per subscription.
//
// # Inputs
//
//   - transport: Transport to use. Nil defaults to a gorilla/websocket backed transport.
//   - tokens: Provider used to get tokens for private subscriptions. Can be nil when tokens
//     are always supplied explicitly, but then subscriptions cannot be restored after a
//     reconnection (tokens are single use).
//   - cfg: Client configuration. Nil means all default configuration options.
//   - logger: Optional logger for debug/verbose messages. If nil, logs are discarded.
//   - tracerProvider: Tracer provider used to instrument code. If nil, the global tracer
//     provider is used.
//
// # Return
//
// A ready to use client. Call Connect to start it.
func NewKrakenSpotPrivateStreamingClient(
	transport Transport,
	tokens WebsocketTokenProvider,
	cfg *ClientConfiguration,
	logger *log.Logger,
	tracerProvider trace.TracerProvider,
) (*Client, error) {
	return newClient(transport, tokens, cfg, logger, tracerProvider, true)
}

// Shared constructor for public and private clients.
func newClient(
	transport Transport,
	tokens WebsocketTokenProvider,
	cfg *ClientConfiguration,
	logger *log.Logger,
	tracerProvider trace.TracerProvider,
	private bool,
) (*Client, error) {
	if cfg == nil {
		cfg = NewDefaultClientConfiguration()
	}
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if transport == nil {
		transport = NewGorillaTransport(nil, nil)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", log.Default().Flags())
	}
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	target := cfg.PublicURL
	if private {
		target = cfg.PrivateURL
	}
	endpoint, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint URL '%s': %w", target, err)
	}
	metrics, err := newClientMetrics(otel.GetMeterProvider().Meter(tracing.PackageName))
	if err != nil {
		// Instruments are optional: the client works without them
		logger.Println("failed to build metric instruments:", err.Error())
		metrics = nil
	}
	return &Client{
		cfg:         cfg,
		endpoint:    *endpoint,
		transport:   transport,
		tokens:      tokens,
		private:     private,
		ngen:        noncegen.NewHFNonceGenerator(),
		logger:      logger,
		tracer:      tracerProvider.Tracer(tracing.PackageName, trace.WithInstrumentationVersion(tracing.PackageVersion)),
		metrics:     metrics,
		broadcaster: events.NewBroadcaster(cfg.EventBufferCapacity),
		commands:    make(chan command, cfg.CommandBufferCapacity),
	}, nil
}

/*************************************************************************************************/
/* LIFECYCLE                                                                                     */
/*************************************************************************************************/

// # Description
//
// Start the event loop. The method returns once the loop has started connecting: the
// connection itself is established asynchronously and its progress is observable through the
// published events (system_status, error).
//
// # Return
//
// Nil in case of success. ErrAlreadyConnected when the client is already running.
func (client *Client) Connect(ctx context.Context) error {
	ctx, span := client.tracer.Start(ctx, tracing.TracesNamespace+".connect", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.started {
		return tracing.HandleAndTraceError(span, ErrAlreadyConnected)
	}
	loop := newEventLoop(
		client.cfg,
		client.endpoint,
		client.transport,
		client.tokens,
		client.ngen,
		client.logger,
		client.tracer,
		client.metrics,
		client.broadcaster,
		client.commands,
	)
	// The loop lifetime is bound to the client, not to the caller provided context
	loopCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.run(loopCtx, ready)
	}()
	<-ready
	client.started = true
	client.cancelLoop = cancel
	client.loopDone = done
	client.logger.Println("client connected")
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// # Description
//
// Stop the event loop: the connection is closed, pending commands are discarded and all event
// receivers observe the closure of their channel. The method waits for the loop to exit or for
// the provided context to expire.
//
// # Return
//
// Nil in case of success. ErrNotConnected when the client is not running. The context error
// when the context expires before the loop has exited.
func (client *Client) Shutdown(ctx context.Context) error {
	ctx, span := client.tracer.Start(ctx, tracing.TracesNamespace+".shutdown", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	client.mu.Lock()
	defer client.mu.Unlock()
	if !client.started {
		return tracing.HandleAndTraceError(span, ErrNotConnected)
	}
	client.cancelLoop()
	select {
	case <-client.loopDone:
	case <-ctx.Done():
		return tracing.HandleAndTraceError(span, &OperationInterruptedError{Operation: "shutdown", Root: ctx.Err()})
	}
	client.started = false
	client.logger.Println("client shut down")
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// # Description
//
// Create a new event receiver. Events published after this call are delivered to the receiver.
// Multiple receivers can coexist; each has its own buffer. A receiver which cannot keep up
// observes stream_gap events instead of slowing the client down.
func (client *Client) SubscribeEvents() *events.Receiver {
	return client.broadcaster.Subscribe()
}

/*************************************************************************************************/
/* PUBLIC CHANNELS                                                                               */
/*************************************************************************************************/

// Subscribe to the ticker channel for the provided pairs.
func (client *Client) SubscribeTicker(ctx context.Context, pairs []string) error {
	return client.enqueueSubscribe(ctx, &subscribeCommand{
		channel: string(messages.ChannelTicker),
		pairs:   pairs,
	}, false)
}

// Subscribe to the ohlc channel for the provided pairs and interval. Several intervals can be
// subscribed at the same time.
func (client *Client) SubscribeOHLC(ctx context.Context, pairs []string, interval messages.IntervalEnum) error {
	return client.enqueueSubscribe(ctx, &subscribeCommand{
		channel:  string(messages.ChannelOHLC),
		pairs:    pairs,
		interval: int(interval),
	}, false)
}

// Subscribe to the trade channel for the provided pairs.
func (client *Client) SubscribeTrade(ctx context.Context, pairs []string) error {
	return client.enqueueSubscribe(ctx, &subscribeCommand{
		channel: string(messages.ChannelTrade),
		pairs:   pairs,
	}, false)
}

// Subscribe to the spread channel for the provided pairs.
func (client *Client) SubscribeSpread(ctx context.Context, pairs []string) error {
	return client.enqueueSubscribe(ctx, &subscribeCommand{
		channel: string(messages.ChannelSpread),
		pairs:   pairs,
	}, false)
}

// # Description
//
// Subscribe to the book channel for the provided pairs and depth. The client maintains a local
// replica of each book, prunes it to the subscribed depth and verifies it against the server
// provided checksums. Consumers receive book_snapshot and book_update events once the replica
// has been updated; a checksum mismatch is surfaced as an error event and triggers an
// automatic resynchronization.
func (client *Client) SubscribeBook(ctx context.Context, pairs []string, depth messages.DepthEnum) error {
	return client.enqueueSubscribe(ctx, &subscribeCommand{
		channel: string(messages.ChannelBook),
		pairs:   pairs,
		depth:   int(depth),
	}, false)
}

// Unsubscribe from the ticker channel for the provided pairs.
func (client *Client) UnsubscribeTicker(ctx context.Context, pairs []string) error {
	return client.enqueue(ctx, "unsubscribe_ticker", &unsubscribeCommand{
		channel: string(messages.ChannelTicker),
		pairs:   pairs,
	})
}

// Unsubscribe from the ohlc channel for the provided pairs and interval.
func (client *Client) UnsubscribeOHLC(ctx context.Context, pairs []string, interval messages.IntervalEnum) error {
	return client.enqueue(ctx, "unsubscribe_ohlc", &unsubscribeCommand{
		channel:  string(messages.ChannelOHLC),
		pairs:    pairs,
		interval: int(interval),
	})
}

// Unsubscribe from the trade channel for the provided pairs.
func (client *Client) UnsubscribeTrade(ctx context.Context, pairs []string) error {
	return client.enqueue(ctx, "unsubscribe_trade", &unsubscribeCommand{
		channel: string(messages.ChannelTrade),
		pairs:   pairs,
	})
}

// Unsubscribe from the spread channel for the provided pairs.
func (client *Client) UnsubscribeSpread(ctx context.Context, pairs []string) error {
	return client.enqueue(ctx, "unsubscribe_spread", &unsubscribeCommand{
		channel: string(messages.ChannelSpread),
		pairs:   pairs,
	})
}

// Unsubscribe from the book channel for the provided pairs and depth. The local book replicas
// of the pairs are dropped.
func (client *Client) UnsubscribeBook(ctx context.Context, pairs []string, depth messages.DepthEnum) error {
	return client.enqueue(ctx, "unsubscribe_book", &unsubscribeCommand{
		channel: string(messages.ChannelBook),
		pairs:   pairs,
		depth:   int(depth),
	})
}

/*************************************************************************************************/
/* PRIVATE CHANNELS                                                                              */
/*************************************************************************************************/

// # Description
//
// Subscribe to the ownTrades channel. Only available on private clients.
//
// # Inputs
//
//   - ctx: Context used for tracing purpose.
//   - token: Optional token to attach to the subscribe payload. When empty, the client asks
//     its token provider for one. After a reconnection, the client always asks its token
//     provider for a fresh token as tokens are invalidated by the server after use.
//   - snapshot: Whether to request the historical trades snapshot upon subscription. Nil means
//     server default.
func (client *Client) SubscribeOwnTrades(ctx context.Context, token string, snapshot *bool) error {
	return client.enqueueSubscribe(ctx, &subscribeCommand{
		channel:  string(messages.ChannelOwnTrades),
		private:  true,
		token:    token,
		snapshot: snapshot,
	}, true)
}

// # Description
//
// Subscribe to the openOrders channel. Only available on private clients.
//
// # Inputs
//
//   - ctx: Context used for tracing purpose.
//   - token: Optional token to attach to the subscribe payload. When empty, the client asks
//     its token provider for one.
//   - rateCounter: Whether to request the rate-limit counter in updates.
func (client *Client) SubscribeOpenOrders(ctx context.Context, token string, rateCounter bool) error {
	return client.enqueueSubscribe(ctx, &subscribeCommand{
		channel:     string(messages.ChannelOpenOrders),
		private:     true,
		token:       token,
		rateCounter: rateCounter,
	}, true)
}

// Unsubscribe from the ownTrades channel. Only available on private clients.
func (client *Client) UnsubscribeOwnTrades(ctx context.Context) error {
	if !client.private {
		return &OperationError{Operation: "unsubscribe_own_trades", Root: fmt.Errorf("private channels require a private client")}
	}
	return client.enqueue(ctx, "unsubscribe_own_trades", &unsubscribeCommand{
		channel: string(messages.ChannelOwnTrades),
		private: true,
	})
}

// Unsubscribe from the openOrders channel. Only available on private clients.
func (client *Client) UnsubscribeOpenOrders(ctx context.Context) error {
	if !client.private {
		return &OperationError{Operation: "unsubscribe_open_orders", Root: fmt.Errorf("private channels require a private client")}
	}
	return client.enqueue(ctx, "unsubscribe_open_orders", &unsubscribeCommand{
		channel: string(messages.ChannelOpenOrders),
		private: true,
	})
}

/*************************************************************************************************/
/* PING                                                                                          */
/*************************************************************************************************/

// # Description
//
// Send an application level ping to the server. The matching pong is published as an event; a
// missing pong within the ack timeout is treated as a stalled connection and triggers a
// reconnection.
func (client *Client) Ping(ctx context.Context) error {
	return client.enqueue(ctx, "ping", &pingCommand{})
}

/*************************************************************************************************/
/* HELPERS                                                                                       */
/*************************************************************************************************/

// Validate and enqueue a subscribe command.
func (client *Client) enqueueSubscribe(ctx context.Context, cmd *subscribeCommand, private bool) error {
	operation := "subscribe_" + cmd.channel
	if private && !client.private {
		return &OperationError{Operation: operation, Root: fmt.Errorf("private channels require a private client")}
	}
	if !private && client.private {
		return &OperationError{Operation: operation, Root: fmt.Errorf("public channels require a public client")}
	}
	if !private && len(cmd.pairs) == 0 {
		return &OperationError{Operation: operation, Root: fmt.Errorf("at least one pair must be provided")}
	}
	return client.enqueue(ctx, operation, cmd)
}

// Enqueue a command for the event loop. The call never blocks: when the queue is full,
// ErrCommandQueueFull is returned and the caller can retry.
func (client *Client) enqueue(ctx context.Context, operation string, cmd command) error {
	_, span := client.tracer.Start(ctx, tracing.TracesNamespace+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("operation", operation)))
	defer span.End()
	client.mu.Lock()
	started := client.started
	client.mu.Unlock()
	if !started {
		return tracing.HandleAndTraceError(span, ErrNotConnected)
	}
	select {
	case client.commands <- cmd:
		span.SetStatus(codes.Ok, codes.Ok.String())
		return nil
	default:
		return tracing.HandleAndTraceError(span, ErrCommandQueueFull)
	}
}
