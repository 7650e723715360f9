package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gbdevw/purple-gomarket/noncegen"
	"github.com/gbdevw/purple-gomarket/spot/streaming/events"
	"github.com/gbdevw/purple-gomarket/spot/streaming/messages"
	"github.com/gbdevw/purple-gomarket/spot/streaming/orderbook"
	"github.com/gbdevw/purple-gomarket/spot/streaming/tracing"
)

// Connection states of the event loop.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnectedHealthy
	stateConnectedDegraded
	stateReconnecting
	stateTerminal
)

// Identity of a server data channel: channel name (with its suffix) and pair.
type channelKey struct {
	name string
	pair string
}

// A frame read from the transport or the read error which ended the connection.
type inboundFrame struct {
	msgType MessageType
	payload []byte
	err     error
}

// Exponential backoff state used between reconnect attempts.
type backoffState struct {
	// First delay. Doubles after each attempt.
	base time.Duration
	// Upper bound for the delay.
	cap time.Duration
	// Jitter fraction applied to each delay (0.2 = +/- 20%).
	jitter float64
	// Delay for the next attempt. Zero means base.
	current time.Duration
}

// Return the delay to wait before the next attempt and advance the backoff.
func (b *backoffState) next() time.Duration {
	delay := b.current
	if delay == 0 {
		delay = b.base
	}
	b.current = delay * 2
	if b.current > b.cap {
		b.current = b.cap
	}
	if b.jitter > 0 {
		span := float64(delay) * b.jitter
		delay = time.Duration(float64(delay) - span + rand.Float64()*2*span)
	}
	return delay
}

// Reset the backoff after a successful connection.
func (b *backoffState) reset() {
	b.current = 0
}

// Interface for the component which provides authentication tokens for private subscriptions.
//
// The REST side of this module provides an implementation which calls the GetWebSocketsToken
// endpoint (cf. spot/rest.WebsocketTokenSource).
type WebsocketTokenProvider interface {
	// Get a token which can be used to subscribe to private channels. Implementations can cache
	// tokens until their expiry.
	GetWebsocketToken(ctx context.Context) (string, error)
}

// The event loop owns the transport, the subscription registry and the book replicas. It is the
// single consumer of the command queue and the single producer of the event broadcast: all
// state mutations happen on the loop goroutine and no lock is needed on the hot path.
//
// Each turn of the loop handles exactly one of: an inbound frame, a user command, a timer or
// the shutdown signal. A turn always runs to completion before the loop awaits again.
type eventLoop struct {
	// Client configuration
	cfg *ClientConfiguration
	// Target of the connection (public or private environment)
	endpoint url.URL
	// Transport owned by the loop
	transport Transport
	// Provider of private subscription tokens. Nil on public clients.
	tokens WebsocketTokenProvider
	// Nonce generator used for request IDs
	ngen noncegen.NonceGenerator
	// Logger used to publish debug/verbose logs
	logger *log.Logger
	// Tracer used to instrument code
	tracer trace.Tracer
	// Metric instruments. Can be nil when instruments could not be built.
	metrics *clientMetrics
	// Broadcast used to publish events to consumers
	broadcaster *events.Broadcaster
	// Command queue. The loop is the sole consumer.
	commands chan command
	// Subscriptions maintained by the loop
	registry *subscriptionRegistry
	// Book replicas per pair
	books map[string]*orderbook.Book
	// Server channel IDs of acknowledged subscriptions
	channelIds map[int64]channelKey
	// Connection state
	state connState
	// Reconnect backoff state
	backoff backoffState
	// Frames read from the current connection. Nil while disconnected.
	frames chan *inboundFrame
	// Cancels the reader pump of the current connection
	pumpCancel context.CancelFunc
	// True while the transport holds an open connection
	connected bool
	// Time the last frame was received
	lastFrame time.Time
	// Time the current connection attempt started
	connectStarted time.Time
	// Pending application level pings by request ID
	pendingPings map[int64]time.Time
	// Rate limiter applied to outbound messages
	limiter *rate.Limiter
	// Timer which schedules (re)connection attempts
	reconnectTimer *time.Timer
}

// Factory which assembles an event loop. Used by the client facade.
func newEventLoop(
	cfg *ClientConfiguration,
	endpoint url.URL,
	transport Transport,
	tokens WebsocketTokenProvider,
	ngen noncegen.NonceGenerator,
	logger *log.Logger,
	tracer trace.Tracer,
	metrics *clientMetrics,
	broadcaster *events.Broadcaster,
	commands chan command,
) *eventLoop {
	return &eventLoop{
		cfg:         cfg,
		endpoint:    endpoint,
		transport:   transport,
		tokens:      tokens,
		ngen:        ngen,
		logger:      logger,
		tracer:      tracer,
		metrics:     metrics,
		broadcaster: broadcaster,
		commands:    commands,
		registry:    newSubscriptionRegistry(),
		books:       map[string]*orderbook.Book{},
		channelIds:  map[int64]channelKey{},
		state:       stateDisconnected,
		backoff: backoffState{
			base:   cfg.ReconnectBackoff.Base,
			cap:    cfg.ReconnectBackoff.Cap,
			jitter: cfg.ReconnectBackoff.Jitter,
		},
		pendingPings: map[int64]time.Time{},
		limiter:      rate.NewLimiter(rate.Limit(cfg.OutboundMessagesPerSecond), cfg.OutboundBurst),
	}
}

/*************************************************************************************************/
/* MAIN CYCLE                                                                                    */
/*************************************************************************************************/

// # Description
//
// Run the event loop until the provided context is canceled. Each turn of the loop awaits one
// of:
//   - the next frame read from the transport,
//   - the next command from the command queue,
//   - the reconnect timer,
//   - the watchdog tick (heartbeat stall, connect timeout, missing acknowledgements),
//   - the shutdown signal (context cancellation).
//
// The ready channel is closed as soon as the loop has entered its connecting state.
func (l *eventLoop) run(ctx context.Context, ready chan struct{}) {
	l.logger.Println("event loop starting, connecting to", l.endpoint.String())
	l.state = stateConnecting
	// Connect attempts are driven by the reconnect timer; fire the first attempt immediately
	l.reconnectTimer = time.NewTimer(0)
	defer l.reconnectTimer.Stop()
	// Watchdog cadence follows the heartbeat interval so short intervals remain observable
	watchdogPeriod := l.cfg.HeartbeatInterval / 2
	if watchdogPeriod > time.Second {
		watchdogPeriod = time.Second
	}
	if watchdogPeriod < 10*time.Millisecond {
		watchdogPeriod = 10 * time.Millisecond
	}
	watchdog := time.NewTicker(watchdogPeriod)
	defer watchdog.Stop()
	close(ready)
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case <-l.reconnectTimer.C:
			l.connect(ctx)
		case frame := <-l.frames:
			if frame.err != nil {
				l.handleConnectionFailure(ctx, events.ErrorKindTransport, fmt.Errorf("connection with the server has been lost: %w", frame.err))
				continue
			}
			l.handleFrame(ctx, frame.payload)
		case cmd := <-l.commands:
			l.handleCommand(ctx, cmd)
		case <-watchdog.C:
			l.checkWatchdogs(ctx)
		}
	}
}

// Attempt to open a connection to the server and restore the subscriptions recorded in the
// registry. On failure, the next attempt is scheduled with the reconnect backoff.
func (l *eventLoop) connect(ctx context.Context) {
	ctx, span := l.tracer.Start(ctx, tracing.TracesNamespace+".connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("endpoint", l.endpoint.String())))
	defer span.End()
	l.state = stateConnecting
	l.connectStarted = time.Now()
	l.logger.Println("connecting to", l.endpoint.String())
	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	err := l.transport.Dial(dialCtx, l.endpoint)
	cancel()
	if err != nil {
		eerr := fmt.Errorf("failed to connect to %s: %w", l.endpoint.String(), err)
		l.logger.Println(eerr.Error())
		tracing.TraceErrorAndSetStatus(span, eerr)
		l.publishError(ctx, events.ErrorKindTransport, eerr.Error(), "")
		l.state = stateReconnecting
		l.reconnectTimer.Reset(l.backoff.next())
		return
	}
	l.connected = true
	l.lastFrame = time.Now()
	// Reader pump: moves frames from the transport to the loop. The pump is the only reader of
	// the transport; the loop remains its only writer.
	l.frames = make(chan *inboundFrame, 16)
	pumpCtx, pumpCancel := context.WithCancel(ctx)
	l.pumpCancel = pumpCancel
	go readerPump(pumpCtx, l.transport, l.frames)
	// Restore subscriptions in the order the user created them
	for _, entry := range l.registry.all() {
		err := l.sendSubscribeForEntry(ctx, entry)
		if err != nil {
			l.logger.Println("failed to restore subscription:", err.Error())
		}
		if !l.connected {
			// The connection failed while restoring subscriptions
			return
		}
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// Reader pump: reads frames from the transport and forwards them to the loop until the
// connection fails or the pump is canceled.
func readerPump(ctx context.Context, transport Transport, frames chan<- *inboundFrame) {
	for {
		msgType, payload, err := transport.Read(ctx)
		frame := &inboundFrame{msgType: msgType, payload: payload, err: err}
		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Tear down the current connection after a failure and schedule a reconnect attempt.
//
// Book replicas are discarded: they will be rebuilt from the snapshots that follow the
// resubscriptions. The registry keeps the subscription intents but forgets all acknowledge
// state.
func (l *eventLoop) handleConnectionFailure(ctx context.Context, kind events.ErrorKindEnum, cause error) {
	l.logger.Println(cause.Error())
	l.publishError(ctx, kind, cause.Error(), "")
	l.teardownConnection(ctx)
	l.state = stateReconnecting
	if l.metrics != nil {
		l.metrics.reconnects.Add(ctx, 1)
	}
	l.reconnectTimer.Reset(l.backoff.next())
}

// Release the connection and wipe all connection-scoped state.
func (l *eventLoop) teardownConnection(ctx context.Context) {
	if l.pumpCancel != nil {
		l.pumpCancel()
		l.pumpCancel = nil
	}
	if l.connected {
		_ = l.transport.Close(ctx, 1001, "going away")
		l.connected = false
	}
	l.frames = nil
	l.books = map[string]*orderbook.Book{}
	l.channelIds = map[int64]channelKey{}
	l.pendingPings = map[int64]time.Time{}
	l.registry.markDisconnected()
}

// Terminate the loop: close the connection, drain pending commands and close all receivers.
func (l *eventLoop) shutdown() {
	l.logger.Println("event loop shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	l.teardownConnection(ctx)
	// Drain commands enqueued while shutting down
	for {
		select {
		case <-l.commands:
			continue
		default:
		}
		break
	}
	l.publishError(ctx, events.ErrorKindShutdown, ErrShutdown.Error(), "")
	l.broadcaster.Close()
	l.state = stateTerminal
}

// Check the loop watchdogs:
//   - Connection establishment: a connection which has not received a systemStatus message within
//     the connect timeout is torn down.
//   - Heartbeat: the server emits a heartbeat roughly every heartbeat interval when at least
//     one subscription is active. No traffic for three intervals means the connection stalled.
//   - Pending pings: a ping without a pong after the ack timeout is counted as a disconnect.
//   - Subscribe acknowledgements: a subscription unacknowledged after the ack timeout is retried
//     once, then counted as a disconnect.
func (l *eventLoop) checkWatchdogs(ctx context.Context) {
	if !l.connected {
		return
	}
	now := time.Now()
	if l.state == stateConnecting && now.Sub(l.connectStarted) > l.cfg.ConnectTimeout {
		l.handleConnectionFailure(ctx, events.ErrorKindAckTimeout, fmt.Errorf("server did not report its status within %s", l.cfg.ConnectTimeout))
		return
	}
	if (l.state == stateConnectedHealthy || l.state == stateConnectedDegraded) &&
		len(l.registry.all()) > 0 && now.Sub(l.lastFrame) > 3*l.cfg.HeartbeatInterval {
		l.handleConnectionFailure(ctx, events.ErrorKindAckTimeout, fmt.Errorf("connection stalled: no traffic from the server for %s", now.Sub(l.lastFrame).Truncate(time.Millisecond)))
		return
	}
	for reqid, sent := range l.pendingPings {
		if now.Sub(sent) > l.cfg.AckTimeout {
			delete(l.pendingPings, reqid)
			l.handleConnectionFailure(ctx, events.ErrorKindAckTimeout, fmt.Errorf("server did not reply to ping %d", reqid))
			return
		}
	}
	for _, entry := range l.registry.all() {
		if entry.fullyAcked() || entry.lastAttempt.IsZero() || now.Sub(entry.lastAttempt) <= l.cfg.AckTimeout {
			continue
		}
		if !entry.retried {
			entry.retried = true
			l.logger.Println("subscribe ack missing, retrying subscription to", entry.channel)
			err := l.sendSubscribeForEntry(ctx, entry)
			if err != nil {
				l.logger.Println("failed to retry subscription:", err.Error())
			}
			continue
		}
		l.handleConnectionFailure(ctx, events.ErrorKindAckTimeout, fmt.Errorf("server did not acknowledge subscription to %s", entry.channel))
		return
	}
}

/*************************************************************************************************/
/* COMMANDS                                                                                      */
/*************************************************************************************************/

// Handle one command from the facade.
func (l *eventLoop) handleCommand(ctx context.Context, cmd command) {
	switch cmd := cmd.(type) {
	case *subscribeCommand:
		l.handleSubscribe(ctx, cmd)
	case *unsubscribeCommand:
		l.handleUnsubscribe(ctx, cmd)
	case *pingCommand:
		l.handlePing(ctx)
	default:
		l.logger.Printf("dropping unknown command of type %T", cmd)
	}
}

// Record the subscription intent and send the subscribe frame when connected. Recording the
// intent first makes the subscription survive a disconnect which happens before the server
// acknowledges it.
func (l *eventLoop) handleSubscribe(ctx context.Context, cmd *subscribeCommand) {
	ctx, span := l.tracer.Start(ctx, tracing.TracesNamespace+".subscribe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("channel", cmd.channel),
			attribute.StringSlice("pairs", cmd.pairs),
		))
	defer span.End()
	entry := l.registry.record(cmd)
	if cmd.token != "" {
		l.logger.Println("subscribing to", cmd.channel, "with a caller provided token")
	}
	if !l.connected {
		// The subscription will be restored when the connection is (re)established
		span.SetStatus(codes.Ok, codes.Ok.String())
		return
	}
	err := l.sendSubscribe(ctx, entry, cmd.pairs, cmd.token)
	if err != nil {
		l.logger.Println(err.Error())
		tracing.TraceErrorAndSetStatus(span, err)
		return
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// Remove the subscription from the registry and send the unsubscribe frame when connected.
func (l *eventLoop) handleUnsubscribe(ctx context.Context, cmd *unsubscribeCommand) {
	ctx, span := l.tracer.Start(ctx, tracing.TracesNamespace+".unsubscribe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("channel", cmd.channel),
			attribute.StringSlice("pairs", cmd.pairs),
		))
	defer span.End()
	key := subscriptionKey{channel: cmd.channel, depth: cmd.depth, interval: cmd.interval}
	l.registry.remove(key, cmd.pairs)
	if cmd.channel == string(messages.ChannelBook) {
		for _, pair := range cmd.pairs {
			delete(l.books, pair)
		}
	}
	if !l.connected {
		span.SetStatus(codes.Ok, codes.Ok.String())
		return
	}
	details := messages.UnsubscribeDetails{
		Name:     cmd.channel,
		Depth:    cmd.depth,
		Interval: cmd.interval,
	}
	// Private channels require a token to unsubscribe too
	if cmd.private && l.tokens != nil {
		token, err := l.tokens.GetWebsocketToken(ctx)
		if err != nil {
			eerr := fmt.Errorf("failed to get a token to unsubscribe from %s: %w", cmd.channel, err)
			l.publishError(ctx, events.ErrorKindAuth, eerr.Error(), "")
			tracing.TraceErrorAndSetStatus(span, eerr)
			return
		}
		details.Token = token
	}
	req := &messages.Unsubscribe{
		Event:        string(messages.EventTypeUnsubscribe),
		ReqId:        l.ngen.GenerateNonce(),
		Pairs:        cmd.pairs,
		Subscription: details,
	}
	err := l.send(ctx, req)
	if err != nil {
		tracing.TraceErrorAndSetStatus(span, err)
		return
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// Send an application level ping. The matching pong is published as an event.
func (l *eventLoop) handlePing(ctx context.Context) {
	ctx, span := l.tracer.Start(ctx, tracing.TracesNamespace+".ping", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	if !l.connected {
		l.logger.Println("dropping ping command: not connected")
		tracing.TraceErrorAndSetStatus(span, ErrNotConnected)
		return
	}
	reqid := l.ngen.GenerateNonce()
	err := l.send(ctx, &messages.Ping{Event: string(messages.EventTypePing), ReqId: reqid})
	if err != nil {
		tracing.TraceErrorAndSetStatus(span, err)
		return
	}
	l.pendingPings[reqid] = time.Now()
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// Send the subscribe frame which restores a whole registry entry.
func (l *eventLoop) sendSubscribeForEntry(ctx context.Context, entry *subscriptionEntry) error {
	return l.sendSubscribe(ctx, entry, entry.pairs, "")
}

// Build and send a subscribe frame for the provided pairs of an entry. For private channels, a
// token is obtained from the token provider unless the caller supplied one.
func (l *eventLoop) sendSubscribe(ctx context.Context, entry *subscriptionEntry, pairs []string, token string) error {
	details := messages.SubscriptionDetails{
		Name:        entry.channel,
		Depth:       entry.depth,
		Interval:    entry.interval,
		Snapshot:    entry.snapshot,
		RateCounter: entry.rateCounter,
	}
	if entry.private {
		if token == "" {
			if l.tokens == nil {
				err := fmt.Errorf("no token provider configured for private channel %s", entry.channel)
				l.publishError(ctx, events.ErrorKindAuth, err.Error(), "")
				return err
			}
			fresh, err := l.tokens.GetWebsocketToken(ctx)
			if err != nil {
				eerr := fmt.Errorf("failed to get a token for private channel %s: %w", entry.channel, err)
				l.publishError(ctx, events.ErrorKindAuth, eerr.Error(), "")
				return eerr
			}
			token = fresh
		}
		details.Token = token
	}
	req := &messages.Subscribe{
		Event:        string(messages.EventTypeSubscribe),
		ReqId:        l.ngen.GenerateNonce(),
		Pairs:        pairs,
		Subscription: details,
	}
	err := l.send(ctx, req)
	if err != nil {
		return err
	}
	entry.lastAttempt = time.Now()
	return nil
}

// Marshal and send a message to the server through the rate limiter. A write failure counts as
// a connection failure.
func (l *eventLoop) send(ctx context.Context, msg interface{}) error {
	if !l.connected {
		return ErrNotConnected
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to format outbound message: %w", err)
	}
	err = l.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	err = l.transport.Write(ctx, Text, payload)
	if err != nil {
		l.handleConnectionFailure(ctx, events.ErrorKindTransport, fmt.Errorf("failed to send message: %w", err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if l.metrics != nil {
		l.metrics.messagesSent.Add(ctx, 1)
	}
	return nil
}

/*************************************************************************************************/
/* FRAMES                                                                                        */
/*************************************************************************************************/

// Decode one frame and dispatch it. Decode failures never terminate the connection: the frame
// is dropped and a decode error event is published.
func (l *eventLoop) handleFrame(ctx context.Context, payload []byte) {
	l.lastFrame = time.Now()
	if l.metrics != nil {
		l.metrics.framesReceived.Add(ctx, 1)
	}
	decoded, err := messages.Decode(payload)
	if err != nil {
		if errors.Is(err, messages.ErrUnknownMessage) {
			// Unknown event or channel names are non fatal: log and drop
			l.logger.Println(err.Error())
			return
		}
		if l.metrics != nil {
			l.metrics.decodeErrors.Add(ctx, 1)
		}
		l.logger.Println(err.Error())
		l.publishError(ctx, events.ErrorKindDecode, err.Error(), "")
		return
	}
	switch msg := decoded.(type) {
	case *messages.SystemStatus:
		l.handleSystemStatus(ctx, msg)
	case *messages.Heartbeat:
		l.publish(ctx, events.Heartbeat, msg)
	case *messages.Pong:
		l.handlePong(ctx, msg)
	case *messages.ErrorMessage:
		l.publishError(ctx, events.ErrorKindServer, msg.Err, "")
	case *messages.SubscriptionStatus:
		l.handleSubscriptionStatus(ctx, msg)
	case *messages.Trade:
		l.publish(ctx, events.Trade, msg)
	case *messages.Ticker:
		l.publish(ctx, events.Ticker, msg)
	case *messages.OHLC:
		l.publish(ctx, events.OHLC, msg)
	case *messages.Spread:
		l.publish(ctx, events.Spread, msg)
	case *messages.OwnTrades:
		l.publish(ctx, events.OwnTrades, msg)
	case *messages.OpenOrders:
		l.publish(ctx, events.OpenOrders, msg)
	case *messages.BookSnapshot:
		l.handleBookSnapshot(ctx, msg)
	case *messages.BookUpdate:
		l.handleBookUpdate(ctx, msg)
	default:
		l.logger.Printf("dropping unexpected message of type %T", msg)
	}
}

// Track the system status: online resets the backoff and marks the connection healthy, any
// other status degrades it.
func (l *eventLoop) handleSystemStatus(ctx context.Context, msg *messages.SystemStatus) {
	l.logger.Println("system status received:", msg.Status)
	if messages.StatusEnum(msg.Status) == messages.StatusOnline {
		l.state = stateConnectedHealthy
		l.backoff.reset()
	} else {
		l.state = stateConnectedDegraded
	}
	l.publish(ctx, events.SystemStatus, msg)
}

// Match the pong with its pending ping and publish it.
func (l *eventLoop) handlePong(ctx context.Context, msg *messages.Pong) {
	if msg.ReqId != nil {
		delete(l.pendingPings, *msg.ReqId)
	}
	l.publish(ctx, events.Pong, msg)
}

// Track subscribe/unsubscribe acknowledgements in the registry and the channel ID table.
func (l *eventLoop) handleSubscriptionStatus(ctx context.Context, msg *messages.SubscriptionStatus) {
	if msg.Subscription != nil {
		key := subscriptionKey{
			channel:  msg.Subscription.Name,
			depth:    msg.Subscription.Depth,
			interval: msg.Subscription.Interval,
		}
		switch messages.SubscriptionStatusEnum(msg.Status) {
		case messages.Subscribed:
			l.registry.markSubscribed(key, msg.Pair, msg.ChannelId)
			if msg.Pair != "" {
				l.channelIds[msg.ChannelId] = channelKey{name: msg.ChannelName, pair: msg.Pair}
			}
			if l.metrics != nil {
				l.metrics.activeSubscriptions.Add(ctx, 1)
			}
		case messages.Unsubscribed:
			l.registry.markUnsubscribed(key, msg.Pair)
			if msg.Pair != "" {
				delete(l.channelIds, msg.ChannelId)
			}
			if l.metrics != nil {
				l.metrics.activeSubscriptions.Add(ctx, -1)
			}
		case messages.Error:
			l.logger.Println("subscription rejected by the server:", msg.Err)
		}
	}
	l.publish(ctx, events.SubscriptionStatus, msg)
}

// Apply a book snapshot: the replica for the pair is rebuilt from scratch.
func (l *eventLoop) handleBookSnapshot(ctx context.Context, msg *messages.BookSnapshot) {
	depth := depthFromChannelName(msg.Name)
	book := l.books[msg.Pair]
	if book == nil || book.DepthLimit != depth {
		book = orderbook.NewBook(msg.Pair, depth)
		l.books[msg.Pair] = book
	}
	err := book.ApplySnapshot(msg.Data)
	if err != nil {
		l.logger.Println(err.Error())
		l.publishError(ctx, events.ErrorKindDecode, err.Error(), msg.Pair)
		return
	}
	l.publish(ctx, events.BookSnapshot, msg)
}

// Apply a book update to the replica of its pair. A checksum mismatch or a desynchronized book
// discards the replica and triggers a resubscription of the book channel for the pair, which
// yields a fresh snapshot.
func (l *eventLoop) handleBookUpdate(ctx context.Context, msg *messages.BookUpdate) {
	book := l.books[msg.Pair]
	if book == nil {
		// Update received without a prior snapshot: resynchronize
		l.logger.Println("book update received without a snapshot for", msg.Pair)
		l.resyncBook(ctx, msg.Name, msg.Pair)
		return
	}
	err := book.ApplyUpdate(msg.Data)
	if err != nil {
		mismatch := new(orderbook.ChecksumMismatchError)
		switch {
		case errors.As(err, &mismatch):
			if l.metrics != nil {
				l.metrics.checksumMismatches.Add(ctx, 1)
			}
			l.logger.Println(err.Error())
			l.publishError(ctx, events.ErrorKindChecksumMismatch, err.Error(), msg.Pair)
			delete(l.books, msg.Pair)
			l.resyncBook(ctx, msg.Name, msg.Pair)
		case errors.Is(err, orderbook.ErrDesynchronized):
			l.logger.Println(err.Error())
			l.publishError(ctx, events.ErrorKindChecksumMismatch, err.Error(), msg.Pair)
			delete(l.books, msg.Pair)
			l.resyncBook(ctx, msg.Name, msg.Pair)
		default:
			l.logger.Println(err.Error())
			l.publishError(ctx, events.ErrorKindDecode, err.Error(), msg.Pair)
		}
		return
	}
	l.publish(ctx, events.BookUpdate, msg)
}

// Resynchronize the book replica of one pair by unsubscribing and resubscribing its book
// channel: the server answers the new subscription with a fresh snapshot.
func (l *eventLoop) resyncBook(ctx context.Context, channelName string, pair string) {
	depth := depthFromChannelName(channelName)
	err := l.send(ctx, &messages.Unsubscribe{
		Event: string(messages.EventTypeUnsubscribe),
		ReqId: l.ngen.GenerateNonce(),
		Pairs: []string{pair},
		Subscription: messages.UnsubscribeDetails{
			Name:  string(messages.ChannelBook),
			Depth: depth,
		},
	})
	if err != nil {
		return
	}
	err = l.send(ctx, &messages.Subscribe{
		Event: string(messages.EventTypeSubscribe),
		ReqId: l.ngen.GenerateNonce(),
		Pairs: []string{pair},
		Subscription: messages.SubscriptionDetails{
			Name:  string(messages.ChannelBook),
			Depth: depth,
		},
	})
	if err != nil {
		return
	}
	// Refresh the attempt timestamp so the ack watchdog restarts from now
	entry := l.registry.find(subscriptionKey{channel: string(messages.ChannelBook), depth: depth})
	if entry != nil {
		entry.lastAttempt = time.Now()
	}
}

// Extract the depth out of a book channel name ("book-10" -> 10). Falls back to the exchange
// default depth.
func depthFromChannelName(name string) int {
	suffix, found := strings.CutPrefix(name, string(messages.ChannelBook)+"-")
	if found {
		depth, err := strconv.Atoi(suffix)
		if err == nil {
			return depth
		}
	}
	return int(messages.D10)
}

/*************************************************************************************************/
/* EVENTS                                                                                        */
/*************************************************************************************************/

// Publish an event of the provided type carrying the provided message.
func (l *eventLoop) publish(ctx context.Context, eventType events.EventTypeEnum, data interface{}) {
	l.broadcaster.Publish(events.NewEvent(ctx, eventType, data))
}

// Publish an error event.
func (l *eventLoop) publishError(ctx context.Context, kind events.ErrorKindEnum, message string, pair string) {
	l.broadcaster.Publish(events.NewEvent(ctx, events.Error, &events.ErrorData{
		Kind:    kind,
		Message: message,
		Pair:    pair,
	}))
}
