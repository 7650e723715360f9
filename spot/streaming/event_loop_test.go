package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/gbdevw/purple-gomarket/spot/streaming/events"
	"github.com/gbdevw/purple-gomarket/spot/streaming/messages"
	"github.com/gbdevw/purple-gomarket/spot/streaming/orderbook"
)

/*************************************************************************************************/
/* FAKE TRANSPORT                                                                                */
/*************************************************************************************************/

// Fake transport used to drive the event loop in tests. Frames written by the loop are recorded
// on the writes channel; frames for the loop are injected on the frames channel; read failures
// are injected on the fail channel.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	dials     int
	frames    chan []byte
	fail      chan error
	writes    chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 64),
		fail:   make(chan error, 1),
		writes: make(chan []byte, 64),
	}
}

func (t *fakeTransport) Dial(ctx context.Context, target url.URL) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials = t.dials + 1
	t.connected = true
	return nil
}

func (t *fakeTransport) Read(ctx context.Context) (MessageType, []byte, error) {
	select {
	case frame := <-t.frames:
		return Text, frame, nil
	case err := <-t.fail:
		return 0, nil, err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(ctx context.Context, msgType MessageType, msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fmt.Errorf("transport is not connected")
	}
	t.writes <- msg
	return nil
}

func (t *fakeTransport) Close(ctx context.Context, code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

// Serve a frame to the loop.
func (t *fakeTransport) serve(payload string) {
	t.frames <- []byte(payload)
}

// Fake token provider which returns a fresh token on each call.
type fakeTokenProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *fakeTokenProvider) GetWebsocketToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = p.calls + 1
	return fmt.Sprintf("TKN-%d", p.calls), nil
}

func (p *fakeTokenProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

/*************************************************************************************************/
/* TEST HELPERS                                                                                  */
/*************************************************************************************************/

// Read events from the receiver until one with the expected type shows up. Other events are
// skipped: the loop also publishes statuses and heartbeats the scenarios do not care about.
func waitEvent(t *testing.T, rcv *events.Receiver, expected events.EventTypeEnum, timeout time.Duration) event.Event {
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-rcv.Channel():
			if !ok {
				t.Fatalf("receiver closed while waiting for a %s event", expected)
			}
			if evt.Type() == string(expected) {
				return evt
			}
		case <-deadline:
			t.Fatalf("no %s event received within %s", expected, timeout)
		}
	}
}

// Read the next frame written by the loop.
func nextWrite(t *testing.T, transport *fakeTransport, timeout time.Duration) []byte {
	select {
	case payload := <-transport.writes:
		return payload
	case <-time.After(timeout):
		t.Fatalf("no frame written within %s", timeout)
		return nil
	}
}

// Build snapshot data with count ask levels from 30001.1 upward and count bid levels from
// 30000.9 downward, 0.1 apart, volume 1.0 each.
func snapshotData(count int) messages.BookSnapshotData {
	data := messages.BookSnapshotData{}
	for i := 0; i < count; i++ {
		data.Asks = append(data.Asks, bookEntry(fmt.Sprintf("%.1f", 30001.1+float64(i)*0.1), "1.0"))
		data.Bids = append(data.Bids, bookEntry(fmt.Sprintf("%.1f", 30000.9-float64(i)*0.1), "1.0"))
	}
	return data
}

func bookEntry(price, volume string) messages.BookEntry {
	return messages.BookEntry{
		Price:     json.Number(price),
		Volume:    json.Number(volume),
		Timestamp: json.Number("1534614248.123678"),
	}
}

// Marshal a message into the frame the server would send.
func frame(t *testing.T, msg interface{}) string {
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(payload)
}

// Test configuration with fast timers.
func testConfiguration() *ClientConfiguration {
	cfg := NewDefaultClientConfiguration()
	cfg.ReconnectBackoff.Base = 10 * time.Millisecond
	cfg.ReconnectBackoff.Cap = 50 * time.Millisecond
	cfg.ReconnectBackoff.Jitter = 0
	return cfg
}

// Build a public client over a fake transport, connect it and wait until the server status has
// been processed so subsequent commands run against an established connection.
func startPublicClient(t *testing.T, cfg *ClientConfiguration) (*Client, *fakeTransport, *events.Receiver) {
	transport := newFakeTransport()
	client, err := NewKrakenSpotPublicStreamingClient(transport, cfg, nil, nil)
	require.NoError(t, err)
	rcv := client.SubscribeEvents()
	require.NoError(t, client.Connect(context.Background()))
	transport.serve(`{"event":"systemStatus","status":"online","version":"1.0.0"}`)
	waitEvent(t, rcv, events.SystemStatus, time.Second)
	return client, transport, rcv
}

/*************************************************************************************************/
/* UNIT TEST SUITE                                                                               */
/*************************************************************************************************/

// Unit test suite for the client and its event loop, driven through a fake transport.
type ClientUnitTestSuite struct {
	suite.Suite
}

// Run the unit test suite
func TestClientUnitTestSuite(t *testing.T) {
	suite.Run(t, new(ClientUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Scenario: subscribe to the book channel, receive a snapshot and a checksummed delta.
//
// The loop must send the subscribe frame, apply the snapshot and the delta to the local book
// replica, verify the checksum and publish one book_snapshot event followed by one book_update
// event.
func (suite *ClientUnitTestSuite) TestBookSnapshotAndChecksummedDelta() {
	client, transport, rcv := startPublicClient(suite.T(), testConfiguration())
	defer client.Shutdown(context.Background())
	// Subscribe to book-10
	require.NoError(suite.T(), client.SubscribeBook(context.Background(), []string{"XBT/USD"}, messages.D10))
	// Check the subscribe frame
	sub := new(messages.Subscribe)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), sub))
	require.Equal(suite.T(), string(messages.EventTypeSubscribe), sub.Event)
	require.Equal(suite.T(), []string{"XBT/USD"}, sub.Pairs)
	require.Equal(suite.T(), string(messages.ChannelBook), sub.Subscription.Name)
	require.Equal(suite.T(), int(messages.D10), sub.Subscription.Depth)
	// Acknowledge the subscription
	transport.serve(`{"event":"subscriptionStatus","channelID":100,"channelName":"book-10","pair":"XBT/USD","status":"subscribed","subscription":{"depth":10,"name":"book"}}`)
	waitEvent(suite.T(), rcv, events.SubscriptionStatus, time.Second)
	// Serve the snapshot
	transport.serve(frame(suite.T(), messages.BookSnapshot{
		ChannelId: 100,
		Name:      "book-10",
		Pair:      "XBT/USD",
		Data:      snapshotData(10),
	}))
	evt := waitEvent(suite.T(), rcv, events.BookSnapshot, time.Second)
	snapshot := new(messages.BookSnapshot)
	require.NoError(suite.T(), evt.DataAs(snapshot))
	require.Equal(suite.T(), "XBT/USD", snapshot.Pair)
	require.Len(suite.T(), snapshot.Data.Asks, 10)
	// Build the delta: remove the best ask, republish a replacement at the tail of the side
	update := messages.BookUpdate{
		ChannelId: 100,
		Name:      "book-10",
		Pair:      "XBT/USD",
		Data: messages.BookUpdateData{
			Asks: []messages.BookEntry{
				bookEntry("30001.1", "0.00000000"),
				bookEntry("30002.1", "1.0"),
			},
		},
	}
	// Compute the expected checksum on a reference book holding the post-delta state
	reference := orderbook.NewBook("XBT/USD", 10)
	require.NoError(suite.T(), reference.ApplySnapshot(snapshotData(10)))
	require.NoError(suite.T(), reference.ApplyUpdate(update.Data))
	update.Data.Checksum = strconv.FormatUint(uint64(reference.Checksum()), 10)
	transport.serve(frame(suite.T(), update))
	// The delta must be applied and published: the level at 30001.1 is gone and the next
	// higher ask became the best ask
	evt = waitEvent(suite.T(), rcv, events.BookUpdate, time.Second)
	published := new(messages.BookUpdate)
	require.NoError(suite.T(), evt.DataAs(published))
	require.Equal(suite.T(), update.Data.Checksum, published.Data.Checksum)
}

// Scenario: a delta carrying a wrong checksum triggers a resynchronization.
//
// The loop must publish a checksum_mismatch error event, discard the local replica and send an
// unsubscribe+subscribe pair for the book channel of the pair. The next snapshot restores the
// replica.
func (suite *ClientUnitTestSuite) TestChecksumMismatchTriggersResync() {
	client, transport, rcv := startPublicClient(suite.T(), testConfiguration())
	defer client.Shutdown(context.Background())
	require.NoError(suite.T(), client.SubscribeBook(context.Background(), []string{"XBT/USD"}, messages.D10))
	nextWrite(suite.T(), transport, time.Second) // subscribe frame
	transport.serve(`{"event":"subscriptionStatus","channelID":100,"channelName":"book-10","pair":"XBT/USD","status":"subscribed","subscription":{"depth":10,"name":"book"}}`)
	transport.serve(frame(suite.T(), messages.BookSnapshot{
		ChannelId: 100,
		Name:      "book-10",
		Pair:      "XBT/USD",
		Data:      snapshotData(10),
	}))
	waitEvent(suite.T(), rcv, events.BookSnapshot, time.Second)
	// Serve a delta with a deliberately wrong checksum
	transport.serve(frame(suite.T(), messages.BookUpdate{
		ChannelId: 100,
		Name:      "book-10",
		Pair:      "XBT/USD",
		Data: messages.BookUpdateData{
			Asks:     []messages.BookEntry{bookEntry("30001.3", "9.0")},
			Checksum: "0",
		},
	}))
	// A checksum mismatch error must be published
	evt := waitEvent(suite.T(), rcv, events.Error, time.Second)
	errData := new(events.ErrorData)
	require.NoError(suite.T(), evt.DataAs(errData))
	require.Equal(suite.T(), events.ErrorKindChecksumMismatch, errData.Kind)
	require.Equal(suite.T(), "XBT/USD", errData.Pair)
	// An unsubscribe+subscribe pair must be sent for the book channel of the pair
	unsub := new(messages.Unsubscribe)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), unsub))
	require.Equal(suite.T(), string(messages.EventTypeUnsubscribe), unsub.Event)
	require.Equal(suite.T(), []string{"XBT/USD"}, unsub.Pairs)
	require.Equal(suite.T(), string(messages.ChannelBook), unsub.Subscription.Name)
	resub := new(messages.Subscribe)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), resub))
	require.Equal(suite.T(), string(messages.EventTypeSubscribe), resub.Event)
	require.Equal(suite.T(), []string{"XBT/USD"}, resub.Pairs)
	require.Equal(suite.T(), int(messages.D10), resub.Subscription.Depth)
	// The next snapshot restores the replica
	transport.serve(frame(suite.T(), messages.BookSnapshot{
		ChannelId: 100,
		Name:      "book-10",
		Pair:      "XBT/USD",
		Data:      snapshotData(10),
	}))
	waitEvent(suite.T(), rcv, events.BookSnapshot, time.Second)
}

// Scenario: the connection is lost and the loop reconnects with backoff.
//
// The loop must publish a transport error event, reconnect and re-send the subscribe frames in
// registry insertion order.
func (suite *ClientUnitTestSuite) TestReconnectRestoresSubscriptions() {
	client, transport, rcv := startPublicClient(suite.T(), testConfiguration())
	defer client.Shutdown(context.Background())
	// Subscribe to trade for two pairs and to book-100 for one pair
	require.NoError(suite.T(), client.SubscribeTrade(context.Background(), []string{"XBT/USD", "ETH/USD"}))
	nextWrite(suite.T(), transport, time.Second)
	require.NoError(suite.T(), client.SubscribeBook(context.Background(), []string{"XBT/USD"}, messages.D100))
	nextWrite(suite.T(), transport, time.Second)
	// Kill the connection
	transport.fail <- fmt.Errorf("connection reset by peer")
	evt := waitEvent(suite.T(), rcv, events.Error, time.Second)
	errData := new(events.ErrorData)
	require.NoError(suite.T(), evt.DataAs(errData))
	require.Equal(suite.T(), events.ErrorKindTransport, errData.Kind)
	// The loop must reconnect and restore the subscriptions in insertion order
	first := new(messages.Subscribe)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), first))
	require.Equal(suite.T(), string(messages.ChannelTrade), first.Subscription.Name)
	require.Equal(suite.T(), []string{"XBT/USD", "ETH/USD"}, first.Pairs)
	second := new(messages.Subscribe)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), second))
	require.Equal(suite.T(), string(messages.ChannelBook), second.Subscription.Name)
	require.Equal(suite.T(), int(messages.D100), second.Subscription.Depth)
	require.GreaterOrEqual(suite.T(), transport.dialCount(), 2)
	// The server coming back online resets the backoff
	transport.serve(`{"event":"systemStatus","status":"online","version":"1.0.0"}`)
	waitEvent(suite.T(), rcv, events.SystemStatus, time.Second)
}

// Scenario: private subscription with an explicit token, then reconnection with a fresh token.
//
// The first subscribe frame must carry the caller provided token. After a reconnection, the
// loop must consult the token provider for a fresh token before re-issuing the subscribe.
func (suite *ClientUnitTestSuite) TestPrivateTokenFlow() {
	transport := newFakeTransport()
	tokens := new(fakeTokenProvider)
	client, err := NewKrakenSpotPrivateStreamingClient(transport, tokens, testConfiguration(), nil, nil)
	require.NoError(suite.T(), err)
	rcv := client.SubscribeEvents()
	require.NoError(suite.T(), client.Connect(context.Background()))
	defer client.Shutdown(context.Background())
	transport.serve(`{"event":"systemStatus","status":"online","version":"1.0.0"}`)
	waitEvent(suite.T(), rcv, events.SystemStatus, time.Second)
	// Subscribe with an explicit token
	require.NoError(suite.T(), client.SubscribeOwnTrades(context.Background(), "TKN", nil))
	sub := new(messages.Subscribe)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), sub))
	require.Equal(suite.T(), string(messages.ChannelOwnTrades), sub.Subscription.Name)
	require.Equal(suite.T(), "TKN", sub.Subscription.Token)
	require.Empty(suite.T(), sub.Pairs)
	require.Equal(suite.T(), 0, tokens.callCount())
	// Kill the connection: the loop must fetch a fresh token before resubscribing
	transport.fail <- fmt.Errorf("connection reset by peer")
	resub := new(messages.Subscribe)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), resub))
	require.Equal(suite.T(), string(messages.ChannelOwnTrades), resub.Subscription.Name)
	require.Equal(suite.T(), "TKN-1", resub.Subscription.Token)
	require.Equal(suite.T(), 1, tokens.callCount())
}

// Scenario: no traffic from the server for three heartbeat intervals.
//
// The loop must publish an ack_timeout error event and reconnect.
func (suite *ClientUnitTestSuite) TestHeartbeatStallTriggersReconnect() {
	cfg := testConfiguration()
	cfg.HeartbeatInterval = 40 * time.Millisecond
	client, transport, rcv := startPublicClient(suite.T(), cfg)
	defer client.Shutdown(context.Background())
	// An active subscription is required for the server to emit heartbeats
	require.NoError(suite.T(), client.SubscribeTrade(context.Background(), []string{"XBT/USD"}))
	nextWrite(suite.T(), transport, time.Second)
	// Let the connection stall
	evt := waitEvent(suite.T(), rcv, events.Error, time.Second)
	errData := new(events.ErrorData)
	require.NoError(suite.T(), evt.DataAs(errData))
	require.Equal(suite.T(), events.ErrorKindAckTimeout, errData.Kind)
	// The loop must have reconnected
	nextWrite(suite.T(), transport, time.Second) // resubscribe frame
	require.GreaterOrEqual(suite.T(), transport.dialCount(), 2)
}

// Scenario: application level ping and pong.
func (suite *ClientUnitTestSuite) TestPingPong() {
	client, transport, rcv := startPublicClient(suite.T(), testConfiguration())
	defer client.Shutdown(context.Background())
	require.NoError(suite.T(), client.Ping(context.Background()))
	ping := new(messages.Ping)
	require.NoError(suite.T(), json.Unmarshal(nextWrite(suite.T(), transport, time.Second), ping))
	require.Equal(suite.T(), string(messages.EventTypePing), ping.Event)
	require.NotZero(suite.T(), ping.ReqId)
	transport.serve(fmt.Sprintf(`{"event":"pong","reqid":%d}`, ping.ReqId))
	evt := waitEvent(suite.T(), rcv, events.Pong, time.Second)
	pong := new(messages.Pong)
	require.NoError(suite.T(), evt.DataAs(pong))
	require.Equal(suite.T(), ping.ReqId, *pong.ReqId)
}

// Scenario: trade passthrough - a trade frame is published as a trade event preserving the
// exchange's order.
func (suite *ClientUnitTestSuite) TestTradePassthrough() {
	client, transport, rcv := startPublicClient(suite.T(), testConfiguration())
	defer client.Shutdown(context.Background())
	require.NoError(suite.T(), client.SubscribeTrade(context.Background(), []string{"XBT/USD"}))
	nextWrite(suite.T(), transport, time.Second)
	transport.serve(`[0,[["5541.20000","0.15850568","1534614057.321597","s","l",""]],"trade","XBT/USD"]`)
	evt := waitEvent(suite.T(), rcv, events.Trade, time.Second)
	trade := new(messages.Trade)
	require.NoError(suite.T(), evt.DataAs(trade))
	require.Equal(suite.T(), "XBT/USD", trade.Pair)
	require.Len(suite.T(), trade.Data, 1)
	require.Equal(suite.T(), "5541.20000", trade.Data[0].Price.String())
}

// Test the facade lifecycle errors and the mode checks.
func (suite *ClientUnitTestSuite) TestFacadeLifecycle() {
	transport := newFakeTransport()
	client, err := NewKrakenSpotPublicStreamingClient(transport, testConfiguration(), nil, nil)
	require.NoError(suite.T(), err)
	// Commands before Connect are rejected
	require.ErrorIs(suite.T(), client.SubscribeTrade(context.Background(), []string{"XBT/USD"}), ErrNotConnected)
	require.ErrorIs(suite.T(), client.Shutdown(context.Background()), ErrNotConnected)
	// Private channels are rejected on a public client
	err = client.SubscribeOwnTrades(context.Background(), "TKN", nil)
	require.Error(suite.T(), err)
	require.NotErrorIs(suite.T(), err, ErrNotConnected)
	// Connect twice fails
	require.NoError(suite.T(), client.Connect(context.Background()))
	require.ErrorIs(suite.T(), client.Connect(context.Background()), ErrAlreadyConnected)
	// Shutdown closes the receivers after a shutdown error event
	rcv := client.SubscribeEvents()
	require.NoError(suite.T(), client.Shutdown(context.Background()))
	evt := waitEvent(suite.T(), rcv, events.Error, time.Second)
	errData := new(events.ErrorData)
	require.NoError(suite.T(), evt.DataAs(errData))
	require.Equal(suite.T(), events.ErrorKindShutdown, errData.Kind)
	_, ok := <-rcv.Channel()
	require.False(suite.T(), ok)
}
