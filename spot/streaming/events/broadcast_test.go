package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* UNIT TEST SUITE                                                                               */
/*************************************************************************************************/

// Unit test suite for Broadcaster
type BroadcasterUnitTestSuite struct {
	suite.Suite
}

// Run the unit test suite
func TestBroadcasterUnitTestSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test that events are fanned out to every receiver.
func (suite *BroadcasterUnitTestSuite) TestFanOut() {
	broadcaster := NewBroadcaster(10)
	first := broadcaster.Subscribe()
	second := broadcaster.Subscribe()
	broadcaster.Publish(NewEvent(context.Background(), Heartbeat, nil))
	broadcaster.Publish(NewEvent(context.Background(), Pong, nil))
	for _, rcv := range []*Receiver{first, second} {
		evt := <-rcv.Channel()
		require.Equal(suite.T(), string(Heartbeat), evt.Type())
		evt = <-rcv.Channel()
		require.Equal(suite.T(), string(Pong), evt.Type())
	}
}

// Test that a receiver which cannot keep up observes a stream gap instead of blocking the
// publisher: events published while the buffer is full are dropped, the next delivered event
// is a stream_gap carrying the dropped count and the stream resumes at the tail.
func (suite *BroadcasterUnitTestSuite) TestSlowConsumerObservesGap() {
	capacity := 5
	broadcaster := NewBroadcaster(capacity)
	slow := broadcaster.Subscribe()
	fast := broadcaster.Subscribe()
	// Publish more than twice the capacity without consuming: the overflow must be dropped
	published := 2*capacity + 3
	for i := 0; i < published; i++ {
		broadcaster.Publish(NewEvent(context.Background(), Heartbeat, nil))
	}
	// Drain the fast consumer concurrently-free: its buffer also overflowed, which is fine for
	// this test - both receivers behave the same
	_ = fast
	// The slow consumer gets the first <capacity> events...
	for i := 0; i < capacity; i++ {
		evt := <-slow.Channel()
		require.Equal(suite.T(), string(Heartbeat), evt.Type())
	}
	// ...then, once it drains, the next published event is preceded by the gap
	broadcaster.Publish(NewEvent(context.Background(), Pong, nil))
	evt := <-slow.Channel()
	require.Equal(suite.T(), string(StreamGap), evt.Type())
	gap := new(GapData)
	require.NoError(suite.T(), evt.DataAs(gap))
	require.Equal(suite.T(), int64(published-capacity), gap.Dropped)
	evt = <-slow.Channel()
	require.Equal(suite.T(), string(Pong), evt.Type())
}

// Test that closing the broadcaster closes every receiver channel after buffered events have
// been drained.
func (suite *BroadcasterUnitTestSuite) TestClose() {
	broadcaster := NewBroadcaster(10)
	rcv := broadcaster.Subscribe()
	broadcaster.Publish(NewEvent(context.Background(), Heartbeat, nil))
	broadcaster.Close()
	evt, ok := <-rcv.Channel()
	require.True(suite.T(), ok)
	require.Equal(suite.T(), string(Heartbeat), evt.Type())
	_, ok = <-rcv.Channel()
	require.False(suite.T(), ok)
	// Publishing and closing again are no-ops
	broadcaster.Publish(NewEvent(context.Background(), Pong, nil))
	broadcaster.Close()
	require.Nil(suite.T(), broadcaster.Subscribe())
}

// Test that closing a receiver detaches it without disturbing the other receivers.
func (suite *BroadcasterUnitTestSuite) TestReceiverClose() {
	broadcaster := NewBroadcaster(10)
	first := broadcaster.Subscribe()
	second := broadcaster.Subscribe()
	first.Close()
	_, ok := <-first.Channel()
	require.False(suite.T(), ok)
	broadcaster.Publish(NewEvent(context.Background(), Heartbeat, nil))
	evt := <-second.Channel()
	require.Equal(suite.T(), string(Heartbeat), evt.Type())
}
