package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* UNIT TEST SUITE                                                                               */
/*************************************************************************************************/

// Unit test suite for the control frames (systemStatus, subscriptionStatus, heartbeat, pong,
// error)
type ControlFramesUnitTestSuite struct {
	suite.Suite
}

// Run the unit test suite
func TestControlFramesUnitTestSuite(t *testing.T) {
	suite.Run(t, new(ControlFramesUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test unmarshalling an example systemStatus message from documentation.
func (suite *ControlFramesUnitTestSuite) TestSystemStatusUnmarshalJson() {
	payload := `{
		"connectionID": 8628615390848610000,
		"event": "systemStatus",
		"status": "online",
		"version": "1.0.0"
	}`
	target := new(SystemStatus)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), string(EventTypeSystemStatus), target.Event)
	require.Equal(suite.T(), string(StatusOnline), target.Status)
	require.Equal(suite.T(), "1.0.0", target.Version)
}

// Test marshalling an example subscriptionStatus message from documentation to the same
// payload.
func (suite *ControlFramesUnitTestSuite) TestSubscriptionStatusMarshalJson() {
	payload := `{
		"channelID": 10001,
		"channelName": "ohlc-5",
		"event": "subscriptionStatus",
		"pair": "XBT/EUR",
		"status": "subscribed",
		"subscription": {
		  "interval": 5,
		  "name": "ohlc"
		}
	}`
	// Remove whitespaces
	payload = matchesWhitespacesRegex.ReplaceAllString(payload, "")
	target := new(SubscriptionStatus)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	actual, err := json.Marshal(target)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), payload, string(actual))
}

// Test unmarshalling a subscriptionStatus error message from documentation.
func (suite *ControlFramesUnitTestSuite) TestSubscriptionStatusErrorUnmarshalJson() {
	payload := `{
		"errorMessage": "Subscription depth not supported",
		"event": "subscriptionStatus",
		"pair": "XBT/USD",
		"status": "error",
		"subscription": {
		  "depth": 42,
		  "name": "book"
		}
	}`
	target := new(SubscriptionStatus)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), string(Error), target.Status)
	require.Equal(suite.T(), "Subscription depth not supported", target.Err)
	require.Equal(suite.T(), 42, target.Subscription.Depth)
}

// Test unmarshalling heartbeat and pong messages.
func (suite *ControlFramesUnitTestSuite) TestHeartbeatAndPongUnmarshalJson() {
	heartbeat := new(Heartbeat)
	err := json.Unmarshal([]byte(`{"event":"heartbeat"}`), heartbeat)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), string(EventTypeHeartbeat), heartbeat.Event)
	pong := new(Pong)
	err = json.Unmarshal([]byte(`{"event":"pong","reqid":42}`), pong)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), pong.ReqId)
	require.Equal(suite.T(), int64(42), *pong.ReqId)
}

// Test marshalling a ping request to the expected payload.
func (suite *ControlFramesUnitTestSuite) TestPingMarshalJson() {
	expected := `{"event":"ping","reqid":42}`
	actual, err := json.Marshal(&Ping{Event: string(EventTypePing), ReqId: 42})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), expected, string(actual))
}

// Test unmarshalling a general error message from documentation.
func (suite *ControlFramesUnitTestSuite) TestErrorMessageUnmarshalJson() {
	payload := `{
		"errorMessage": "Malformed request",
		"event": "error"
	}`
	target := new(ErrorMessage)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "Malformed request", target.Err)
}
