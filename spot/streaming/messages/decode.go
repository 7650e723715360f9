package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error returned by Decode when a frame uses an event name or a channel name the client does not
// know about. Such frames are not errors at the connection level: callers are expected to log and
// drop them.
var ErrUnknownMessage = errors.New("unknown message type")

// Probe used to extract the event name out of object form frames.
type eventProbe struct {
	Event string `json:"event"`
}

// # Description
//
// Decode a single text frame from the websocket server into its typed message.
//
// The server uses two top level shapes:
//   - Object form for control frames: the frame is routed on its "event" name.
//   - Array form for data frames: the frame is routed on its channel name (the second to last
//     item of the array).
//
// Book frames are routed to BookSnapshot or BookUpdate depending on the key names used by their
// payload ("as"/"bs" for snapshots, "a"/"b" for updates).
//
// # Return
//
// One of *SystemStatus, *SubscriptionStatus, *Heartbeat, *Pong, *ErrorMessage, *Trade, *Ticker,
// *OHLC, *Spread, *BookSnapshot, *BookUpdate, *OwnTrades or *OpenOrders.
//
// An error wrapping ErrUnknownMessage is returned for frames with an unknown event or channel
// name. Other errors indicate a malformed frame.
func Decode(raw []byte) (interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("cannot decode an empty frame")
	}
	// Route on the top level shape
	switch trimmed[0] {
	case '{':
		return decodeObjectFrame(trimmed)
	case '[':
		return decodeArrayFrame(trimmed)
	default:
		return nil, fmt.Errorf("cannot decode frame: expected a JSON object or array. Got %s", string(raw))
	}
}

// Decode an object form (control) frame by its event name.
func decodeObjectFrame(raw []byte) (interface{}, error) {
	probe := eventProbe{}
	err := json.Unmarshal(raw, &probe)
	if err != nil {
		return nil, fmt.Errorf("failed to extract event name from frame '%s': %w", string(raw), err)
	}
	var target interface{}
	switch EventTypeEnum(probe.Event) {
	case EventTypeSystemStatus:
		target = new(SystemStatus)
	case EventTypeSubscriptionStatus:
		target = new(SubscriptionStatus)
	case EventTypeHeartbeat:
		target = new(Heartbeat)
	case EventTypePong:
		target = new(Pong)
	case EventTypeError:
		target = new(ErrorMessage)
	default:
		return nil, fmt.Errorf("%w: event '%s' in frame '%s'", ErrUnknownMessage, probe.Event, string(raw))
	}
	err = json.Unmarshal(raw, target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame '%s' as %s: %w", string(raw), probe.Event, err)
	}
	return target, nil
}

// Decode an array form (data) frame by its channel name.
func decodeArrayFrame(raw []byte) (interface{}, error) {
	items := []json.RawMessage{}
	err := json.Unmarshal(raw, &items)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame '%s' as an array: %w", string(raw), err)
	}
	if len(items) < 3 {
		return nil, fmt.Errorf("cannot decode frame '%s': expected at least 3 items", string(raw))
	}
	// For public data frames, the channel name is the second to last item (the pair is last).
	// For private data frames, the channel name is also the second to last item (the sequence
	// object is last).
	name := ""
	err = json.Unmarshal(items[len(items)-2], &name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract channel name from frame '%s': %w", string(raw), err)
	}
	var target interface{}
	switch {
	case name == string(ChannelTrade):
		target = new(Trade)
	case name == string(ChannelTicker):
		target = new(Ticker)
	case name == string(ChannelSpread):
		target = new(Spread)
	case name == string(ChannelOwnTrades):
		target = new(OwnTrades)
	case name == string(ChannelOpenOrders):
		target = new(OpenOrders)
	case strings.HasPrefix(name, string(ChannelOHLC)):
		target = new(OHLC)
	case strings.HasPrefix(name, string(ChannelBook)):
		if IsBookSnapshot(raw) {
			target = new(BookSnapshot)
		} else {
			target = new(BookUpdate)
		}
	default:
		return nil, fmt.Errorf("%w: channel '%s' in frame '%s'", ErrUnknownMessage, name, string(raw))
	}
	err = json.Unmarshal(raw, target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame '%s' as %s: %w", string(raw), name, err)
	}
	return target, nil
}
