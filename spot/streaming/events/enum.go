// This package defines the events published to consumers of the streaming client and the
// broadcast primitive used to fan them out.
package events

// Enum for the types of events published by the streaming client
type EventTypeEnum string

const (
	// Event type used when a new system status is received from the server.
	SystemStatus EventTypeEnum = "system_status"
	// Event type used when a new heartbeat is received from the server.
	Heartbeat EventTypeEnum = "heartbeat"
	// Event type used when a pong is received from the server.
	Pong EventTypeEnum = "pong"
	// Event type used when the server acknowledges a subscribe or an unsubscribe.
	SubscriptionStatus EventTypeEnum = "subscription_status"
	// Event type used when a new message is received on the trade channel.
	Trade EventTypeEnum = "trade"
	// Event type used when a new message is received on the ticker channel.
	Ticker EventTypeEnum = "ticker"
	// Event type used when a new message is received on a ohlc channel.
	OHLC EventTypeEnum = "ohlc"
	// Event type used when a new message is received on the spread channel.
	Spread EventTypeEnum = "spread"
	// Event type used when a book snapshot has been applied to the local book replica.
	BookSnapshot EventTypeEnum = "book_snapshot"
	// Event type used when a book update has been applied to the local book replica.
	BookUpdate EventTypeEnum = "book_update"
	// Event type used when a new message is received on the ownTrades channel.
	OwnTrades EventTypeEnum = "own_trades"
	// Event type used when a new message is received on the openOrders channel.
	OpenOrders EventTypeEnum = "open_orders"
	// Event type used to surface client errors (transport failures, decode failures, checksum
	// mismatches, timeouts, ...). Cf. ErrorKindEnum for the error kinds.
	Error EventTypeEnum = "error"
	// Event type used to warn a consumer that events have been dropped because its receiver was
	// full. The event data carries the number of dropped events.
	StreamGap EventTypeEnum = "stream_gap"
)

// Enum for the kinds of errors surfaced by error events
type ErrorKindEnum string

const (
	// The connection with the server failed or was closed. The client reconnects on its own.
	ErrorKindTransport ErrorKindEnum = "transport"
	// A frame from the server could not be decoded. The frame is dropped, the connection stays up.
	ErrorKindDecode ErrorKindEnum = "decode"
	// The checksum of a local book replica did not match the checksum provided by the server.
	// The client resubscribes the book channel for the pair on its own.
	ErrorKindChecksumMismatch ErrorKindEnum = "checksum_mismatch"
	// The server did not acknowledge a request in time or stopped sending traffic. Counted as a
	// disconnect: the client reconnects on its own.
	ErrorKindAckTimeout ErrorKindEnum = "ack_timeout"
	// A private subscription failed because of the authentication token.
	ErrorKindAuth ErrorKindEnum = "auth"
	// The server sent a general error message.
	ErrorKindServer ErrorKindEnum = "server"
	// The client is shutting down. Published once, then the receivers are closed.
	ErrorKindShutdown ErrorKindEnum = "shutdown"
)
