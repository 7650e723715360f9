package streaming

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/gbdevw/purple-gomarket/spot/streaming/tracing"
)

// Metric instruments used by the streaming client.
type clientMetrics struct {
	// Number of frames received from the server
	framesReceived metric.Int64Counter
	// Number of frames which could not be decoded
	decodeErrors metric.Int64Counter
	// Number of book checksum mismatches
	checksumMismatches metric.Int64Counter
	// Number of reconnections to the server
	reconnects metric.Int64Counter
	// Number of messages sent to the server
	messagesSent metric.Int64Counter
	// Number of active subscriptions
	activeSubscriptions metric.Int64UpDownCounter
}

// Build the metric instruments on the provided meter.
func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	m := new(clientMetrics)
	var err error
	m.framesReceived, err = meter.Int64Counter(
		tracing.TracesNamespace+".frames_received",
		metric.WithDescription("Number of frames received from the websocket server"))
	if err != nil {
		return nil, err
	}
	m.decodeErrors, err = meter.Int64Counter(
		tracing.TracesNamespace+".decode_errors",
		metric.WithDescription("Number of frames which could not be decoded"))
	if err != nil {
		return nil, err
	}
	m.checksumMismatches, err = meter.Int64Counter(
		tracing.TracesNamespace+".checksum_mismatches",
		metric.WithDescription("Number of order book checksum mismatches"))
	if err != nil {
		return nil, err
	}
	m.reconnects, err = meter.Int64Counter(
		tracing.TracesNamespace+".reconnects",
		metric.WithDescription("Number of reconnections to the websocket server"))
	if err != nil {
		return nil, err
	}
	m.messagesSent, err = meter.Int64Counter(
		tracing.TracesNamespace+".messages_sent",
		metric.WithDescription("Number of messages sent to the websocket server"))
	if err != nil {
		return nil, err
	}
	m.activeSubscriptions, err = meter.Int64UpDownCounter(
		tracing.TracesNamespace+".active_subscriptions",
		metric.WithDescription("Number of acknowledged subscriptions"))
	if err != nil {
		return nil, err
	}
	return m, nil
}
