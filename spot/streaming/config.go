package streaming

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	// URL for Kraken spot websocket API - public endpoints - Production
	KrakenSpotWebsocketPublicProductionURL = "wss://ws.kraken.com"
	// URL for Kraken spot websocket API - public endpoints - Beta
	KrakenSpotWebsocketPublicBetaURL = "wss://beta-ws.kraken.com"
	// URL for Kraken spot websocket API - private endpoints - Production
	KrakenSpotWebsocketPrivateProductionURL = "wss://ws-auth.kraken.com"
	// URL for Kraken spot websocket API - private endpoints - Beta
	KrakenSpotWebsocketPrivateBetaURL = "wss://beta-ws-auth.kraken.com"
)

// Backoff settings used when reconnecting to the server.
type BackoffConfiguration struct {
	// First delay before a reconnect attempt. Doubles after each failed attempt.
	Base time.Duration `mapstructure:"base"`
	// Upper bound for the delay between reconnect attempts.
	Cap time.Duration `mapstructure:"cap"`
	// Random jitter applied to each delay as a fraction of the delay (0.2 = +/- 20%).
	Jitter float64 `mapstructure:"jitter"`
}

// Configuration for the streaming client.
type ClientConfiguration struct {
	// URL of the public environment.
	//
	// An empty string defaults to the production public URL.
	PublicURL string `mapstructure:"public_url"`
	// URL of the private environment, used when private channels are subscribed.
	//
	// An empty string defaults to the production private URL.
	PrivateURL string `mapstructure:"private_url"`
	// Interval at which the server emits heartbeats when a subscription is active. The
	// connection is considered stalled when no traffic is seen for three times this interval.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// Time granted to connection establishment, including the initial systemStatus message.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// Time granted to the server to acknowledge a request (subscribe ack, pong).
	AckTimeout time.Duration `mapstructure:"ack_timeout"`
	// Reconnect backoff settings.
	ReconnectBackoff BackoffConfiguration `mapstructure:"reconnect_backoff"`
	// Capacity of each consumer's event buffer.
	EventBufferCapacity int `mapstructure:"event_buffer"`
	// Capacity of the command queue between the facade and the event loop.
	CommandBufferCapacity int `mapstructure:"command_buffer"`
	// Maximum rate of outbound messages, per second.
	OutboundMessagesPerSecond float64 `mapstructure:"outbound_rate"`
	// Maximum burst of outbound messages.
	OutboundBurst int `mapstructure:"outbound_burst"`
}

// A factory which creates a new ClientConfiguration with all its default values set.
func NewDefaultClientConfiguration() *ClientConfiguration {
	return &ClientConfiguration{
		PublicURL:         KrakenSpotWebsocketPublicProductionURL,
		PrivateURL:        KrakenSpotWebsocketPrivateProductionURL,
		HeartbeatInterval: 5 * time.Second,
		ConnectTimeout:    10 * time.Second,
		AckTimeout:        10 * time.Second,
		ReconnectBackoff: BackoffConfiguration{
			Base:   1 * time.Second,
			Cap:    60 * time.Second,
			Jitter: 0.2,
		},
		EventBufferCapacity:       100,
		CommandBufferCapacity:     32,
		OutboundMessagesPerSecond: 50,
		OutboundBurst:             20,
	}
}

// # Description
//
// Load a ClientConfiguration from the provided viper instance. Options not present in the
// configuration keep their default value.
//
// # Inputs
//
//   - v: Viper instance with its sources already configured (file, environment, ...).
//
// # Return
//
// The loaded configuration or an error when the configuration cannot be unmarshalled or does
// not validate.
func NewClientConfigurationFromViper(v *viper.Viper) (*ClientConfiguration, error) {
	cfg := NewDefaultClientConfiguration()
	err := v.Unmarshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load streaming client configuration: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate the configuration. Zero values are replaced by their defaults; negative or
// inconsistent values are rejected.
func (cfg *ClientConfiguration) Validate() error {
	defaults := NewDefaultClientConfiguration()
	if cfg.PublicURL == "" {
		cfg.PublicURL = defaults.PublicURL
	}
	if cfg.PrivateURL == "" {
		cfg.PrivateURL = defaults.PrivateURL
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = defaults.AckTimeout
	}
	if cfg.ReconnectBackoff.Base == 0 {
		cfg.ReconnectBackoff.Base = defaults.ReconnectBackoff.Base
	}
	if cfg.ReconnectBackoff.Cap == 0 {
		cfg.ReconnectBackoff.Cap = defaults.ReconnectBackoff.Cap
	}
	if cfg.EventBufferCapacity == 0 {
		cfg.EventBufferCapacity = defaults.EventBufferCapacity
	}
	if cfg.CommandBufferCapacity == 0 {
		cfg.CommandBufferCapacity = defaults.CommandBufferCapacity
	}
	if cfg.OutboundMessagesPerSecond == 0 {
		cfg.OutboundMessagesPerSecond = defaults.OutboundMessagesPerSecond
	}
	if cfg.OutboundBurst == 0 {
		cfg.OutboundBurst = defaults.OutboundBurst
	}
	if cfg.HeartbeatInterval < 0 || cfg.ConnectTimeout < 0 || cfg.AckTimeout < 0 {
		return fmt.Errorf("streaming client configuration rejected: timeouts must be positive")
	}
	if cfg.ReconnectBackoff.Base < 0 || cfg.ReconnectBackoff.Cap < cfg.ReconnectBackoff.Base {
		return fmt.Errorf("streaming client configuration rejected: backoff cap must be greater than or equal to base")
	}
	if cfg.ReconnectBackoff.Jitter < 0 || cfg.ReconnectBackoff.Jitter >= 1 {
		return fmt.Errorf("streaming client configuration rejected: backoff jitter must be in [0, 1)")
	}
	if cfg.EventBufferCapacity < 0 || cfg.CommandBufferCapacity < 0 {
		return fmt.Errorf("streaming client configuration rejected: buffer capacities must be positive")
	}
	if cfg.OutboundMessagesPerSecond < 0 || cfg.OutboundBurst < 0 {
		return fmt.Errorf("streaming client configuration rejected: outbound rate and burst must be positive")
	}
	return nil
}
