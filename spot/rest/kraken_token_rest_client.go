// This package provides the REST side of the market data client: the endpoint which delivers
// the authentication tokens required by private websocket subscriptions.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker/v2"

	"github.com/gbdevw/purple-gomarket/spot/rest/common"
)

// Kraken spot REST API endpoints URL path
const (
	// Base URL for Kraken spot REST API - Production
	KrakenProductionV0BaseUrl = "https://api.kraken.com/0"
	// Path of the endpoint which delivers websocket tokens
	getWebsocketTokenPath = "/private/GetWebSocketsToken"
)

// Headers managed by the client
const (
	managedHeaderContentType = "Content-Type"
	managedHeaderUserAgent   = "User-Agent"

	// Default value for User-Agent
	DefaultUserAgent = "Lake42-Gomarket"
)

// KrakenTokenRESTClient calls the REST endpoint which delivers the authentication tokens used
// to subscribe to private websocket channels.
//
// The client goes through a circuit breaker: when the endpoint keeps failing, calls fail fast
// for a while instead of piling up on a dead endpoint.
type KrakenTokenRESTClient struct {
	// Base URL to use for Kraken spot REST API.
	baseURL string
	// Value for the mandatory User-Agent header.
	agent string
	// Authorizer used to sign outgoing requests.
	authorizer KrakenTokenRESTClientAuthorizerIface
	// HTTP client used to perform API calls.
	client *http.Client
	// Circuit breaker wrapping the token endpoint calls.
	breaker *gobreaker.CircuitBreaker[*GetWebsocketTokenResponse]
}

// Configuration for KrakenTokenRESTClient.
type KrakenTokenRESTClientConfiguration struct {
	// Base URL for the API.
	//
	// If an empty string is used, defaults to "https://api.kraken.com/0"
	BaseURL string
	// Value for the mandatory User-Agent.
	//
	// If an empty string is used, defaults to "Lake42-Gomarket"
	Agent string
	// Low level HTTP client to use to perform API calls.
	//
	// If nil, defaults to a retryable HTTP client which retries up to 3 times and discards its logs.
	Client *http.Client
}

// A factory which creates a new KrakenTokenRESTClientConfiguration with all its default values
// set.
func NewDefaultKrakenTokenRESTClientConfiguration() *KrakenTokenRESTClientConfiguration {
	return &KrakenTokenRESTClientConfiguration{
		BaseURL: KrakenProductionV0BaseUrl,
		Agent:   DefaultUserAgent,
	}
}

// # Description
//
// Factory for KrakenTokenRESTClient.
//
// # Inputs
//
//   - authorizer: Authorizer used to sign outgoing requests. Must not be nil: the token
//     endpoint is a private endpoint.
//   - cfg: Client configuration. A nil value means all default configuration options.
//
// # Returns
//
// A fully initialized KrakenTokenRESTClient.
func NewKrakenTokenRESTClient(authorizer KrakenTokenRESTClientAuthorizerIface, cfg *KrakenTokenRESTClientConfiguration) *KrakenTokenRESTClient {
	defCfg := NewDefaultKrakenTokenRESTClientConfiguration()
	if cfg != nil {
		if cfg.BaseURL != "" {
			defCfg.BaseURL = cfg.BaseURL
		}
		if cfg.Agent != "" {
			defCfg.Agent = cfg.Agent
		}
		if cfg.Client != nil {
			defCfg.Client = cfg.Client
		}
	}
	if defCfg.Client == nil {
		// Default to a retryable http client with silent logs
		httpclient := retryablehttp.NewClient()
		httpclient.RetryMax = 3
		httpclient.Logger = log.New(io.Discard, "", 0)
		defCfg.Client = httpclient.StandardClient()
	}
	return &KrakenTokenRESTClient{
		baseURL:    defCfg.BaseURL,
		agent:      defCfg.Agent,
		authorizer: authorizer,
		client:     defCfg.Client,
		breaker: gobreaker.NewCircuitBreaker[*GetWebsocketTokenResponse](gobreaker.Settings{
			Name:    "get_websocket_token",
			Timeout: 30 * time.Second,
		}),
	}
}

// # Description
//
// GetWebsocketToken - An authentication token must be requested via this REST API endpoint in
// order to connect to and authenticate with the private websocket environment. The token is
// single use and must be consumed within 15 minutes of its creation.
//
// # Inputs
//
//   - ctx: Context used for coordination purpose.
//   - nonce: Nonce used to sign the request.
//   - secopts: Optional security options (like password 2FA) to use for the request.
//
// # Returns
//
// The parsed response from the API and an error if any. Errors reported by the API itself are
// returned as an error and no response is returned.
func (client *KrakenTokenRESTClient) GetWebsocketToken(ctx context.Context, nonce int64, secopts *common.SecurityOptions) (*GetWebsocketTokenResponse, error) {
	return client.breaker.Execute(func() (*GetWebsocketTokenResponse, error) {
		// Prepare form body.
		form := url.Values{}
		common.EncodeNonceAndSecurityOptions(form, nonce, secopts)
		// Forge and authorize the request
		req, err := client.forgeAndAuthorizeRequest(ctx, getWebsocketTokenPath, http.MethodPost, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to forge and authorize request for GetWebsocketToken: %w", err)
		}
		// Send the request
		receiver := new(GetWebsocketTokenResponse)
		err = client.doRequest(ctx, req, receiver)
		if err != nil {
			return nil, fmt.Errorf("request for GetWebsocketToken failed: %w", err)
		}
		if len(receiver.Error) > 0 {
			return nil, fmt.Errorf("GetWebsocketToken rejected by the API: %s", strings.Join(receiver.Error, ", "))
		}
		if receiver.Result == nil || receiver.Result.Token == "" {
			return nil, fmt.Errorf("GetWebsocketToken response did not contain a token")
		}
		return receiver, nil
	})
}

// # Description
//
// Forge and authorize a HTTP request for the Kraken spot REST API.
//
// The method will create and initialize a new http.Request with the provided context and data.
// The method will set the mandatory User-Agent header and will authorize the request if an
// authorizer is set at the client level.
func (client *KrakenTokenRESTClient) forgeAndAuthorizeRequest(
	ctx context.Context,
	path string,
	httpMethod string,
	contentType string,
	body io.Reader,
) (*http.Request, error) {
	reqURL := fmt.Sprintf("%s%s", client.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, httpMethod, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to forge HTTP request for Kraken API: %w", err)
	}
	// Set User-Agent and Content-Type headers
	req.Header.Set(managedHeaderUserAgent, client.agent)
	req.Header.Set(managedHeaderContentType, contentType)
	// If an authorizer is set, authorize the request and return results
	if client.authorizer != nil {
		return client.authorizer.Authorize(ctx, req)
	}
	return req, nil
}

// # Description
//
// Send the provided request to Kraken spot REST API and parse the JSON response into the
// provided receiver.
func (client *KrakenTokenRESTClient) doRequest(ctx context.Context, req *http.Request, receiver interface{}) error {
	select {
	case <-ctx.Done():
		// Abort request processing if context has expired
		return fmt.Errorf("aborting request: %w", ctx.Err())
	default:
		resp, err := client.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to process HTTP request: %w", err)
		}
		defer resp.Body.Close()
		// API documentation states that status codes other than 200 indicate the request did
		// not reach the servers. No body will be present.
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code received from Kraken API: %d", resp.StatusCode)
		}
		mimeType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err != nil {
			return fmt.Errorf("could not decode the response Content-Type header: %w", err)
		}
		if mimeType != "application/json" {
			return fmt.Errorf("unexpected Content-Type received from Kraken API: %s", mimeType)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		err = json.Unmarshal(body, receiver)
		if err != nil {
			return fmt.Errorf("failed to parse JSON response: %w", err)
		}
		return nil
	}
}
