package rest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gbdevw/purple-gomarket/noncegen"
	"github.com/gbdevw/purple-gomarket/spot/rest/common"
)

// Safety margin subtracted from the token expiry when deciding whether a cached token can
// still be used.
const tokenExpiryMargin = 5 * time.Second

// Interface for the piece of the REST client used by the token source. Allows tests to stub
// the endpoint.
type websocketTokenEndpoint interface {
	GetWebsocketToken(ctx context.Context, nonce int64, secopts *common.SecurityOptions) (*GetWebsocketTokenResponse, error)
}

// # Description
//
// WebsocketTokenSource delivers authentication tokens for private websocket subscriptions. It
// wraps the GetWebSocketsToken REST endpoint, caches the token until shortly before its expiry
// and signs each call with a fresh, strictly increasing nonce.
//
// The source implements the token provider interface expected by the streaming client.
type WebsocketTokenSource struct {
	// REST client used to call the token endpoint.
	client websocketTokenEndpoint
	// Nonce generator used to sign requests.
	ngen noncegen.NonceGenerator
	// Optional security options (2FA) used for the calls.
	secopts *common.SecurityOptions
	// Mutex which protects the cached token.
	mu sync.Mutex
	// Cached token.
	token string
	// Expiry horizon of the cached token.
	expiresAt time.Time
}

// # Description
//
// Factory for WebsocketTokenSource.
//
// # Inputs
//
//   - client: REST client used to call the token endpoint. Must not be nil.
//   - ngen: Nonce generator used to sign requests. Nil defaults to a unix milliseconds
//     generator.
//   - secopts: Optional security options (2FA) to use for the calls. Can be nil.
func NewWebsocketTokenSource(client *KrakenTokenRESTClient, ngen noncegen.NonceGenerator, secopts *common.SecurityOptions) *WebsocketTokenSource {
	if ngen == nil {
		ngen = noncegen.NewUnixMillisNonceGenerator()
	}
	return &WebsocketTokenSource{
		client:  client,
		ngen:    ngen,
		secopts: secopts,
	}
}

// # Description
//
// Get a token which can be used to subscribe to private websocket channels. The cached token
// is reused while valid; otherwise a new token is requested from the REST API.
func (src *WebsocketTokenSource) GetWebsocketToken(ctx context.Context) (string, error) {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.token != "" && time.Now().Add(tokenExpiryMargin).Before(src.expiresAt) {
		return src.token, nil
	}
	resp, err := src.client.GetWebsocketToken(ctx, src.ngen.GenerateNonce(), src.secopts)
	if err != nil {
		return "", fmt.Errorf("failed to get a websocket token: %w", err)
	}
	src.token = resp.Result.Token
	src.expiresAt = time.Now().Add(time.Duration(resp.Result.Expires) * time.Second)
	return src.token, nil
}

// Invalidate the cached token so the next call requests a fresh one. Used after the server
// rejected the token (tokens are single use for connection authentication).
func (src *WebsocketTokenSource) Invalidate() {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.token = ""
	src.expiresAt = time.Time{}
}
