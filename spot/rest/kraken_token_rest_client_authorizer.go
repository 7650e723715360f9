package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const (
	// Header used to provide the API key
	managedHeaderAPIKey = "API-Key"
	// Header used to provide the signature
	managedHeaderAPISign = "API-Sign"
	// Environment variable which provides the API key
	APIKeyEnvVar = "API_KEY"
	// Environment variable which provides the base64 encoded API secret
	APISecretEnvVar = "API_SECRET"
)

// Interface for the component which authorizes outgoing requests to the REST API.
type KrakenTokenRESTClientAuthorizerIface interface {
	// Authorize the provided request. Implementations return the request, modified in place
	// with the data required by the server to accept it.
	Authorize(ctx context.Context, req *http.Request) (*http.Request, error)
}

// An authorizer which signs outgoing requests to private Kraken spot REST API endpoints.
//
// The signature is: Base64(HMAC-SHA512(key = Base64Decode(secret),
// message = URI path + SHA256(nonce + POST data))).
type KrakenTokenRESTClientAuthorizer struct {
	// API Key used to sign request.
	key string
	// Base64 decoded secret used to forge signatures.
	secret []byte
}

// # Description
//
// Factory for KrakenTokenRESTClientAuthorizer.
//
// # Inputs
//
//   - key: The API key used to sign requests
//   - secret: The base64 encoded secret used to sign requests (use the value displayed when
//     creating the API key).
//
// # Returns
//
// A fully initialized authorizer or an error if the secret could not be base64 decoded.
func NewKrakenTokenRESTClientAuthorizer(key, secret string) (*KrakenTokenRESTClientAuthorizer, error) {
	// Base64 decode provided secret
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("could not base64 decode provided secret for Kraken spot API: %w", err)
	}
	return &KrakenTokenRESTClientAuthorizer{
		key:    key,
		secret: decoded,
	}, nil
}

// Factory which builds an authorizer with the credentials provided by the API_KEY and
// API_SECRET environment variables.
func NewKrakenTokenRESTClientAuthorizerFromEnv() (*KrakenTokenRESTClientAuthorizer, error) {
	key := os.Getenv(APIKeyEnvVar)
	secret := os.Getenv(APISecretEnvVar)
	if key == "" || secret == "" {
		return nil, fmt.Errorf("missing credentials: both %s and %s must be set", APIKeyEnvVar, APISecretEnvVar)
	}
	return NewKrakenTokenRESTClientAuthorizer(key, secret)
}

// # Description
//
// Authorize the request by signing its form data with the configured credentials.
//
// # WARNING
//
// The method expects request.Form data to be populated in order to extract the nonce and all
// other data required to forge the signature. The method will call req.ParseForm. For this to
// work, the provided request must have a body set, its http.Method equal to POST, PATCH or PUT
// and its content-type header be set to "application/x-www-form-urlencoded".
func (auth *KrakenTokenRESTClientAuthorizer) Authorize(ctx context.Context, req *http.Request) (*http.Request, error) {
	// Ensure request is not nil or panic as it must not be nil.
	if req == nil {
		panic("cannot authorize request: provided request is nil")
	}
	select {
	case <-ctx.Done():
		// Shortcut if context has expired
		return nil, fmt.Errorf("failed to authorize request: %w", ctx.Err())
	default:
		// Public endpoints are not signed
		if !strings.Contains(req.URL.Path, "/public") {
			err := req.ParseForm()
			if err != nil {
				return nil, fmt.Errorf("failed to authorize request: could not parse form data: %w", err)
			}
			// ParseForm drains the request body: restore it so the request can be sent
			if req.GetBody != nil {
				req.Body, err = req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to authorize request: could not restore request body: %w", err)
				}
			}
			signature, err := auth.sign(req.URL.Path, req.Form)
			if err != nil {
				return nil, fmt.Errorf("failed to authorize request: %w", err)
			}
			// Set/Override API-Key and API-Sign headers in request
			req.Header.Set(managedHeaderAPIKey, auth.key)
			req.Header.Set(managedHeaderAPISign, signature)
		}
		return req, nil
	}
}

// Forge the signature for a request to a private endpoint.
//
// The form body data must include a "nonce" value and an optional "otp" value.
func (auth *KrakenTokenRESTClientAuthorizer) sign(path string, payload url.Values) (string, error) {
	// SHA256(nonce + POST data)
	sha := sha256.New()
	_, err := sha.Write([]byte(payload.Get("nonce") + payload.Encode()))
	if err != nil {
		return "", fmt.Errorf("signature failed: could not produce SHA256(nonce + POST data): %w", err)
	}
	shasum := sha.Sum(nil)
	// HMAC-SHA512 of (URI path + SHA256(nonce + POST data)) keyed with the base64 decoded secret
	mac := hmac.New(sha512.New, auth.secret)
	_, err = mac.Write(append([]byte(path), shasum...))
	if err != nil {
		return "", fmt.Errorf("signature failed: could not produce HMAC-SHA512(URI path + SHA256(nonce + POST data)): %w", err)
	}
	macsum := mac.Sum(nil)
	// Base64 encode signature to include in header
	return base64.StdEncoding.EncodeToString(macsum), nil
}
