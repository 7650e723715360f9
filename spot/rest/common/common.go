// This package contains structs and helpers shared by the REST API bindings.
package common

import (
	"net/url"
	"strconv"
)

// Base layout for Kraken Spot REST API responses
type KrakenSpotRESTResponse struct {
	// Errors returned with the response.
	//
	// Please refer to https://support.kraken.com/hc/en-us/articles/360001491786-API-error-messages for details.
	Error []string `json:"error"`
	// Result for the request
	Result interface{} `json:"result,omitempty"`
}

// Container for security options to use during the API call (2FA, ...)
type SecurityOptions struct {
	// Second factor to use to sign request (authenticator app or password). An empty string can
	// be used if 2FA is not enabled.
	SecondFactor string
}

// Encode the nonce and the optional security options into the provided form values.
func EncodeNonceAndSecurityOptions(form url.Values, nonce int64, secopts *SecurityOptions) {
	form.Set("nonce", strconv.FormatInt(nonce, 10))
	if secopts != nil && secopts.SecondFactor != "" {
		form.Set("otp", secopts.SecondFactor)
	}
}
