// This package provides an interface and several implementations for a nonce generator.
//
// Nonces are used both as request identifiers on the streaming API (reqid) and to sign
// requests to the REST API.
package noncegen

// Interface which defines a method to get a unique incrementing nonce.
type NonceGenerator interface {
	// Generate a new nonce.
	GenerateNonce() int64
}
