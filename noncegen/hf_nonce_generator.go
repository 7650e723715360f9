package noncegen

import (
	"sync/atomic"
	"time"
)

// A thread-safe nonce generator with no collision risk when used at high frequency. Nonces are
// generated from two numbers that are added:
//   - base: The UNIX nanosec timestamp of the moment when the generator has been created. This
//     ensures generated nonces keep increasing across application restarts (without a
//     persistence layer).
//   - inc: An atomic counter which increases each time a nonce is generated.
//
// WARNING: The nonce generator has no risk of collision only when a single application consumes
// the API credentials. In case several applications share access, use separate API keys.
type HFNonceGenerator struct {
	// Base used to compute nonces. Set once at creation as a UNIX nanosec timestamp.
	base int64
	// A value which increments each time a nonce is produced.
	inc atomic.Int64
}

// Factory which returns a new ready-to-use HFNonceGenerator.
func NewHFNonceGenerator() *HFNonceGenerator {
	return &HFNonceGenerator{
		base: time.Now().UnixNano(),
	}
}

// Generate a new nonce.
func (g *HFNonceGenerator) GenerateNonce() int64 {
	return g.base + g.inc.Add(1) - 1
}
