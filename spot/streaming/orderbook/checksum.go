package orderbook

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// Number of levels per side covered by the book checksum. Fixed by the exchange contract,
// independent of the subscribed book depth.
const ChecksumDepth = 10

// # Description
//
// Compute the checksum of the book state:
//  1. Take the top ChecksumDepth ask levels in ascending price order, then the top
//     ChecksumDepth bid levels in descending price order.
//  2. For each level, concatenate the stripped price and the stripped volume. Stripping removes
//     the decimal point then the leading zeros from the server's textual form of the value; when
//     nothing remains, "0" is used.
//  3. Concatenate all level strings in order (asks first, then bids) and compute CRC-32 (IEEE)
//     over the resulting ASCII bytes.
//
// The checksum depends on the exact textual form of prices and volumes as sent by the server:
// the book keeps these strings verbatim for this purpose.
func (b *Book) Checksum() uint32 {
	var sb strings.Builder
	for _, level := range b.Asks.Top(ChecksumDepth) {
		sb.WriteString(stripChecksumInput(level.Price))
		sb.WriteString(stripChecksumInput(level.Volume))
	}
	for _, level := range b.Bids.Top(ChecksumDepth) {
		sb.WriteString(stripChecksumInput(level.Price))
		sb.WriteString(stripChecksumInput(level.Volume))
	}
	return crc32.ChecksumIEEE([]byte(sb.String()))
}

// Strip a decimal value for checksum input: remove the decimal point, then the leading zeros
// from the resulting integer string. "0" is used when nothing remains.
func stripChecksumInput(value json.Number) string {
	stripped := strings.TrimLeft(strings.ReplaceAll(value.String(), ".", ""), "0")
	if stripped == "" {
		return "0"
	}
	return stripped
}

// # Description
//
// Verify the book state against the checksum provided by the server.
//
// Verification requires ChecksumDepth levels on both sides. When a side holds fewer levels:
//   - If the book has never reached ChecksumDepth levels since the last snapshot (shallow
//     market), verification is skipped.
//   - Otherwise levels have been lost and the book is desynchronized.
//
// # Return
//
// Nil in case of success or skipped verification. Otherwise:
//   - A *ChecksumMismatchError when the computed checksum differs from the provided one. The
//     book is cleared and marked desynchronized.
//   - An error wrapping ErrDesynchronized when there are not enough levels left to verify. The
//     book is cleared and marked desynchronized.
//   - A parse error when the provided checksum is not an unsigned 32-bit decimal integer. The
//     book is cleared and marked desynchronized.
func (b *Book) verify(checksum string) error {
	expected64, err := strconv.ParseUint(checksum, 10, 32)
	if err != nil {
		b.desynchronize()
		return fmt.Errorf("failed to parse provided checksum '%s' as uint32: %w", checksum, err)
	}
	expected := uint32(expected64)
	if b.Asks.Depth() < ChecksumDepth || b.Bids.Depth() < ChecksumDepth {
		if !b.seenFullDepth {
			// Shallow book since snapshot: nothing to verify yet
			return nil
		}
		b.desynchronize()
		return fmt.Errorf("not enough levels left to verify the book checksum for %s: %w", b.Pair, ErrDesynchronized)
	}
	computed := b.Checksum()
	if computed != expected {
		b.desynchronize()
		return &ChecksumMismatchError{Pair: b.Pair, Expected: expected, Computed: computed}
	}
	b.lastChecksum = computed
	b.checksumVerified = true
	return nil
}
