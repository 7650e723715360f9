// Package orderbook maintains local replicas of the level-2 order book published on the book
// channel and verifies their integrity against the checksums provided by the server.
package orderbook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gbdevw/purple-gomarket/spot/streaming/messages"
	"github.com/shopspring/decimal"
)

// Error returned when applying an update leaves the book in a state which cannot be trusted
// anymore (crossed sides or not enough levels left to verify a checksum). The book must be
// rebuilt from a fresh snapshot.
var ErrDesynchronized = errors.New("order book is desynchronized")

// Error returned when the checksum computed over the book does not match the checksum provided
// by the server.
type ChecksumMismatchError struct {
	// Asset pair of the book
	Pair string
	// Checksum provided by the server
	Expected uint32
	// Checksum computed over the book
	Computed uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("order book checksum mismatch for %s: expected %d, computed %d", e.Pair, e.Expected, e.Computed)
}

// A single price level of the book.
//
// Price, volume and timestamp keep the exact textual form used by the server as the book
// checksum is computed over these strings.
type Level struct {
	// Price of the level
	Price json.Number
	// Volume available at the level
	Volume json.Number
	// Time the level was last updated, seconds since epoch (seconds + decimal nanoseconds)
	Timestamp json.Number
}

// Internal level representation which pairs the level with its parsed price used for ordering.
type sortedLevel struct {
	// Parsed price used as the sort key
	key decimal.Decimal
	// The level itself
	level Level
}

// One side of the book: levels sorted best first. Asks are sorted in ascending price order,
// bids in descending price order.
type Side struct {
	// Sorted levels, best first
	levels []sortedLevel
	// True for the ask side (ascending price order)
	ascending bool
}

// Number of levels currently held by the side.
func (s *Side) Depth() int {
	return len(s.levels)
}

// Return up to k levels from the best end of the side, in canonical order.
func (s *Side) Top(k int) []Level {
	if k > len(s.levels) {
		k = len(s.levels)
	}
	out := make([]Level, k)
	for i := 0; i < k; i++ {
		out[i] = s.levels[i].level
	}
	return out
}

// Return the best level of the side if any.
func (s *Side) Best() (Level, bool) {
	if len(s.levels) == 0 {
		return Level{}, false
	}
	return s.levels[0].level, true
}

// Find the index of the provided price or the index where it should be inserted.
func (s *Side) search(key decimal.Decimal) (int, bool) {
	lo, hi := 0, len(s.levels)
	for lo < hi {
		mid := (lo + hi) / 2
		cmp := s.levels[mid].key.Cmp(key)
		if !s.ascending {
			cmp = -cmp
		}
		switch {
		case cmp == 0:
			return mid, true
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// Insert or replace the level at its price.
func (s *Side) upsert(key decimal.Decimal, level Level) {
	idx, found := s.search(key)
	if found {
		s.levels[idx].level = level
		return
	}
	s.levels = append(s.levels, sortedLevel{})
	copy(s.levels[idx+1:], s.levels[idx:])
	s.levels[idx] = sortedLevel{key: key, level: level}
}

// Remove the level at the provided price. Removing a price which is not in the book is a no-op.
func (s *Side) remove(key decimal.Decimal) {
	idx, found := s.search(key)
	if !found {
		return
	}
	s.levels = append(s.levels[:idx], s.levels[idx+1:]...)
}

// Drop the worst levels so at most n levels remain.
func (s *Side) truncate(n int) {
	if len(s.levels) > n {
		s.levels = s.levels[:n]
	}
}

// Drop all levels.
func (s *Side) clear() {
	s.levels = nil
}

// Local replica of the level-2 order book for one asset pair.
type Book struct {
	// Asset pair of the book
	Pair string
	// Maximum number of levels kept on each side. Set at subscription time.
	DepthLimit int
	// Ask side, ascending price order
	Asks Side
	// Bid side, descending price order
	Bids Side
	// True once a snapshot has been applied and no verification has failed since
	synchronized bool
	// True once both sides have held at least ChecksumDepth levels since the last snapshot.
	// Before that point, missing levels on a side are a consequence of a shallow snapshot and
	// checksum verification is skipped instead of being treated as a desynchronization.
	seenFullDepth bool
	// Last checksum verified against the server, if any
	lastChecksum uint32
	// True when lastChecksum holds a verified value
	checksumVerified bool
}

// Factory which creates a new, empty book for the provided pair.
func NewBook(pair string, depthLimit int) *Book {
	return &Book{
		Pair:       pair,
		DepthLimit: depthLimit,
		Asks:       Side{ascending: true},
		Bids:       Side{ascending: false},
	}
}

// True once a snapshot has been applied and no verification has failed since.
func (b *Book) Synchronized() bool {
	return b.synchronized
}

// Last checksum verified against the server. The second return value is false while no checksum
// has been verified since the last snapshot.
func (b *Book) LastChecksum() (uint32, bool) {
	return b.lastChecksum, b.checksumVerified
}

// # Description
//
// Replace the book content with the provided snapshot data and mark the book as synchronized.
//
// # Return
//
// An error if a price or volume cannot be parsed. In that case the book is left cleared and
// desynchronized.
func (b *Book) ApplySnapshot(data messages.BookSnapshotData) error {
	b.Asks.clear()
	b.Bids.clear()
	b.synchronized = false
	b.seenFullDepth = false
	b.checksumVerified = false
	for _, entry := range data.Asks {
		err := b.apply(&b.Asks, entry)
		if err != nil {
			b.desynchronize()
			return fmt.Errorf("failed to apply book snapshot for %s: %w", b.Pair, err)
		}
	}
	for _, entry := range data.Bids {
		err := b.apply(&b.Bids, entry)
		if err != nil {
			b.desynchronize()
			return fmt.Errorf("failed to apply book snapshot for %s: %w", b.Pair, err)
		}
	}
	b.Asks.truncate(b.DepthLimit)
	b.Bids.truncate(b.DepthLimit)
	if b.Asks.Depth() >= ChecksumDepth && b.Bids.Depth() >= ChecksumDepth {
		b.seenFullDepth = true
	}
	b.synchronized = true
	return nil
}

// # Description
//
// Apply the provided update data to the book:
//   - Entries with a zero volume remove their price level.
//   - Other entries insert or replace their price level. Entries flagged as republished are
//     treated like any other entry.
//
// After application, each side is truncated to the book depth limit. If the update carries a
// checksum, the book state is verified against it.
//
// # Return
//
// Nil in case of success. Otherwise:
//   - A *ChecksumMismatchError when the checksum does not match. The book is cleared and marked
//     desynchronized: the caller must resubscribe the book channel to obtain a fresh snapshot.
//   - An error wrapping ErrDesynchronized when the update crosses the book or leaves too few
//     levels to verify a provided checksum. The book is cleared and marked desynchronized.
//   - A parse error when an entry or the checksum cannot be parsed. The book is cleared and
//     marked desynchronized.
func (b *Book) ApplyUpdate(data messages.BookUpdateData) error {
	for _, entry := range data.Asks {
		err := b.apply(&b.Asks, entry)
		if err != nil {
			b.desynchronize()
			return fmt.Errorf("failed to apply book update for %s: %w", b.Pair, err)
		}
	}
	for _, entry := range data.Bids {
		err := b.apply(&b.Bids, entry)
		if err != nil {
			b.desynchronize()
			return fmt.Errorf("failed to apply book update for %s: %w", b.Pair, err)
		}
	}
	b.Asks.truncate(b.DepthLimit)
	b.Bids.truncate(b.DepthLimit)
	// A crossed book means an update was lost or misapplied
	if b.Crossed() {
		b.desynchronize()
		return fmt.Errorf("book update for %s crossed the book: %w", b.Pair, ErrDesynchronized)
	}
	if b.Asks.Depth() >= ChecksumDepth && b.Bids.Depth() >= ChecksumDepth {
		b.seenFullDepth = true
	}
	if data.Checksum != "" {
		return b.verify(data.Checksum)
	}
	return nil
}

// Apply a single entry to the provided side.
func (b *Book) apply(side *Side, entry messages.BookEntry) error {
	price, err := decimal.NewFromString(entry.Price.String())
	if err != nil {
		return fmt.Errorf("failed to parse price '%s': %w", entry.Price.String(), err)
	}
	volume, err := decimal.NewFromString(entry.Volume.String())
	if err != nil {
		return fmt.Errorf("failed to parse volume '%s': %w", entry.Volume.String(), err)
	}
	if volume.IsZero() {
		side.remove(price)
		return nil
	}
	side.upsert(price, Level{
		Price:     entry.Price,
		Volume:    entry.Volume,
		Timestamp: entry.Timestamp,
	})
	return nil
}

// True when the best bid price is greater than or equal to the best ask price.
func (b *Book) Crossed() bool {
	bestAsk, okAsk := b.Asks.Best()
	bestBid, okBid := b.Bids.Best()
	if !okAsk || !okBid {
		return false
	}
	// Prices have been validated by apply
	askPrice, _ := decimal.NewFromString(bestAsk.Price.String())
	bidPrice, _ := decimal.NewFromString(bestBid.Price.String())
	return bidPrice.Cmp(askPrice) >= 0
}

// Return up to k levels of each side in canonical order (asks ascending, bids descending).
func (b *Book) Top(k int) (asks []Level, bids []Level) {
	return b.Asks.Top(k), b.Bids.Top(k)
}

// Clear both sides and mark the book as desynchronized.
func (b *Book) desynchronize() {
	b.Asks.clear()
	b.Bids.clear()
	b.synchronized = false
	b.seenFullDepth = false
	b.checksumVerified = false
}
