package streaming

import (
	"time"
)

// State of one subscription maintained by the client.
//
// An entry records the user's intent: it is created as soon as a subscribe command is accepted,
// before the server acknowledges anything, so subscriptions can be restored after a disconnect.
// Per-pair acknowledge state and server channel IDs are filled when subscriptionStatus messages
// arrive and are wiped on disconnect.
type subscriptionEntry struct {
	// Base channel name (cf. messages.ChannelEnum)
	channel string
	// Book depth. 0 when not applicable.
	depth int
	// OHLC interval in minutes. 0 when not applicable.
	interval int
	// True for private channels
	private bool
	// Optional - whether to request the historical snapshot (ownTrades)
	snapshot *bool
	// Optional - whether to request the rate-limit counter (openOrders)
	rateCounter bool
	// Pairs in insertion order, without duplicates. Empty for private channels.
	pairs []string
	// Acknowledged pairs. Private channels use the empty pair as key.
	acked map[string]bool
	// Server channel IDs per pair
	channelIds map[string]int64
	// Time the last subscribe frame was sent for this entry
	lastAttempt time.Time
	// True once the entry has been retried during the current connection after a missing ack
	retried bool
}

// Key which identifies a subscription: a channel can be subscribed several times with different
// options (e.g. several ohlc intervals) but identical options must collapse onto one entry.
type subscriptionKey struct {
	channel  string
	depth    int
	interval int
}

func (e *subscriptionEntry) key() subscriptionKey {
	return subscriptionKey{channel: e.channel, depth: e.depth, interval: e.interval}
}

// True when the server has acknowledged every pair of the entry.
func (e *subscriptionEntry) fullyAcked() bool {
	if e.private {
		return e.acked[""]
	}
	for _, pair := range e.pairs {
		if !e.acked[pair] {
			return false
		}
	}
	return true
}

// Registry of the subscriptions maintained by the client. Owned by the event loop: no locks.
//
// Entries are kept in insertion order: on reconnect, subscriptions are restored in the order
// the user created them.
type subscriptionRegistry struct {
	entries []*subscriptionEntry
}

// Factory which creates an empty registry.
func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{}
}

// Find the entry matching the provided key. Nil when there is none.
func (r *subscriptionRegistry) find(key subscriptionKey) *subscriptionEntry {
	for _, entry := range r.entries {
		if entry.key() == key {
			return entry
		}
	}
	return nil
}

// # Description
//
// Record the intent of a subscribe command and return the corresponding entry.
//
// When an entry with the same channel and options exists, the command's pairs are merged into
// it (the server deduplicates identical subscriptions on its side, the registry does the same
// on its side). Otherwise a new entry is appended.
func (r *subscriptionRegistry) record(cmd *subscribeCommand) *subscriptionEntry {
	key := subscriptionKey{channel: cmd.channel, depth: cmd.depth, interval: cmd.interval}
	entry := r.find(key)
	if entry == nil {
		entry = &subscriptionEntry{
			channel:     cmd.channel,
			depth:       cmd.depth,
			interval:    cmd.interval,
			private:     cmd.private,
			snapshot:    cmd.snapshot,
			rateCounter: cmd.rateCounter,
			acked:       map[string]bool{},
			channelIds:  map[string]int64{},
		}
		r.entries = append(r.entries, entry)
	}
	for _, pair := range cmd.pairs {
		if !contains(entry.pairs, pair) {
			entry.pairs = append(entry.pairs, pair)
		}
	}
	return entry
}

// # Description
//
// Remove the provided pairs from the entry matching the key. The entry itself is removed when
// no pair remains (private entries are always removed as they carry no pairs).
func (r *subscriptionRegistry) remove(key subscriptionKey, pairs []string) {
	entry := r.find(key)
	if entry == nil {
		return
	}
	if !entry.private {
		kept := make([]string, 0, len(entry.pairs))
		for _, pair := range entry.pairs {
			if !contains(pairs, pair) {
				kept = append(kept, pair)
			}
		}
		entry.pairs = kept
		for _, pair := range pairs {
			delete(entry.acked, pair)
			delete(entry.channelIds, pair)
		}
		if len(entry.pairs) > 0 {
			return
		}
	}
	for i, candidate := range r.entries {
		if candidate == entry {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Mark a pair of an entry as acknowledged by the server and record its channel ID.
func (r *subscriptionRegistry) markSubscribed(key subscriptionKey, pair string, channelId int64) {
	entry := r.find(key)
	if entry == nil {
		return
	}
	entry.acked[pair] = true
	if !entry.private {
		entry.channelIds[pair] = channelId
	}
}

// Record a server acknowledged unsubscribe for a pair of an entry.
func (r *subscriptionRegistry) markUnsubscribed(key subscriptionKey, pair string) {
	entry := r.find(key)
	if entry == nil {
		return
	}
	delete(entry.acked, pair)
	delete(entry.channelIds, pair)
}

// Wipe all acknowledge state. Called when the connection is lost: entries survive so the loop
// can resubscribe but nothing is acknowledged anymore.
func (r *subscriptionRegistry) markDisconnected() {
	for _, entry := range r.entries {
		entry.acked = map[string]bool{}
		entry.channelIds = map[string]int64{}
		entry.retried = false
		entry.lastAttempt = time.Time{}
	}
}

// All entries in insertion order.
func (r *subscriptionRegistry) all() []*subscriptionEntry {
	return r.entries
}

func contains(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}
