package messages

import (
	"encoding/json"
	"fmt"
)

/*************************************************************************************************/
/* BOOK ENTRIES                                                                                  */
/*************************************************************************************************/

// Data of a single book entry.
//
// Price, volume and timestamp keep the exact textual form used by the server: the book checksum
// is computed over these strings and reformatting them would corrupt it.
type BookEntry struct {
	// Price level
	Price json.Number
	// Price level volume. For updates, volume = 0 means the price level must be removed.
	Volume json.Number
	// Price level last updated, seconds since epoch (seconds + decimal nanoseconds)
	Timestamp json.Number
	// Optional - "r" in case the entry is part of a republished update
	UpdateType string
}

// Unmarshal a single book entry.
//
// [string <price>, string <volume>, string <timestamp>, optional string <updateType>]
func (b *BookEntry) UnmarshalJSON(data []byte) error {
	var tmp []string
	err := json.Unmarshal(data, &tmp)
	if err != nil {
		return fmt.Errorf("cannot parse data as a book entry: %w. Got %s", err, string(data))
	}
	if len(tmp) < 3 || len(tmp) > 4 {
		return fmt.Errorf("cannot parse data as a book entry: expected 3 or 4 items. Got %s", string(data))
	}
	b.Price = json.Number(tmp[0])
	b.Volume = json.Number(tmp[1])
	b.Timestamp = json.Number(tmp[2])
	if len(tmp) == 4 {
		b.UpdateType = tmp[3]
	} else {
		b.UpdateType = ""
	}
	return nil
}

// Marshal a book entry to get the same JSON payload as the API.
func (b BookEntry) MarshalJSON() ([]byte, error) {
	data := []string{
		b.Price.String(),
		b.Volume.String(),
		b.Timestamp.String(),
	}
	// The update type is present only when set
	if b.UpdateType != "" {
		data = append(data, b.UpdateType)
	}
	return json.Marshal(data)
}

/*************************************************************************************************/
/* BOOK SNAPSHOT                                                                                 */
/*************************************************************************************************/

// Data of a book snapshot message
type BookSnapshotData struct {
	// Ask side of the book
	Asks []BookEntry `json:"as"`
	// Bid side of the book
	Bids []BookEntry `json:"bs"`
}

// Book snapshot message from the websocket server.
type BookSnapshot struct {
	// Channel ID of subscription.
	ChannelId int64
	// Name of subscription - Should be "book-*"
	Name string
	// Asset pair
	Pair string
	// Book snapshot data
	Data BookSnapshotData
}

// Custom JSON marshaller for BookSnapshot
func (bs BookSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		bs.ChannelId,
		bs.Data,
		bs.Name,
		bs.Pair,
	})
}

// Custom JSON unmarshaller for BookSnapshot
func (bs *BookSnapshot) UnmarshalJSON(data []byte) error {
	cid, payloads, name, pair, err := splitBookFrame(data)
	if err != nil {
		return fmt.Errorf("cannot parse data as a book snapshot: %w", err)
	}
	merged := BookSnapshotData{}
	for _, payload := range payloads {
		part := BookSnapshotData{}
		err = json.Unmarshal(payload, &part)
		if err != nil {
			return fmt.Errorf("cannot parse data as a book snapshot: %w. Got %s", err, string(data))
		}
		merged.Asks = append(merged.Asks, part.Asks...)
		merged.Bids = append(merged.Bids, part.Bids...)
	}
	bs.ChannelId = cid
	bs.Name = name
	bs.Pair = pair
	bs.Data = merged
	return nil
}

/*************************************************************************************************/
/* BOOK UPDATE                                                                                   */
/*************************************************************************************************/

// Data of a book update message
type BookUpdateData struct {
	// Asks updates
	Asks []BookEntry `json:"a,omitempty"`
	// Bids updates
	Bids []BookEntry `json:"b,omitempty"`
	// Book checksum as a quoted unsigned 32-bit integer
	Checksum string `json:"c,omitempty"`
}

// Book update message from the websocket server.
//
// The server can batch the ask side and the bid side of one update as two payload objects within
// a single frame. In that case, both payloads are merged into a single update and the checksum is
// taken from whichever payload carries it.
type BookUpdate struct {
	// Channel ID of subscription.
	ChannelId int64
	// Name of subscription - Should be "book-*"
	Name string
	// Asset pair
	Pair string
	// Book update data
	Data BookUpdateData
}

// Custom JSON marshaller for BookUpdate
func (bu BookUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		bu.ChannelId,
		bu.Data,
		bu.Name,
		bu.Pair,
	})
}

// Custom JSON unmarshaller for BookUpdate
func (bu *BookUpdate) UnmarshalJSON(data []byte) error {
	cid, payloads, name, pair, err := splitBookFrame(data)
	if err != nil {
		return fmt.Errorf("cannot parse data as a book update: %w", err)
	}
	merged := BookUpdateData{}
	for _, payload := range payloads {
		part := BookUpdateData{}
		err = json.Unmarshal(payload, &part)
		if err != nil {
			return fmt.Errorf("cannot parse data as a book update: %w. Got %s", err, string(data))
		}
		merged.Asks = append(merged.Asks, part.Asks...)
		merged.Bids = append(merged.Bids, part.Bids...)
		if part.Checksum != "" {
			merged.Checksum = part.Checksum
		}
	}
	bu.ChannelId = cid
	bu.Name = name
	bu.Pair = pair
	bu.Data = merged
	return nil
}

/*************************************************************************************************/
/* HELPERS                                                                                       */
/*************************************************************************************************/

// Split a raw book frame into its channel ID, payload objects, channel name and pair.
//
// Book frames contain either one payload object (4 items) or two payload objects when the server
// batches the ask side and the bid side of one update (5 items).
func splitBookFrame(data []byte) (cid int64, payloads []json.RawMessage, name string, pair string, err error) {
	items := []json.RawMessage{}
	err = json.Unmarshal(data, &items)
	if err != nil {
		return 0, nil, "", "", err
	}
	if len(items) < 4 || len(items) > 5 {
		return 0, nil, "", "", fmt.Errorf("expected 4 or 5 items. Got %s", string(data))
	}
	// Channel ID is the first item
	err = json.Unmarshal(items[0], &cid)
	if err != nil {
		return 0, nil, "", "", fmt.Errorf("failed to extract channel ID: %w", err)
	}
	// Channel name and pair are the two last items
	err = json.Unmarshal(items[len(items)-2], &name)
	if err != nil {
		return 0, nil, "", "", fmt.Errorf("failed to extract channel name: %w", err)
	}
	err = json.Unmarshal(items[len(items)-1], &pair)
	if err != nil {
		return 0, nil, "", "", fmt.Errorf("failed to extract pair: %w", err)
	}
	return cid, items[1 : len(items)-2], name, pair, nil
}

// Tell whether a raw book frame is a snapshot. Snapshots carry the full sides under the "as" and
// "bs" keys while updates use "a" and "b". Disambiguation relies on key names only.
func IsBookSnapshot(data []byte) bool {
	_, payloads, _, _, err := splitBookFrame(data)
	if err != nil {
		return false
	}
	for _, payload := range payloads {
		keys := map[string]json.RawMessage{}
		if json.Unmarshal(payload, &keys) != nil {
			return false
		}
		if _, ok := keys["as"]; ok {
			return true
		}
		if _, ok := keys["bs"]; ok {
			return true
		}
	}
	return false
}
