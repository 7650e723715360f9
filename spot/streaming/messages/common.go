package messages

import "regexp"

// Struct used to parse sequence numbers in private messages.
type SequenceId struct {
	Sequence int64 `json:"sequence"`
}

// Static regex used to matches whitespaces.
var matchesWhitespacesRegex = regexp.MustCompile(`\s`)
