package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* UNIT TEST SUITE                                                                               */
/*************************************************************************************************/

// Unit test suite for book messages
type BookUnitTestSuite struct {
	suite.Suite
}

// Run the unit test suite
func TestBookUnitTestSuite(t *testing.T) {
	suite.Run(t, new(BookUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test unmarshalling an example book snapshot message from documentation.
func (suite *BookUnitTestSuite) TestBookSnapshotUnmarshalJson() {
	// Payload to unmarshal
	payload := `[
		0,
		{
		  "as": [
			[
			  "5541.30000",
			  "2.50700000",
			  "1534614248.123678"
			],
			[
			  "5541.80000",
			  "0.33000000",
			  "1534614098.345543"
			],
			[
			  "5542.70000",
			  "0.64700000",
			  "1534614244.654432"
			]
		  ],
		  "bs": [
			[
			  "5541.20000",
			  "1.52900000",
			  "1534614248.765567"
			],
			[
			  "5539.90000",
			  "0.30000000",
			  "1534614098.289383"
			]
		  ]
		},
		"book-100",
		"XBT/USD"
	]`
	// Unmarshal payload into target struct
	target := new(BookSnapshot)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	// Check parsed data
	require.Equal(suite.T(), int64(0), target.ChannelId)
	require.Equal(suite.T(), "book-100", target.Name)
	require.Equal(suite.T(), "XBT/USD", target.Pair)
	require.Len(suite.T(), target.Data.Asks, 3)
	require.Len(suite.T(), target.Data.Bids, 2)
	require.Equal(suite.T(), "5541.30000", target.Data.Asks[0].Price.String())
	require.Equal(suite.T(), "1.52900000", target.Data.Bids[0].Volume.String())
}

// Test marshalling a book snapshot to the same payload as the API.
func (suite *BookUnitTestSuite) TestBookSnapshotMarshalJson() {
	payload := `[
		0,
		{
		  "as": [
			[
			  "5541.30000",
			  "2.50700000",
			  "1534614248.123678"
			]
		  ],
		  "bs": [
			[
			  "5541.20000",
			  "1.52900000",
			  "1534614248.765567"
			]
		  ]
		},
		"book-100",
		"XBT/USD"
	]`
	// Remove whitespaces from payload
	payload = matchesWhitespacesRegex.ReplaceAllString(payload, "")
	// Unmarshal payload into target struct
	target := new(BookSnapshot)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	// Marshal target
	actual, err := json.Marshal(target)
	require.NoError(suite.T(), err)
	// Compare
	require.Equal(suite.T(), payload, string(actual))
}

// Test unmarshalling an example book update message from documentation with a checksum and a
// republished entry.
func (suite *BookUnitTestSuite) TestBookUpdateUnmarshalJson() {
	payload := `[
		1234,
		{
		  "a": [
			[
			  "5541.30000",
			  "2.50700000",
			  "1534614248.456738"
			],
			[
			  "5542.50000",
			  "0.40100000",
			  "1534614248.456738",
			  "r"
			]
		  ],
		  "c": "974942666"
		},
		"book-10",
		"XBT/USD"
	]`
	target := new(BookUpdate)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(1234), target.ChannelId)
	require.Equal(suite.T(), "book-10", target.Name)
	require.Equal(suite.T(), "XBT/USD", target.Pair)
	require.Len(suite.T(), target.Data.Asks, 2)
	require.Empty(suite.T(), target.Data.Bids)
	require.Equal(suite.T(), "974942666", target.Data.Checksum)
	require.Equal(suite.T(), "r", target.Data.Asks[1].UpdateType)
}

// Test unmarshalling a book update frame which batches the ask side and the bid side as two
// payload objects. Both payloads must be merged into a single update and the checksum must be
// taken from the payload which carries it.
func (suite *BookUnitTestSuite) TestBookUpdateUnmarshalJsonWithBatchedSides() {
	payload := `[
		1234,
		{
		  "a": [
			[
			  "5541.30000",
			  "2.50700000",
			  "1534614248.456738"
			]
		  ]
		},
		{
		  "b": [
			[
			  "5541.30000",
			  "0.00000000",
			  "1534614335.345903"
			]
		  ],
		  "c": "974942666"
		},
		"book-10",
		"XBT/USD"
	]`
	target := new(BookUpdate)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "XBT/USD", target.Pair)
	require.Len(suite.T(), target.Data.Asks, 1)
	require.Len(suite.T(), target.Data.Bids, 1)
	require.Equal(suite.T(), "974942666", target.Data.Checksum)
	require.Equal(suite.T(), "0.00000000", target.Data.Bids[0].Volume.String())
}

// Test the snapshot/update disambiguation: it must rely on the payload key names only.
func (suite *BookUnitTestSuite) TestIsBookSnapshot() {
	snapshot := `[0,{"as":[["1.0","1.0","1.0"]],"bs":[["0.9","1.0","1.0"]]},"book-10","XBT/USD"]`
	update := `[0,{"a":[["1.0","1.0","1.0"]]},"book-10","XBT/USD"]`
	require.True(suite.T(), IsBookSnapshot([]byte(snapshot)))
	require.False(suite.T(), IsBookSnapshot([]byte(update)))
}

// Test unmarshalling a book entry without and with the republished flag.
func (suite *BookUnitTestSuite) TestBookEntryUnmarshalJson() {
	entry := new(BookEntry)
	err := json.Unmarshal([]byte(`["5541.30000","2.50700000","1534614248.456738"]`), entry)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "5541.30000", entry.Price.String())
	require.Empty(suite.T(), entry.UpdateType)
	err = json.Unmarshal([]byte(`["5541.30000","2.50700000","1534614248.456738","r"]`), entry)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "r", entry.UpdateType)
}
