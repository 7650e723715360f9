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

// Unit test suite for Spread
type SpreadUnitTestSuite struct {
	suite.Suite
}

// Run the unit test suite
func TestSpreadUnitTestSuite(t *testing.T) {
	suite.Run(t, new(SpreadUnitTestSuite))
}

/*************************************************************************************************/
/* UNIT TESTS                                                                                    */
/*************************************************************************************************/

// Test unmarshalling an example Spread message from documentation into the corresponding struct.
func (suite *SpreadUnitTestSuite) TestSpreadUnmarshalJson() {
	// Payload to unmarshal
	payload := `[
		0,
		[
		  "5698.40000",
		  "5700.00000",
		  "1542057299.545897",
		  "1.01234567",
		  "0.98765432"
		],
		"spread",
		"XBT/USD"
	]`
	// Unmarshal payload into target struct
	target := new(Spread)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	// Check parsed data
	require.Equal(suite.T(), "spread", target.Name)
	require.Equal(suite.T(), "XBT/USD", target.Pair)
	require.Equal(suite.T(), "5698.40000", target.Data.BestBidPrice.String())
	require.Equal(suite.T(), "5700.00000", target.Data.BestAskPrice.String())
	require.Equal(suite.T(), "0.98765432", target.Data.BestAskVolume.String())
}

// Test marshalling a Spread message to the same payload as the API.
func (suite *SpreadUnitTestSuite) TestSpreadMarshalJson() {
	payload := `[
		0,
		[
		  "5698.40000",
		  "5700.00000",
		  "1542057299.545897",
		  "1.01234567",
		  "0.98765432"
		],
		"spread",
		"XBT/USD"
	]`
	// Remove whitespaces from payload
	payload = matchesWhitespacesRegex.ReplaceAllString(payload, "")
	// Unmarshal payload into target struct
	target := new(Spread)
	err := json.Unmarshal([]byte(payload), target)
	require.NoError(suite.T(), err)
	// Marshal target
	actual, err := json.Marshal(target)
	require.NoError(suite.T(), err)
	// Compare
	require.Equal(suite.T(), payload, string(actual))
}
