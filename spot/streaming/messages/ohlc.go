package messages

import (
	"encoding/json"
	"fmt"
)

/*************************************************************************************************/
/* OHLC MESSAGE                                                                                  */
/*************************************************************************************************/

// Data of a ohlc message from the websocket API.
type OHLC struct {
	// Channel ID of subscription.
	ChannelId int64
	// Name of subscription - Should be "ohlc-*"
	Name string
	// Asset pair
	Pair string
	// OHLC data
	Data OHLCData
}

// Custom JSON marshaller for OHLC
func (ohlc OHLC) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		ohlc.ChannelId,
		ohlc.Data,
		ohlc.Name,
		ohlc.Pair,
	})
}

// Custom JSON unmarshaller for OHLC
func (ohlc *OHLC) UnmarshalJSON(data []byte) error {
	// Prepare an array of objects that will be used as target by the unmarshaller
	tmp := []interface{}{
		0.0,           // The channel ID is understood as a float by the parser
		new(OHLCData), // OHLC data
		"",            // Expect a string for channel name
		"",            // Expect a string for pair
	}
	err := json.Unmarshal(data, &tmp)
	if err != nil {
		return err
	}
	cid, ok := tmp[0].(float64) // Yes, it is understood like that by the parser
	if !ok {
		return fmt.Errorf("failed to extract channel ID from parsed data: %s", string(data))
	}
	cname, ok := tmp[2].(string)
	if !ok {
		return fmt.Errorf("failed to extract channel name from parsed data: %s", string(data))
	}
	pair, ok := tmp[3].(string)
	if !ok {
		return fmt.Errorf("failed to extract pair from parsed data: %s", string(data))
	}
	ohlc.ChannelId = int64(cid)
	ohlc.Name = cname
	ohlc.Pair = pair
	ohlc.Data = *tmp[1].(*OHLCData)
	return nil
}

/*************************************************************************************************/
/* OHLC DATA                                                                                     */
/*************************************************************************************************/

// Data of a single OHLC indicator
type OHLCData struct {
	// Candle last update time, in seconds since epoch (seconds + decimal nanoseconds)
	Start json.Number
	// End time of interval, in seconds since epoch (seconds + decimal nanoseconds)
	End json.Number
	// Price of the first trade
	Open json.Number
	// Highest trade price
	High json.Number
	// Lowest trade price
	Low json.Number
	// Price of the last trade
	Close json.Number
	// Volume average price
	VolumeAveragePrice json.Number
	// Volume
	Volume json.Number
	// Number of trades used to build the indicator
	TradesCount int64
}

// Marshal a single OHLC indicator as an array to produce the same JSON data as the API.
//
// [string <time>, string <etime>, string <open>, string <high>, string <low>, string <close>, string <vwap>, string <volume>, int <count>]
func (ohlc OHLCData) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		ohlc.Start.String(),
		ohlc.End.String(),
		ohlc.Open.String(),
		ohlc.High.String(),
		ohlc.Low.String(),
		ohlc.Close.String(),
		ohlc.VolumeAveragePrice.String(),
		ohlc.Volume.String(),
		ohlc.TradesCount,
	})
}

// Unmarshal a single OHLC indicator from the API raw JSON data.
//
// [string <time>, string <etime>, string <open>, string <high>, string <low>, string <close>, string <vwap>, string <volume>, int <count>]
func (ohlc *OHLCData) UnmarshalJSON(data []byte) error {
	// Create an array of interface with values that will help the parser picking the right types.
	tmp := []interface{}{
		"",  // time
		"",  // etime
		"",  // open
		"",  // high
		"",  // low
		"",  // close
		"",  // vwap
		"",  // volume
		0.0, // count - understood as a float by the parser
	}
	err := json.Unmarshal(data, &tmp)
	if err != nil {
		return err
	}
	// Extract each slot with its expected type
	slots := make([]string, 8)
	for i := 0; i < 8; i++ {
		slot, ok := tmp[i].(string)
		if !ok {
			return fmt.Errorf("failed to extract ohlc data from parsed data: %s", string(data))
		}
		slots[i] = slot
	}
	count, ok := tmp[8].(float64)
	if !ok {
		return fmt.Errorf("failed to extract trades count from parsed data: %s", string(data))
	}
	// Encode ohlc data
	ohlc.Start = json.Number(slots[0])
	ohlc.End = json.Number(slots[1])
	ohlc.Open = json.Number(slots[2])
	ohlc.High = json.Number(slots[3])
	ohlc.Low = json.Number(slots[4])
	ohlc.Close = json.Number(slots[5])
	ohlc.VolumeAveragePrice = json.Number(slots[6])
	ohlc.Volume = json.Number(slots[7])
	ohlc.TradesCount = int64(count)
	return nil
}
