package messages

import (
	"encoding/json"
	"fmt"
)

// Data of a ticker message from the websocket API.
type Ticker struct {
	// Channel ID of subscription.
	ChannelId int64
	// Name of subscription - Should be "ticker"
	Name string
	// Asset pair
	Pair string
	// Ticker data
	Data AssetTickerInfo
}

// Custom JSON marshaller for Ticker
func (t Ticker) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		t.ChannelId,
		t.Data,
		t.Name,
		t.Pair,
	})
}

// Custom JSON unmarshaller for Ticker
func (t *Ticker) UnmarshalJSON(data []byte) error {
	// Prepare an array of objects that will be used as target by the unmarshaller
	tmp := []interface{}{
		0.0,                  // The channel ID is understood as a float by the parser
		new(AssetTickerInfo), // Ticker data
		"",                   // Expect a string for channel name
		"",                   // Expect a string for pair
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
	t.ChannelId = int64(cid)
	t.Name = cname
	t.Pair = pair
	t.Data = *tmp[1].(*AssetTickerInfo)
	return nil
}

// Asset Ticker Info
type AssetTickerInfo struct {
	// Ask array(<price>, <whole lot volume>, <lot volume>)
	Ask []json.Number `json:"a"`
	// Bid array(<price>, <whole lot volume>, <lot volume>)
	Bid []json.Number `json:"b"`
	// Last trade closed array(<price>, <lot volume>)
	Close []json.Number `json:"c"`
	// Volume array(<today>, <last 24 hours>)
	Volume []json.Number `json:"v"`
	// Volume weighted average price array(<today>, <last 24 hours>)
	VolumeAveragePrice []json.Number `json:"p"`
	// Number of trades array(<today>, <last 24 hours>)
	Trades []json.Number `json:"t"`
	// Low array(<today>, <last 24 hours>)
	Low []json.Number `json:"l"`
	// High array(<today>, <last 24 hours>)
	High []json.Number `json:"h"`
	// Open array(<today>, <last 24 hours>)
	Open []json.Number `json:"o"`
}

// Get the price of the best ask out of this AssetTickerInfo
func (ati *AssetTickerInfo) GetAskPrice() json.Number {
	return ati.Ask[0]
}

// Get the price of the best bid out of this AssetTickerInfo
func (ati *AssetTickerInfo) GetBidPrice() json.Number {
	return ati.Bid[0]
}

// Get the price of the last trade out of this AssetTickerInfo
func (ati *AssetTickerInfo) GetLastTradePrice() json.Number {
	return ati.Close[0]
}

// Get today's traded volume out of this AssetTickerInfo
func (ati *AssetTickerInfo) GetTodayVolume() json.Number {
	return ati.Volume[0]
}

// Get past 24h traded volume out of this AssetTickerInfo
func (ati *AssetTickerInfo) GetPast24HVolume() json.Number {
	return ati.Volume[1]
}
