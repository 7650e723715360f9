package messages

import (
	"encoding/json"
	"fmt"
)

// Data of a openOrders message from the websocket server
type OpenOrders struct {
	// Open orders as an array of maps where keys are the order ids and values the orders
	Orders []map[string]OrderInfo
	// Sequence ID used to ensure no message is lost
	Sequence SequenceId
	// Channel name. Should be "openOrders"
	ChannelName string
}

// Custom JSON marshaller for OpenOrders which produces the same payloads as the API.
func (oo OpenOrders) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		oo.Orders,
		oo.ChannelName,
		oo.Sequence,
	})
}

// Custom JSON unmarshaller for OpenOrders
func (oo *OpenOrders) UnmarshalJSON(data []byte) error {
	// Prepare an array of objects to parse the payload
	tmp := []interface{}{
		&[]map[string]OrderInfo{}, // Orders
		"",                        // Channel name
		&SequenceId{},             // Sequence Id object
	}
	err := json.Unmarshal(data, &tmp)
	if err != nil {
		return fmt.Errorf("failed to parse data as OpenOrders: %w", err)
	}
	cname, ok := tmp[1].(string)
	if !ok {
		return fmt.Errorf("failed to extract channel name from parsed data: %s", string(data))
	}
	oo.ChannelName = cname
	oo.Orders = *tmp[0].(*[]map[string]OrderInfo)
	oo.Sequence = *tmp[2].(*SequenceId)
	return nil
}

// Description for a Order Info
type OrderInfoDescription struct {
	// Asset pair
	Pair string `json:"pair,omitempty"`
	// Optional - position ID (if applicable)
	PositionId string `json:"position,omitempty"`
	// Order direction (buy/sell). Cf. SideEnum.
	Type string `json:"type,omitempty"`
	// Order type. Cf. OrderTypeEnum
	OrderType string `json:"ordertype,omitempty"`
	// Limit or trigger price depending on order type
	Price string `json:"price,omitempty"`
	// Limit price for stop/take orders
	Price2 string `json:"price2,omitempty"`
	// Amount of leverage
	Leverage string `json:"leverage,omitempty"`
	// Textual order description
	OrderDescription string `json:"order,omitempty"`
	// Conditional close order description
	CloseOrderDescription string `json:"close,omitempty"`
}

// OrderInfo contains order data.
type OrderInfo struct {
	// Referral order transaction ID that created this order
	ReferralOrderTransactionId string `json:"refid,omitempty"`
	// Optional user defined reference ID
	UserReferenceId *int64 `json:"userref,omitempty"`
	// Status of order. Cf. OrderStatusEnum
	Status string `json:"status,omitempty"`
	// Unix timestamp of when order was placed.
	//
	// Unix seconds timestamp with nanoseconds as decimal part (ex: 1688666559.8974)
	OpenTimestamp string `json:"opentm,omitempty"`
	// Unix timestamp of order start time (or 0 if not set)
	StartTimestamp string `json:"starttm,omitempty"`
	// Unix timestamp of order end time (or 0 if not set)
	ExpireTimestamp string `json:"expiretm,omitempty"`
	// Order description info
	Description *OrderInfoDescription `json:"descr,omitempty"`
	// Unix timestamp of last change (for updates)
	LastUpdated string `json:"lastupdated,omitempty"`
	// Volume of order (base currency)
	Volume string `json:"vol,omitempty"`
	// Volume executed (base currency)
	VolumeExecuted string `json:"vol_exec,omitempty"`
	// Total cost (quote currency)
	Cost string `json:"cost,omitempty"`
	// Total fee (quote currency)
	Fee string `json:"fee,omitempty"`
	// Average price (quote currency)
	AvgPrice string `json:"avg_price,omitempty"`
	// Stop price (quote currency)
	StopPrice string `json:"stopprice,omitempty"`
	// Triggered limit price (quote currency, when limit based order type triggered)
	LimitPrice string `json:"limitprice,omitempty"`
	// Comma delimited list of miscellaneous info
	Miscellaneous string `json:"misc,omitempty"`
	// Comma delimited list of order flags
	OrderFlags string `json:"oflags,omitempty"`
	// Optional - time in force.
	TimeInForce string `json:"timeinforce,omitempty"`
	// Optional - cancel reason, present for all cancellation updates (status="canceled") and for
	// some close updates (status="closed")
	CancelReason string `json:"cancel_reason,omitempty"`
	// Optional - rate-limit counter, present if requested in subscription request.
	RateCount int `json:"ratecount,omitempty"`
}
