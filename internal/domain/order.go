package domain

// OrderType is the kind of conditional order stored on-chain.
type OrderType uint8

const (
	OrderLimit OrderType = iota
	OrderStopLoss
	OrderTakeProfit
)

func (t OrderType) String() string {
	switch t {
	case OrderLimit:
		return "limit"
	case OrderStopLoss:
		return "stop-loss"
	case OrderTakeProfit:
		return "take-profit"
	default:
		return "unknown"
	}
}

// OrderInfo is the subset of an order's details the keeper logs when it
// triggers an execution. Everything else lives on-chain.
type OrderInfo struct {
	Type   OrderType
	IsLong bool
	Asset  string
}

// DirectionLabel returns "long" or "short" for logging.
func (o OrderInfo) DirectionLabel() string {
	if o.IsLong {
		return "long"
	}
	return "short"
}
