package domain

import "strings"

type OrderStatus string

const (
	OrderStatusOrdered            OrderStatus = "Ordered"
	OrderStatusRateRequested      OrderStatus = "RateRequested"
	OrderStatusRateApproved       OrderStatus = "RateApproved"
	OrderStatusConfirmed          OrderStatus = "Confirmed"
	OrderStatusDispatch           OrderStatus = "Dispatch"
	OrderStatusPartiallyDelivered OrderStatus = "PartiallyDelivered"
	OrderStatusDelivered          OrderStatus = "Delivered"
	OrderStatusPaused             OrderStatus = "Paused"
	OrderStatusHold               OrderStatus = "Hold"
	OrderStatusCancelled          OrderStatus = "Cancelled"
)

// AllOrderStatuses lists every state in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusOrdered,
	OrderStatusRateRequested,
	OrderStatusRateApproved,
	OrderStatusConfirmed,
	OrderStatusDispatch,
	OrderStatusPartiallyDelivered,
	OrderStatusDelivered,
	OrderStatusPaused,
	OrderStatusHold,
	OrderStatusCancelled,
}

// ParseOrderStatus maps external input onto the closed set of states.
// "Pending" is accepted as the legacy name of Ordered.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "Pending") {
		return OrderStatusOrdered, true
	}
	for _, s := range AllOrderStatuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, true
		}
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// RequiresReason is true for the parked states that carry a pauseReason.
func (s OrderStatus) RequiresReason() bool {
	return s == OrderStatusPaused || s == OrderStatusHold
}

// IsInDelivery is true while goods may be recorded against the order.
func (s OrderStatus) IsInDelivery() bool {
	return s == OrderStatusDispatch || s == OrderStatusPartiallyDelivered
}
