package domain

import (
	"math"
	"time"
)

// QuantityTolerance is the slack allowed when comparing fractional quantities.
const QuantityTolerance = 0.001

type Order struct {
	ID            uint
	CustomOrderID string
	UserID        string
	Status        OrderStatus
	PauseReason   string
	Items         []OrderItem
	Adjustments   []Adjustment
	DeliveryAgent *DeliveryAgent
	Deliveries    []DeliveryRecord
	CreatedAt     time.Time
	DeliveredAt   *time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID                uint
	OrderID           uint
	ProductID         int
	Name              string
	Unit              string
	Description       string
	QuantityOrdered   float64
	QuantityDelivered float64
	Price             float64
}

// Remaining is the quantity still owed on the line. It never goes below zero.
func (i OrderItem) Remaining() float64 {
	remaining := i.QuantityOrdered - i.QuantityDelivered
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (i OrderItem) IsComplete() bool {
	return i.QuantityOrdered-i.QuantityDelivered <= QuantityTolerance
}

func (i OrderItem) LineTotal() float64 {
	return i.QuantityOrdered * i.Price
}

// ItemIndex returns the position of the line for productID, or -1.
func (o *Order) ItemIndex(productID int) int {
	for idx := range o.Items {
		if o.Items[idx].ProductID == productID {
			return idx
		}
	}
	return -1
}

func (o *Order) AdjustmentIndex(id string) int {
	for idx := range o.Adjustments {
		if o.Adjustments[idx].ID == id {
			return idx
		}
	}
	return -1
}

func (o *Order) DeliveryIndex(id string) int {
	for idx := range o.Deliveries {
		if o.Deliveries[idx].ID == id {
			return idx
		}
	}
	return -1
}

func (o *Order) IsFullyDelivered() bool {
	for _, item := range o.Items {
		if !item.IsComplete() {
			return false
		}
	}
	return true
}

// HasDeliveries reports whether any goods have left the yard for this order.
func (o *Order) HasDeliveries() bool {
	if len(o.Deliveries) > 0 {
		return true
	}
	for _, item := range o.Items {
		if item.QuantityDelivered > QuantityTolerance {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can diff before and after a mutation.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.Adjustments = append([]Adjustment(nil), o.Adjustments...)
	c.Deliveries = append([]DeliveryRecord(nil), o.Deliveries...)
	if o.DeliveryAgent != nil {
		agent := *o.DeliveryAgent
		c.DeliveryAgent = &agent
	}
	if o.DeliveredAt != nil {
		at := *o.DeliveredAt
		c.DeliveredAt = &at
	}
	return &c
}

// IsPositiveAmount rejects zero, negative, NaN and infinite values.
func IsPositiveAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
