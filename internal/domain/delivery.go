package domain

import "time"

// DefaultBatchWindow is the rounding step used to derive a batch key for
// records that were stored without an explicit batch id.
const DefaultBatchWindow = 10 * time.Second

type DeliveryAgent struct {
	Name        string
	Mobile      string
	Description string
	Address     string
}

// DeliveryRecord is append-only. Agent is a copy taken when the record was
// written, not a reference to the order's current agent.
type DeliveryRecord struct {
	ID                string
	OrderID           uint
	ProductID         int
	BatchID           string
	QuantityDelivered float64
	DeliveryDate      time.Time
	Agent             DeliveryAgent
}

// BatchKey identifies the dispatch run the record belongs to.
func (r DeliveryRecord) BatchKey(window time.Duration) string {
	if r.BatchID != "" {
		return r.BatchID
	}
	return DerivedBatchKey(r.Agent.Name, r.DeliveryDate, window)
}

// DerivedBatchKey groups records by agent and delivery time rounded to the
// nearest window.
func DerivedBatchKey(agentName string, at time.Time, window time.Duration) string {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	return agentName + "@" + at.UTC().Round(window).Format(time.RFC3339)
}

// DeliveryBatch is a derived view over the records written by one dispatch
// run. It is never stored.
type DeliveryBatch struct {
	Key         string
	Agent       DeliveryAgent
	DeliveredAt time.Time
	Records     []DeliveryRecord
	Adjustments []Adjustment
}

// Quantities sums the batch per product.
func (b DeliveryBatch) Quantities() map[int]float64 {
	out := make(map[int]float64, len(b.Records))
	for _, r := range b.Records {
		out[r.ProductID] += r.QuantityDelivered
	}
	return out
}

// Revertible is false once any linked adjustment has been locked.
func (b DeliveryBatch) Revertible() bool {
	for _, adj := range b.Adjustments {
		if adj.IsLocked {
			return false
		}
	}
	return true
}

func (b DeliveryBatch) RecordIDs() []string {
	ids := make([]string, len(b.Records))
	for i, r := range b.Records {
		ids[i] = r.ID
	}
	return ids
}
