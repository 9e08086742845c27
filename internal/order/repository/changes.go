package repository

import "orderflow/internal/domain"

// orderChanges is the write set needed to turn the stored aggregate into the
// mutated one. Delivery records are append-only, so they are only ever
// inserted or deleted.
type orderChanges struct {
	header            bool
	items             []domain.OrderItem
	insertAdjustments []domain.Adjustment
	lockAdjustments   []string
	deleteAdjustments []string
	insertDeliveries  []domain.DeliveryRecord
	deleteDeliveryIDs []string
}

func (c orderChanges) empty() bool {
	return !c.header &&
		len(c.items) == 0 &&
		len(c.insertAdjustments) == 0 &&
		len(c.lockAdjustments) == 0 &&
		len(c.deleteAdjustments) == 0 &&
		len(c.insertDeliveries) == 0 &&
		len(c.deleteDeliveryIDs) == 0
}

func diffOrder(before, after *domain.Order) orderChanges {
	var c orderChanges

	c.header = newOrderRow(before) != newOrderRow(after)

	for _, item := range after.Items {
		idx := before.ItemIndex(item.ProductID)
		if idx < 0 || before.Items[idx] != item {
			c.items = append(c.items, item)
		}
	}

	for _, adj := range after.Adjustments {
		idx := before.AdjustmentIndex(adj.ID)
		switch {
		case idx < 0:
			c.insertAdjustments = append(c.insertAdjustments, adj)
		case adj.IsLocked && !before.Adjustments[idx].IsLocked:
			c.lockAdjustments = append(c.lockAdjustments, adj.ID)
		}
	}
	for _, adj := range before.Adjustments {
		if after.AdjustmentIndex(adj.ID) < 0 {
			c.deleteAdjustments = append(c.deleteAdjustments, adj.ID)
		}
	}

	for _, rec := range after.Deliveries {
		if before.DeliveryIndex(rec.ID) < 0 {
			c.insertDeliveries = append(c.insertDeliveries, rec)
		}
	}
	for _, rec := range before.Deliveries {
		if after.DeliveryIndex(rec.ID) < 0 {
			c.deleteDeliveryIDs = append(c.deleteDeliveryIDs, rec.ID)
		}
	}

	return c
}
