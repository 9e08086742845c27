package repository

import (
	"database/sql"
	"time"

	"orderflow/internal/domain"
)

type orderRow struct {
	ID               uint         `db:"id"`
	CustomOrderID    string       `db:"customOrderId"`
	UserID           string       `db:"userId"`
	Status           string       `db:"status"`
	PauseReason      string       `db:"pauseReason"`
	AgentName        string       `db:"agentName"`
	AgentMobile      string       `db:"agentMobile"`
	AgentDescription string       `db:"agentDescription"`
	AgentAddress     string       `db:"agentAddress"`
	CreatedAt        time.Time    `db:"createdAt"`
	DeliveredAt      sql.NullTime `db:"deliveredAt"`
	UpdatedAt        time.Time    `db:"updatedAt"`
}

func (r orderRow) toDomain() *domain.Order {
	status, ok := domain.ParseOrderStatus(r.Status)
	if !ok {
		status = domain.OrderStatus(r.Status)
	}
	order := &domain.Order{
		ID:            r.ID,
		CustomOrderID: r.CustomOrderID,
		UserID:        r.UserID,
		Status:        status,
		PauseReason:   r.PauseReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.AgentName != "" {
		order.DeliveryAgent = &domain.DeliveryAgent{
			Name:        r.AgentName,
			Mobile:      r.AgentMobile,
			Description: r.AgentDescription,
			Address:     r.AgentAddress,
		}
	}
	if r.DeliveredAt.Valid {
		at := r.DeliveredAt.Time
		order.DeliveredAt = &at
	}
	return order
}

func newOrderRow(o *domain.Order) orderRow {
	row := orderRow{
		ID:            o.ID,
		CustomOrderID: o.CustomOrderID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PauseReason:   o.PauseReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.DeliveryAgent != nil {
		row.AgentName = o.DeliveryAgent.Name
		row.AgentMobile = o.DeliveryAgent.Mobile
		row.AgentDescription = o.DeliveryAgent.Description
		row.AgentAddress = o.DeliveryAgent.Address
	}
	if o.DeliveredAt != nil {
		row.DeliveredAt = sql.NullTime{Time: *o.DeliveredAt, Valid: true}
	}
	return row
}

type orderItemRow struct {
	ID                uint           `db:"id"`
	OrderID           uint           `db:"orderId"`
	ProductID         int            `db:"productId"`
	Name              string         `db:"name"`
	Unit              string         `db:"unit"`
	Description       sql.NullString `db:"description"`
	QuantityOrdered   float64        `db:"quantityOrdered"`
	QuantityDelivered float64        `db:"quantityDelivered"`
	Price             float64        `db:"price"`
}

func (r orderItemRow) toDomain() domain.OrderItem {
	return domain.OrderItem{
		ID:                r.ID,
		OrderID:           r.OrderID,
		ProductID:         r.ProductID,
		Name:              r.Name,
		Unit:              r.Unit,
		Description:       r.Description.String,
		QuantityOrdered:   r.QuantityOrdered,
		QuantityDelivered: r.QuantityDelivered,
		Price:             r.Price,
	}
}

type adjustmentRow struct {
	ID            string         `db:"id"`
	OrderID       uint           `db:"orderId"`
	Type          string         `db:"type"`
	Description   string         `db:"description"`
	Amount        float64        `db:"amount"`
	IsLocked      bool           `db:"isLocked"`
	LinkedBatchID sql.NullString `db:"linkedBatchId"`
	CreatedAt     time.Time      `db:"createdAt"`
}

func (r adjustmentRow) toDomain() domain.Adjustment {
	return domain.Adjustment{
		ID:            r.ID,
		OrderID:       r.OrderID,
		Type:          domain.AdjustmentType(r.Type),
		Description:   r.Description,
		Amount:        r.Amount,
		IsLocked:      r.IsLocked,
		LinkedBatchID: r.LinkedBatchID.String,
		CreatedAt:     r.CreatedAt,
	}
}

func newAdjustmentRow(a domain.Adjustment) adjustmentRow {
	return adjustmentRow{
		ID:            a.ID,
		OrderID:       a.OrderID,
		Type:          string(a.Type),
		Description:   a.Description,
		Amount:        a.Amount,
		IsLocked:      a.IsLocked,
		LinkedBatchID: sql.NullString{String: a.LinkedBatchID, Valid: a.LinkedBatchID != ""},
		CreatedAt:     a.CreatedAt,
	}
}

type deliveryRecordRow struct {
	ID                string    `db:"id"`
	OrderID           uint      `db:"orderId"`
	ProductID         int       `db:"productId"`
	BatchID           string    `db:"batchId"`
	QuantityDelivered float64   `db:"quantityDelivered"`
	DeliveryDate      time.Time `db:"deliveryDate"`
	AgentName         string    `db:"agentName"`
	AgentMobile       string    `db:"agentMobile"`
	AgentDescription  string    `db:"agentDescription"`
	AgentAddress      string    `db:"agentAddress"`
}

func (r deliveryRecordRow) toDomain() domain.DeliveryRecord {
	return domain.DeliveryRecord{
		ID:                r.ID,
		OrderID:           r.OrderID,
		ProductID:         r.ProductID,
		BatchID:           r.BatchID,
		QuantityDelivered: r.QuantityDelivered,
		DeliveryDate:      r.DeliveryDate,
		Agent: domain.DeliveryAgent{
			Name:        r.AgentName,
			Mobile:      r.AgentMobile,
			Description: r.AgentDescription,
			Address:     r.AgentAddress,
		},
	}
}

func newDeliveryRecordRow(d domain.DeliveryRecord) deliveryRecordRow {
	return deliveryRecordRow{
		ID:                d.ID,
		OrderID:           d.OrderID,
		ProductID:         d.ProductID,
		BatchID:           d.BatchID,
		QuantityDelivered: d.QuantityDelivered,
		DeliveryDate:      d.DeliveryDate,
		AgentName:         d.Agent.Name,
		AgentMobile:       d.Agent.Mobile,
		AgentDescription:  d.Agent.Description,
		AgentAddress:      d.Agent.Address,
	}
}
