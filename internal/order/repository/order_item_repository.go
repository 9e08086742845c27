package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"orderflow/internal/domain"
)

type MySQLOrderItemRepository struct{}

func NewMySQLOrderItemRepository() *MySQLOrderItemRepository {
	return &MySQLOrderItemRepository{}
}

func (r *MySQLOrderItemRepository) ListByOrderID(ctx context.Context, q sqlx.QueryerContext, orderID uint) ([]domain.OrderItem, error) {
	query := `
		SELECT id, orderId, productId, name, unit, description,
		       quantityOrdered, quantityDelivered, price
		FROM OrderItems
		WHERE orderId = ?
		ORDER BY id
	`

	var rows []orderItemRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}

	items := make([]domain.OrderItem, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return items, nil
}

func (r *MySQLOrderItemRepository) Insert(ctx context.Context, tx *sqlx.Tx, item domain.OrderItem) (uint, error) {
	query := `
		INSERT INTO OrderItems (orderId, productId, name, unit, description, quantityOrdered, quantityDelivered, price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		item.OrderID, item.ProductID, item.Name, item.Unit, item.Description,
		item.QuantityOrdered, item.QuantityDelivered, item.Price,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting order item: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

// UpdateQuantityDelivered writes the running delivered total of one line.
func (r *MySQLOrderItemRepository) UpdateQuantityDelivered(ctx context.Context, tx *sqlx.Tx, item domain.OrderItem) error {
	query := `UPDATE OrderItems SET quantityDelivered = ? WHERE orderId = ? AND productId = ?`

	if _, err := tx.ExecContext(ctx, query, item.QuantityDelivered, item.OrderID, item.ProductID); err != nil {
		return fmt.Errorf("updating delivered quantity: %w", err)
	}
	return nil
}
