package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

type MySQLAdjustmentRepository struct{}

func NewMySQLAdjustmentRepository() *MySQLAdjustmentRepository {
	return &MySQLAdjustmentRepository{}
}

func (r *MySQLAdjustmentRepository) ListByOrderID(ctx context.Context, q sqlx.QueryerContext, orderID uint) ([]domain.Adjustment, error) {
	query := `
		SELECT id, orderId, type, description, amount, isLocked, linkedBatchId, createdAt
		FROM OrderAdjustments
		WHERE orderId = ?
		ORDER BY seq
	`

	var rows []adjustmentRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("querying adjustments: %w", err)
	}

	out := make([]domain.Adjustment, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *MySQLAdjustmentRepository) Insert(ctx context.Context, tx *sqlx.Tx, adj domain.Adjustment) error {
	query := `
		INSERT INTO OrderAdjustments (id, orderId, type, description, amount, isLocked, linkedBatchId, createdAt)
		VALUES (:id, :orderId, :type, :description, :amount, :isLocked, :linkedBatchId, :createdAt)
	`

	if _, err := tx.NamedExecContext(ctx, query, newAdjustmentRow(adj)); err != nil {
		return fmt.Errorf("inserting adjustment: %w", err)
	}
	return nil
}

// Lock only ever sets the flag; there is no unlock.
func (r *MySQLAdjustmentRepository) Lock(ctx context.Context, tx *sqlx.Tx, orderID uint, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE OrderAdjustments SET isLocked = 1 WHERE orderId = ? AND id IN (?)`, orderID, ids)
	if err != nil {
		return fmt.Errorf("building lock query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("locking adjustments: %w", err)
	}
	return nil
}

// Delete refuses to remove locked rows even if asked to.
func (r *MySQLAdjustmentRepository) Delete(ctx context.Context, tx *sqlx.Tx, orderID uint, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM OrderAdjustments WHERE orderId = ? AND isLocked = 0 AND id IN (?)`, orderID, ids)
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("deleting adjustments: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected != int64(len(ids)) {
		return apperrors.NewConflictError(fmt.Sprintf("adjustments changed concurrently: expected to remove %d, removed %d", len(ids), affected))
	}
	return nil
}
