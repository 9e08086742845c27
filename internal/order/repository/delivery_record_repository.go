package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

type MySQLDeliveryRecordRepository struct{}

func NewMySQLDeliveryRecordRepository() *MySQLDeliveryRecordRepository {
	return &MySQLDeliveryRecordRepository{}
}

func (r *MySQLDeliveryRecordRepository) ListByOrderID(ctx context.Context, q sqlx.QueryerContext, orderID uint) ([]domain.DeliveryRecord, error) {
	query := `
		SELECT id, orderId, productId, batchId, quantityDelivered, deliveryDate,
		       agentName, agentMobile, agentDescription, agentAddress
		FROM DeliveryRecords
		WHERE orderId = ?
		ORDER BY seq
	`

	var rows []deliveryRecordRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("querying delivery records: %w", err)
	}

	out := make([]domain.DeliveryRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *MySQLDeliveryRecordRepository) FindOrderID(ctx context.Context, q sqlx.QueryerContext, recordID string) (uint, error) {
	var orderID uint
	err := sqlx.GetContext(ctx, q, &orderID, `SELECT orderId FROM DeliveryRecords WHERE id = ?`, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("delivery record %s not found", recordID))
	}
	if err != nil {
		return 0, fmt.Errorf("querying delivery record: %w", err)
	}
	return orderID, nil
}

func (r *MySQLDeliveryRecordRepository) InsertBatch(ctx context.Context, tx *sqlx.Tx, records []domain.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]deliveryRecordRow, len(records))
	for i, rec := range records {
		rows[i] = newDeliveryRecordRow(rec)
	}

	query := `
		INSERT INTO DeliveryRecords (id, orderId, productId, batchId, quantityDelivered, deliveryDate,
		                             agentName, agentMobile, agentDescription, agentAddress)
		VALUES (:id, :orderId, :productId, :batchId, :quantityDelivered, :deliveryDate,
		        :agentName, :agentMobile, :agentDescription, :agentAddress)
	`
	if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("inserting delivery records: %w", err)
	}
	return nil
}

func (r *MySQLDeliveryRecordRepository) Delete(ctx context.Context, tx *sqlx.Tx, orderID uint, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM DeliveryRecords WHERE orderId = ? AND id IN (?)`, orderID, ids)
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("deleting delivery records: %w", err)
	}
	return nil
}
