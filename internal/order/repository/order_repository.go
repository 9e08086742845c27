package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

const orderColumns = `
	id, customOrderId, userId, status, pauseReason,
	agentName, agentMobile, agentDescription, agentAddress,
	createdAt, deliveredAt, updatedAt
`

// CustomOrderID is the operator-facing order number.
func CustomOrderID(id uint) string {
	return fmt.Sprintf("CM%05d", id)
}

// MySQLOrderRepository persists the order aggregate: header, items,
// adjustments and delivery records.
type MySQLOrderRepository struct {
	db          *sqlx.DB
	items       *MySQLOrderItemRepository
	adjustments *MySQLAdjustmentRepository
	deliveries  *MySQLDeliveryRecordRepository
	txTimeout   time.Duration
	now         func() time.Time
}

func NewMySQLOrderRepository(db *sqlx.DB, txTimeout time.Duration) *MySQLOrderRepository {
	return &MySQLOrderRepository{
		db:          db,
		items:       NewMySQLOrderItemRepository(),
		adjustments: NewMySQLAdjustmentRepository(),
		deliveries:  NewMySQLDeliveryRecordRepository(),
		txTimeout:   txTimeout,
		now:         time.Now,
	}
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	return r.load(ctx, r.db, id, false)
}

func (r *MySQLOrderRepository) FindOrderIDByDeliveryRecordID(ctx context.Context, recordID string) (uint, error) {
	return r.deliveries.FindOrderID(ctx, r.db, recordID)
}

func (r *MySQLOrderRepository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := newOrderRow(order)
	result, err := tx.ExecContext(ctx, `
		INSERT INTO Orders (userId, status, pauseReason, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?)
	`, row.UserID, row.Status, row.PauseReason, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting last insert id: %w", err)
	}
	id := uint(lastInsertID)

	if _, err := tx.ExecContext(ctx, `UPDATE Orders SET customOrderId = ? WHERE id = ?`, CustomOrderID(id), id); err != nil {
		return nil, fmt.Errorf("setting custom order id: %w", err)
	}

	for _, item := range order.Items {
		item.OrderID = id
		if _, err := r.items.Insert(ctx, tx, item); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return r.FindByID(ctx, id)
}

// Mutate loads the order under SELECT ... FOR UPDATE, so concurrent
// mutations of one order are serialized, applies fn to a copy and writes back
// only what changed. An error from fn rolls everything back.
func (r *MySQLOrderRepository) Mutate(ctx context.Context, id uint, fn func(order *domain.Order) error) (*domain.Order, error) {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	before, err := r.load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	after := before.Clone()
	if err := fn(after); err != nil {
		return nil, err
	}

	changes := diffOrder(before, after)
	if !changes.empty() {
		after.UpdatedAt = r.now().UTC()
		changes.header = true
		if err := r.persist(ctx, tx, after, changes); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	committed = true

	return after, nil
}

func (r *MySQLOrderRepository) load(ctx context.Context, q sqlx.QueryerContext, id uint, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row orderRow
	err := sqlx.GetContext(ctx, q, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	order := row.toDomain()

	if order.Items, err = r.items.ListByOrderID(ctx, q, id); err != nil {
		return nil, err
	}
	if order.Adjustments, err = r.adjustments.ListByOrderID(ctx, q, id); err != nil {
		return nil, err
	}
	if order.Deliveries, err = r.deliveries.ListByOrderID(ctx, q, id); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *MySQLOrderRepository) persist(ctx context.Context, tx *sqlx.Tx, order *domain.Order, changes orderChanges) error {
	if changes.header {
		if err := r.updateHeader(ctx, tx, order); err != nil {
			return err
		}
	}

	for _, item := range changes.items {
		if err := r.items.UpdateQuantityDelivered(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := r.deliveries.Delete(ctx, tx, order.ID, changes.deleteDeliveryIDs); err != nil {
		return err
	}
	if err := r.deliveries.InsertBatch(ctx, tx, changes.insertDeliveries); err != nil {
		return err
	}

	if err := r.adjustments.Delete(ctx, tx, order.ID, changes.deleteAdjustments); err != nil {
		return err
	}
	for _, adj := range changes.insertAdjustments {
		if err := r.adjustments.Insert(ctx, tx, adj); err != nil {
			return err
		}
	}
	return r.adjustments.Lock(ctx, tx, order.ID, changes.lockAdjustments)
}

func (r *MySQLOrderRepository) updateHeader(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
	query := `
		UPDATE Orders
		SET status = :status, pauseReason = :pauseReason,
		    agentName = :agentName, agentMobile = :agentMobile,
		    agentDescription = :agentDescription, agentAddress = :agentAddress,
		    deliveredAt = :deliveredAt, updatedAt = :updatedAt
		WHERE id = :id
	`

	result, err := tx.NamedExecContext(ctx, query, newOrderRow(order))
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("order with id %d not found", order.ID))
	}

	return nil
}
