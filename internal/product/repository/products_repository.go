package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"orderflow/internal/domain"
)

type productRow struct {
	ID          int            `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Unit        string         `db:"unit"`
	Price       float64        `db:"price"`
	Category    string         `db:"category"`
	IsActive    bool           `db:"isActive"`
	IsDeleted   bool           `db:"isDeleted"`
	CreatedAt   time.Time      `db:"createdAt"`
	UpdatedAt   time.Time      `db:"updatedAt"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		Unit:        r.Unit,
		Price:       r.Price,
		Category:    r.Category,
		IsActive:    r.IsActive,
		IsDeleted:   r.IsDeleted,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type MySQLRepository struct {
	db *sqlx.DB
}

func NewMySQLRepository(db *sqlx.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// FindByIDs returns the non-deleted products among ids, ordered by id.
// Inactive products are returned so callers can tell them from unknown ids.
func (r *MySQLRepository) FindByIDs(ctx context.Context, ids []int) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, name, description, unit, price, category,
		       isActive, isDeleted, createdAt, updatedAt
		FROM Product
		WHERE id IN (?)
		  AND isDeleted = 0
		ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("building products query: %w", err)
	}

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}

	products := make([]domain.Product, len(rows))
	for i, row := range rows {
		products[i] = row.toDomain()
	}
	return products, nil
}
