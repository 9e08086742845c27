package product

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"orderflow/internal/product/repository"
)

// NewModule wires the catalog search endpoint and returns the repository so
// the order module can resolve products when an order is placed.
func NewModule(db *sqlx.DB, logger *zap.Logger) (*Controller, *repository.MySQLRepository) {
	repo := repository.NewMySQLRepository(db)
	svc := NewService(repo)
	uc := NewSearchUseCase(svc)
	return NewController(uc, logger), repo
}
