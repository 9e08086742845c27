package product

import (
	"context"

	"orderflow/internal/domain"
)

type SearchUseCase interface {
	SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error)
}

type Service interface {
	GetProductsByIDs(ctx context.Context, ids []int) (found []domain.Product, notFoundIDs []int, err error)
}

type Repository interface {
	FindByIDs(ctx context.Context, ids []int) ([]domain.Product, error)
}
