package product

import (
	"context"

	"orderflow/internal/domain"
)

type productService struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &productService{repo: repo}
}

// GetProductsByIDs looks each distinct id up once. Missing ids are reported
// in request order.
func (s *productService) GetProductsByIDs(ctx context.Context, ids []int) ([]domain.Product, []int, error) {
	unique := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	found, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, nil, err
	}

	for _, p := range found {
		delete(seen, p.ID)
	}

	var missing []int
	for _, id := range unique {
		if seen[id] {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}
