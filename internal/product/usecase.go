package product

import (
	"context"

	"orderflow/internal/dto"
)

type searchUseCase struct {
	service Service
}

func NewSearchUseCase(service Service) SearchUseCase {
	return &searchUseCase{service: service}
}

func (uc *searchUseCase) SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error) {
	found, notFoundIDs, err := uc.service.GetProductsByIDs(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}

	products := make([]ProductDTO, 0, len(found))
	for _, p := range found {
		products = append(products, ProductDTO{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Unit:         p.Unit,
			Price:        p.Price,
			PriceDisplay: dto.FormatMoney(p.Price),
			Category:     p.Category,
			IsActive:     p.IsOrderable(),
		})
	}

	if notFoundIDs == nil {
		notFoundIDs = []int{}
	}

	return &SearchProductsResponse{
		Products: products,
		NotFound: notFoundIDs,
	}, nil
}
