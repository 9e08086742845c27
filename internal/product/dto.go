package product

type SearchProductsRequest struct {
	ProductIDs []int `json:"productIds" validate:"required,min=1,max=100,dive,gt=0"`
}

type SearchProductsResponse struct {
	Products []ProductDTO `json:"products"`
	NotFound []int        `json:"notFound"`
}

type ProductDTO struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Unit         string  `json:"unit"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"priceDisplay"`
	Category     string  `json:"category"`
	IsActive     bool    `json:"isActive"`
}
