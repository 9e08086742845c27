package domain

import "time"

// Product is a catalog entry. The catalog is maintained elsewhere; orders
// copy name, unit and price onto their line items when placed.
type Product struct {
	ID          int
	Name        string
	Description string
	Unit        string
	Price       float64
	Category    string
	IsActive    bool
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Product) IsOrderable() bool {
	return p.IsActive && !p.IsDeleted
}
