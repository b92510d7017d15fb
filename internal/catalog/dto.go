package catalog

// CreateProductRequest carries the fields for a new product.
type CreateProductRequest struct {
	SKU         string  `json:"sku" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=100"`
}

// UpdateProductRequest mutates product master data. Stock is never edited
// through this path; it moves only via the ledger and order confirmation.
type UpdateProductRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Cost        *float64 `json:"cost,omitempty" validate:"omitempty,gte=0"`
	TaxRate     *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// ListProductsRequest filters the catalog listing.
type ListProductsRequest struct {
	CompanyID int64
	Search    string
	IsActive  *bool
	Limit     int
	Offset    int
}
