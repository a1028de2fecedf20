package domain

import (
	"github.com/shopspring/decimal"
)

// Product represents a sellable item from the local price list
type Product struct {
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	Brand         string          `json:"brand,omitempty"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	ImagePath     string          `json:"imagePath,omitempty"`     // absolute or catalog-relative, resolved at load
	DatasheetPath string          `json:"datasheetPath,omitempty"` // technical sheet (PDF)
}

// Catalog is the ordered price list loaded for one bidding run.
// Products keep file order; codes are unique.
type Catalog struct {
	Source   string    `json:"source"`
	Products []Product `json:"products"`
}

// NewCatalog wraps products loaded from source
func NewCatalog(source string, products []Product) *Catalog {
	return &Catalog{Source: source, Products: products}
}

// Len returns the number of products in the catalog
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}

// Lookup finds a product by its code
func (c *Catalog) Lookup(code string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	for _, p := range c.Products {
		if p.Code == code {
			return p, true
		}
	}
	return Product{}, false
}

// Codes returns product codes in catalog order
func (c *Catalog) Codes() []string {
	if c == nil {
		return nil
	}
	codes := make([]string, 0, len(c.Products))
	for _, p := range c.Products {
		codes = append(codes, p.Code)
	}
	return codes
}
