// Package models defines data structures for the shop finder.
package models

import (
	"strconv"
	"time"
)

// Product is a single validated catalog entry. Instances are built by the
// parser package and are immutable afterwards.
type Product struct {
	ShopName     string    `csv:"shop_name" json:"shop_name"`
	ProductName  string    `csv:"product_name" json:"product_name"`
	Price        float64   `csv:"price" json:"price"`
	Stock        int       `csv:"stock" json:"stock"`
	DiscoveredAt time.Time `csv:"discovered_at" json:"discovered_at"`
}

// CatalogHeader is the column order used by every tabular catalog sink.
var CatalogHeader = []string{"shop_name", "product_name", "price", "stock", "discovered_at"}

// Record renders the product as a CSV row matching CatalogHeader.
func (p *Product) Record() []string {
	return []string{
		p.ShopName,
		p.ProductName,
		strconv.FormatFloat(p.Price, 'f', 2, 64),
		strconv.Itoa(p.Stock),
		p.DiscoveredAt.Format(time.RFC3339),
	}
}

// Key identifies a product within its shop, used for de-duplication.
func (p *Product) Key() string {
	return p.ShopName + "\x00" + p.ProductName
}

// RawProduct is one unvalidated record as decoded from a shop response.
type RawProduct map[string]any
