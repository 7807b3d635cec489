// Package catalog loads and queries a harvested product catalog CSV.
package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/idealinvestse/shoppi-shop-finder/models"
)

// Load reads a catalog CSV produced by the finder. Rows that fail to parse
// are skipped with a warning so one bad line cannot hide the rest of the
// catalog.
func Load(path string) ([]models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range models.CatalogHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("catalog missing column %q", name)
		}
	}

	var products []models.Product
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			slog.Warn("skipping malformed row", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		p, err := parseRow(record, col)
		if err != nil {
			slog.Warn("skipping invalid row", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func parseRow(record []string, col map[string]int) (models.Product, error) {
	price, err := strconv.ParseFloat(record[col["price"]], 64)
	if err != nil {
		return models.Product{}, fmt.Errorf("price: %w", err)
	}
	stock, err := strconv.Atoi(record[col["stock"]])
	if err != nil {
		return models.Product{}, fmt.Errorf("stock: %w", err)
	}
	discovered, err := time.Parse(time.RFC3339, record[col["discovered_at"]])
	if err != nil {
		return models.Product{}, fmt.Errorf("discovered_at: %w", err)
	}
	return models.Product{
		ShopName:     record[col["shop_name"]],
		ProductName:  record[col["product_name"]],
		Price:        price,
		Stock:        stock,
		DiscoveredAt: discovered,
	}, nil
}

// Query describes a catalog search. Zero-valued bounds are inactive;
// MaxPrice and MaxStock use -1 for "no upper bound" so that 0 remains a
// usable limit.
type Query struct {
	Search   string
	Shop     string
	MinPrice float64
	MaxPrice float64
	MinStock int
	MaxStock int
	SortBy   string
	Limit    int
}

// Filter applies the query to the products and returns the matches sorted
// and truncated per the query. A leading "-" on SortBy reverses the order.
func Filter(products []models.Product, q Query) []models.Product {
	results := make([]models.Product, 0, len(products))

	search := strings.ToLower(q.Search)
	shop := strings.ToLower(q.Shop)
	for _, p := range products {
		if search != "" {
			haystack := strings.ToLower(p.ShopName + " " + p.ProductName)
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		if shop != "" && !strings.Contains(strings.ToLower(p.ShopName), shop) {
			continue
		}
		if p.Price < q.MinPrice {
			continue
		}
		if q.MaxPrice >= 0 && p.Price > q.MaxPrice {
			continue
		}
		if p.Stock < q.MinStock {
			continue
		}
		if q.MaxStock >= 0 && p.Stock > q.MaxStock {
			continue
		}
		results = append(results, p)
	}

	sortBy := q.SortBy
	reverse := false
	if strings.HasPrefix(sortBy, "-") {
		reverse = true
		sortBy = sortBy[1:]
	}
	var less func(a, b models.Product) bool
	switch sortBy {
	case "price":
		less = func(a, b models.Product) bool { return a.Price < b.Price }
	case "stock":
		less = func(a, b models.Product) bool { return a.Stock < b.Stock }
	case "shop":
		less = func(a, b models.Product) bool {
			return strings.ToLower(a.ShopName) < strings.ToLower(b.ShopName)
		}
	case "discovered":
		less = func(a, b models.Product) bool { return a.DiscoveredAt.Before(b.DiscoveredAt) }
	default:
		less = func(a, b models.Product) bool {
			return strings.ToLower(a.ProductName) < strings.ToLower(b.ProductName)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if reverse {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results
}

// Stats summarises a catalog.
type Stats struct {
	TotalProducts int
	TotalShops    int
	TopShops      []ShopCount
	MinPrice      float64
	MaxPrice      float64
	AvgPrice      float64
	MinStock      int
	MaxStock      int
	AvgStock      float64
	TotalStock    int
}

// ShopCount pairs a shop with its product count.
type ShopCount struct {
	Shop  string
	Count int
}

// Summarize computes catalog statistics. The top-shops list holds at most
// ten entries, largest first.
func Summarize(products []models.Product) Stats {
	if len(products) == 0 {
		return Stats{}
	}

	shops := make(map[string]int)
	s := Stats{
		TotalProducts: len(products),
		MinPrice:      products[0].Price,
		MaxPrice:      products[0].Price,
		MinStock:      products[0].Stock,
		MaxStock:      products[0].Stock,
	}
	var priceSum float64
	for _, p := range products {
		shops[p.ShopName]++
		priceSum += p.Price
		s.TotalStock += p.Stock
		if p.Price < s.MinPrice {
			s.MinPrice = p.Price
		}
		if p.Price > s.MaxPrice {
			s.MaxPrice = p.Price
		}
		if p.Stock < s.MinStock {
			s.MinStock = p.Stock
		}
		if p.Stock > s.MaxStock {
			s.MaxStock = p.Stock
		}
	}
	s.TotalShops = len(shops)
	s.AvgPrice = priceSum / float64(len(products))
	s.AvgStock = float64(s.TotalStock) / float64(len(products))

	s.TopShops = make([]ShopCount, 0, len(shops))
	for shop, count := range shops {
		s.TopShops = append(s.TopShops, ShopCount{Shop: shop, Count: count})
	}
	sort.Slice(s.TopShops, func(i, j int) bool {
		if s.TopShops[i].Count != s.TopShops[j].Count {
			return s.TopShops[i].Count > s.TopShops[j].Count
		}
		return s.TopShops[i].Shop < s.TopShops[j].Shop
	})
	if len(s.TopShops) > 10 {
		s.TopShops = s.TopShops[:10]
	}
	return s
}

// ExportCSV writes the products with the standard catalog header.
func ExportCSV(w io.Writer, products []models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.CatalogHeader); err != nil {
		return err
	}
	for i := range products {
		if err := cw.Write(products[i].Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes the products as an indented JSON array.
func ExportJSON(w io.Writer, products []models.Product) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(products)
}

var htmlTemplate = template.Must(template.New("catalog").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Product Catalog</title>
<style>
body{font-family:Arial,sans-serif;margin:20px;background:#f5f5f5}
.container{max-width:1200px;margin:0 auto;background:white;padding:20px}
table{width:100%;border-collapse:collapse;margin:20px 0}
th{background:#007bff;color:white;padding:10px;text-align:left}
td{padding:8px;border-bottom:1px solid #ddd}
.price{text-align:right;font-weight:bold;color:#28a745}
.shop{color:#007bff}
.low-stock{color:#dc3545}
</style>
</head>
<body>
<div class="container">
<h1>Product Catalog ({{len .}} products)</h1>
<table>
<tr><th>Shop</th><th>Product</th><th>Price</th><th>Stock</th><th>Date</th></tr>
{{range .}}<tr><td class="shop">{{.ShopName}}</td><td>{{.ProductName}}</td><td class="price">{{printf "%.2f" .Price}} kr</td><td class="stock{{if lt .Stock 5}} low-stock{{end}}">{{.Stock}}</td><td>{{.DiscoveredAt.Format "2006-01-02"}}</td></tr>
{{end}}</table>
</div>
</body>
</html>`))

// ExportHTML renders a standalone HTML table of the products.
func ExportHTML(w io.Writer, products []models.Product) error {
	return htmlTemplate.Execute(w, products)
}
