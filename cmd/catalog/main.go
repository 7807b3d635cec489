package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/idealinvestse/shoppi-shop-finder/catalog"
	"github.com/idealinvestse/shoppi-shop-finder/models"
)

func main() {
	search := flag.String("search", "", "Substring match against shop and product names")
	shop := flag.String("shop", "", "Filter by shop name substring")
	minPrice := flag.Float64("min-price", 0, "Minimum price")
	maxPrice := flag.Float64("max-price", -1, "Maximum price (-1 for no bound)")
	minStock := flag.Int("min-stock", 0, "Minimum stock")
	maxStock := flag.Int("max-stock", -1, "Maximum stock (-1 for no bound)")
	sortBy := flag.String("sort", "product_name", "Sort field: product_name, shop, price, stock, discovered (prefix with - to reverse)")
	limit := flag.Int("limit", 0, "Limit results (0 for all)")
	stats := flag.Bool("stats", false, "Show catalog statistics and exit")
	compact := flag.Bool("compact", false, "One line per product")
	export := flag.String("export", "", "Export results to file")
	exportFormat := flag.String("format", "csv", "Export format: csv, json, or html")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <catalog.csv>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	products, err := catalog.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d products from catalog\n", len(products))

	if *stats {
		printStatistics(catalog.Summarize(products))
		return
	}

	results := catalog.Filter(products, catalog.Query{
		Search:   *search,
		Shop:     *shop,
		MinPrice: *minPrice,
		MaxPrice: *maxPrice,
		MinStock: *minStock,
		MaxStock: *maxStock,
		SortBy:   *sortBy,
		Limit:    *limit,
	})
	printResults(results, *compact)

	if *export != "" {
		if err := exportResults(results, *export, *exportFormat); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d products to %s\n", len(results), *export)
	}
}

func printResults(results []models.Product, compact bool) {
	if len(results) == 0 {
		fmt.Println("\nNo products found matching your criteria.")
		return
	}
	fmt.Printf("\nFound %d products\n\n", len(results))

	if compact {
		fmt.Printf("%-5s %-20s %-40s %12s %8s\n", "#", "Shop", "Product", "Price", "Stock")
		fmt.Println(strings.Repeat("-", 90))
		for i, p := range results {
			fmt.Printf("%-5d %-20s %-40s %11.2fkr %7d\n",
				i+1, truncate(p.ShopName, 20), truncate(p.ProductName, 40), p.Price, p.Stock)
		}
		return
	}

	sep := strings.Repeat("=", 80)
	for i, p := range results {
		fmt.Printf("\n%s\n[%d] %s\n%s\n", sep, i+1, p.ProductName, sep)
		fmt.Printf("Shop:       %s\n", p.ShopName)
		fmt.Printf("Price:      %.2f kr\n", p.Price)
		fmt.Printf("Stock:      %d units\n", p.Stock)
		fmt.Printf("Discovered: %s\n", p.DiscoveredAt.Format("2006-01-02 15:04:05"))
	}
}

func printStatistics(s catalog.Stats) {
	sep := strings.Repeat("=", 80)
	fmt.Println("\n" + sep)
	fmt.Println("CATALOG STATISTICS")
	fmt.Println(sep)

	fmt.Printf("\nProducts:  %d\n", s.TotalProducts)
	fmt.Printf("Shops:     %d\n", s.TotalShops)

	fmt.Println("\nPrice Range:")
	fmt.Printf("   Min:  %10.2f kr\n", s.MinPrice)
	fmt.Printf("   Avg:  %10.2f kr\n", s.AvgPrice)
	fmt.Printf("   Max:  %10.2f kr\n", s.MaxPrice)

	fmt.Println("\nStock:")
	fmt.Printf("   Total: %10d units\n", s.TotalStock)
	fmt.Printf("   Min:   %10d units\n", s.MinStock)
	fmt.Printf("   Avg:   %10.1f units\n", s.AvgStock)
	fmt.Printf("   Max:   %10d units\n", s.MaxStock)

	fmt.Println("\nTop Shops by Product Count:")
	for i, sc := range s.TopShops {
		fmt.Printf("   %2d. %-30s %6d products\n", i+1, sc.Shop, sc.Count)
	}
	fmt.Println("\n" + sep)
}

func exportResults(results []models.Product, path, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "json":
		return catalog.ExportJSON(f, results)
	case "html":
		return catalog.ExportHTML(f, results)
	case "csv":
		return catalog.ExportCSV(f, results)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
