// Package parser validates and normalizes raw shop response records.
package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/idealinvestse/shoppi-shop-finder/models"
)

// Validate checks a raw record for the required fields and value ranges.
// Rejections are per-record and non-fatal; sibling records still go through.
func Validate(raw models.RawProduct) error {
	if raw == nil {
		return fmt.Errorf("record is nil")
	}
	for _, key := range []string{"name", "price", "stock"} {
		if _, ok := raw[key]; !ok {
			return fmt.Errorf("record missing %s", key)
		}
	}

	name, ok := raw["name"].(string)
	if !ok {
		return fmt.Errorf("name is not a string")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("record missing name")
	}

	price, err := toFloat(raw["price"])
	if err != nil {
		return fmt.Errorf("price for %q: %w", name, err)
	}
	if price < 0 {
		return fmt.Errorf("negative price for %q", name)
	}

	stock, err := toInt(raw["stock"])
	if err != nil {
		return fmt.Errorf("stock for %q: %w", name, err)
	}
	if stock < 0 {
		return fmt.Errorf("negative stock for %q", name)
	}

	return nil
}

// Build validates raw and produces a normalized product: trimmed strings,
// price rounded to two decimals, DiscoveredAt stamped with now.
func Build(shop string, raw models.RawProduct, now time.Time) (*models.Product, error) {
	if strings.TrimSpace(shop) == "" {
		return nil, fmt.Errorf("shop name cannot be empty")
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(raw["name"].(string))
	price, _ := toFloat(raw["price"])
	stock, _ := toInt(raw["stock"])

	return &models.Product{
		ShopName:     strings.TrimSpace(shop),
		ProductName:  name,
		Price:        RoundPrice(price),
		Stock:        stock,
		DiscoveredAt: now,
	}, nil
}

// RoundPrice normalizes a price to two decimal places.
func RoundPrice(price float64) float64 {
	return math.Round(price*100) / 100
}

// toFloat coerces JSON-decoded values the way the upstream API emits them:
// numbers, json.Number, or numeric strings.
func toFloat(v any) (float64, error) {
	switch value := v.(type) {
	case float64:
		return value, nil
	case float32:
		return float64(value), nil
	case int:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case json.Number:
		return value.Float64()
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", value)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}

func toInt(v any) (int, error) {
	switch value := v.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if value != math.Trunc(value) {
			return 0, fmt.Errorf("not an integer: %v", value)
		}
		return int(value), nil
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", value)
		}
		return int(parsed), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", value)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}
