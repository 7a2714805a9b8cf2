package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abdelhadiDevWeb/labocart/internal/domain"
)

// AllCategories selects every category in a Query.
const AllCategories = "all"

var ErrProductNotFound = errors.New("product not found")

// Catalog is a read-only list of laboratory services.
type Catalog interface {
	All(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	Search(ctx context.Context, q Query) ([]domain.Product, error)
	// Categories lists distinct categories in catalog order, led by AllCategories.
	Categories(ctx context.Context) ([]string, error)
	Close() error
}

// Query filters products. Text matches name or description, ignoring case;
// Category must match exactly unless empty or AllCategories.
type Query struct {
	Text     string
	Category string
}

func (q Query) byCategory() bool {
	return q.Category != "" && q.Category != AllCategories
}

func (q Query) Match(p domain.Product) bool {
	if q.byCategory() && p.Category != q.Category {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), text) ||
		strings.Contains(strings.ToLower(p.Description), text)
}

func filter(products []domain.Product, q Query) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func categories(products []domain.Product) []string {
	seen := make(map[string]bool)
	out := []string{AllCategories}
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Comparison puts two products side by side.
type Comparison struct {
	Left  domain.Product `json:"left"`
	Right domain.Product `json:"right"`
}

func Compare(ctx context.Context, c Catalog, id1, id2 int64) (Comparison, error) {
	left, err := c.Get(ctx, id1)
	if err != nil {
		return Comparison{}, fmt.Errorf("compare %d: %w", id1, err)
	}
	right, err := c.Get(ctx, id2)
	if err != nil {
		return Comparison{}, fmt.Errorf("compare %d: %w", id2, err)
	}
	return Comparison{Left: left, Right: right}, nil
}
