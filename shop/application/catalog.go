package application

import (
	"slices"
	"strings"

	"github.com/dfryer1193/storefront/shop/domain"
)

// PriceSort orders an already fetched result set
type PriceSort string

const (
	SortNone      PriceSort = "none"
	SortPriceAsc  PriceSort = "price-asc"
	SortPriceDesc PriceSort = "price-desc"
)

// Filter narrows and orders products on the client side
type Filter struct {
	Query string
	Sort  PriceSort
}

// ApplyFilter returns the products whose name contains the query, ignoring case,
// in the requested price order. Equal prices keep their input order.
// The input slice is never modified.
func ApplyFilter(products []*domain.Product, f Filter) []*domain.Product {
	q := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}

	switch f.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b *domain.Product) int { return cmpPrice(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b *domain.Product) int { return cmpPrice(b.Price, a.Price) })
	}

	return out
}

func cmpPrice(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
