package client

import (
	"context"
	"sync"
	"time"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/shop/application"
	"github.com/dfryer1193/storefront/shop/domain"
)

// Browser refines a fetched product list locally. Search calls are debounced and
// the filtered result is passed to onResults.
type Browser struct {
	client    *Client
	onResults func([]*domain.Product)
	debouncer *application.Debouncer

	mu       sync.Mutex
	products []*domain.Product
	filter   application.Filter
}

func NewBrowser(c *Client, delay time.Duration, onResults func([]*domain.Product)) *Browser {
	b := &Browser{
		client:    c,
		onResults: onResults,
		filter:    application.Filter{Sort: application.SortNone},
	}
	b.debouncer = application.NewDebouncer(delay, b.emit)
	return b
}

// Load fetches products from the server and emits them with the current filter applied
func (b *Browser) Load(ctx context.Context, q api.ProductQuery) error {
	list, err := b.client.ListProducts(ctx, q)
	if err != nil {
		return err
	}

	products := make([]*domain.Product, 0, len(list.Products))
	for _, p := range list.Products {
		products = append(products, fromAPI(p))
	}

	b.mu.Lock()
	b.products = products
	b.mu.Unlock()

	b.emit()
	return nil
}

// Search sets the filter and emits once typing settles
func (b *Browser) Search(query string, sort application.PriceSort) {
	b.mu.Lock()
	b.filter = application.Filter{Query: query, Sort: sort}
	b.mu.Unlock()

	b.debouncer.Trigger()
}

func (b *Browser) Close() {
	b.debouncer.Stop()
}

func (b *Browser) emit() {
	b.mu.Lock()
	result := application.ApplyFilter(b.products, b.filter)
	b.mu.Unlock()

	if b.onResults != nil {
		b.onResults(result)
	}
}

func fromAPI(p api.Product) *domain.Product {
	return &domain.Product{
		ID:               p.ID,
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		Price:            p.Price,
		Image:            p.Image,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
