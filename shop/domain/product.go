package domain

import (
	"context"
	"time"
)

const (
	MaxNameLength             = 200
	MaxShortDescriptionLength = 500
)

// Product is a catalog entry. Image is the public reference of the blob that the product owns,
// e.g. "/uploads/1718000000000-3f2a9c.png".
type Product struct {
	ID               string
	Name             string
	ShortDescription string
	Price            float64
	Image            string
	Version          int
	UpdatedAt        time.Time
	CreatedAt        time.Time
}

// ProductChanges holds the fields of an update; nil means leave unchanged.
type ProductChanges struct {
	Name             *string
	ShortDescription *string
	Price            *float64
	Image            *string
}

// SortField names the columns products can be ordered by
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
	SortByPrice     SortField = "price"
	SortByName      SortField = "name"
)

// ListQuery selects a page of products
type ListQuery struct {
	Search    string
	SortBy    SortField
	Ascending bool
	Limit     int
	Offset    int
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, q ListQuery) ([]*Product, int, error)

	// UpdateProduct applies changes only if the stored version still equals expectedVersion.
	// It returns NotFoundError when the row is gone and ConflictError when the version moved.
	UpdateProduct(ctx context.Context, id string, expectedVersion int, changes ProductChanges) (*Product, error)
	// DeleteProduct removes the product and returns the removed record
	DeleteProduct(ctx context.Context, id string) (*Product, error)

	// ImageRefs returns the set of image references held by all products
	ImageRefs(ctx context.Context) (map[string]struct{}, error)
}
