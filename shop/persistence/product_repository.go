package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/storefront/shared/db"
	"github.com/dfryer1193/storefront/shared/db/sqlite"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/google/uuid"
)

var _ domain.ProductRepository = (*SQLiteProductRepository)(nil)

const defaultListLimit = 100

// SQLiteProductRepository implements domain.ProductRepository using SQL database (SQLite)
type SQLiteProductRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewProductRepository creates a new SQLiteProductRepository from a standard sql.DB
func NewProductRepository(sqlDB *sql.DB) *SQLiteProductRepository {
	return &SQLiteProductRepository{
		db:  sqlDB,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const insertProductQuery = `
	INSERT INTO products (id, name, short_description, price, image, version, updated_at, created_at)
	VALUES (?, ?, ?, ?, ?, 1, ?, ?)
`

// CreateProduct assigns ID, version and timestamps, then inserts the product
func (r *SQLiteProductRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p == nil {
		return fmt.Errorf("product cannot be nil")
	}

	if p.Image == "" {
		return fmt.Errorf("product image cannot be empty")
	}

	now := r.now()
	id := uuid.NewString()

	executor := db.GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, insertProductQuery,
		id,
		p.Name,
		p.ShortDescription,
		p.Price,
		p.Image,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	p.ID = id
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

const productColumns = `id, name, short_description, price, image, version, updated_at, created_at`

const getProductQuery = `
	SELECT ` + productColumns + `
	FROM products
	WHERE id = ?
`

// GetProduct retrieves a single product by ID
func (r *SQLiteProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("product ID cannot be empty")
	}

	executor := db.GetExecutor(ctx, r.db)

	var row productRow
	err := row.scan(executor.QueryRowContext(ctx, getProductQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return row.toDomain(), nil
}

var sortColumns = map[domain.SortField]string{
	domain.SortByCreatedAt: "created_at",
	domain.SortByUpdatedAt: "updated_at",
	domain.SortByPrice:     "price",
	domain.SortByName:      "name",
}

// ListProducts returns one page of products matching q and the total number of matches.
// Search is a case-insensitive substring match on name or short description, folding
// non-ASCII letters too.
func (r *SQLiteProductRepository) ListProducts(ctx context.Context, q domain.ListQuery) ([]*domain.Product, int, error) {
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = sortColumns[domain.SortByCreatedAt]
	}
	direction := "DESC"
	if q.Ascending {
		direction = "ASC"
	}

	where := ""
	var args []any
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		where = fmt.Sprintf(`WHERE %[1]s(name) LIKE ? ESCAPE '\' OR %[1]s(short_description) LIKE ? ESCAPE '\'`, sqlite.UnicodeLower)
		args = append(args, pattern, pattern)
	}

	executor := db.GetExecutor(ctx, r.db)

	var total int
	if err := executor.QueryRowContext(ctx, "SELECT COUNT(*) FROM products "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// id breaks ties so pages are stable
	query := fmt.Sprintf("SELECT %s FROM products %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?",
		productColumns, where, column, direction, direction)

	rows, err := executor.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		var row productRow
		if err := row.scan(rows); err != nil {
			return nil, 0, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, row.toDomain())
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating product rows: %w", err)
	}

	return products, total, nil
}

// UpdateProduct applies changes guarded by the expected version, bumping the version on success
func (r *SQLiteProductRepository) UpdateProduct(ctx context.Context, id string, expectedVersion int, changes domain.ProductChanges) (*domain.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("product ID cannot be empty")
	}

	sets := []string{"version = version + 1", "updated_at = ?"}
	args := []any{r.now()}

	if changes.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *changes.Name)
	}
	if changes.ShortDescription != nil {
		sets = append(sets, "short_description = ?")
		args = append(args, *changes.ShortDescription)
	}
	if changes.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *changes.Price)
	}
	if changes.Image != nil {
		sets = append(sets, "image = ?")
		args = append(args, *changes.Image)
	}

	query := "UPDATE products SET " + strings.Join(sets, ", ") + " WHERE id = ? AND version = ?"
	args = append(args, id, expectedVersion)

	var updated *domain.Product
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		res, err := executor.ExecContext(txCtx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}

		// GetProduct reports NotFoundError if the row was deleted underneath us
		current, err := r.GetProduct(txCtx, id)
		if err != nil {
			return err
		}

		if affected == 0 {
			return &domain.ConflictError{
				Message: fmt.Sprintf("product %s was modified concurrently (version %d, expected %d)", id, current.Version, expectedVersion),
			}
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

const deleteProductQuery = `
	DELETE FROM products WHERE id = ?
`

// DeleteProduct removes the product row and returns it as it was at deletion time
func (r *SQLiteProductRepository) DeleteProduct(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("product ID cannot be empty")
	}

	var deleted *domain.Product
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		current, err := r.GetProduct(txCtx, id)
		if err != nil {
			return err
		}

		executor := db.GetExecutor(txCtx, r.db)
		if _, err := executor.ExecContext(txCtx, deleteProductQuery, id); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}

		deleted = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

// ImageRefs returns every image reference currently held by a product
func (r *SQLiteProductRepository) ImageRefs(ctx context.Context) (map[string]struct{}, error) {
	executor := db.GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, "SELECT DISTINCT image FROM products")
	if err != nil {
		return nil, fmt.Errorf("failed to list image references: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]struct{})
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan image reference: %w", err)
		}
		refs[ref] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image references: %w", err)
	}

	return refs, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

// productRow is a private struct used to scan database rows
type productRow struct {
	ID               string       `db:"id"`
	Name             string       `db:"name"`
	ShortDescription string       `db:"short_description"`
	Price            float64      `db:"price"`
	Image            string       `db:"image"`
	Version          int          `db:"version"`
	UpdatedAt        sql.NullTime `db:"updated_at"`
	CreatedAt        sql.NullTime `db:"created_at"`
}

func (pr *productRow) scan(s scanner) error {
	return s.Scan(
		&pr.ID,
		&pr.Name,
		&pr.ShortDescription,
		&pr.Price,
		&pr.Image,
		&pr.Version,
		&pr.UpdatedAt,
		&pr.CreatedAt,
	)
}

// toDomain converts a productRow to a domain.Product, handling nullable times
func (pr *productRow) toDomain() *domain.Product {
	p := &domain.Product{
		ID:               pr.ID,
		Name:             pr.Name,
		ShortDescription: pr.ShortDescription,
		Price:            pr.Price,
		Image:            pr.Image,
		Version:          pr.Version,
	}

	if pr.UpdatedAt.Valid {
		p.UpdatedAt = pr.UpdatedAt.Time
	}
	if pr.CreatedAt.Valid {
		p.CreatedAt = pr.CreatedAt.Time
	}

	return p
}
