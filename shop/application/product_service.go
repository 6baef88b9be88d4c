package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 100
)

// ProductFields are the raw form values of a create or update request.
// A nil field was not sent.
type ProductFields struct {
	Name             *string
	ShortDescription *string
	Price            *string
}

// ListParams are the raw query parameters of a product listing
type ListParams struct {
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []*domain.Product
	Page     int
	Limit    int
	Total    int
	Pages    int
}

// ProductService keeps product records and their image blobs consistent.
// A record mutation is the commit point: blobs rejected before it are removed before
// returning, blobs retired after it are removed best-effort.
type ProductService struct {
	repo  domain.ProductRepository
	blobs domain.BlobStore

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewProductService(repo domain.ProductRepository, blobs domain.BlobStore) *ProductService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProductService{
		repo:   repo,
		blobs:  blobs,
		ctx:    ctx,
		cancel: cancel,
		wg:     &sync.WaitGroup{},
	}
}

// Close stops background workers and waits for them to exit
func (s *ProductService) Close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

// Create validates fields and inserts a product that owns upload.
// On any failure upload is deleted, so a rejected request leaves no file behind.
func (s *ProductService) Create(ctx context.Context, fields ProductFields, upload *domain.Upload) (*domain.Product, error) {
	name := trimmed(fields.Name)
	description := trimmed(fields.ShortDescription)
	rawPrice := trimmed(fields.Price)

	missing := make(map[string]string)
	if name == "" {
		missing["name"] = "Product name is required"
	}
	if description == "" {
		missing["shortDescription"] = "Short description is required"
	}
	if rawPrice == "" {
		missing["price"] = "Price is required"
	}
	if len(missing) > 0 {
		s.discardUpload(ctx, upload)
		return nil, &domain.ValidationError{Message: "All fields are required", Fields: missing}
	}

	if upload == nil {
		return nil, domain.NewValidationError("Product image is required", "image", "Please upload an image file")
	}

	price, err := parsePrice(rawPrice)
	if err != nil {
		s.discardUpload(ctx, upload)
		return nil, err
	}

	if fieldErrs := checkLengths(&name, &description); len(fieldErrs) > 0 {
		s.discardUpload(ctx, upload)
		return nil, &domain.ValidationError{Message: "Validation error", Fields: fieldErrs}
	}

	product := &domain.Product{
		Name:             name,
		ShortDescription: description,
		Price:            price,
		Image:            upload.Path,
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		s.discardUpload(ctx, upload)
		return nil, classify("create product", err)
	}

	log.Info().Str("productID", product.ID).Str("image", product.Image).Msg("Created product")
	return product, nil
}

// Update applies the sent fields to product id, replacing its image when upload is set.
// The update is all-or-nothing: on failure upload is deleted and the stored record and
// its image are untouched. Order on success: the row commits first, then the replaced
// image is deleted; a failed delete is logged and the file is left for the orphan sweeper.
func (s *ProductService) Update(ctx context.Context, id string, fields ProductFields, upload *domain.Upload) (*domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		s.discardUpload(ctx, upload)
		return nil, classify("get product", err)
	}

	var changes domain.ProductChanges
	fieldErrs := make(map[string]string)

	if fields.Name != nil {
		name := trimmed(fields.Name)
		if name == "" {
			fieldErrs["name"] = "Product name is required"
		}
		changes.Name = &name
	}
	if fields.ShortDescription != nil {
		description := trimmed(fields.ShortDescription)
		if description == "" {
			fieldErrs["shortDescription"] = "Short description is required"
		}
		changes.ShortDescription = &description
	}
	for field, reason := range checkLengths(changes.Name, changes.ShortDescription) {
		fieldErrs[field] = reason
	}

	if fields.Price != nil {
		price, err := parsePrice(trimmed(fields.Price))
		if err != nil {
			s.discardUpload(ctx, upload)
			return nil, err
		}
		changes.Price = &price
	}

	if len(fieldErrs) > 0 {
		s.discardUpload(ctx, upload)
		return nil, &domain.ValidationError{Message: "Validation error", Fields: fieldErrs}
	}

	if upload != nil {
		changes.Image = &upload.Path
	}

	updated, err := s.repo.UpdateProduct(ctx, id, existing.Version, changes)
	if err != nil {
		s.discardUpload(ctx, upload)
		return nil, classify("update product", err)
	}

	if upload != nil && existing.Image != upload.Path {
		s.retireBlob(ctx, existing.Image)
	}

	log.Info().Str("productID", id).Int("version", updated.Version).Bool("imageReplaced", upload != nil).Msg("Updated product")
	return updated, nil
}

// Delete removes product id and then, best-effort, its image
func (s *ProductService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return classify("delete product", err)
	}

	s.retireBlob(ctx, deleted.Image)

	log.Info().Str("productID", id).Msg("Deleted product")
	return nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, classify("get product", err)
	}
	return p, nil
}

// List returns a page of products. Defaults: newest first, page 1, 100 per page.
func (s *ProductService) List(ctx context.Context, params ListParams) (*ProductPage, error) {
	q := domain.ListQuery{
		Search: strings.TrimSpace(params.Search),
		SortBy: domain.SortByCreatedAt,
	}

	switch sortBy := domain.SortField(params.SortBy); sortBy {
	case "":
	case domain.SortByCreatedAt, domain.SortByUpdatedAt, domain.SortByPrice, domain.SortByName:
		q.SortBy = sortBy
	default:
		return nil, domain.NewValidationError("Invalid sort field", "sortBy", fmt.Sprintf("cannot sort by %q", params.SortBy))
	}
	q.Ascending = strings.EqualFold(params.SortOrder, "asc")

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page-1 > math.MaxInt/limit {
		return nil, domain.NewValidationError("Invalid page", "page", "page is out of range")
	}
	q.Limit = limit
	q.Offset = (page - 1) * limit

	products, total, err := s.repo.ListProducts(ctx, q)
	if err != nil {
		return nil, classify("list products", err)
	}

	return &ProductPage{
		Products: products,
		Page:     page,
		Limit:    limit,
		Total:    total,
		Pages:    (total + limit - 1) / limit,
	}, nil
}

// discardUpload removes a blob that never became owned by a record.
// It runs before the error is returned to the caller.
func (s *ProductService) discardUpload(ctx context.Context, upload *domain.Upload) {
	if upload == nil {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), upload.Path); err != nil {
		log.Error().Err(err).Str("image", upload.Path).Msg("Failed to delete rejected upload")
		return
	}
	log.Debug().Str("image", upload.Path).Msg("Deleted rejected upload")
}

// retireBlob removes a blob whose record already let go of it. Failure only leaves an orphan.
func (s *ProductService) retireBlob(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		log.Warn().Err(err).Str("image", ref).Msg("Failed to delete retired image")
		return
	}
	log.Debug().Str("image", ref).Msg("Deleted retired image")
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// parsePrice accepts finite, non-negative decimal numbers
func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, domain.NewValidationError("Invalid price", "price", "Price must be a positive number")
	}
	return price, nil
}

func checkLengths(name, description *string) map[string]string {
	fieldErrs := make(map[string]string)
	if name != nil && utf8.RuneCountInString(*name) > domain.MaxNameLength {
		fieldErrs["name"] = fmt.Sprintf("Product name cannot exceed %d characters", domain.MaxNameLength)
	}
	if description != nil && utf8.RuneCountInString(*description) > domain.MaxShortDescriptionLength {
		fieldErrs["shortDescription"] = fmt.Sprintf("Description cannot exceed %d characters", domain.MaxShortDescriptionLength)
	}
	return fieldErrs
}

// classify passes typed domain errors through and wraps everything else as a StorageError
func classify(op string, err error) error {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		conflict   *domain.ConflictError
	)
	if errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &conflict) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}

// SweepOrphans deletes blobs that no product references and that are older than grace.
// The grace period keeps uploads of in-flight requests safe.
func (s *ProductService) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list blobs: %w", err)
	}

	refs, err := s.repo.ImageRefs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list image references: %w", err)
	}

	cutoff := time.Now().Add(-grace)
	removed := 0
	for _, b := range blobs {
		if _, ok := refs[b.Ref]; ok {
			continue
		}
		if b.ModTime.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.blobs.Delete(ctx, b.Ref); err != nil {
			log.Warn().Err(err).Str("image", b.Ref).Msg("Failed to delete orphaned image")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Swept orphaned images")
	}
	return removed, nil
}

// StartSweeper runs SweepOrphans every interval until Close is called
func (s *ProductService) StartSweeper(interval, grace time.Duration) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOrphans(s.ctx, grace); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("Orphan sweep failed")
				}
			}
		}
	}()
}
