// Package catalog implements the storefront's product operations on top of
// the product store and the remote image host.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-catalog/internal/domain"
	"storefront-catalog/internal/imaging"
	"storefront-catalog/internal/imagestore"
	"storefront-catalog/internal/metrics"
	"storefront-catalog/internal/store"
)

// AllCategories is the category filter value that matches every product.
const AllCategories = "All"

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("catalog: validation failed")
	// ErrNoFreeImageSlot is returned when a product already has five images.
	ErrNoFreeImageSlot = errors.New("catalog: no available image slots")
)

// maxPrice is the largest value a NUMERIC(10,2) column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Normalizer bounds uploaded images before they are sent to the host.
type Normalizer interface {
	Normalize(data []byte, mediaType string) (*imaging.Result, error)
}

// Upload is one image file taken from a request.
type Upload struct {
	Field     string
	Filename  string
	MediaType string
	Data      []byte
}

// ProductInput carries the editable fields of a product. Price is the raw
// form value and is parsed during validation.
type ProductInput struct {
	Name        string
	Intro       string
	Description string
	Price       string
	Category    string
	Published   bool
	SoldOut     bool
	Images      []Upload
}

// UpdateInput is a full update. ExistingImages are references the client
// wants to keep; they are placed after the new uploads.
type UpdateInput struct {
	ProductInput
	ExistingImages []string
}

// StatusInput toggles the published and sold-out flags. Nil leaves a flag alone.
type StatusInput struct {
	Published *bool
	SoldOut   *bool
}

// ListFilter narrows the public listing.
type ListFilter struct {
	Category    string
	InStockOnly bool
}

type productFields struct {
	Name        string `validate:"required,max=255"`
	Category    string `validate:"max=100"`
	Intro       string
	Description string
	Price       decimal.Decimal
}

// Service orchestrates the product store, the normalizer and the image host.
type Service struct {
	products   store.ProductStorer
	images     imagestore.Gateway
	normalizer Normalizer
	sanitizer  *bluemonday.Policy
	validate   *validator.Validate
	log        zerolog.Logger
}

// NewService creates a catalog Service.
func NewService(products store.ProductStorer, images imagestore.Gateway, normalizer Normalizer, log zerolog.Logger) *Service {
	return &Service{
		products:   products,
		images:     images,
		normalizer: normalizer,
		sanitizer:  bluemonday.UGCPolicy(),
		validate:   validator.New(),
		log:        log,
	}
}

// logger prefers the request-scoped logger carried by ctx.
func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

func (s *Service) checkFields(in ProductInput) (*productFields, error) {
	f := &productFields{
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		Intro:       s.sanitizer.Sanitize(in.Intro),
		Description: s.sanitizer.Sanitize(in.Description),
	}
	if f.Category == "" {
		f.Category = domain.DefaultCategory
	}
	if strings.EqualFold(f.Category, AllCategories) {
		return nil, invalid("category", "%q is reserved", AllCategories)
	}
	if err := s.validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.ToLower(fe.Field())
			if fe.Tag() == "required" {
				return nil, invalid(field, "is required")
			}
			return nil, invalid(field, "must be at most %s characters", fe.Param())
		}
		return nil, invalid("", err.Error())
	}

	raw := strings.TrimSpace(in.Price)
	if raw == "" {
		return nil, invalid("price", "is required")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalid("price", "must be a number")
	}
	if price.IsNegative() {
		return nil, invalid("price", "must not be negative")
	}
	price = price.Round(2)
	if price.GreaterThan(maxPrice) {
		return nil, invalid("price", "must not exceed %s", maxPrice.StringFixed(2))
	}
	f.Price = price
	return f, nil
}

// storeImages normalizes and uploads each image in order and returns the URLs
// of the ones that made it. A failing image is logged and skipped.
func (s *Service) storeImages(ctx context.Context, uploads []Upload) []string {
	if len(uploads) > domain.MaxImages {
		s.logger(ctx).Warn().Int("received", len(uploads)).Msg("more images than slots, extra images ignored")
		uploads = uploads[:domain.MaxImages]
	}
	urls := make([]string, 0, len(uploads))
	for _, up := range uploads {
		url, err := s.storeImage(ctx, up)
		if err != nil {
			s.logger(ctx).Error().Err(err).Str("field", up.Field).Str("filename", up.Filename).Msg("image skipped")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func (s *Service) storeImage(ctx context.Context, up Upload) (string, error) {
	res, err := s.normalizer.Normalize(up.Data, up.MediaType)
	metrics.ImageNormalizations.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return "", err
	}
	if res.Quality > 0 {
		s.logger(ctx).Debug().Str("filename", up.Filename).Int("quality", res.Quality).
			Int("bytes", len(res.Data)).Msg("image re-encoded to fit size ceiling")
	}

	url, err := s.images.Upload(ctx, res.Data, res.MediaType)
	metrics.ImageUploads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return "", err
	}
	metrics.ImageBytes.Observe(float64(len(res.Data)))
	return url, nil
}

// deleteImages removes refs from the host, best effort. It returns how many
// deletions failed.
func (s *Service) deleteImages(ctx context.Context, refs []string) int {
	failed := 0
	for _, ref := range refs {
		err := s.images.Delete(ctx, ref)
		metrics.ImageDeletes.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			failed++
			s.logger(ctx).Warn().Err(err).Str("image", ref).Msg("image cleanup failed")
		}
	}
	return failed
}

// CreateProduct validates in, uploads its images and stores the product.
// Images fill the slots in upload order.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	f, err := s.checkFields(in)
	if err != nil {
		return nil, err
	}

	urls := s.storeImages(ctx, in.Images)
	product := &domain.Product{
		Name:        f.Name,
		Intro:       f.Intro,
		Description: f.Description,
		Price:       f.Price,
		Category:    f.Category,
		Images:      domain.SlotsFromURLs(urls),
		Published:   in.Published,
		SoldOut:     in.SoldOut,
	}

	created, err := s.products.CreateProduct(ctx, product)
	if err != nil {
		if len(urls) > 0 {
			s.logger(ctx).Error().Strs("images", urls).Msg("product not saved, uploaded images left on host")
		}
		return nil, err
	}
	s.logger(ctx).Info().Int64("product_id", created.ID).Int("images", len(urls)).Msg("product created")
	return created, nil
}

// CreateDraftProduct is the public submission path: status flags from the
// caller are ignored and the product starts unpublished.
func (s *Service) CreateDraftProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	in.Published = false
	in.SoldOut = false
	return s.CreateProduct(ctx, in)
}

// UpdateProduct replaces every field of a product. New uploads take the first
// slots, kept images follow, and anything past five is dropped. Images that
// no longer belong to the product are removed from the host.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in UpdateInput) (*domain.Product, error) {
	f, err := s.checkFields(in.ProductInput)
	if err != nil {
		return nil, err
	}
	current, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	refs := s.storeImages(ctx, in.Images)
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		seen[ref] = true
	}
	for _, ref := range in.ExistingImages {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] {
			continue
		}
		if !current.Images.Contains(ref) {
			s.logger(ctx).Warn().Int64("product_id", id).Str("image", ref).Msg("ignoring kept image the product does not own")
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	if len(refs) > domain.MaxImages {
		s.logger(ctx).Info().Int64("product_id", id).Strs("dropped", refs[domain.MaxImages:]).Msg("too many images, keeping the first five")
	}
	slots := domain.SlotsFromURLs(refs)

	updated, err := s.products.UpdateProduct(ctx, id, domain.ProductPatch{
		Name:        &f.Name,
		Intro:       &f.Intro,
		Description: &f.Description,
		Price:       &f.Price,
		Category:    &f.Category,
		Images:      &slots,
		Published:   &in.Published,
		SoldOut:     &in.SoldOut,
	})
	if err != nil {
		return nil, err
	}

	var orphaned []string
	for _, ref := range current.Images.URLs() {
		if !updated.Images.Contains(ref) {
			orphaned = append(orphaned, ref)
		}
	}
	s.deleteImages(ctx, orphaned)
	return updated, nil
}

// SetStatus changes only the published and/or sold-out flags.
func (s *Service) SetStatus(ctx context.Context, id int64, in StatusInput) (*domain.Product, error) {
	if in.Published == nil && in.SoldOut == nil {
		return nil, invalid("", "nothing to update: provide published or soldOut")
	}
	return s.products.UpdateProduct(ctx, id, domain.ProductPatch{Published: in.Published, SoldOut: in.SoldOut})
}

// AttachImage stores one image in the product's first empty slot.
func (s *Service) AttachImage(ctx context.Context, id int64, up Upload) (*domain.Product, error) {
	if len(up.Data) == 0 {
		return nil, invalid("image", "no image provided")
	}
	current, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slot := current.Images.FirstFree()
	if slot < 0 {
		return nil, ErrNoFreeImageSlot
	}

	url, err := s.storeImage(ctx, up)
	if err != nil {
		if errors.Is(err, imaging.ErrDecode) {
			return nil, invalid("image", "could not be decoded")
		}
		return nil, err
	}

	slots := current.Images
	slots[slot] = &url
	updated, err := s.products.UpdateProduct(ctx, id, domain.ProductPatch{Images: &slots})
	if err != nil {
		s.logger(ctx).Error().Str("image", url).Int64("product_id", id).Msg("image uploaded but not attached")
		return nil, err
	}
	return updated, nil
}

// DeleteProduct removes the product, then tries to remove each of its images
// from the host. Image cleanup failures do not fail the call.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (*domain.Product, error) {
	deleted, err := s.products.DeleteProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	refs := deleted.Images.URLs()
	failed := s.deleteImages(ctx, refs)
	s.logger(ctx).Info().Int64("product_id", id).Int("images", len(refs)).Int("cleanup_failures", failed).Msg("product deleted")
	return deleted, nil
}

func categoryFilter(category string) *string {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, AllCategories) {
		return nil
	}
	return &category
}

// ListPublished returns the storefront listing: published products only,
// optionally restricted to ones not sold out.
func (s *Service) ListPublished(ctx context.Context, f ListFilter) ([]domain.Product, error) {
	published := true
	params := store.ListProductsParams{Published: &published, Category: categoryFilter(f.Category)}
	if f.InStockOnly {
		soldOut := false
		params.SoldOut = &soldOut
	}
	return s.products.ListProducts(ctx, params)
}

// ListAll returns every product in the table projection used by the admin dashboard.
func (s *Service) ListAll(ctx context.Context, category string) ([]domain.Product, error) {
	return s.products.ListProducts(ctx, store.ListProductsParams{Category: categoryFilter(category), Summary: true})
}

// GetProduct returns any product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.GetProductByID(ctx, id)
}

// GetPublishedProduct hides unpublished products behind ErrProductNotFound.
func (s *Service) GetPublishedProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Published {
		return nil, store.ErrProductNotFound
	}
	return p, nil
}

// Categories lists the categories that have at least one published product.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.products.ListCategories(ctx, true)
}
