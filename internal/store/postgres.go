package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront-catalog/internal/domain"
)

// Predefined errors for store operations
var (
	ErrProductNotFound     = errors.New("store: product not found")
	ErrConstraintViolation = errors.New("store: product violates a table constraint")
)

// summaryColumns is the projection used by admin table views.
var summaryColumns = []string{"id", "name", "price", "category", "published", "sold_out", "created_at", "updated_at"}

// productRecord is the row shape of the products table.
type productRecord struct {
	ID          int64           `gorm:"column:id;primaryKey"`
	Name        string          `gorm:"column:name;size:255;not null"`
	Intro       string          `gorm:"column:intro;type:text"`
	Description string          `gorm:"column:description;type:text"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Category    string          `gorm:"column:category;size:100;not null"`
	Image1      *string         `gorm:"column:image1"`
	Image2      *string         `gorm:"column:image2"`
	Image3      *string         `gorm:"column:image3"`
	Image4      *string         `gorm:"column:image4"`
	Image5      *string         `gorm:"column:image5"`
	Published   bool            `gorm:"column:published"`
	SoldOut     bool            `gorm:"column:sold_out"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

var imageColumns = [domain.MaxImages]string{"image1", "image2", "image3", "image4", "image5"}

func recordFromDomain(p *domain.Product) *productRecord {
	return &productRecord{
		ID:          p.ID,
		Name:        p.Name,
		Intro:       p.Intro,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Image1:      p.Images[0],
		Image2:      p.Images[1],
		Image3:      p.Images[2],
		Image4:      p.Images[3],
		Image5:      p.Images[4],
		Published:   p.Published,
		SoldOut:     p.SoldOut,
	}
}

func (r *productRecord) toDomain() *domain.Product {
	return &domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Intro:       r.Intro,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Images:      domain.ImageSlots{r.Image1, r.Image2, r.Image3, r.Image4, r.Image5},
		Published:   r.Published,
		SoldOut:     r.SoldOut,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// PostgresStore implements ProductStorer with GORM on top of a lib/pq connection pool.
type PostgresStore struct {
	sqlDB *sql.DB
	db    *gorm.DB
}

// NewPostgresStore wraps an open *sql.DB. Slow queries and driver errors are
// reported through log.
func NewPostgresStore(db *sql.DB, log zerolog.Logger) (*PostgresStore, error) {
	gormLog := gormlogger.New(&log, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open gorm: %w", err)
	}
	return &PostgresStore{sqlDB: db, db: gdb}, nil
}

// translateError maps driver errors onto the store's sentinel errors.
func translateError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23514", "23502": // check_violation, not_null_violation
			return fmt.Errorf("%w: %s", ErrConstraintViolation, pqErr.Message)
		}
	}
	return fmt.Errorf("store: %s failed: %w", op, err)
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	rec := recordFromDomain(product)
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, translateError("CreateProduct", err)
	}
	return rec.toDomain(), nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var rec productRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translateError("GetProductByID", err)
	}
	return rec.toDomain(), nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, error) {
	q := s.db.WithContext(ctx).Model(&productRecord{})
	if params.Summary {
		q = q.Select(summaryColumns)
	}
	if params.Published != nil {
		q = q.Where("published = ?", *params.Published)
	}
	if params.SoldOut != nil {
		q = q.Where("sold_out = ?", *params.SoldOut)
	}
	if params.Category != nil {
		q = q.Where("category = ?", *params.Category)
	}

	var recs []productRecord
	if err := q.Order("created_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, translateError("ListProducts", err)
	}

	products := make([]domain.Product, 0, len(recs))
	for i := range recs {
		products = append(products, *recs[i].toDomain())
	}
	return products, nil
}

// patchColumns converts a patch into a column map. Keys absent from the map
// are never written; nil image slots are written as NULL.
func patchColumns(patch domain.ProductPatch) map[string]interface{} {
	cols := map[string]interface{}{}
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Intro != nil {
		cols["intro"] = *patch.Intro
	}
	if patch.Description != nil {
		cols["description"] = *patch.Description
	}
	if patch.Price != nil {
		cols["price"] = *patch.Price
	}
	if patch.Category != nil {
		cols["category"] = *patch.Category
	}
	if patch.Images != nil {
		for i, ref := range patch.Images {
			if ref == nil {
				cols[imageColumns[i]] = nil
			} else {
				cols[imageColumns[i]] = *ref
			}
		}
	}
	if patch.Published != nil {
		cols["published"] = *patch.Published
	}
	if patch.SoldOut != nil {
		cols["sold_out"] = *patch.SoldOut
	}
	return cols
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.IsEmpty() {
		return s.GetProductByID(ctx, id)
	}
	cols := patchColumns(patch)
	cols["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&productRecord{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, translateError("UpdateProduct", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProductNotFound
	}
	return s.GetProductByID(ctx, id)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) (*domain.Product, error) {
	existing, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Delete(&productRecord{}, id)
	if res.Error != nil {
		return nil, translateError("DeleteProduct", res.Error)
	}
	if res.RowsAffected == 0 {
		// Deleted by someone else between the read and the delete.
		return nil, ErrProductNotFound
	}
	return existing, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, publishedOnly bool) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&productRecord{})
	if publishedOnly {
		q = q.Where("published = ?", true)
	}
	var categories []string
	if err := q.Distinct().Order("category ASC").Pluck("category", &categories).Error; err != nil {
		return nil, translateError("ListCategories", err)
	}
	return categories, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
