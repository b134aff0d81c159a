package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-catalog/internal/domain"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store, err := NewPostgresStore(db, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

func PtrTo[T any](v T) *T {
	return &v
}

var productColumns = []string{
	"id", "name", "intro", "description", "price", "category",
	"image1", "image2", "image3", "image4", "image5",
	"published", "sold_out", "created_at", "updated_at",
}

func bearRow(now time.Time, published, soldOut bool) *sqlmock.Rows {
	return sqlmock.NewRows(productColumns).AddRow(
		int64(7), "Bear", "<p>soft</p>", "<p>very soft</p>", "19.99", "Bears",
		"https://img/a.jpg", "https://img/b.jpg", nil, nil, nil,
		published, soldOut, now, now,
	)
}

func TestPostgresStore_CreateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	a, b := "https://img/a.jpg", "https://img/b.jpg"
	product := &domain.Product{
		Name:     "Bear",
		Price:    decimal.RequireFromString("19.99"),
		Category: "Bears",
		Images:   domain.ImageSlots{&a, &b},
	}

	mock.ExpectQuery(`INSERT INTO "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	created, err := store.CreateProduct(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "19.99", created.Price.StringFixed(2))
	assert.Equal(t, []string{a, b}, created.Images.URLs())
	assert.Nil(t, created.Images[2])
	assert.False(t, created.Published)
	assert.False(t, created.SoldOut)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct_CheckViolation(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO "products"`).
		WillReturnError(&pq.Error{Code: "23514", Message: "new row violates check constraint"})

	_, err := store.CreateProduct(context.Background(), &domain.Product{Name: "Bad", Price: decimal.NewFromInt(-1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConstraintViolation))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID_Found(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = \$1`).
		WillReturnRows(bearRow(now, true, false))

	p, err := store.GetProductByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Bear", p.Name)
	assert.Equal(t, "Bears", p.Category)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("19.99")))
	require.NotNil(t, p.Images[0])
	assert.Equal(t, "https://img/a.jpg", *p.Images[0])
	assert.Nil(t, p.Images[4])
	assert.True(t, p.Published)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows(productColumns))

	p, err := store.GetProductByID(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.Nil(t, p)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_PublicFilters(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE published = \$1 AND sold_out = \$2 AND category = \$3 ORDER BY created_at DESC,id DESC`).
		WithArgs(true, false, "Bears").
		WillReturnRows(bearRow(now, true, false))

	products, err := store.ListProducts(context.Background(), ListProductsParams{
		Published: PtrTo(true),
		SoldOut:   PtrTo(false),
		Category:  PtrTo("Bears"),
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Bear", products[0].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_SummaryProjection(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(summaryColumns).
		AddRow(int64(1), "Bear", "19.99", "Bears", false, false, now, now).
		AddRow(int64(2), "Bunny", "5.00", "General", true, true, now, now)
	mock.ExpectQuery(`SELECT "id","name","price","category","published","sold_out","created_at","updated_at" FROM "products" ORDER BY`).
		WillReturnRows(rows)

	products, err := store.ListProducts(context.Background(), ListProductsParams{Summary: true})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Bunny", products[1].Name)
	assert.Empty(t, products[1].Description)
	assert.Equal(t, "5.00", products[1].Price.StringFixed(2))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_OnlyProvidedColumns(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`UPDATE "products" SET "sold_out"=\$1,"updated_at"=\$2 WHERE id = \$3`).
		WithArgs(true, sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = \$1`).
		WillReturnRows(bearRow(now, true, true))

	p, err := store.UpdateProduct(context.Background(), 7, domain.ProductPatch{SoldOut: PtrTo(true)})
	require.NoError(t, err)
	assert.True(t, p.SoldOut)
	assert.Equal(t, "Bear", p.Name)
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/b.jpg"}, p.Images.URLs())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE "products" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateProduct(context.Background(), 404, domain.ProductPatch{Published: PtrTo(true)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchColumns(t *testing.T) {
	a := "https://img/a.jpg"
	slots := domain.ImageSlots{&a}
	cols := patchColumns(domain.ProductPatch{
		Name:   PtrTo("Bear"),
		Images: &slots,
	})

	assert.Equal(t, "Bear", cols["name"])
	assert.Equal(t, a, cols["image1"])
	for _, c := range []string{"image2", "image3", "image4", "image5"} {
		v, ok := cols[c]
		assert.True(t, ok, "cleared slot %s must be written", c)
		assert.Nil(t, v)
	}
	_, hasPrice := cols["price"]
	assert.False(t, hasPrice, "omitted fields must not be written")
	_, hasPublished := cols["published"]
	assert.False(t, hasPublished)
}

func TestPostgresStore_DeleteProduct_ReturnsDeletedRecord(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = \$1`).
		WillReturnRows(bearRow(now, true, false))
	mock.ExpectExec(`DELETE FROM "products" WHERE "products"."id" = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := store.DeleteProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Len(t, p.Images.URLs(), 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows(productColumns))

	_, err := store.DeleteProduct(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT DISTINCT "category" FROM "products" WHERE published = \$1 ORDER BY category ASC`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("Bears").AddRow("Bunnies"))

	cats, err := store.ListCategories(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bears", "Bunnies"}, cats)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DatabaseErrorIsWrapped(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT \* FROM "products"`).WillReturnError(sql.ErrConnDone)

	_, err := store.ListProducts(context.Background(), ListProductsParams{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.False(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}
