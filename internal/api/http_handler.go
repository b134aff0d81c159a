package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storefront-catalog/internal/auth"
	"storefront-catalog/internal/catalog"
	"storefront-catalog/internal/domain"
	"storefront-catalog/internal/store"
)

// CatalogService is the product API the handlers call into.
type CatalogService interface {
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	CreateDraftProduct(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, in catalog.UpdateInput) (*domain.Product, error)
	SetStatus(ctx context.Context, id int64, in catalog.StatusInput) (*domain.Product, error)
	AttachImage(ctx context.Context, id int64, up catalog.Upload) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListPublished(ctx context.Context, f catalog.ListFilter) ([]domain.Product, error)
	ListAll(ctx context.Context, category string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetPublishedProduct(ctx context.Context, id int64) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog        CatalogService
	sessions       *auth.Sessions
	health         Pinger
	validate       *validator.Validate
	maxUploadBytes int64
}

// NewHTTPHandler creates a new HTTPHandler with dependencies. maxUploadBytes
// bounds multipart bodies; zero means 50 MB.
func NewHTTPHandler(svc CatalogService, sessions *auth.Sessions, health Pinger, maxUploadBytes int64) *HTTPHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &HTTPHandler{
		catalog:        svc,
		sessions:       sessions,
		health:         health,
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// respondWithServiceError maps catalog and store errors onto status codes.
// Anything unrecognized is logged and reported as a generic 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, failure string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, catalog.ErrNoFreeImageSlot):
		respondWithError(w, http.StatusBadRequest, "no available image slots")
	case errors.Is(err, store.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, store.ErrConstraintViolation):
		respondWithError(w, http.StatusBadRequest, "product violates a data constraint")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg(failure)
		respondWithError(w, http.StatusInternalServerError, failure)
	}
}

func productIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// --- Response shapes ---

type productResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Intro       string    `json:"intro"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	Image1      *string   `json:"image1"`
	Image2      *string   `json:"image2"`
	Image3      *string   `json:"image3"`
	Image4      *string   `json:"image4"`
	Image5      *string   `json:"image5"`
	Published   bool      `json:"published"`
	SoldOut     bool      `json:"soldOut"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Intro:       p.Intro,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Category:    p.Category,
		Image1:      p.Images[0],
		Image2:      p.Images[1],
		Image3:      p.Images[2],
		Image4:      p.Images[3],
		Image5:      p.Images[4],
		Published:   p.Published,
		SoldOut:     p.SoldOut,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// productSummary is the admin table row.
type productSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Category  string    `json:"category"`
	Published bool      `json:"published"`
	SoldOut   bool      `json:"soldOut"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// --- Storefront Handlers ---

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.ListFilter{Category: q.Get("category")}
	if s := q.Get("inStock"); s != "" {
		inStock, err := strconv.ParseBool(s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid inStock value: must be true or false")
			return
		}
		filter.InStockOnly = inStock
	}

	products, err := h.catalog.ListPublished(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve products")
		return
	}
	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	product, err := h.catalog.GetPublishedProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}
	respondWithJSON(w, http.StatusOK, categories)
}

// SubmitProduct is the public create path. The product is stored as an
// unpublished draft.
func (h *HTTPHandler) SubmitProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.CreateDraftProduct(r.Context(), in.ProductInput)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, toProductResponse(product))
}

// --- Admin Handlers ---

// LoginInput is the admin login payload.
type LoginInput struct {
	Password string `json:"password" validate:"required"`
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: password is required")
		return
	}

	if err := h.sessions.Login(w, input.Password); err != nil {
		if errors.Is(err, auth.ErrBadPassword) {
			zerolog.Ctx(r.Context()).Warn().Str("remote_addr", r.RemoteAddr).Msg("admin login rejected")
			respondWithError(w, http.StatusUnauthorized, "Invalid password")
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("issuing admin session failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAll(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve products")
		return
	}
	resp := make([]productSummary, 0, len(products))
	for _, p := range products {
		resp = append(resp, productSummary{
			ID:        p.ID,
			Name:      p.Name,
			Price:     p.Price.StringFixed(2),
			Category:  p.Category,
			Published: p.Published,
			SoldOut:   p.SoldOut,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) AdminGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), in.ProductInput)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	in, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), id, in)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// StatusUpdateInput toggles visibility flags. Absent fields are left unchanged.
type StatusUpdateInput struct {
	Published *bool `json:"published"`
	SoldOut   *bool `json:"soldOut"`
}

func (h *HTTPHandler) PatchProductStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	var input StatusUpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	product, err := h.catalog.SetStatus(r.Context(), id, catalog.StatusInput{Published: input.Published, SoldOut: input.SoldOut})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update product status")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	up, err := readUpload(r, "image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read image: "+err.Error())
		return
	}
	if up == nil {
		respondWithError(w, http.StatusBadRequest, "No image provided")
		return
	}

	product, err := h.catalog.AttachImage(r.Context(), id, *up)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to upload image")
		return
	}
	respondWithJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	if _, err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete product")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Healthz reports database reachability.
func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.SubmitProduct)
		// Must be registered before {productId}.
		r.Get("/categories", h.ListCategories)
		r.Get("/{productId}", h.GetProductByID)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Middleware)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.AdminListProducts)
				r.Post("/", h.CreateProduct)
				r.Route("/{productId}", func(r chi.Router) {
					r.Get("/", h.AdminGetProduct)
					r.Put("/", h.UpdateProduct)
					r.Patch("/", h.PatchProductStatus)
					r.Delete("/", h.DeleteProduct)
					r.Post("/images", h.UploadProductImage)
				})
			})
		})
	})
}

func parseFormBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}
