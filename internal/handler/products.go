package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	AddProductExtra(ctx context.Context, arg database.AddProductExtraParams) (database.ProductExtra, error)
	RemoveProductExtra(ctx context.Context, arg database.RemoveProductExtraParams) error
	ListProductExtras(ctx context.Context, productID uuid.UUID) ([]database.Product, error)
}

// ProductHandler handles product catalog endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers product endpoints on the given Chi router.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Post("/products", h.Create)
	r.Get("/products/{id}", h.Get)
	r.Put("/products/{id}", h.Update)
	r.Delete("/products/{id}", h.Delete)
	r.Post("/products/{id}/extras", h.AddExtra)
	r.Delete("/products/{id}/extras/{extraID}", h.RemoveExtra)
}

// --- Request / Response types ---

type productRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	BasePrice         string `json:"base_price"`
	Unit              string `json:"unit"`
	BoxesPerProduct   string `json:"boxes_per_product"`
	InstallationHours string `json:"installation_hours"`
	IsExtra           bool   `json:"is_extra"`
}

type addExtraRequest struct {
	ExtraProductID string `json:"extra_product_id"`
	SortOrder      int32  `json:"sort_order"`
}

type productResponse struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	BasePrice         string            `json:"base_price"`
	Unit              string            `json:"unit"`
	BoxesPerProduct   string            `json:"boxes_per_product,omitempty"`
	InstallationHours string            `json:"installation_hours,omitempty"`
	IsExtra           bool              `json:"is_extra"`
	OptionalExtras    []productResponse `json:"optional_extras,omitempty"`
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description.String,
		BasePrice:   numericString(p.BasePrice),
		Unit:        p.Unit,
		IsExtra:     p.IsExtra,
	}
	if p.BoxesPerProduct.Valid {
		resp.BoxesPerProduct = numericString(p.BoxesPerProduct)
	}
	if p.InstallationHours.Valid {
		resp.InstallationHours = numericString(p.InstallationHours)
	}
	return resp
}

// --- Handlers ---

// List returns active products. Pass include_extras=true to include
// extra-only products; the default is the parent catalog used by the
// product selector.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	includeExtras := r.URL.Query().Get("include_extras") == "true"

	products, err := h.store.ListProducts(r.Context(), database.ListProductsParams{
		IncludeExtras: includeExtras,
	})
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns full product detail including linked optional extras.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	extras, err := h.store.ListProductExtras(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list product extras: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toProductResponse(product)
	resp.OptionalExtras = make([]productResponse, 0, len(extras))
	for _, e := range extras {
		resp.OptionalExtras = append(resp.OptionalExtras, toProductResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a product to the catalog.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := productParamsFromRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update replaces a product's details.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := productParamsFromRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		Name:              params.Name,
		Description:       params.Description,
		BasePrice:         params.BasePrice,
		Unit:              params.Unit,
		BoxesPerProduct:   params.BoxesPerProduct,
		InstallationHours: params.InstallationHours,
		IsExtra:           params.IsExtra,
		ID:                id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete soft-deletes a product. Existing quote items keep their snapshot of
// description and price.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddExtra links an extra product as an optional extra of this product.
func (h *ProductHandler) AddExtra(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req addExtraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	extraID, err := uuid.Parse(req.ExtraProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid extra_product_id"})
		return
	}
	if extraID == id {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product cannot be its own extra"})
		return
	}

	link, err := h.store.AddProductExtra(r.Context(), database.AddProductExtraParams{
		ProductID:      id,
		ExtraProductID: extraID,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product or extra does not exist"})
			return
		}
		log.Printf("ERROR: add product extra: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"product_id":       link.ProductID,
		"extra_product_id": link.ExtraProductID,
		"sort_order":       link.SortOrder,
	})
}

// RemoveExtra unlinks an optional extra.
func (h *ProductHandler) RemoveExtra(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	extraID, err := uuid.Parse(chi.URLParam(r, "extraID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid extra product id"})
		return
	}

	if err := h.store.RemoveProductExtra(r.Context(), database.RemoveProductExtraParams{
		ProductID:      id,
		ExtraProductID: extraID,
	}); err != nil {
		log.Printf("ERROR: remove product extra: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func productParamsFromRequest(req productRequest) (database.CreateProductParams, string) {
	if req.Name == "" {
		return database.CreateProductParams{}, "name is required"
	}

	price, err := decimal.NewFromString(req.BasePrice)
	if err != nil || price.IsNegative() {
		return database.CreateProductParams{}, "base_price must be a non-negative number"
	}

	params := database.CreateProductParams{
		Name:        req.Name,
		Description: nullText(req.Description),
		BasePrice:   decimalNumeric(price),
		Unit:        req.Unit,
		IsExtra:     req.IsExtra,
	}
	if params.Unit == "" {
		params.Unit = enum.UnitEach
	}

	if req.BoxesPerProduct != "" {
		boxes, err := decimal.NewFromString(req.BoxesPerProduct)
		if err != nil || !boxes.IsPositive() {
			return database.CreateProductParams{}, "boxes_per_product must be a positive number"
		}
		params.BoxesPerProduct = decimalNumeric(boxes)
	}
	if req.InstallationHours != "" {
		hours, err := decimal.NewFromString(req.InstallationHours)
		if err != nil || hours.IsNegative() {
			return database.CreateProductParams{}, "installation_hours must be a non-negative number"
		}
		params.InstallationHours = decimalNumeric(hours)
	}
	return params, ""
}
