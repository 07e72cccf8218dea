package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
	"github.com/tradeline-crm/api/internal/middleware"
)

// DiscountStore defines the database methods needed by discount handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DiscountStore interface {
	ListActiveDiscountTemplates(ctx context.Context) ([]database.DiscountTemplate, error)
	GetDiscountTemplate(ctx context.Context, id uuid.UUID) (database.DiscountTemplate, error)
	CreateDiscountTemplate(ctx context.Context, arg database.CreateDiscountTemplateParams) (database.DiscountTemplate, error)
	UpdateDiscountTemplate(ctx context.Context, arg database.UpdateDiscountTemplateParams) (database.DiscountTemplate, error)
	SoftDeleteDiscountTemplate(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListDiscountRequestsByQuote(ctx context.Context, quoteID uuid.UUID) ([]database.DiscountRequest, error)
	CreateDiscountRequest(ctx context.Context, arg database.CreateDiscountRequestParams) (database.DiscountRequest, error)
	DecideDiscountRequest(ctx context.Context, arg database.DecideDiscountRequestParams) (database.DiscountRequest, error)
}

// DiscountHandler handles discount templates and ad-hoc discount requests.
type DiscountHandler struct {
	store DiscountStore
}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler(store DiscountStore) *DiscountHandler {
	return &DiscountHandler{store: store}
}

// RegisterRoutes registers discount endpoints on the given Chi router.
// Template management and request decisions are restricted to
// MANAGER/OWNER at the router level.
func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/discount-templates", h.ListTemplates)
	r.Get("/quotes/{quoteID}/discount-requests", h.ListRequests)
	r.Post("/quotes/{quoteID}/discount-requests", h.CreateRequest)
}

// RegisterManagerRoutes registers the endpoints that need MANAGER or OWNER.
func (h *DiscountHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/discount-templates", h.CreateTemplate)
	r.Put("/discount-templates/{id}", h.UpdateTemplate)
	r.Delete("/discount-templates/{id}", h.DeleteTemplate)
	r.Patch("/discount-requests/{id}/decision", h.DecideRequest)
}

// --- Request / Response types ---

type discountTemplateRequest struct {
	Name         string `json:"name"`
	DiscountType string `json:"discount_type"`
	Value        string `json:"value"`
}

type discountTemplateResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	DiscountType string    `json:"discount_type"`
	Value        string    `json:"value"`
}

type discountRequestRequest struct {
	DiscountType string `json:"discount_type"`
	Value        string `json:"value"`
	Reason       string `json:"reason"`
}

type discountDecisionRequest struct {
	Approve bool `json:"approve"`
}

type discountRequestResponse struct {
	ID           uuid.UUID  `json:"id"`
	QuoteID      uuid.UUID  `json:"quote_id"`
	RequestedBy  uuid.UUID  `json:"requested_by"`
	DiscountType string     `json:"discount_type"`
	Value        string     `json:"value"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"`
	DecidedBy    *uuid.UUID `json:"decided_by,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toDiscountTemplateResponse(t database.DiscountTemplate) discountTemplateResponse {
	return discountTemplateResponse{
		ID:           t.ID,
		Name:         t.Name,
		DiscountType: t.DiscountType,
		Value:        numericString(t.Value),
	}
}

func toDiscountRequestResponse(dr database.DiscountRequest) discountRequestResponse {
	resp := discountRequestResponse{
		ID:           dr.ID,
		QuoteID:      dr.QuoteID,
		RequestedBy:  dr.RequestedBy,
		DiscountType: dr.DiscountType,
		Value:        numericString(dr.Value),
		Reason:       dr.Reason.String,
		Status:       dr.Status,
		CreatedAt:    dr.CreatedAt,
	}
	if dr.DecidedBy.Valid {
		id := uuid.UUID(dr.DecidedBy.Bytes)
		resp.DecidedBy = &id
	}
	if dr.DecidedAt.Valid {
		t := dr.DecidedAt.Time
		resp.DecidedAt = &t
	}
	return resp
}

// --- Template handlers ---

// ListTemplates returns active discount templates for the discount picker.
func (h *DiscountHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListActiveDiscountTemplates(r.Context())
	if err != nil {
		log.Printf("ERROR: list discount templates: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]discountTemplateResponse, 0, len(templates))
	for _, t := range templates {
		resp = append(resp, toDiscountTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTemplate adds a reusable discount template.
func (h *DiscountHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req discountTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	value, errMsg := validateDiscountValue(req.Name, req.DiscountType, req.Value)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	template, err := h.store.CreateDiscountTemplate(r.Context(), database.CreateDiscountTemplateParams{
		Name:         req.Name,
		DiscountType: req.DiscountType,
		Value:        decimalNumeric(value),
	})
	if err != nil {
		log.Printf("ERROR: create discount template: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toDiscountTemplateResponse(template))
}

// UpdateTemplate replaces a template's name, type and value.
func (h *DiscountHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid template id"})
		return
	}

	var req discountTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	value, errMsg := validateDiscountValue(req.Name, req.DiscountType, req.Value)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	template, err := h.store.UpdateDiscountTemplate(r.Context(), database.UpdateDiscountTemplateParams{
		Name:         req.Name,
		DiscountType: req.DiscountType,
		Value:        decimalNumeric(value),
		ID:           id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
			return
		}
		log.Printf("ERROR: update discount template: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toDiscountTemplateResponse(template))
}

// DeleteTemplate retires a template. Quotes that already applied it keep
// their snapshotted amounts.
func (h *DiscountHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid template id"})
		return
	}

	if _, err := h.store.SoftDeleteDiscountTemplate(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
			return
		}
		log.Printf("ERROR: delete discount template: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Request handlers ---

// ListRequests returns all discount requests raised against a quote.
func (h *DiscountHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	quoteID, err := uuid.Parse(chi.URLParam(r, "quoteID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id"})
		return
	}

	requests, err := h.store.ListDiscountRequestsByQuote(r.Context(), quoteID)
	if err != nil {
		log.Printf("ERROR: list discount requests: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]discountRequestResponse, 0, len(requests))
	for _, dr := range requests {
		resp = append(resp, toDiscountRequestResponse(dr))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRequest raises a discount request on a quote for manager approval.
func (h *DiscountHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	quoteID, err := uuid.Parse(chi.URLParam(r, "quoteID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id"})
		return
	}

	var req discountRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	value, errMsg := validateDiscountValue("request", req.DiscountType, req.Value)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	request, err := h.store.CreateDiscountRequest(r.Context(), database.CreateDiscountRequestParams{
		QuoteID:      quoteID,
		RequestedBy:  claims.UserID,
		DiscountType: req.DiscountType,
		Value:        decimalNumeric(value),
		Reason:       nullText(req.Reason),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quote does not exist"})
			return
		}
		log.Printf("ERROR: create discount request: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toDiscountRequestResponse(request))
}

// DecideRequest approves or rejects a pending discount request.
func (h *DiscountHandler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id"})
		return
	}

	var req discountDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	status := enum.DiscountRequestRejected
	if req.Approve {
		status = enum.DiscountRequestApproved
	}

	decided, err := h.store.DecideDiscountRequest(r.Context(), database.DecideDiscountRequestParams{
		Status:    status,
		DecidedBy: pgtype.UUID{Bytes: claims.UserID, Valid: true},
		ID:        id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either unknown or already decided.
			writeJSON(w, http.StatusConflict, map[string]string{"error": "request is not pending"})
			return
		}
		log.Printf("ERROR: decide discount request: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toDiscountRequestResponse(decided))
}

// --- Helpers ---

func validateDiscountValue(name, discountType, value string) (decimal.Decimal, string) {
	if name == "" {
		return decimal.Zero, "name is required"
	}
	if discountType != enum.DiscountTypePercentage && discountType != enum.DiscountTypeFixed {
		return decimal.Zero, "discount_type must be PERCENTAGE or FIXED_AMOUNT"
	}
	v, err := decimal.NewFromString(value)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, "value must be a positive number"
	}
	if discountType == enum.DiscountTypePercentage && v.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, "percentage cannot exceed 100"
	}
	return v, ""
}
