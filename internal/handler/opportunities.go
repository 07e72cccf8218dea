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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
	"github.com/tradeline-crm/api/internal/ws"
)

// OpportunityStore defines the database methods needed by the pipeline view.
// Satisfied by *database.Queries; narrow interface for testability.
type OpportunityStore interface {
	ListQuotes(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error)
	UpdateQuoteTemperature(ctx context.Context, arg database.UpdateQuoteTemperatureParams) (database.Quote, error)
}

// OpportunityHandler exposes the sales pipeline: quotes that have left DRAFT,
// grouped by stage, with HOT/WARM/COLD temperature tracking.
type OpportunityHandler struct {
	store OpportunityStore
	hub   *ws.Hub
}

// NewOpportunityHandler creates a new OpportunityHandler.
func NewOpportunityHandler(store OpportunityStore, hub *ws.Hub) *OpportunityHandler {
	return &OpportunityHandler{store: store, hub: hub}
}

// RegisterRoutes registers pipeline endpoints on the given Chi router.
func (h *OpportunityHandler) RegisterRoutes(r chi.Router) {
	r.Get("/opportunities", h.Pipeline)
	r.Patch("/opportunities/{id}/temperature", h.UpdateTemperature)
}

type temperatureRequest struct {
	Temperature string `json:"temperature"`
}

type pipelineResponse struct {
	Sent        []quoteSummaryResponse `json:"sent"`
	Negotiation []quoteSummaryResponse `json:"negotiation"`
	Won         []quoteSummaryResponse `json:"won"`
	Lost        []quoteSummaryResponse `json:"lost"`
}

// Pipeline returns all non-draft quotes bucketed by stage.
func (h *OpportunityHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	resp := pipelineResponse{
		Sent:        []quoteSummaryResponse{},
		Negotiation: []quoteSummaryResponse{},
		Won:         []quoteSummaryResponse{},
		Lost:        []quoteSummaryResponse{},
	}

	stages := map[string]*[]quoteSummaryResponse{
		enum.QuoteStageSent:        &resp.Sent,
		enum.QuoteStageNegotiation: &resp.Negotiation,
		enum.QuoteStageWon:         &resp.Won,
		enum.QuoteStageLost:        &resp.Lost,
	}
	for stage, bucket := range stages {
		quotes, err := h.store.ListQuotes(r.Context(), database.ListQuotesParams{
			Stage: stage,
			Limit: 200,
		})
		if err != nil {
			log.Printf("ERROR: list %s opportunities: %v", stage, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		for _, q := range quotes {
			*bucket = append(*bucket, toQuoteSummaryResponse(q))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateTemperature sets how likely the opportunity is to close.
func (h *OpportunityHandler) UpdateTemperature(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id"})
		return
	}

	var req temperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	switch req.Temperature {
	case enum.TemperatureHot, enum.TemperatureWarm, enum.TemperatureCold:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid temperature"})
		return
	}

	quote, err := h.store.UpdateQuoteTemperature(r.Context(), database.UpdateQuoteTemperatureParams{
		Temperature: pgtype.Text{String: req.Temperature, Valid: true},
		ID:          id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "quote not found"})
			return
		}
		log.Printf("ERROR: update opportunity temperature: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Publish("opportunity.temperature_changed", toQuoteSummaryResponse(quote))
	writeJSON(w, http.StatusOK, toQuoteSummaryResponse(quote))
}
