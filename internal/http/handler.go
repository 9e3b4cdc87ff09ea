package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"TextChainSettler/internal/services"
	"TextChainSettler/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

type Handler struct {
	Intents  *services.IntentService
	Outcomes *store.Store
}

type submitIntentRequest struct {
	RecipientAddress string `json:"recipientAddress"`
	RecipientPhone   string `json:"recipientPhone,omitempty"`
	Amount           string `json:"amount"`
	Asset            string `json:"asset"`
	OriginatorPhone  string `json:"originatorPhone"`
}

type submitIntentResponse struct {
	IntentID    string `json:"intentId"`
	SubmittedAt string `json:"submittedAt"`
}

type outcomeResponse struct {
	BatchID          string `json:"batchId"`
	SessionID        string `json:"sessionId"`
	ChannelID        string `json:"channelId,omitempty"`
	SettledCount     int    `json:"settledCount"`
	FailedCount      int    `json:"failedCount"`
	FailedPhase      string `json:"failedPhase,omitempty"`
	FailureReason    string `json:"failureReason,omitempty"`
	WithdrawalAlert  bool   `json:"withdrawalAlert"`
	WithdrawalReason string `json:"withdrawalReason,omitempty"`
	ConcludedAt      string `json:"concludedAt"`
}

func NewHandler(intents *services.IntentService, outcomes *store.Store) *Handler {
	return &Handler{Intents: intents, Outcomes: outcomes}
}

func (h *Handler) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	var req submitIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	intent, err := h.Intents.SubmitIntent(r.Context(),
		req.RecipientAddress, req.Amount, req.Asset, req.OriginatorPhone, req.RecipientPhone)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "malformed recipient address")
		case errors.Is(err, services.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "amount must be a positive integer")
		case errors.Is(err, services.ErrUnsupportedAsset):
			writeError(w, http.StatusBadRequest, "unsupported asset")
		case errors.Is(err, services.ErrMissingOriginator):
			writeError(w, http.StatusBadRequest, "missing originator phone")
		default:
			writeError(w, http.StatusInternalServerError, "submit intent failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, submitIntentResponse{
		IntentID:    intent.ID,
		SubmittedAt: intent.SubmittedAt.Format(time.RFC3339),
	})
}

func (h *Handler) GetOutcome(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchId")
	if batchID == "" {
		writeError(w, http.StatusBadRequest, "missing batch id")
		return
	}

	rec, err := h.Outcomes.GetOutcome(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "outcome not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get outcome failed")
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse{
		BatchID:          rec.BatchID,
		SessionID:        rec.SessionID,
		ChannelID:        rec.ChannelID,
		SettledCount:     rec.SettledCount,
		FailedCount:      rec.FailedCount,
		FailedPhase:      rec.FailedPhase,
		FailureReason:    rec.FailureReason,
		WithdrawalAlert:  rec.WithdrawalAlert,
		WithdrawalReason: rec.WithdrawalReason,
		ConcludedAt:      rec.ConcludedAt.Format(time.RFC3339),
	})
}
