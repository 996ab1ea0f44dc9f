package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"go.uber.org/zap"

	"nyraAPI/services"
)

// signatureVerifier is satisfied by *paddle.WebhookVerifier.
type signatureVerifier interface {
	Verify(req *http.Request) (bool, error)
}

type PaddleHandler struct {
	verifier signatureVerifier
	credits  fuelCreditor
	logger   *zap.Logger
}

func NewPaddleHandler(verifier signatureVerifier, credits fuelCreditor, logger *zap.Logger) *PaddleHandler {
	return &PaddleHandler{verifier: verifier, credits: credits, logger: logger.Named("paddle")}
}

// PaddleWebhookHandler credits fuel when a transaction is paid. Replays of
// the same transaction are acknowledged without crediting twice.
func (h *PaddleHandler) PaddleWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		h.logger.Error("paddle webhook secret missing")
		http.Error(w, "Configuration Error", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "Unable to read body", http.StatusBadRequest)
		return
	}
	restoreBody(r, body)

	valid, err := h.verifier.Verify(r)
	if err != nil {
		http.Error(w, "Verification failed", http.StatusBadRequest)
		return
	}
	if !valid {
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	var webhook struct {
		EventID   string               `json:"event_id"`
		EventType paddle.EventTypeName `json:"event_type"`
		Data      json.RawMessage      `json:"data"`
	}
	if err := json.Unmarshal(body, &webhook); err != nil {
		http.Error(w, "Unable to parse JSON", http.StatusBadRequest)
		return
	}

	if webhook.EventType != paddle.EventTypeNameTransactionPaid {
		respondWithJSON(w, http.StatusOK, map[string]string{"ID": webhook.EventID})
		return
	}

	var txn paddle.Transaction
	if err := json.Unmarshal(webhook.Data, &txn); err != nil {
		http.Error(w, "Unable to parse transaction", http.StatusBadRequest)
		return
	}

	purchase, err := services.PurchaseFromCustomData(txn.ID, txn.CustomData)
	if err != nil {
		h.logger.Warn("paid transaction without usable custom data", zap.String("transaction_id", txn.ID), zap.Error(err))
		respondWithJSON(w, http.StatusOK, map[string]string{"ID": txn.ID})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	credited, err := h.credits.Credit(ctx, purchase)
	if err != nil {
		h.logger.Error("failed to credit paddle purchase", zap.String("transaction_id", txn.ID), zap.Error(err))
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"ID": txn.ID, "credited": credited})
}
