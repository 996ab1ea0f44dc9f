package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nyraAPI/internal/checkin"
)

type checkInService interface {
	Status(ctx context.Context, userID uuid.UUID) (*checkin.Status, error)
	CheckIn(ctx context.Context, userID uuid.UUID, answer string) (*checkin.Result, error)
}

type CheckInHandler struct {
	checkIns checkInService
	users    userResolver
	logger   *zap.Logger
}

func NewCheckInHandler(checkIns checkInService, users userResolver, logger *zap.Logger) *CheckInHandler {
	return &CheckInHandler{checkIns: checkIns, users: users, logger: logger.Named("checkin_handler")}
}

func (h *CheckInHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.users, h.logger)
	if !ok {
		return
	}

	status, err := h.checkIns.Status(ctx, userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.users, h.logger)
	if !ok {
		return
	}

	var req checkin.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.checkIns.CheckIn(ctx, userID, req.Answer)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}
