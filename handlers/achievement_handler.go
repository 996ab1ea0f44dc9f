package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nyraAPI/internal/achievement"
)

type progressService interface {
	Summary(ctx context.Context, userID uuid.UUID) (*achievement.Summary, error)
	Refresh(ctx context.Context, userID uuid.UUID) ([]achievement.Achievement, error)
	Preview(raw map[string]any) (achievement.Result, error)
}

type AchievementHandler struct {
	progress progressService
	users    userResolver
	logger   *zap.Logger
}

func NewAchievementHandler(progress progressService, users userResolver, logger *zap.Logger) *AchievementHandler {
	return &AchievementHandler{progress: progress, users: users, logger: logger.Named("achievement_handler")}
}

func (h *AchievementHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.users, h.logger)
	if !ok {
		return
	}

	summary, err := h.progress.Summary(ctx, userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

func (h *AchievementHandler) RefreshAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.users, h.logger)
	if !ok {
		return
	}

	unlocked, err := h.progress.Refresh(ctx, userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"unlocked": unlocked})
}

// PreviewAchievements evaluates a posted progress snapshot without storing
// anything.
func (h *AchievementHandler) PreviewAchievements(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.progress.Preview(raw)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}
