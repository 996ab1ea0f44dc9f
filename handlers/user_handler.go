package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nyraAPI/internal/achievement"
	"nyraAPI/internal/user"
	"nyraAPI/middleware"
	"nyraAPI/services"
)

type userStore interface {
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error)
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
}

// userResolver maps the authenticated Clerk id to the internal user id.
type userResolver interface {
	ResolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error)
}

type UserHandler struct {
	userService userStore
	logger      *zap.Logger
}

func NewUserHandler(userService userStore, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.Named("user_handler"),
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.userService.UpdateProfileByClerkID(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.userService.DeleteUserByClerkID(ctx, clerkID); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

// resolveUser reads the Clerk id from ctx and maps it to the internal id,
// writing the error response itself when that fails.
func resolveUser(ctx context.Context, w http.ResponseWriter, users userResolver, logger *zap.Logger) (uuid.UUID, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return uuid.Nil, false
	}
	userID, err := users.ResolveUserID(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, logger, err)
		return uuid.Nil, false
	}
	return userID, true
}

func statusFor(err error) (int, string) {
	var verr *achievement.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrEmptyAnswer),
		errors.Is(err, services.ErrInvalidProfile),
		errors.Is(err, services.ErrPlanNotAvailable):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrExchangeInProgress),
		errors.Is(err, services.ErrAlreadyCheckedIn):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInsufficientFuel):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, services.ErrInferenceFailed):
		return http.StatusBadGateway, services.ErrInferenceFailed.Error()
	case errors.Is(err, services.ErrPaymentsDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	respondWithError(w, code, msg)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
