package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nyraAPI/internal/fuel"
)

type fuelService interface {
	GetFuel(ctx context.Context, userID uuid.UUID) (*fuel.Fuel, error)
	Checkout(ctx context.Context, userID uuid.UUID, pkg fuel.Package) (*fuel.Checkout, error)
}

type FuelHandler struct {
	fuel   fuelService
	users  userResolver
	logger *zap.Logger
}

func NewFuelHandler(fuel fuelService, users userResolver, logger *zap.Logger) *FuelHandler {
	return &FuelHandler{fuel: fuel, users: users, logger: logger.Named("fuel_handler")}
}

func (h *FuelHandler) GetFuel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.users, h.logger)
	if !ok {
		return
	}

	f, err := h.fuel.GetFuel(ctx, userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, f)
}

func (h *FuelHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.users, h.logger)
	if !ok {
		return
	}

	var req fuel.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Package.Valid() {
		respondWithError(w, http.StatusBadRequest, "package must be full or refill")
		return
	}

	checkout, err := h.fuel.Checkout(ctx, userID, req.Package)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, checkout)
}

// PaymentSuccessPage is where the Paddle checkout returns in a browser.
func (h *FuelHandler) PaymentSuccessPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
	<title>Fuel added</title>
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<style>
		body { background-color: #14121c; color: white; font-family: sans-serif; text-align: center; padding: 50px 20px; }
		h1 { color: #b98cff; }
		p { color: #888; }
	</style>
</head>
<body>
	<h1>Payment successful</h1>
	<p>Your fuel is on its way. You can close this window and go back to Nyra.</p>
</body>
</html>`))
}
