package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"nyraAPI/internal/clerk"
	"nyraAPI/internal/fuel"
	"nyraAPI/internal/user"
	"nyraAPI/services"
)

const (
	maxWebhookBytes = int64(65536)
	svixTolerance   = 5 * time.Minute
)

type accountService interface {
	CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error)
	UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error)
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
	UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error
}

type fuelCreditor interface {
	Credit(ctx context.Context, p fuel.Purchase) (bool, error)
}

type WebhookHandler struct {
	users        accountService
	credits      fuelCreditor
	clerkSecret  string
	stripeSecret string
	now          func() time.Time
	logger       *zap.Logger
}

func NewWebhookHandler(users accountService, credits fuelCreditor, clerkSecret, stripeSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		users:        users,
		credits:      credits,
		clerkSecret:  clerkSecret,
		stripeSecret: stripeSecret,
		now:          time.Now,
		logger:       logger.Named("webhooks"),
	}
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if h.clerkSecret == "" {
		h.logger.Warn("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
	} else if err := verifySvix(h.clerkSecret, r.Header, body, h.now()); err != nil {
		h.logger.Warn("invalid clerk webhook signature", zap.Error(err))
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		h.logger.Debug("unhandled clerk event", zap.String("type", event.Type))
	}
	if err != nil {
		h.logger.Error("clerk webhook failed", zap.String("type", event.Type), zap.Error(err))
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func displayFields(d clerk.ClerkUserData) (username, imageURL string) {
	username = d.Username
	if username == "" {
		username = d.FirstName + d.LastName
	}
	imageURL = d.ImageURL
	if imageURL == "" {
		imageURL = d.ProfileImageURL
	}
	return username, imageURL
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email, verified := userData.PrimaryEmail()
	username, imageURL := displayFields(userData)

	u, err := h.users.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   userData.ID,
		Email:     email,
		Username:  username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if verified {
		if err := h.users.UpdateEmailVerification(ctx, userData.ID, true); err != nil {
			h.logger.Warn("failed to store email verification", zap.Error(err))
		}
	}

	h.logger.Info("user created", zap.String("clerk_id", u.ClerkID), zap.String("user_id", u.ID.String()))
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	username, imageURL := displayFields(userData)
	_, err := h.users.UpdateProfileByClerkID(ctx, userData.ID, &user.UpdateProfileRequest{
		Username:  username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if _, verified := userData.PrimaryEmail(); verified {
		if err := h.users.UpdateEmailVerification(ctx, userData.ID, true); err != nil {
			h.logger.Warn("failed to store email verification", zap.Error(err))
		}
	}
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	err := h.users.DeleteUserByClerkID(ctx, userData.ID)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// verifySvix checks a Clerk (Svix) signature: base64 HMAC-SHA256 over
// "id.timestamp.body", keyed with the base64 part of the whsec_ secret. The
// signature header may list several space separated "v1,<sig>" entries.
func verifySvix(secret string, header http.Header, body []byte, now time.Time) error {
	msgID := header.Get("svix-id")
	timestamp := header.Get("svix-timestamp")
	signatures := header.Get("svix-signature")
	if msgID == "" || timestamp == "" || signatures == "" {
		return errors.New("missing svix headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("bad svix-timestamp: %w", err)
	}
	sent := time.Unix(ts, 0)
	if now.Sub(sent) > svixTolerance || sent.Sub(now) > svixTolerance {
		return errors.New("svix timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("bad webhook secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(body)
	expected := []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	for _, entry := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return errors.New("no matching signature")
}

// HandleStripeWebhook credits fuel for completed Stripe checkouts. The
// session must carry user_id and package metadata.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if h.stripeSecret == "" {
		h.logger.Error("STRIPE_WEBHOOK_SECRET is not set")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.stripeSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("invalid stripe webhook", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if event.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		w.WriteHeader(http.StatusOK)
		return
	}

	purchase, err := stripePurchase(&session)
	if err != nil {
		h.logger.Warn("stripe session without usable metadata", zap.String("session_id", session.ID), zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := h.credits.Credit(ctx, purchase); err != nil {
		h.logger.Error("failed to credit stripe purchase", zap.String("session_id", session.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func stripePurchase(session *stripe.CheckoutSession) (fuel.Purchase, error) {
	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		return fuel.Purchase{}, fmt.Errorf("bad user_id: %w", err)
	}
	pkg := fuel.Package(session.Metadata["package"])
	if !pkg.Valid() {
		return fuel.Purchase{}, fmt.Errorf("unknown package %q", pkg)
	}
	return fuel.Purchase{
		Provider:      "stripe",
		TransactionID: session.ID,
		UserID:        userID,
		Package:       pkg,
	}, nil
}

// restoreBody lets a verifier that consumes the body run before we parse it.
func restoreBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
}
