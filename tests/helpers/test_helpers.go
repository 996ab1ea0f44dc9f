package helpers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nyraAPI/internal/db"
	"nyraAPI/internal/inference"
)

const ClerkIDPrefix = "user_test_"

var testSecret = []byte("test-secret-key-for-testing-only")

// SetupTestDB connects to TEST_DATABASE_URL and applies the schema. Tests are
// skipped when no database is configured.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(t, pool) })
	return pool
}

// CleanupTestDB removes every user created by a test. Dependent rows go with
// them through ON DELETE CASCADE.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	_, err := pool.Exec(context.Background(), "DELETE FROM users WHERE clerk_id LIKE $1", ClerkIDPrefix+"%")
	if err != nil {
		t.Logf("Warning: failed to cleanup test data: %v", err)
	}
	pool.Close()
}

func NewClerkID() string {
	return fmt.Sprintf("%s%d", ClerkIDPrefix, time.Now().UnixNano())
}

// GenerateMockClerkJWT signs a session token shaped like Clerk's with a local
// HS256 key. Pair it with VerifyMockClerkJWT.
func GenerateMockClerkJWT(clerkID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   clerkID,
		Issuer:    "https://clerk.test",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(testSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyMockClerkJWT satisfies middleware.TokenVerifier for tokens from
// GenerateMockClerkJWT.
func VerifyMockClerkJWT(_ context.Context, token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return testSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("https://clerk.test"))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// MockClerkWebhookPayload builds a Clerk user event body.
func MockClerkWebhookPayload(eventType string, clerkID string) []byte {
	payload := ""

	switch eventType {
	case "user.created":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"first_name": "Test",
				"last_name": "User",
				"email_addresses": [{
					"id": "email_123",
					"email_address": "test.user@example.com",
					"verification": {"status": "verified"}
				}],
				"primary_email_address_id": "email_123",
				"username": "testuser",
				"image_url": "https://example.com/image.jpg"
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)

	case "user.updated":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"first_name": "Updated",
				"last_name": "User",
				"email_addresses": [{
					"id": "email_123",
					"email_address": "test.user@example.com",
					"verification": {"status": "verified"}
				}],
				"primary_email_address_id": "email_123",
				"username": "updateduser",
				"image_url": "https://example.com/new-image.jpg"
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)

	case "user.deleted":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"deleted": true
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)
	}

	return []byte(payload)
}

// ScriptedClient replies with Reply split on spaces, or fails with Err.
type ScriptedClient struct {
	Reply string
	Err   error
}

func (c *ScriptedClient) Name() string { return "scripted" }

func (c *ScriptedClient) Stream(ctx context.Context, req inference.Request) (<-chan string, <-chan error) {
	fragments := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(fragments)

		if c.Err != nil {
			errs <- c.Err
			return
		}
		words := strings.SplitAfter(c.Reply, " ")
		for _, w := range words {
			select {
			case fragments <- w:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return fragments, errs
}

var ErrScripted = errors.New("scripted inference failure")
