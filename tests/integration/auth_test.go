package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nyraAPI/handlers"
	"nyraAPI/internal/cache"
	"nyraAPI/internal/user"
	"nyraAPI/middleware"
	"nyraAPI/services"
	"nyraAPI/tests/helpers"
)

func protectedRouter(userHandler *handlers.UserHandler) *mux.Router {
	r := mux.NewRouter()
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(helpers.VerifyMockClerkJWT, zap.NewNop()))
	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	return r
}

func authedRequest(t *testing.T, method, path, body, clerkID string) *http.Request {
	t.Helper()
	token, err := helpers.GenerateMockClerkJWT(clerkID, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGetProfile_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	ids, err := cache.NewIDCache(16)
	require.NoError(t, err)
	userService := services.NewUserService(pool, ids, 25, zap.NewNop())
	router := protectedRouter(handlers.NewUserHandler(userService, zap.NewNop()))

	clerkID := helpers.NewClerkID()
	createdUser, err := userService.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     "testauth@example.com",
		Username:  "testauth",
		FirstName: "Test",
		LastName:  "Auth",
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(t, http.MethodGet, "/api/v1/user", "", clerkID))

	require.Equal(t, http.StatusOK, rr.Code)

	var response user.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, createdUser.ID, response.ID)
	assert.Equal(t, clerkID, response.ClerkID)
	assert.Equal(t, "testauth", response.Username)
}

func TestGetProfile_Unauthenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	userService := services.NewUserService(pool, nil, 25, zap.NewNop())
	router := protectedRouter(handlers.NewUserHandler(userService, zap.NewNop()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetProfile_ExpiredToken(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	userService := services.NewUserService(pool, nil, 25, zap.NewNop())
	router := protectedRouter(handlers.NewUserHandler(userService, zap.NewNop()))

	token, err := helpers.GenerateMockClerkJWT(helpers.NewClerkID(), -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateProfile_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	userService := services.NewUserService(pool, nil, 25, zap.NewNop())
	router := protectedRouter(handlers.NewUserHandler(userService, zap.NewNop()))

	clerkID := helpers.NewClerkID()
	_, err := userService.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     "testupdate@example.com",
		Username:  "testupdate",
		FirstName: "Test",
	})
	require.NoError(t, err)

	body := `{"firstName": "Updated", "username": "newusername", "age": 29, "interests": ["hiking", "jazz"]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(t, http.MethodPut, "/api/v1/user/update-profile", body, clerkID))

	require.Equal(t, http.StatusOK, rr.Code)

	var response user.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "Updated", response.FirstName)
	assert.Equal(t, "newusername", response.Username)
	assert.Equal(t, 29, response.Age)
	assert.Equal(t, []string{"hiking", "jazz"}, response.Interests)
}

func TestUpdateProfile_RejectsAge(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	userService := services.NewUserService(pool, nil, 25, zap.NewNop())
	router := protectedRouter(handlers.NewUserHandler(userService, zap.NewNop()))

	clerkID := helpers.NewClerkID()
	_, err := userService.CreateUser(context.Background(), &user.CreateUserRequest{ClerkID: clerkID})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(t, http.MethodPut, "/api/v1/user/update-profile", `{"age": 400}`, clerkID))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteAccount_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	userService := services.NewUserService(pool, nil, 25, zap.NewNop())
	router := protectedRouter(handlers.NewUserHandler(userService, zap.NewNop()))

	clerkID := helpers.NewClerkID()
	_, err := userService.CreateUser(context.Background(), &user.CreateUserRequest{ClerkID: clerkID})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(t, http.MethodDelete, "/api/v1/user/delete-account", "", clerkID))
	require.Equal(t, http.StatusOK, rr.Code)

	_, err = userService.GetUserByClerkID(context.Background(), clerkID)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}
