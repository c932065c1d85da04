package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"direct-chat/models"
	"direct-chat/services"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	log := zerolog.Nop()
	media, err := services.NewLocalMediaStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	registry := services.NewConnectionRegistry()
	hub := services.NewHub(registry, log, time.Second, 5*time.Second)
	t.Cleanup(hub.Close)
	store := services.NewMessageStore(db)

	return RegisterRoutes(Dependencies{
		Log:      log,
		Tokens:   services.NewTokenManager("test-secret", time.Hour),
		Users:    services.NewUserService(db),
		Messages: services.NewMessageService(store, media, services.NewDeliveryRouter(registry, hub, log), log),
		Store:    store,
		Hub:      hub,
		Upgrader: services.NewUpgrader([]string{"*"}),
	})
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func register(t *testing.T, r http.Handler, username string) authResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "password1",
		"fullName": username,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	r := setupRouter(t)
	alice := register(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "alice", "password": "password1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/auth/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setupRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/messages/users"},
		{http.MethodGet, "/api/messages/2"},
		{http.MethodPost, "/api/messages/send/2"},
	}
	for _, p := range paths {
		w := doJSON(t, r, p.method, p.path, "", map[string]string{"text": "hi"})
		assert.Equal(t, http.StatusUnauthorized, w.Code, p.path)

		w = doJSON(t, r, p.method, p.path, "bogus", map[string]string{"text": "hi"})
		assert.Equal(t, http.StatusUnauthorized, w.Code, p.path)
	}
}

func TestSendAndHistory(t *testing.T) {
	r := setupRouter(t)
	alice := register(t, r, "alice")
	bob := register(t, r, "bob")
	aliceID, bobID := alice.User.UserID(), bob.User.UserID()

	w := doJSON(t, r, http.MethodPost, "/api/messages/send/"+bobID, alice.Token, map[string]string{"text": "hi bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, aliceID, sent.SenderID)
	assert.Equal(t, bobID, sent.ReceiverID)

	w = doJSON(t, r, http.MethodPost, "/api/messages/send/"+aliceID, bob.Token, map[string]string{
		"image": "data:image/png;base64,iVBORw0KGgo=",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Empty(t, reply.Text)
	assert.Contains(t, reply.Image, "/uploads/")

	w = doJSON(t, r, http.MethodPost, "/api/messages/send/"+bobID, alice.Token, map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, tc := range []struct {
		token string
		other string
	}{{alice.Token, bobID}, {bob.Token, aliceID}} {
		w = doJSON(t, r, http.MethodGet, "/api/messages/"+tc.other, tc.token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var history []models.Message
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
		require.Len(t, history, 2)
		assert.Equal(t, sent.ID, history[0].ID)
		assert.Equal(t, reply.ID, history[1].ID)
	}
}

func TestHistoryEmptyIsArray(t *testing.T) {
	r := setupRouter(t)
	alice := register(t, r, "alice")

	w := doJSON(t, r, http.MethodGet, "/api/messages/999", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSidebarExcludesCaller(t *testing.T) {
	r := setupRouter(t)
	alice := register(t, r, "alice")
	register(t, r, "bob")
	register(t, r, "carol")

	w := doJSON(t, r, http.MethodGet, "/api/messages/users", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].Username)
	assert.Equal(t, "carol", users[1].Username)
}

func TestSendRejectsBadImages(t *testing.T) {
	r := setupRouter(t)
	alice := register(t, r, "alice")
	bob := register(t, r, "bob")
	path := "/api/messages/send/" + bob.User.UserID()

	for _, image := range []string{
		"data:text/plain;base64,aGk=",
		"not base64 !!",
		"data:image/png;base64,",
	} {
		w := doJSON(t, r, http.MethodPost, path, alice.Token, map[string]string{"image": image})
		assert.Equal(t, http.StatusBadRequest, w.Code, image)
		assert.NotContains(t, w.Body.String(), "Failed to upload image", image)
	}

	w := doJSON(t, r, http.MethodGet, "/api/messages/"+bob.User.UserID(), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSendRejectsOversizedBody(t *testing.T) {
	r := setupRouter(t)
	alice := register(t, r, "alice")
	bob := register(t, r, "bob")

	image := "data:image/png;base64," + strings.Repeat("A", 8<<20)
	w := doJSON(t, r, http.MethodPost, "/api/messages/send/"+bob.User.UserID(), alice.Token, map[string]string{"image": image})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/messages/"+bob.User.UserID(), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
