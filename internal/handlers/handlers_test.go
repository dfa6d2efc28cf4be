package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"englearn/internal/config"
	"englearn/internal/middleware"
	"englearn/internal/models"
	"englearn/internal/repository"
	"englearn/internal/security"
	"englearn/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mailbox struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
}

func (m *mailbox) SendVerificationEmail(_ context.Context, u models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification[u.Email] = token
	return nil
}

func (m *mailbox) SendPasswordResetEmail(_ context.Context, u models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[u.Email] = token
	return nil
}

type memObjects struct {
	mu   sync.Mutex
	keys []string
}

func (o *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keys = append(o.keys, key)
	return nil
}

func (o *memObjects) Remove(context.Context, string) error { return nil }

func (o *memObjects) PublicURL(key string) string { return "https://cdn.test/" + key }

type testAPI struct {
	router *gin.Engine
	store  *repository.MemoryStore
	mail   *mailbox
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()

	cfg := &config.AppConfig{
		Environment: "test",
		Storage:     config.StorageConfig{MaxAvatarSize: 4096},
		RateLimit:   config.RateLimitConfig{PerMinute: 60, Burst: 10},
	}
	store := repository.NewMemoryStore()
	hasher := security.NewHasher(security.Argon2Params{Time: 1, Memory: 1024, Threads: 1})
	codec, err := security.NewTokenCodec("handler-secret", "HS256", 30*time.Minute, time.Hour)
	require.NoError(t, err)
	mail := &mailbox{verification: map[string]string{}, reset: map[string]string{}}

	auth := service.NewAuthService(store, hasher, codec, mail, time.Hour, zerolog.Nop())
	avatars := service.NewAvatarService(auth, &memObjects{}, "resource-secret", cfg.Storage.MaxAvatarSize, zerolog.Nop())

	h := NewHandlerSet(Deps{
		Log:     zerolog.Nop(),
		Config:  cfg,
		Auth:    auth,
		Avatars: avatars,
		Users:   store,
		Tokens:  codec,
	})

	r := gin.New()
	r.Use(middleware.RequestID(zerolog.Nop()), middleware.Recovery())
	h.Register(r.Group("/api"))

	return testAPI{router: r, store: store, mail: mail}
}

func (a testAPI) call(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (a testAPI) register(t *testing.T, email string) (string, map[string]any) {
	t.Helper()
	w, body := a.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":            email,
		"password":         "Passw0rd1",
		"confirm_password": "Passw0rd1",
		"full_name":        "Alice Doe",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tokens := body["tokens"].(map[string]any)
	return tokens["access_token"].(string), body
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)
	_, body := api.register(t, "alice@example.com")

	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "A1", user["current_level"])
	assert.Equal(t, false, user["is_verified"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, body, "verification_token")
	assert.Equal(t, "bearer", body["tokens"].(map[string]any)["token_type"])

	w, body := api.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "alice@example.com", "password": "Passw0rd1", "confirm_password": "Passw0rd1", "full_name": "Alice",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "conflict", body["error"])

	w, body = api.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "alice@example.com", "password": "Passw0rd1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Login successful", body["message"])

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email": "alice@example.com", "password": "Wrong0ne1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestRegister_ValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	cases := map[string]map[string]any{
		"bad email":     {"email": "nope", "password": "Passw0rd1", "confirm_password": "Passw0rd1", "full_name": "Al"},
		"weak password": {"email": "a@example.com", "password": "password", "confirm_password": "password", "full_name": "Al"},
		"mismatch":      {"email": "a@example.com", "password": "Passw0rd1", "confirm_password": "Passw0rd2", "full_name": "Al"},
		"missing name":  {"email": "a@example.com", "password": "Passw0rd1", "confirm_password": "Passw0rd1"},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := api.call(t, http.MethodPost, "/api/v1/auth/register", "", payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestProfileAndPreferences(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register(t, "alice@example.com")

	w, _ := api.call(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := api.call(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice Doe", body["full_name"])

	w, body = api.call(t, http.MethodPut, "/api/v1/auth/me", token, map[string]any{"current_level": "B2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "B2", body["current_level"])
	assert.Equal(t, "Alice Doe", body["full_name"])

	w, body = api.call(t, http.MethodGet, "/api/v1/auth/me/preferences", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "id", body["language_interface"])
	assert.Equal(t, float64(3), body["daily_goal"])

	w, body = api.call(t, http.MethodPut, "/api/v1/auth/me/preferences", token, map[string]any{"theme": "dark", "reminder_time": "07:30"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dark", body["theme"])
	assert.Equal(t, "07:30", body["reminder_time"])
	assert.Equal(t, "id", body["language_interface"])

	w, _ = api.call(t, http.MethodPut, "/api/v1/auth/me/preferences", token, map[string]any{"daily_goal": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefresh(t *testing.T) {
	api := newTestAPI(t)
	_, body := api.register(t, "alice@example.com")
	tokens := body["tokens"].(map[string]any)

	w, out := api.call(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": tokens["refresh_token"]})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, out["access_token"])

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/refresh?refresh_token="+tokens["refresh_token"].(string), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{"refresh_token": tokens["access_token"]})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/refresh", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerificationAndPasswordChange(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register(t, "alice@example.com")

	change := map[string]any{"current_password": "Passw0rd1", "new_password": "NewPassw0rd", "confirm_password": "NewPassw0rd"}
	w, _ := api.call(t, http.MethodPost, "/api/v1/auth/password/change", token, change)
	assert.Equal(t, http.StatusForbidden, w.Code)

	verification := api.mail.verification["alice@example.com"]
	require.NotEmpty(t, verification)
	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/email/verify", "", map[string]any{"token": verification})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/email/verify", "", map[string]any{"token": verification})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/email/resend-verification", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	wrong := map[string]any{"current_password": "Nope0000a", "new_password": "NewPassw0rd", "confirm_password": "NewPassw0rd"}
	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/password/change", token, wrong)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/password/change", token, change)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "alice@example.com", "password": "NewPassw0rd"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPasswordReset(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice@example.com")

	for _, email := range []string{"alice@example.com", "nobody@example.com"} {
		w, body := api.call(t, http.MethodPost, "/api/v1/auth/password/reset/request", "", map[string]any{"email": email})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "If the email exists, a password reset link has been sent", body["message"])
	}

	reset := api.mail.reset["alice@example.com"]
	require.NotEmpty(t, reset)
	assert.NotContains(t, api.mail.reset, "nobody@example.com")

	confirm := map[string]any{"token": reset, "new_password": "Reset0Pass", "confirm_password": "Reset0Pass"}
	w, _ := api.call(t, http.MethodPost, "/api/v1/auth/password/reset/confirm", "", confirm)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/password/reset/confirm", "", confirm)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "alice@example.com", "password": "Reset0Pass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateTokenLogoutAndWhoAmI(t *testing.T) {
	api := newTestAPI(t)
	token, body := api.register(t, "alice@example.com")
	userID := body["user"].(map[string]any)["id"]

	w, out := api.call(t, http.MethodGet, "/api/v1/auth/validate-token", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, userID, out["user_id"])
	assert.Equal(t, []any{"user"}, out["scopes"])

	w, out = api.call(t, http.MethodGet, "/api/v1/auth/whoami", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["authenticated"])

	w, out = api.call(t, http.MethodGet, "/api/v1/auth/whoami", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["authenticated"])

	w, out = api.call(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logout successful", out["message"])

	// stateless tokens survive logout
	w, _ = api.call(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateToken_ChecksTokenOnly(t *testing.T) {
	api := newTestAPI(t)
	token, body := api.register(t, "alice@example.com")
	userID := body["user"].(map[string]any)["id"].(string)

	ctx := context.Background()
	user, err := api.store.FindByID(ctx, userID)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, api.store.UpdateUser(ctx, &user))

	w, _ := api.call(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, out := api.call(t, http.MethodGet, "/api/v1/auth/validate-token", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, userID, out["user_id"])
	assert.Equal(t, "alice@example.com", out["email"])

	w, _ = api.call(t, http.MethodGet, "/api/v1/auth/validate-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	userToken, body := api.register(t, "alice@example.com")
	userID := body["user"].(map[string]any)["id"].(string)
	_, body = api.register(t, "root@example.com")
	adminID := body["user"].(map[string]any)["id"].(string)

	w, _ := api.call(t, http.MethodGet, "/api/v1/auth/users/"+adminID, userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	ctx := context.Background()
	admin, err := api.store.FindByID(ctx, adminID)
	require.NoError(t, err)
	admin.IsAdmin = true
	require.NoError(t, api.store.UpdateUser(ctx, &admin))

	// scopes are fixed at issue time, so log in again
	w, out := api.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "root@example.com", "password": "Passw0rd1"})
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := out["tokens"].(map[string]any)["access_token"].(string)

	w, out = api.call(t, http.MethodGet, "/api/v1/auth/users/"+userID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", out["email"])

	w, _ = api.call(t, http.MethodGet, "/api/v1/auth/users/6ba7b810-9dad-11d1-80b4-00c04fd430c8", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = api.call(t, http.MethodGet, "/api/v1/auth/users/not-a-uuid", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, out = api.call(t, http.MethodPut, "/api/v1/auth/users/"+userID+"/status", adminToken, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User deactivated successfully", out["message"])

	w, _ = api.call(t, http.MethodGet, "/api/v1/auth/me", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, out = api.call(t, http.MethodPut, "/api/v1/auth/users/"+userID+"/status?is_active=true", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User activated successfully", out["message"])

	w, _ = api.call(t, http.MethodPut, "/api/v1/auth/users/"+userID+"/status", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAvatar(t *testing.T) {
	api := newTestAPI(t)
	token, body := api.register(t, "alice@example.com")
	userID := body["user"].(map[string]any)["id"].(string)

	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="me.gif"`)
		hdr.Set("Content-Type", "image/gif")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("GIF89a\x01\x00\x01\x00"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/v1/auth/me/avatar", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, upload().Code)

	u, err := api.store.FindByID(context.Background(), userID)
	require.NoError(t, err)
	u.IsVerified = true
	require.NoError(t, api.store.UpdateUser(context.Background(), &u))

	w := upload()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Contains(t, out["avatar_url"], "https://cdn.test/avatars/"+userID+"/")
	assert.Contains(t, out["avatar_url"], "?sig=")

	signed, err := url.Parse(out["avatar_url"].(string))
	require.NoError(t, err)
	authorize := func(uri string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/avatars/authorize", nil)
		req.Header.Set("X-Original-URI", uri)
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusNoContent, authorize(signed.RequestURI()))
	assert.Equal(t, http.StatusNoContent, authorize("/englearn-avatars"+signed.RequestURI()))
	assert.Equal(t, http.StatusForbidden, authorize(signed.Path))
	assert.Equal(t, http.StatusForbidden, authorize(signed.Path+"?sig=forged"))
}

func TestHealthAndRoot(t *testing.T) {
	api := newTestAPI(t)

	w, out := api.call(t, http.MethodGet, "/api/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "disabled", out["cache"])

	w, out = api.call(t, http.MethodGet, "/api/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "englearn", out["name"])
}
