package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ngalkin/session_auth/internal/middleware"
	"github.com/ngalkin/session_auth/internal/models"
	"github.com/ngalkin/session_auth/internal/repo"
	"github.com/ngalkin/session_auth/internal/service"
	"github.com/ngalkin/session_auth/pkg/tokens"
)

type testApp struct {
	e   *echo.Echo
	db  *gorm.DB
	svc *service.AuthService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	store := &repo.GormRepo{DB: db}
	accessCodec := tokens.NewCodec([]byte("test-access-secret"), 15*time.Minute)
	svc := &service.AuthService{
		Repo:    store,
		Access:  accessCodec,
		Refresh: &service.RefreshManager{Repo: store, Codec: tokens.NewCodec([]byte("test-refresh-secret"), 7*24*time.Hour)},
	}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: svc},
		AccessAuth:  middleware.NewAccessAuth(accessCodec),
	})
	return &testApp{e: e, db: db, svc: svc}
}

func (a *testApp) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) registerAndLogin(t *testing.T) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/register", map[string]string{
		"username": "alice", "password": "p@ss", "name": "Alice", "role": "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/login", map[string]string{
		"username": "alice", "password": "p@ss",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["accessToken"])

	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie, "login must set the refresh cookie")
	return body["accessToken"], refreshCookie
}

func TestRegister_CreatedWithoutPassword(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.do(t, http.MethodPost, "/register", map[string]string{
		"username": "alice", "password": "p@ss", "name": "Alice", "role": "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "Alice", body["name"])
	assert.Equal(t, "user", body["role"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "PasswordHash")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	payload := map[string]string{"username": "alice", "password": "p@ss"}

	rec := app.do(t, http.MethodPost, "/register", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodPost, "/register", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_SetsRefreshCookie(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	_, cookie := app.registerAndLogin(t)

	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
	// Default refresh policy: seven days.
	assert.InDelta(t, 7*24*3600, cookie.MaxAge, 5)
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.registerAndLogin(t)

	rec := app.do(t, http.MethodPost, "/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_NoCookie(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.do(t, http.MethodPost, "/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "accessToken")
}

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	_, cookie := app.registerAndLogin(t)

	rec := app.do(t, http.MethodPost, "/refresh", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	claims, err := app.svc.Access.Parse(body["accessToken"])
	require.NoError(t, err)
	assert.Equal(t, "user", claims.Role)
}

func TestRefresh_GarbageCookie(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	rec := app.do(t, http.MethodPost, "/refresh", nil, &http.Cookie{Name: "refreshToken", Value: "garbage"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefresh_ExpiredStoredRecord(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	_, cookie := app.registerAndLogin(t)

	require.NoError(t, app.db.Model(&models.RefreshToken{}).
		Where("token = ?", cookie.Value).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	rec := app.do(t, http.MethodPost, "/refresh", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout_AlwaysSucceedsAndClearsCookie(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	// Without any cookie.
	rec := app.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, cookie := app.registerAndLogin(t)
	rec = app.do(t, http.MethodPost, "/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestLogout_ThenRefreshRejected(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	_, cookie := app.registerAndLogin(t)

	rec := app.do(t, http.MethodPost, "/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	// The token still carries a valid signature and expiry; only the
	// record is gone.
	rec = app.do(t, http.MethodPost, "/refresh", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	_, cookie := app.registerAndLogin(t)

	rec := app.do(t, http.MethodGet, "/user", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password")
}

func TestCurrentUser_Rejections(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	_, cookie := app.registerAndLogin(t)

	rec := app.do(t, http.MethodGet, "/user", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/user", nil, &http.Cookie{Name: "refreshToken", Value: "garbage"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, app.db.Where("username = ?", "alice").Delete(&models.User{}).Error)
	rec = app.do(t, http.MethodGet, "/user", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerify_RequiresAccessToken(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	accessToken, _ := app.registerAndLogin(t)

	rec := app.do(t, http.MethodGet, "/verify", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+accessToken)
	rr := httptest.NewRecorder()
	app.e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "user", body["role"])
	assert.NotEmpty(t, body["user_id"])
}
