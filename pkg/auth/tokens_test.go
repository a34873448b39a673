package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	mgr, err := NewManager(filepath.Join(t.TempDir(), "tokens.json"), ttl)
	require.NoError(t, err)
	return mgr
}

func TestGenerate_ThenVerify(t *testing.T) {
	mgr := newManager(t, time.Hour)
	tok, err := mgr.Generate("proj-1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, "proj-1", tok.ProjectID)

	verified, err := mgr.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", verified.ProjectID)
}

func TestVerify_UnknownTokenIsInvalid(t *testing.T) {
	mgr := newManager(t, time.Hour)
	_, err := mgr.Verify("does-not-exist")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_ExpiredTokenSurfaces(t *testing.T) {
	mgr := newManager(t, -time.Minute)
	tok, err := mgr.Generate("proj-1")
	require.NoError(t, err)

	_, err = mgr.Verify(tok.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestManager_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	mgr, err := NewManager(path, time.Hour)
	require.NoError(t, err)
	tok, err := mgr.Generate("proj-1")
	require.NoError(t, err)

	reloaded, err := NewManager(path, time.Hour)
	require.NoError(t, err)
	verified, err := reloaded.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", verified.ProjectID)
}

func TestRequireBearer_MissingHeaderRejected(t *testing.T) {
	mgr := newManager(t, time.Hour)
	router := gin.New()
	router.GET("/x", RequireBearer(mgr), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireBearer_ValidTokenPasses(t *testing.T) {
	mgr := newManager(t, time.Hour)
	tok, err := mgr.Generate("proj-1")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/x", RequireBearer(mgr), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireBearer_ExpiredTokenRejected(t *testing.T) {
	mgr := newManager(t, -time.Minute)
	tok, err := mgr.Generate("proj-1")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/x", RequireBearer(mgr), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
