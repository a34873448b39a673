package daemonapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotdev/pilotd/pkg/audit"
	"github.com/pilotdev/pilotd/pkg/auth"
	"github.com/pilotdev/pilotd/pkg/classifier"
	"github.com/pilotdev/pilotd/pkg/knowledge"
	"github.com/pilotdev/pilotd/pkg/permission"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ledger, err := audit.Open(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	tokens, err := auth.NewManager(filepath.Join(t.TempDir(), "tokens.json"), time.Hour)
	require.NoError(t, err)

	ks, err := knowledge.Open(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })

	return &Server{
		StartedAt:  time.Now(),
		Port:       8743,
		Classifier: classifier.New(classifier.DefaultConfig(), classifier.NewRubricEngine(), nil),
		Decider:    permission.New(permission.DefaultPolicy()),
		Ledger:     ledger,
		Tokens:     tokens,
		Knowledge:  ks,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	hooks := body["hooks"].(map[string]any)
	assert.True(t, hooks["classifier_available"].(bool))
}

func TestHandleReady(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Router(), http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleClassify_ReadCommand(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Router(), http.MethodPost, "/api/classify", map[string]string{"command": "ls -la"})
	assert.Equal(t, http.StatusOK, w.Code)

	var body classifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "READ", body.Classification)
}

func TestHandleClassify_NilClassifierReturns503(t *testing.T) {
	s := newTestServer(t)
	s.Classifier = nil
	w := doJSON(t, s.Router(), http.MethodPost, "/api/classify", map[string]string{"command": "ls"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleClassify_MalformedBodyReturns400(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePermissionRequest_ReadIsApproved(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Router(), http.MethodPost, "/api/hooks/permission-request", map[string]string{
		"command": "ls -la", "classification": "READ",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var body permissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Approved", body.Decision)

	// Decision write is async; poll briefly for it to land.
	var decisionsBody map[string]any
	require.Eventually(t, func() bool {
		w2 := doJSON(t, s.Router(), http.MethodGet, "/api/hooks/decisions", nil)
		require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &decisionsBody))
		recent, ok := decisionsBody["recent"].([]any)
		return ok && len(recent) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandlePermissionRequest_DeleteIsPending(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Router(), http.MethodPost, "/api/hooks/permission-request", map[string]string{
		"command": "rm -rf build/", "classification": "DELETE",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var body permissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Pending", body.Decision)
	assert.NotEmpty(t, body.Reasoning)
}

func TestHandleTokenGenerate(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Router(), http.MethodPost, "/api/token/generate", map[string]string{"project_id": "proj-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	var body tokenGenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "proj-1", body.ProjectID)
	assert.True(t, body.ExpiresAt.After(time.Now()))
}

func TestKnowledgeRoutes_RequireBearerToken(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.Router(), http.MethodPost, "/api/knowledge/store", map[string]string{"text": "some decision text here"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKnowledgeRoutes_StoreAndSearchWithToken(t *testing.T) {
	s := newTestServer(t)
	tok, err := s.Tokens.Generate("proj-1")
	require.NoError(t, err)

	router := s.Router()

	storeReq := httptest.NewRequest(http.MethodPost, "/api/knowledge/store", bytes.NewReader(mustJSON(t, map[string]string{
		"text": "we decided to use sqlite for the audit ledger", "project_id": "proj-1", "knowledge_type": "decision",
	})))
	storeReq.Header.Set("Content-Type", "application/json")
	storeReq.Header.Set("Authorization", "Bearer "+tok.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, storeReq)
	require.Equal(t, http.StatusOK, w.Code)

	searchReq := httptest.NewRequest(http.MethodPost, "/api/knowledge/search", bytes.NewReader(mustJSON(t, map[string]any{
		"query": "sqlite audit ledger decision", "limit": 5,
	})))
	searchReq.Header.Set("Content-Type", "application/json")
	searchReq.Header.Set("Authorization", "Bearer "+tok.Token)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, searchReq)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestKnowledgeRoutes_NotMountedWithoutStore(t *testing.T) {
	s := newTestServer(t)
	s.Knowledge = nil
	router := s.Router()
	w := doJSON(t, router, http.MethodGet, "/api/knowledge/stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
