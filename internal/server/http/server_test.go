package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/homedisk/internal/config"
	"github.com/and161185/homedisk/internal/crypto"
	"github.com/and161185/homedisk/internal/limiter"
	"github.com/and161185/homedisk/internal/metrics"
	"github.com/and161185/homedisk/internal/repository/sqlite"
	"github.com/and161185/homedisk/internal/service"
	"github.com/and161185/homedisk/internal/storage"
	"github.com/and161185/homedisk/internal/token"
)

type env struct {
	ts      *httptest.Server
	root    string
	metrics *metrics.Metrics
}

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: time.Second,
		RateLimit:       1000,
		RateBurst:       1000,
	}
}

func newEnv(t *testing.T, maxFails int) *env {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	codec, err := crypto.NewCodec(crypto.SchemeSHA512)
	require.NoError(t, err)
	tokens, err := token.NewServiceHours([]byte("0123456789abcdef"), 1)
	require.NoError(t, err)
	lim := limiter.NewMemory(limiter.Policy{Window: time.Minute, MaxFails: maxFails, BlockFor: time.Minute})

	root := t.TempDir()
	auth := service.NewAuthService(sqlite.NewUserRepo(db), codec, tokens, lim, root)
	files := service.NewFileService(root, storage.NewLister())

	m := metrics.New()
	srv := NewServer(auth, files, zaptest.NewLogger(t), m)
	ts := httptest.NewServer(srv.Handler(testHTTPConfig()))
	t.Cleanup(ts.Close)

	return &env{ts: ts, root: root, metrics: m}
}

func (e *env) do(t *testing.T, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (e *env) register(t *testing.T, user, pass string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/register", "", credentialsRequest{Username: user, Password: pass})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	tok, _ := body["access_token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestAPI_RegisterLoginWhoami(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 5)

	tok := e.register(t, "Alice123", "password1")

	resp, body := e.do(t, http.MethodPost, "/api/auth/register", "", credentialsRequest{Username: "alice123", Password: "password2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already exists", body["error"])

	resp, body = e.do(t, http.MethodPost, "/api/auth/login", "", credentialsRequest{Username: "ALICE123", Password: "password1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])
	_, err := time.Parse(time.RFC3339, body["expires_at"].(string))
	assert.NoError(t, err)

	resp, body = e.do(t, http.MethodGet, "/api/auth/whoami", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice123", body["username"])
	assert.Equal(t, crypto.DeriveID("alice123").String(), body["id"])

	info, err := os.Stat(filepath.Join(e.root, "alice123"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAPI_RegisterValidation(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 5)

	resp, body := e.do(t, http.MethodPost, "/api/auth/register", "", credentialsRequest{Username: "ab", Password: "password1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "at least 4")

	resp, body = e.do(t, http.MethodPost, "/api/auth/register", "", credentialsRequest{Username: "../../x", Password: "password1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "username")

	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/api/auth/register", bytes.NewBufferString("{not json"))
	r, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestAPI_LoginFailuresAndLockout(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 2)
	e.register(t, "bobby", "password1")

	resp, body := e.do(t, http.MethodPost, "/api/auth/login", "", credentialsRequest{Username: "ghost", Password: "password1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])

	resp, _ = e.do(t, http.MethodPost, "/api/auth/login", "", credentialsRequest{Username: "bobby", Password: "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/api/auth/login", "", credentialsRequest{Username: "bobby", Password: "wrong-two"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Even the right password is refused while blocked.
	resp, _ = e.do(t, http.MethodPost, "/api/auth/login", "", credentialsRequest{Username: "bobby", Password: "password1"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestAPI_AuthRequired(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 5)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		resp, body := e.do(t, http.MethodPost, "/api/fs/list", tok, pathRequest{})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, tok)
		assert.Equal(t, "unauthorized", body["error"])
	}

	req, _ := http.NewRequest(http.MethodGet, e.ts.URL+"/api/auth/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_FileOperations(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 5)
	tok := e.register(t, "carol", "password1")
	userDir := filepath.Join(e.root, "carol")
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "notes.txt"), make([]byte, 1536), 0o644))

	resp, body := e.do(t, http.MethodPost, "/api/fs/createdir", tok, pathRequest{Path: "photos/2026"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["created"])
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "photos", "2026", "a.jpg"), make([]byte, 30), 0o644))

	resp, body = e.do(t, http.MethodPost, "/api/fs/list", tok, pathRequest{Path: ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files := body["files"].([]any)
	dirs := body["dirs"].([]any)
	require.Len(t, files, 1)
	require.Len(t, dirs, 1)
	f := files[0].(map[string]any)
	assert.Equal(t, "notes.txt", f["name"])
	assert.Equal(t, "1.5 KiB", f["size"])
	assert.NotEmpty(t, f["modified"])
	d := dirs[0].(map[string]any)
	assert.Equal(t, "photos", d["name"])
	assert.Equal(t, "30 B", d["size"])
	_, hasModified := d["modified"]
	assert.False(t, hasModified)

	resp, body = e.do(t, http.MethodPost, "/api/fs/delete", tok, pathRequest{Path: "photos"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["deleted"])

	resp, _ = e.do(t, http.MethodPost, "/api/fs/delete", tok, pathRequest{Path: "photos"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/api/fs/list", tok, pathRequest{Path: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body["error"])

	resp, body = e.do(t, http.MethodPost, "/api/fs/list", tok, pathRequest{Path: "notes.txt"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "not a directory", body["error"])
}

func TestAPI_TraversalIsRejected(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 5)
	carol := e.register(t, "carol", "password1")
	e.register(t, "dave1", "password1")
	require.NoError(t, os.WriteFile(filepath.Join(e.root, "dave1", "secret.txt"), []byte("x"), 0o644))

	for _, p := range []string{"..", "../dave1", "a/../../dave1", "/etc"} {
		resp, body := e.do(t, http.MethodPost, "/api/fs/list", carol, pathRequest{Path: p})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, p)
		assert.Equal(t, "invalid path", body["error"], p)

		resp, _ = e.do(t, http.MethodPost, "/api/fs/delete", carol, pathRequest{Path: p})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, p)
	}
	_, err := os.Stat(filepath.Join(e.root, "dave1", "secret.txt"))
	require.NoError(t, err, "other user's file must survive")

	resp, body := e.do(t, http.MethodPost, "/api/fs/delete", carol, pathRequest{Path: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "root")
}

func TestAPI_HealthMetricsAndHeaders(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 5)

	resp, err := e.ts.Client().Get(e.ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	resp, err = e.ts.Client().Get(e.ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = e.ts.Client().Get(e.ts.URL + "/api/fs/list")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
