package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophreview/internal/cryptox"
	"github.com/dmitrijs2005/gophreview/internal/logging"
	"github.com/dmitrijs2005/gophreview/internal/server/config"
	"github.com/dmitrijs2005/gophreview/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func writeKeys(t *testing.T, format cryptox.KeyFormat) (string, string) {
	t.Helper()
	key, err := cryptox.GenerateRSAKey(cryptox.MinRSABits)
	require.NoError(t, err)

	priv, err := cryptox.EncodePrivateKey(key, format)
	require.NoError(t, err)
	pub, err := cryptox.EncodePublicKey(&key.PublicKey, format)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath, pubPath := filepath.Join(dir, "private.key"), filepath.Join(dir, "public.key")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))
	return privPath, pubPath
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.LogLevel = "error"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.ShutdownTimeout = time.Second
	return c
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestNewApp_WithKeys(t *testing.T) {
	c := testConfig()
	c.PrivateKeyFile, c.PublicKeyFile = writeKeys(t, cryptox.FormatBase64DER)

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, app.sessions)
	assert.Equal(t, "memory", app.store.Backend())

	r := app.Router()
	rec := post(r, "/api/signUp", `{"email":"a@x.com","username":"alice","password":"password1"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `auth_operations_total{operation="sign_up",outcome="success"} 1`)
}

func TestNewApp_MissingKeysDisablesAuth(t *testing.T) {
	c := testConfig()
	dir := t.TempDir()
	c.PrivateKeyFile = filepath.Join(dir, "nope.key")
	c.PublicKeyFile = filepath.Join(dir, "nope.pub")

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, app.sessions)

	r := app.Router()
	rec := post(r, "/api/signIn", `{"email":"a@x.com","password":"password1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"Authentication is disabled."}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_MismatchedKeysDisableAuth(t *testing.T) {
	c := testConfig()
	c.PrivateKeyFile, _ = writeKeys(t, cryptox.FormatPEM)
	_, c.PublicKeyFile = writeKeys(t, cryptox.FormatPEM)

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, app.sessions)
}

func TestNewApp_BadDSN(t *testing.T) {
	c := testConfig()
	c.DatabaseDSN = "mysql://root@localhost/db"

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
}

func TestBuildLimiter(t *testing.T) {
	logger := logging.Nop()

	t.Run("memory by default", func(t *testing.T) {
		lim, closeFn := buildLimiter(context.Background(), testConfig(), logger)
		assert.IsType(t, &ratelimit.Memory{}, lim)
		require.NoError(t, closeFn())
	})

	t.Run("redis when reachable", func(t *testing.T) {
		s := miniredis.RunT(t)
		c := testConfig()
		c.RedisAddr = s.Addr()

		lim, closeFn := buildLimiter(context.Background(), c, logger)
		assert.IsType(t, &ratelimit.Redis{}, lim)
		require.NoError(t, closeFn())
	})

	t.Run("memory when redis is down", func(t *testing.T) {
		s := miniredis.RunT(t)
		c := testConfig()
		c.RedisAddr = s.Addr()
		s.Close()

		lim, closeFn := buildLimiter(context.Background(), c, logger)
		assert.IsType(t, &ratelimit.Memory{}, lim)
		require.NoError(t, closeFn())
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := testConfig()
	c.PrivateKeyFile, c.PublicKeyFile = writeKeys(t, cryptox.FormatPEM)

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}
