package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `
env: development
database:
  driver: sqlite
  dsn: ` + filepath.Join(dir, "loyalty.db") + `
log:
  level: error
auth:
  jwt_secret: test-secret-0123456789
expiry:
  enabled: false
`
	path := filepath.Join(dir, "loyalty.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Test 1: 以設定檔組裝所有元件並提供健康檢查
func TestNewApp_WiresRouter(t *testing.T) {
	a, err := newApp(writeTestConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loyalty_http_requests_total")
}

// Test 2: 開發環境未設定密鑰時接受未簽章的 Webhook
func TestNewApp_DevelopmentWebhook(t *testing.T) {
	a, err := newApp(writeTestConfig(t))
	require.NoError(t, err)
	defer a.Close()

	body := `{"event":"app.store.authorize","merchant":"store-1","data":{"access_token":"tok","store_name":"Cafe"}}`
	rec := httptest.NewRecorder()
	a.router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/salla", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"applied"`)
}

// Test 3: token 指令需要且只接受一種身分
func TestTokenCmd(t *testing.T) {
	configPath := writeTestConfig(t)

	cmd := tokenCmd(&configPath)
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())

	var out bytes.Buffer
	cmd = tokenCmd(&configPath)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--account", "0b7e2a4c-6a8f-4c55-9d1e-3c1f2e4b5a69"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(out.String()), ".")))
}
