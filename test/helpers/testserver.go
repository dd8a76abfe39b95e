package helpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"paygate_backend/internal/app"
	"paygate_backend/internal/auth"
	"paygate_backend/internal/config"
	"paygate_backend/internal/email"
	"paygate_backend/internal/gateway"
	"paygate_backend/internal/ledger"
	"paygate_backend/internal/storage"
)

const (
	AdminUsername = "admin"
	AdminPassword = "correct horse battery staple"
)

// TestServer runs the full router against a throwaway file ledger, local
// storage and the in-process mock gateway.
type TestServer struct {
	Server     *httptest.Server
	Config     *config.Config
	LedgerPath string
	Gateway    *gateway.MockClient
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg.Server.Env = "test"
	cfg.Ledger.Path = filepath.Join(dir, "historial.json")
	cfg.Gateway.Default = gateway.MockName
	cfg.Storage.Type = "local"
	cfg.Storage.BasePath = filepath.Join(dir, "files")

	hash, err := auth.HashPassword(AdminPassword)
	if err != nil {
		t.Fatalf("failed to hash admin password: %v", err)
	}
	cfg.Admin.Username = AdminUsername
	cfg.Admin.PasswordHash = hash
	cfg.Admin.JWTSecret = "integration-test-secret"

	l, err := ledger.NewFileLedger(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	st, err := storage.NewLocalStorage(storage.Config{BasePath: cfg.Storage.BasePath, BaseURL: cfg.Storage.BaseURL})
	if err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}

	mock := gateway.NewMockClient()
	registry := gateway.NewRegistry(gateway.MockName, cfg.Gateway.Timeout)
	registry.Register(mock)

	router := app.SetupRouter(cfg, app.Dependencies{
		Ledger:   l,
		Gateways: registry,
		Storage:  st,
		Mailer:   email.NoopMailer{},
	})

	ts := &TestServer{
		Server:     httptest.NewServer(router),
		Config:     cfg,
		LedgerPath: cfg.Ledger.Path,
		Gateway:    mock,
	}
	t.Cleanup(ts.Close)
	return ts
}

func (ts *TestServer) Close() {
	ts.Server.Close()
}

// SendRequest sends body as JSON and returns the response with its body read.
func (ts *TestServer) SendRequest(t *testing.T, method, path, token string, body interface{}) (*http.Response, string) {
	t.Helper()
	url := ts.Server.URL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	resBodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return res, string(resBodyBytes)
}

// DecodeJSON unmarshals a response body or fails the test.
func DecodeJSON(t *testing.T, body string, out interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), out); err != nil {
		t.Fatalf("failed to decode %q: %v", body, err)
	}
}

// LoginAdmin returns a bearer token for the configured admin.
func LoginAdmin(t *testing.T, ts *TestServer) string {
	t.Helper()
	res, body := ts.SendRequest(t, http.MethodPost, "/admin/login", "", map[string]string{
		"username": AdminUsername,
		"password": AdminPassword,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin login failed: %d %s", res.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	DecodeJSON(t, body, &out)
	return out.Token
}
