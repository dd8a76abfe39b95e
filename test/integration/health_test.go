package integration_test

import (
	"net/http"
	"testing"

	"paygate_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndMetrics(t *testing.T) {
	ts := helpers.NewTestServer(t)

	res, body := ts.SendRequest(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok","gateways":["mock"]}`, body)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	res, body = ts.SendRequest(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "paygate_http_requests_total")
}

func TestUnknownRouteIsJSONNotFound(t *testing.T) {
	ts := helpers.NewTestServer(t)

	res, body := ts.SendRequest(t, http.MethodGet, "/payment/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode, body)
	assert.Contains(t, res.Header.Get("Content-Type"), "application/json")

	var errRes errorBody
	helpers.DecodeJSON(t, body, &errRes)
	assert.Equal(t, "NOT_FOUND", errRes.Error.Code)
	assert.Equal(t, "Route not found", errRes.Error.Message)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	ts := helpers.NewTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.Server.URL+"/payment/create", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	res, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("Access-Control-Allow-Origin"))
}
