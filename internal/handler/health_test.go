package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoangh20/transfleet-dispatch/internal/handler"
)

func TestGetHealth_returns200WithOKStatus(t *testing.T) {
	h := handler.NewServer(nil, nil, nil, nil, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestGetOpenAPI_servesEmbeddedSpec(t *testing.T) {
	doc := []byte("openapi: 3.0.3\n")
	h := handler.NewServer(nil, nil, nil, nil, doc).Routes()

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	require.Equal(t, string(doc), rec.Body.String())
}

func TestGetOpenAPI_disabledWithoutSpec(t *testing.T) {
	h := handler.NewServer(nil, nil, nil, nil, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
