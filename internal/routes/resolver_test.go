package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangh20/transfleet-dispatch/internal/routes"
)

func TestHTTPResolver_Name(t *testing.T) {
	routeID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/routes/"+routeID.String(), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"HCM - Cat Lai"}`))
	}))
	defer srv.Close()

	r := routes.NewHTTPResolver(srv.URL, srv.Client())

	name, err := r.Name(context.Background(), routeID)

	require.NoError(t, err)
	assert.Equal(t, "HCM - Cat Lai", name)
}

func TestHTTPResolver_Name_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such route", http.StatusNotFound)
	}))
	defer srv.Close()

	r := routes.NewHTTPResolver(srv.URL, srv.Client())

	_, err := r.Name(context.Background(), uuid.New())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPResolver_Name_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	r := routes.NewHTTPResolver(srv.URL, srv.Client())

	_, err := r.Name(context.Background(), uuid.New())

	assert.Error(t, err)
}

func TestHTTPResolver_Name_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	r := routes.NewHTTPResolver(srv.URL, nil)

	_, err := r.Name(context.Background(), uuid.New())

	assert.Error(t, err)
}
