package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostedStoreSendsBearerAuthAndBody(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h := NewHosted(srv.URL, "secret-key", "https://cdn.example.org")
	err := h.Store(context.Background(), "abc/content.jwe", []byte("payload"))
	require.NoError(t, err)

	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "/abc/content.jwe", gotPath)
	require.Equal(t, "Bearer secret-key", gotAuth)
	require.Equal(t, []byte("payload"), gotBody)
}

func TestHostedDeleteSendsDeleteMethod(t *testing.T) {
	var gotMethod, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewHosted(srv.URL, "secret-key", "https://cdn.example.org")
	err := h.Delete(context.Background(), "abc/")
	require.NoError(t, err)

	require.Equal(t, http.MethodDelete, gotMethod)
	require.Equal(t, "/abc/", gotPath)
}

func TestHostedStoreReturnsErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h := NewHosted(srv.URL, "wrong-key", "https://cdn.example.org")
	err := h.Store(context.Background(), "abc/content.jwe", []byte("payload"))
	require.Error(t, err)
}

func TestHostedBaseURLReflectsConfiguredOrigin(t *testing.T) {
	h := NewHosted("https://api.example.org/", "key", "https://cdn.example.org/")
	require.Equal(t, "https://cdn.example.org", h.BaseURL())
}
