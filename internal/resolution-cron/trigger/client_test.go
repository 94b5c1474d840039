package trigger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAll_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/markets/resolve-all", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"error":"failed to process resolutions"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"stats":{"due":3,"resolved":2,"disputed":1}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Secret: "s3cret", Retries: 2, Wait: 10 * time.Millisecond})
	sum, err := c.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Resolved)
	assert.Equal(t, 1, sum.Disputed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveAll_UnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Secret: "wrong", Retries: 3, Wait: 10 * time.Millisecond})
	_, err := c.ResolveAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveAll_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Secret: "s3cret", Retries: 2, Wait: 10 * time.Millisecond})
	_, err := c.ResolveAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}
