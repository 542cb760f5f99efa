package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v1", r.URL.Query().Get("fixed"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "key", r.Header.Get("X-Key"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("test-agent"))
	body, err := c.Do(context.Background(), &Request{
		URL:    srv.URL + "/x?fixed=v1",
		Header: http.Header{"X-Key": {"key"}},
		Query:  map[string][]string{"symbol": {"AAPL"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down\n"))
	}))
	defer srv.Close()

	_, err := NewClient().Do(context.Background(), &Request{URL: srv.URL})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, "slow down", se.Body)
	assert.Equal(t, 3*time.Second, se.RetryAfter)
	assert.True(t, se.Retryable())
	assert.False(t, (&StatusError{Status: http.StatusForbidden}).Retryable())
}

func TestClientMaxBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	_, err := NewClient(WithMaxBody(10)).Do(context.Background(), &Request{URL: srv.URL})
	assert.ErrorContains(t, err, "exceeds 10 bytes")
}
