package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/fleetsync/internal/common"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "acct-1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestHTTPStore_Create_DecodesStoredRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/vehicles", r.URL.Path)

		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.NotContains(t, in, "id")

		in["id"] = "3f8e9c4a-0d52-4c1a-9be1-54a1b2c3d4e5"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL)

	var out map[string]any
	err := s.Create(context.Background(), "vehicles", map[string]any{"plate": "ABC-1234"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "3f8e9c4a-0d52-4c1a-9be1-54a1b2c3d4e5", out["id"])
}

func TestHTTPStore_MapsStatusToSentinels(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, common.ErrNotFound},
		{http.StatusConflict, common.ErrConflict},
		{http.StatusBadRequest, common.ErrBadRequest},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		s := NewHTTPStore(srv.URL)

		err := s.Delete(context.Background(), "vehicles", "some-id")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		srv.Close()
	}
}

func TestHTTPStore_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL)
	err := s.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPStore_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL)
	err := s.Update(context.Background(), "trips", "id1", map[string]any{})
	assert.ErrorIs(t, err, common.ErrBadRequest)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPStore_RefreshesOn401AndRetries(t *testing.T) {
	var sawRefresh atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			sawRefresh.Store(true)
			_ = json.NewEncoder(w).Encode(refreshResponse{
				AccessToken:  "fresh-access",
				RefreshToken: "fresh-refresh",
			})
		default:
			if r.Header.Get("Authorization") != "Bearer fresh-access" {
				http.Error(w, "expired", http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL)
	s.SetTokens("stale-access", "old-refresh")

	require.NoError(t, s.Ping(context.Background()))
	assert.True(t, sawRefresh.Load())
}

func TestHTTPStore_ProactiveRefreshNearExpiry(t *testing.T) {
	var sawRefresh atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			sawRefresh.Store(true)
			_ = json.NewEncoder(w).Encode(refreshResponse{
				AccessToken:  "fresh-access",
				RefreshToken: "fresh-refresh",
			})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL)
	s.SetTokens(signedToken(t, time.Now().Add(5*time.Second)), "refresh-1")

	require.NoError(t, s.Ping(context.Background()))
	assert.True(t, sawRefresh.Load(), "token close to expiry should refresh before the request")
}

func TestHTTPStore_ConnectionRefusedIsUnavailable(t *testing.T) {
	// a port nothing listens on
	s := NewHTTPStore("http://127.0.0.1:1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Ping(ctx)
	assert.ErrorIs(t, err, common.ErrUnavailable)
}
