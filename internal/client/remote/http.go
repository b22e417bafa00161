package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"

	"github.com/mkravets/fleetsync/internal/common"
)

// tokenRefreshLeeway triggers a proactive refresh when the access token is
// about to expire, so a batch of per-item writes does not trip over a 401 in
// the middle of a reconciliation pass.
const tokenRefreshLeeway = 30 * time.Second

// HTTPStore talks JSON over HTTP to the hosted remote store.
type HTTPStore struct {
	baseURL string
	httpc   *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewHTTPStore returns a store client for the given base URL.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetTokens installs the access/refresh token pair obtained at login.
func (s *HTTPStore) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
}

func (s *HTTPStore) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (s *HTTPStore) Create(ctx context.Context, resource string, payload any, out any) error {
	return s.do(ctx, http.MethodPost, "/"+resource, payload, out)
}

func (s *HTTPStore) Update(ctx context.Context, resource, id string, payload any) error {
	return s.do(ctx, http.MethodPut, "/"+resource+"/"+url.PathEscape(id), payload, nil)
}

func (s *HTTPStore) Delete(ctx context.Context, resource, id string) error {
	return s.do(ctx, http.MethodDelete, "/"+resource+"/"+url.PathEscape(id), nil, nil)
}

func (s *HTTPStore) List(ctx context.Context, resource string, out any) error {
	return s.do(ctx, http.MethodGet, "/"+resource, nil, out)
}

// PresignPut asks the server for a direct-upload URL for the blob key.
func (s *HTTPStore) PresignPut(ctx context.Context, key string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := s.do(ctx, http.MethodGet, "/uploads/presign?key="+url.QueryEscape(key), nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// do issues one logical request. Network failures and 5xx responses are
// retried with a bounded fibonacci backoff (the server treats retried
// Update/Delete as idempotent); 4xx responses are mapped to sentinels and
// never retried, except that a single token refresh is attempted on 401.
func (s *HTTPStore) do(ctx context.Context, method, path string, payload any, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		body = b
	}

	if err := s.refreshIfExpiring(ctx); err != nil {
		return err
	}

	refreshed := false

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		status, respBody, err := s.attempt(ctx, method, path, body)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrUnavailable, err))
			}
			return err
		}

		switch {
		case status >= 200 && status < 300:
			if out != nil {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
			return nil
		case status == http.StatusUnauthorized && !refreshed:
			refreshed = true
			if err := s.refreshTokens(ctx); err != nil {
				return fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
			}
			return retry.RetryableError(common.ErrUnauthorized)
		case status >= 500:
			return retry.RetryableError(fmt.Errorf("%w: http %d", common.ErrUnavailable, status))
		default:
			return mapStatus(status, respBody)
		}
	})
}

func (s *HTTPStore) attempt(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	s.mu.Lock()
	token := s.accessToken
	s.mu.Unlock()
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// refreshIfExpiring parses the access token without verifying its signature
// (the client holds no key material; only the exp claim matters here) and
// refreshes proactively when it is about to lapse.
func (s *HTTPStore) refreshIfExpiring(ctx context.Context) error {
	s.mu.Lock()
	token := s.accessToken
	refresh := s.refreshToken
	s.mu.Unlock()

	if token == "" || refresh == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil // opaque token, rely on 401 handling
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Until(exp.Time) > tokenRefreshLeeway {
		return nil
	}
	return s.refreshTokens(ctx)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *HTTPStore) refreshTokens(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.refreshToken
	s.mu.Unlock()

	if refresh == "" {
		return common.ErrTokenExpired
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: refresh})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: refresh returned http %d", common.ErrTokenExpired, resp.StatusCode)
	}

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	s.mu.Lock()
	s.accessToken = rr.AccessToken
	s.refreshToken = rr.RefreshToken
	s.mu.Unlock()
	return nil
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// url.Error wraps connection refusals and DNS failures
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func mapStatus(status int, body []byte) error {
	var base error
	switch status {
	case http.StatusNotFound:
		base = common.ErrNotFound
	case http.StatusConflict:
		base = common.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		base = common.ErrUnauthorized
	default:
		base = common.ErrBadRequest
	}
	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		return fmt.Errorf("%w: http %d", base, status)
	}
	return fmt.Errorf("%w: http %d: %s", base, status, msg)
}
