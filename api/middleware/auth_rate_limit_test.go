package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
)

func loginRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.RemoteAddr = "1.2.3.4:5678"
	return req
}

func emailScope(policy, email string) string {
	sum := sha256.Sum256([]byte(email))
	return policy + ":email:" + hex.EncodeToString(sum[:])
}

func TestAuthRateLimitAllowsUnderLimitAndRestoresBody(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"email":"tester@example.com"`) {
			t.Fatalf("body not restored for handler: %s", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{"email":"tester@example.com","password":"secret"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.counts["login:ip:1.2.3.4"] != 1 {
		t.Fatalf("ip counter not touched: %v", store.counts)
	}
	if store.counts[emailScope("login", "tester@example.com")] != 1 {
		t.Fatalf("email counter not touched: %v", store.counts)
	}
}

func TestAuthRateLimitBlocksEmailAfterLimit(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Mixed casing must land on the same counter.
	bodies := []string{
		`{"email":"blocked@example.com","password":"secret"}`,
		`{"email":"Blocked@Example.com","password":"secret"}`,
		`{"email":" blocked@example.com ","password":"secret"}`,
	}
	for i, body := range bodies {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(body))

		if i < 2 {
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: expected 429, got %d", i, rec.Code)
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
			t.Fatalf("unexpected code: %s", payload.Error.Code)
		}
	}
	if len(store.counts) != 1 {
		t.Fatalf("normalized emails should share one counter: %v", store.counts)
	}
}

func TestAuthRateLimitBlocksIPAfterLimit(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"foo@example.com"}`))
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("expected first request through, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	}
	if store.counts["register:ip:5.6.7.8"] != 2 {
		t.Fatalf("ip counter = %v", store.counts)
	}
}

func TestAuthRateLimitUsesForwardedForAddress(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewAuthRateLimitPolicy("login", time.Minute, 5, 0)
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := loginRequest(`{}`)
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if store.counts["login:ip:9.9.9.9"] != 1 {
		t.Fatalf("expected first forwarded hop to be counted: %v", store.counts)
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeWindowStore()
	policy := NewAuthRateLimitPolicy("login", 0, 10, 10)
	hits := 0
	handler := AuthRateLimit(policy, store, nil)(okHandler(&hits))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{"email":"tester@example.com"}`))

	if rec.Code != http.StatusOK || hits != 1 {
		t.Fatalf("expected pass-through, got %d (hits=%d)", rec.Code, hits)
	}
	if len(store.counts) != 0 {
		t.Fatalf("disabled policy should not count: %v", store.counts)
	}
}

func TestAuthRateLimitFailsClosedOnStoreError(t *testing.T) {
	store := newFakeWindowStore()
	store.err = errors.New("redis down")
	policy := NewAuthRateLimitPolicy("login", time.Minute, 1, 0)
	hits := 0
	handler := AuthRateLimit(policy, store, nil)(okHandler(&hits))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{}`))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store is down, got %d", rec.Code)
	}
	if hits != 0 {
		t.Fatal("handler must not run when limiting cannot be checked")
	}
}
