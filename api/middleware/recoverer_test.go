package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/toolyard/toolyard-backend/pkg/logger"
)

func TestRecovererConvertsPanicTo500(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	handler := Recoverer(logg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil tool row")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "nil tool row") {
		t.Fatal("panic detail must not reach the client")
	}
	if !strings.Contains(buf.String(), "panic.recovered") {
		t.Fatalf("expected panic.recovered log entry, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "nil tool row") {
		t.Fatal("panic detail must reach the log")
	}
}

func TestRecovererPassesThroughAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	recovered := func() (rec any) {
		defer func() { rec = recover() }()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		return nil
	}()
	if recovered != http.ErrAbortHandler {
		t.Fatalf("expected http.ErrAbortHandler to propagate, got %v", recovered)
	}
}

func TestRecovererLeavesHealthyRequestsAlone(t *testing.T) {
	hits := 0
	handler := Recoverer(nil)(okHandler(&hits))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK || hits != 1 {
		t.Fatalf("expected pass-through, got %d (hits=%d)", resp.Code, hits)
	}
}
