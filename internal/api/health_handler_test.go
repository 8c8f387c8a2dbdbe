package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sungwon/post-office/internal/metrics"
)

func TestHealthzHandler_AlwaysOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler := HealthzHandler()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestHealthzHandler_ResponseFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler := HealthzHandler()
	handler.ServeHTTP(rec, req)

	// Verify the response is valid JSON with expected structure
	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}

	status, ok := resp["status"]
	if !ok {
		t.Error("response missing 'status' field")
	}
	if status != "ok" {
		t.Errorf("expected status 'ok', got %v", status)
	}
}

type fakePinger struct {
	err            error
	acquired, idle int32
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func (f fakePinger) Stats() (int32, int32) { return f.acquired, f.idle }

func TestReadyzHandler_Healthy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	ReadyzHandler(fakePinger{acquired: 3, idle: 2}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsActive); got != 3 {
		t.Errorf("expected active gauge 3, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsIdle); got != 2 {
		t.Errorf("expected idle gauge 2, got %v", got)
	}
}

func TestReadyzHandler_UnhealthyDB(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	ReadyzHandler(fakePinger{err: errors.New("connection refused")}).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Errorf("expected Retry-After 30, got %q", rec.Header().Get("Retry-After"))
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "database unavailable" {
		t.Errorf("expected error 'database unavailable', got %s", resp["error"])
	}
}
