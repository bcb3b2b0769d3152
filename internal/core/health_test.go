package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubProbe is a HealthProbe with a fixed name and result.
type stubProbe struct {
	name string
	err  error
}

func (p stubProbe) Name() string                  { return p.name }
func (p stubProbe) Check(_ context.Context) error { return p.err }

func TestHandleHealth_NoProbes(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.HandleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %q", body.Status)
	}
}

func TestHandleHealth_AllProbesHealthy(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		stubProbe{name: "database"},
		stubProbe{name: "weather"},
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.HandleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Components["database"].Status != "healthy" {
		t.Errorf("expected database healthy, got %+v", body.Components["database"])
	}
	if body.Components["weather"].Status != "healthy" {
		t.Errorf("expected weather healthy, got %+v", body.Components["weather"])
	}
}

func TestHandleHealth_FailingProbeReturns503(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		stubProbe{name: "database", err: errors.New("connection refused")},
		stubProbe{name: "weather"},
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.HandleHealth(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", body.Status)
	}
	if body.Components["database"].Status != "unhealthy" {
		t.Errorf("expected database unhealthy, got %+v", body.Components["database"])
	}
	if body.Components["database"].Message != "connection refused" {
		t.Errorf("unexpected message: %q", body.Components["database"].Message)
	}
	if body.Components["weather"].Status != "healthy" {
		t.Errorf("healthy probe must stay healthy, got %+v", body.Components["weather"])
	}
}

func TestHandleHealth_PanickingProbeIsUnhealthy(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.HealthProbes = []HealthProbe{panicProbe{}}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.HandleHealth(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

type panicProbe struct{}

func (panicProbe) Name() string                  { return "flaky" }
func (panicProbe) Check(_ context.Context) error { panic("boom") }
