package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeBroker struct {
	err error
}

func (f *fakeBroker) Ping() error { return f.err }

func TestHealthHandler_Liveness(t *testing.T) {
	handler := NewHealthHandler(&fakePinger{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Liveness(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Liveness() status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", resp["status"])
	}
	if resp["service"] != "filemill" {
		t.Errorf("expected service filemill, got %v", resp["service"])
	}
	if _, ok := resp["uptime"]; !ok {
		t.Error("expected an uptime field")
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	readiness := func(t *testing.T, h *HealthHandler) (int, map[string]any) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		h.Readiness(rec, req)
		var resp struct {
			Status       string            `json:"status"`
			Dependencies map[string]string `json:"dependencies"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		deps := map[string]any{"status": resp.Status}
		for k, v := range resp.Dependencies {
			deps[k] = v
		}
		return rec.Code, deps
	}

	t.Run("ready with store only", func(t *testing.T) {
		code, body := readiness(t, NewHealthHandler(&fakePinger{}, nil, nil))
		if code != http.StatusOK {
			t.Fatalf("Readiness() status = %d, want 200", code)
		}
		if body["status"] != "ready" || body["database"] != "ok" {
			t.Errorf("unexpected body: %v", body)
		}
		if _, ok := body["objectstore"]; ok {
			t.Error("nil object store must not be reported")
		}
	})

	t.Run("store down is 503", func(t *testing.T) {
		h := NewHealthHandler(&fakePinger{err: errors.New("connection refused")}, &fakePinger{}, &fakeBroker{})
		code, body := readiness(t, h)
		if code != http.StatusServiceUnavailable {
			t.Fatalf("Readiness() status = %d, want 503", code)
		}
		if body["status"] != "not ready" || body["database"] != "unreachable" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("optional deps reported but not gating", func(t *testing.T) {
		h := NewHealthHandler(&fakePinger{}, &fakePinger{err: errors.New("minio down")}, &fakeBroker{err: errors.New("amqp down")})
		code, body := readiness(t, h)
		if code != http.StatusOK {
			t.Fatalf("Readiness() status = %d, want 200 when only optional deps fail", code)
		}
		if body["objectstore"] != "unreachable" || body["broker"] != "unreachable" {
			t.Errorf("optional dep failures should be visible: %v", body)
		}
	})
}
