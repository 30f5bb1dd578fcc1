package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func staticChecker(name string, status Status) Checker {
	return checkerFunc(func() Check { return Check{Name: name, Status: status} })
}

func TestHandler_WorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		wantCode int
	}{
		{"no checkers", nil, StatusHealthy, http.StatusOK},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy, http.StatusOK},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded, http.StatusOK},
		{"unhealthy beats degraded", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler("v1.2.3")
			for i, status := range tc.statuses {
				name := string(rune('a' + i))
				handler.RegisterChecker(name, staticChecker(name, status))
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tc.wantCode {
				t.Fatalf("unexpected code: got=%d want=%d", w.Code, tc.wantCode)
			}

			var resp Response
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if resp.Status != tc.want {
				t.Fatalf("unexpected status: got=%s want=%s", resp.Status, tc.want)
			}
			if resp.Version != "v1.2.3" || len(resp.Checks) != len(tc.statuses) {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestReadinessHandler_UnhealthyIsNotReady(t *testing.T) {
	handler := NewHandler("test")
	handler.RegisterChecker("postgres", staticChecker("postgres", StatusUnhealthy))

	if got := readinessCode(handler); got != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", got)
	}

	handler.RegisterChecker("postgres", staticChecker("postgres", StatusHealthy))
	if got := readinessCode(handler); got != http.StatusOK {
		t.Fatalf("expected 200 after recovery, got %d", got)
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected liveness response: %d %q", w.Code, w.Body.String())
	}
}

func TestFuncChecker(t *testing.T) {
	ok := NewFuncChecker("kafka", StatusDegraded, func() error { return nil })
	if check := ok.Check(); check.Status != StatusHealthy || check.Name != "kafka" {
		t.Fatalf("unexpected check: %+v", check)
	}

	degraded := NewFuncChecker("kafka", StatusDegraded, func() error { return errors.New("broker down") })
	if check := degraded.Check(); check.Status != StatusDegraded || check.Message != "broker down" {
		t.Fatalf("unexpected check: %+v", check)
	}

	strict := NewFuncChecker("schema", "", func() error { return errors.New("missing table") })
	if check := strict.Check(); check.Status != StatusUnhealthy {
		t.Fatalf("empty onError must mean unhealthy, got %+v", check)
	}
}
