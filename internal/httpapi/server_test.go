// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nexus/internal/budget"
	"nexus/internal/domain"
	"nexus/internal/policy"
	"nexus/internal/pricing"
	"nexus/internal/quality"
	"nexus/internal/registry"
	"nexus/internal/routing"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	set, err := policy.NewSet(nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	q := quality.New()
	b := budget.New(0, 80, domain.HardLimitLocalOnly, 1)
	router := routing.New(routing.Config{
		Registry:     reg,
		Policies:     set,
		Aliases:      map[string]string{},
		Fallbacks:    map[string][]string{},
		QualityStore: q,
		BudgetState:  b,
		Pricing:      pricing.New(),
	})
	return New(router, opts...), reg
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestChatCompletions_RoutesToHealthyBackend(t *testing.T) {
	s, reg := newTestServer(t)
	b := domain.NewBackend("b1", "b1", "http://b1", domain.BackendTypeLocalSingleHost)
	b.Models = []domain.Model{{ID: "m"}}
	reg.Register(b)

	body := `{"model":"m","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Nexus-Backend") != "b1" {
		t.Fatalf("expected X-Nexus-Backend header, got %v", w.Header())
	}
}

func TestChatCompletions_NoBackendReturnsServiceUnavailable(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"model":"nonexistent","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := decoded["error"]; !ok {
		t.Fatalf("expected error envelope, got %v", decoded)
	}
}

func TestChatCompletions_InvalidBodyReturns400(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAuthenticate_RejectsMissingBearerToken(t *testing.T) {
	s, _ := newTestServer(t, WithJWTSecret("test-secret"))
	body := `{"model":"m","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func newQueueTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	set, err := policy.NewSet(nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	q := quality.New()
	b := budget.New(100, 80, domain.HardLimitQueue, 1)
	b.AddSpending(100)
	router := routing.New(routing.Config{
		Registry:     reg,
		Policies:     set,
		Aliases:      map[string]string{},
		Fallbacks:    map[string][]string{},
		QualityStore: q,
		BudgetState:  b,
		Pricing:      pricing.New(),
	})
	return New(router, WithQueue(budget.NewQueue(1)), WithQueueWait(5*time.Millisecond)), reg
}

// TestQueueDecision_ResolvesToRejectAfterWaitWindow exercises the
// hard-limit-queue path: the only candidate is cloud (excluded once the
// budget is exhausted), so the Intent is left with no selection and the
// Result Encoder marks it Queue. Nothing ever frees the reserved slot
// early in this synchronous demo flow, so Wait blocks for the configured
// window and httpapi converts the outcome to a 503 Reject, per
// internal/budget/queue.go's documented contract.
func TestQueueDecision_ResolvesToRejectAfterWaitWindow(t *testing.T) {
	s, reg := newQueueTestServer(t)
	cloud := domain.NewBackend("cloud-1", "cloud-1", "http://cloud", domain.BackendTypeCloudVendor)
	cloud.Models = []domain.Model{{ID: "m"}}
	reg.Register(cloud)

	body := `{"model":"m","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after queue wait window elapses, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on queue-timeout rejection")
	}
}
