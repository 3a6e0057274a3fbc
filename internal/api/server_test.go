package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func TestHealthEndpoint(t *testing.T) {
	s := NewServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("health response is not JSON: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("health response = %+v", resp)
	}
}

func TestWebhookRouting(t *testing.T) {
	var gotVerify, gotPost bool
	s := NewServer(
		WithWebhookVerification(func(w http.ResponseWriter, r *http.Request) {
			gotVerify = true
			w.WriteHeader(http.StatusOK)
		}),
		WithWebhook(func(w http.ResponseWriter, r *http.Request) {
			gotPost = true
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/webhook-whatsapp?hub.mode=subscribe", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if !gotVerify {
		t.Error("GET should hit the verification handler")
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook-whatsapp", strings.NewReader("{}"))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if !gotPost {
		t.Error("POST should hit the webhook handler")
	}

	req = httptest.NewRequest(http.MethodDelete, "/webhook-whatsapp", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE should be rejected, got %d", rec.Code)
	}
}

func TestWebhookWithoutTransport(t *testing.T) {
	s := NewServer()

	req := httptest.NewRequest(http.MethodPost, "/webhook-whatsapp", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("POST without a transport should 404, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/webhook-whatsapp", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET without a handshake handler should 405, got %d", rec.Code)
	}
}
