package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func TestTwilioServiceSendCanonicalizes(t *testing.T) {
	mock := NewMockTwilioClient()
	s := NewTwilioService(mock)

	if err := s.SendMessage(context.Background(), "whatsapp:+91 98123 45678", "triage result"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "919812345678" {
		t.Errorf("sent = %+v", mock.SentMessages)
	}
}

func TestTwilioServiceValidation(t *testing.T) {
	s := NewTwilioService(NewMockTwilioClient())
	if err := s.SendMessage(context.Background(), "", "body"); !errors.Is(err, models.ErrEmptyRecipient) {
		t.Errorf("empty recipient: got %v", err)
	}
	if err := s.SendMessage(context.Background(), "919812345678", ""); !errors.Is(err, models.ErrEmptyMessageBody) {
		t.Errorf("empty body: got %v", err)
	}
	if _, err := s.ValidateAndCanonicalizeRecipient("no-digits"); err == nil {
		t.Error("expected an error for a recipient with no digits")
	}
	if _, err := s.ValidateAndCanonicalizeRecipient("123"); err == nil {
		t.Error("expected an error for a too-short number")
	}
}

func TestTwilioWebhookEmitsInbound(t *testing.T) {
	s := NewTwilioService(NewMockTwilioClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+919812345678")
	form.Set("Body", "nasal discharge for 8 days")
	form.Set("MessageSid", "SM123")

	req := httptest.NewRequest(http.MethodPost, "/webhook-whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.WebhookHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", rec.Code)
	}

	select {
	case msg := <-s.Responses():
		if msg.SenderID != "919812345678" || msg.Body != "nasal discharge for 8 days" || msg.MessageID != "SM123" {
			t.Errorf("message = %+v", msg)
		}
	default:
		t.Fatal("expected an emitted message")
	}
}

func TestTwilioWebhookMissingFields(t *testing.T) {
	s := NewTwilioService(NewMockTwilioClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+919812345678")

	req := httptest.NewRequest(http.MethodPost, "/webhook-whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.WebhookHandler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing body should be a bad request, got %d", rec.Code)
	}
}

func TestTwilioServiceStop(t *testing.T) {
	s := NewTwilioService(NewMockTwilioClient())
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.SendMessage(context.Background(), "919812345678", "hi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
