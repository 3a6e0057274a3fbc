package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

const channelTwilio = "whatsapp-twilio"

// TwilioSender abstracts the Twilio REST client for WhatsApp sends.
type TwilioSender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// TwilioOpts holds configuration for the Twilio WhatsApp client.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// TwilioOption configures the Twilio WhatsApp client.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number ("whatsapp:+1234567890").
func WithFromWhats(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromWhats = from }
}

// TwilioClient wraps the Twilio REST API for WhatsApp.
type TwilioClient struct {
	client    *twilio.RestClient
	fromWhats string
}

// NewTwilioClient creates a Twilio WhatsApp client, falling back to the
// TWILIO_* environment variables for unset options.
func NewTwilioClient(opts ...TwilioOption) (*TwilioClient, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioClient{client: client, fromWhats: cfg.FromWhats}, nil
}

// SendMessage sends a WhatsApp message using the Twilio API.
func (c *TwilioClient) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + to)
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// MockTwilioClient records sends in memory, used by tests.
type MockTwilioClient struct {
	SentMessages []SentMessage
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// NewMockTwilioClient creates an empty mock client.
func NewMockTwilioClient() *MockTwilioClient {
	return &MockTwilioClient{SentMessages: []SentMessage{}}
}

// SendMessage implements TwilioSender.
func (m *MockTwilioClient) SendMessage(ctx context.Context, to string, body string) error {
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// TwilioService implements Service using the Twilio API. Inbound messages
// arrive through WebhookHandler, which the API server mounts.
type TwilioService struct {
	client    TwilioSender
	responses chan models.IncomingMessage
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a TwilioService around the given sender.
func NewTwilioService(client TwilioSender) *TwilioService {
	return &TwilioService{
		client:    client,
		responses: make(chan models.IncomingMessage, DefaultChannelBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient strips formatting down to bare digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start is a no-op for Twilio.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the responses channel and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.responses)
	return nil
}

// SendMessage sends a message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}
	if body == "" {
		return models.ErrEmptyMessageBody
	}

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// Responses returns the channel of normalized inbound messages.
func (s *TwilioService) Responses() <-chan models.IncomingMessage {
	return s.responses
}

// WebhookHandler handles inbound Twilio webhook requests. It parses the form
// payload and emits a normalized message on the Responses channel.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	sender, err := canonicalizePhone(strings.TrimPrefix(from, "whatsapp:"))
	if err != nil {
		slog.Warn("Twilio webhook sender invalid", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	s.emit(models.IncomingMessage{
		Channel:   channelTwilio,
		SenderID:  sender,
		MessageID: r.FormValue("MessageSid"),
		Timestamp: time.Now().Unix(),
		Body:      body,
	})

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *TwilioService) emit(msg models.IncomingMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", msg.SenderID)
		return
	}

	select {
	case s.responses <- msg:
		slog.Debug("TwilioService emitted inbound message", "from", msg.SenderID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", msg.SenderID)
	}
}
