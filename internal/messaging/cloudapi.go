package messaging

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// Constants for the Meta WhatsApp Cloud API transport.
const (
	// DefaultGraphAPIBaseURL is the Meta Graph API endpoint.
	DefaultGraphAPIBaseURL = "https://graph.facebook.com"
	// DefaultGraphAPIVersion pins the Graph API version used for sends.
	DefaultGraphAPIVersion = "v22.0"
	// DefaultSendTimeout bounds a single outbound send.
	DefaultSendTimeout = 15 * time.Second

	channelCloudAPI = "whatsapp-cloud"
)

// CloudAPIOpts holds configuration for the Cloud API transport.
type CloudAPIOpts struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
	AppSecret     string
	HTTPClient    *http.Client
}

// CloudAPIOption configures the Cloud API transport.
type CloudAPIOption func(*CloudAPIOpts)

// WithGraphBaseURL overrides the Graph API endpoint, used by tests.
func WithGraphBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.BaseURL = url }
}

// WithGraphHTTPClient substitutes the HTTP client.
func WithGraphHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.HTTPClient = c }
}

// WithPhoneNumberID sets the business phone number ID used for sends.
func WithPhoneNumberID(id string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.PhoneNumberID = id }
}

// WithAccessToken sets the Graph API bearer token.
func WithAccessToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.AccessToken = token }
}

// WithVerifyToken sets the webhook subscription verify token.
func WithVerifyToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.VerifyToken = token }
}

// WithAppSecret sets the app secret used to check webhook signatures. When
// empty, signature validation is skipped.
func WithAppSecret(secret string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.AppSecret = secret }
}

// CloudAPIService implements Service on top of the Meta WhatsApp Cloud API.
// Outbound messages go through the Graph API; inbound messages arrive via the
// webhook handlers, which the API server mounts.
type CloudAPIService struct {
	baseURL       string
	apiVersion    string
	phoneNumberID string
	accessToken   string
	verifyToken   string
	appSecret     string
	client        *http.Client

	responses chan models.IncomingMessage
	mu        sync.RWMutex
	stopped   bool
}

// NewCloudAPIService creates a Cloud API transport from the provided options.
func NewCloudAPIService(opts ...CloudAPIOption) (*CloudAPIService, error) {
	cfg := CloudAPIOpts{
		BaseURL:    DefaultGraphAPIBaseURL,
		APIVersion: DefaultGraphAPIVersion,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("CloudAPIService config loaded",
		"PhoneNumberID_set", cfg.PhoneNumberID != "",
		"AccessToken_set", cfg.AccessToken != "",
		"AppSecret_set", cfg.AppSecret != "")

	if cfg.PhoneNumberID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("phone number ID and access token must be provided")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultSendTimeout}
	}
	return &CloudAPIService{
		baseURL:       cfg.BaseURL,
		apiVersion:    cfg.APIVersion,
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
		verifyToken:   cfg.VerifyToken,
		appSecret:     cfg.AppSecret,
		client:        client,
		responses:     make(chan models.IncomingMessage, DefaultChannelBufferSize),
	}, nil
}

// ValidateAndCanonicalizeRecipient strips formatting down to bare digits.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start is a no-op; inbound traffic is webhook driven.
func (s *CloudAPIService) Start(ctx context.Context) error {
	return nil
}

// Stop marks the service stopped and closes the responses channel.
func (s *CloudAPIService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.responses)
	slog.Info("CloudAPIService stopped")
	return nil
}

type cloudSendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             cloudSendText `json:"text"`
}

type cloudSendText struct {
	Body string `json:"body"`
}

// SendMessage delivers a text message through the Graph API.
func (s *CloudAPIService) SendMessage(ctx context.Context, to string, body string) error {
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
		slog.Error("CloudAPIService.SendMessage validation error", "error", err, "to", to)
		return err
	}

	payload, err := json.Marshal(cloudSendRequest{
		MessagingProduct: "whatsapp",
		To:               canonicalTo,
		Type:             "text",
		Text:             cloudSendText{Body: body},
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.apiVersion, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("CloudAPIService.SendMessage request failed", "error", err, "to", canonicalTo)
		return fmt.Errorf("failed to send message to %s: %w", canonicalTo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		slog.Error("CloudAPIService.SendMessage rejected", "status", resp.StatusCode, "to", canonicalTo, "detail", string(detail))
		return fmt.Errorf("graph API rejected message to %s: status %d", canonicalTo, resp.StatusCode)
	}
	slog.Debug("CloudAPIService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

// Responses returns the channel of normalized inbound messages.
func (s *CloudAPIService) Responses() <-chan models.IncomingMessage {
	return s.responses
}

// VerifyHandler answers Meta's webhook subscription handshake (GET).
func (s *CloudAPIService) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == s.verifyToken {
		slog.Info("CloudAPIService webhook verified")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}
	slog.Warn("CloudAPIService webhook verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// cloudWebhookPayload mirrors the subset of Meta's webhook envelope we consume.
type cloudWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WebhookHandler ingests inbound message notifications (POST). The raw body
// signature is checked against the app secret before any parsing.
func (s *CloudAPIService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		slog.Error("CloudAPIService webhook body read failed", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.appSecret != "" && !s.validSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		slog.Warn("CloudAPIService webhook signature mismatch")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var payload cloudWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("CloudAPIService webhook payload malformed", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					slog.Debug("CloudAPIService ignoring non-text message", "from", msg.From, "type", msg.Type)
					continue
				}
				ts, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
				if ts == 0 {
					ts = time.Now().Unix()
				}
				s.emit(models.IncomingMessage{
					Channel:   channelCloudAPI,
					SenderID:  msg.From,
					MessageID: msg.ID,
					Timestamp: ts,
					Body:      msg.Text.Body,
				})
			}
		}
	}

	// Meta retries non-200 responses, so acknowledge even empty payloads.
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *CloudAPIService) validSignature(body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}

func (s *CloudAPIService) emit(msg models.IncomingMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("CloudAPIService dropping inbound message (service stopped)", "from", msg.SenderID)
		return
	}

	select {
	case s.responses <- msg:
		slog.Debug("CloudAPIService emitted inbound message", "from", msg.SenderID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("CloudAPIService responses channel blocked, dropping message", "from", msg.SenderID)
	}
}
