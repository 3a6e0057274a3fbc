package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/whatsapp"
)

const channelWhatsmeow = "whatsapp-direct"

// WhatsmeowService implements Service using a direct Whatsmeow client.
// Inbound messages come from the client's event stream rather than a webhook.
type WhatsmeowService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // full client when available, for event handling
	responses chan models.IncomingMessage
	mu        sync.RWMutex
	stopped   bool
}

// NewWhatsmeowService creates a service wrapping the given sender. When the
// sender is a full whatsapp.Client, incoming message events are forwarded to
// the Responses channel; a mock sender only supports outbound sends.
func NewWhatsmeowService(client whatsapp.Sender) *WhatsmeowService {
	s := &WhatsmeowService{
		client:    client,
		responses: make(chan models.IncomingMessage, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
		slog.Debug("WhatsmeowService created with full client for event handling")
	} else {
		slog.Debug("WhatsmeowService created with interface client (likely mock)")
	}
	return s
}

// ValidateAndCanonicalizeRecipient strips formatting down to bare digits.
func (s *WhatsmeowService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start registers the event handler that forwards incoming text messages.
func (s *WhatsmeowService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsmeowService.Start: no full client available, skipping event handling")
		return nil
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsmeowService event handler registered")
	return nil
}

// Stop disconnects the client and closes the responses channel.
func (s *WhatsmeowService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	close(s.responses)
	slog.Info("WhatsmeowService stopped")
	return nil
}

// SendMessage sends a text message through the Whatsmeow client.
func (s *WhatsmeowService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsmeowService.SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// Responses returns the channel of normalized inbound messages.
func (s *WhatsmeowService) Responses() <-chan models.IncomingMessage {
	return s.responses
}

// handleIncomingMessage normalizes one incoming text message. Non-text
// payloads (images, audio) are ignored.
func (s *WhatsmeowService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var text string
	if evt.Message.Conversation != nil {
		text = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		text = *evt.Message.ExtendedTextMessage.Text
	} else {
		slog.Debug("WhatsmeowService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	msg := models.IncomingMessage{
		Channel:   channelWhatsmeow,
		SenderID:  evt.Info.Sender.User,
		MessageID: evt.Info.ID,
		Timestamp: evt.Info.Timestamp.Unix(),
		Body:      text,
	}

	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case s.responses <- msg:
		slog.Debug("WhatsmeowService incoming message forwarded", "from", msg.SenderID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsmeowService responses channel blocked, dropping message", "from", msg.SenderID)
	}
}
