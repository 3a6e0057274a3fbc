// Package messaging provides pluggable WhatsApp message transports.
//
// Three backends are supported: the Meta WhatsApp Cloud API (webhook driven),
// Twilio's WhatsApp API, and a direct Whatsmeow client. All of them normalize
// inbound traffic into models.IncomingMessage values on the Responses channel.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// Constants shared across transport implementations.
const (
	// DefaultChannelBufferSize defines the buffer size for the inbound message channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel emission.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier according to the transport's addressing rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (event polling, connections).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of normalized inbound messages.
	Responses() <-chan models.IncomingMessage
}

// canonicalizePhone strips non-digits and validates a minimum length. All
// three transports address recipients by bare E.164 digits.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: too short")
	}
	return canonical, nil
}
