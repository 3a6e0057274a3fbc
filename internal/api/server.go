package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// Timeouts for the HTTP server. Webhook handlers only enqueue work, so
// requests are short-lived.
const (
	DefaultAddr            = ":8000"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds server configuration.
type Opts struct {
	Addr string

	// WebhookVerify answers the transport's subscription handshake (GET).
	// Optional; transports without a handshake leave it nil.
	WebhookVerify http.HandlerFunc

	// Webhook ingests inbound message notifications (POST). Required for
	// webhook-driven transports.
	Webhook http.HandlerFunc
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithWebhook mounts the transport's inbound webhook handler.
func WithWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.Webhook = h }
}

// WithWebhookVerification mounts the transport's handshake handler.
func WithWebhookVerification(h http.HandlerFunc) Option {
	return func(o *Opts) { o.WebhookVerify = h }
}

// Server exposes the webhook endpoints and a health check. All orchestration
// happens asynchronously behind the webhook handlers; requests return as soon
// as the work is enqueued.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the HTTP server and its routes.
func NewServer(opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook-whatsapp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if cfg.WebhookVerify == nil {
				w.Header().Set("Allow", http.MethodPost)
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			cfg.WebhookVerify(w, r)
		case http.MethodPost:
			if cfg.Webhook == nil {
				writeJSONResponse(w, http.StatusNotFound, models.Error("no webhook transport configured"))
				return
			}
			cfg.Webhook(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/health", healthHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
	}
}

// healthHandler provides a health check endpoint for monitoring.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"status":    "healthy",
		"service":   "icmr-stw-whatsapp-assistant",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
