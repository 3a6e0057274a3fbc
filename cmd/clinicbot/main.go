package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/api"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/audit"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/conversation"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/genai"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/messaging"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/rag"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/store"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/util"
	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for assistant state data
	DefaultStateDir = "/var/lib/clinicbot"
	// DefaultAuditFileName is the default JSONL audit log filename
	DefaultAuditFileName = "clinical_audit.jsonl"
	// DefaultWhatsmeowDBFileName is the default whatsmeow session database filename
	DefaultWhatsmeowDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("clinicbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("clinicbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	// Oracle
	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	// Messaging
	Backend          string // cloud | twilio | whatsmeow
	PhoneNumberID    string
	WhatsAppToken    string
	VerifyToken      string
	AppSecret        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromWhats  string
	WhatsmeowDSN     string

	// Retrieval
	VectorDBURL   string
	VectorDBToken string

	// State
	RedisAddr     string
	RedisPassword string
	AuditDSN      string
	StateDir      string

	// API
	APIAddr string

	// Rate limiting
	LimitMinute int
	LimitDay    int
}

// Flags holds command line flag values
type Flags struct {
	qrOutput *string
	numeric  *bool
	apiAddr  *string
	backend  *string
	auditDSN *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),
		GroqBaseURL: os.Getenv("GROQ_BASE_URL"),
		GroqModel:   os.Getenv("GROQ_MODEL"),

		Backend:          util.GetEnv("MESSAGING_BACKEND", "cloud"),
		PhoneNumberID:    os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppToken:    os.Getenv("WHATSAPP_TOKEN"),
		VerifyToken:      os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		AppSecret:        os.Getenv("WHATSAPP_APP_SECRET"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromWhats:  os.Getenv("TWILIO_FROM_NUMBER"),
		WhatsmeowDSN:     os.Getenv("WHATSAPP_DB_DSN"),

		VectorDBURL:   os.Getenv("VECTOR_DB_URL"),
		VectorDBToken: os.Getenv("VECTOR_DB_TOKEN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AuditDSN:      os.Getenv("AUDIT_DSN"),
		StateDir:      util.GetEnv("CLINICBOT_STATE_DIR", DefaultStateDir),

		APIAddr: util.GetEnv("API_ADDR", api.DefaultAddr),

		LimitMinute: util.ParseIntEnv("LIMIT_MINUTE", conversation.DefaultMinuteLimit),
		LimitDay:    util.ParseIntEnv("LIMIT_DAY", conversation.DefaultDayLimit),
	}

	if config.AuditDSN == "" {
		config.AuditDSN = filepath.Join(config.StateDir, DefaultAuditFileName)
		slog.Debug("No AUDIT_DSN provided, defaulting to JSONL file", "path", config.AuditDSN)
	}
	if config.WhatsmeowDSN == "" {
		config.WhatsmeowDSN = filepath.Join(config.StateDir, DefaultWhatsmeowDBFileName)
	}

	slog.Debug("environment variables loaded",
		"GROQ_API_KEY_SET", config.GroqAPIKey != "",
		"MESSAGING_BACKEND", config.Backend,
		"VECTOR_DB_URL_SET", config.VectorDBURL != "",
		"REDIS_ADDR", config.RedisAddr,
		"AUDIT_DSN_SET", config.AuditDSN != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput: flag.String("qr-output", "", "path to write the WhatsApp login QR code (whatsmeow backend)"),
		numeric:  flag.Bool("numeric-code", false, "use a numeric login code instead of a QR code (whatsmeow backend)"),
		apiAddr:  flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		backend:  flag.String("backend", config.Backend, "messaging backend: cloud, twilio or whatsmeow (overrides $MESSAGING_BACKEND)"),
		auditDSN: flag.String("audit-dsn", config.AuditDSN, "audit sink DSN: postgres URL, sqlite path (.db) or JSONL path (overrides $AUDIT_DSN)"),
	}
	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend,
		"auditDSN_set", *flags.auditDSN != "")
	return flags
}

// buildSessionStore selects Redis when configured, in-memory otherwise.
func buildSessionStore(config Config) (store.SessionStore, func(), error) {
	if config.RedisAddr == "" {
		slog.Info("No REDIS_ADDR set, using in-memory session store")
		return store.NewInMemoryStore(), func() {}, nil
	}
	rs, err := store.NewRedisStore(
		store.WithAddr(config.RedisAddr),
		store.WithPassword(config.RedisPassword),
	)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}

// buildAuditRecorder picks the audit backend from the DSN shape.
func buildAuditRecorder(dsn string) (audit.Recorder, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host="):
		return audit.NewPostgresRecorder(audit.WithDSN(dsn))
	case strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite"):
		return audit.NewSQLiteRecorder(audit.WithDSN(dsn))
	default:
		return audit.NewFileRecorder(audit.WithDSN(dsn))
	}
}

// buildMessaging constructs the selected transport and any webhook handlers
// the API server should mount.
func buildMessaging(config Config, flags Flags) (messaging.Service, []api.Option, error) {
	switch *flags.backend {
	case "twilio":
		client, err := messaging.NewTwilioClient(
			messaging.WithAccountSID(config.TwilioAccountSID),
			messaging.WithAuthToken(config.TwilioAuthToken),
			messaging.WithFromWhats(config.TwilioFromWhats),
		)
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewTwilioService(client)
		return svc, []api.Option{api.WithWebhook(svc.WebhookHandler)}, nil

	case "whatsmeow":
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithDBDSN(config.WhatsmeowDSN))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsmeowService(client), nil, nil

	default: // Meta Cloud API
		svc, err := messaging.NewCloudAPIService(
			messaging.WithPhoneNumberID(config.PhoneNumberID),
			messaging.WithAccessToken(config.WhatsAppToken),
			messaging.WithVerifyToken(config.VerifyToken),
			messaging.WithAppSecret(config.AppSecret),
		)
		if err != nil {
			return nil, nil, err
		}
		return svc, []api.Option{
			api.WithWebhook(svc.WebhookHandler),
			api.WithWebhookVerification(svc.VerifyHandler),
		}, nil
	}
}

// buildRetriever returns the vector retriever, or a no-op when unconfigured.
func buildRetriever(config Config) rag.Retriever {
	if config.VectorDBURL == "" {
		slog.Warn("No VECTOR_DB_URL set, guideline retrieval disabled")
		return rag.NoopRetriever{}
	}
	r, err := rag.NewVectorRetriever(config.VectorDBURL, config.VectorDBToken)
	if err != nil {
		slog.Warn("Vector retriever unavailable, guideline retrieval disabled", "error", err)
		return rag.NoopRetriever{}
	}
	return r
}

func run(config Config, flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, closeSessions, err := buildSessionStore(config)
	if err != nil {
		return err
	}
	defer closeSessions()

	recorder, err := buildAuditRecorder(*flags.auditDSN)
	if err != nil {
		return err
	}
	defer recorder.Close()

	var genaiOpts []genai.Option
	if config.GroqAPIKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(config.GroqAPIKey))
	}
	if config.GroqBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(config.GroqBaseURL))
	}
	if config.GroqModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(config.GroqModel))
	}
	oracle, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	service, apiOpts, err := buildMessaging(config, flags)
	if err != nil {
		return err
	}
	if err := service.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = service.Stop() }()

	engine := conversation.NewEngine(sessions, oracle, buildRetriever(config), service,
		conversation.WithAuditRecorder(recorder),
		conversation.WithRateLimiter(conversation.NewRateLimiter(config.LimitMinute, config.LimitDay)),
	)
	defer engine.Stop()

	go engine.Run(ctx, service.Responses())

	apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	server := api.NewServer(apiOpts...)
	slog.Info("Bootstrapping clinical assistant", "backend", *flags.backend, "addr", *flags.apiAddr)
	return server.Run(ctx)
}
