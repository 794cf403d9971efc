package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/CardDesk/internal/api"
	"github.com/BTreeMap/CardDesk/internal/events"
	"github.com/BTreeMap/CardDesk/internal/genai"
	"github.com/BTreeMap/CardDesk/internal/lockfile"
	"github.com/BTreeMap/CardDesk/internal/store"
	"github.com/BTreeMap/CardDesk/internal/twiliowhatsapp"
	"github.com/BTreeMap/CardDesk/internal/util"
	"github.com/BTreeMap/CardDesk/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CardDesk state data
	DefaultStateDir = "/var/lib/carddesk"
	// DefaultAppDBFileName is the default SQLite archive filename
	DefaultAppDBFileName = "carddesk.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow device database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup (the state lock) runs before exit.
func run() int {
	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		return 2
	}
	initializeLogger(flags.logLevel)

	// Ephemeral runs keep nothing on disk unless the WhatsApp device store is in use.
	if !flags.ephemeral || flags.whatsapp {
		lock, err := lockfile.Acquire(flags.stateDir)
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			return 1
		}
		defer lock.Release()
	}

	waOpts := buildWhatsAppOptions(flags)
	twOpts := buildTwilioOptions(flags)
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	eventOpts := buildEventOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping CardDesk with configured modules")
	slog.Debug("Module options counts", "whatsapp", len(waOpts), "twilio", len(twOpts), "store", len(storeOpts),
		"genai", len(genaiOpts), "events", len(eventOpts), "api", len(apiOpts))
	if err := api.Run(waOpts, twOpts, storeOpts, genaiOpts, eventOpts, apiOpts); err != nil {
		slog.Error("CardDesk failed to run", "error", err)
		return 1
	}
	slog.Info("CardDesk exited successfully")
	return 0
}

// initializeLogger sets up structured logging at the given level (debug when unparseable).
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	Ephemeral     bool
	WhatsAppDSN   string
	LogLevel      string
	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int
	APIAddr       string
	AccountsFile  string
	CORSOrigins   []string
	RateLimit     int
	SessionIdle   time.Duration
	SecureCookies bool
	NATSURL       string
	NATSToken     string
	NATSSubject   string
	WhatsApp      bool
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	TwilioWebhook string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      string
	dbDSN         string
	ephemeral     bool
	waDSN         string
	qrOutput      string
	numeric       bool
	logLevel      string
	llmAPIKey     string
	llmBaseURL    string
	llmModel      string
	llmTimeout    time.Duration
	llmMaxRetries int
	apiAddr       string
	accountsFile  string
	corsOrigins   string
	rateLimit     int
	sessionIdle   time.Duration
	secureCookies bool
	natsURL       string
	natsToken     string
	natsSubject   string
	whatsapp      bool
	twilioSID     string
	twilioToken   string
	twilioFrom    string
	twilioWebhook string
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("CARDDESK_STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Ephemeral:     util.ParseBoolEnv("CARDDESK_EPHEMERAL", false),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		LLMBaseURL:    os.Getenv("LLM_BASE_URL"),
		LLMModel:      os.Getenv("LLM_MODEL"),
		LLMTimeout:    util.ParseDurationEnv("LLM_TIMEOUT", genai.DefaultTimeout),
		LLMMaxRetries: util.ParseIntEnv("LLM_MAX_RETRIES", genai.DefaultMaxRetries),
		APIAddr:       os.Getenv("API_ADDR"),
		AccountsFile:  os.Getenv("ACCOUNTS_FILE"),
		CORSOrigins:   util.SplitList(os.Getenv("CORS_ORIGINS")),
		RateLimit:     util.ParseIntEnv("RATE_LIMIT", api.DefaultRateLimit),
		SessionIdle:   util.ParseDurationEnv("SESSION_IDLE_TIMEOUT", api.DefaultSessionIdleTimeout),
		SecureCookies: util.ParseBoolEnv("COOKIE_SECURE", false),
		NATSURL:       os.Getenv("NATS_URL"),
		NATSToken:     os.Getenv("NATS_TOKEN"),
		NATSSubject:   os.Getenv("NATS_SUBJECT"),
		WhatsApp:      util.ParseBoolEnv("WHATSAPP_ENABLED", false),
		TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhook: os.Getenv("TWILIO_WEBHOOK_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CARDDESK_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultAppDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = defaultWhatsAppDSN(config.StateDir)
	}
	if config.LogLevel == "" {
		config.LogLevel = "debug"
	}

	slog.Debug("environment variables loaded",
		"CARDDESK_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CARDDESK_EPHEMERAL", config.Ephemeral,
		"LLM_API_KEY_SET", config.LLMAPIKey != "",
		"API_ADDR", config.APIAddr,
		"ACCOUNTS_FILE", config.AccountsFile,
		"NATS_URL", config.NATSURL,
		"WHATSAPP_ENABLED", config.WhatsApp,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"TWILIO_AUTH_TOKEN_SET", config.TwilioToken != "")
	return config
}

func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// parseCommandLineFlags parses args into fs with environment defaults.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	var flags Flags
	fs.StringVar(&flags.stateDir, "state-dir", config.StateDir, "state directory for CardDesk data (overrides $CARDDESK_STATE_DIR)")
	fs.StringVar(&flags.dbDSN, "db-dsn", config.DatabaseURL, "archive database DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)")
	fs.BoolVar(&flags.ephemeral, "ephemeral", config.Ephemeral, "keep the archive in memory only (overrides $CARDDESK_EPHEMERAL)")
	fs.StringVar(&flags.waDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow device database DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&flags.qrOutput, "qr-output", "", "path to write login QR code")
	fs.BoolVar(&flags.numeric, "numeric-code", false, "use numeric login code instead of QR code")
	fs.StringVar(&flags.logLevel, "log-level", config.LogLevel, "log level: debug, info, warn, error (overrides $LOG_LEVEL)")
	fs.StringVar(&flags.llmAPIKey, "llm-api-key", config.LLMAPIKey, "LLM API key (overrides $LLM_API_KEY)")
	fs.StringVar(&flags.llmBaseURL, "llm-base-url", config.LLMBaseURL, "OpenAI-compatible base URL (overrides $LLM_BASE_URL)")
	fs.StringVar(&flags.llmModel, "llm-model", config.LLMModel, "LLM model name (overrides $LLM_MODEL)")
	fs.DurationVar(&flags.llmTimeout, "llm-timeout", config.LLMTimeout, "timeout for a single LLM call (overrides $LLM_TIMEOUT)")
	fs.IntVar(&flags.llmMaxRetries, "llm-max-retries", config.LLMMaxRetries, "LLM retry count (overrides $LLM_MAX_RETRIES)")
	fs.StringVar(&flags.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&flags.accountsFile, "accounts-file", config.AccountsFile, "YAML account table (overrides $ACCOUNTS_FILE)")
	fs.StringVar(&flags.corsOrigins, "cors-origins", strings.Join(config.CORSOrigins, ","), "comma-separated allowed origins (overrides $CORS_ORIGINS)")
	fs.IntVar(&flags.rateLimit, "rate-limit", config.RateLimit, "requests per IP per minute, 0 disables (overrides $RATE_LIMIT)")
	fs.DurationVar(&flags.sessionIdle, "session-idle-timeout", config.SessionIdle, "idle time before a session is dropped (overrides $SESSION_IDLE_TIMEOUT)")
	fs.BoolVar(&flags.secureCookies, "secure-cookies", config.SecureCookies, "mark the session cookie Secure (overrides $COOKIE_SECURE)")
	fs.StringVar(&flags.natsURL, "nats-url", config.NATSURL, "NATS server for turn events, empty disables (overrides $NATS_URL)")
	fs.StringVar(&flags.natsToken, "nats-token", config.NATSToken, "NATS auth token (overrides $NATS_TOKEN)")
	fs.StringVar(&flags.natsSubject, "nats-subject", config.NATSSubject, "NATS subject prefix (overrides $NATS_SUBJECT)")
	fs.BoolVar(&flags.whatsapp, "whatsapp", config.WhatsApp, "enable the WhatsApp channel (overrides $WHATSAPP_ENABLED)")
	fs.StringVar(&flags.twilioSID, "twilio-account-sid", config.TwilioSID, "Twilio account SID, enables the Twilio channel (overrides $TWILIO_ACCOUNT_SID)")
	fs.StringVar(&flags.twilioToken, "twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)")
	fs.StringVar(&flags.twilioFrom, "twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)")
	fs.StringVar(&flags.twilioWebhook, "twilio-webhook-url", config.TwilioWebhook, "public webhook URL for signature checks (overrides $TWILIO_WEBHOOK_URL)")

	if err := fs.Parse(args); err != nil {
		return flags, fmt.Errorf("failed to parse flags: %w", err)
	}

	// Follow -state-dir for file defaults that were not set explicitly.
	if flags.stateDir != config.StateDir {
		if flags.dbDSN == filepath.Join(config.StateDir, DefaultAppDBFileName) {
			flags.dbDSN = filepath.Join(flags.stateDir, DefaultAppDBFileName)
		}
		if flags.waDSN == defaultWhatsAppDSN(config.StateDir) {
			flags.waDSN = defaultWhatsAppDSN(flags.stateDir)
		}
		slog.Debug("Updated DSNs based on state directory", "old_state_dir", config.StateDir, "new_state_dir", flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", flags.stateDir,
		"dbDSN_set", flags.dbDSN != "",
		"ephemeral", flags.ephemeral,
		"apiAddr", flags.apiAddr,
		"whatsapp", flags.whatsapp,
		"twilio", flags.twilioSID != "",
		"nats", flags.natsURL != "")
	return flags, nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(flags.qrOutput))
	}
	if flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if flags.waDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(flags.waDSN))
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio configuration options
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	var twOpts []twiliowhatsapp.Option
	if flags.twilioSID != "" {
		twOpts = append(twOpts, twiliowhatsapp.WithAccountSID(flags.twilioSID))
	}
	if flags.twilioToken != "" {
		twOpts = append(twOpts, twiliowhatsapp.WithAuthToken(flags.twilioToken))
	}
	if flags.twilioFrom != "" {
		twOpts = append(twOpts, twiliowhatsapp.WithFromWhats(flags.twilioFrom))
	}
	return twOpts
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	if flags.ephemeral || flags.dbDSN == "" {
		slog.Debug("Ephemeral mode, will use in-memory store")
		return nil
	}
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return []store.Option{store.WithPostgresDSN(flags.dbDSN)}
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", flags.dbDSN)
	return []store.Option{store.WithSQLiteDSN(flags.dbDSN)}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if flags.llmAPIKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(flags.llmAPIKey))
	}
	if flags.llmBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(flags.llmBaseURL))
	}
	if flags.llmModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(flags.llmModel))
	}
	genaiOpts = append(genaiOpts, genai.WithTimeout(flags.llmTimeout), genai.WithMaxRetries(flags.llmMaxRetries))
	return genaiOpts
}

// buildEventOptions constructs NATS publisher options
func buildEventOptions(flags Flags) []events.Option {
	if flags.natsURL == "" {
		return nil
	}
	eventOpts := []events.Option{events.WithURL(flags.natsURL)}
	if flags.natsToken != "" {
		eventOpts = append(eventOpts, events.WithToken(flags.natsToken))
	}
	if flags.natsSubject != "" {
		eventOpts = append(eventOpts, events.WithSubject(flags.natsSubject))
	}
	return eventOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{
		api.WithRateLimit(flags.rateLimit),
		api.WithSessionIdleTimeout(flags.sessionIdle),
		api.WithLLMTimeout(flags.llmTimeout),
	}
	if flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(flags.apiAddr))
	}
	if flags.accountsFile != "" {
		apiOpts = append(apiOpts, api.WithAccountsFile(flags.accountsFile))
	}
	if origins := util.SplitList(flags.corsOrigins); len(origins) > 0 {
		apiOpts = append(apiOpts, api.WithCORSOrigins(origins))
	}
	if flags.secureCookies {
		apiOpts = append(apiOpts, api.WithSecureCookies())
	}
	if flags.whatsapp {
		apiOpts = append(apiOpts, api.WithWhatsApp())
	}
	if flags.twilioSID != "" {
		apiOpts = append(apiOpts, api.WithTwilio(flags.twilioWebhook))
	}
	if flags.natsURL != "" {
		apiOpts = append(apiOpts, api.WithEvents())
	}
	return apiOpts
}
