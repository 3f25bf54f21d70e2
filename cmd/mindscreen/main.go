package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/MindScreen/internal/api"
	"github.com/BTreeMap/MindScreen/internal/assessment"
	"github.com/BTreeMap/MindScreen/internal/bank"
	"github.com/BTreeMap/MindScreen/internal/cache"
	"github.com/BTreeMap/MindScreen/internal/chat"
	"github.com/BTreeMap/MindScreen/internal/flow"
	"github.com/BTreeMap/MindScreen/internal/genai"
	"github.com/BTreeMap/MindScreen/internal/lockfile"
	"github.com/BTreeMap/MindScreen/internal/notify"
	"github.com/BTreeMap/MindScreen/internal/store"
	"github.com/BTreeMap/MindScreen/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for MindScreen state data
	DefaultStateDir = "/var/lib/mindscreen"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "mindscreen.db"
	// DefaultOutboxPollInterval is how often queued crisis alerts are retried
	DefaultOutboxPollInterval = 5 * time.Second
)

func main() {
	// Load environment configuration before the logger so LOG_LEVEL from .env applies
	config := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)

	flags := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)

	if *flags.validateBank {
		if err := validateBank(*flags.bankPath, os.Stdout); err != nil {
			slog.Error("main.main: question bank is invalid", "error", err, "path", *flags.bankPath)
			os.Exit(1)
		}
		return
	}

	if err := run(flags); err != nil {
		slog.Error("main.main: MindScreen failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("main.main: MindScreen exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	OpenAIKey     string
	OpenAIModel   string
	APIAddr       string
	BankPath      string
	RedisAddr     string
	CrisisAlertTo string
	LogLevel      string
	GenAIDebug    bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	openaiModel   *string
	apiAddr       *string
	bankPath      *string
	redisAddr     *string
	crisisAlertTo *string
	genaiDebug    *bool
	validateBank  *bool
}

// initializeLogger sets up structured logging on stdout at the configured level
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

// parseLogLevel maps LOG_LEVEL to a slog level. Unknown values fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("main.loadEnvironmentConfig: failed to load .env file", "error", err)
	} else {
		slog.Debug("main.loadEnvironmentConfig: successfully loaded .env file")
	}

	config := Config{
		StateDir:      util.GetEnvOrDefault("MINDSCREEN_STATE_DIR", DefaultStateDir),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		APIAddr:       os.Getenv("API_ADDR"),
		BankPath:      os.Getenv("QUESTION_BANK_PATH"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		CrisisAlertTo: os.Getenv("CRISIS_ALERT_TO"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		GenAIDebug:    util.ParseBoolEnv("GENAI_DEBUG", false),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("main.loadEnvironmentConfig: no database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("main.loadEnvironmentConfig: environment variables loaded",
		"MINDSCREEN_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"QUESTION_BANK_PATH", config.BankPath,
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"CRISIS_ALERT_TO_SET", config.CrisisAlertTo != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) Flags {
	flags := Flags{
		stateDir:      fs.String("state-dir", config.StateDir, "state directory for MindScreen data (overrides $MINDSCREEN_STATE_DIR)"),
		dbDSN:         fs.String("db-dsn", config.DatabaseURL, "database DSN, a Postgres URL or an SQLite path (overrides $DATABASE_URL)"),
		openaiKey:     fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key for the chat relay (overrides $OPENAI_API_KEY)"),
		openaiModel:   fs.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:       fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		bankPath:      fs.String("bank", config.BankPath, "question bank YAML file; the built-in bank is used when empty (overrides $QUESTION_BANK_PATH)"),
		redisAddr:     fs.String("redis-addr", config.RedisAddr, "Redis address for the chat context cache (overrides $REDIS_ADDR)"),
		crisisAlertTo: fs.String("crisis-alert-to", config.CrisisAlertTo, "phone number that receives crisis alerts (overrides $CRISIS_ALERT_TO)"),
		genaiDebug:    fs.Bool("genai-debug", config.GenAIDebug, "write OpenAI request/response logs to the state directory (overrides $GENAI_DEBUG)"),
		validateBank:  fs.Bool("validate-bank", false, "validate the question bank and exit"),
	}

	if err := fs.Parse(args); err != nil {
		slog.Error("main.parseCommandLineFlags: failed to parse flags", "error", err)
	}

	slog.Debug("main.parseCommandLineFlags: flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"bankPath", *flags.bankPath,
		"validateBank", *flags.validateBank)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("main.parseCommandLineFlags: updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// loadBank returns the bank at path, or the built-in bank when path is empty
func loadBank(path string) (*bank.Bank, error) {
	if path == "" {
		return bank.Default(), nil
	}
	return bank.LoadFile(path)
}

// validateBank loads the bank and reports its version and size
func validateBank(path string, out io.Writer) error {
	b, err := loadBank(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "question bank %s is valid: %d questions (%d primary, %d secondary, %d open)\n",
		b.Version(), b.Len(), len(b.Primary()), len(b.Secondary()), len(b.Open()))
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("main.buildStoreOptions: detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("main.buildStoreOptions: detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("main.buildStoreOptions: no database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	genaiOpts = append(genaiOpts, genai.WithTemperature(util.ParseFloatEnv("OPENAI_TEMPERATURE", genai.DefaultTemperature)))
	if *flags.genaiDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, *flags.stateDir))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

// buildContextCache picks Redis when an address is configured, otherwise an in-process cache
func buildContextCache(ctx context.Context, flags Flags) (cache.ContextCache, func(), error) {
	ttl := util.ParseDurationEnv("CHAT_CONTEXT_TTL", cache.DefaultTTL)
	if *flags.redisAddr == "" {
		slog.Debug("main.buildContextCache: no Redis address provided, using in-memory context cache")
		return cache.NewMemoryContextCache(ttl), func() {}, nil
	}
	client, err := cache.Connect(ctx, *flags.redisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("main.buildContextCache: using Redis context cache", "addr", *flags.redisAddr, "ttl", ttl)
	return cache.NewRedisContextCache(client, ttl), func() { client.Close() }, nil
}

// run wires the modules and serves until interrupted
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		var lockErr *lockfile.LockError
		if errors.As(err, &lockErr) {
			fmt.Fprintln(os.Stderr, lockErr.Error())
		}
		return err
	}
	defer lock.Release()

	b, err := loadBank(*flags.bankPath)
	if err != nil {
		return fmt.Errorf("failed to load question bank: %w", err)
	}
	slog.Info("main.run: question bank loaded", "version", b.Version(), "questions", b.Len())

	st, err := store.New(buildStoreOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	contexts, closeCache, err := buildContextCache(ctx, flags)
	if err != nil {
		return err
	}
	defer closeCache()

	// Emergency results are always queued; delivery needs an on-call number.
	if *flags.crisisAlertTo != "" {
		twilioClient, err := notify.NewTwilioClient()
		if err != nil {
			return fmt.Errorf("crisis alerts configured but Twilio is not: %w", err)
		}
		sender := store.NewOutboxSender(st, notify.SendFunc(twilioClient, *flags.crisisAlertTo),
			util.ParseDurationEnv("OUTBOX_POLL_INTERVAL", DefaultOutboxPollInterval))
		if err := sender.RecoverStaleMessages(); err != nil {
			slog.Error("main.run: failed to recover stale outbox messages", "error", err)
		}
		go sender.Run(ctx)
	} else {
		slog.Warn("main.run: CRISIS_ALERT_TO not set; crisis alerts are queued but not delivered")
	}

	assessor := assessment.NewAssessor()
	service := assessment.NewService(assessor, st,
		assessment.WithNotifier(notify.NewOutboxNotifier(st)),
		assessment.WithContextCache(contexts))
	sessions := flow.NewSessionManager(flow.NewStoreBasedStateManager(st), b)

	var relay *chat.Relay
	if *flags.openaiKey != "" {
		client, err := genai.NewClient(buildGenAIOptions(flags)...)
		if err != nil {
			return fmt.Errorf("failed to initialize GenAI client: %w", err)
		}
		relay = chat.NewRelay(client, st, chat.WithContextSource(contexts))
	} else {
		slog.Warn("main.run: OPENAI_API_KEY not set; chat relay disabled")
	}

	slog.Info("main.run: bootstrapping MindScreen with configured modules", "state_dir", *flags.stateDir, "chat_enabled", relay != nil)
	return api.NewServer(sessions, service, relay, buildAPIOptions(flags)...).Run(ctx)
}
