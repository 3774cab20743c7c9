// LineBridge is a stateful conversational relay for a longitudinal
// behavioral-experiment chatbot: it authenticates LINE participants against
// an external roster, routes conversation to per-group AI backends, and
// injects the scripted day-14 conflict intervention.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/chiayulab/linebridge/internal/api"
	"github.com/chiayulab/linebridge/internal/backend"
	"github.com/chiayulab/linebridge/internal/emotion"
	"github.com/chiayulab/linebridge/internal/flow"
	"github.com/chiayulab/linebridge/internal/line"
	"github.com/chiayulab/linebridge/internal/lockfile"
	"github.com/chiayulab/linebridge/internal/models"
	"github.com/chiayulab/linebridge/internal/roster"
	"github.com/chiayulab/linebridge/internal/script"
	"github.com/chiayulab/linebridge/internal/session"
	"github.com/chiayulab/linebridge/internal/store"
	"github.com/chiayulab/linebridge/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LineBridge state data
	DefaultStateDir = "/var/lib/linebridge"
	// DefaultTimezone is the experiment's fixed timezone
	DefaultTimezone = "Asia/Taipei"
	// ProviderDify selects the Dify conversational backend
	ProviderDify = "dify"
	// ProviderOpenAI selects the OpenAI pilot backend
	ProviderOpenAI = "openai"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if config.LineChannelToken == "" {
		slog.Error("LINE_CHANNEL_ACCESS_TOKEN is required")
		os.Exit(1)
	}
	if config.RosterURL == "" {
		slog.Error("ROSTER_API_URL is required")
		os.Exit(1)
	}

	// Session state is process-local; refuse to share a state directory.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release() //nolint:errcheck

	loc, err := time.LoadLocation(*flags.timezone)
	if err != nil {
		slog.Error("Invalid experiment timezone", "error", err, "tz", *flags.timezone)
		os.Exit(1)
	}

	backendClient, err := buildBackendClient(config)
	if err != nil {
		slog.Error("Failed to configure conversational backend", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to configure message-log store", "error", err)
		os.Exit(1)
	}
	defer st.Close() //nolint:errcheck

	sessions := session.NewStore(loc)
	router := flow.NewRouter(
		roster.NewClient(config.RosterURL),
		backendClient,
		emotion.NewClassifier(),
		script.NewDefaultTable(),
		sessions,
		*flags.interventionDay,
		loc,
	)
	lineClient := line.NewClient(config.LineChannelToken)
	server := api.NewServer(router, sessions, lineClient, st, api.WithAddr(*flags.apiAddr))

	slog.Info("Bootstrapping LineBridge", "addr", *flags.apiAddr, "tz", *flags.timezone, "intervention_day", *flags.interventionDay, "provider", config.BackendProvider)
	if err := server.Run(); err != nil {
		slog.Error("LineBridge failed to run", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	LineChannelToken string
	DifyKeys         map[models.Group]string
	BackendProvider  string
	OpenAIKey        string
	RosterURL        string
	Timezone         string
	InterventionDay  int
	DatabaseURL      string
	StateDir         string
	APIAddr          string
}

// Flags holds command line flag values
type Flags struct {
	apiAddr         *string
	stateDir        *string
	dbDSN           *string
	timezone        *string
	interventionDay *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		LineChannelToken: os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		DifyKeys: map[models.Group]string{
			models.GroupA: os.Getenv("DIFY_API_KEY_A"),
			models.GroupB: os.Getenv("DIFY_API_KEY_B"),
			models.GroupC: os.Getenv("DIFY_API_KEY_C"),
			models.GroupD: os.Getenv("DIFY_API_KEY_D"),
		},
		BackendProvider: os.Getenv("BACKEND_PROVIDER"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		RosterURL:       os.Getenv("ROSTER_API_URL"),
		Timezone:        os.Getenv("EXPERIMENT_TZ"),
		InterventionDay: util.ParseIntEnv("INTERVENTION_DAY", flow.DefaultInterventionDay),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("LINEBRIDGE_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
	}

	if config.BackendProvider == "" {
		config.BackendProvider = ProviderDify
	}
	if config.Timezone == "" {
		config.Timezone = DefaultTimezone
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LINEBRIDGE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// The historical deployment configured only the port.
	if config.APIAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			config.APIAddr = ":" + port
		} else {
			config.APIAddr = api.DefaultAddr
		}
	}

	return config
}

// parseCommandLineFlags parses flags, using environment config as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		apiAddr:         flag.String("addr", config.APIAddr, "API server listen address"),
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for the instance lock"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "message-log DSN (postgres:// URL or SQLite file path; empty for in-memory)"),
		timezone:        flag.String("tz", config.Timezone, "experiment timezone for daily-interaction tracking"),
		interventionDay: flag.Int("intervention-day", config.InterventionDay, "experiment day the scripted intervention triggers on"),
	}
	flag.Parse()
	return flags
}

// buildBackendClient selects the conversational backend provider.
func buildBackendClient(config Config) (backend.Client, error) {
	switch config.BackendProvider {
	case ProviderOpenAI:
		if config.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when BACKEND_PROVIDER=%s", ProviderOpenAI)
		}
		groups := []models.Group{models.GroupA, models.GroupB, models.GroupC, models.GroupD}
		return backend.NewOpenAIClient(config.OpenAIKey, groups), nil
	default:
		for group, key := range config.DifyKeys {
			if key == "" {
				slog.Warn("No Dify API key configured for group; its participants will get a system error", "group", group)
			}
		}
		return backend.NewDifyClient(config.DifyKeys), nil
	}
}

// buildStore selects the message-log backend from the DSN shape.
func buildStore(dsn string) (store.Store, error) {
	switch {
	case dsn == "":
		slog.Info("No message-log DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	case store.IsPostgresDSN(dsn):
		return store.NewPostgresStore(store.WithDSN(dsn))
	default:
		return store.NewSQLiteStore(store.WithDSN(dsn))
	}
}
