package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cchalm/memochat/internal/config"
)

var (
	cfg    = config.Default()
	logger = slog.New(slog.DiscardHandler)

	flags struct {
		configPath       string
		provider         string
		apiKey           string
		baseURL          string
		model            string
		store            string
		storePath        string
		historyRetention string
		logLevel         string
		telemetry        bool
	}
)

var rootCmd = &cobra.Command{
	Use:   "memochat",
	Short: "Chat with a language model that remembers long conversations",
	Long: `memochat holds conversations with a language model. Each thread is checkpointed
after every turn, and once a thread grows long its older messages are folded into a
running summary so that the context sent to the model stays bounded.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRootConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func loadRootConfig(cmd *cobra.Command, _ []string) error {
	// Load .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	loaded, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &loaded)
	loaded.ResolveProviderAPIKey()
	cfg = loaded

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// applyFlags overrides the loaded configuration with the flags given on the command line
func applyFlags(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed
	if changed("provider") {
		c.Provider = flags.provider
	}
	if changed("api-key") {
		c.APIKey = flags.apiKey
	}
	if changed("base-url") {
		c.BaseURL = flags.baseURL
	}
	if changed("model") {
		c.Model = flags.model
	}
	if changed("store") {
		c.Store = flags.store
	}
	if changed("store-path") {
		c.StorePath = flags.storePath
	}
	if changed("history-retention") {
		c.HistoryRetention = flags.historyRetention
	}
	if changed("log-level") {
		c.LogLevel = flags.logLevel
	}
	if changed("telemetry") {
		c.TelemetryEnabled = flags.telemetry
	}
}

func init() {
	registerRootFlags(rootCmd.PersistentFlags())
}

func registerRootFlags(pf *pflag.FlagSet) {
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML configuration file")
	pf.StringVar(&flags.provider, "provider", "", "Model provider: openai or anthropic")
	pf.StringVar(&flags.apiKey, "api-key", "", "API key for the model provider")
	pf.StringVar(&flags.baseURL, "base-url", "", "Base URL of the model API, required for openai-compatible providers")
	pf.StringVar(&flags.model, "model", "", "Model name")
	pf.StringVar(&flags.store, "store", "", "Checkpoint store: sqlite, file or memory")
	pf.StringVar(&flags.storePath, "store-path", "", "SQLite database file or checkpoint directory")
	pf.StringVar(&flags.historyRetention, "history-retention", "", "What to keep after summarizing: all or unsummarized")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&flags.telemetry, "telemetry", false, "Export traces over OTLP/HTTP")
}
