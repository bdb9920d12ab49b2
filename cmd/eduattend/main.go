package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eduattend/internal/config"
	"eduattend/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	serverURL  string
	transport  string
	sessionKey string
	theme      string
	timeout    time.Duration

	// Loaded configuration
	appCfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "eduattend",
	Short: "EduAttend - conversational client for the attendance agent",
	Long: `EduAttend lets you ask the school's attendance-analytics agent questions in
natural language and streams its answers.

After each reply it offers quick date picks when the conversation is about
dates, download buttons for generated report files, and a catalog of
suggested questions, some of which collect parameters through a form first.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		appCfg = cfg

		if err := logging.Initialize(cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize file logging: %w", err)
		}
		logging.Boot("eduattend %s: server=%s transport=%s", cmd.Name(), cfg.Server.BaseURL, cfg.Server.Transport)

		// Interactive mode owns the terminal; no stderr logger.
		if cmd.Root() == cmd {
			logger = zap.NewNop()
			return nil
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runInteractiveChat(cmd)
	},
}

// askCmd sends one question and streams the reply
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the attendance agent a single question",
	Long: `Sends one message to the attendance agent and prints the reply as it
streams. Files mentioned in the reply and date follow-ups are listed after it.

Example:
  eduattend ask "Siapa saja yang alfa hari ini?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// healthCmd probes the backend
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the attendance agent is online",
	RunE:  runHealth,
}

// downloadCmd fetches a generated artifact
var downloadCmd = &cobra.Command{
	Use:   "download [filename]",
	Short: "Download a report file generated by the agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

// questionsCmd lists the suggested-question catalog
var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the suggested questions",
	RunE:  runQuestions,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.eduattend/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "Chat transport: http or websocket (overrides config)")
	rootCmd.PersistentFlags().StringVar(&sessionKey, "session", "", "Session key (default: random)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	rootCmd.Flags().StringVar(&theme, "theme", "", "Color theme: light or dark (default: detect)")

	healthCmd.Flags().BoolVarP(&healthWatch, "watch", "w", false, "Keep polling and print every status change")
	downloadCmd.Flags().StringVarP(&downloadDir, "dir", "d", "", "Directory to save into (default: artifacts.download_dir)")
	downloadCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the browser when the download fails")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(questionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadAppConfig loads the config file and applies flag overrides.
func loadAppConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = strings.TrimRight(serverURL, "/")
	}
	if transport != "" {
		cfg.Server.Transport = strings.ToLower(transport)
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT/SIGTERM or after d.
func signalContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), d)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
