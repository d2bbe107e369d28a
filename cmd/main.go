package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/ragbot/internal/logging"
	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/rag"
)

var (
	configPath string
	verbose    bool

	appConfig *config.Config
	configErr error
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragbot",
	Short: "Bilingual (English/Hindi) document question answering",
	Long: `ragbot indexes PDF and text documents and answers questions about them,
replying in English or Hindi depending on the language of the question.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig runs before every subcommand. The check command tolerates an
// invalid configuration so it can report it.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if cmd.Name() != "check" {
			if errors.Is(err, config.ErrMissingAPIKey) {
				color.Red("✗ %v", err)
				color.Cyan("  Get your key from: https://console.groq.com")
				color.Cyan("  Set: export GROQ_API_KEY=your_key_here")
			}
			return err
		}
		configErr = err
		cfg = config.Default()
	}
	appConfig = cfg

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger = logging.New(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)
	return nil
}

// newSystem builds and initializes the orchestrator behind a spinner.
func newSystem(ctx context.Context) (*rag.System, error) {
	system, err := rag.New(appConfig, rag.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var ok bool
	var msg string
	withSpinner("Connecting to chat API and Ollama...", func() {
		ok, msg = system.Initialize(ctx)
	})
	if !ok {
		system.Close()
		return nil, errors.New(msg)
	}
	color.Green("✓ %s", msg)
	return system, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// withSpinner animates a spinner for as long as fn runs.
func withSpinner(description string, fn func()) {
	spinner := getSpinner(description)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				spinner.Add(1)
			}
		}
	}()

	fn()
	close(done)
	spinner.Finish()
}
