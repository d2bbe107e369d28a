package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/llm"
	"github.com/xhad/ragbot/pkg/rag"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and troubleshooting hints",
	RunE:  runStatus,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every indexed document",
	RunE:  runClear,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration, chat API and Ollama before first use",
	RunE:  runCheck,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd, clearCmd, checkCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	system, err := rag.New(appConfig, rag.WithLogger(logger))
	if err != nil {
		return err
	}
	defer system.Close()

	var ok bool
	var msg string
	withSpinner("Connecting to chat API and Ollama...", func() {
		ok, msg = system.Initialize(ctx)
	})

	status := system.Status(ctx)
	if statusJSON {
		data, err := json.MarshalIndent(struct {
			Status          any `json:"status"`
			Stats           any `json:"document_stats"`
			Troubleshooting any `json:"troubleshooting"`
		}{status, system.DocumentStats(), system.Troubleshooting(ctx)}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	color.Cyan("System")
	fmt.Printf("  Initialized:   %v\n", status.Initialized)
	fmt.Printf("  Documents:     %d chunks\n", status.DocumentCount)
	if status.ChatModel != nil {
		fmt.Printf("  Chat model:    %s (%s)\n", status.ChatModel.Model, status.ChatModel.BaseURL)
	}
	fmt.Printf("  Embeddings:    %s (%s)\n", status.VectorStore.EmbeddingModel, status.VectorStore.EmbeddingURL)
	fmt.Printf("  Index:         %s at %s\n", status.VectorStore.Backend, status.VectorStore.Location)
	fmt.Printf("  Formats:       %s\n", strings.Join(status.SupportedFormats, ", "))

	if h := status.Health; h != nil {
		if h.ProbeOK {
			color.Green("  ✓ Embedding probe succeeded")
		} else {
			color.Red("  ✗ Embedding probe failed: %s", h.LastError)
		}
	}

	st := system.DocumentStats()
	color.Cyan("\nDocuments")
	fmt.Printf("  Chunks:        %d\n", st.Count)
	fmt.Printf("  Characters:    %d\n", st.TotalChars)
	fmt.Printf("  Average chunk: %d\n", st.AvgChunkSize)

	if !ok {
		color.Red("\n✗ %s", msg)
		color.Cyan("\nTroubleshooting")
		for _, issue := range system.Troubleshooting(ctx).CommonIssues {
			color.Yellow("  %s", issue.Issue)
			for _, s := range issue.Solutions {
				fmt.Printf("    - %s\n", s)
			}
		}
		return errors.New(msg)
	}
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	system, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close()

	ok, msg := system.Clear(ctx)
	if !ok {
		color.Red("✗ %s", msg)
		return errors.New(msg)
	}
	color.Green("✓ %s", msg)
	return nil
}

// runCheck mirrors what initialization needs, one line per check, so a
// first-time user can see everything that is missing at once.
func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var failed []string

	section := func(name string) { color.Yellow("\n--- %s ---", name) }

	section("Configuration")
	if configErr != nil {
		color.Red("✗ %v", configErr)
		if errors.Is(configErr, config.ErrMissingAPIKey) {
			color.Cyan("  Get your key from: https://console.groq.com")
			color.Cyan("  Set: export GROQ_API_KEY=your_key_here")
		}
		failed = append(failed, "Configuration")
	} else {
		color.Green("✓ GROQ_API_KEY configured")
		color.Green("✓ Chat model: %s", appConfig.Chat.Model)
	}

	section("Chat API")
	if configErr != nil {
		color.Yellow("- skipped until the configuration is fixed")
		failed = append(failed, "Chat API")
	} else if client, err := llm.NewChatClient(appConfig.Chat, llm.WithChatLogger(logger)); err != nil {
		color.Red("✗ %v", err)
		failed = append(failed, "Chat API")
	} else if ok, msg := client.TestConnection(ctx); !ok {
		color.Red("✗ %s", msg)
		failed = append(failed, "Chat API")
	} else {
		color.Green("✓ %s", msg)
	}

	section("Ollama")
	models, err := llm.OllamaModels(ctx, appConfig.Embedding.BaseURL)
	switch {
	case err != nil:
		color.Red("✗ %v", err)
		color.Cyan("  Start with: ollama serve")
		failed = append(failed, "Ollama")
	case !llm.HasModel(models, appConfig.Embedding.Model):
		color.Green("✓ Ollama server is running")
		color.Red("✗ Model '%s' not found", appConfig.Embedding.Model)
		color.Cyan("  Install with: ollama pull %s", appConfig.Embedding.Model)
		failed = append(failed, "Ollama")
	default:
		color.Green("✓ Ollama server is running")
		color.Green("✓ Model '%s' is available", appConfig.Embedding.Model)
	}

	section("Index")
	switch appConfig.Index.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(appConfig.Index.Dir, 0o755); err != nil {
			color.Red("✗ %v", err)
			failed = append(failed, "Index")
		} else {
			color.Green("✓ %s", appConfig.Index.Dir)
		}
	case config.BackendPgvector:
		color.Green("✓ pgvector table %s (connection verified on startup)", appConfig.Index.TableName)
	default:
		color.Green("✓ %s", appConfig.Index.Backend)
	}

	color.Cyan("\n%s", strings.Repeat("=", 40))
	if len(failed) > 0 {
		color.New(color.FgRed, color.Bold).Println("✗ HEALTH CHECK FAILED")
		color.Red("Failed checks: %s", strings.Join(failed, ", "))
		color.Yellow("\nPlease fix the issues above before running ragbot.")
		return fmt.Errorf("%d checks failed", len(failed))
	}
	color.New(color.FgGreen, color.Bold).Println("✓ ALL CHECKS PASSED")
	return nil
}
