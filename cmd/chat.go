package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/pkg/lang"
)

var chatDocs []string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your documents interactively",
	Long: `Starts an interactive session. Questions written in Devanagari are
answered in Hindi, everything else in English.

Commands inside the session:
  /clear   remove all indexed documents
  /stats   show statistics about indexed chunks
  exit     leave the session`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringSliceVarP(&chatDocs, "docs", "d", nil, "documents to ingest before chatting")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	system, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close()

	if len(chatDocs) > 0 {
		ok, msg := system.Ingest(ctx, chatDocs)
		if !ok {
			color.Red("✗ %s", msg)
		} else {
			color.Green("✓ %s", msg)
		}
	}

	color.Cyan("\nChat with your documents (type 'exit' to quit)")
	if system.Status(ctx).DocumentCount == 0 {
		color.Yellow("No documents indexed yet. Run 'ragbot ingest <files>' or use --docs.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/clear":
			if ok, msg := system.Clear(ctx); ok {
				color.Green("✓ %s", msg)
			} else {
				color.Red("✗ %s", msg)
			}
			continue
		case "/stats":
			st := system.DocumentStats()
			color.Blue("Chunks: %d  Characters: %d  Average chunk: %d", st.Count, st.TotalChars, st.AvgChunkSize)
			continue
		}

		language := lang.Detect(query, appConfig.Language.HindiThreshold)

		var res models.QueryResult
		withSpinner(lang.Message(lang.Thinking, language), func() {
			res = system.Query(ctx, query)
		})

		assistantPrompt("Assistant: %s\n", res.Answer)
		color.HiBlack("%s: %s", lang.Message(lang.DetectedLanguage, language), language)
		printSources(res.Sources, language)
	}

	return scanner.Err()
}

func printSources(sources []models.Chunk, language lang.Language) {
	if len(sources) == 0 {
		return
	}

	color.Yellow("\n%s:", lang.Message(lang.Sources, language))
	for i, c := range sources {
		where := c.Source
		if c.Page > 0 {
			where = fmt.Sprintf("%s (p. %d)", c.Source, c.Page)
		}
		fmt.Printf("  [%d] %s\n      %s\n", i+1, color.HiBlackString(where), snippet(c.Content, 160))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
