package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/ragbot/pkg/processor"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Index PDF and text documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	system, err := newSystem(ctx)
	if err != nil {
		return err
	}
	defer system.Close()

	var failed int
	bar := getProgressBar(len(args), "📄 Indexing documents...")
	results := make([]string, 0, len(args))

	for _, path := range args {
		name := filepath.Base(path)
		size := "?"
		if info, err := os.Stat(path); err == nil {
			size = processor.FormatFileSize(info.Size())
		}

		if !system.ValidateFile(name) {
			failed++
			results = append(results, color.RedString("✗ %s: unsupported file type (supported: %v)", name, system.SupportedFormats()))
			bar.Add(1)
			continue
		}

		ok, msg := system.Ingest(ctx, []string{path})
		if ok {
			results = append(results, color.GreenString("✓ %s (%s): %s", name, size, msg))
		} else {
			failed++
			results = append(results, color.RedString("✗ %s (%s): %s", name, size, msg))
		}
		bar.Add(1)
	}
	bar.Finish()

	fmt.Println()
	for _, r := range results {
		fmt.Println(r)
	}

	st := system.DocumentStats()
	color.Blue("\nIndex now holds %d chunks (%d characters, %d per chunk on average)",
		st.Count, st.TotalChars, st.AvgChunkSize)

	if failed == len(args) {
		return errors.New("no documents were indexed")
	}
	return nil
}
