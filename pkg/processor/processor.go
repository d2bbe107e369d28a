package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/pkg/config"
)

type Processor struct {
	splitter *SlidingWindow
	logger   *slog.Logger
}

type Option func(*Processor)

// WithLogger sets the logger used for per-file load results.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewWithConfig builds a processor from the chunking settings.
func NewWithConfig(cfg config.ProcessorConfig, opts ...Option) (*Processor, error) {
	splitter, err := NewSlidingWindow(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		splitter: splitter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Load reads every path with the loader its extension selects. A file that
// cannot be loaded becomes an entry in the returned error list and the batch
// continues.
func (p *Processor) Load(ctx context.Context, paths []string) ([]models.Document, []string) {
	var docs []models.Document
	var loadErrors []string

	for _, path := range paths {
		loader := LoaderFor(path)
		if loader == LoaderNone {
			loadErrors = append(loadErrors, fmt.Sprintf("Unsupported file type: %s", path))
			p.logger.Warn("unsupported file type", "path", path)
			continue
		}

		loaded, err := loader.Load(ctx, path)
		if err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("Error loading %s: %v", path, err))
			p.logger.Warn("failed to load document", "path", path, "loader", loader.String(), "error", err)
			continue
		}

		p.logger.Debug("loaded document", "path", path, "loader", loader.String(), "parts", len(loaded))
		docs = append(docs, loaded...)
	}

	return docs, loadErrors
}

// Split cuts documents into overlapping chunks carrying their source.
// Blank documents produce nothing.
func (p *Processor) Split(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk

	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}

		// SplitText only fails for invalid splitter settings, which the constructor rejects.
		pieces, _ := p.splitter.SplitText(doc.Content)
		for i, piece := range pieces {
			chunks = append(chunks, models.Chunk{
				ID:      uuid.NewString(),
				Source:  doc.Source,
				Page:    doc.Page,
				Index:   i,
				Content: piece,
			})
		}
	}

	if len(docs) > 0 {
		p.logger.Debug("split documents", "documents", len(docs), "chunks", len(chunks))
	}
	return chunks
}

// Process loads and splits paths. It fails only when nothing could be
// loaded or nothing was produced; load errors are reported in the message.
func (p *Processor) Process(ctx context.Context, paths []string) (bool, string, []models.Chunk) {
	docs, loadErrors := p.Load(ctx, paths)

	if len(docs) == 0 {
		msg := "No documents loaded successfully"
		if len(loadErrors) > 0 {
			msg += ": " + strings.Join(loadErrors, "; ")
		}
		return false, msg, nil
	}

	chunks := p.Split(docs)
	if len(chunks) == 0 {
		return false, "No document chunks created", nil
	}

	msg := fmt.Sprintf("Successfully processed %d document chunks", len(chunks))
	if len(loadErrors) > 0 {
		msg += fmt.Sprintf(" (with %d errors: %s)", len(loadErrors), strings.Join(loadErrors, "; "))
	}
	return true, msg, chunks
}

// Validate reports whether filename has a supported extension.
func (p *Processor) Validate(filename string) bool {
	return LoaderFor(filename) != LoaderNone
}

type Stats struct {
	Count        int `json:"total_chunks"`
	TotalChars   int `json:"total_characters"`
	AvgChunkSize int `json:"average_chunk_size"`
}

// ComputeStats aggregates chunk sizes in code points.
func ComputeStats(chunks []models.Chunk) Stats {
	if len(chunks) == 0 {
		return Stats{}
	}

	total := 0
	for _, c := range chunks {
		total += utf8.RuneCountInString(c.Content)
	}
	return Stats{
		Count:        len(chunks),
		TotalChars:   total,
		AvgChunkSize: total / len(chunks),
	}
}
