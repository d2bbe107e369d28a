package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/ragbot/internal/models"
)

// ErrUnsupportedFileType is reported for files whose extension has no loader.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Loader is one of the closed set of document loader variants.
type Loader int

const (
	LoaderNone Loader = iota
	LoaderPDF
	LoaderText
)

var loadersByExt = map[string]Loader{
	".pdf": LoaderPDF,
	".txt": LoaderText,
}

// SupportedFormats lists the accepted file extensions.
func SupportedFormats() []string {
	return []string{".pdf", ".txt"}
}

// LoaderFor selects a loader from the file extension, case-insensitively.
func LoaderFor(path string) Loader {
	return loadersByExt[strings.ToLower(filepath.Ext(path))]
}

func (l Loader) String() string {
	switch l {
	case LoaderPDF:
		return "pdf"
	case LoaderText:
		return "text"
	default:
		return "none"
	}
}

// Load reads path with this loader variant.
func (l Loader) Load(ctx context.Context, path string) ([]models.Document, error) {
	switch l {
	case LoaderPDF:
		return loadPDF(ctx, path)
	case LoaderText:
		return loadText(ctx, path)
	default:
		return nil, ErrUnsupportedFileType
	}
}

func loadPDF(ctx context.Context, path string) (docs []models.Document, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// The PDF parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	pages, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, err
	}

	docs = make([]models.Document, 0, len(pages))
	for i, p := range pages {
		docs = append(docs, models.Document{
			Source:  path,
			Page:    pageNumber(p, i+1),
			Content: p.PageContent,
		})
	}
	return docs, nil
}

func loadText(ctx context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	loaded, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(loaded))
	for _, d := range loaded {
		if !utf8.ValidString(d.PageContent) {
			return nil, errors.New("file is not valid UTF-8")
		}
		docs = append(docs, models.Document{
			Source:  path,
			Content: strings.TrimPrefix(d.PageContent, "\ufeff"),
		})
	}
	return docs, nil
}

func pageNumber(d schema.Document, fallback int) int {
	switch v := d.Metadata["page"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
