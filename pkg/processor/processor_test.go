package processor_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/ragbot/internal/logging"
	"github.com/xhad/ragbot/internal/models"
	"github.com/xhad/ragbot/pkg/config"
	"github.com/xhad/ragbot/pkg/processor"
)

func newProcessor(t *testing.T, size, overlap int) *processor.Processor {
	t.Helper()
	p, err := processor.NewWithConfig(config.ProcessorConfig{
		ChunkSize:    size,
		ChunkOverlap: overlap,
	}, processor.WithLogger(logging.Discard()))
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewWithConfigRejectsBadOverlap(t *testing.T) {
	_, err := processor.NewWithConfig(config.ProcessorConfig{ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)

	_, err = processor.NewWithConfig(config.ProcessorConfig{ChunkSize: 10, ChunkOverlap: -1})
	assert.Error(t, err)

	_, err = processor.NewWithConfig(config.ProcessorConfig{ChunkSize: 0})
	assert.Error(t, err)
}

func TestSlidingWindowReconstructs(t *testing.T) {
	texts := map[string]string{
		"latin":      strings.Repeat("The quick brown fox jumps over the lazy dog. ", 7),
		"devanagari": strings.Repeat("यह दस्तावेज़ खोज का परीक्षण है। ", 9),
		"short":      "tiny",
		"exact":      "abcdefghij",
	}
	sizes := []struct{ size, overlap int }{
		{10, 0}, {10, 3}, {25, 24}, {1, 0}, {50, 10},
	}

	for name, text := range texts {
		for _, sz := range sizes {
			w, err := processor.NewSlidingWindow(sz.size, sz.overlap)
			require.NoError(t, err)

			chunks, err := w.SplitText(text)
			require.NoError(t, err)
			require.NotEmpty(t, chunks, name)

			var rebuilt strings.Builder
			for i, c := range chunks {
				assert.True(t, utf8.ValidString(c), "%s: chunk %d split a character", name, i)
				n := utf8.RuneCountInString(c)
				assert.LessOrEqual(t, n, sz.size, "%s: chunk %d too long", name, i)

				if i == 0 {
					rebuilt.WriteString(c)
					continue
				}
				prev := []rune(chunks[i-1])
				cur := []rune(c)
				// adjacent chunks share exactly the overlap
				assert.Equal(t, string(prev[len(prev)-sz.overlap:]), string(cur[:sz.overlap]),
					"%s size=%d overlap=%d chunk=%d", name, sz.size, sz.overlap, i)
				rebuilt.WriteString(string(cur[sz.overlap:]))
			}
			assert.Equal(t, text, rebuilt.String(), "%s size=%d overlap=%d", name, sz.size, sz.overlap)
		}
	}
}

func TestSlidingWindowEmpty(t *testing.T) {
	w, err := processor.NewSlidingWindow(10, 2)
	require.NoError(t, err)

	chunks, err := w.SplitText("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitEmptyInput(t *testing.T) {
	p := newProcessor(t, 100, 10)
	assert.Empty(t, p.Split(nil))
	assert.Empty(t, p.Split([]models.Document{{Source: "blank.txt", Content: "  \n\t"}}))
}

func TestSplitCarriesProvenance(t *testing.T) {
	p := newProcessor(t, 10, 2)
	chunks := p.Split([]models.Document{{Source: "a.pdf", Page: 3, Content: strings.Repeat("x", 25)}})

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, "a.pdf", c.Source)
		assert.Equal(t, 3, c.Page)
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.ID)
	}
}

func TestProcessor_Process(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "alpha.txt", "Alpha document about monsoon rainfall in Kerala.")
	b := writeFile(t, dir, "beta.TXT", "बीटा दस्तावेज़ हिमालय के ग्लेशियरों के बारे में है।")
	c := writeFile(t, dir, "gamma.docx", "binary-ish")

	p := newProcessor(t, 1000, 200)
	ok, msg, chunks := p.Process(context.Background(), []string{a, b, c})

	require.True(t, ok, msg)
	assert.Contains(t, msg, "Successfully processed 2 document chunks")
	assert.Contains(t, msg, "with 1 errors")
	assert.Contains(t, msg, "Unsupported file type")

	sources := map[string]bool{}
	for _, ch := range chunks {
		sources[ch.Source] = true
	}
	assert.Len(t, sources, 2)
	assert.True(t, sources[a])
	assert.True(t, sources[b])
}

func TestProcessor_ProcessAllFail(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "one.docx", "x"),
		writeFile(t, dir, "two.md", "y"),
		filepath.Join(dir, "missing.txt"),
	}

	p := newProcessor(t, 1000, 200)
	ok, msg, chunks := p.Process(context.Background(), paths)

	assert.False(t, ok)
	assert.Contains(t, msg, "No documents loaded successfully")
	assert.Empty(t, chunks)
}

func TestProcessor_ProcessBlankFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.txt", "   ")

	ok, msg, _ := newProcessor(t, 100, 10).Process(context.Background(), []string{path})
	assert.False(t, ok)
	assert.Equal(t, "No document chunks created", msg)
}

func TestLoadReportsBadFiles(t *testing.T) {
	dir := t.TempDir()
	badUTF8 := filepath.Join(dir, "latin1.txt")
	require.NoError(t, os.WriteFile(badUTF8, []byte{0x66, 0x6f, 0xff, 0xfe, 0x6f}, 0644))
	corruptPDF := writeFile(t, dir, "broken.pdf", "this is not a pdf")
	good := writeFile(t, dir, "good.txt", "\ufeffhello")

	p := newProcessor(t, 100, 10)
	docs, errs := p.Load(context.Background(), []string{badUTF8, corruptPDF, good})

	require.Len(t, docs, 1)
	assert.Equal(t, "hello", docs[0].Content)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "latin1.txt")
	assert.Contains(t, errs[1], "broken.pdf")
}

func TestLoaderFor(t *testing.T) {
	assert.Equal(t, processor.LoaderPDF, processor.LoaderFor("report.PDF"))
	assert.Equal(t, processor.LoaderText, processor.LoaderFor("/tmp/notes.txt"))
	assert.Equal(t, processor.LoaderNone, processor.LoaderFor("slides.pptx"))
	assert.Equal(t, processor.LoaderNone, processor.LoaderFor("README"))
}

func TestValidate(t *testing.T) {
	p := newProcessor(t, 100, 10)
	assert.True(t, p.Validate("a.pdf"))
	assert.True(t, p.Validate("b.Txt"))
	assert.False(t, p.Validate("c.doc"))
	assert.Equal(t, []string{".pdf", ".txt"}, processor.SupportedFormats())
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, processor.Stats{}, processor.ComputeStats(nil))

	stats := processor.ComputeStats([]models.Chunk{
		{Content: "abcd"},
		{Content: "नमस्ते"},
		{Content: "xy"},
	})
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 4+6+2, stats.TotalChars)
	assert.Equal(t, 4, stats.AvgChunkSize)
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "0 B", processor.FormatFileSize(0))
	assert.Equal(t, "512.0 B", processor.FormatFileSize(512))
	assert.Equal(t, "1.5 KB", processor.FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", processor.FormatFileSize(2*1024*1024))
	assert.Equal(t, "3.0 GB", processor.FormatFileSize(3*1024*1024*1024))
}
