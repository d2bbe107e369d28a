// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/tmc/langchaingo/embeddings"
)

var _ embeddings.Embedder = (*BagOfWords)(nil)

// BagOfWords is a deterministic embedder: each lowercased word is hashed into
// one of Dim buckets and the result is L2-normalized. Texts sharing a rare
// word therefore score high against each other.
type BagOfWords struct {
	Dim int

	mu    sync.Mutex
	err   error
	calls atomic.Int64
}

func NewBagOfWords(dim int) *BagOfWords {
	return &BagOfWords{Dim: dim}
}

// Fail makes every following call return err. A nil err restores success.
func (b *BagOfWords) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Calls reports how many embedding requests were made.
func (b *BagOfWords) Calls() int64 { return b.calls.Load() }

func (b *BagOfWords) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	b.calls.Add(1)
	if err := b.failure(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = b.embed(t)
	}
	return out, nil
}

func (b *BagOfWords) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	b.calls.Add(1)
	if err := b.failure(); err != nil {
		return nil, err
	}
	return b.embed(text), nil
}

func (b *BagOfWords) failure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *BagOfWords) embed(text string) []float32 {
	vec := make([]float32, b.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(b.Dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Blank text still needs a usable vector.
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
