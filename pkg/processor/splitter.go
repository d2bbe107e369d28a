package processor

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

var _ textsplitter.TextSplitter = (*SlidingWindow)(nil)

// SlidingWindow splits text into windows of at most Size code points where
// each window starts Size-Overlap code points after the previous one.
// Windows never cut through a multi-byte character.
type SlidingWindow struct {
	Size    int
	Overlap int
}

// NewSlidingWindow validates 0 <= overlap < size.
func NewSlidingWindow(size, overlap int) (*SlidingWindow, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &SlidingWindow{Size: size, Overlap: overlap}, nil
}

// SplitText implements textsplitter.TextSplitter. Empty text yields no chunks.
func (s *SlidingWindow) SplitText(text string) ([]string, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := s.Size - s.Overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + s.Size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
