package models

// Document is the raw text of a loaded file (or one page of it for PDFs).
// It only lives between loading and splitting.
type Document struct {
	Source  string
	Page    int
	Content string
}

// Chunk is the unit stored in and retrieved from the vector index.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// QueryResult is an answer together with the chunks that were used as context.
type QueryResult struct {
	Answer   string  `json:"answer"`
	Sources  []Chunk `json:"sources"`
	Language string  `json:"language"`
}
