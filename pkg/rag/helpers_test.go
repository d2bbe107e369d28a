package rag_test

import "github.com/xhad/ragbot/internal/models"

func sampleChunk(content string) []models.Chunk {
	return []models.Chunk{{ID: "persisted-0", Source: "old.txt", Content: content}}
}
