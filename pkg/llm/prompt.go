package llm

import (
	"fmt"

	"github.com/xhad/ragbot/pkg/lang"
)

// BuildPrompt renders the single user message sent to the model. The labels
// are written in the script of the target language.
func BuildPrompt(question, context string, language lang.Language) string {
	instruction := lang.SystemPrompt(language)

	if language == lang.Hindi {
		if context != "" {
			return fmt.Sprintf("%s\n\nसंदर्भ (Context): %s\n\nप्रश्न: %s\n\nउत्तर (केवल हिंदी में):", instruction, context, question)
		}
		return fmt.Sprintf("%s\n\nप्रश्न: %s\n\nउत्तर (केवल हिंदी में):", instruction, question)
	}

	if context != "" {
		return fmt.Sprintf("%s\n\nContext: %s\n\nQuestion: %s\n\nAnswer (in English only):", instruction, context, question)
	}
	return fmt.Sprintf("%s\n\nQuestion: %s\n\nAnswer (in English only):", instruction, question)
}
