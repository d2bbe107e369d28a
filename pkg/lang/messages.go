package lang

import "fmt"

// MessageKey names an entry in the localized message catalog.
type MessageKey string

const (
	UploadDocs       MessageKey = "upload_docs"
	ProcessDocs      MessageKey = "process_docs"
	ClearAll         MessageKey = "clear_all"
	Thinking         MessageKey = "thinking"
	Sources          MessageKey = "sources"
	NoDocsError      MessageKey = "no_docs_error"
	DetectedLanguage MessageKey = "detected_language"
	NotReady         MessageKey = "not_ready"
)

var catalog = map[MessageKey]map[Language]string{
	UploadDocs: {
		Hindi:   "दस्तावेज़ अपलोड करें",
		English: "Upload Documents",
	},
	ProcessDocs: {
		Hindi:   "दस्तावेज़ प्रोसेस करें",
		English: "Process Documents",
	},
	ClearAll: {
		Hindi:   "सब साफ़ करें",
		English: "Clear All",
	},
	Thinking: {
		Hindi:   "सोच रहा हूँ...",
		English: "Thinking...",
	},
	Sources: {
		Hindi:   "स्रोत",
		English: "Sources",
	},
	NoDocsError: {
		Hindi:   "कृपया पहले दस्तावेज़ अपलोड करके प्रोसेस करें!",
		English: "Please upload and process documents first!",
	},
	DetectedLanguage: {
		Hindi:   "पहचानी गई भाषा",
		English: "Detected Language",
	},
	NotReady: {
		Hindi:   "सिस्टम तैयार नहीं है!",
		English: "System not initialized!",
	},
}

// Message returns the catalog entry for key in language l, falling back to
// English and then to the key itself.
func Message(key MessageKey, l Language) string {
	entry, ok := catalog[key]
	if !ok {
		return string(key)
	}
	if s, ok := entry[l]; ok {
		return s
	}
	return entry[English]
}

// Catalog returns every message in language l, keyed by message key. Clients
// use it to label their controls.
func Catalog(l Language) map[MessageKey]string {
	out := make(map[MessageKey]string, len(catalog))
	for key := range catalog {
		out[key] = Message(key, l)
	}
	return out
}

var systemPrompts = map[Language]string{
	Hindi: `आप एक सहायक AI असिस्टेंट हैं। आपको हमेशा हिंदी में जवाब देना है।
यदि context दिया गया है तो उसके आधार पर जवाब दें। अगर आपको context में जवाब नहीं मिलता तो कहें कि "मुझे इस बारे में जानकारी नहीं है।"
स्पष्ट, संक्षिप्त और सही हिंदी में उत्तर दें।`,
	English: `You are a helpful AI assistant. Always respond in English only.
If context is provided, base your answer on that context. If you don't know the answer from the context, say "I don't have information about this."
Provide clear, concise answers in proper English.`,
}

// SystemPrompt returns the model instruction for language l.
func SystemPrompt(l Language) string {
	if p, ok := systemPrompts[l]; ok {
		return p
	}
	return systemPrompts[English]
}

// APIError formats a failure from the language model backend.
func APIError(err error, l Language) string {
	if l == Hindi {
		return fmt.Sprintf("API त्रुटि: %v", err)
	}
	return fmt.Sprintf("API Error: %v", err)
}

// ProcessingError formats a document processing or indexing failure.
func ProcessingError(err error, l Language) string {
	if l == Hindi {
		return fmt.Sprintf("प्रसंस्करण त्रुटि: %v", err)
	}
	return fmt.Sprintf("Processing Error: %v", err)
}

// ConnectionError formats a timeout or refused connection.
func ConnectionError(err error, l Language) string {
	if l == Hindi {
		return fmt.Sprintf("कनेक्शन त्रुटि: %v", err)
	}
	return fmt.Sprintf("Connection Error: %v", err)
}
