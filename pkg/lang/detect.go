// Package lang classifies text by script and holds the localized strings
// shown to users of each supported language.
package lang

import "unicode"

// Language identifies which of the two supported scripts a text is written in.
type Language string

const (
	// English is the primary (Latin) script and the default.
	English Language = "english"
	// Hindi is the secondary (Devanagari) script.
	Hindi Language = "hindi"
)

// DefaultThreshold is the Devanagari ratio above which text is treated as Hindi.
const DefaultThreshold = 0.3

const (
	devanagariFirst = '\u0900'
	devanagariLast  = '\u097F'
)

// Detect counts Devanagari code points against all letters in text and
// returns Hindi when the ratio is strictly greater than threshold.
// Text without letters is English. Detect never fails.
//
// Combining vowel signs sit inside the Devanagari block but are not letters,
// so the ratio can exceed 1 for Hindi text.
func Detect(text string, threshold float64) Language {
	var secondary, letters int
	for _, r := range text {
		if r >= devanagariFirst && r <= devanagariLast {
			secondary++
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}

	if letters == 0 {
		return English
	}

	if float64(secondary)/float64(letters) > threshold {
		return Hindi
	}
	return English
}

// Parse maps a language tag to a Language, defaulting to English.
func Parse(s string) Language {
	if Language(s) == Hindi {
		return Hindi
	}
	return English
}
