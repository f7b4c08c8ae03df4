package rewrite

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits. Lengths count runes of the trimmed text.
const (
	MinTextLength   = 1
	MaxTextLength   = 5000
	MinEnglishRatio = 0.7
)

// Validation codes.
const (
	CodeNoText      = "no_text"
	CodeTooShort    = "too_short"
	CodeTooLong     = "too_long"
	CodeNotEnglish  = "not_english"
	CodeInvalidTone = "invalid_tone"
)

// User-facing messages.
const (
	MsgNoText      = "Please enter some text to rewrite"
	MsgTooShort    = "Text is too short to rewrite"
	MsgTooLong     = "Text is too long (max 5000 characters)"
	MsgNotEnglish  = "Text must be in English"
	MsgInvalidTone = "Invalid tone selected"

	MsgInvalidInput = "Invalid input: text is required and must be a non-empty string"
	MsgNoAPIKey     = "No API key found. Please set GEMINI_API_KEY, OPENAI_API_KEY, or CLAUDE_API_KEY in your environment variables."
	MsgUnknown      = "An unexpected error occurred"
)

// ValidationError is a rejected rewrite input. Message is shown to the user
// verbatim; such input never reaches a provider.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ValidateInput applies the rewrite API checks in order: presence, trimmed
// length, English ratio, tone.
func ValidateInput(text, tone string) error {
	if text == "" {
		return &ValidationError{Code: CodeNoText, Message: MsgNoText}
	}
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < MinTextLength {
		return &ValidationError{Code: CodeTooShort, Message: MsgTooShort}
	}
	if n > MaxTextLength {
		return &ValidationError{Code: CodeTooLong, Message: MsgTooLong}
	}
	if !IsEnglishText(text) {
		return &ValidationError{Code: CodeNotEnglish, Message: MsgNotEnglish}
	}
	if !IsValidTone(tone) {
		return &ValidationError{Code: CodeInvalidTone, Message: MsgInvalidTone}
	}
	return nil
}

// IsEnglishText reports whether ASCII letters make up at least
// MinEnglishRatio of the non-whitespace characters. Text without any ASCII
// letter is never English.
func IsEnglishText(text string) bool {
	var letters, visible int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(letters)/float64(visible) >= MinEnglishRatio
}
