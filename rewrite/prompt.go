package rewrite

// Prompt is the system and user message pair sent to a provider.
type Prompt struct {
	System string
	User   string
}

const outputRule = "Provide ONLY the rewritten text without any explanations, quotes, or additional commentary."

// BuildPrompt builds the prompt for text in the given tone. Unknown tones
// fall back to DefaultTone.
func BuildPrompt(text, toneID string) Prompt {
	t, ok := LookupTone(toneID)
	if !ok {
		t, _ = LookupTone(DefaultTone)
	}
	return Prompt{
		System: t.System,
		User:   t.Instruction + "\n\n\"" + text + "\"\n\n" + outputRule,
	}
}

// Combined joins system and user into one message for providers that take
// a single user turn.
func (p Prompt) Combined() string {
	return p.System + "\n\n" + p.User
}
