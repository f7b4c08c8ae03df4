package rewrite

// Tone is one entry of the rewrite tone catalogue. Label, Description, Icon
// and Color drive the overlay buttons; System and Instruction drive the
// prompt.
type Tone struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	System      string `json:"-"`
	Instruction string `json:"-"`
}

// DefaultTone is used by prompt building for unknown tone IDs and by the
// settings store before any tone was chosen.
const DefaultTone = "professional"

var tones = []Tone{
	{
		ID:          "professional",
		Label:       "Professional",
		Description: "Formal and business-appropriate",
		Icon:        "💼",
		Color:       "#2563eb",
		System:      "You are a professional writing assistant. Rewrite the given text in a formal, business-appropriate tone. Maintain clarity, use proper grammar, and ensure the message is polished and suitable for professional communication.",
		Instruction: "Rewrite this text in a professional, formal tone suitable for business communication:",
	},
	{
		ID:          "friendly",
		Label:       "Friendly",
		Description: "Warm and approachable",
		Icon:        "😊",
		Color:       "#10b981",
		System:      "You are a friendly writing assistant. Rewrite the given text in a warm, approachable, and friendly tone. Use conversational language while maintaining respect and positivity.",
		Instruction: "Rewrite this text in a friendly, warm, and approachable tone:",
	},
	{
		ID:          "casual",
		Label:       "Casual",
		Description: "Relaxed and informal",
		Icon:        "😎",
		Color:       "#f59e0b",
		System:      "You are a casual writing assistant. Rewrite the given text in a relaxed, informal tone. Use everyday language, contractions, and a laid-back style while keeping the message clear.",
		Instruction: "Rewrite this text in a casual, relaxed, and informal tone:",
	},
	{
		ID:          "comedy",
		Label:       "Comedy",
		Description: "Funny and witty",
		Icon:        "😂",
		Color:       "#ec4899",
		System:      "You are a humorous writing assistant. Rewrite the given text with wit, humor, and playfulness. Add light-hearted jokes or clever wordplay while preserving the core message.",
		Instruction: "Rewrite this text in a funny, witty, and humorous tone:",
	},
	{
		ID:          "polite",
		Label:       "Polite",
		Description: "Courteous and respectful",
		Icon:        "🙏",
		Color:       "#8b5cf6",
		System:      "You are a polite writing assistant. Rewrite the given text with utmost courtesy, respect, and consideration. Use please, thank you, and other polite expressions appropriately.",
		Instruction: "Rewrite this text in a very polite, courteous, and respectful tone:",
	},
	{
		ID:          "confident",
		Label:       "Confident",
		Description: "Assertive and authoritative",
		Icon:        "💪",
		Color:       "#ef4444",
		System:      "You are a confident writing assistant. Rewrite the given text with assertiveness, conviction, and authority. Use strong, decisive language that conveys confidence and leadership.",
		Instruction: "Rewrite this text in a confident, assertive, and authoritative tone:",
	},
}

// Tones returns the catalogue in display order.
func Tones() []Tone { return append([]Tone(nil), tones...) }

// ToneIDs returns the tone IDs in display order.
func ToneIDs() []string {
	ids := make([]string, len(tones))
	for i, t := range tones {
		ids[i] = t.ID
	}
	return ids
}

// LookupTone returns the tone with the given ID.
func LookupTone(id string) (Tone, bool) {
	for _, t := range tones {
		if t.ID == id {
			return t, true
		}
	}
	return Tone{}, false
}

// IsValidTone reports whether id names a catalogue tone.
func IsValidTone(id string) bool {
	_, ok := LookupTone(id)
	return ok
}
