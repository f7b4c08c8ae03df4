package platform

// Built-in profile IDs.
const (
	WhatsApp = "whatsapp"
	Telegram = "telegram"
	LinkedIn = "linkedin"
)

// Builtin returns the built-in profiles.
func Builtin() []Profile {
	return []Profile{
		{
			ID:      WhatsApp,
			Name:    "WhatsApp",
			URL:     "https://web.whatsapp.com/",
			Primary: Locator{Selector: `div[contenteditable="true"][data-tab="10"]`},
			Fallbacks: []Locator{
				{Selector: `div[contenteditable="true"][role="textbox"]`},
				{Selector: `div[contenteditable="true"]`, AnyEditable: true},
			},
			Origins: []string{"web.whatsapp.com"},
		},
		{
			ID:      Telegram,
			Name:    "Telegram",
			URL:     "https://web.telegram.org/",
			Primary: Locator{Selector: `div[contenteditable="true"].input-message-input`},
			Fallbacks: []Locator{
				{Selector: `div.input-message-container textarea`},
			},
			Origins: []string{"web.telegram.org"},
		},
		{
			ID:      LinkedIn,
			Name:    "LinkedIn",
			URL:     "https://www.linkedin.com/messaging/",
			Primary: Locator{Selector: `div[contenteditable="true"][role="textbox"]`},
			Fallbacks: []Locator{
				{Selector: `.msg-form__contenteditable`},
			},
			Origins: []string{"linkedin.com"},
		},
	}
}

// Default returns a registry of the built-in profiles.
func Default() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}
