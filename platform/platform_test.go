package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_Resolve(t *testing.T) {
	r := Default()
	tests := []struct {
		origin string
		want   string
		ok     bool
	}{
		{"https://web.whatsapp.com", WhatsApp, true},
		{"https://web.whatsapp.com/send?phone=1", WhatsApp, true},
		{"web.telegram.org", Telegram, true},
		{"https://web.telegram.org/k/#@durov", Telegram, true},
		{"https://www.linkedin.com/messaging/thread/1/", LinkedIn, true},
		{"https://linkedin.com", LinkedIn, true},
		{"https://WWW.LinkedIn.com:443", LinkedIn, true},
		{"https://example.com", "", false},
		{"https://notlinkedin.com", "", false},
		{"https://whatsapp.com", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		p, ok := r.Resolve(tt.origin)
		if ok != tt.ok || p.ID != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.origin, p.ID, ok, tt.want, tt.ok)
		}
	}
}

func TestDefault_Selectors(t *testing.T) {
	r := Default()
	wa, ok := r.Get(WhatsApp)
	if !ok {
		t.Fatal("whatsapp missing")
	}
	locs := wa.Locators()
	if len(locs) != 3 {
		t.Fatalf("whatsapp locators = %d, want 3", len(locs))
	}
	if locs[0].Selector != `div[contenteditable="true"][data-tab="10"]` {
		t.Errorf("primary = %q", locs[0].Selector)
	}
	if !locs[2].AnyEditable {
		t.Error("last whatsapp fallback should scan any editable")
	}

	tg, _ := r.Get(Telegram)
	if tg.Fallbacks[0].Selector != `div.input-message-container textarea` {
		t.Errorf("telegram fallback = %q", tg.Fallbacks[0].Selector)
	}
	if got := r.IDs(); len(got) != 3 || got[0] != LinkedIn {
		t.Errorf("IDs = %v", got)
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	p := Profile{ID: "x", Primary: Locator{Selector: "textarea"}, Origins: []string{"x.example"}}
	if _, err := NewRegistry(p, p); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	bad := []Profile{
		{ID: "", Primary: Locator{Selector: "a"}, Origins: []string{"a"}},
		{ID: "nosel", Origins: []string{"a"}},
		{ID: "noorigin", Primary: Locator{Selector: "a"}},
		{ID: "badfb", Primary: Locator{Selector: "a"}, Fallbacks: []Locator{{}}, Origins: []string{"a"}},
	}
	for _, p := range bad {
		if _, err := NewRegistry(p); err == nil {
			t.Errorf("NewRegistry(%+v) = nil error", p)
		}
	}
}

func TestRegistry_Immutable(t *testing.T) {
	origins := []string{"x.example"}
	r, err := NewRegistry(Profile{ID: "x", Primary: Locator{Selector: "textarea"}, Origins: origins})
	if err != nil {
		t.Fatal(err)
	}
	origins[0] = "evil.example"
	if _, ok := r.Resolve("https://x.example"); !ok {
		t.Fatal("registry changed after caller mutated its slice")
	}
}

func TestLoadFile_MergesWithBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	doc := `
profiles:
  - id: telegram
    name: Telegram K
    url: https://web.telegram.org/k/
    primary: {selector: 'div.input-message-input[contenteditable="true"]'}
    origins: [web.telegram.org]
  - id: slack
    name: Slack
    url: https://app.slack.com/
    primary: {selector: 'div.ql-editor[contenteditable="true"]'}
    fallbacks:
      - {selector: 'div[contenteditable="true"]', any_editable: true}
    origins: [app.slack.com]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	all := r.All()
	if len(all) != 4 {
		t.Fatalf("profiles = %d, want 4", len(all))
	}
	if all[1].ID != Telegram || all[1].Name != "Telegram K" {
		t.Fatalf("telegram not replaced in place: %+v", all[1])
	}
	slack, ok := r.Resolve("https://app.slack.com/client/T1")
	if !ok || !slack.Fallbacks[0].AnyEditable {
		t.Fatalf("slack = %+v, %v", slack, ok)
	}
}

func TestParse_WithoutBuiltin(t *testing.T) {
	r, err := Parse([]byte(`
builtin: false
profiles:
  - id: only
    primary: {selector: textarea}
    origins: [only.example]
`))
	if err != nil {
		t.Fatal(err)
	}
	if ids := r.IDs(); len(ids) != 1 || ids[0] != "only" {
		t.Fatalf("IDs = %v", ids)
	}
}

func TestParse_DuplicateInFile(t *testing.T) {
	_, err := Parse([]byte(`
profiles:
  - {id: dup, primary: {selector: a}, origins: [a.example]}
  - {id: dup, primary: {selector: b}, origins: [b.example]}
`))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}
