package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/proseai/rewrite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	listJSON, profilesFile = false, ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--settings-db", filepath.Join(dir, "settings.db"),
		"--metrics-db", filepath.Join(dir, "metrics.db"),
		"--log-level", "error",
	}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTonesJSON(t *testing.T) {
	out, err := run(t, "tones", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var tones []rewrite.Tone
	if err := json.Unmarshal([]byte(out), &tones); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(tones) != 6 || tones[0].ID != "professional" {
		t.Errorf("tones = %+v", tones)
	}
	if strings.Contains(out, "system") {
		t.Error("prompt text leaked into the tone listing")
	}
}

func TestSettingsSetGet(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "settings.db")
	exec := func(args ...string) string {
		t.Helper()
		listJSON, profilesFile = false, ""
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--settings-db", db, "--log-level", "error"}, args...))
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	exec("settings", "set", "selectedApps", "whatsapp,linkedin")
	exec("settings", "set", "onboardingCompleted", "true")
	if got := exec("settings", "get", "selectedApps"); got != "whatsapp,linkedin\n" {
		t.Errorf("selectedApps = %q", got)
	}
	all := exec("settings", "get")
	for _, want := range []string{"onboardingCompleted=true", "lastUsedTone=professional", "apiEndpoint=http://localhost:3000"} {
		if !strings.Contains(all, want) {
			t.Errorf("settings get missing %q:\n%s", want, all)
		}
	}
	plat := exec("platforms")
	if !strings.Contains(plat, "telegram") || strings.Contains(plat, "onboarding not completed") {
		t.Errorf("platforms:\n%s", plat)
	}
}

func TestSettingsSet_Rejects(t *testing.T) {
	if _, err := run(t, "settings", "set", "selectedApps", "myspace"); err == nil {
		t.Error("unknown platform accepted")
	}
	if _, err := run(t, "settings", "set", "theme", "dark"); err == nil {
		t.Error("unknown key accepted")
	}
	if _, err := run(t, "settings", "get", "theme"); err == nil {
		t.Error("unknown key read")
	}
}

func TestRewrite_ValidationBeforeProvider(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CLAUDE_API_KEY", "")
	_, err := run(t, "rewrite", "--tone", "casual", "Привет, как дела сегодня")
	if err == nil || err.Error() != rewrite.MsgNotEnglish {
		t.Errorf("err = %v, want %q", err, rewrite.MsgNotEnglish)
	}
	_, err = run(t, "rewrite", "--tone", "casual", "please send the report")
	if err == nil || !strings.HasPrefix(err.Error(), "No API key found") {
		t.Errorf("err = %v, want missing key", err)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	if !newLogger("debug").Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	if newLogger("warn").Enabled(t.Context(), slog.LevelInfo) {
		t.Error("info enabled at warn")
	}
}
