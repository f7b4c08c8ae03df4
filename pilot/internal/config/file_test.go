package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.Mode != ModeHeadful || cfg.Rewrite.Route != RouteLocal {
		t.Errorf("mode=%q route=%q", cfg.Browser.Mode, cfg.Rewrite.Route)
	}
	if cfg.RescanInterval != 2*time.Second || cfg.SettingsPoll != time.Second {
		t.Errorf("rescan=%v poll=%v", cfg.RescanInterval, cfg.SettingsPoll)
	}
	if cfg.Settings != "data/settings.db" || cfg.Browser.UserDataDir != "data/chrome" {
		t.Errorf("paths: %q %q", cfg.Settings, cfg.Browser.UserDataDir)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	yaml := `
browser:
  mode: headless
  remote: ws://127.0.0.1:9222/devtools/browser/abc
  block_resources: [media, fonts]
settings_db: /var/lib/proseai/settings.db
profiles_file: profiles.yaml
rescan_interval: 5s
rewrite:
  route: http
  endpoint: https://rewrite.example.com
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.Mode != ModeHeadless || cfg.Browser.XvfbDisplay != "" {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if len(cfg.Browser.BlockResources) != 2 || cfg.RescanInterval != 5*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Rewrite.Route != RouteHTTP || cfg.Rewrite.Endpoint != "https://rewrite.example.com" {
		t.Errorf("rewrite = %+v", cfg.Rewrite)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{
		"browser:\n  mode: invisible\n",
		"rewrite:\n  route: carrier-pigeon\n",
		"browser: [",
	} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q) accepted", in)
		}
	}
}
