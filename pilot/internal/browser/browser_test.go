package browser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestShouldBlock(t *testing.T) {
	block := map[string]bool{"images": true, "media": true}
	cases := map[string]bool{
		"Image":      true,
		"Media":      true,
		"Font":       false,
		"Stylesheet": false,
		"Document":   false,
	}
	for typ, want := range cases {
		if got := shouldBlock(block, typ); got != want {
			t.Errorf("shouldBlock(%q) = %v, want %v", typ, got, want)
		}
	}
}

func TestManager_ClosedRejectsStart(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(t.Context()); err != ErrClosed {
		t.Errorf("Start after Close: %v", err)
	}
	if m.Browser() != nil {
		t.Error("Browser() non-nil before Start")
	}
}

func TestDisplaySocket(t *testing.T) {
	cases := []struct {
		display, want string
		ok            bool
	}{
		{":99", "/tmp/.X11-unix/X99", true},
		{":1.0", "/tmp/.X11-unix/X1", true},
		{"99", "", false},
		{":", "", false},
		{":x1", "", false},
	}
	for _, tc := range cases {
		got, err := displaySocket(tc.display)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("displaySocket(%q) = %q, %v", tc.display, got, err)
		}
	}
}

func TestStartXvfb_ReusesLiveDisplay(t *testing.T) {
	dir := t.TempDir()
	old := x11SocketDir
	x11SocketDir = dir
	t.Cleanup(func() { x11SocketDir = old })
	if err := os.WriteFile(filepath.Join(dir, "X42"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(Config{XvfbDisplay: ":42"})
	if err := m.startXvfb(); err != nil {
		t.Fatalf("startXvfb: %v", err)
	}
	if m.xvfb != nil {
		t.Error("started a second X server on a live display")
	}
	m.stopXvfb()
}

func TestWaitForSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "X7")
	exited := make(chan error, 1)

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = os.WriteFile(sock, nil, 0o600)
	}()
	if err := waitForSocket(sock, 2*time.Second, exited); err != nil {
		t.Fatalf("socket appeared: %v", err)
	}

	exited <- errors.New("exit status 1")
	err := waitForSocket(filepath.Join(t.TempDir(), "X8"), 2*time.Second, exited)
	if err == nil || !strings.Contains(err.Error(), "exited") {
		t.Errorf("early exit: %v", err)
	}
}
