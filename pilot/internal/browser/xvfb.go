package browser

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// xvfbScreen fits the desktop layouts of the chat web apps.
const xvfbScreen = "1440x900x24"

const xvfbReadyTimeout = 5 * time.Second

// x11SocketDir is where X servers publish display sockets.
var x11SocketDir = "/tmp/.X11-unix"

// displaySocket maps ":99" or ":99.0" to the X server socket path.
func displaySocket(display string) (string, error) {
	num, ok := strings.CutPrefix(display, ":")
	if !ok {
		return "", fmt.Errorf("display %q: want :N", display)
	}
	num, _, _ = strings.Cut(num, ".")
	if num == "" || strings.Trim(num, "0123456789") != "" {
		return "", fmt.Errorf("display %q: want :N", display)
	}
	return filepath.Join(x11SocketDir, "X"+num), nil
}

// startXvfb starts an X server on XvfbDisplay unless one already serves it,
// which happens when the pilot restarts inside the same container. It
// returns once the display socket exists.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}
	sock, err := displaySocket(m.cfg.XvfbDisplay)
	if err != nil {
		return err
	}
	if _, err := os.Stat(sock); err == nil {
		m.cfg.Logger.Info("browser: reusing X display", "display", m.cfg.XvfbDisplay)
		return nil
	}

	cmd := exec.Command("Xvfb", m.cfg.XvfbDisplay, "-screen", "0", xvfbScreen, "-nolisten", "tcp", "-ac")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if err := waitForSocket(sock, xvfbReadyTimeout, exited); err != nil {
		_ = cmd.Process.Kill()
		return err
	}
	m.xvfb = cmd
	m.xvfbExited = exited
	m.cfg.Logger.Info("browser: xvfb started", "display", m.cfg.XvfbDisplay, "pid", cmd.Process.Pid)
	return nil
}

func waitForSocket(sock string, timeout time.Duration, exited <-chan error) error {
	deadline := time.After(timeout)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(sock); err == nil {
			return nil
		}
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exited")
			}
			return fmt.Errorf("xvfb exited before %s appeared: %w", sock, err)
		case <-deadline:
			return fmt.Errorf("xvfb: %s not ready after %s", sock, timeout)
		case <-tick.C:
		}
	}
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		_ = m.xvfb.Process.Kill()
		<-m.xvfbExited
	}
	m.xvfb, m.xvfbExited = nil, nil
}
