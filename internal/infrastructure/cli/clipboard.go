package cli

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/doeshing/aicmd-go/internal/ports"
)

// Clipboard implements ports.Clipboard using platform-specific tools.
type Clipboard struct {
	goos     string
	env      func(string) string
	lookPath func(string) (string, error)
}

// NewClipboard builds the clipboard helper for the current platform.
func NewClipboard() *Clipboard {
	return &Clipboard{goos: runtime.GOOS, env: os.Getenv, lookPath: exec.LookPath}
}

func (c *Clipboard) Enabled() bool {
	switch c.goos {
	case "darwin", "linux", "windows":
		return true
	default:
		return false
	}
}

// Copy copies text to the system clipboard.
func (c *Clipboard) Copy(text string) error {
	args, err := c.command()
	if err != nil {
		return err
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// command picks the platform tool. Wayland sessions try wl-copy first so the
// text lands in the compositor clipboard rather than the XWayland one.
func (c *Clipboard) command() ([]string, error) {
	switch c.goos {
	case "darwin":
		return []string{"pbcopy"}, nil
	case "windows":
		return []string{"clip.exe"}, nil
	case "linux":
		candidates := [][]string{
			{"xclip", "-selection", "clipboard"},
			{"wl-copy"},
		}
		if c.env("WAYLAND_DISPLAY") != "" {
			candidates[0], candidates[1] = candidates[1], candidates[0]
		}
		for _, cand := range candidates {
			if _, err := c.lookPath(cand[0]); err == nil {
				return cand, nil
			}
		}
		return nil, fmt.Errorf("clipboard utilities not found (install xclip or wl-clipboard)")
	default:
		return nil, fmt.Errorf("clipboard not supported on %s", c.goos)
	}
}

var _ ports.Clipboard = (*Clipboard)(nil)
