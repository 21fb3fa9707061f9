package compositor

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"keyosd/internal/logging"
)

const socketTimeout = 5 * time.Second

// hyprlandClient talks to Hyprland's request socket.
type hyprlandClient struct {
	socketPath string
}

func newHyprlandClient() Client {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	signature := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if runtimeDir == "" || signature == "" {
		return nil
	}

	socketPath := filepath.Join(runtimeDir, "hypr", signature, ".socket.sock")
	if _, err := os.Stat(socketPath); err != nil {
		logging.Debug("hyprland socket not found", "path", socketPath)
		return nil
	}

	return &hyprlandClient{socketPath: socketPath}
}

// Layouts queries `j/devices` and collects the distinct active keymaps of
// all keyboards. The main keyboard's keymap decides the current index.
func (c *hyprlandClient) Layouts() (Layouts, error) {
	resp, err := c.command("j/devices")
	if err != nil {
		return Layouts{}, err
	}
	return parseHyprlandDevices(resp), nil
}

func (c *hyprlandClient) command(cmd string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, socketTimeout)
	if err != nil {
		return "", fmt.Errorf("hyprland: dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(socketTimeout))

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("hyprland: write: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("hyprland: read: %w", err)
	}
	return string(data), nil
}

func parseHyprlandDevices(resp string) Layouts {
	var layouts Layouts
	seen := make(map[string]int)
	mainKeymap := ""

	gjson.Get(resp, "keyboards").ForEach(func(_, kb gjson.Result) bool {
		keymap := kb.Get("active_keymap").String()
		if keymap != "" {
			if _, ok := seen[keymap]; !ok {
				seen[keymap] = len(layouts.Names)
				layouts.Names = append(layouts.Names, keymap)
			}
			if kb.Get("main").Bool() {
				mainKeymap = keymap
			}
		}
		return true
	})

	if idx, ok := seen[mainKeymap]; ok {
		layouts.Current = idx
	}
	return layouts
}
