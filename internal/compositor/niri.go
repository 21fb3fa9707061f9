package compositor

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"keyosd/internal/logging"
)

// niriClient talks to niri's line-oriented JSON IPC socket.
type niriClient struct {
	socketPath string
}

func newNiriClient() Client {
	socketPath := os.Getenv("NIRI_SOCKET")
	if socketPath == "" {
		socketPath = os.Getenv("NIRI_SOCKET_PATH")
	}
	if socketPath == "" {
		return nil
	}
	if _, err := os.Stat(socketPath); err != nil {
		logging.Debug("niri socket not found", "path", socketPath)
		return nil
	}
	return &niriClient{socketPath: socketPath}
}

// Layouts issues the KeyboardLayouts request.
func (c *niriClient) Layouts() (Layouts, error) {
	resp, err := c.request(`"KeyboardLayouts"`)
	if err != nil {
		return Layouts{}, err
	}
	return parseNiriLayouts(resp), nil
}

func (c *niriClient) request(req string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, socketTimeout)
	if err != nil {
		return "", fmt.Errorf("niri: dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(socketTimeout))

	if _, err := fmt.Fprintln(conn, req); err != nil {
		return "", fmt.Errorf("niri: write: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("niri: read: %w", err)
	}
	return line, nil
}

func parseNiriLayouts(resp string) Layouts {
	var layouts Layouts

	node := gjson.Get(resp, "Ok.KeyboardLayouts")
	for _, name := range node.Get("names").Array() {
		layouts.Names = append(layouts.Names, name.String())
	}
	layouts.Current = int(node.Get("current_idx").Int())

	if layouts.Current < 0 || layouts.Current >= len(layouts.Names) {
		layouts.Current = 0
	}
	return layouts
}
