package compositor

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"keyosd/internal/logging"
)

// i3-ipc framing, shared by sway.
const (
	swayMagic      = "i3-ipc"
	swayHeaderSize = 14

	swayGetInputs = 100
)

// swayClient talks to sway's i3-compatible IPC socket.
type swayClient struct {
	socketPath string
}

func newSwayClient() Client {
	socketPath := os.Getenv("SWAYSOCK")
	if socketPath == "" {
		return nil
	}
	if _, err := os.Stat(socketPath); err != nil {
		logging.Debug("sway socket not found", "path", socketPath)
		return nil
	}
	return &swayClient{socketPath: socketPath}
}

// Layouts issues GET_INPUTS and reads the xkb layout facts of the first
// keyboard input.
func (c *swayClient) Layouts() (Layouts, error) {
	resp, err := c.roundTrip(swayGetInputs, nil)
	if err != nil {
		return Layouts{}, err
	}
	return parseSwayInputs(resp), nil
}

func (c *swayClient) roundTrip(msgType uint32, payload []byte) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, socketTimeout)
	if err != nil {
		return "", fmt.Errorf("sway: dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(socketTimeout))

	header := buildSwayHeader(uint32(len(payload)), msgType)
	if _, err := conn.Write(header); err != nil {
		return "", fmt.Errorf("sway: write header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return "", fmt.Errorf("sway: write payload: %w", err)
		}
	}

	respHeader := make([]byte, swayHeaderSize)
	if _, err := io.ReadFull(conn, respHeader); err != nil {
		return "", fmt.Errorf("sway: read header: %w", err)
	}
	if string(respHeader[:6]) != swayMagic {
		return "", fmt.Errorf("sway: bad magic in response")
	}

	length := binary.LittleEndian.Uint32(respHeader[6:10])
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return "", fmt.Errorf("sway: read body: %w", err)
	}
	return string(body), nil
}

func buildSwayHeader(payloadLen, msgType uint32) []byte {
	header := make([]byte, swayHeaderSize)
	copy(header[0:6], swayMagic)
	binary.LittleEndian.PutUint32(header[6:10], payloadLen)
	binary.LittleEndian.PutUint32(header[10:14], msgType)
	return header
}

func parseSwayInputs(resp string) Layouts {
	var layouts Layouts

	gjson.Parse(resp).ForEach(func(_, in gjson.Result) bool {
		if in.Get("type").String() != "keyboard" {
			return true
		}
		for _, name := range in.Get("xkb_layout_names").Array() {
			layouts.Names = append(layouts.Names, name.String())
		}
		layouts.Current = int(in.Get("xkb_active_layout_index").Int())
		// First keyboard wins; sway reports the same xkb config for
		// every keyboard of the seat.
		return false
	})

	if layouts.Current < 0 || layouts.Current >= len(layouts.Names) {
		layouts.Current = 0
	}
	return layouts
}
