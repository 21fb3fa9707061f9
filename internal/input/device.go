package input

import (
	"errors"
	"fmt"
	"os"

	evdev "github.com/holoplot/go-evdev"

	"keyosd/internal/logging"
)

// Device identifies one keyboard-capable input device. Created by an
// enumeration scan and never mutated; a device that disappears is simply
// dropped from the next scan.
type Device struct {
	// Path is the stable event node path, e.g. /dev/input/event3.
	Path string

	// Name is the kernel-reported device name.
	Name string
}

// AccessError means the capability to scan or open input nodes is missing,
// typically because the user is not in the input group.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("input: access to %s denied: %v (add your user to the 'input' group)", e.Path, e.Err)
	}
	return fmt.Sprintf("input: cannot scan input devices: %v (add your user to the 'input' group)", e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// DeviceLostError reports that a device disappeared mid-stream, e.g. a
// hot-unplugged USB keyboard. Recoverable: only that device's listener
// stops.
type DeviceLostError struct {
	Device string
	Err    error
}

func (e *DeviceLostError) Error() string {
	return fmt.Sprintf("input: device %s lost: %v", e.Device, e.Err)
}

func (e *DeviceLostError) Unwrap() error { return e.Err }

// ErrListenerClosed signals a clean listener shutdown. Internal, never
// user-visible.
var ErrListenerClosed = errors.New("input: listener closed")

// ListKeyboards scans /dev/input for keyboard-capable devices. Zero
// keyboards is an empty slice, not an error. Devices that fail to open are
// skipped, so results may be partial; if candidates exist but every open
// was denied, an *AccessError is returned instead.
func ListKeyboards() ([]Device, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, &AccessError{Err: err}
	}

	log := logging.Default().WithComponent("input")

	devices := make([]Device, 0, len(paths))
	denied := 0
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			if os.IsPermission(err) {
				denied++
			}
			log.Debug("could not open device", "path", p.Path, "error", err)
			continue
		}

		if isKeyboard(dev) {
			name, err := dev.Name()
			if err != nil || name == "" {
				name = p.Name
			}
			log.Info("found keyboard", "name", name, "path", p.Path)
			devices = append(devices, Device{Path: p.Path, Name: name})
		}
		dev.Close()
	}

	if len(devices) == 0 && denied > 0 {
		return nil, &AccessError{Err: os.ErrPermission}
	}

	return devices, nil
}

// isKeyboard reports whether dev looks like a real keyboard: it must emit
// key events and cover the letter block, which filters out headset buttons,
// lid switches and the like.
func isKeyboard(dev *evdev.InputDevice) bool {
	hasKey := false
	for _, t := range dev.CapableTypes() {
		if t == evdev.EV_KEY {
			hasKey = true
			break
		}
	}
	if !hasKey {
		return false
	}

	var hasA, hasZ, hasSpace bool
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		switch code {
		case evdev.KEY_A:
			hasA = true
		case evdev.KEY_Z:
			hasZ = true
		case evdev.KEY_SPACE:
			hasSpace = true
		}
	}
	return hasA && hasZ && hasSpace
}
