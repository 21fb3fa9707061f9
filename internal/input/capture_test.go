package input

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

func TestCaptureParsesIgnoredKeyNames(t *testing.T) {
	c := NewCapture(Options{IgnoredKeys: []string{"KEY_CAPSLOCK", "KEY_BOGUS_NAME"}})
	if _, ok := c.ignored[evdev.KEY_CAPSLOCK]; !ok {
		t.Fatal("KEY_CAPSLOCK not resolved")
	}
	if len(c.ignored) != 1 {
		t.Fatalf("bogus name resolved somehow: %v", c.ignored)
	}
}

func TestCapturePauseGate(t *testing.T) {
	c := NewCapture(Options{})
	if c.Paused() {
		t.Fatal("capture must start unpaused")
	}
	c.SetPaused(true)
	if !c.Paused() {
		t.Fatal("pause not applied")
	}
	c.SetPaused(false)
	if c.Paused() {
		t.Fatal("resume not applied")
	}
}

// TestCaptureSpawnLifecycle runs a listener against a FIFO standing in for
// an event node: same open, poll, and read path as the real device.
func TestCaptureSpawnLifecycle(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "event0")
	if err := unix.Mkfifo(fifo, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	// O_RDWR keeps a writer attached so the reader never sees EOF early.
	wfd, err := unix.Open(fifo, unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open fifo: %v", err)
	}

	c := NewCapture(Options{Buffer: 16})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.spawn(ctx, Device{Path: fifo, Name: "fake keyboard"})
	if got := len(c.ActiveDevices()); got != 1 {
		t.Fatalf("expected 1 active device, got %d", got)
	}

	if _, err := unix.Write(wfd, keyEvent(evdev.KEY_Q, valueDown)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case ev := <-c.Events():
		if ev.Code != evdev.KEY_Q || ev.Device != fifo {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	// Losing the device drops only its listener.
	unix.Close(wfd)
	deadline := time.Now().Add(2 * time.Second)
	for len(c.ActiveDevices()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("lost device never dropped")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
