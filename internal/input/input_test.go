package input

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

func putEvent(typ uint16, code evdev.EvCode, value int32) []byte {
	buf := make([]byte, eventSize)
	binary.LittleEndian.PutUint16(buf[16:18], typ)
	binary.LittleEndian.PutUint16(buf[18:20], uint16(code))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(value))
	return buf
}

func keyEvent(code evdev.EvCode, value int32) []byte {
	return putEvent(uint16(evdev.EV_KEY), code, value)
}

// =============================================================================
// Decoder tests
// =============================================================================

func TestDecodeEventsPreservesOrder(t *testing.T) {
	now := time.Now()
	var buf []byte
	buf = append(buf, keyEvent(evdev.KEY_A, valueDown)...)
	buf = append(buf, keyEvent(evdev.KEY_A, valueRepeat)...)
	buf = append(buf, keyEvent(evdev.KEY_A, valueUp)...)

	events := decodeEvents(nil, "/dev/input/event3", buf, now)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	want := []Action{ActionDown, ActionRepeat, ActionUp}
	for i, ev := range events {
		if ev.Action != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.Action)
		}
		if ev.Code != evdev.KEY_A {
			t.Fatalf("event %d: wrong code %d", i, ev.Code)
		}
		if ev.Device != "/dev/input/event3" {
			t.Fatalf("event %d: wrong device %q", i, ev.Device)
		}
		if !ev.Time.Equal(now) {
			t.Fatalf("event %d: wrong timestamp", i)
		}
	}
}

func TestDecodeEventsSkipsNonKeyRecords(t *testing.T) {
	var buf []byte
	buf = append(buf, putEvent(uint16(evdev.EV_SYN), 0, 0)...)
	buf = append(buf, keyEvent(evdev.KEY_B, valueDown)...)
	buf = append(buf, putEvent(uint16(evdev.EV_MSC), 4, 30)...)

	events := decodeEvents(nil, "dev", buf, time.Now())
	if len(events) != 1 || events[0].Code != evdev.KEY_B {
		t.Fatalf("expected only the KEY_B event, got %+v", events)
	}
}

func TestDecodeEventsSkipsUnknownValues(t *testing.T) {
	buf := keyEvent(evdev.KEY_C, 7)

	events := decodeEvents(nil, "dev", buf, time.Now())
	if len(events) != 0 {
		t.Fatalf("unknown value must be dropped, got %+v", events)
	}
}

func TestDecodeEventsIgnoresPartialTrailingRecord(t *testing.T) {
	var buf []byte
	buf = append(buf, keyEvent(evdev.KEY_D, valueDown)...)
	buf = append(buf, keyEvent(evdev.KEY_E, valueDown)[:10]...)

	events := decodeEvents(nil, "dev", buf, time.Now())
	if len(events) != 1 || events[0].Code != evdev.KEY_D {
		t.Fatalf("partial record must be ignored, got %+v", events)
	}
}

// =============================================================================
// Listener read loop tests
//
// A pipe stands in for the device node: it is pollable and delivers whole
// records the same way the evdev character device does.
// =============================================================================

func newPipeListener(t *testing.T, out chan<- RawEvent, paused *atomic.Bool, ignored map[evdev.EvCode]struct{}) (*Listener, int, int) {
	t.Helper()
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	l := NewListener(Device{Path: "/dev/input/event9", Name: "fake"}, out, paused, ignored)
	return l, fds[0], fds[1]
}

func TestReadLoopForwardsInOrder(t *testing.T) {
	out := make(chan RawEvent, 16)
	l, rfd, wfd := newPipeListener(t, out, nil, nil)
	defer unix.Close(rfd)
	defer unix.Close(wfd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- l.readLoop(ctx, rfd) }()

	var batch []byte
	batch = append(batch, keyEvent(evdev.KEY_H, valueDown)...)
	batch = append(batch, keyEvent(evdev.KEY_I, valueDown)...)
	if _, err := unix.Write(wfd, batch); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, want := range []evdev.EvCode{evdev.KEY_H, evdev.KEY_I} {
		select {
		case ev := <-out:
			if ev.Code != want {
				t.Fatalf("expected %d, got %d", want, ev.Code)
			}
		case <-time.After(time.Second):
			t.Fatal("event not forwarded")
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrListenerClosed) {
			t.Fatalf("expected ErrListenerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read loop did not observe cancellation")
	}
}

func TestReadLoopReportsDeviceLoss(t *testing.T) {
	out := make(chan RawEvent, 16)
	l, rfd, wfd := newPipeListener(t, out, nil, nil)
	defer unix.Close(rfd)

	errCh := make(chan error, 1)
	go func() { errCh <- l.readLoop(context.Background(), rfd) }()

	unix.Close(wfd)

	select {
	case err := <-errCh:
		var lost *DeviceLostError
		if !errors.As(err, &lost) {
			t.Fatalf("expected DeviceLostError, got %v", err)
		}
		if lost.Device != "/dev/input/event9" {
			t.Fatalf("wrong device in error: %q", lost.Device)
		}
	case <-time.After(time.Second):
		t.Fatal("device loss not detected")
	}
}

func TestReadLoopDiscardsWhilePaused(t *testing.T) {
	out := make(chan RawEvent, 16)
	var paused atomic.Bool
	paused.Store(true)
	l, rfd, wfd := newPipeListener(t, out, &paused, nil)
	defer unix.Close(rfd)
	defer unix.Close(wfd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.readLoop(ctx, rfd)

	if _, err := unix.Write(wfd, keyEvent(evdev.KEY_A, valueDown)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case ev := <-out:
		t.Fatalf("paused listener forwarded %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}

	paused.Store(false)
	if _, err := unix.Write(wfd, keyEvent(evdev.KEY_B, valueDown)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case ev := <-out:
		if ev.Code != evdev.KEY_B {
			t.Fatalf("expected KEY_B after resume, got %d", ev.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("resumed listener forwarded nothing")
	}
}

func TestReadLoopSkipsIgnoredKeys(t *testing.T) {
	out := make(chan RawEvent, 16)
	ignored := map[evdev.EvCode]struct{}{evdev.KEY_CAPSLOCK: {}}
	l, rfd, wfd := newPipeListener(t, out, nil, ignored)
	defer unix.Close(rfd)
	defer unix.Close(wfd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.readLoop(ctx, rfd)

	var batch []byte
	batch = append(batch, keyEvent(evdev.KEY_CAPSLOCK, valueDown)...)
	batch = append(batch, keyEvent(evdev.KEY_J, valueDown)...)
	if _, err := unix.Write(wfd, batch); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-out:
		if ev.Code != evdev.KEY_J {
			t.Fatalf("ignored key leaked through: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("non-ignored event not forwarded")
	}
}

func TestListenerFailurePreservesSiblings(t *testing.T) {
	out := make(chan RawEvent, 16)
	la, rfdA, wfdA := newPipeListener(t, out, nil, nil)
	lb, rfdB, wfdB := newPipeListener(t, out, nil, nil)
	defer unix.Close(rfdA)
	defer unix.Close(rfdB)
	defer unix.Close(wfdB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go la.readLoop(ctx, rfdA)
	go lb.readLoop(ctx, rfdB)

	// Kill listener A's device.
	unix.Close(wfdA)
	time.Sleep(200 * time.Millisecond)

	if _, err := unix.Write(wfdB, keyEvent(evdev.KEY_K, valueDown)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case ev := <-out:
		if ev.Code != evdev.KEY_K {
			t.Fatalf("expected KEY_K from surviving listener, got %d", ev.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("surviving listener stopped delivering")
	}
}

// =============================================================================
// Error taxonomy tests
// =============================================================================

func TestAccessErrorMessageCarriesHint(t *testing.T) {
	err := &AccessError{Path: "/dev/input/event0", Err: unix.EACCES}
	if !errors.Is(err, unix.EACCES) {
		t.Fatal("AccessError must unwrap to the underlying errno")
	}
	msg := err.Error()
	if !strings.Contains(msg, "/dev/input/event0") || !strings.Contains(msg, "input") {
		t.Fatalf("unhelpful access error: %q", msg)
	}
}

func TestDeviceLostErrorUnwraps(t *testing.T) {
	err := &DeviceLostError{Device: "/dev/input/event2", Err: unix.ENODEV}
	if !errors.Is(err, unix.ENODEV) {
		t.Fatal("DeviceLostError must unwrap to the underlying errno")
	}
}
