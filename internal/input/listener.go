package input

import (
	"context"
	"sync/atomic"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"keyosd/internal/logging"
)

// pollTimeout bounds how long a blocked listener waits before rechecking
// for cancellation. Shutdown is therefore observed within one read cycle.
const pollTimeout = 100 // milliseconds

// Listener captures raw key events from one device and forwards them to a
// shared channel. The device handle is owned exclusively by the listener
// for the device's lifetime.
type Listener struct {
	device  Device
	out     chan<- RawEvent
	ignored map[evdev.EvCode]struct{}
	paused  *atomic.Bool
	log     *logging.Logger
}

// NewListener creates a listener for device that sends into out. The
// paused gate, when set, makes the listener keep reading (so kernel
// buffers never back up) but discard events before the channel. ignored
// codes are dropped the same way.
func NewListener(device Device, out chan<- RawEvent, paused *atomic.Bool, ignored map[evdev.EvCode]struct{}) *Listener {
	return &Listener{
		device:  device,
		out:     out,
		ignored: ignored,
		paused:  paused,
		log:     logging.Default().WithComponent("listener"),
	}
}

// Run opens the device and reads events until the context is canceled or
// the device disappears. Returns ErrListenerClosed on clean shutdown, a
// *DeviceLostError when the device is gone, or an *AccessError when the
// device cannot be opened at all.
func (l *Listener) Run(ctx context.Context) error {
	fd, err := unix.Open(l.device.Path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return &AccessError{Path: l.device.Path, Err: err}
	}
	defer unix.Close(fd)

	l.log.Info("listening to keyboard", "name", l.device.Name, "path", l.device.Path)
	defer l.log.Info("stopped listening", "name", l.device.Name)

	return l.readLoop(ctx, fd)
}

func (l *Listener) readLoop(ctx context.Context, fd int) error {
	buf := make([]byte, eventSize*64)
	events := make([]RawEvent, 0, 64)
	pfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		if ctx.Err() != nil {
			return ErrListenerClosed
		}

		pfds[0].Revents = 0
		n, err := unix.Poll(pfds, pollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return &DeviceLostError{Device: l.device.Path, Err: err}
		}
		if n == 0 {
			continue
		}
		if pfds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return &DeviceLostError{Device: l.device.Path, Err: unix.ENODEV}
		}

		rn, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return &DeviceLostError{Device: l.device.Path, Err: err}
		}
		if rn == 0 {
			return &DeviceLostError{Device: l.device.Path, Err: unix.ENODEV}
		}

		events = decodeEvents(events[:0], l.device.Path, buf[:rn], time.Now())
		if err := l.forward(ctx, events); err != nil {
			return err
		}
	}
}

// forward pushes events onto the shared channel in read order. The send
// blocks rather than dropping; cancellation of a dead consumer surfaces as
// ErrListenerClosed.
func (l *Listener) forward(ctx context.Context, events []RawEvent) error {
	for _, ev := range events {
		if _, skip := l.ignored[ev.Code]; skip {
			continue
		}
		if l.paused != nil && l.paused.Load() {
			continue
		}
		select {
		case l.out <- ev:
		case <-ctx.Done():
			return ErrListenerClosed
		}
	}
	return nil
}
