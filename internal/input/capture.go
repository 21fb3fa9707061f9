package input

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	evdev "github.com/holoplot/go-evdev"

	"keyosd/internal/keymap"
	"keyosd/internal/logging"
	"keyosd/internal/metrics"
)

// Options configures a Capture.
type Options struct {
	// AllKeyboards captures from every detected keyboard; when false only
	// the first is used.
	AllKeyboards bool

	// IgnoredKeys lists evdev key names dropped at the listeners.
	IgnoredKeys []string

	// Buffer is the shared event channel capacity.
	Buffer int

	// Metrics, when set, receives device and listener counters.
	Metrics *metrics.Keyosd
}

// Capture multiplexes per-device listeners into one ordered event channel.
// It supervises listener lifetimes: a lost device stops only its own
// listener, and Rescan attaches listeners for hot-plugged devices.
type Capture struct {
	opts   Options
	events chan RawEvent
	paused atomic.Bool
	log    *logging.Logger

	mu      sync.Mutex
	active  map[string]Device
	ignored map[evdev.EvCode]struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewCapture creates a Capture. Call Start to enumerate devices and begin
// listening.
func NewCapture(opts Options) *Capture {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}

	ignored := make(map[evdev.EvCode]struct{}, len(opts.IgnoredKeys))
	for _, name := range opts.IgnoredKeys {
		if code, ok := keymap.FromName(name); ok {
			ignored[code] = struct{}{}
		} else {
			logging.Warn("unknown ignored key name", "name", name)
		}
	}

	return &Capture{
		opts:    opts,
		events:  make(chan RawEvent, opts.Buffer),
		log:     logging.Default().WithComponent("capture"),
		active:  make(map[string]Device),
		ignored: ignored,
	}
}

// Events returns the shared event channel. It is closed after the context
// passed to Start is canceled and every listener has exited, so the
// consumer can drain buffered events before terminating.
func (c *Capture) Events() <-chan RawEvent {
	return c.events
}

// SetPaused toggles the pause gate. While paused, devices are still read
// to keep kernel buffers empty but events are discarded before the
// channel.
func (c *Capture) SetPaused(paused bool) {
	c.paused.Store(paused)
}

// Paused reports the pause gate state.
func (c *Capture) Paused() bool {
	return c.paused.Load()
}

// Start enumerates keyboards and spawns one listener per device. Zero
// keyboards is not an error: the capture stays running and Rescan can
// attach devices later. When ctx is canceled the event channel is closed
// after the last listener exits.
func (c *Capture) Start(ctx context.Context) error {
	devices, err := ListKeyboards()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		c.log.Warn("no keyboard devices found")
	}

	if !c.opts.AllKeyboards && len(devices) > 1 {
		devices = devices[:1]
	}

	for _, dev := range devices {
		c.spawn(ctx, dev)
	}

	go func() {
		<-ctx.Done()
		c.wg.Wait()
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.events)
	}()

	return nil
}

// Rescan enumerates again and attaches listeners for devices that appeared
// since the last scan. Removed devices need no action here: their
// listeners already exited with a device-lost condition.
func (c *Capture) Rescan(ctx context.Context) error {
	devices, err := ListKeyboards()
	if err != nil {
		return err
	}

	for _, dev := range devices {
		c.mu.Lock()
		_, known := c.active[dev.Path]
		closed := c.closed
		c.mu.Unlock()
		if known || closed {
			continue
		}
		c.log.Info("attaching hot-plugged keyboard", "name", dev.Name, "path", dev.Path)
		c.spawn(ctx, dev)
		if !c.opts.AllKeyboards {
			break
		}
	}

	return nil
}

// ActiveDevices returns the devices currently being listened to.
func (c *Capture) ActiveDevices() []Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Device, 0, len(c.active))
	for _, dev := range c.active {
		out = append(out, dev)
	}
	return out
}

func (c *Capture) spawn(ctx context.Context, dev Device) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.active[dev.Path] = dev
	count := len(c.active)
	c.mu.Unlock()

	if c.opts.Metrics != nil {
		c.opts.Metrics.DevicesActive.Set(int64(count))
	}

	l := NewListener(dev, c.events, &c.paused, c.ignored)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := l.Run(ctx)
		c.drop(dev)

		var lost *DeviceLostError
		switch {
		case errors.Is(err, ErrListenerClosed):
			// Clean shutdown.
		case errors.As(err, &lost):
			c.log.Warn("keyboard lost", "name", dev.Name, "path", dev.Path)
			if c.opts.Metrics != nil {
				c.opts.Metrics.ListenerErrors.Inc()
			}
		case err != nil:
			c.log.Error("listener failed", "name", dev.Name, "error", err)
			if c.opts.Metrics != nil {
				c.opts.Metrics.ListenerErrors.Inc()
			}
		}
	}()
}

func (c *Capture) drop(dev Device) {
	c.mu.Lock()
	delete(c.active, dev.Path)
	count := len(c.active)
	c.mu.Unlock()

	if c.opts.Metrics != nil {
		c.opts.Metrics.DevicesActive.Set(int64(count))
	}
}
