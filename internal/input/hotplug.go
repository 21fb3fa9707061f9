package input

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"keyosd/internal/logging"
)

// inputDir is the directory holding evdev event nodes.
const inputDir = "/dev/input"

// HotplugWatcher watches /dev/input and invokes a callback, debounced,
// whenever event nodes appear or disappear. The callback typically
// triggers a Capture.Rescan.
type HotplugWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	log      *logging.Logger
}

// NewHotplugWatcher creates a watcher calling onChange after device node
// churn settles.
func NewHotplugWatcher(onChange func()) (*HotplugWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(inputDir); err != nil {
		w.Close()
		return nil, err
	}
	return &HotplugWatcher{
		watcher:  w,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		log:      logging.Default().WithComponent("hotplug"),
	}, nil
}

// Run processes filesystem events until ctx is canceled.
func (h *HotplugWatcher) Run(ctx context.Context) {
	defer h.watcher.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !strings.Contains(event.Name, "event") {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			h.log.Debug("input node change", "name", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			// Udev may still be adjusting permissions right after the
			// node appears, so give it a moment.
			timer = time.AfterFunc(h.debounce, h.onChange)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Warn("hotplug watch error", "error", err)
		}
	}
}
