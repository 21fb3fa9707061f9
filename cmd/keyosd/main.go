// keyosd - keyboard activity capture core for Wayland overlay displays
//
//	keyosd run       Capture keyboards and stream visible key snapshots
//	keyosd devices   List accessible keyboard devices
//	keyosd detect    Print the detected compositor and its support tier
//	keyosd version   Print the version
//
// The run command is the stand-in for a presentation layer: it prints a
// line per state change. SIGUSR1 toggles the pause gate, SIGINT/SIGTERM
// shut down gracefully after draining buffered events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"keyosd/internal/compositor"
	"keyosd/internal/config"
	"keyosd/internal/engine"
	"keyosd/internal/input"
	"keyosd/internal/logging"
	"keyosd/internal/metrics"
)

const version = "0.1.0"

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "run":
		cmdRun(args)
	case "devices":
		cmdDevices()
	case "detect":
		cmdDetect()
	case "version":
		fmt.Println("keyosd " + version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: keyosd [command] [flags]

Commands:
  run       Capture keyboards and stream visible key snapshots (default)
  devices   List accessible keyboard devices
  detect    Print the detected compositor and support tier
  version   Print the version

Run 'keyosd run -h' for run flags.
`)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "configuration file path")
	logLevel := fs.String("log-level", "", "override log level (debug|info|warn|error)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address (empty disables)")
	startPaused := fs.Bool("paused", false, "start with capture paused")
	_ = fs.Parse(args)

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyosd: %v\n", err)
		os.Exit(1)
	}
	defer loader.Close()

	log, err := setupLogging(cfg, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyosd: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Compositor identity is a one-time fact, read-only afterward.
	id := compositor.Current()
	log.Info("compositor detected", "compositor", id.String(), "tier", id.Tier().String())
	if id.Tier() == compositor.TierFull {
		if client := compositor.NewClient(id); client != nil {
			if layouts, err := client.Layouts(); err == nil && len(layouts.Names) > 0 {
				log.Info("keyboard layouts", "layouts", strings.Join(layouts.Names, ","),
					"current", layouts.CurrentName())
			} else if err != nil {
				log.Debug("layout query failed", "error", err)
			}
		}
	}

	registry := metrics.NewRegistry()
	km := metrics.NewKeyosd(registry)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
		log.Info("metrics endpoint listening", "addr", *metricsAddr)
	}

	capture := input.NewCapture(input.Options{
		AllKeyboards: cfg.Input.AllKeyboards,
		IgnoredKeys:  cfg.Input.IgnoredKeys,
		Metrics:      km,
	})
	if err := capture.Start(ctx); err != nil {
		var access *input.AccessError
		if errors.As(err, &access) {
			fmt.Fprintf(os.Stderr, "keyosd: %v\n", access)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "keyosd: %v\n", err)
		os.Exit(1)
	}
	if len(capture.ActiveDevices()) == 0 {
		// Status, not a crash: a keyboard may appear via hotplug.
		log.Warn("no keyboards available")
	}

	eng := engine.New(capture.Events(), engine.Options{
		MaxKeys:       cfg.Display.MaxKeys,
		Timeout:       cfg.Timeout(),
		SweepInterval: cfg.SweepInterval(),
		Metrics:       km,
	})

	paused := *startPaused || cfg.Input.StartPaused
	capture.SetPaused(paused)
	eng.SetPaused(paused)
	if paused {
		log.Info("starting paused")
	}

	go eng.Run(ctx)

	// Hot-plugged keyboards get picked up without a restart.
	if watcher, err := input.NewHotplugWatcher(func() {
		if err := capture.Rescan(ctx); err != nil {
			log.Warn("rescan failed", "error", err)
		}
	}); err == nil {
		go watcher.Run(ctx)
	} else {
		log.Warn("hotplug watching unavailable", "error", err)
	}

	// Capacity and timeout changes apply live on config reload.
	loader.OnChange(func(c *config.Config) {
		log.Info("configuration reloaded", "max_keys", c.Display.MaxKeys,
			"timeout_ms", c.Display.TimeoutMs)
		eng.Configure(c.Display.MaxKeys, c.Timeout())
	})
	if err := loader.Watch(); err != nil {
		log.Debug("config watching unavailable", "error", err)
	}

	go handleSignals(cancel, capture, eng, log)

	for snap := range eng.Subscribe() {
		fmt.Println(renderSnapshot(snap))
	}

	// Subscription closes once the engine has drained and exited.
	<-eng.Done()
	log.Info("shutdown complete")
}

func handleSignals(cancel context.CancelFunc, capture *input.Capture, eng *engine.Engine, log *logging.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			paused := !capture.Paused()
			capture.SetPaused(paused)
			eng.SetPaused(paused)
			if paused {
				log.Info("capture paused")
			} else {
				log.Info("capture resumed")
			}
		default:
			log.Info("shutting down", "signal", sig.String())
			cancel()
			return
		}
	}
}

// renderSnapshot formats a snapshot the way the overlay would show it.
func renderSnapshot(snap engine.Snapshot) string {
	if len(snap) == 0 {
		return "(idle)"
	}
	parts := make([]string, 0, len(snap))
	for _, k := range snap {
		label := k.Key.Label
		if !k.Down {
			label = label + "~"
		}
		parts = append(parts, label)
	}
	return "[" + strings.Join(parts, " + ") + "]"
}

func cmdDevices() {
	devices, err := input.ListKeyboards()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyosd: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("No keyboard devices found.")
		return
	}
	for _, dev := range devices {
		fmt.Printf("%-22s %s\n", dev.Path, dev.Name)
	}
}

func cmdDetect() {
	id := compositor.Current()
	fmt.Printf("Compositor: %s\nTier:       %s\n", id, id.Tier())

	if id.Tier() != compositor.TierFull {
		return
	}
	client := compositor.NewClient(id)
	if client == nil {
		fmt.Println("Layouts:    (socket not reachable)")
		return
	}
	layouts, err := client.Layouts()
	if err != nil || len(layouts.Names) == 0 {
		fmt.Println("Layouts:    (not available)")
		return
	}
	fmt.Printf("Layouts:    %s\nActive:     %s\n",
		strings.Join(layouts.Names, ", "), layouts.CurrentName())
}

func setupLogging(cfg *config.Config, levelOverride string) (*logging.Logger, error) {
	levelStr := cfg.Logging.Level
	if levelOverride != "" {
		levelStr = levelOverride
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = format
	if cfg.Logging.Output != "" {
		logCfg.Output = cfg.Logging.Output
	}
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}

	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(log)
	return log, nil
}
