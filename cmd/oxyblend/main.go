// oxyblend runs layered animation rigs that cross-fade triggered sequences over a looping base.
//
// Triggers arrive from an MQTT topic, from key presses in the optional preview window, or both.
// Configuration is read from the file named by OXYBLEND_CONFIG (default oxyblend.yaml) with
// OXYBLEND_* environment overrides.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-blend/engine"
	"github.com/Carmen-Shannon/oxy-blend/engine/config"
	"github.com/Carmen-Shannon/oxy-blend/engine/loader"
	"github.com/Carmen-Shannon/oxy-blend/engine/logging"
	"github.com/Carmen-Shannon/oxy-blend/engine/rig"
	"github.com/Carmen-Shannon/oxy-blend/engine/trigger"
	"github.com/Carmen-Shannon/oxy-blend/engine/window"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var version = "dev"

const defaultConfigPath = "oxyblend.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires configuration, logging, the sequence catalog, triggers and rigs, then runs the
// engine until ctx is cancelled or the window closes.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting oxyblend", "version", version, "config", configPath)

	ld := loader.NewLoader(loader.BackendTypeGLTF, loader.WithLogger(log.With("component", "loader").Logger))
	catalog, err := buildCatalog(cfg, ld)
	if err != nil {
		return fmt.Errorf("building sequence catalog: %w", err)
	}
	log.Info("sequence catalog ready", "sequences", len(catalog))

	bus := trigger.NewBus(trigger.WithLogger(log.With("component", "trigger").Logger))

	options := []engine.EngineBuilderOption{
		engine.WithLogger(log.With("component", "engine").Logger),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithProfiling(cfg.Engine.Profiling),
	}
	var win window.Window
	if cfg.Window.Enabled {
		win = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithWidth(cfg.Window.Width),
			window.WithHeight(cfg.Window.Height),
			window.WithPollTimeout(cfg.Window.PollTimeout),
		)
		options = append(options, engine.WithWindow(win), engine.WithClock(win.Clock()))
	}
	eng := engine.NewEngine(options...)
	defer eng.Close()

	rigs, err := buildRigs(cfg, catalog, eng.Clock(), bus, log.Logger)
	if err != nil {
		return err
	}
	for _, r := range rigs {
		if err := eng.AddRig(r); err != nil {
			r.Close()
			return err
		}
	}

	if win != nil {
		bindings, err := cfg.KeyBindings()
		if err != nil {
			return fmt.Errorf("binding keys: %w", err)
		}
		win.SetKeyDownCallback(bindings.Handler(bus))
		win.SetUpdateCallback(titleUpdater(win, eng, cfg.Window.Title))
		log.Info("window open", "bindings", len(bindings))
	}

	if cfg.MQTT.Enabled {
		src := trigger.NewMQTTSource(cfg.TriggerMQTT(), bus, log.With("component", "mqtt").Logger)
		if err := src.Start(); err != nil {
			return fmt.Errorf("starting mqtt trigger source: %w", err)
		}
		defer src.Close()
	}

	go func() {
		<-ctx.Done()
		eng.Quit()
	}()

	log.Info("engine running", "rigs", len(rigs), "tick_rate", cfg.Engine.TickRate, "workers", cfg.Engine.Workers)
	eng.Run()
	log.Info("shutting down", "frames", eng.Frames())
	return nil
}

// getConfigPath returns the configuration file path.
// Uses OXYBLEND_CONFIG if set. Otherwise the default path is used when it exists,
// and an empty path (defaults plus environment only) when it does not.
func getConfigPath() string {
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

// titleUpdater returns a window update callback that shows each rig's base weight and layer
// count in the title bar, refreshed a few times per second.
func titleUpdater(win window.Window, eng engine.Engine, title string) func() {
	var last time.Time
	return func() {
		if time.Since(last) < 250*time.Millisecond {
			return
		}
		last = time.Now()

		parts := []string{title}
		for _, r := range sortedRigs(eng) {
			s := r.Stats()
			parts = append(parts, fmt.Sprintf("%s: base %.2f (%s) layers %d", s.Rig, s.BaseWeight, s.BaseState, s.Layers))
		}
		win.SetTitle(strings.Join(parts, " | "))
	}
}

func sortedRigs(eng engine.Engine) []rig.Rig {
	byName := eng.Rigs()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)
	rigs := make([]rig.Rig, len(names))
	for i, name := range names {
		rigs[i] = byName[name]
	}
	return rigs
}
