package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-blend/engine/crossfade"
	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
	"github.com/Carmen-Shannon/oxy-blend/engine/trigger"
)

// EnvPrefix prefixes every environment override, for example OXYBLEND_ENGINE_TICK_RATE.
const EnvPrefix = "OXYBLEND_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root configuration structure for oxyblend.
// All configuration is loaded from YAML and scalar settings can be overridden by environment variables.
type Config struct {
	Crossfade CrossfadeConfig      `yaml:"crossfade"`
	Engine    EngineConfig         `yaml:"engine"`
	Logging   LoggingConfig        `yaml:"logging"`
	MQTT      MQTTConfig           `yaml:"mqtt"`
	Window    WindowConfig         `yaml:"window"`
	Assets    []AssetConfig        `yaml:"assets"`
	Sequences []SequenceConfig     `yaml:"sequences"`
	Rigs      []RigConfig          `yaml:"rigs"`
	Keys      map[string]KeyConfig `yaml:"keys"`
}

// CrossfadeConfig contains the controller defaults shared by every rig.
type CrossfadeConfig struct {
	DefaultFadeIn    float32 `yaml:"default_fade_in" env:"DEFAULT_FADE_IN"`
	DefaultFadeOut   float32 `yaml:"default_fade_out" env:"DEFAULT_FADE_OUT"`
	ReclaimThreshold float32 `yaml:"reclaim_threshold" env:"RECLAIM_THRESHOLD"`
}

// EngineConfig contains frame loop settings.
type EngineConfig struct {
	TickRate  float64 `yaml:"tick_rate" env:"TICK_RATE"`
	Workers   int     `yaml:"workers" env:"WORKERS"`
	Profiling bool    `yaml:"profiling" env:"PROFILING"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// MQTTConfig contains the MQTT trigger source settings.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Broker   string `yaml:"broker" env:"BROKER"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
	Topic    string `yaml:"topic" env:"TOPIC"`
	QoS      int    `yaml:"qos" env:"QOS"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`

	// ConnectTimeout is in seconds.
	ConnectTimeout int `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

// WindowConfig contains the preview window settings.
type WindowConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Title   string `yaml:"title" env:"TITLE"`
	Width   int    `yaml:"width" env:"WIDTH"`
	Height  int    `yaml:"height" env:"HEIGHT"`

	// PollTimeout is in seconds; 0 uses one 60Hz frame.
	PollTimeout float64 `yaml:"poll_timeout" env:"POLL_TIMEOUT"`
}

// AssetConfig names a glTF or GLB file whose animations join the sequence catalog.
type AssetConfig struct {
	Path string `yaml:"path"`
	Wrap string `yaml:"wrap"`
}

// SequenceConfig declares a sequence without an asset file.
type SequenceConfig struct {
	ID       string  `yaml:"id"`
	Duration float32 `yaml:"duration"`
	Wrap     string  `yaml:"wrap"`
}

// RigConfig declares one animated target.
type RigConfig struct {
	Name string `yaml:"name"`
	Base string `yaml:"base"`

	// Sequences restricts the rig's catalog. Empty means every known sequence.
	Sequences []string `yaml:"sequences"`
}

// KeyConfig binds a key to a trigger. Unset fades use the controller defaults.
type KeyConfig struct {
	Sequence  string   `yaml:"sequence"`
	Rig       string   `yaml:"rig"`
	MaxWeight *float32 `yaml:"max_weight"`
	FadeIn    *float32 `yaml:"fade_in"`
	FadeOut   *float32 `yaml:"fade_out"`
}

// Load reads configuration from a YAML file, applying environment overrides.
//
// Load order: defaults, then YAML, then environment variables, then validation.
// Environment variables use the OXYBLEND_ prefix followed by the section and key,
// for example OXYBLEND_MQTT_BROKER. An empty path skips the file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with sensible defaults: one rig named "hero" looping a
// "locomotion" base sequence, headless, with MQTT disabled.
func Default() *Config {
	settings := crossfade.DefaultSettings()
	return &Config{
		Crossfade: CrossfadeConfig{
			DefaultFadeIn:    settings.DefaultFadeIn,
			DefaultFadeOut:   settings.DefaultFadeOut,
			ReclaimThreshold: settings.ReclaimThreshold,
		},
		Engine: EngineConfig{
			TickRate: 60,
			Workers:  1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://localhost:1883",
			ClientID:       "oxyblend",
			Topic:          "oxyblend/trigger",
			QoS:            1,
			ConnectTimeout: 10,
		},
		Window: WindowConfig{
			Title:  "oxyblend",
			Width:  640,
			Height: 240,
		},
		Sequences: []SequenceConfig{
			{ID: "locomotion", Duration: 1, Wrap: "loop"},
		},
		Rigs: []RigConfig{
			{Name: "hero", Base: "locomotion"},
		},
	}
}

// applyEnvOverrides parses each scalar section with its own prefix,
// so OXYBLEND_ENGINE_WORKERS overrides engine.workers.
func applyEnvOverrides(cfg *Config) error {
	sections := []struct {
		prefix string
		target any
	}{
		{"CROSSFADE_", &cfg.Crossfade},
		{"ENGINE_", &cfg.Engine},
		{"LOGGING_", &cfg.Logging},
		{"MQTT_", &cfg.MQTT},
		{"WINDOW_", &cfg.Window},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.target, env.Options{Prefix: EnvPrefix + s.prefix}); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: every failure joined into one error wrapping ErrInvalid, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Crossfade.DefaultFadeIn < 0 {
		errs = append(errs, "crossfade.default_fade_in must not be negative")
	}
	if c.Crossfade.DefaultFadeOut < 0 {
		errs = append(errs, "crossfade.default_fade_out must not be negative")
	}
	if c.Crossfade.ReclaimThreshold <= 0 || c.Crossfade.ReclaimThreshold >= 1 {
		errs = append(errs, "crossfade.reclaim_threshold must be between 0 and 1 exclusive")
	}

	if c.Engine.TickRate <= 0 {
		errs = append(errs, "engine.tick_rate must be positive")
	}
	if c.Engine.Workers < 1 {
		errs = append(errs, "engine.workers must be at least 1")
	}

	if c.Window.PollTimeout < 0 {
		errs = append(errs, "window.poll_timeout must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			errs = append(errs, "mqtt.topic is required when mqtt is enabled")
		}
	}

	for i, a := range c.Assets {
		if a.Path == "" {
			errs = append(errs, fmt.Sprintf("assets[%d].path is required", i))
		}
		if !validWrap(a.Wrap) {
			errs = append(errs, fmt.Sprintf("assets[%d].wrap %q must be hold, loop or none", i, a.Wrap))
		}
	}

	ids := make(map[string]bool, len(c.Sequences))
	for i, s := range c.Sequences {
		switch {
		case s.ID == "":
			errs = append(errs, fmt.Sprintf("sequences[%d].id is required", i))
		case ids[s.ID]:
			errs = append(errs, fmt.Sprintf("sequences[%d].id %q is declared twice", i, s.ID))
		}
		ids[s.ID] = true
		if s.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("sequences[%d].duration must be positive", i))
		}
		if !validWrap(s.Wrap) {
			errs = append(errs, fmt.Sprintf("sequences[%d].wrap %q must be hold, loop or none", i, s.Wrap))
		}
	}

	if len(c.Rigs) == 0 {
		errs = append(errs, "at least one rig is required")
	}
	names := make(map[string]bool, len(c.Rigs))
	for i, r := range c.Rigs {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Sprintf("rigs[%d].name is required", i))
		case names[r.Name]:
			errs = append(errs, fmt.Sprintf("rigs[%d].name %q is declared twice", i, r.Name))
		}
		names[r.Name] = true
		if r.Base == "" {
			errs = append(errs, fmt.Sprintf("rigs[%d].base is required", i))
		}
	}

	for key, k := range c.Keys {
		if k.Sequence == "" {
			errs = append(errs, fmt.Sprintf("keys.%s.sequence is required", key))
		}
		if k.Rig != "" && !names[k.Rig] {
			errs = append(errs, fmt.Sprintf("keys.%s.rig %q is not a declared rig", key, k.Rig))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// CrossfadeSettings returns the controller tunables.
func (c *Config) CrossfadeSettings() crossfade.Settings {
	return crossfade.Settings{
		DefaultFadeIn:    c.Crossfade.DefaultFadeIn,
		DefaultFadeOut:   c.Crossfade.DefaultFadeOut,
		ReclaimThreshold: c.Crossfade.ReclaimThreshold,
	}
}

// TriggerMQTT returns the MQTT source settings.
func (c *Config) TriggerMQTT() trigger.MQTTConfig {
	return trigger.MQTTConfig{
		Broker:         c.MQTT.Broker,
		ClientID:       c.MQTT.ClientID,
		Topic:          c.MQTT.Topic,
		QoS:            byte(c.MQTT.QoS),
		Username:       c.MQTT.Username,
		Password:       c.MQTT.Password,
		ConnectTimeout: time.Duration(c.MQTT.ConnectTimeout) * time.Second,
	}
}

// KeyBindings converts the keys section into bindings keyed by key code.
//
// Returns:
//   - trigger.KeyBindings: the bindings
//   - error: error naming an unknown or duplicate key
func (c *Config) KeyBindings() (trigger.KeyBindings, error) {
	named := make(map[string]trigger.Trigger, len(c.Keys))
	for key, k := range c.Keys {
		t := trigger.New(k.Sequence)
		t.Rig = k.Rig
		if k.MaxWeight != nil {
			t.MaxWeight = *k.MaxWeight
		}
		if k.FadeIn != nil {
			t.FadeIn = *k.FadeIn
		}
		if k.FadeOut != nil {
			t.FadeOut = *k.FadeOut
		}
		named[key] = t
	}
	return trigger.ParseKeyBindings(named)
}

// Clips builds the sequences declared without an asset file.
func (c *Config) Clips() []*graph.Clip {
	clips := make([]*graph.Clip, 0, len(c.Sequences))
	for _, s := range c.Sequences {
		clips = append(clips, graph.NewClip(s.ID, s.Duration, graph.ParseWrapMode(s.Wrap)))
	}
	return clips
}

func validWrap(s string) bool {
	switch s {
	case "", "hold", "loop", "none":
		return true
	}
	return false
}
