// Package config loads the engine's YAML configuration (SPEC_FULL.md
// "AMBIENT STACK" / Configuration), with environment and CLI overrides
// layered on top per spec §6's mudlib-path resolution order.
package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/mod/semver"
	yaml "gopkg.in/yaml.v2"
)

// Config is the engine's full ambient configuration.
type Config struct {
	MudlibPath            string        `yaml:"mudlib_path"`
	TickInterval          time.Duration `yaml:"tick_interval"`
	HeartbeatInterval     time.Duration `yaml:"heartbeat_interval"`
	GCInterval            int           `yaml:"gc_interval"` // in scheduler ticks, spec §4.7
	SleepPollMillis       int           `yaml:"sleep_poll_millis"`
	ListenAddr            string        `yaml:"listen_addr"` // empty disables networking
	RequiresDriverVersion string        `yaml:"requires_driver_version"`
}

// Defaults returns the configuration every field falls back to absent an
// explicit YAML value (spec §4.8 "SleepPollMillis default 150").
func Defaults() Config {
	return Config{
		TickInterval:      50 * time.Millisecond,
		HeartbeatInterval: 2 * time.Second,
		GCInterval:        100,
		SleepPollMillis:   150,
	}
}

// Load reads a YAML config file at path, falling back to Defaults()
// field-by-field for anything the file omits. path may be empty, in
// which case Load returns Defaults() unchanged.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	// Unmarshal onto the zero value first so we can tell which fields the
	// file actually set, then merge those over the defaults — yaml.v2
	// has no notion of "field present vs default" on a pre-populated
	// struct, so the file is read into a raw struct of pointer fields,
	// where a nil pointer means the key was absent.
	var raw struct {
		MudlibPath             *string `yaml:"mudlib_path"`
		TickIntervalMillis     *int    `yaml:"tick_interval_ms"`
		HeartbeatIntervalMillis *int   `yaml:"heartbeat_interval_ms"`
		GCInterval             *int    `yaml:"gc_interval"`
		SleepPollMillis        *int    `yaml:"sleep_poll_millis"`
		ListenAddr             *string `yaml:"listen_addr"`
		RequiresDriverVersion  *string `yaml:"requires_driver_version"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if raw.MudlibPath != nil {
		cfg.MudlibPath = *raw.MudlibPath
	}
	if raw.TickIntervalMillis != nil {
		cfg.TickInterval = time.Duration(*raw.TickIntervalMillis) * time.Millisecond
	}
	if raw.HeartbeatIntervalMillis != nil {
		cfg.HeartbeatInterval = time.Duration(*raw.HeartbeatIntervalMillis) * time.Millisecond
	}
	if raw.GCInterval != nil {
		cfg.GCInterval = *raw.GCInterval
	}
	if raw.SleepPollMillis != nil {
		cfg.SleepPollMillis = *raw.SleepPollMillis
	}
	if raw.ListenAddr != nil {
		cfg.ListenAddr = *raw.ListenAddr
	}
	if raw.RequiresDriverVersion != nil {
		cfg.RequiresDriverVersion = *raw.RequiresDriverVersion
	}
	return cfg, nil
}

// ApplyOverrides layers the §6 mudlib-path resolution order onto cfg:
// the CLI positional argument wins if given, else RAVEN_MUDLIB, else
// whatever the YAML file already set.
func ApplyOverrides(cfg Config, cliMudlibPath string) Config {
	if cliMudlibPath != "" {
		cfg.MudlibPath = cliMudlibPath
		return cfg
	}
	if env := os.Getenv("RAVEN_MUDLIB"); env != "" {
		cfg.MudlibPath = env
	}
	return cfg
}

// CheckDriverVersion reports whether driverVersion satisfies cfg's
// RequiresDriverVersion semver constraint (a minimum version: the
// configured value must be <= the running driver's version). An empty
// constraint always passes. Exit code 2 on a mismatch per §6.
func CheckDriverVersion(cfg Config, driverVersion string) error {
	if cfg.RequiresDriverVersion == "" {
		return nil
	}
	want := cfg.RequiresDriverVersion
	if !semver.IsValid(want) {
		return fmt.Errorf("config: requires_driver_version %q is not valid semver", want)
	}
	if !semver.IsValid(driverVersion) {
		return fmt.Errorf("config: running driver version %q is not valid semver", driverVersion)
	}
	if semver.Compare(driverVersion, want) < 0 {
		return fmt.Errorf("config: driver %s does not satisfy required minimum %s", driverVersion, want)
	}
	return nil
}
