package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "raven.yaml")
	yaml := "mudlib_path: /srv/mudlib\ntick_interval_ms: 25\nlisten_addr: \":4000\"\n"
	if err := os.WriteFile(p, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MudlibPath != "/srv/mudlib" {
		t.Errorf("MudlibPath = %q", cfg.MudlibPath)
	}
	if cfg.TickInterval != 25*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if cfg.ListenAddr != ":4000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	// Untouched fields keep their defaults.
	if cfg.SleepPollMillis != 150 {
		t.Errorf("SleepPollMillis = %d, want default 150", cfg.SleepPollMillis)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Defaults() {
		t.Errorf("expected Load(\"\") to equal Defaults()")
	}
}

func TestApplyOverridesPrefersCLIThenEnv(t *testing.T) {
	base := Config{MudlibPath: "/from/yaml"}

	withCLI := ApplyOverrides(base, "/from/cli")
	if withCLI.MudlibPath != "/from/cli" {
		t.Errorf("expected CLI arg to win, got %q", withCLI.MudlibPath)
	}

	t.Setenv("RAVEN_MUDLIB", "/from/env")
	withEnv := ApplyOverrides(base, "")
	if withEnv.MudlibPath != "/from/env" {
		t.Errorf("expected env var to win absent a CLI arg, got %q", withEnv.MudlibPath)
	}
}

func TestCheckDriverVersion(t *testing.T) {
	cfg := Config{RequiresDriverVersion: "v1.2.0"}
	if err := CheckDriverVersion(cfg, "v1.3.0"); err != nil {
		t.Errorf("expected v1.3.0 to satisfy >= v1.2.0, got %v", err)
	}
	if err := CheckDriverVersion(cfg, "v1.1.0"); err == nil {
		t.Error("expected v1.1.0 to fail the >= v1.2.0 requirement")
	}
	if err := CheckDriverVersion(Config{}, "v0.0.1"); err != nil {
		t.Errorf("expected an empty requirement to always pass, got %v", err)
	}
}
