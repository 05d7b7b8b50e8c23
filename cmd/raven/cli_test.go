package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ravenlang/raven/internal/rlog"
)

func TestLoadConfigRequiresAMudlibPath(t *testing.T) {
	os.Unsetenv("RAVEN_MUDLIB")
	if _, err := loadConfig("", nil, ""); err == nil {
		t.Fatal("expected an error when no mudlib path is given anywhere")
	}
}

func TestLoadConfigPositionalArgWins(t *testing.T) {
	t.Setenv("RAVEN_MUDLIB", "/env/path")
	cfg, err := loadConfig("", []string{"/cli/path"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MudlibPath != "/cli/path" {
		t.Errorf("expected CLI arg to win, got %q", cfg.MudlibPath)
	}
}

func TestLoadConfigListenFlagOverridesConfig(t *testing.T) {
	cfg, err := loadConfig("", []string{"/some/path"}, ":5000")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Errorf("expected --listen to override, got %q", cfg.ListenAddr)
	}
}

func TestExitCodeForBootAndVersionErrors(t *testing.T) {
	if got := exitCodeFor(&bootError{os.ErrNotExist}); got != 1 {
		t.Errorf("boot error: expected exit 1, got %d", got)
	}
	if got := exitCodeFor(&versionError{os.ErrNotExist}); got != 2 {
		t.Errorf("version error: expected exit 2, got %d", got)
	}
}

func TestNewEngineBootsAMinimalMudlib(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "secure"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secure", "base"), []byte("inherit;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig("", []string{dir}, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, comp, err := newEngine(cfg, rlog.New("test"))
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	if ctx.Table == nil || comp.Table != ctx.Table {
		t.Error("expected the compiler's Table to be rebound to the engine's Table")
	}
	if comp.Resolver == nil {
		t.Error("expected the compiler's Resolver to be rebound to the engine's VFS")
	}
}

func TestNewEngineFailsWithoutSecureBase(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig("", []string{dir}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := newEngine(cfg, rlog.New("test")); err == nil {
		t.Fatal("expected boot to fail without /secure/base")
	} else if !isBootError(err) {
		t.Errorf("expected a *bootError, got %T", err)
	}
}

func TestEvalLineEvaluatesAnExpression(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "secure"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secure", "base"), []byte("inherit;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig("", []string{dir}, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, comp, err := newEngine(cfg, rlog.New("test"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := evalLine(ctx, comp, 1, "1 + 2")
	if err != nil {
		t.Fatal(err)
	}
	if result != "3" {
		t.Errorf("expected \"3\", got %q", result)
	}
}

func TestEvalLineReportsASyntaxError(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "secure"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secure", "base"), []byte("inherit;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig("", []string{dir}, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, comp, err := newEngine(cfg, rlog.New("test"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := evalLine(ctx, comp, 1, "int x = ;"); err == nil {
		t.Fatal("expected a syntax error")
	}
}
