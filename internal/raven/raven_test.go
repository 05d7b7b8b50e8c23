package raven

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/config"
	"github.com/ravenlang/raven/internal/rlog"
	"github.com/ravenlang/raven/internal/vfs"
)

// stubCompiler returns an empty blueprint for any source, regardless of
// content — these tests only care about boot-time path resolution and
// hook dispatch, not the grammar.
type stubCompiler struct{}

func (stubCompiler) CompileBlueprint(virtPath, source string) (*blueprint.Blueprint, error) {
	return blueprint.New(virtPath), nil
}

func writeMudlibFile(t *testing.T, anchor, virtPath, source string) {
	t.Helper()
	real := filepath.Join(anchor, filepath.FromSlash(virtPath))
	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(real, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestContext(t *testing.T, withMaster bool) (*Context, string) {
	t.Helper()
	anchor := t.TempDir()
	writeMudlibFile(t, anchor, "/secure/base", "")
	if withMaster {
		writeMudlibFile(t, anchor, "/secure/master", "")
	}
	cfg := config.Defaults()
	cfg.MudlibPath = anchor
	ctx := New(cfg, stubCompiler{}, rlog.New("test"))
	return ctx, anchor
}

func TestBootFailsWithoutSecureBase(t *testing.T) {
	anchor := t.TempDir()
	cfg := config.Defaults()
	cfg.MudlibPath = anchor
	ctx := New(cfg, stubCompiler{}, rlog.New("test"))
	if err := ctx.Boot(); err == nil {
		t.Error("expected Boot to fail without /secure/base")
	}
}

func TestBootSucceedsAndLoadsMaster(t *testing.T) {
	ctx, _ := newTestContext(t, true)
	if err := ctx.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if ctx.master == nil {
		t.Error("expected /secure/master to be loaded as the master object")
	}
}

func TestBootSucceedsWithoutMaster(t *testing.T) {
	ctx, _ := newTestContext(t, false)
	if err := ctx.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if ctx.master != nil {
		t.Error("expected no master object when /secure/master is absent")
	}
}

func TestInvokeHookReturnsNilForUnimplementedMessage(t *testing.T) {
	ctx, _ := newTestContext(t, true)
	if err := ctx.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	before := ctx.Scheduler.Len()
	f := ctx.invokeHook(ctx.master, "no_such_hook", nil)
	if f != nil {
		t.Error("expected invokeHook to return nil for an unimplemented message")
	}
	if ctx.Scheduler.Len() != before {
		t.Error("expected no fiber to be spawned for an unimplemented message")
	}
}

func TestHeartbeatAddRemoveFire(t *testing.T) {
	ctx, _ := newTestContext(t, true)
	if err := ctx.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	obj := blueprint.Instantiate(ctx.master.Blueprint, ctx.Table)
	ctx.AddHeartbeat(obj)
	if ctx.heartbeatHead != obj {
		t.Fatal("expected obj to head the heartbeat list")
	}

	// Re-adding is a no-op, not a duplicate link.
	ctx.AddHeartbeat(obj)
	if obj.HeartbeatNext != nil {
		t.Error("expected re-adding the only entry not to self-loop")
	}

	before := ctx.Scheduler.Len()
	ctx.fireHeartbeats() // master.Blueprint has no heart_beat method; should no-op, not panic
	if ctx.Scheduler.Len() != before {
		t.Error("expected fireHeartbeats to spawn nothing for a blueprint without heart_beat")
	}

	ctx.RemoveHeartbeat(obj)
	if ctx.heartbeatHead != nil {
		t.Error("expected the heartbeat list to be empty after removal")
	}
}

func TestVFSAnchorMatchesConfig(t *testing.T) {
	ctx, anchor := newTestContext(t, true)
	if _, ok := ctx.VFS.FindBlueprint("/secure/base"); !ok {
		t.Error("expected /secure/base to resolve under the configured anchor")
	}
	_ = anchor
}

var _ = vfs.Compiler(stubCompiler{})
