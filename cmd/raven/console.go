package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ravenlang/raven/internal/blueprint"
	"github.com/ravenlang/raven/internal/compiler"
	"github.com/ravenlang/raven/internal/config"
	"github.com/ravenlang/raven/internal/fiber"
	"github.com/ravenlang/raven/internal/raven"
	"github.com/ravenlang/raven/internal/rlog"
	"github.com/ravenlang/raven/internal/value"
)

// newConsoleCmd attaches the admin REPL (§AMBIENT "CLI"): every line read
// is compiled as the body of a synthesized `__eval` function on a fresh
// throwaway blueprint and run to completion as its own fiber — the third
// of the three fiber-creation triggers spec §3 names (incoming
// connection, call-out, script evaluation) — with whatever ends up in
// the accumulator, or the crash reason if it threw, printed back.
func newConsoleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "console [mudlib-dir]",
		Short: "boot the mudlib without networking and attach a local eval REPL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, args, "")
			if err != nil {
				return &bootError{err}
			}
			cfg.ListenAddr = "" // the console never opens a network listener
			log := rlog.New("console")
			ctx, comp, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			return runConsole(ctx, comp)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

func runConsole(ctx *raven.Context, comp *compiler.Compiler) error {
	rl, err := readline.New("raven> ")
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "raven console — mudlib %s, type an expression or statement\n", ctx.Config.MudlibPath)

	n := 0
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return fmt.Errorf("console: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n++
		result, err := evalLine(ctx, comp, n, line)
		if err != nil {
			fmt.Fprintf(rl.Stdout(), "error: %v\n", err)
			continue
		}
		fmt.Fprintln(rl.Stdout(), result)
	}
}

// evalLine synthesizes `mixed __eval() { <body> }`, compiles it as a
// one-off blueprint, instantiates it, and drives its fiber to
// completion. A body that already looks like a full statement (ends in
// `;` or `}`) is spliced in verbatim; otherwise it's treated as a bare
// expression and wrapped in a `return`, matching the convention of a
// debugger REPL that evaluates whatever you type.
func evalLine(ctx *raven.Context, comp *compiler.Compiler, n int, body string) (string, error) {
	if !strings.HasSuffix(body, ";") && !strings.HasSuffix(body, "}") {
		body = "return (" + body + ");"
	}
	source := "mixed __eval() {\n" + body + "\n}"
	virtPath := fmt.Sprintf("/console/eval-%d", n)

	bp, err := comp.CompileBlueprint(virtPath, source)
	if err != nil {
		return "", err
	}
	obj := blueprint.Instantiate(bp, ctx.Table)

	sym := ctx.Table.Find("__eval")
	fn, ok := obj.Blueprint.Lookup(sym, 0, true)
	if !ok {
		return "", fmt.Errorf("console: internal: synthesized __eval not found")
	}

	f := ctx.Scheduler.Spawn()
	f.Push(value.Ptr(obj))
	f.PushFrame(fn, 0, nil)

	// A synthesized eval function is expected to run to completion in a
	// handful of bursts; a line that blocks on sleep()/input_line() (no
	// network connection is bound here to ever answer it) would spin the
	// tick loop forever otherwise, so this bails out with a diagnostic
	// rather than hanging the console.
	const maxTicks = 10000
	for i := 0; f.State() != fiber.Stopped && f.State() != fiber.Crashed; i++ {
		if i >= maxTicks {
			return "", fmt.Errorf("console: still %s after %d ticks (does this block on input/sleep?)", f.State(), maxTicks)
		}
		ctx.Scheduler.Tick()
	}

	switch f.State() {
	case fiber.Crashed:
		return "", fmt.Errorf("%s", f.CrashReason())
	default:
		return formatValue(f.Accumulator()), nil
	}
}

func formatValue(v value.Any) string {
	if v.IsNil() {
		return "nil"
	}
	if v.IsInt() {
		return fmt.Sprintf("%d", v.IntValue())
	}
	if v.IsChar() {
		return fmt.Sprintf("'%c'", v.CharValue())
	}
	if !v.IsPtr() {
		return "<value>"
	}
	kind, ok := v.Kind()
	if !ok {
		return "<heap object>"
	}
	switch kind {
	case value.KindString:
		return fmt.Sprintf("%q", v.Ptr().(*value.String).Value)
	case value.KindArray:
		return fmt.Sprintf("({ %d elements })", v.Ptr().(*value.Array).Len())
	case value.KindMapping:
		return fmt.Sprintf("([ %d entries ])", v.Ptr().(*value.Mapping).Len())
	case value.KindObject:
		return fmt.Sprintf("<object %s>", v.Ptr().(*blueprint.Object).Blueprint.VirtPath)
	default:
		return fmt.Sprintf("<%s>", kind)
	}
}
