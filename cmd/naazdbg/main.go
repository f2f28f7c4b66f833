// Command naazdbg is a line-oriented interactive debugger REPL over
// internal/debugtrace, grounded on original_source/tools/naaz_debugger.cpp's
// exec_context_t/handlers command table, using golang.org/x/term's
// readline-like line editor (term.NewTerminal) in place of the
// original's GNU readline, the way terminal_host.go reaches for
// golang.org/x/term for raw terminal handling.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/borzacchiello/naazgo/internal/bootstrap"
	"github.com/borzacchiello/naazgo/internal/debugtrace"
	"github.com/borzacchiello/naazgo/internal/expr"
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/state"
)

var regNames = []string{
	"RAX", "RCX", "RDX", "RBX", "RSP", "RBP", "RSI", "RDI",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
}

// execContext mirrors the original's exec_context_t: a selected
// current state plus the deferred (forked-but-unselected) and exited
// pools a REPL session accumulates.
type execContext struct {
	I        *interp.Interpreter
	current  *state.State
	deferred []*state.State
	exited   []*state.State
}

func (ctx *execContext) stateInfo(s *state.State) string {
	if s.IsLinkedFunction(s.PC()) {
		return s.LinkedModel(s.PC()).Name()
	}
	return ""
}

type command struct {
	name string
	help string
	run  func(ctx *execContext, out io.Writer, args []string)
}

var commands []command

func init() {
	commands = []command{
		{"help", "show available commands", cmdHelp},
		{"context", "show information about the current state", cmdContext},
		{"pcode", "list up to 16 instructions from pc with their addresses and bytes", cmdPcode},
		{"list", "list active/deferred/exited states", cmdList},
		{"select", "select <id>: select a new current state", cmdSelect},
		{"exec", "execute one basic block in the current state", cmdExec},
		{"exec-until", "exec-until <fork|nextblock>: execute until condition", cmdExecUntil},
		{"read", "read <addr|$reg> <len>: read len bytes starting from addr", cmdRead},
		{"pi", "show the path constraint of the current state", cmdPi},
	}
}

func cmdHelp(ctx *execContext, out io.Writer, args []string) {
	for _, c := range commands {
		fmt.Fprintf(out, "%-15s: %s\n", c.name, c.help)
	}
}

func cmdContext(ctx *execContext, out io.Writer, args []string) {
	if ctx.current == nil {
		fmt.Fprintln(out, " * no state selected")
		return
	}
	d := debugtrace.New(ctx.current, ctx.I, regNames)

	fmt.Fprintf(out, "\npc: 0x%x", ctx.current.PC())
	if info := ctx.stateInfo(ctx.current); info != "" {
		fmt.Fprintf(out, "  in linked function: %s", info)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nregisters:\n==========")
	for _, r := range d.GetRegisters() {
		if r.Symbolic {
			fmt.Fprintf(out, " %-13s <symbolic>\n", r.Name)
		} else {
			fmt.Fprintf(out, " %-13s 0x%x\n", r.Name, r.Value)
		}
	}
}

func cmdPcode(ctx *execContext, out io.Writer, args []string) {
	if ctx.current == nil {
		fmt.Fprintln(out, " * no state selected")
		return
	}
	d := debugtrace.New(ctx.current, ctx.I, regNames)
	lines := d.Disassemble(ctx.current.PC(), 16)
	for _, l := range lines {
		marker := " "
		if l.IsPC {
			marker = "*"
		}
		fmt.Fprintf(out, "%s 0x%x  %s\n", marker, l.Address, l.HexBytes)
	}
}

func cmdList(ctx *execContext, out io.Writer, args []string) {
	fmt.Fprintln(out, "current state:\n==============")
	if ctx.current != nil {
		fmt.Fprintf(out, " [*] 0x%x %s\n", ctx.current.PC(), ctx.stateInfo(ctx.current))
	} else {
		fmt.Fprintln(out, " * no state selected (use 'select' command to set it)")
	}

	if len(ctx.deferred) > 0 {
		fmt.Fprintln(out, "\ndeferred:\n=========")
		for i, s := range ctx.deferred {
			fmt.Fprintf(out, " [%d] 0x%x\n", i, s.PC())
		}
	}
	if len(ctx.exited) > 0 {
		fmt.Fprintln(out, "\nexited:\n=======")
		for i, s := range ctx.exited {
			fmt.Fprintf(out, " [%d] 0x%x exit=%d (%s)\n", i, s.PC(), s.Exit.Code, s.Exit.Reason)
		}
	}
}

func cmdSelect(ctx *execContext, out io.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(out, "!Err argument expected")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(out, "!Err invalid id %s\n", args[0])
		return
	}

	stash := func() {
		if ctx.current == nil {
			return
		}
		if ctx.current.Exited {
			ctx.exited = append(ctx.exited, ctx.current)
		} else {
			ctx.deferred = append(ctx.deferred, ctx.current)
		}
	}

	if id < len(ctx.deferred) {
		s := ctx.deferred[id]
		ctx.deferred = append(ctx.deferred[:id], ctx.deferred[id+1:]...)
		stash()
		ctx.current = s
		return
	}
	id -= len(ctx.deferred)
	if id >= 0 && id < len(ctx.exited) {
		s := ctx.exited[id]
		ctx.exited = append(ctx.exited[:id], ctx.exited[id+1:]...)
		stash()
		ctx.current = s
		return
	}
	fmt.Fprintf(out, "!Err invalid id %s\n", args[0])
}

func (ctx *execContext) absorb(succ state.Successors) {
	ctx.current = nil
	for i, a := range succ.Active {
		if i == 0 {
			ctx.current = a
		} else {
			ctx.deferred = append(ctx.deferred, a)
		}
	}
	ctx.exited = append(ctx.exited, succ.Exited...)
}

func cmdExec(ctx *execContext, out io.Writer, args []string) {
	if ctx.current == nil {
		fmt.Fprintln(out, " * no state selected")
		return
	}
	if ctx.current.Exited {
		fmt.Fprintln(out, "!Err cannot execute an exited state")
		return
	}
	fmt.Fprint(out, "executing... ")
	succ, err := ctx.I.ExecuteBasicBlock(ctx.current)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	ctx.absorb(succ)
	fmt.Fprintln(out, "done")
	cmdList(ctx, out, nil)
}

func cmdExecUntil(ctx *execContext, out io.Writer, args []string) {
	if ctx.current == nil {
		fmt.Fprintln(out, " * no state selected")
		return
	}
	if ctx.current.Exited {
		fmt.Fprintln(out, "!Err cannot execute an exited state")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(out, "!Err argument expected")
		return
	}
	switch args[0] {
	case "fork":
		fmt.Fprint(out, "executing until fork... ")
		for {
			succ, err := ctx.I.ExecuteBasicBlock(ctx.current)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return
			}
			ctx.absorb(succ)
			if len(succ.Active) != 1 || ctx.current == nil {
				break
			}
		}
	case "nextblock":
		fmt.Fprint(out, "executing until next block... ")
		oldPC := ctx.current.PC()
		for {
			succ, err := ctx.I.ExecuteBasicBlock(ctx.current)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return
			}
			ctx.absorb(succ)
			if ctx.current == nil || ctx.current.PC() != oldPC || len(succ.Active) != 1 {
				break
			}
		}
	default:
		fmt.Fprintf(out, "!Err unknown arg %q\n", args[0])
		return
	}
	fmt.Fprintln(out, "done")
	cmdList(ctx, out, nil)
}

func cmdRead(ctx *execContext, out io.Writer, args []string) {
	if ctx.current == nil {
		fmt.Fprintln(out, " * no state selected")
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(out, "!Err two arguments expected")
		return
	}
	d := debugtrace.New(ctx.current, ctx.I, regNames)

	var addr uint64
	if strings.HasPrefix(args[0], "$") {
		name := strings.TrimPrefix(args[0], "$")
		v, symbolic, ok := d.GetRegister(name)
		if !ok {
			fmt.Fprintf(out, "!Err unknown register %s\n", name)
			return
		}
		if symbolic {
			fmt.Fprintf(out, "!Err register %s is symbolic\n", name)
			return
		}
		addr = v
	} else {
		v, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
		if err != nil {
			fmt.Fprintf(out, "!Err invalid address %s\n", args[0])
			return
		}
		addr = v
	}

	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		fmt.Fprintf(out, "!Err invalid length %s\n", args[1])
		return
	}

	data, ok := d.ReadMemory(addr, uint32(n))
	if !ok {
		fmt.Fprintln(out, "<partially or fully symbolic>")
		return
	}
	fmt.Fprintf(out, "% x\n", data)
}

// formatExpr renders a node as a parenthesized prefix expression. There
// is no pretty-printer in internal/expr itself, so this walks Kind()/
// Children()/AsConst() directly, the same accessors debugtrace uses.
func formatExpr(n *expr.Node) string {
	switch n.Kind() {
	case expr.KindConst:
		return n.AsConst().HexString()
	case expr.KindBoolConst:
		return fmt.Sprintf("%v", n.AsBool())
	case expr.KindSym:
		return fmt.Sprintf("sym%d", n.SymID())
	}
	children := n.Children()
	if len(children) == 0 {
		return n.Kind().String()
	}
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = formatExpr(c)
	}
	return fmt.Sprintf("(%s %s)", n.Kind(), strings.Join(parts, " "))
}

func cmdPi(ctx *execContext, out io.Writer, args []string) {
	if ctx.current == nil {
		fmt.Fprintln(out, " * no state selected")
		return
	}
	// Each top-level conjunct added to the constraint manager is printed
	// on its own line, mirroring cmd_pi's BOOL_AND-splitting in the
	// original debugger.
	for i, c := range ctx.current.Solver.Manager().All() {
		fmt.Fprintf(out, " [%d] %s\n", i, formatExpr(c))
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <bin> [args...]\n", os.Args[0])
		os.Exit(1)
	}

	fmt.Print(" _  _    __      __    ____     ____  ____   ___ \n" +
		"( \\( )  /__\\    /__\\  (_   )___(  _ \\(  _ \\ / __)\n" +
		" )  (  /(__)\\  /(__)\\  / /_(___))(_) )) _ <( (_-.\n" +
		"(_)\\_)(__)(__)(__)(__)(____)   (____/(____/ \\___/\n\n")

	progArgs := os.Args[1:]
	s, I, err := bootstrap.EntryState(os.Args[1], progArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "naazdbg: %v\n", err)
		os.Exit(1)
	}
	ctx := &execContext{I: I, current: s}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		runPlainREPL(ctx)
		return
	}
	defer term.Restore(fd, oldState)

	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	t := term.NewTerminal(screen, "naazdbg> ")

	for {
		line, err := t.ReadLine()
		if err != nil {
			break
		}
		dispatch(ctx, t, line)
	}
}

// runPlainREPL is the fallback path when stdin is not a terminal (a
// pipe or file, as in scripted/non-interactive use): read plain lines,
// no history or line editing.
func runPlainREPL(ctx *execContext) {
	var buf [4096]byte
	reader := os.Stdin
	var pending string
	for {
		n, err := reader.Read(buf[:])
		if n > 0 {
			pending += string(buf[:n])
			for {
				idx := strings.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := pending[:idx]
				pending = pending[idx+1:]
				dispatch(ctx, os.Stdout, line)
			}
		}
		if err != nil {
			return
		}
	}
}

func dispatch(ctx *execContext, out io.Writer, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	for _, c := range commands {
		if c.name == fields[0] {
			c.run(ctx, out, fields[1:])
			return
		}
	}
	fmt.Fprintf(out, "!Err unknown command %q\n", fields[0])
}
