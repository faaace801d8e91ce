package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/hpungsan/buddy/internal/accumulator"
	"github.com/hpungsan/buddy/internal/ops"
)

// promptConfirmer asks the user before evicting.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

// ConfirmEviction lists the victims and reads a yes/no answer.
func (p *promptConfirmer) ConfirmEviction(ctx context.Context, plan accumulator.EvictionPlan) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "Adding %s tokens exceeds capacity (%s of %s used).\n",
		humanize.Comma(int64(plan.Incoming)), humanize.Comma(int64(plan.Total)), humanize.Comma(int64(plan.Capacity)))
	fmt.Fprintf(p.out, "Evicting the %d oldest item(s) frees %s tokens:\n", len(plan.Victims), humanize.Comma(int64(plan.FreedWeight)))
	for _, v := range plan.Victims {
		fmt.Fprintf(p.out, "  - %s (%s tokens, added %s)\n", v.DisplayName, humanize.Comma(int64(v.SizeEstimate)), humanize.Time(v.AddedAt))
	}
	return askYesNo(p.in, p.out, "Evict and continue? [y/N] ")
}

// askYesNo prints prompt and reads one line. Only "y" and "yes" accept.
func askYesNo(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// newTerminalEnv inspects the process's stdio. Piped stdin becomes content;
// prompts and OSC 52 go to the controlling terminal, found through stdin or
// /dev/tty.
func newTerminalEnv(deps *ops.Deps) *cliEnv {
	env := &cliEnv{deps: deps, getenv: os.Getenv}

	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	if !stdinTTY {
		env.stdin = os.Stdin
	}

	switch {
	case stdinTTY && term.IsTerminal(int(os.Stdout.Fd())):
		env.tty = stdioTerminal{}
	default:
		if f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
			if term.IsTerminal(int(f.Fd())) {
				env.tty = f
				env.closers = append(env.closers, f)
			} else {
				_ = f.Close()
			}
		}
	}
	return env
}

// stdioTerminal reads answers from stdin and writes prompts and escape
// sequences to stderr, leaving stdout for JSON.
type stdioTerminal struct{}

func (stdioTerminal) Read(p []byte) (int, error) { return os.Stdin.Read(p) }

func (stdioTerminal) Write(p []byte) (int, error) { return os.Stderr.Write(p) }
