package ops

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aymanbagabas/go-osc52/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/errors"
)

// Terminal multiplexers that need OSC 52 wrapped in a passthrough sequence.
const (
	MultiplexerNone   = ""
	MultiplexerTmux   = "tmux"
	MultiplexerScreen = "screen"
)

// DetectMultiplexer inspects TMUX and TERM.
func DetectMultiplexer(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	term := getenv("TERM")
	switch {
	case getenv("TMUX") != "", strings.HasPrefix(term, "tmux"):
		return MultiplexerTmux
	case getenv("STY") != "", strings.HasPrefix(term, "screen"):
		return MultiplexerScreen
	default:
		return MultiplexerNone
	}
}

// ShareInput contains parameters for the Share operation.
type ShareInput struct {
	Workspace   string
	Out         io.Writer // the terminal
	Multiplexer string
}

// ShareOutput contains the result of the Share operation.
type ShareOutput struct {
	Workspace string `json:"workspace"`
	Method    string `json:"method"`
	Items     int    `json:"items"`
	Tokens    int    `json:"tokens"`
	Bytes     int    `json:"bytes"`
}

// Share copies the export text to the system clipboard by writing an OSC 52
// escape sequence to the terminal.
func (d *Deps) Share(ctx context.Context, input ShareInput) (out *ShareOutput, err error) {
	defer d.observe("share", time.Now(), &err)

	if input.Out == nil {
		return nil, errors.NewInvalidRequest("share needs a terminal to write to")
	}
	acc, err := d.view(ctx, "share", input.Workspace)
	if err != nil {
		return nil, err
	}
	if acc.Len() == 0 {
		return nil, errors.NewInvalidRequest("nothing to share: the workspace is empty")
	}
	text := acc.Export()

	seq := osc52.New(text)
	switch input.Multiplexer {
	case MultiplexerTmux:
		seq = seq.Tmux()
	case MultiplexerScreen:
		seq = seq.Screen()
	}
	if _, err := seq.WriteTo(input.Out); err != nil {
		return nil, errors.NewInternal(err)
	}

	norm, _ := workspaceName(input.Workspace)
	d.logger().Info("context shared", zap.String("workspace", norm), zap.String("multiplexer", input.Multiplexer), zap.Int("bytes", len(text)))
	return &ShareOutput{
		Workspace: norm,
		Method:    "osc52",
		Items:     acc.Len(),
		Tokens:    acc.TotalWeight(),
		Bytes:     len(text),
	}, nil
}
