package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// Prompter implements ConfirmationPrompter on stdin/stdout. An unanswered
// prompt times out and is reported as a distinct outcome so the orchestrator
// can skip feedback for it.
type Prompter struct {
	in      *bufio.Reader
	out     io.Writer
	timeout time.Duration
	enabled bool
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer, settings domain.InteractionSettings) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prompter{
		in:      bufio.NewReader(in),
		out:     out,
		timeout: timeout,
		enabled: settings.Enabled,
	}
}

// Enabled indicates the prompter is interactive.
func (p *Prompter) Enabled() bool {
	return p.enabled
}

// Confirm shows the command with its metrics and waits for y/N until the
// timeout elapses.
func (p *Prompter) Confirm(command, source string, confidence, similarity float64) (domain.ConfirmationResult, error) {
	fmt.Fprintf(p.out, "\n%s %s\n", color.CyanString("[%s]", source), command)
	fmt.Fprintf(p.out, "%s\n", color.New(color.Faint).Sprintf(
		"confidence: %.1f%%  similarity: %.1f%%", confidence*100, similarity*100))
	fmt.Fprintf(p.out, "Use this command? [y/N]: ")

	type answer struct {
		line string
		err  error
	}
	// The reader goroutine stays blocked on stdin after a timeout; the
	// buffered channel lets it finish without a receiver, and the one-shot
	// process exits before the leak matters.
	lines := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		lines <- answer{line: line, err: err}
	}()

	select {
	case a := <-lines:
		if a.err != nil {
			return domain.ResultRejected, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return domain.ResultConfirmed, nil
		default:
			return domain.ResultRejected, nil
		}
	case <-time.After(p.timeout):
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, color.YellowString("No answer within %s.", p.timeout))
		return domain.ResultTimedOut, nil
	}
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
