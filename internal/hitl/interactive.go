package hitl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// InteractiveGateway asks questions on a terminal. When options are present
// and a TTY is attached it renders a selection menu; otherwise it falls back
// to plain line input.
type InteractiveGateway struct {
	in           io.Reader
	out          io.Writer
	timeout      time.Duration
	colorEnabled bool
}

// NewInteractiveGateway builds a terminal gateway. A zero timeout waits
// forever, which is the caller's problem per the blocking-mode contract.
func NewInteractiveGateway(timeout time.Duration, colorEnabled bool) *InteractiveGateway {
	return &InteractiveGateway{
		in:           os.Stdin,
		out:          os.Stdout,
		timeout:      timeout,
		colorEnabled: colorEnabled,
	}
}

func (g *InteractiveGateway) Ask(ctx context.Context, q Question) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	answerCh := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		answer, err := g.prompt(q)
		if err != nil {
			errCh <- err
			return
		}
		answerCh <- answer
	}()

	select {
	case answer := <-answerCh:
		return answer, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		fmt.Fprintln(g.out)
		return "", fmt.Errorf("no answer: %w", ctx.Err())
	}
}

func (g *InteractiveGateway) prompt(q Question) (string, error) {
	fmt.Fprintln(g.out)
	fmt.Fprintln(g.out, g.colorize(q.Question, color.FgYellow, color.Bold))

	if len(q.Options) > 0 && isTTY() {
		sel := promptui.Select{
			Label: "Choose (or pick 'other' to type freely)",
			Items: append(append([]string{}, q.Options...), "other"),
		}
		_, choice, err := sel.Run()
		if err != nil {
			return "", fmt.Errorf("selection failed: %w", err)
		}
		if choice != "other" {
			return choice, nil
		}
	} else if len(q.Options) > 0 {
		fmt.Fprintf(g.out, "Options: %s\n", strings.Join(q.Options, " / "))
	}

	fmt.Fprint(g.out, g.colorize("> ", color.FgCyan))
	reader := bufio.NewReader(g.in)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func (g *InteractiveGateway) colorize(text string, attributes ...color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	return color.New(attributes...).Sprint(text)
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
