package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blockapps/kieren-clone/internal/core/ports"
)

// Provider collects decisions from an interactive terminal. Empty
// input accepts, "new" regenerates, "manual"/"m" switches to a
// hand-written reply, anything else is feedback. EOF aborts.
type Provider struct {
	In  *bufio.Reader
	Out io.Writer
}

func NewProvider() *Provider {
	return &Provider{In: bufio.NewReader(os.Stdin), Out: os.Stdout}
}

var _ ports.DecisionProvider = (*Provider)(nil)

func (p *Provider) Decide(ctx context.Context, c ports.Candidate) (ports.Decision, error) {
	if c.Text != "" {
		if c.DuplicateOf != "" {
			fmt.Fprintln(p.Out, "[WARNING] Generated reply is very similar to a past tweet:")
			fmt.Fprintf(p.Out, "Past tweet: %s\n", c.DuplicateOf)
		}
		fmt.Fprintf(p.Out, "\nGenerated reply:\n%s\n", c.Text)
	}

	line, err := p.readLine(ctx, "Feedback for the AI (or press Enter to accept and post this reply, type 'new' for a radically different attempt, or 'manual' to write your own reply): ")
	if err != nil {
		return ports.Decision{Kind: ports.DecisionAbort}, err
	}

	switch strings.ToLower(line) {
	case "":
		return ports.Decision{Kind: ports.DecisionAccept}, nil
	case "new":
		return ports.Decision{Kind: ports.DecisionRegenerate}, nil
	case "manual", "m":
		return ports.Decision{Kind: ports.DecisionManual}, nil
	default:
		return ports.Decision{Kind: ports.DecisionFeedback, Text: line}, nil
	}
}

func (p *Provider) Confirm(ctx context.Context, prompt string) (bool, error) {
	line, err := p.readLine(ctx, prompt)
	if err != nil {
		return false, err
	}
	return strings.ToLower(line) == "y", nil
}

func (p *Provider) Compose(ctx context.Context, prompt string) (string, error) {
	return p.readLine(ctx, prompt)
}

func (p *Provider) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.Out, prompt)
	line, err := p.In.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
