package gate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	dangerStyle = dialogStyle.
			BorderForeground(lipgloss.Color("196"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Terminal is a line-oriented Gate and Notifier. It shares its reader with
// the caller so that confirmations and commands come from the same input.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal wraps in and out. Pass the same *bufio.Reader the caller reads
// commands from, otherwise buffered input is lost between them.
func NewTerminal(in *bufio.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Confirm renders the prompt and accepts only "y" or "yes". End of input
// counts as a decline.
func (t *Terminal) Confirm(ctx context.Context, p Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	style := dialogStyle
	if p.Danger {
		style = dangerStyle
	}
	label := p.ConfirmLabel
	if label == "" {
		label = "Confirm"
	}
	fmt.Fprintln(t.out, style.Render(titleStyle.Render(p.Title)+"\n"+p.Body))
	fmt.Fprintf(t.out, "%s? [y/N] ", label)

	line, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	if err == io.EOF && line == "" {
		fmt.Fprintln(t.out)
		return false, nil
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (t *Terminal) Progress(title string) func() {
	fmt.Fprintln(t.out, faintStyle.Render("… "+title))
	return func() {}
}

func (t *Terminal) Success(msg string) {
	fmt.Fprintln(t.out, successStyle.Render("✓ "+msg))
}

func (t *Terminal) Warn(msg string) {
	fmt.Fprintln(t.out, warnStyle.Render("! "+msg))
}

func (t *Terminal) Error(op string, err error) {
	fmt.Fprintln(t.out, errorStyle.Render(fmt.Sprintf("✗ %s failed: %v", op, err)))
}
