package shell

import (
	"fmt"
	"strings"

	"console/internal/client"
	"console/internal/permission"
	"console/internal/syncengine"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	grantedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const (
	glyphGranted = "✓"
	glyphDenied  = "·"
	glyphPending = "…"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true)
			}
			return cellStyle
		})
}

func renderRoles(roles []client.Role, selectedID string) string {
	if len(roles) == 0 {
		return faintStyle.Render("no roles")
	}
	t := newTable("", "Name", "ID")
	for _, r := range roles {
		marker := ""
		if r.ID == selectedID {
			marker = "▶"
		}
		t.Row(marker, r.Name, r.ID)
	}
	return t.Render()
}

func renderModules(modules []client.Module) string {
	if len(modules) == 0 {
		return faintStyle.Render("no modules loaded")
	}
	t := newTable("Module", "ID")
	for _, m := range modules {
		t.Row(m.Name, m.ID)
	}
	return t.Render()
}

// renderMatrix draws one row per module and one column per kind. Cells with a
// toggle in flight show as pending.
func renderMatrix(role string, m permission.Matrix, state func(string, permission.Kind) syncengine.CellState, dirty bool) string {
	headers := []string{"Module"}
	for _, k := range permission.Kinds {
		headers = append(headers, string(k))
	}
	t := newTable(headers...)
	for _, module := range m.Modules() {
		row := []string{module}
		for _, k := range permission.Kinds {
			row = append(row, glyph(m.Get(module, k), state(module, k)))
		}
		t.Row(row...)
	}

	title := headerStyle.Render(role)
	if dirty {
		title += " " + pendingStyle.Render("(unsaved changes)")
	}
	return title + "\n" + t.Render()
}

func glyph(granted bool, state syncengine.CellState) string {
	switch {
	case state == syncengine.Confirming || state == syncengine.Applying:
		return pendingStyle.Render(glyphPending)
	case granted:
		return grantedStyle.Render(glyphGranted)
	default:
		return faintStyle.Render(glyphDenied)
	}
}

func renderHelp(order []string, commands map[string]command) string {
	width := 0
	for _, name := range order {
		if n := len(commands[name].usage); n > width {
			width = n
		}
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Commands") + "\n")
	for _, name := range order {
		c := commands[name]
		fmt.Fprintf(&b, "  %-*s  %s\n", width, c.usage, faintStyle.Render(c.summary))
	}
	fmt.Fprintf(&b, "  %s\n", faintStyle.Render("kinds: "+kindList()))
	return strings.TrimRight(b.String(), "\n")
}

func kindList() string {
	names := make([]string, len(permission.Kinds))
	for i, k := range permission.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
