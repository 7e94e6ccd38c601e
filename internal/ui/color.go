package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chriserin/rulec/internal/parser"
)

var (
	newStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	updStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	trkStyle     = lipgloss.NewStyle().Faint(true)
	delStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Faint(true)
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// RuleLine prints one stored rule and how the run changed it.
func RuleLine(w io.Writer, change, id string, version int) {
	var tag string
	switch change {
	case "new":
		tag = newStyle.Render("new")
	case "upd":
		tag = updStyle.Render("upd")
	case "del":
		tag = delStyle.Render("del")
	default:
		tag = trkStyle.Render("trk")
	}
	fmt.Fprintf(w, "%s  %s v%d\n", tag, id, version)
}

// DiagnosticLine prints a diagnostic with its severity colored.
func DiagnosticLine(w io.Writer, d parser.Diagnostic) {
	var sev string
	switch d.Severity {
	case parser.SeverityError:
		sev = errorStyle.Render(string(d.Severity))
	case parser.SeverityWarning:
		sev = warningStyle.Render(string(d.Severity))
	default:
		sev = infoStyle.Render(string(d.Severity))
	}
	loc := d.Document
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.Document, d.Line)
	}
	rule := ""
	if d.RuleID != "" {
		rule = " " + d.RuleID + ":"
	}
	fmt.Fprintf(w, "%s  %s %s%s %s\n", sev, loc, labelStyle.Render("["+string(d.Kind)+"]"), rule, d.Message)
}

// SummaryLine prints the totals of a compile.
func SummaryLine(w io.Writer, documents, rules, skipped, diagnostics int) {
	fmt.Fprintf(w, "compiled %d rules from %d documents (%d skipped, %d diagnostics)\n",
		rules, documents, skipped, diagnostics)
}

// WroteLine reports an artifact written to disk.
func WroteLine(w io.Writer, path string, count int) {
	fmt.Fprintf(w, "%s  %s (%d rules)\n", newStyle.Render("wrote"), path, count)
}

// ListRow prints one row of `rulec list`, padded to the given widths.
func ListRow(w io.Writer, id, category string, version, priority, conditions int, enabled bool, idWidth, catWidth int) {
	state := "on"
	if !enabled {
		state = offStyle.Render("off")
	}
	fmt.Fprintf(w, "%-*s  %-*s  v%-3d p%-3d %2d cond  %s\n",
		idWidth, id, catWidth, category, version, priority, conditions, state)
}

// ShowHeader prints the heading of `rulec show`.
func ShowHeader(w io.Writer, id string, version int, document string, line int) {
	fmt.Fprintf(w, "%s v%d  %s\n", headerStyle.Render(id), version, labelStyle.Render(fmt.Sprintf("%s:%d", document, line)))
}

// ShowField prints one labelled value.
func ShowField(w io.Writer, label, value string) {
	label += ":"
	pad := strings.Repeat(" ", max(1, 14-len(label)))
	fmt.Fprintf(w, "%s%s%s\n", labelStyle.Render(label), pad, value)
}

// ShowCondition prints one normalized condition.
func ShowCondition(w io.Writer, c parser.ConditionRecord) {
	fmt.Fprintf(w, "  %s %s %s\n", c.Var, c.Op, c.Value.String())
}

// ShowMessage prints one message line.
func ShowMessage(w io.Writer, text string, weight int, active bool) {
	state := ""
	if !active {
		state = " " + offStyle.Render("(inactive)")
	}
	fmt.Fprintf(w, "  [%d] %s%s\n", weight, text, state)
}

// Join renders a list for ShowField.
func Join(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
