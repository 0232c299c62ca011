package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is a labelled value shown in headers and result boxes
type Field struct {
	Key   string
	Value string
}

// Header is the banner printed at the start of a command
type Header struct {
	Title   string  // e.g., "PROVISIONING PORTAL"
	Command string  // e.g., "wifiprov run"
	Fields  []Field // shown in order below a divider
	Width   int
}

// NewHeader creates a header sized to the terminal
func NewHeader(title, command string, fields ...Field) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Fields:  fields,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth overrides the render width
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	)

	content := top
	if len(h.Fields) > 0 {
		content = lipgloss.JoinVertical(lipgloss.Left, top, divider(width-6), renderFields(h.Fields))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(content)
}

func (h *Header) String() string {
	return h.Render()
}

// renderFields aligns field values on the longest key
func renderFields(fields []Field) string {
	keyWidth := 0
	for _, f := range fields {
		if n := lipgloss.Width(f.Key) + 1; n > keyWidth {
			keyWidth = n
		}
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		key := KeyStyle.Render(f.Key + ":" + strings.Repeat(" ", keyWidth-lipgloss.Width(f.Key)))
		value := ValueStyle.Render(f.Value)
		if f.Value == "" {
			value = EmptyValueStyle.Render("(empty)")
		}
		lines = append(lines, key+value)
	}
	return strings.Join(lines, "\n")
}
