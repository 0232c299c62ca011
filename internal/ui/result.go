package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is the box printed when a command finishes
type Result struct {
	Type   ResultType
	Title  string
	Fields []Field
	Error  error
	Hint   string // troubleshooting text shown under an error
	Width  int
}

// NewSuccessResult creates a success box
func NewSuccessResult(title string, fields ...Field) *Result {
	return &Result{Type: ResultSuccess, Title: title, Fields: fields, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure box
func NewFailureResult(title string, err error, hint string) *Result {
	return &Result{Type: ResultFailure, Title: title, Error: err, Hint: hint, Width: GetTerminalWidth()}
}

// NewWarningResult creates a warning box
func NewWarningResult(title string, fields ...Field) *Result {
	return &Result{Type: ResultWarning, Title: title, Fields: fields, Width: GetTerminalWidth()}
}

// SetWidth overrides the render width
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// Render returns the styled result box
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		color lipgloss.Color
		title string
	)
	switch r.Type {
	case ResultFailure:
		color = ErrorColor
		title = ErrorTitleStyle.Render(fmt.Sprintf("%s  FAILED  ─  %s", FailureMarker, r.Title))
	case ResultWarning:
		color = WarningColor
		title = WarningTitleStyle.Render(fmt.Sprintf("%s  WARNING  ─  %s", WarningMarker, r.Title))
	default:
		color = SuccessColor
		title = SuccessTitleStyle.Render(fmt.Sprintf("%s  SUCCESS  ─  %s", SuccessMarker, r.Title))
	}

	lines := []string{"", title, ""}
	if len(r.Fields) > 0 {
		lines = append(lines, renderFields(r.Fields), "")
	}
	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Width(width-8).Render("Error: "+r.Error.Error()), "")
	}
	if r.Hint != "" {
		lines = append(lines, HintStyle.Render(r.Hint), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) String() string {
	return r.Render()
}
