package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm prints a warning box listing consequences and asks the user to
// type word to proceed. It returns false on any other input or a read error.
func Confirm(in io.Reader, out io.Writer, title string, consequences []string, word string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("%s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, c := range consequences {
		lines = append(lines, ValueStyle.Render("• "+c))
	}
	lines = append(lines, "")

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("Type %q to proceed: ", word)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == word {
		return true
	}
	_, _ = fmt.Fprintln(out, HintStyle.Render("Cancelled."))
	return false
}
