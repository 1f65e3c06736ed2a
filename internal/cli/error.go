package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"
)

const (
	defaultErrorWidth = 80
	errorIndent       = 2
)

func ErrorHandler(w io.Writer, styles fang.Styles, err error) {
	mustN(fmt.Fprintln(w, styles.ErrorHeader.String()))
	mustN(fmt.Fprintln(w, lipgloss.NewStyle().MarginLeft(errorIndent).Render(wrapError(err, errorWidth(w)))))
	mustN(fmt.Fprintln(w))
	if isUsageError(err) {
		mustN(fmt.Fprintln(w, lipgloss.JoinHorizontal(
			lipgloss.Left,
			styles.ErrorText.UnsetWidth().Render("Try"),
			styles.Program.Flag.Render("--help"),
			styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
		)))
		mustN(fmt.Fprintln(w))
	}
}

// wrapError word-wraps each line of the error message. Lines from YAML
// source excerpts are left alone so their columns stay aligned.
func wrapError(err error, width int) string {
	lines := strings.Split(err.Error(), "\n")
	for i, line := range lines {
		if strings.Contains(line, " | ") {
			continue
		}

		lines[i] = wordwrap.String(line, width)
	}

	return strings.Join(lines, "\n")
}

func errorWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultErrorWidth - errorIndent
	}

	width, _, err := term.GetSize(int(f.Fd())) //nolint:gosec // File descriptors fit in int.
	if err != nil || width <= errorIndent {
		return defaultErrorWidth - errorIndent
	}

	return width - errorIndent
}

// XXX: this is a hack to detect usage errors.
// See: https://github.com/spf13/cobra/pull/2266
func isUsageError(err error) bool {
	s := err.Error()
	for _, prefix := range []string{
		"flag needs an argument:",
		"unknown flag:",
		"unknown shorthand flag:",
		"unknown command",
		"invalid argument",
		"required flag(s)",
	} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func mustN(_ int, err error) {
	must(err)
}
