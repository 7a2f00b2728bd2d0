package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/kalambet/prefstate/pkg/datastore"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// statusOut receives status lines. It follows the running command's
// stderr so that status never mixes with values on stdout.
var statusOut io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func status(color, glyph, format string, args ...any) {
	fmt.Fprintln(statusOut, colorize(color, glyph+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { status(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { status(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { status(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { status(colorCyan, "→", format, args...) }

// colorFor reports whether output written to w may carry ANSI colour:
// colour is not disabled and w is a terminal.
func colorFor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && !noColor && term.IsTerminal(int(f.Fd()))
}

// entryLine renders one preference as "name (kind) = value".
func entryLine(name string, e datastore.Entry, color bool) string {
	kind := "(" + string(e.Kind) + ")"
	if !color {
		return name + " " + kind + " = " + e.Value
	}
	return fmt.Sprintf("%s %s = %s", colorBold+name+colorReset, colorDim+kind+colorReset, e.Value)
}
