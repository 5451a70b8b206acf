package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// statusTone colors a status value by how much attention it deserves.
type statusTone int

const (
	toneInfo statusTone = iota
	toneGood
	toneWarn
	toneBad
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

const statusLabelWidth = 15

// statusHeading prints a section name; the section's rows follow indented.
func statusHeading(w io.Writer, name string, colorize bool) {
	if colorize {
		name = ansiBold + name + ansiReset
	}
	fmt.Fprintln(w, name)
}

func statusRow(w io.Writer, label, value string, tone statusTone, colorize bool) {
	if colorize {
		if color := toneColor(tone); color != "" {
			value = color + value + ansiReset
		}
	}
	fmt.Fprintf(w, "  %-*s %s\n", statusLabelWidth, label, value)
}

func toneColor(tone statusTone) string {
	switch tone {
	case toneGood:
		return ansiGreen
	case toneWarn:
		return ansiYellow
	case toneBad:
		return ansiRed
	default:
		return ""
	}
}

func colorEnabled(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
