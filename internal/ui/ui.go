package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/msalah0e/mindmap/internal/apperr"
)

// Brand colors
var (
	Brand  = color.New(color.FgHiMagenta, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Info   = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

const Mark = "◉" // ◉

// Banner prints the mindmap banner.
func Banner(w io.Writer, subtitle string) {
	fmt.Fprintf(w, "%s %s: %s\n\n", Mark, Brand.Sprint("mindmap"), subtitle)
}

// Level is the severity of a Notice.
type Level int

const (
	LevelSuccess Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// Notice is a user-visible message: the toast of a terminal program.
type Notice struct {
	Level Level
	Text  string
}

// Success, Infof and Warning build notices.
func Success(format string, args ...any) Notice {
	return Notice{Level: LevelSuccess, Text: fmt.Sprintf(format, args...)}
}

func Infof(format string, args ...any) Notice {
	return Notice{Level: LevelInfo, Text: fmt.Sprintf(format, args...)}
}

func Warning(format string, args ...any) Notice {
	return Notice{Level: LevelWarning, Text: fmt.Sprintf(format, args...)}
}

// FromError turns an error into a notice. Offline errors are warnings:
// the local change was kept.
func FromError(err error) Notice {
	text := apperr.Kind(err) + ": " + apperr.Message(err)
	if errors.Is(err, apperr.ErrRemoteUnavailable) {
		return Notice{Level: LevelWarning, Text: text}
	}
	return Notice{Level: LevelError, Text: text}
}

// Icon returns the colored icon for the notice level.
func (n Notice) Icon() string {
	switch n.Level {
	case LevelSuccess:
		return StatusIcon(true)
	case LevelWarning:
		return WarnIcon()
	case LevelError:
		return StatusIcon(false)
	default:
		return Info.Sprint("ℹ")
	}
}

func (n Notice) String() string {
	return n.Icon() + " " + n.Text
}

// Notify prints a notice on its own line.
func Notify(w io.Writer, n Notice) {
	fmt.Fprintln(w, "  "+n.String())
}

// Table prints a simple aligned table.
func Table(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	headerLine := "  "
	sepLine := "  "
	for i, h := range headers {
		headerLine += fmt.Sprintf("%-*s  ", widths[i], h)
		sepLine += strings.Repeat("─", widths[i]) + "  "
	}
	Subtle.Fprintln(w, strings.TrimRight(headerLine, " "))
	Subtle.Fprintln(w, strings.TrimRight(sepLine, " "))

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				line += fmt.Sprintf("%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// StatusIcon returns a status icon string.
func StatusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}

// WarnIcon returns a warning icon.
func WarnIcon() string {
	return Warn.Sprint("⚠")
}
