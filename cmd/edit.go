package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/msalah0e/mindmap/internal/session"
	"github.com/msalah0e/mindmap/internal/ui"
	"github.com/msalah0e/mindmap/internal/view"
)

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <map>",
		Short: "Open a map in an interactive editing session",
		Long: `Opens the map and reads editing commands line by line. The session
keeps a selection: new nodes are added under it, and rm/edit without a
node act on it.

` + view.Usage,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := mustOpenApp()
			defer a.Close()

			m, sess := a.openMap(cmd.Context(), args[0], true)

			fd := int(os.Stdin.Fd())
			if !term.IsTerminal(fd) {
				repl(sess, m.ID, os.Stdin, os.Stdout)
				return
			}

			state, err := term.MakeRaw(fd)
			if err != nil {
				failf("terminal: %v", err)
			}
			defer term.Restore(fd, state)

			t := term.NewTerminal(struct {
				io.Reader
				io.Writer
			}{os.Stdin, os.Stdout}, prompt(m.Name))
			// Raw mode: background save failures go through the terminal so
			// they keep line endings and redraw the prompt.
			a.notifyTo(t)
			defer a.notifyTo(os.Stderr)
			ui.Banner(t, m.Name+` (type "help", "quit" to leave)`)
			fmt.Fprint(t, view.Render(sess))
			for {
				line, err := t.ReadLine()
				if err != nil {
					return
				}
				if !step(sess, m.ID, line, t) {
					return
				}
			}
		},
	}
}

func prompt(name string) string {
	return ui.Brand.Sprint(name) + "> "
}

// repl runs the editing loop over plain line input, as used with pipes.
func repl(sess *session.Session, mapID string, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if !step(sess, mapID, sc.Text(), out) {
			return
		}
	}
}

// step handles one input line and reports whether to keep going.
func step(sess *session.Session, mapID, line string, out io.Writer) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return true
	case "quit", "exit", "q":
		return false
	}

	c, err := view.Parse(line)
	if err != nil {
		ui.Notify(out, ui.FromError(err))
		return true
	}
	switch c.(type) {
	case view.Show:
		fmt.Fprint(out, indent(view.Render(sess)))
		return true
	case view.Help:
		fmt.Fprintln(out, view.Usage)
		return true
	}

	n := view.Dispatch(sess, c)
	ui.Notify(out, n)
	if n.Level == ui.LevelSuccess {
		record(actionName(c), mapID, n.Text)
	}
	return true
}
