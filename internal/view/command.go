// Package view is the boundary between gestures and the editing session.
// Input lines become typed commands; commands are applied to a session and
// every outcome, failures included, comes back as a ui.Notice.
package view

import (
	"strconv"
	"strings"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/graph"
)

// Command is a single editing gesture.
type Command interface {
	command()
}

// Node references in commands are resolved against the open map: a full
// id, a unique id suffix or a unique label. An empty reference means the
// selected node.

// AddNode adds a node, as a child of the selection if there is one.
type AddNode struct {
	Label    string
	Position *graph.Position
}

// RemoveNode removes a node and its edges.
type RemoveNode struct{ Ref string }

// EditNode relabels a node.
type EditNode struct{ Ref, Label string }

// Connect links two nodes.
type Connect struct{ Source, Target string }

// Disconnect removes the link between two nodes.
type Disconnect struct{ Source, Target string }

// Select changes the selection. An empty Ref clears it.
type Select struct{ Ref string }

// Move repositions a node.
type Move struct {
	Ref      string
	Position graph.Position
}

// Show asks for the map to be rendered.
type Show struct{}

// Help asks for the command summary.
type Help struct{}

func (AddNode) command()    {}
func (RemoveNode) command() {}
func (EditNode) command()   {}
func (Connect) command()    {}
func (Disconnect) command() {}
func (Select) command()     {}
func (Move) command()       {}
func (Show) command()       {}
func (Help) command()       {}

// Usage is the command summary printed by Help.
const Usage = `  add <label> [@x,y]        add a node (child of the selection)
  rm [node]                 remove a node, default the selection
  edit [node =] <label>     relabel a node, default the selection
  connect <from> <to>       link two nodes
  disconnect <from> <to>    remove a link
  select [node]             select a node, or clear the selection
  move <node> <x> <y>       reposition a node
  show                      draw the map
  help                      this text
  quit                      leave`

// Parse turns an input line into a command. Words may be double-quoted to
// keep spaces.
func Parse(line string) (Command, error) {
	words, err := split(line)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, apperr.Validation("empty command")
	}
	verb, args := strings.ToLower(words[0]), words[1:]

	switch verb {
	case "add", "new":
		if len(args) == 0 {
			return nil, apperr.Validation("usage: add <label> [@x,y]")
		}
		cmd := AddNode{}
		if last := args[len(args)-1]; strings.HasPrefix(last, "@") {
			pos, err := parsePosition(strings.Split(last[1:], ","))
			if err != nil {
				return nil, err
			}
			cmd.Position = &pos
			args = args[:len(args)-1]
		}
		cmd.Label = strings.Join(args, " ")
		return cmd, nil

	case "rm", "remove", "del":
		if len(args) > 1 {
			return nil, apperr.Validation("usage: rm [node]")
		}
		return RemoveNode{Ref: first(args)}, nil

	case "edit", "rename":
		for i, a := range args {
			if a == "=" {
				return EditNode{Ref: strings.Join(args[:i], " "), Label: strings.Join(args[i+1:], " ")}, nil
			}
		}
		if len(args) == 0 {
			return nil, apperr.Validation("usage: edit [node =] <label>")
		}
		return EditNode{Label: strings.Join(args, " ")}, nil

	case "connect", "link":
		if len(args) != 2 {
			return nil, apperr.Validation("usage: connect <from> <to>")
		}
		return Connect{Source: args[0], Target: args[1]}, nil

	case "disconnect", "unlink":
		if len(args) != 2 {
			return nil, apperr.Validation("usage: disconnect <from> <to>")
		}
		return Disconnect{Source: args[0], Target: args[1]}, nil

	case "select", "sel":
		if len(args) > 1 {
			return nil, apperr.Validation("usage: select [node]")
		}
		return Select{Ref: first(args)}, nil

	case "deselect":
		return Select{}, nil

	case "move", "mv":
		if len(args) != 3 {
			return nil, apperr.Validation("usage: move <node> <x> <y>")
		}
		pos, err := parsePosition(args[1:])
		if err != nil {
			return nil, err
		}
		return Move{Ref: args[0], Position: pos}, nil

	case "show", "ls", "tree":
		return Show{}, nil

	case "help", "?":
		return Help{}, nil
	}
	return nil, apperr.Validation("unknown command %q", verb)
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func parsePosition(parts []string) (graph.Position, error) {
	if len(parts) != 2 {
		return graph.Position{}, apperr.Validation("position needs x and y")
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return graph.Position{}, apperr.Validation("invalid position %q", strings.Join(parts, ","))
	}
	return graph.Position{X: x, Y: y}, nil
}

// split breaks a line into words, honoring double quotes.
func split(line string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inQuote, inWord := false, false

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			inWord = true
		case !inQuote && (r == ' ' || r == '\t'):
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inQuote {
		return nil, apperr.Validation("unterminated quote")
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
