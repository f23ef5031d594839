// Package parser reads flashcards written in markdown as Q:, A: and C:
// blocks. A block runs until the next prefix; a "---" line or a new Q: ends
// the note.
package parser

import (
	"bufio"
	"io"
	"strings"
)

const separator = "---"

// Note is one question with its answer and optional context.
type Note struct {
	Question string
	Answer   string
	Context  string
}

// Back is the answer followed by the context, when there is one.
func (n Note) Back() string {
	if n.Context == "" {
		return n.Answer
	}
	return n.Answer + "\n\n" + n.Context
}

func (n *Note) field(prefix string) *string {
	switch prefix {
	case "Q:":
		return &n.Question
	case "A:":
		return &n.Answer
	default:
		return &n.Context
	}
}

func cutPrefix(line string) (prefix, rest string, ok bool) {
	for _, p := range []string{"Q:", "A:", "C:"} {
		if rest, ok := strings.CutPrefix(line, p); ok {
			return p, strings.TrimPrefix(rest, " "), true
		}
	}
	return "", "", false
}

// Parse extracts every note with a non-empty question from r.
func Parse(r io.Reader) ([]Note, error) {
	var (
		notes []Note
		cur   Note
		field *string
		block []string
	)
	flush := func() {
		if field != nil {
			*field = strings.TrimSpace(strings.Join(block, "\n"))
		}
		block = nil
	}
	finish := func() {
		flush()
		field = nil
		if cur.Question != "" {
			notes = append(notes, cur)
		}
		cur = Note{}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == separator {
			finish()
			continue
		}

		prefix, rest, ok := cutPrefix(line)
		switch {
		case !ok:
			if field != nil {
				block = append(block, line)
			}
			continue
		case prefix == "Q:" && field != nil:
			finish()
		default:
			flush()
		}
		field = cur.field(prefix)
		block = []string{rest}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	finish()
	return notes, nil
}
