// Package splitter breaks SQL file content into top-level statements.
//
// It is not a parser. It tracks just enough lexical state (comments, quoted
// strings and identifiers, dollar-quoted bodies) to know whether a semicolon
// ends a statement. Malformed input never fails: an unterminated region is
// returned as the final statement.
package splitter

import "strings"

type state int

const (
	stateNormal state = iota
	stateLineComment
	stateBlockComment
	stateSingleQuote
	stateDoubleQuote
	stateDollarQuote
)

type splitter struct {
	src   string
	pos   int
	state state

	// blockDepth counts nested /* */ comments.
	blockDepth int
	// tag is the full delimiter of the open dollar quote, e.g. "$body$".
	tag string
	// escapes is set inside E'' strings, where backslash escapes a quote.
	escapes bool

	current    strings.Builder
	statements []string
}

// Split returns the statements in sql in order, each trimmed and without
// its terminating semicolon. Comments outside quoted regions are dropped.
func Split(sql string) []string {
	s := &splitter{src: sql}
	for s.pos < len(s.src) {
		switch s.state {
		case stateNormal:
			s.normal()
		case stateLineComment:
			s.lineComment()
		case stateBlockComment:
			s.blockComment()
		case stateSingleQuote:
			s.singleQuote()
		case stateDoubleQuote:
			s.doubleQuote()
		case stateDollarQuote:
			s.dollarQuote()
		}
	}
	s.flush()
	return s.statements
}

func (s *splitter) normal() {
	c := s.src[s.pos]
	switch {
	case c == ';':
		s.flush()
		s.pos++
	case strings.HasPrefix(s.src[s.pos:], "--"):
		s.state = stateLineComment
		s.pos += 2
	case strings.HasPrefix(s.src[s.pos:], "/*"):
		s.state = stateBlockComment
		s.blockDepth = 1
		s.pos += 2
		s.current.WriteByte(' ')
	case c == '\'':
		s.escapes = s.pos > 0 && (s.src[s.pos-1] == 'E' || s.src[s.pos-1] == 'e') &&
			(s.pos < 2 || !isIdentChar(s.src[s.pos-2]))
		s.state = stateSingleQuote
		s.emit(1)
	case c == '"':
		s.state = stateDoubleQuote
		s.emit(1)
	case c == '$':
		if tag, ok := s.dollarTag(); ok {
			s.tag = tag
			s.state = stateDollarQuote
			s.emit(len(tag))
			return
		}
		s.emit(1)
	default:
		s.emit(1)
	}
}

func (s *splitter) lineComment() {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	if end < 0 {
		s.pos = len(s.src)
		return
	}
	s.pos += end
	s.state = stateNormal
}

func (s *splitter) blockComment() {
	switch {
	case strings.HasPrefix(s.src[s.pos:], "/*"):
		s.blockDepth++
		s.pos += 2
	case strings.HasPrefix(s.src[s.pos:], "*/"):
		s.blockDepth--
		s.pos += 2
		if s.blockDepth == 0 {
			s.state = stateNormal
		}
	default:
		s.pos++
	}
}

func (s *splitter) singleQuote() {
	c := s.src[s.pos]
	switch {
	case c == '\\' && s.escapes && s.pos+1 < len(s.src):
		s.emit(2)
	case c == '\'':
		// A doubled quote re-enters the string on the next byte.
		s.state = stateNormal
		s.emit(1)
		if s.pos < len(s.src) && s.src[s.pos] == '\'' {
			s.state = stateSingleQuote
			s.emit(1)
		}
	default:
		s.emit(1)
	}
}

func (s *splitter) doubleQuote() {
	if s.src[s.pos] == '"' {
		s.state = stateNormal
	}
	s.emit(1)
}

func (s *splitter) dollarQuote() {
	if strings.HasPrefix(s.src[s.pos:], s.tag) {
		s.emit(len(s.tag))
		s.state = stateNormal
		s.tag = ""
		return
	}
	s.emit(1)
}

// dollarTag matches $$ or $ident$ at the current position. A $ that
// continues an identifier (foo$bar) or starts a positional parameter ($1)
// is not a tag.
func (s *splitter) dollarTag() (string, bool) {
	if s.pos > 0 && isIdentChar(s.src[s.pos-1]) {
		return "", false
	}
	i := s.pos + 1
	if i < len(s.src) && isDigit(s.src[i]) {
		return "", false
	}
	for i < len(s.src) && isIdentChar(s.src[i]) && s.src[i] != '$' {
		i++
	}
	if i < len(s.src) && s.src[i] == '$' {
		return s.src[s.pos : i+1], true
	}
	return "", false
}

// emit copies n bytes from the input into the current statement.
func (s *splitter) emit(n int) {
	end := s.pos + n
	if end > len(s.src) {
		end = len(s.src)
	}
	s.current.WriteString(s.src[s.pos:end])
	s.pos = end
}

func (s *splitter) flush() {
	stmt := strings.TrimSpace(s.current.String())
	if stmt != "" {
		s.statements = append(s.statements, stmt)
	}
	s.current.Reset()
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
