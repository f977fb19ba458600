// Package lexscan is a small lexical scanner shared by the host evaluators.
// It understands just enough of a language's surface syntax (strings,
// comments, brackets) to answer two questions about a source buffer: which
// character ends it, and whether it stops in the middle of something.
package lexscan

import "strings"

// Syntax describes the lexical features of a host language.
type Syntax struct {
	// LineComment starts a comment that runs to the end of the line
	LineComment string

	// BlockComments enables /* ... */ comments
	BlockComments bool

	// Quotes lists the single-line string delimiters
	Quotes string

	// TripleQuotes enables ''' and """ strings that may span lines
	TripleQuotes bool

	// Templates enables `...` strings with ${...} interpolation
	Templates bool

	// LineContinuation enables a trailing backslash to join lines
	LineContinuation bool

	// RawStrings lists delimiters of strings that may span lines and have no
	// escapes
	RawStrings string

	// Regex enables /.../flags literals where an operand is expected
	Regex bool
}

// JavaScript is the syntax of the goja host.
var JavaScript = Syntax{
	LineComment:   "//",
	BlockComments: true,
	Quotes:        `"'`,
	Templates:     true,
	Regex:         true,
}

// Starlark is the syntax of the Starlark host.
var Starlark = Syntax{
	LineComment:      "#",
	Quotes:           `"'`,
	TripleQuotes:     true,
	LineContinuation: true,
}

// Tengo is the syntax of the Tengo host.
var Tengo = Syntax{
	LineComment:   "//",
	BlockComments: true,
	Quotes:        `"'`,
	RawStrings:    "`",
}

// Result summarises a scanned buffer.
type Result struct {
	// Last is the last significant byte outside strings and comments (0 if none).
	// A closed string contributes its closing quote.
	Last byte

	// Depth is the number of unclosed brackets
	Depth int

	// Open is set when the buffer ends inside a string or block comment
	Open bool

	// Continued is set when the buffer ends in a line continuation
	Continued bool
}

// Scan scans src using syn.
func Scan(src string, syn Syntax) Result {
	s := &scanner{src: src, syn: syn}
	s.run()
	return s.res
}

type scanner struct {
	src       string
	syn       Syntax
	pos       int
	res       Result
	templates []int // bracket depth at which each ${ was opened
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		rest := s.src[s.pos:]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.pos++
		case s.syn.LineContinuation && c == '\\' && s.atLineEnd(s.pos+1):
			s.res.Continued = true
			s.pos++
			continue
		case s.syn.LineComment != "" && strings.HasPrefix(rest, s.syn.LineComment):
			s.skipLine()
		case s.syn.BlockComments && strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				s.res.Open = true
				s.pos = len(s.src)
				return
			}
			s.pos += end + 4
		case s.syn.TripleQuotes && (strings.HasPrefix(rest, `"""`) || strings.HasPrefix(rest, `'''`)):
			s.tripleString(rest[:3])
		case s.syn.Templates && c == '`':
			s.pos++
			s.template()
		case s.syn.Regex && c == '/' && s.operandExpected():
			s.regex()
		case strings.IndexByte(s.syn.RawStrings, c) >= 0:
			s.raw(c)
		case strings.IndexByte(s.syn.Quotes, c) >= 0:
			s.quoted(c)
		case c == '(' || c == '[' || c == '{':
			s.res.Depth++
			s.mark(c)
		case c == ')' || c == ']' || c == '}':
			if c == '}' && len(s.templates) > 0 && s.res.Depth-1 == s.templates[len(s.templates)-1] {
				s.res.Depth--
				s.templates = s.templates[:len(s.templates)-1]
				s.pos++
				s.template()
				continue
			}
			if s.res.Depth > 0 {
				s.res.Depth--
			}
			s.mark(c)
		default:
			s.mark(c)
		}

		if s.res.Open {
			return
		}
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			s.res.Continued = false
		}
	}
}

func (s *scanner) mark(c byte) {
	s.res.Last = c
	s.pos++
}

func (s *scanner) atLineEnd(i int) bool {
	return i >= len(s.src) || s.src[i] == '\n' || (s.src[i] == '\r' && i+1 < len(s.src) && s.src[i+1] == '\n')
}

func (s *scanner) skipLine() {
	nl := strings.IndexByte(s.src[s.pos:], '\n')
	if nl < 0 {
		s.pos = len(s.src)
		return
	}
	s.pos += nl
}

// quoted consumes a single-line string starting at the opening quote.
func (s *scanner) quoted(q byte) {
	i := s.pos + 1
	for i < len(s.src) {
		switch s.src[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			// unterminated on this line; the interpreter reports it
			s.res.Last = q
			s.pos = i
			return
		case q:
			s.res.Last = q
			s.pos = i + 1
			return
		}
		i++
	}
	s.res.Open = true
	s.pos = len(s.src)
}

// regexPrefix lists the bytes after which a slash starts a regex literal
// rather than a division.
const regexPrefix = "(,=:[!&|?{};+-*%<>~^"

func (s *scanner) operandExpected() bool {
	return s.res.Last == 0 || strings.IndexByte(regexPrefix, s.res.Last) >= 0
}

// regex consumes a regex literal and its flags. A literal cannot span lines;
// a slash without a closing one on its line is left as an operator.
func (s *scanner) regex() {
	i := s.pos + 1
	inClass := false
	for i < len(s.src) {
		switch c := s.src[i]; {
		case c == '\\':
			i += 2
			continue
		case c == '\n':
			s.mark('/')
			return
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			i++
			for i < len(s.src) && isFlag(s.src[i]) {
				i++
			}
			s.res.Last = '/'
			s.pos = i
			return
		}
		i++
	}
	s.mark('/')
}

func isFlag(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func (s *scanner) raw(q byte) {
	end := strings.IndexByte(s.src[s.pos+1:], q)
	if end < 0 {
		s.res.Open = true
		s.pos = len(s.src)
		return
	}
	s.res.Last = q
	s.pos += end + 2
}

func (s *scanner) tripleString(delim string) {
	i := s.pos + 3
	for i < len(s.src) {
		if s.src[i] == '\\' {
			i += 2
			continue
		}
		if strings.HasPrefix(s.src[i:], delim) {
			s.res.Last = delim[0]
			s.pos = i + 3
			return
		}
		i++
	}
	s.res.Open = true
	s.pos = len(s.src)
}

// template consumes template text after an opening backtick or a closing
// interpolation brace, stopping at the closing backtick or at "${".
func (s *scanner) template() {
	i := s.pos
	for i < len(s.src) {
		switch {
		case s.src[i] == '\\':
			i += 2
			continue
		case s.src[i] == '`':
			s.res.Last = '`'
			s.pos = i + 1
			return
		case strings.HasPrefix(s.src[i:], "${"):
			s.templates = append(s.templates, s.res.Depth)
			s.res.Depth++
			s.res.Last = '{'
			s.pos = i + 2
			return
		}
		i++
	}
	s.res.Open = true
	s.pos = len(s.src)
}
