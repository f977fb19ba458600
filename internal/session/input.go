package session

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// InputSource supplies lines to a session. It returns io.EOF when exhausted.
type InputSource interface {
	ReadLine(prompt string) (string, error)
}

// InputFunc adapts a function to InputSource.
type InputFunc func(prompt string) (string, error)

// ReadLine calls f.
func (f InputFunc) ReadLine(prompt string) (string, error) {
	return f(prompt)
}

// ReaderInput reads lines from an io.Reader, optionally echoing prompts.
type ReaderInput struct {
	r      *bufio.Reader
	prompt io.Writer
}

// NewReaderInput reads from r. Prompts are written to prompt unless it is nil.
func NewReaderInput(r io.Reader, prompt io.Writer) *ReaderInput {
	return &ReaderInput{r: bufio.NewReader(r), prompt: prompt}
}

// ReadLine returns the next line without its line ending.
func (in *ReaderInput) ReadLine(prompt string) (string, error) {
	if in.prompt != nil {
		if _, err := io.WriteString(in.prompt, prompt); err != nil {
			return "", err
		}
	}
	line, err := in.r.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// LinesInput replays a fixed list of lines and records the prompts it was
// shown.
type LinesInput struct {
	lines   []string
	pos     int
	Prompts []string
}

// NewLinesInput creates an input that yields lines in order, then io.EOF.
func NewLinesInput(lines ...string) *LinesInput {
	return &LinesInput{lines: lines}
}

// ReadLine returns the next line.
func (in *LinesInput) ReadLine(prompt string) (string, error) {
	in.Prompts = append(in.Prompts, prompt)
	if in.pos >= len(in.lines) {
		return "", io.EOF
	}
	line := in.lines[in.pos]
	in.pos++
	return line, nil
}
