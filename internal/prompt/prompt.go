// Package prompt reads interactive answers from the console.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// DefaultSentinel ends a multi-line block
const DefaultSentinel = "END"

// ErrNoInput is returned when input ends before an answer was given
var ErrNoInput = errors.New("no input")

// Reader asks questions on out and reads the answers from in
type Reader struct {
	scanner *bufio.Scanner
	out     io.Writer
	label   func(a ...interface{}) string
	warn    func(a ...interface{}) string
}

// NewReader creates a console reader
func NewReader(in io.Reader, out io.Writer) *Reader {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Reader{
		scanner: scanner,
		out:     out,
		label:   color.New(color.FgCyan).SprintFunc(),
		warn:    color.New(color.FgYellow).SprintFunc(),
	}
}

func (r *Reader) readLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrNoInput
	}
	return r.scanner.Text(), nil
}

// Line asks for a single trimmed line
func (r *Reader) Line(label string) (string, error) {
	fmt.Fprintf(r.out, "%s ", r.label(label))
	line, err := r.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Block reads lines until one equal to sentinel (or end of input) and
// returns them joined with newlines and trimmed
func (r *Reader) Block(label, sentinel string) (string, error) {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	fmt.Fprintf(r.out, "%s (finish with a line containing only %s)\n", r.label(label), sentinel)

	var lines []string
	for {
		line, err := r.readLine()
		if errors.Is(err, ErrNoInput) {
			break
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == sentinel {
			break
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// Int asks for an integer
func (r *Reader) Int(label string) (int, error) {
	line, err := r.Line(label)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", line)
	}
	return n, nil
}

// Choose lists items numbered from 1 and asks until a valid number is entered
func (r *Reader) Choose(label string, items []string) (string, error) {
	if len(items) == 0 {
		return "", errors.New("nothing to choose from")
	}

	for i, item := range items {
		fmt.Fprintf(r.out, "%d. %s\n", i+1, item)
	}

	for {
		n, err := r.Int(label)
		if errors.Is(err, ErrNoInput) {
			return "", err
		}
		if err != nil {
			fmt.Fprintln(r.out, r.warn("Invalid input. Enter a number."))
			continue
		}
		if n < 1 || n > len(items) {
			fmt.Fprintln(r.out, r.warn("Invalid selection. Try again."))
			continue
		}
		return items[n-1], nil
	}
}
