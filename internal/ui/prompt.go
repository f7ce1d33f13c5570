// Package ui holds the line-based prompts used when a command needs the
// user to pick or confirm something.
package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("UI_CANCELLED: operation cancelled")

type Option struct {
	Value string
	Label string
	Hint  string
}

// Prompter reads answers line by line from an io.Reader.
type Prompter struct {
	reader *bufio.Reader
	writer io.Writer
}

func NewPrompter(input io.Reader, output io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(input), writer: output}
}

// Confirm interprets y/yes as agreement and anything else as refusal.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	if err := p.write("%s [y/N]: ", prompt); err != nil {
		return false, err
	}
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// MultiSelect lists options numbered from 1 and accepts numbers, ranges
// ("2-4"), "all", or an empty line for nothing. "q" cancels. Invalid input
// is asked again until the reader runs dry.
func (p *Prompter) MultiSelect(title string, options []Option) ([]string, error) {
	if len(options) == 0 {
		return nil, nil
	}
	if err := p.write("%s\n", title); err != nil {
		return nil, err
	}
	for i, opt := range options {
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		line := fmt.Sprintf("  %2d) %s", i+1, label)
		if opt.Hint != "" {
			line += " (" + opt.Hint + ")"
		}
		if err := p.write("%s\n", line); err != nil {
			return nil, err
		}
	}
	for {
		if err := p.write("Select (e.g. 1,3 or 2-4, all, empty for none, q to cancel): "); err != nil {
			return nil, err
		}
		answer, err := p.readLine()
		if err != nil {
			return nil, err
		}
		picked, err := parseSelection(answer, len(options))
		if err == nil {
			out := make([]string, 0, len(picked))
			for _, idx := range picked {
				out = append(out, options[idx].Value)
			}
			return out, nil
		}
		if errors.Is(err, ErrCancelled) {
			return nil, err
		}
		if werr := p.write("%v\n", err); werr != nil {
			return nil, werr
		}
	}
}

// readLine returns the trimmed next line. EOF with no pending text cancels.
func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", ErrCancelled
		}
		if err != io.EOF {
			return "", err
		}
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) write(format string, args ...any) error {
	if p.writer == nil {
		return nil
	}
	_, err := fmt.Fprintf(p.writer, format, args...)
	return err
}

// parseSelection returns zero-based indexes in first-mention order.
func parseSelection(answer string, n int) ([]int, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch answer {
	case "":
		return nil, nil
	case "q", "quit":
		return nil, ErrCancelled
	case "a", "all", "*":
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	seen := map[int]bool{}
	var out []int
	fields := strings.FieldsFunc(answer, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	for _, f := range fields {
		lo, hi, err := parseRange(f, n)
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out, nil
}

func parseRange(field string, n int) (int, int, error) {
	from, to, isRange := strings.Cut(field, "-")
	lo, err := parseIndex(from, n)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := parseIndex(to, n)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("invalid range %q", field)
	}
	return lo, hi, nil
}

func parseIndex(s string, n int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > n {
		return 0, fmt.Errorf("invalid choice %q: pick numbers between 1 and %d", s, n)
	}
	return v - 1, nil
}
