package helpers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

var ErrNotInteractive = errors.New("stdin is not a terminal")

// IsTerminal reports whether f is attached to an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func PromptLineWithDefault(label, def string) string {
	return promptLine(os.Stdin, os.Stderr, label, def)
}

func promptLine(in io.Reader, out io.Writer, label, def string) string {
	if def != "" {
		_, _ = fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		_, _ = fmt.Fprintf(out, "%s: ", label)
	}

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return def
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// PromptRequired keeps asking until a non-empty answer is given. It refuses
// to prompt when stdin is not a terminal.
func PromptRequired(label string) (string, error) {
	if !IsTerminal(os.Stdin) {
		return "", errors.Wrapf(ErrNotInteractive, "%s is required", strings.ToLower(label))
	}
	for {
		v := PromptLineWithDefault(label, "")
		if v != "" {
			return v, nil
		}
		_, _ = fmt.Fprintf(os.Stderr, "%s cannot be empty.\n", label)
	}
}
