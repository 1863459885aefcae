package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompt returns a PromptFunc that reads answers from in and
// writes instructions to out. Secret values are read with local echo
// disabled when in is a terminal. End-of-input maps to ErrCanceled.
func TerminalPrompt(in *os.File, out io.Writer) PromptFunc {
	reader := bufio.NewReader(in)
	return func(key Key) (string, error) {
		fmt.Fprintf(out, "Missing configuration: %s\n", key.Description)
		if key.Example != "" {
			fmt.Fprintf(out, "  example: %s\n", key.Example)
		}
		if key.Default != "" {
			fmt.Fprintf(out, "Enter %s [%s]: ", key.Description, key.Default)
		} else {
			fmt.Fprintf(out, "Enter %s: ", key.Description)
		}

		if key.Secret && term.IsTerminal(int(in.Fd())) {
			raw, err := term.ReadPassword(int(in.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return "", ErrCanceled
			}
			return string(raw), nil
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
				return strings.TrimSpace(line), nil
			}
			return "", ErrCanceled
		}
		return strings.TrimSpace(line), nil
	}
}
