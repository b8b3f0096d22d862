// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("aborted")

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("confirmation required but stdin is not a terminal (use --force)")

// Confirm asks a yes/no question. An empty answer selects defaultYes.
func Confirm(label string, defaultYes bool) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, ErrNotInteractive
	}
	return confirm(label, defaultYes, nil, nil)
}

// ConfirmWithForce returns true immediately if force is set, otherwise
// prompts with a "no" default.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}

// confirm runs the prompt on the given streams; nil selects the terminal.
func confirm(label string, defaultYes bool, in io.ReadCloser, out io.WriteCloser) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
		Stdin:     in,
		Stdout:    out,
	}

	result, err := p.Run()
	switch {
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		// promptui reports any answer other than y as an abort
		if strings.TrimSpace(result) == "" {
			return defaultYes, nil
		}
		return false, nil
	case err != nil:
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(result)) {
	case "y", "yes":
		return true, nil
	case "":
		return defaultYes, nil
	default:
		return false, nil
	}
}
