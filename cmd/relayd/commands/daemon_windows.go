//go:build windows

package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

func startDaemon(cmd *cobra.Command) error {
	return errors.New("background mode is not supported on Windows; use --foreground")
}
