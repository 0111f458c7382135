// Package cli wires configuration, storage and the batch coordinators into
// the log-archiver commands.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/exitcode"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func exitErr(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

func NewRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "log-archiver",
		Short:         "Harvest log files and archive them to object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	cmd.AddCommand(NewArchiveCmd())
	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = Version

	return cmd
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing default file is not worth a warning.
func loadEnvFile(path string, explicit bool) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to load env file", "path", path, "error", err)
		}
	}
}

// Execute runs the root command with args and returns the process exit code.
func Execute(args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitcode.Success
	}

	var exit *ExitError
	if errors.As(err, &exit) {
		slog.Error("command failed", "exit_code", exit.Code, "error", exit.Err)
		return exit.Code
	}

	// Flag and argument errors from cobra.
	_, _ = os.Stderr.WriteString(err.Error() + "\n")
	return exitcode.ConfigError
}
