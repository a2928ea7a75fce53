// Package cli implements the odaudit command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odaudit/odaudit/internal/audit"
	"github.com/odaudit/odaudit/internal/phi"
)

// App carries what every command shares.
type App struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Version string
}

// ExitError ends a command with a specific process exit status. Err, when
// set, has not been shown to the user yet.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run executes the command line and returns the process exit status.
// A panic is reported as a sanitized message with status 1.
func Run(ctx context.Context, app *App, args []string) (code int) {
	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(app.Stderr, "Unexpected error: %s\n", phi.ScrubString(fmt.Sprint(r)))
			code = audit.ExitFailure
		}
	}()

	cmd := NewRootCmd(app)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return audit.ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(app.Stderr, "Error: %s\n", phi.ScrubString(exitErr.Err.Error()))
		}
		return exitErr.Code
	}

	fmt.Fprintf(app.Stderr, "Error: %s\n", phi.ScrubString(err.Error()))
	return audit.ExitFailure
}

// NewRootCmd builds the odaudit command tree.
func NewRootCmd(app *App) *cobra.Command {
	opts := &retrieveOptions{}

	cmd := &cobra.Command{
		Use:   "odaudit",
		Short: "Retrieve OpenDental compliance-audit data",
		Long: `odaudit retrieves compliance-audit data for one patient and appointment
from six OpenDental API endpoints and writes a consolidated report.

Exit status is 0 when every endpoint succeeded, 2 on partial success and 1
when every endpoint failed or the command could not run.`,
		Example: `  # Retrieve data to stdout
  odaudit --patnum 12345 --aptnum 67890

  # Save to file
  odaudit --patnum 12345 --aptnum 67890 --output audit.json

  # Redact PHI for debugging
  odaudit --patnum 12345 --aptnum 67890 --redact-phi`,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runRetrieve(cmd, opts)
		},
	}
	cmd.SetOut(app.Stdout)
	cmd.SetErr(app.Stderr)

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("log-file", "", "audit log path (default audit.log)")
	pf.String("log-level", "", "audit log level (trace, debug, info, warn, error)")
	pf.BoolP("verbose", "v", false, "mirror audit log events to stderr")

	f := cmd.Flags()
	f.Int64Var(&opts.patNum, "patnum", 0, "patient number (required)")
	f.Int64Var(&opts.aptNum, "aptnum", 0, "appointment number (required)")
	f.StringVarP(&opts.output, "output", "o", "", "output file path (default stdout)")
	f.BoolVar(&opts.redactPHI, "redact-phi", false, "redact PHI in the report")
	f.BoolVar(&opts.force, "force", false, "overwrite the output file without confirmation")
	f.String("format", "", "report format: json or yaml (default json)")
	f.String("environment", "", "credential environment: production, staging or dev (default: last configured)")

	cmd.AddCommand(newConfigCmd(app))

	return cmd
}
