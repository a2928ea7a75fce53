package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odaudit/odaudit/internal/audit"
	"github.com/odaudit/odaudit/internal/credential"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage OpenDental API credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSetCredentialsCmd(app))
	cmd.AddCommand(newShowCmd(app))

	return cmd
}

func newSetCredentialsCmd(app *App) *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:   "set-credentials",
		Short: "Store OpenDental API credentials in the OS keyring",
		Example: `  odaudit config set-credentials
  odaudit config set-credentials --environment staging`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runSetCredentials(cmd, environment)
		},
	}
	cmd.Flags().StringVar(&environment, "environment", credential.DefaultEnvironment, "environment name: production, staging or dev")

	return cmd
}

func (a *App) runSetCredentials(cmd *cobra.Command, environment string) error {
	if !credential.ValidEnvironment(environment) {
		return fmt.Errorf("unknown environment %q, use production, staging or dev", environment)
	}

	s, err := a.start(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store := credential.NewStore(s.log.Logger)

	fmt.Fprintln(a.Stdout, "OpenDental API Credential Configuration")
	if store.Exists(environment) {
		fmt.Fprintf(a.Stdout, "Credentials already configured for '%s' environment.\n", environment)
		ok, err := captureConfirm("Overwrite existing credentials")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.Stdout, "Operation cancelled.")
			return nil
		}
	}

	baseURL, err := captureBaseURL()
	if err != nil {
		return &ExitError{Code: audit.ExitFailure, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	developerKey, err := captureSecret("Developer Key")
	if err != nil {
		return &ExitError{Code: audit.ExitFailure, Err: err}
	}
	customerKey, err := captureSecret("Developer Portal Key")
	if err != nil {
		return &ExitError{Code: audit.ExitFailure, Err: err}
	}

	cred := credential.Credential{
		BaseURL:      baseURL,
		DeveloperKey: developerKey,
		CustomerKey:  customerKey,
		Environment:  environment,
	}
	if err := store.Set(cred); err != nil {
		if errors.Is(err, credential.ErrKeyringUnavailable) {
			fmt.Fprintf(a.Stderr, `
Fallback option: set environment variables instead:
  export OPENDENTAL_BASE_URL=%q
  export OPENDENTAL_DEVELOPER_KEY="your-developer-key"
  export OPENDENTAL_CUSTOMER_KEY="your-customer-key"
  export OPENDENTAL_ENVIRONMENT=%q

Warning: environment variables are less secure than keyring storage.
`, baseURL, environment)
		}
		return &ExitError{Code: audit.ExitFailure, Err: err}
	}

	fmt.Fprintf(a.Stdout, "\nCredentials stored successfully in OS keyring\n  Environment: %s\n  Base URL: %s\n", environment, baseURL)
	fmt.Fprintln(a.Stdout, "\nYou can now run:\n  odaudit --patnum 12345 --aptnum 67890")
	return nil
}

func newShowCmd(app *App) *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the configured credentials with keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runShow(cmd, environment)
		},
	}
	cmd.Flags().StringVar(&environment, "environment", "", "environment name (default: last configured)")

	return cmd
}

func (a *App) runShow(cmd *cobra.Command, environment string) error {
	if environment != "" && !credential.ValidEnvironment(environment) {
		return fmt.Errorf("unknown environment %q, use production, staging or dev", environment)
	}

	s, err := a.start(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store := credential.NewStore(s.log.Logger)
	cred, source, err := store.Get(environment)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			a.printCredentialHelp()
		}
		return &ExitError{Code: audit.ExitFailure, Err: err}
	}

	fmt.Fprintf(a.Stdout, "Environment:   %s\n", cred.EnvironmentOrDefault())
	fmt.Fprintf(a.Stdout, "Base URL:      %s\n", cred.BaseURL)
	fmt.Fprintf(a.Stdout, "Developer Key: %s\n", cred.DeveloperKey)
	fmt.Fprintf(a.Stdout, "Portal Key:    %s\n", cred.CustomerKey)
	fmt.Fprintf(a.Stdout, "Source:        %s\n", source)
	return nil
}
