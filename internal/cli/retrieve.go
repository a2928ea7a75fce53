package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/spf13/cobra"

	"github.com/odaudit/odaudit/internal/audit"
	"github.com/odaudit/odaudit/internal/audit/opendental"
	"github.com/odaudit/odaudit/internal/credential"
	"github.com/odaudit/odaudit/internal/output"
	"github.com/odaudit/odaudit/internal/provider/resilience"
	"github.com/odaudit/odaudit/internal/telemetry"
)

type retrieveOptions struct {
	patNum    int64
	aptNum    int64
	output    string
	redactPHI bool
	force     bool
}

func (a *App) runRetrieve(cmd *cobra.Command, opts *retrieveOptions) error {
	if !cmd.Flags().Changed("patnum") || !cmd.Flags().Changed("aptnum") {
		return &ExitError{
			Code: audit.ExitFailure,
			Err:  errors.New("--patnum and --aptnum are required, run 'odaudit --help' for usage"),
		}
	}
	req := audit.Request{PatNum: opts.patNum, AptNum: opts.aptNum}
	if err := req.Validate(); err != nil {
		return &ExitError{Code: audit.ExitFailure, Err: errors.New("PatNum and AptNum must be positive integers")}
	}

	s, err := a.start(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.log.Logger

	format, err := output.ParseFormat(s.cfg.OutputFormat)
	if err != nil {
		return err
	}

	store := credential.NewStore(logger)
	cred, source, err := store.Get(s.cfg.Environment)
	if err != nil {
		logger.Error().Err(err).Msg("credentials unavailable")
		if errors.Is(err, credential.ErrNotFound) {
			a.printCredentialHelp()
		}
		return &ExitError{Code: audit.ExitFailure, Err: err}
	}
	logger.Info().
		Object("credential", cred).
		Str("source", string(source)).
		Msg("credentials loaded")

	ctx := cmd.Context()
	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceVersion: a.Version,
		Environment:    cred.EnvironmentOrDefault(),
		RunID:          s.log.RunID,
		OTLPEndpoint:   s.cfg.OTelOTLPEndpoint,
		Enabled:        s.cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	metrics := provider.Metrics

	breakers := resilience.DefaultBreakerConfig()
	breakers.OnStateChange = func(endpoint string, from, to gobreaker.State) {
		logger.Warn().
			Str("endpoint", endpoint).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
		metrics.RecordBreakerTransition(ctx, endpoint, from.String(), to.String())
	}
	registry := resilience.NewRegistry(breakers)

	service := audit.NewService(audit.ServiceConfig{
		NewFetcher: opendental.NewFactory(opendental.ClientConfig{
			Registry: registry,
			Metrics:  metrics,
			Tracer:   provider.Tracer,
			Logger:   logger,
		}),
		Logger:  logger,
		Metrics: metrics,
	})

	fmt.Fprintln(a.Stderr, "Fetching audit data...")
	report, err := service.Retrieve(ctx, req, cred)
	if err != nil {
		return &ExitError{Code: audit.ExitFailure, Err: err}
	}

	logEndpointHealth(logger, registry)

	if opts.redactPHI {
		report = report.Redacted()
	}

	data, err := output.Render(report, format)
	if err != nil {
		return &ExitError{Code: audit.ExitFailure, Err: err}
	}

	if opts.output != "" {
		if err := output.WriteFile(opts.output, data, opts.force, confirmOverwrite); err != nil {
			return &ExitError{Code: audit.ExitFailure, Err: err}
		}
		logger.Info().Str("format", string(format)).Bool("redacted", opts.redactPHI).Msg("report written to file")
		fmt.Fprintf(a.Stderr, "Report written to %s\n", opts.output)
	} else {
		if _, err := a.Stdout.Write(data); err != nil {
			return &ExitError{Code: audit.ExitFailure, Err: err}
		}
	}

	fmt.Fprintln(a.Stderr)
	if err := output.WriteSummary(a.Stderr, report); err != nil {
		logger.Error().Err(err).Msg("failed to write summary")
	}

	if code := report.ExitCode(); code != audit.ExitSuccess {
		return &ExitError{Code: code}
	}
	return nil
}

// logEndpointHealth records every endpoint whose breaker is not closed.
func logEndpointHealth(logger zerolog.Logger, registry *resilience.Registry) {
	for _, h := range registry.GetAllHealth() {
		switch {
		case h.IsUnhealthy():
			logger.Warn().
				Str("endpoint", h.Name).
				Time("cooldown_until", h.CooldownUntil).
				Str("last_error", h.LastError).
				Msg("endpoint circuit open")
		case h.IsDegraded():
			logger.Warn().
				Str("endpoint", h.Name).
				Msg("endpoint circuit half-open")
		}
	}
}

func confirmOverwrite(path string) (bool, error) {
	return captureConfirm(fmt.Sprintf("File %s exists. Overwrite", path))
}

func (a *App) printCredentialHelp() {
	fmt.Fprint(a.Stderr, `Please configure credentials first:
  odaudit config set-credentials

Or set environment variables:
  OPENDENTAL_BASE_URL
  OPENDENTAL_DEVELOPER_KEY
  OPENDENTAL_CUSTOMER_KEY
`)
}
