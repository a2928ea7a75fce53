// Package audit retrieves compliance-audit data for one patient and
// appointment from the six OpenDental endpoints and consolidates the
// outcomes into a report.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/odaudit/odaudit/internal/credential"
	"github.com/odaudit/odaudit/internal/phi"
	"github.com/odaudit/odaudit/internal/telemetry"
)

//go:generate mockgen -destination=mocks/fetcher_mock.go -package=mocks github.com/odaudit/odaudit/internal/audit Fetcher

// Fetcher retrieves each endpoint. Implementations never return errors:
// every failure is reported as a failed EndpointResult.
type Fetcher interface {
	FetchProcedureLogs(ctx context.Context, aptNum int64) EndpointResult
	FetchAllergies(ctx context.Context, patNum int64) EndpointResult
	FetchMedications(ctx context.Context, patNum int64) EndpointResult
	FetchProblems(ctx context.Context, patNum int64) EndpointResult
	FetchPatientNotes(ctx context.Context, patNum int64) EndpointResult
	FetchVitalSigns(ctx context.Context, patNum int64) EndpointResult
	Close()
}

// FetcherFactory builds a Fetcher bound to one credential.
type FetcherFactory func(cred credential.Credential) (Fetcher, error)

// ErrNoFetcher is returned when a Service has no fetcher factory.
var ErrNoFetcher = errors.New("no fetcher factory configured")

// ServiceConfig holds the dependencies of a Service.
type ServiceConfig struct {
	NewFetcher FetcherFactory
	Logger     zerolog.Logger
	Metrics    *telemetry.FetchMetrics

	// Now returns the retrieval timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Service orchestrates a retrieval.
type Service struct {
	newFetcher FetcherFactory
	logger     zerolog.Logger
	metrics    *telemetry.FetchMetrics
	now        func() time.Time
}

// NewService creates a new audit service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		newFetcher: cfg.NewFetcher,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        now,
	}
}

type task struct {
	endpoint string
	fetch    func(ctx context.Context) EndpointResult
}

// Retrieve validates req and cred, fetches all six endpoints concurrently and
// returns the consolidated report. An error is returned only for invalid
// input or when no fetcher can be built; endpoint failures are recorded in
// the report.
func (s *Service) Retrieve(ctx context.Context, req Request, cred credential.Credential) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if s.newFetcher == nil {
		return nil, ErrNoFetcher
	}

	fetcher, err := s.newFetcher(cred)
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}
	defer fetcher.Close()

	s.logger.Info().
		Int("endpoints", TotalEndpoints).
		Str("environment", cred.EnvironmentOrDefault()).
		Msg("starting audit data retrieval")

	tasks := []task{
		{EndpointProcedureLogs, func(ctx context.Context) EndpointResult { return fetcher.FetchProcedureLogs(ctx, req.AptNum) }},
		{EndpointAllergies, func(ctx context.Context) EndpointResult { return fetcher.FetchAllergies(ctx, req.PatNum) }},
		{EndpointMedications, func(ctx context.Context) EndpointResult { return fetcher.FetchMedications(ctx, req.PatNum) }},
		{EndpointProblems, func(ctx context.Context) EndpointResult { return fetcher.FetchProblems(ctx, req.PatNum) }},
		{EndpointPatientNotes, func(ctx context.Context) EndpointResult { return fetcher.FetchPatientNotes(ctx, req.PatNum) }},
		{EndpointVitalSigns, func(ctx context.Context) EndpointResult { return fetcher.FetchVitalSigns(ctx, req.PatNum) }},
	}

	results := make([]EndpointResult, len(tasks))

	// The group has no shared context: one fetch failing never cancels the others.
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = s.run(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	report := NewReport(req, results, s.now())

	for _, res := range results {
		if res.Success {
			s.logger.Info().
				Str("endpoint", res.EndpointName).
				Int("http_status", res.HTTPStatus).
				Msg("endpoint succeeded")
			continue
		}
		s.logger.Warn().
			Str("endpoint", res.EndpointName).
			Int("http_status", res.HTTPStatus).
			Str("error", res.ErrorMessage).
			Msg("endpoint failed")
	}

	s.logger.Info().
		Int("successful_count", report.SuccessfulCount).
		Int("failed_count", report.FailedCount).
		Int("exit_code", report.ExitCode()).
		Msg("retrieval complete")

	s.metrics.RecordRetrieval(ctx, report.SuccessfulCount, report.FailedCount, report.ExitCode())

	return report, nil
}

// run executes one task, turning a panic into an unknown-endpoint failure.
func (s *Service) run(ctx context.Context, t task) (result EndpointResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("task", t.endpoint).Msg("unexpected panic during fetch")
			result = NewFailureResult(EndpointUnknown, 0, "Unexpected error: "+phi.ScrubString(fmt.Sprint(r)), 0)
		}
	}()

	result = t.fetch(ctx)
	if result.EndpointName == "" {
		result.EndpointName = t.endpoint
	}
	return result
}
