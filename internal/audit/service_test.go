package audit_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odaudit/odaudit/internal/audit"
	"github.com/odaudit/odaudit/internal/audit/mocks"
	"github.com/odaudit/odaudit/internal/credential"
)

func testCredential() credential.Credential {
	return credential.Credential{
		BaseURL:      "https://example.opendental.com/api/v1",
		DeveloperKey: "dev",
		CustomerKey:  "cust",
	}
}

func ok(name string) audit.EndpointResult {
	return audit.NewSuccessResult(name, 200, []any{map[string]any{"endpoint": name}}, time.Millisecond)
}

func newService(fetcher audit.Fetcher) *audit.Service {
	return audit.NewService(audit.ServiceConfig{
		NewFetcher: func(credential.Credential) (audit.Fetcher, error) { return fetcher, nil },
		Logger:     zerolog.Nop(),
	})
}

// expectAll wires every fetch to succeed, except those overridden in fail.
func expectAll(f *mocks.MockFetcher, fail map[string]audit.EndpointResult) {
	pick := func(name string) audit.EndpointResult {
		if r, ok := fail[name]; ok {
			return r
		}
		return ok(name)
	}
	f.EXPECT().FetchProcedureLogs(gomock.Any(), int64(20)).Return(pick(audit.EndpointProcedureLogs))
	f.EXPECT().FetchAllergies(gomock.Any(), int64(10)).Return(pick(audit.EndpointAllergies))
	f.EXPECT().FetchMedications(gomock.Any(), int64(10)).Return(pick(audit.EndpointMedications))
	f.EXPECT().FetchProblems(gomock.Any(), int64(10)).Return(pick(audit.EndpointProblems))
	f.EXPECT().FetchPatientNotes(gomock.Any(), int64(10)).Return(pick(audit.EndpointPatientNotes))
	f.EXPECT().FetchVitalSigns(gomock.Any(), int64(10)).Return(pick(audit.EndpointVitalSigns))
	f.EXPECT().Close().Times(1)
}

var req = audit.Request{PatNum: 10, AptNum: 20}

func TestRetrieve_AllSucceed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	expectAll(fetcher, nil)

	report, err := newService(fetcher).Retrieve(context.Background(), req, testCredential())
	require.NoError(t, err)

	assert.Equal(t, 6, report.SuccessfulCount)
	assert.Equal(t, 0, report.FailedCount)
	assert.Empty(t, report.Failures)
	assert.Equal(t, audit.ExitSuccess, report.ExitCode())
	for _, name := range audit.AllEndpoints() {
		assert.Contains(t, report.Success, name)
	}
	assert.Equal(t, req, report.Request)
}

func TestRetrieve_OneServerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	expectAll(fetcher, map[string]audit.EndpointResult{
		audit.EndpointProblems: audit.NewFailureResult(audit.EndpointProblems, 503, "Server error (503)", time.Millisecond),
	})

	report, err := newService(fetcher).Retrieve(context.Background(), req, testCredential())
	require.NoError(t, err)

	assert.Equal(t, 5, report.SuccessfulCount)
	assert.Equal(t, 1, report.FailedCount)
	assert.Equal(t, audit.ExitPartial, report.ExitCode())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, audit.EndpointProblems, report.Failures[0].Endpoint)
	assert.Contains(t, report.Failures[0].ErrorMessage, "503")
}

func TestRetrieve_AllFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fail := make(map[string]audit.EndpointResult)
	for _, name := range audit.AllEndpoints() {
		fail[name] = audit.NewFailureResult(name, 401, "Unauthorized - check credentials (401)", 0)
	}

	fetcher := mocks.NewMockFetcher(ctrl)
	expectAll(fetcher, fail)

	report, err := newService(fetcher).Retrieve(context.Background(), req, testCredential())
	require.NoError(t, err)

	assert.Equal(t, 0, report.SuccessfulCount)
	assert.Equal(t, 6, report.FailedCount)
	assert.Equal(t, audit.ExitFailure, report.ExitCode())
	assert.Equal(t, audit.EndpointProcedureLogs, report.Failures[0].Endpoint, "failures keep endpoint order")
}

func TestRetrieve_PanicBecomesUnknownFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().FetchProcedureLogs(gomock.Any(), gomock.Any()).Return(ok(audit.EndpointProcedureLogs))
	fetcher.EXPECT().FetchAllergies(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, int64) audit.EndpointResult { panic("decode failed for PatNum=10 SSN 123-45-6789 email jane@example.com") })
	fetcher.EXPECT().FetchMedications(gomock.Any(), gomock.Any()).Return(ok(audit.EndpointMedications))
	fetcher.EXPECT().FetchProblems(gomock.Any(), gomock.Any()).Return(ok(audit.EndpointProblems))
	fetcher.EXPECT().FetchPatientNotes(gomock.Any(), gomock.Any()).Return(ok(audit.EndpointPatientNotes))
	fetcher.EXPECT().FetchVitalSigns(gomock.Any(), gomock.Any()).Return(ok(audit.EndpointVitalSigns))
	fetcher.EXPECT().Close()

	report, err := newService(fetcher).Retrieve(context.Background(), req, testCredential())
	require.NoError(t, err)

	assert.Equal(t, 5, report.SuccessfulCount)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, audit.EndpointUnknown, report.Failures[0].Endpoint)
	assert.Equal(t, 0, report.Failures[0].HTTPStatus)
	assert.Equal(t, "Unexpected error: decode failed for PatNum=[REDACTED] SSN [REDACTED] email [REDACTED]", report.Failures[0].ErrorMessage)
	assert.NotContains(t, report.Failures[0].ErrorMessage, "123-45-6789")
	assert.NotContains(t, report.Failures[0].ErrorMessage, "jane@example.com")
	assert.Equal(t, audit.ExitPartial, report.ExitCode())
}

func TestRetrieve_FetchesRunConcurrently(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var inFlight, peak atomic.Int32
	slow := func(name string) func(context.Context, int64) audit.EndpointResult {
		return func(context.Context, int64) audit.EndpointResult {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(100 * time.Millisecond)
			inFlight.Add(-1)
			return ok(name)
		}
	}

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().FetchProcedureLogs(gomock.Any(), gomock.Any()).DoAndReturn(slow(audit.EndpointProcedureLogs))
	fetcher.EXPECT().FetchAllergies(gomock.Any(), gomock.Any()).DoAndReturn(slow(audit.EndpointAllergies))
	fetcher.EXPECT().FetchMedications(gomock.Any(), gomock.Any()).DoAndReturn(slow(audit.EndpointMedications))
	fetcher.EXPECT().FetchProblems(gomock.Any(), gomock.Any()).DoAndReturn(slow(audit.EndpointProblems))
	fetcher.EXPECT().FetchPatientNotes(gomock.Any(), gomock.Any()).DoAndReturn(slow(audit.EndpointPatientNotes))
	fetcher.EXPECT().FetchVitalSigns(gomock.Any(), gomock.Any()).DoAndReturn(slow(audit.EndpointVitalSigns))
	fetcher.EXPECT().Close()

	start := time.Now()
	report, err := newService(fetcher).Retrieve(context.Background(), req, testCredential())
	require.NoError(t, err)

	assert.Equal(t, 6, report.SuccessfulCount)
	assert.Equal(t, int32(6), peak.Load())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetrieve_FillsMissingEndpointName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	expectAll(fetcher, map[string]audit.EndpointResult{
		audit.EndpointVitalSigns: audit.NewFailureResult("", 0, "Unexpected error: boom", 0),
	})

	report, err := newService(fetcher).Retrieve(context.Background(), req, testCredential())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, audit.EndpointVitalSigns, report.Failures[0].Endpoint)
}

func TestRetrieve_InvalidInputNeverBuildsFetcher(t *testing.T) {
	built := false
	svc := audit.NewService(audit.ServiceConfig{
		NewFetcher: func(credential.Credential) (audit.Fetcher, error) {
			built = true
			return nil, errors.New("unreachable")
		},
		Logger: zerolog.Nop(),
	})

	_, err := svc.Retrieve(context.Background(), audit.Request{PatNum: 0, AptNum: 1}, testCredential())
	assert.ErrorIs(t, err, audit.ErrValidation)

	bad := testCredential()
	bad.DeveloperKey = ""
	_, err = svc.Retrieve(context.Background(), req, bad)
	assert.ErrorIs(t, err, credential.ErrInvalid)

	assert.False(t, built)
}

func TestRetrieve_FactoryError(t *testing.T) {
	svc := audit.NewService(audit.ServiceConfig{
		NewFetcher: func(credential.Credential) (audit.Fetcher, error) {
			return nil, errors.New("no transport")
		},
		Logger: zerolog.Nop(),
	})

	_, err := svc.Retrieve(context.Background(), req, testCredential())
	assert.ErrorContains(t, err, "no transport")

	_, err = audit.NewService(audit.ServiceConfig{}).Retrieve(context.Background(), req, testCredential())
	assert.ErrorIs(t, err, audit.ErrNoFetcher)
}

func TestRetrieve_UsesClock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mocks.NewMockFetcher(ctrl)
	expectAll(fetcher, nil)

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	svc := audit.NewService(audit.ServiceConfig{
		NewFetcher: func(credential.Credential) (audit.Fetcher, error) { return fetcher, nil },
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return at },
	})

	report, err := svc.Retrieve(context.Background(), req, testCredential())
	require.NoError(t, err)
	assert.Equal(t, at, report.RetrievalTimestamp)
}
