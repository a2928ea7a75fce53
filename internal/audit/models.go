package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odaudit/odaudit/internal/phi"
)

// Endpoint names. They key the report's success map.
const (
	EndpointProcedureLogs = "procedurelogs"
	EndpointAllergies     = "allergies"
	EndpointMedications   = "medicationpats"
	EndpointProblems      = "diseases"
	EndpointPatientNotes  = "patientnotes"
	EndpointVitalSigns    = "vital_signs"

	// EndpointUnknown labels a failure whose task crashed before naming itself.
	EndpointUnknown = "unknown"
)

// TotalEndpoints is the fixed number of endpoints queried per retrieval.
const TotalEndpoints = 6

// AllEndpoints returns the endpoint names in retrieval order.
func AllEndpoints() []string {
	return []string{
		EndpointProcedureLogs,
		EndpointAllergies,
		EndpointMedications,
		EndpointProblems,
		EndpointPatientNotes,
		EndpointVitalSigns,
	}
}

// Process exit statuses derived from a report.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitPartial = 2
)

// ErrValidation is returned when a request fails validation.
var ErrValidation = errors.New("validation error")

var validate = validator.New()

// Request identifies the patient and appointment to audit.
type Request struct {
	PatNum int64 `json:"patnum" yaml:"patnum" validate:"gt=0"`
	AptNum int64 `json:"aptnum" yaml:"aptnum" validate:"gt=0"`
}

// Validate checks that both identifiers are positive.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s must be a positive integer", ErrValidation, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// EndpointResult is the outcome of one endpoint fetch. Build it with
// NewSuccessResult or NewFailureResult.
type EndpointResult struct {
	EndpointName string    `json:"endpoint_name"`
	HTTPStatus   int       `json:"http_status"`
	Success      bool      `json:"success"`
	Data         any       `json:"data,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   float64   `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewSuccessResult returns a successful result carrying data. A nil data
// value is stored as an empty object so a success always has a payload.
func NewSuccessResult(endpoint string, status int, data any, duration time.Duration) EndpointResult {
	if data == nil {
		data = map[string]any{}
	}
	return EndpointResult{
		EndpointName: endpoint,
		HTTPStatus:   status,
		Success:      true,
		Data:         data,
		DurationMS:   durationMS(duration),
		Timestamp:    time.Now().UTC(),
	}
}

// NewFailureResult returns a failed result. Status 0 marks network and
// timeout failures.
func NewFailureResult(endpoint string, status int, message string, duration time.Duration) EndpointResult {
	if message == "" {
		message = "Unknown error"
	}
	return EndpointResult{
		EndpointName: endpoint,
		HTTPStatus:   status,
		Success:      false,
		ErrorMessage: message,
		DurationMS:   durationMS(duration),
		Timestamp:    time.Now().UTC(),
	}
}

// IsRetriable reports whether the failure was a server or transport error.
func (r EndpointResult) IsRetriable() bool {
	return !r.Success && (r.HTTPStatus >= 500 || r.HTTPStatus == 0)
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Failure describes one failed endpoint in a report.
type Failure struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	HTTPStatus   int    `json:"http_status" yaml:"http_status"`
	ErrorMessage string `json:"error_message" yaml:"error_message"`
}

// Report consolidates the six endpoint results of one retrieval.
type Report struct {
	Request            Request        `json:"request"`
	Success            map[string]any `json:"success"`
	Failures           []Failure      `json:"failures"`
	TotalEndpoints     int            `json:"total_endpoints"`
	SuccessfulCount    int            `json:"successful_count"`
	FailedCount        int            `json:"failed_count"`
	RetrievalTimestamp time.Time      `json:"retrieval_timestamp"`

	// Results holds every endpoint result in retrieval order. It is not
	// part of the serialized report.
	Results []EndpointResult `json:"-"`
}

// NewReport partitions results into successes and failures. Failures keep
// the order in which results are given.
func NewReport(req Request, results []EndpointResult, at time.Time) *Report {
	r := &Report{
		Request:            req,
		Success:            make(map[string]any, len(results)),
		Failures:           []Failure{},
		TotalEndpoints:     TotalEndpoints,
		RetrievalTimestamp: at.UTC(),
		Results:            results,
	}

	for _, res := range results {
		if res.Success {
			r.Success[res.EndpointName] = res.Data
			continue
		}
		r.Failures = append(r.Failures, Failure{
			Endpoint:     res.EndpointName,
			HTTPStatus:   res.HTTPStatus,
			ErrorMessage: res.ErrorMessage,
		})
	}

	r.SuccessfulCount = len(r.Success)
	r.FailedCount = len(r.Failures)
	return r
}

// ExitCode returns 0 when every endpoint succeeded, 1 when none did and 2
// for partial success.
func (r *Report) ExitCode() int {
	switch {
	case r.FailedCount == 0:
		return ExitSuccess
	case r.SuccessfulCount == 0:
		return ExitFailure
	default:
		return ExitPartial
	}
}

// Redacted returns a copy of the report whose success payloads have PHI
// replaced. The receiver is not modified.
func (r *Report) Redacted() *Report {
	out := *r
	out.Success = make(map[string]any, len(r.Success))
	for endpoint, data := range r.Success {
		out.Success[endpoint] = phi.Redact(data)
	}
	out.Failures = append([]Failure(nil), r.Failures...)
	out.Results = make([]EndpointResult, len(r.Results))
	for i, res := range r.Results {
		if res.Data != nil {
			res.Data = phi.Redact(res.Data)
		}
		out.Results[i] = res
	}
	return &out
}
