package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/odaudit/odaudit/internal/audit"
)

// StatusLine returns the one-line outcome of a retrieval.
func StatusLine(report *audit.Report) string {
	switch report.ExitCode() {
	case audit.ExitSuccess:
		return fmt.Sprintf("All %d endpoints retrieved successfully", report.TotalEndpoints)
	case audit.ExitFailure:
		return fmt.Sprintf("All %d endpoints failed", report.TotalEndpoints)
	default:
		return fmt.Sprintf("Partial success: %d of %d endpoints retrieved, %d failed",
			report.SuccessfulCount, report.TotalEndpoints, report.FailedCount)
	}
}

// WriteSummary prints a per-endpoint table followed by the status line.
func WriteSummary(w io.Writer, report *audit.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Endpoint", "Status", "HTTP", "Duration", "Detail")

	for _, res := range report.Results {
		status := "OK"
		if !res.Success {
			status = "FAILED"
		}
		code := "-"
		if res.HTTPStatus > 0 {
			code = strconv.Itoa(res.HTTPStatus)
		}
		if err := table.Append([]string{
			res.EndpointName,
			status,
			code,
			fmt.Sprintf("%.0fms", res.DurationMS),
			res.ErrorMessage,
		}); err != nil {
			return err
		}
	}

	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, StatusLine(report))
	return err
}
