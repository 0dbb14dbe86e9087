package quality

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	KindCompleteness = "completeness"
	KindRange        = "range"
)

type CheckResult struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Column string `json:"column"`
	// Statistic is the non-null ratio for completeness and the violation count for
	// ranges. It is null for a completeness check over zero rows.
	Statistic       *float64 `json:"statistic"`
	Threshold       *float64 `json:"threshold,omitempty"`
	Low             *float64 `json:"low,omitempty"`
	High            *float64 `json:"high,omitempty"`
	ElementCount    int      `json:"element_count"`
	UnexpectedCount int      `json:"unexpected_count"`
	Success         bool     `json:"success"`
}

type Statistics struct {
	EvaluatedChecks    int     `json:"evaluated_checks"`
	SuccessfulChecks   int     `json:"successful_checks"`
	UnsuccessfulChecks int     `json:"unsuccessful_checks"`
	SuccessPercent     float64 `json:"success_percent"`
	RowCount           int     `json:"row_count"`
	SkippedInputLines  int     `json:"skipped_input_lines"`
}

type Report struct {
	ReportID   string        `json:"report_id"`
	RunID      string        `json:"run_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	FailFast   bool          `json:"fail_fast"`
	Success    bool          `json:"success"`
	Admitted   bool          `json:"admitted"`
	Statistics Statistics    `json:"statistics"`
	Checks     []CheckResult `json:"checks"`
}

// NewReportID derives a sortable identifier from ts plus a random suffix.
func NewReportID(ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "dq_" + ts.UTC().Format("20060102T150405Z") + "_" + suffix
}

// Check returns the result for a check name.
func (r *Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

func CompletenessCheckName(column string) string { return KindCompleteness + ":" + column }

func RangeCheckName(nutrient string) string { return KindRange + ":" + nutrient }
