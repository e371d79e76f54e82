package sheets

import (
	"context"

	"ledgerd/internal/core"
)

// ReportEntry is one user's monthly summary, ready to export.
type ReportEntry struct {
	UserEmail string
	UserName  string
	Summary   core.MonthSummary
}

// ReportWriter is the outbound port for monthly report export.
type ReportWriter interface {
	AppendReportRow(ctx context.Context, e ReportEntry) error
}
