// Package memory is an in-process ReportWriter for tests and for
// deployments without a spreadsheet configured.
package memory

import (
	"context"
	"sync"

	ports "ledgerd/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	entries []ports.ReportEntry
}

var _ ports.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) AppendReportRow(_ context.Context, e ports.ReportEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []ports.ReportEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.ReportEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
