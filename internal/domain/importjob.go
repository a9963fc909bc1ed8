package domain

import "time"

// ImportJob tracks one background bulk-import run (§3, §4.3). Once Status
// reaches a terminal value the row is immutable.
type ImportJob struct {
	ID         string // opaque token, UUID-backed (see DESIGN.md)
	Filename   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     ImportStatus
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	Message    string
	WordbookID int
	Errors     []RowError
}

// ProgressPercent computes the clamped, monotonically non-decreasing
// progress value described in §4.3.
func (j ImportJob) ProgressPercent() int {
	total := j.Total
	if total < 1 {
		total = 1
	}
	p := 100 * (j.Succeeded + j.Failed + j.Skipped) / total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// IsConsistent checks the §8 terminal invariant:
// succeeded + failed + skipped <= total, and == at terminal states.
func (j ImportJob) IsConsistent() bool {
	sum := j.Succeeded + j.Failed + j.Skipped
	if sum > j.Total {
		return false
	}
	if j.Status.IsTerminal() && sum != j.Total {
		return false
	}
	return true
}

// Settings is an opaque, process-wide preferences record (§3, §6). The core
// does not interpret its contents; it is a JSON blob round-tripped verbatim.
type Settings struct {
	Data map[string]any
}
