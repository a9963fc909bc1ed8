package domain

import "time"

// QueueOptions are the inputs to Scheduler.NextQueue (§4.5).
type QueueOptions struct {
	Limit          int
	NewLimit       int
	IncludeRolling bool
	Now            time.Time
	WordbookID     *int
}

// DefaultQueueOptions returns §4.5's documented defaults (limit 30,
// new_limit 10, rolling included). It does not clamp; see Clamp.
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{Limit: 30, NewLimit: 10, IncludeRolling: true}
}

// Clamp normalizes Limit/NewLimit into their documented valid ranges.
func (o QueueOptions) Clamp() QueueOptions {
	if o.Limit <= 0 {
		if o.Limit < 0 {
			o.Limit = 0
		}
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.NewLimit < 0 {
		o.NewLimit = 0
	}
	if o.NewLimit > o.Limit && o.Limit > 0 {
		// new_limit cannot exceed the overall limit.
		o.NewLimit = o.Limit
	}
	return o
}

// SchedulerConfig carries the configured NextQueue default limits (§4.5).
// scheduler.NewService stores it, but NextQueue does not read it; the REST
// handler starts from DefaultQueueOptions instead.
type SchedulerConfig struct {
	DefaultLimit    int
	DefaultNewLimit int
}

// QueueStats reports the pre-truncation composition of a NextQueue result.
type QueueStats struct {
	DueCount           int
	RollingCount       int
	NewCount           int
	NewLimitEffective  int
	ReviewedToday      int
	StudyQueueSize     int
}

// QueuedCard pairs a Card with the set it was drawn from, for ordering/debug
// and for building API responses.
type QueuedCard struct {
	Card     Card
	Word     Word
	SRS      *SRSState // nil for cards in the New set
	Source   QueueSource
}

// QueueSource identifies which of the three disjoint sets a card came from.
type QueueSource string

const (
	QueueSourceDue     QueueSource = "due"
	QueueSourceRolling QueueSource = "rolling"
	QueueSourceNew     QueueSource = "new"
)

// RollingOffsets are the fixed day offsets from first exposure used to
// re-surface new vocabulary regardless of SRS due dates (§4.5, GLOSSARY).
var RollingOffsets = []int{1, 2, 4, 7}

// TodayStats is the §4.7 "Today" view.
type TodayStats struct {
	TotalCards     int
	DueToday       int
	NewCards       int
	RollingReviews int
	ReviewedToday  int
	StudyQueueSize int
}

// ProgressBucket is one day's worth of review activity (§4.7 "Progress").
type ProgressBucket struct {
	Date         time.Time
	Reviews      int
	AverageGrade float64
}

// ProgressStats is the full §4.7 "Progress" view over a window of days.
type ProgressStats struct {
	Days       int
	Buckets    []ProgressBucket
	Total      int
	ActiveDays int
}

// DueForecastEntry is one day's worth of upcoming due cards (§4.7 "DueForecast").
type DueForecastEntry struct {
	Date  time.Time
	Count int
}
