package rest

import (
	"time"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// The domain package intentionally carries no json tags (it is not a wire
// format); every REST response is built from an explicit DTO here, the same
// separation the teacher's rest package draws with its own *Response types.

type wordbookDTO struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Version     string    `json:"version,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toWordbookDTO(wb domain.Wordbook) wordbookDTO {
	return wordbookDTO{
		ID:          wb.ID,
		Name:        wb.Name,
		Language:    wb.Language,
		Description: wb.Description,
		Author:      wb.Author,
		Version:     wb.Version,
		IsActive:    wb.IsActive,
		CreatedAt:   wb.CreatedAt,
		UpdatedAt:   wb.UpdatedAt,
	}
}

func toWordbookDTOs(wbs []domain.Wordbook) []wordbookDTO {
	out := make([]wordbookDTO, len(wbs))
	for i, wb := range wbs {
		out[i] = toWordbookDTO(wb)
	}
	return out
}

type wordDTO struct {
	ID           int               `json:"id"`
	WordbookID   int               `json:"wordbook_id"`
	Lemma        string            `json:"lemma"`
	POS          string            `json:"pos,omitempty"`
	Gender       string            `json:"gender,omitempty"`
	IPA          string            `json:"ipa,omitempty"`
	MeaningText  string            `json:"meaning_text"`
	Translations map[string]string `json:"translations,omitempty"`
	Lesson       string            `json:"lesson,omitempty"`
	CEFR         string            `json:"cefr,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toWordDTO(w domain.Word) wordDTO {
	return wordDTO{
		ID:           w.ID,
		WordbookID:   w.WordbookID,
		Lemma:        w.Lemma,
		POS:          w.POS,
		Gender:       w.Gender.String(),
		IPA:          w.IPA,
		MeaningText:  w.MeaningText,
		Translations: w.Translations,
		Lesson:       w.Lesson,
		CEFR:         string(w.CEFR),
		Tags:         w.Tags,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}

func toWordDTOs(ws []domain.Word) []wordDTO {
	out := make([]wordDTO, len(ws))
	for i, w := range ws {
		out[i] = toWordDTO(w)
	}
	return out
}

type cardDTO struct {
	ID       int      `json:"id"`
	WordID   int      `json:"word_id"`
	Template string   `json:"template"`
	Hint     string   `json:"hint,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func toCardDTO(c domain.Card) cardDTO {
	return cardDTO{ID: c.ID, WordID: c.WordID, Template: c.Template.String(), Hint: c.Hint, Tags: c.Tags}
}

type srsStateDTO struct {
	CardID         int        `json:"card_id"`
	Algo           string     `json:"algo"`
	Due            time.Time  `json:"due"`
	IntervalDays   int        `json:"interval_days"`
	Ease           float64    `json:"ease"`
	Reps           int        `json:"reps"`
	Lapses         int        `json:"lapses"`
	LastGrade      *int       `json:"last_grade,omitempty"`
	FirstSeenAt    time.Time  `json:"first_seen_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
}

func toSRSStateDTO(st domain.SRSState) srsStateDTO {
	var lastGrade *int
	if st.LastGrade != nil {
		g := int(*st.LastGrade)
		lastGrade = &g
	}
	return srsStateDTO{
		CardID:         st.CardID,
		Algo:           string(st.Algo),
		Due:            st.Due,
		IntervalDays:   st.IntervalDays,
		Ease:           st.Ease,
		Reps:           st.Reps,
		Lapses:         st.Lapses,
		LastGrade:      lastGrade,
		FirstSeenAt:    st.FirstSeenAt,
		LastReviewedAt: st.LastReviewedAt,
	}
}

type reviewDTO struct {
	ID           int       `json:"id"`
	CardID       int       `json:"card_id"`
	Ts           time.Time `json:"ts"`
	Grade        int       `json:"grade"`
	ElapsedMs    *int      `json:"elapsed_ms,omitempty"`
	PrevInterval int       `json:"prev_interval"`
	NewInterval  int       `json:"new_interval"`
}

func toReviewDTO(r domain.Review) reviewDTO {
	return reviewDTO{
		ID:           r.ID,
		CardID:       r.CardID,
		Ts:           r.Ts,
		Grade:        int(r.Grade),
		ElapsedMs:    r.ElapsedMs,
		PrevInterval: r.PrevInterval,
		NewInterval:  r.NewInterval,
	}
}

type queuedCardDTO struct {
	Card   cardDTO      `json:"card"`
	Word   wordDTO      `json:"word"`
	SRS    *srsStateDTO `json:"srs,omitempty"`
	Source string       `json:"source"`
}

func toQueuedCardDTO(qc domain.QueuedCard) queuedCardDTO {
	dto := queuedCardDTO{Card: toCardDTO(qc.Card), Word: toWordDTO(qc.Word), Source: string(qc.Source)}
	if qc.SRS != nil {
		s := toSRSStateDTO(*qc.SRS)
		dto.SRS = &s
	}
	return dto
}

func toQueuedCardDTOs(cards []domain.QueuedCard) []queuedCardDTO {
	out := make([]queuedCardDTO, len(cards))
	for i, c := range cards {
		out[i] = toQueuedCardDTO(c)
	}
	return out
}

type queueStatsDTO struct {
	DueCount          int `json:"due_count"`
	RollingCount      int `json:"rolling_count"`
	NewCount          int `json:"new_count"`
	NewLimitEffective int `json:"new_limit_effective"`
	ReviewedToday     int `json:"reviewed_today"`
	StudyQueueSize    int `json:"study_queue_size"`
}

func toQueueStatsDTO(s domain.QueueStats) queueStatsDTO {
	return queueStatsDTO{
		DueCount:          s.DueCount,
		RollingCount:      s.RollingCount,
		NewCount:          s.NewCount,
		NewLimitEffective: s.NewLimitEffective,
		ReviewedToday:     s.ReviewedToday,
		StudyQueueSize:    s.StudyQueueSize,
	}
}

type importJobDTO struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Status     string            `json:"status"`
	Total      int               `json:"total"`
	Succeeded  int                `json:"succeeded"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Progress   int               `json:"progress_percent"`
	Message    string            `json:"message,omitempty"`
	WordbookID int               `json:"wordbook_id"`
	Errors     []domain.RowError `json:"errors,omitempty"`
}

func toImportJobDTO(j domain.ImportJob) importJobDTO {
	return importJobDTO{
		ID:         j.ID,
		Filename:   j.Filename,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Status:     string(j.Status),
		Total:      j.Total,
		Succeeded:  j.Succeeded,
		Failed:     j.Failed,
		Skipped:    j.Skipped,
		Progress:   j.ProgressPercent(),
		Message:    j.Message,
		WordbookID: j.WordbookID,
		Errors:     j.Errors,
	}
}

func toImportJobDTOs(js []domain.ImportJob) []importJobDTO {
	out := make([]importJobDTO, len(js))
	for i, j := range js {
		out[i] = toImportJobDTO(j)
	}
	return out
}

type todayStatsDTO struct {
	TotalCards     int `json:"total_cards"`
	DueToday       int `json:"due_today"`
	NewCards       int `json:"new_cards"`
	RollingReviews int `json:"rolling_reviews"`
	ReviewedToday  int `json:"reviewed_today"`
	StudyQueueSize int `json:"study_queue_size"`
}

func toTodayStatsDTO(s domain.TodayStats) todayStatsDTO {
	return todayStatsDTO{
		TotalCards:     s.TotalCards,
		DueToday:       s.DueToday,
		NewCards:       s.NewCards,
		RollingReviews: s.RollingReviews,
		ReviewedToday:  s.ReviewedToday,
		StudyQueueSize: s.StudyQueueSize,
	}
}

type progressBucketDTO struct {
	Date         string  `json:"date"`
	Reviews      int     `json:"reviews"`
	AverageGrade float64 `json:"average_grade"`
}

type progressStatsDTO struct {
	Days       int                 `json:"days"`
	Buckets    []progressBucketDTO `json:"buckets"`
	Total      int                 `json:"total"`
	ActiveDays int                 `json:"active_days"`
}

func toProgressStatsDTO(s domain.ProgressStats) progressStatsDTO {
	buckets := make([]progressBucketDTO, len(s.Buckets))
	for i, b := range s.Buckets {
		buckets[i] = progressBucketDTO{Date: b.Date.Format("2006-01-02"), Reviews: b.Reviews, AverageGrade: b.AverageGrade}
	}
	return progressStatsDTO{Days: s.Days, Buckets: buckets, Total: s.Total, ActiveDays: s.ActiveDays}
}

type dueForecastEntryDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

func toDueForecastDTOs(entries []domain.DueForecastEntry) []dueForecastEntryDTO {
	out := make([]dueForecastEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = dueForecastEntryDTO{Date: e.Date.Format("2006-01-02"), Count: e.Count}
	}
	return out
}
