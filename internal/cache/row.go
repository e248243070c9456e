package cache

import (
	"database/sql"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/infrastructure/store"
)

const entryColumns = `id, query, query_hash, command, confidence_score,
	confirmation_count, rejection_count, last_used, created_at, os_type, shell_type`

// entryRow is the sqlx scan target; timestamps stay strings until converted.
type entryRow struct {
	ID                int64          `db:"id"`
	Query             string         `db:"query"`
	QueryHash         string         `db:"query_hash"`
	Command           string         `db:"command"`
	ConfidenceScore   float64        `db:"confidence_score"`
	ConfirmationCount int            `db:"confirmation_count"`
	RejectionCount    int            `db:"rejection_count"`
	LastUsed          string         `db:"last_used"`
	CreatedAt         string         `db:"created_at"`
	OSType            sql.NullString `db:"os_type"`
	ShellType         sql.NullString `db:"shell_type"`
}

// feedbackRow is the sqlx scan target for feedback_events.
type feedbackRow struct {
	ID        int64  `db:"id"`
	QueryHash string `db:"query_hash"`
	Command   string `db:"command"`
	Action    string `db:"action"`
	Timestamp string `db:"timestamp"`
}

func (r feedbackRow) toDomain() domain.FeedbackEvent {
	return domain.FeedbackEvent{
		ID:        r.ID,
		QueryHash: r.QueryHash,
		Command:   r.Command,
		Action:    domain.FeedbackAction(r.Action),
		Timestamp: store.ParseTime(r.Timestamp),
	}
}

func (r entryRow) toDomain() domain.CacheEntry {
	return domain.CacheEntry{
		ID:                r.ID,
		Query:             r.Query,
		QueryHash:         r.QueryHash,
		Command:           r.Command,
		ConfidenceScore:   r.ConfidenceScore,
		ConfirmationCount: r.ConfirmationCount,
		RejectionCount:    r.RejectionCount,
		LastUsed:          store.ParseTime(r.LastUsed),
		CreatedAt:         store.ParseTime(r.CreatedAt),
		OSType:            r.OSType.String,
		ShellType:         r.ShellType.String,
	}
}
