// Package domain defines core business entities and value objects for aicmd.
//
// The domain layer is independent of infrastructure concerns and represents
// pure business logic and data structures: cache entries, feedback events,
// and the decision types produced by the orchestrator.
package domain

import "time"

// CacheEntry is one cached translation keyed by the normalized query hash.
// QueryHash uniquely identifies an entry; saving an existing hash merges
// into the row instead of duplicating it.
type CacheEntry struct {
	ID                int64
	Query             string
	QueryHash         string
	Command           string
	ConfidenceScore   float64
	ConfirmationCount int
	RejectionCount    int
	LastUsed          time.Time
	CreatedAt         time.Time
	OSType            string
	ShellType         string
}

// FeedbackAction is the recorded outcome of a user confirmation.
type FeedbackAction string

const (
	FeedbackConfirm FeedbackAction = "confirm"
	FeedbackReject  FeedbackAction = "reject"
)

// FeedbackEvent is an append-only audit record of one confirm/reject.
// It references entries by query hash; deleting an entry keeps its events.
type FeedbackEvent struct {
	ID        int64
	QueryHash string
	Command   string
	Action    FeedbackAction
	Timestamp time.Time
}

// MatchKind classifies how a query was resolved against the cache.
type MatchKind string

const (
	NoMatch      MatchKind = "none"
	ExactMatch   MatchKind = "exact"
	SimilarMatch MatchKind = "similar"
)

// Action is the orchestrator's verdict for one query.
type Action string

const (
	// ActionAutoUse reuses the cached command without asking.
	ActionAutoUse Action = "auto_use"
	// ActionConfirm reuses the cached command pending user confirmation.
	ActionConfirm Action = "confirm"
	// ActionTranslate falls back to the translation service.
	ActionTranslate Action = "translate"
)

// Decision carries everything the CLI needs to act on one query.
type Decision struct {
	Action     Action
	Command    string
	Match      MatchKind
	QueryHash  string
	Confidence float64
	Similarity float64
	Risk       RiskAssessment
	Source     string
}

// ConfirmationResult is the outcome of the interactive confirmation step.
type ConfirmationResult string

const (
	ResultConfirmed ConfirmationResult = "confirmed"
	ResultRejected  ConfirmationResult = "rejected"
	// ResultTimedOut means the user gave no answer; no feedback is recorded.
	ResultTimedOut ConfirmationResult = "timed_out"
)

// SimilarHit pairs a cache entry with its similarity to the incoming query.
type SimilarHit struct {
	Entry      CacheEntry
	Similarity float64
}

// StoreStats reports store size for maintenance commands.
type StoreStats struct {
	CacheEntries   int64
	FeedbackEvents int64
	FileSizeBytes  int64
	Path           string
}

// CacheHealth is the degradation controller's observable state.
type CacheHealth struct {
	Enabled    bool
	ErrorCount int
	LastError  string
}
