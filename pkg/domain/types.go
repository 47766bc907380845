package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

type ProcessingMode string

const (
	ModeProofreading ProcessingMode = "proofreading"
	ModeGrammar      ProcessingMode = "grammar"
	ModeSummary      ProcessingMode = "summary"
	ModeCustom       ProcessingMode = "custom"
)

// AcceptsWordPairs reports whether the mode consumes word-list pairs.
func (m ProcessingMode) AcceptsWordPairs() bool {
	return m == ModeProofreading || m == ModeGrammar
}

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	Verified     bool      `json:"verified"`
	SocialData   []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Budget ledger facet: limit uses 2 decimal places, spend 4.
	UsageLimit decimal.Decimal `json:"usageLimit"`
	TotalSpend decimal.Decimal `json:"totalSpend"`
}

// RemainingBudget returns limit minus spend (may be negative after a
// completion that overran the admission estimate).
func (u User) RemainingBudget() decimal.Decimal {
	return u.UsageLimit.Sub(u.TotalSpend)
}

// CanAfford checks whether spend plus the estimate stays within the limit.
func (u User) CanAfford(estimate decimal.Decimal) bool {
	return u.TotalSpend.Add(estimate).LessThanOrEqual(u.UsageLimit)
}

type Transcript struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	Title            string    `json:"title"`
	OriginalFilename string    `json:"originalFilename"`
	Content          string    `json:"content"`
	StorageKey       string    `json:"-"`
	SizeBytes        int64     `json:"sizeBytes"`
	CharacterCount   int       `json:"characterCount"`
	WordCount        int       `json:"wordCount"`
	Processed        bool      `json:"processed"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// WordPair is one correction rule parsed from a word-list CSV row.
// It is derived, never persisted.
type WordPair struct {
	Incorrect string `json:"incorrect"`
	Correct   string `json:"correct"`
}

// WordList is one immutable version in a named correction list's chain.
// RootID is shared by every version of the chain; the root's RootID is its
// own ID. Exactly one version per chain is active at any time.
type WordList struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	RootID      string     `json:"rootId"`
	ParentID    *string    `json:"parentId,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CSVContent  string     `json:"csvContent"`
	Version     int        `json:"version"`
	WordCount   int        `json:"wordCount"`
	Active      bool       `json:"active"`
	Shared      bool       `json:"shared"`
	Template    bool       `json:"template"`
	UsageCount  int        `json:"usageCount"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CorrectionJob is one attempt to run a transcript through the correction
// service. Terminal jobs are never mutated; a retry is a new job.
type CorrectionJob struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"ownerId"`
	TranscriptID     string          `json:"transcriptId"`
	WordListID       *string         `json:"wordListId,omitempty"`
	Mode             ProcessingMode  `json:"processingMode"`
	CustomPrompt     string          `json:"customPrompt,omitempty"`
	Model            string          `json:"model"`
	Status           JobStatus       `json:"status"`
	CorrectedContent string          `json:"correctedContent,omitempty"`
	Cost             decimal.Decimal `json:"cost"`
	InputTokens      int             `json:"inputTokens"`
	OutputTokens     int             `json:"outputTokens"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	RetryCount       int             `json:"retryCount"`
	CreatedAt        time.Time       `json:"createdAt"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// TotalTokens returns prompt plus completion tokens.
func (j CorrectionJob) TotalTokens() int {
	return j.InputTokens + j.OutputTokens
}

// ParseProcessingMode maps a string to a known mode.
func ParseProcessingMode(s string) (ProcessingMode, bool) {
	switch ProcessingMode(s) {
	case ModeProofreading, ModeGrammar, ModeSummary, ModeCustom:
		return ProcessingMode(s), true
	default:
		return "", false
	}
}

// ParseJobStatus maps a string to a known job status.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch JobStatus(s) {
	case JobPending, JobProcessing, JobCompleted, JobFailed, JobCancelled:
		return JobStatus(s), true
	default:
		return "", false
	}
}
