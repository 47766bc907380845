package store

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"transcriptcleaner/pkg/domain"
)

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName indicates an active word list with the same name
	// already exists for the owner.
	ErrDuplicateName = errors.New("word list name already exists")
	// ErrVersionConflict indicates the version being edited is no longer
	// the active version of its chain.
	ErrVersionConflict = errors.New("word list version conflict")
	// ErrInvalidTransition indicates a job transition from a state that
	// does not permit it.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Store defines persistence for users, transcripts, word lists, and
// correction jobs. Implementations must apply each job transition and its
// side effects (notably the ledger charge on completion) atomically.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	UserCount() (int64, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	UpdateUserRole(id string, role domain.UserRole) error
	SetUsageLimit(id string, limit decimal.Decimal) error
	ResetSpend(id string) error
	DeleteUser(id string) error

	// transcripts
	SaveTranscript(domain.Transcript) error
	GetTranscript(id string) (domain.Transcript, bool, error)
	ListTranscriptsByOwner(ownerID string) ([]domain.Transcript, error)
	MarkTranscriptProcessed(id string) error
	DeleteTranscript(id string) error

	// word lists
	CreateWordList(domain.WordList) error
	CreateWordListVersion(currentID, csvContent, description string, wordCount int) (domain.WordList, error)
	GetWordList(id string) (domain.WordList, bool, error)
	GetActiveWordListByName(ownerID, name string) (domain.WordList, bool, error)
	ListActiveWordLists(ownerID string) ([]domain.WordList, error)
	GetWordListHistory(anyVersionID string) ([]domain.WordList, error)
	MarkWordListUsed(id string) error
	DeleteWordListChain(anyVersionID string) error

	// correction jobs
	CreateJob(domain.CorrectionJob) error
	GetJob(id string) (domain.CorrectionJob, bool, error)
	ListJobsByOwner(ownerID string) ([]domain.CorrectionJob, error)
	MarkJobProcessing(id string, startedAt time.Time) error
	CompleteJob(id, output string, cost decimal.Decimal, inputTokens, outputTokens int, completedAt time.Time) error
	FailJob(id, errMsg string, completedAt time.Time) error
	CancelJob(id string, completedAt time.Time) error
	DeleteJob(id string) error
}

// SessionStore issues and validates session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
