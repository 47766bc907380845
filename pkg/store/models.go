package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	FirstName    string
	LastName     string
	Organization string
	Role         string `gorm:"not null"`
	Active       bool   `gorm:"not null;default:true"`
	Verified     bool   `gorm:"not null;default:false"`
	SocialData   datatypes.JSON
	UsageLimit   decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	TotalSpend   decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time
}

type TranscriptModel struct {
	ID               string `gorm:"primaryKey"`
	OwnerID          string `gorm:"not null;index"`
	Title            string `gorm:"not null"`
	OriginalFilename string `gorm:"not null"`
	Content          string `gorm:"type:text;not null"`
	StorageKey       string
	SizeBytes        int64     `gorm:"not null"`
	CharacterCount   int       `gorm:"not null"`
	WordCount        int       `gorm:"not null"`
	Processed        bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// WordListModel rows are immutable once superseded; only the active flag of
// the previous head flips when a new version is appended.
type WordListModel struct {
	ID          string  `gorm:"primaryKey"`
	OwnerID     string  `gorm:"not null;index"`
	RootID      string  `gorm:"not null;index"`
	ParentID    *string `gorm:"index"`
	Name        string  `gorm:"not null"`
	Description string
	CSVContent  string `gorm:"type:text;not null"`
	Version     int    `gorm:"not null"`
	WordCount   int    `gorm:"not null"`
	Active      bool   `gorm:"not null;index"`
	Shared      bool   `gorm:"not null;default:false"`
	Template    bool   `gorm:"not null;default:false"`
	UsageCount  int    `gorm:"not null;default:0"`
	LastUsedAt  *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type CorrectionJobModel struct {
	ID               string  `gorm:"primaryKey"`
	OwnerID          string  `gorm:"not null;index"`
	TranscriptID     string  `gorm:"not null;index"`
	WordListID       *string `gorm:"index"`
	Mode             string  `gorm:"not null"`
	CustomPrompt     string  `gorm:"type:text"`
	Model            string  `gorm:"not null"`
	Status           string  `gorm:"not null;index"`
	CorrectedContent string  `gorm:"type:text"`
	Cost             decimal.Decimal `gorm:"type:numeric(10,4);not null"`
	InputTokens      int             `gorm:"not null;default:0"`
	OutputTokens     int             `gorm:"not null;default:0"`
	ErrorMessage     string          `gorm:"type:text"`
	RetryCount       int             `gorm:"not null;default:0"`
	CreatedAt        time.Time       `gorm:"not null;index"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time `gorm:"not null"`
}
