package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"transcriptcleaner/internal/util"
	"transcriptcleaner/pkg/domain"
)

const migrateLockID int64 = 52715271

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &TranscriptModel{}, &WordListModel{}, &CorrectionJobModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		// Name uniqueness applies to the active head of each chain only;
		// superseded versions keep the name.
		if err := tx.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_word_lists_owner_name_active
			ON word_list_models (owner_id, name) WHERE active
		`).Error; err != nil {
			return fmt.Errorf("create active-name index: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'transcript_models'
					AND constraint_name = 'transcript_models_owner_id_fkey'
				) THEN
					ALTER TABLE transcript_models
					ADD CONSTRAINT transcript_models_owner_id_fkey
					FOREIGN KEY (owner_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'word_list_models'
					AND constraint_name = 'word_list_models_owner_id_fkey'
				) THEN
					ALTER TABLE word_list_models
					ADD CONSTRAINT word_list_models_owner_id_fkey
					FOREIGN KEY (owner_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'correction_job_models'
					AND constraint_name = 'correction_job_models_owner_id_fkey'
				) THEN
					ALTER TABLE correction_job_models
					ADD CONSTRAINT correction_job_models_owner_id_fkey
					FOREIGN KEY (owner_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'correction_job_models'
					AND constraint_name = 'correction_job_models_transcript_id_fkey'
				) THEN
					ALTER TABLE correction_job_models
					ADD CONSTRAINT correction_job_models_transcript_id_fkey
					FOREIGN KEY (transcript_id) REFERENCES transcript_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'correction_job_models'
					AND constraint_name = 'correction_job_models_word_list_id_fkey'
				) THEN
					ALTER TABLE correction_job_models
					ADD CONSTRAINT correction_job_models_word_list_id_fkey
					FOREIGN KEY (word_list_id) REFERENCES word_list_models(id) ON DELETE SET NULL;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "password_hash", "first_name", "last_name", "organization", "role", "active", "verified", "social_data", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserCount returns the number of registered users.
func (s *GormStore) UserCount() (int64, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UpdateUserRole changes the user's role.
func (s *GormStore) UpdateUserRole(id string, role domain.UserRole) error {
	return s.updateUser(id, map[string]any{"role": string(role)})
}

// SetUsageLimit sets the user's budget limit.
func (s *GormStore) SetUsageLimit(id string, limit decimal.Decimal) error {
	return s.updateUser(id, map[string]any{"usage_limit": limit})
}

// ResetSpend zeroes the user's cumulative spend. This is the single
// non-monotonic ledger operation.
func (s *GormStore) ResetSpend(id string) error {
	return s.updateUser(id, map[string]any{"total_spend": decimal.Zero})
}

func (s *GormStore) updateUser(id string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := s.db.Model(&UserModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user; owned rows go via FK cascade.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Delete(&UserModel{}, "id = ?", id).Error
}

// SaveTranscript stores or updates a transcript document.
func (s *GormStore) SaveTranscript(t domain.Transcript) error {
	model := transcriptToModel(t)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "storage_key", "processed", "updated_at"}),
	}).Create(&model).Error
}

// GetTranscript retrieves a transcript.
func (s *GormStore) GetTranscript(id string) (domain.Transcript, bool, error) {
	var model TranscriptModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Transcript{}, false, nil
		}
		return domain.Transcript{}, false, err
	}
	return transcriptFromModel(model), true, nil
}

// ListTranscriptsByOwner returns the owner's transcripts, newest first.
func (s *GormStore) ListTranscriptsByOwner(ownerID string) ([]domain.Transcript, error) {
	var models []TranscriptModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Transcript, 0, len(models))
	for _, m := range models {
		res = append(res, transcriptFromModel(m))
	}
	return res, nil
}

// MarkTranscriptProcessed flags the transcript as having a completed job.
func (s *GormStore) MarkTranscriptProcessed(id string) error {
	return s.db.Model(&TranscriptModel{}).Where("id = ?", id).
		Updates(map[string]any{"processed": true, "updated_at": time.Now().UTC()}).Error
}

// DeleteTranscript removes a transcript; its jobs go via FK cascade.
func (s *GormStore) DeleteTranscript(id string) error {
	return s.db.Delete(&TranscriptModel{}, "id = ?", id).Error
}

// CreateWordList persists a fresh chain root. The root's RootID is its own
// ID and its version must be 1.
func (s *GormStore) CreateWordList(list domain.WordList) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&WordListModel{}).
			Where("owner_id = ? AND name = ? AND active", list.OwnerID, list.Name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateName
		}
		model := wordListToModel(list)
		return tx.Create(&model).Error
	})
}

// CreateWordListVersion appends a new version to the chain headed by
// currentID and deactivates the current head in the same transaction. The
// deactivation is a compare-and-swap on the active flag: when another edit
// won the race, ErrVersionConflict is returned and nothing changes.
func (s *GormStore) CreateWordListVersion(currentID, csvContent, description string, wordCount int) (domain.WordList, error) {
	var created domain.WordList
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current WordListModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "id = ?", currentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		res := tx.Model(&WordListModel{}).
			Where("id = ? AND active", currentID).
			Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		if description == "" {
			description = current.Description
		}
		now := time.Now().UTC()
		next := WordListModel{
			ID:          util.NewID(),
			OwnerID:     current.OwnerID,
			RootID:      current.RootID,
			ParentID:    &current.ID,
			Name:        current.Name,
			Description: description,
			CSVContent:  csvContent,
			Version:     current.Version + 1,
			WordCount:   wordCount,
			Active:      true,
			Shared:      current.Shared,
			Template:    current.Template,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&next).Error; err != nil {
			return err
		}
		created = wordListFromModel(next)
		return nil
	})
	if err != nil {
		return domain.WordList{}, err
	}
	return created, nil
}

// GetWordList retrieves one version by ID.
func (s *GormStore) GetWordList(id string) (domain.WordList, bool, error) {
	var model WordListModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.WordList{}, false, nil
		}
		return domain.WordList{}, false, err
	}
	return wordListFromModel(model), true, nil
}

// GetActiveWordListByName returns the active head of the owner's chain with
// the given name.
func (s *GormStore) GetActiveWordListByName(ownerID, name string) (domain.WordList, bool, error) {
	var model WordListModel
	if err := s.db.Where("owner_id = ? AND name = ? AND active", ownerID, name).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.WordList{}, false, nil
		}
		return domain.WordList{}, false, err
	}
	return wordListFromModel(model), true, nil
}

// ListActiveWordLists returns the owner's active lists, most recently used
// first with never-used lists after all used ones.
func (s *GormStore) ListActiveWordLists(ownerID string) ([]domain.WordList, error) {
	var models []WordListModel
	if err := s.db.Where("owner_id = ? AND active", ownerID).
		Order("last_used_at DESC NULLS LAST").
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.WordList, 0, len(models))
	for _, m := range models {
		res = append(res, wordListFromModel(m))
	}
	return res, nil
}

// GetWordListHistory returns every version sharing the chain of the given
// version, newest first.
func (s *GormStore) GetWordListHistory(anyVersionID string) ([]domain.WordList, error) {
	var row WordListModel
	if err := s.db.First(&row, "id = ?", anyVersionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var models []WordListModel
	if err := s.db.Where("root_id = ?", row.RootID).
		Order("version DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.WordList, 0, len(models))
	for _, m := range models {
		res = append(res, wordListFromModel(m))
	}
	return res, nil
}

// MarkWordListUsed bumps usage on the given version only.
func (s *GormStore) MarkWordListUsed(id string) error {
	res := s.db.Model(&WordListModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": time.Now().UTC(),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWordListChain removes every version of the chain containing the
// given version. Job references are nulled via the FK.
func (s *GormStore) DeleteWordListChain(anyVersionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var row WordListModel
		if err := tx.First(&row, "id = ?", anyVersionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		return tx.Delete(&WordListModel{}, "root_id = ?", row.RootID).Error
	})
}

// CreateJob persists a new pending job.
func (s *GormStore) CreateJob(job domain.CorrectionJob) error {
	model := jobToModel(job)
	return s.db.Create(&model).Error
}

// GetJob retrieves a job.
func (s *GormStore) GetJob(id string) (domain.CorrectionJob, bool, error) {
	var model CorrectionJobModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.CorrectionJob{}, false, nil
		}
		return domain.CorrectionJob{}, false, err
	}
	return jobFromModel(model), true, nil
}

// ListJobsByOwner returns the owner's jobs, newest first.
func (s *GormStore) ListJobsByOwner(ownerID string) ([]domain.CorrectionJob, error) {
	var models []CorrectionJobModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.CorrectionJob, 0, len(models))
	for _, m := range models {
		res = append(res, jobFromModel(m))
	}
	return res, nil
}

// MarkJobProcessing moves a pending job to processing and records the start
// timestamp. Non-pending jobs are refused.
func (s *GormStore) MarkJobProcessing(id string, startedAt time.Time) error {
	return s.transitionJob(id, []string{string(domain.JobPending)}, map[string]any{
		"status":     string(domain.JobProcessing),
		"started_at": startedAt.UTC(),
		"updated_at": time.Now().UTC(),
	})
}

// CompleteJob finishes a processing job and charges the owner's ledger in
// the same transaction. This is the only path that increases spend.
func (s *GormStore) CompleteJob(id, output string, cost decimal.Decimal, inputTokens, outputTokens int, completedAt time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var job CorrectionJobModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if job.Status != string(domain.JobProcessing) {
			return ErrInvalidTransition
		}
		if err := tx.Model(&CorrectionJobModel{}).Where("id = ?", id).
			Updates(map[string]any{
				"status":            string(domain.JobCompleted),
				"corrected_content": output,
				"cost":              cost,
				"input_tokens":      inputTokens,
				"output_tokens":     outputTokens,
				"completed_at":      completedAt.UTC(),
				"updated_at":        time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		return tx.Model(&UserModel{}).Where("id = ?", job.OwnerID).
			Updates(map[string]any{
				"total_spend": gorm.Expr("total_spend + ?", cost),
				"updated_at":  time.Now().UTC(),
			}).Error
	})
}

// FailJob finishes a processing job with an error. No ledger mutation.
func (s *GormStore) FailJob(id, errMsg string, completedAt time.Time) error {
	return s.transitionJob(id, []string{string(domain.JobProcessing)}, map[string]any{
		"status":        string(domain.JobFailed),
		"error_message": errMsg,
		"completed_at":  completedAt.UTC(),
		"updated_at":    time.Now().UTC(),
	})
}

// CancelJob terminates a pending or processing job administratively.
func (s *GormStore) CancelJob(id string, completedAt time.Time) error {
	return s.transitionJob(id, []string{string(domain.JobPending), string(domain.JobProcessing)}, map[string]any{
		"status":       string(domain.JobCancelled),
		"completed_at": completedAt.UTC(),
		"updated_at":   time.Now().UTC(),
	})
}

// DeleteJob removes a job record.
func (s *GormStore) DeleteJob(id string) error {
	return s.db.Delete(&CorrectionJobModel{}, "id = ?", id).Error
}

func (s *GormStore) transitionJob(id string, fromStatuses []string, updates map[string]any) error {
	res := s.db.Model(&CorrectionJobModel{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&CorrectionJobModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Organization: u.Organization,
		Role:         string(u.Role),
		Active:       u.Active,
		Verified:     u.Verified,
		SocialData:   datatypes.JSON(u.SocialData),
		UsageLimit:   u.UsageLimit,
		TotalSpend:   u.TotalSpend,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Organization: m.Organization,
		Role:         role,
		Active:       m.Active,
		Verified:     m.Verified,
		SocialData:   []byte(m.SocialData),
		UsageLimit:   m.UsageLimit,
		TotalSpend:   m.TotalSpend,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func transcriptToModel(t domain.Transcript) TranscriptModel {
	return TranscriptModel{
		ID:               t.ID,
		OwnerID:          t.OwnerID,
		Title:            t.Title,
		OriginalFilename: t.OriginalFilename,
		Content:          t.Content,
		StorageKey:       t.StorageKey,
		SizeBytes:        t.SizeBytes,
		CharacterCount:   t.CharacterCount,
		WordCount:        t.WordCount,
		Processed:        t.Processed,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func transcriptFromModel(m TranscriptModel) domain.Transcript {
	return domain.Transcript{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		Title:            m.Title,
		OriginalFilename: m.OriginalFilename,
		Content:          m.Content,
		StorageKey:       m.StorageKey,
		SizeBytes:        m.SizeBytes,
		CharacterCount:   m.CharacterCount,
		WordCount:        m.WordCount,
		Processed:        m.Processed,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func wordListToModel(w domain.WordList) WordListModel {
	return WordListModel{
		ID:          w.ID,
		OwnerID:     w.OwnerID,
		RootID:      w.RootID,
		ParentID:    w.ParentID,
		Name:        w.Name,
		Description: w.Description,
		CSVContent:  w.CSVContent,
		Version:     w.Version,
		WordCount:   w.WordCount,
		Active:      w.Active,
		Shared:      w.Shared,
		Template:    w.Template,
		UsageCount:  w.UsageCount,
		LastUsedAt:  w.LastUsedAt,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func wordListFromModel(m WordListModel) domain.WordList {
	return domain.WordList{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		RootID:      m.RootID,
		ParentID:    m.ParentID,
		Name:        m.Name,
		Description: m.Description,
		CSVContent:  m.CSVContent,
		Version:     m.Version,
		WordCount:   m.WordCount,
		Active:      m.Active,
		Shared:      m.Shared,
		Template:    m.Template,
		UsageCount:  m.UsageCount,
		LastUsedAt:  m.LastUsedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func jobToModel(j domain.CorrectionJob) CorrectionJobModel {
	return CorrectionJobModel{
		ID:               j.ID,
		OwnerID:          j.OwnerID,
		TranscriptID:     j.TranscriptID,
		WordListID:       j.WordListID,
		Mode:             string(j.Mode),
		CustomPrompt:     j.CustomPrompt,
		Model:            j.Model,
		Status:           string(j.Status),
		CorrectedContent: j.CorrectedContent,
		Cost:             j.Cost,
		InputTokens:      j.InputTokens,
		OutputTokens:     j.OutputTokens,
		ErrorMessage:     j.ErrorMessage,
		RetryCount:       j.RetryCount,
		CreatedAt:        j.CreatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

func jobFromModel(m CorrectionJobModel) domain.CorrectionJob {
	return domain.CorrectionJob{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		TranscriptID:     m.TranscriptID,
		WordListID:       m.WordListID,
		Mode:             domain.ProcessingMode(m.Mode),
		CustomPrompt:     m.CustomPrompt,
		Model:            m.Model,
		Status:           domain.JobStatus(m.Status),
		CorrectedContent: m.CorrectedContent,
		Cost:             m.Cost,
		InputTokens:      m.InputTokens,
		OutputTokens:     m.OutputTokens,
		ErrorMessage:     m.ErrorMessage,
		RetryCount:       m.RetryCount,
		CreatedAt:        m.CreatedAt,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
