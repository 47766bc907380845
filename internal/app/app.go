package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"transcriptcleaner/internal/util"
	"transcriptcleaner/pkg/ai"
	"transcriptcleaner/pkg/auth"
	"transcriptcleaner/pkg/domain"
	"transcriptcleaner/pkg/pricing"
	"transcriptcleaner/pkg/prompt"
	"transcriptcleaner/pkg/storage"
	"transcriptcleaner/pkg/store"
	"transcriptcleaner/pkg/wordcsv"
)

// UserLocker serializes budget admission per user.
type UserLocker interface {
	Acquire(ctx context.Context, userID string) (func(), error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	Store             store.Store
	Sessions          store.SessionStore
	Files             storage.ObjectStore
	Corrector         ai.Corrector
	Locker            UserLocker
	DefaultUsageLimit decimal.Decimal
	DefaultModel      string
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// App is the core application service wiring storage, the correction
// service, and domain logic together.
type App struct {
	store             store.Store
	sessions          store.SessionStore
	files             storage.ObjectStore
	corrector         ai.Corrector
	locker            UserLocker
	defaultUsageLimit decimal.Decimal
	defaultModel      string
	maxUploadBytes    int64
	allowedExts       map[string]bool
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Files == nil {
		cfg.Files = storage.NewMemoryObjectStore()
	}
	if cfg.Corrector == nil {
		return nil, errors.New("corrector is required")
	}
	if cfg.DefaultUsageLimit.IsZero() {
		cfg.DefaultUsageLimit = decimal.RequireFromString("10.00")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = pricing.DefaultModel
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".txt", ".csv", ".pdf", ".html", ".htm"}
	}
	exts := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[strings.ToLower(strings.TrimSpace(ext))] = true
	}
	return &App{
		store:             cfg.Store,
		sessions:          cfg.Sessions,
		files:             cfg.Files,
		corrector:         cfg.Corrector,
		locker:            cfg.Locker,
		defaultUsageLimit: cfg.DefaultUsageLimit,
		defaultModel:      cfg.DefaultModel,
		maxUploadBytes:    cfg.MaxUploadBytes,
		allowedExts:       exts,
	}, nil
}

// MaxUploadBytes reports the configured upload size cap.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}

// Register creates a new account. The first registered user becomes admin.
func (a *App) Register(username, email, password, firstName, lastName, organization string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return domain.User{}, "", errors.New("username, email and password required")
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailTaken
	}
	role := domain.RoleUser
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Organization: strings.TrimSpace(organization),
		Role:         role,
		Active:       true,
		UsageLimit:   a.defaultUsageLimit,
		TotalSpend:   decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !user.Active {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout revokes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// ListUsers returns all users (admin use only).
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// UpdateUserRole changes a user's role (admin use only).
func (a *App) UpdateUserRole(userID string, role domain.UserRole) error {
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	if err := a.store.UpdateUserRole(userID, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// SetUsageLimit updates a user's budget limit (admin use only).
func (a *App) SetUsageLimit(userID string, limit decimal.Decimal) error {
	if limit.IsNegative() {
		return errors.New("usage limit must be non-negative")
	}
	if err := a.store.SetUsageLimit(userID, limit.Round(2)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set usage limit: %w", err)
	}
	return nil
}

// ResetSpend zeroes a user's cumulative spend. This is the only path by
// which spend decreases.
func (a *App) ResetSpend(userID string) error {
	if err := a.store.ResetSpend(userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("reset spend: %w", err)
	}
	return nil
}

// DeleteUser removes a user and everything they own (admin use only).
func (a *App) DeleteUser(userID string) error {
	return a.store.DeleteUser(userID)
}

// UsageSummary describes a user's budget state.
type UsageSummary struct {
	Limit       decimal.Decimal `json:"limit"`
	Spend       decimal.Decimal `json:"spend"`
	Remaining   decimal.Decimal `json:"remaining"`
	UsedPercent float64         `json:"usedPercent"`
}

// Usage returns the user's current budget summary from a fresh read.
func (a *App) Usage(userID string) (UsageSummary, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return UsageSummary{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return UsageSummary{}, ErrNotFound
	}
	summary := UsageSummary{
		Limit:     user.UsageLimit,
		Spend:     user.TotalSpend,
		Remaining: user.RemainingBudget(),
	}
	if user.UsageLimit.IsPositive() {
		pct, _ := user.TotalSpend.Div(user.UsageLimit).Mul(decimal.NewFromInt(100)).Float64()
		summary.UsedPercent = pct
	}
	return summary, nil
}

// UploadTranscript extracts text from an uploaded file, stores the raw file
// in object storage, and persists the transcript document.
func (a *App) UploadTranscript(ctx context.Context, owner domain.User, title, filename string, data []byte) (domain.Transcript, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return domain.Transcript{}, errors.New("filename required")
	}
	if int64(len(data)) > a.maxUploadBytes {
		return domain.Transcript{}, fmt.Errorf("file exceeds %d byte limit", a.maxUploadBytes)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !a.allowedExts[ext] {
		return domain.Transcript{}, fmt.Errorf("unsupported file type %q", ext)
	}
	content, err := extractText(filename, data)
	if err != nil {
		return domain.Transcript{}, err
	}
	if title = strings.TrimSpace(title); title == "" {
		title = titleFromName(filename)
	}
	id := util.NewID()
	key := "transcripts/" + id + "/" + filename
	if err := a.files.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypeFor(ext)); err != nil {
		return domain.Transcript{}, fmt.Errorf("save file: %w", err)
	}
	now := time.Now().UTC()
	transcript := domain.Transcript{
		ID:               id,
		OwnerID:          owner.ID,
		Title:            title,
		OriginalFilename: filename,
		Content:          content,
		StorageKey:       key,
		SizeBytes:        int64(len(data)),
		CharacterCount:   len(content),
		WordCount:        countWords(content),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.store.SaveTranscript(transcript); err != nil {
		return domain.Transcript{}, fmt.Errorf("save transcript: %w", err)
	}
	return transcript, nil
}

// GetTranscript returns a transcript owned by (or visible to) the user.
func (a *App) GetTranscript(user domain.User, id string) (domain.Transcript, error) {
	transcript, ok, err := a.store.GetTranscript(id)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("fetch transcript: %w", err)
	}
	if !ok {
		return domain.Transcript{}, ErrNotFound
	}
	if transcript.OwnerID != user.ID && user.Role != domain.RoleAdmin {
		return domain.Transcript{}, ErrNotFound
	}
	return transcript, nil
}

// ListTranscripts returns the user's transcripts, newest first.
func (a *App) ListTranscripts(user domain.User) ([]domain.Transcript, error) {
	return a.store.ListTranscriptsByOwner(user.ID)
}

// UpdateTranscript edits title and content, recomputing derived counts.
func (a *App) UpdateTranscript(user domain.User, id, title, content string) (domain.Transcript, error) {
	transcript, err := a.GetTranscript(user, id)
	if err != nil {
		return domain.Transcript{}, err
	}
	if title = strings.TrimSpace(title); title != "" {
		transcript.Title = title
	}
	if content != "" {
		transcript.Content = content
		transcript.CharacterCount = len(content)
		transcript.WordCount = countWords(content)
	}
	transcript.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveTranscript(transcript); err != nil {
		return domain.Transcript{}, fmt.Errorf("save transcript: %w", err)
	}
	return transcript, nil
}

// DeleteTranscript removes the transcript, its jobs, and the stored file.
func (a *App) DeleteTranscript(ctx context.Context, user domain.User, id string) error {
	transcript, err := a.GetTranscript(user, id)
	if err != nil {
		return err
	}
	if transcript.StorageKey != "" {
		if err := a.files.Delete(ctx, transcript.StorageKey); err != nil {
			slog.Warn("delete transcript file", "transcript_id", id, "err", err)
		}
	}
	return a.store.DeleteTranscript(transcript.ID)
}

// TranscriptFileURL returns a presigned URL for the original upload.
func (a *App) TranscriptFileURL(ctx context.Context, user domain.User, id string, expiry time.Duration) (string, error) {
	transcript, err := a.GetTranscript(user, id)
	if err != nil {
		return "", err
	}
	if transcript.StorageKey == "" {
		return "", ErrNotFound
	}
	url, err := a.files.PresignGet(ctx, transcript.StorageKey, expiry)
	if err != nil {
		return "", fmt.Errorf("presign transcript file: %w", err)
	}
	return url, nil
}

// CreateWordList validates the CSV and creates a new chain root.
func (a *App) CreateWordList(owner domain.User, name, description, csvContent string) (domain.WordList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.WordList{}, errors.New("word list name required")
	}
	if problems := wordcsv.Validate(csvContent); len(problems) > 0 {
		return domain.WordList{}, &ValidationError{Problems: problems}
	}
	now := time.Now().UTC()
	id := util.NewID()
	list := domain.WordList{
		ID:          id,
		OwnerID:     owner.ID,
		RootID:      id,
		Name:        name,
		Description: strings.TrimSpace(description),
		CSVContent:  csvContent,
		Version:     1,
		WordCount:   wordcsv.Count(csvContent),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateWordList(list); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return domain.WordList{}, ErrDuplicateName
		}
		return domain.WordList{}, fmt.Errorf("create word list: %w", err)
	}
	return list, nil
}

// EditWordList appends a new version to the chain. The edit must target the
// chain's current active version.
func (a *App) EditWordList(user domain.User, id, csvContent, description string) (domain.WordList, error) {
	current, err := a.getOwnedWordList(user, id)
	if err != nil {
		return domain.WordList{}, err
	}
	if problems := wordcsv.Validate(csvContent); len(problems) > 0 {
		return domain.WordList{}, &ValidationError{Problems: problems}
	}
	next, err := a.store.CreateWordListVersion(current.ID, csvContent, strings.TrimSpace(description), wordcsv.Count(csvContent))
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return domain.WordList{}, ErrVersionConflict
		}
		if errors.Is(err, store.ErrNotFound) {
			return domain.WordList{}, ErrNotFound
		}
		return domain.WordList{}, fmt.Errorf("create word list version: %w", err)
	}
	return next, nil
}

// RestoreWordListVersion copies an older version's content forward as a new
// head. The chain stays append-only; nothing is reactivated in place.
func (a *App) RestoreWordListVersion(user domain.User, versionID string) (domain.WordList, error) {
	target, err := a.getOwnedWordList(user, versionID)
	if err != nil {
		return domain.WordList{}, err
	}
	history, err := a.store.GetWordListHistory(target.ID)
	if err != nil {
		return domain.WordList{}, fmt.Errorf("fetch history: %w", err)
	}
	var head *domain.WordList
	for i := range history {
		if history[i].Active {
			head = &history[i]
			break
		}
	}
	if head == nil {
		return domain.WordList{}, ErrVersionConflict
	}
	if head.ID == target.ID {
		return *head, nil
	}
	next, err := a.store.CreateWordListVersion(head.ID, target.CSVContent, target.Description, target.WordCount)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return domain.WordList{}, ErrVersionConflict
		}
		return domain.WordList{}, fmt.Errorf("restore version: %w", err)
	}
	return next, nil
}

// GetWordList returns one version owned by the user.
func (a *App) GetWordList(user domain.User, id string) (domain.WordList, error) {
	return a.getOwnedWordList(user, id)
}

// ListWordLists returns the user's active lists, most recently used first.
func (a *App) ListWordLists(user domain.User) ([]domain.WordList, error) {
	return a.store.ListActiveWordLists(user.ID)
}

// WordListHistory returns the full version chain, newest first.
func (a *App) WordListHistory(user domain.User, id string) ([]domain.WordList, error) {
	if _, err := a.getOwnedWordList(user, id); err != nil {
		return nil, err
	}
	history, err := a.store.GetWordListHistory(id)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return history, nil
}

// DownloadWordList returns the version's CSV and records the use.
func (a *App) DownloadWordList(user domain.User, id string) (domain.WordList, error) {
	list, err := a.getOwnedWordList(user, id)
	if err != nil {
		return domain.WordList{}, err
	}
	if err := a.store.MarkWordListUsed(list.ID); err != nil {
		slog.Warn("mark word list used", "word_list_id", list.ID, "err", err)
	}
	return list, nil
}

// DeleteWordList removes the whole version chain.
func (a *App) DeleteWordList(user domain.User, id string) error {
	list, err := a.getOwnedWordList(user, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteWordListChain(list.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete word list chain: %w", err)
	}
	return nil
}

func (a *App) getOwnedWordList(user domain.User, id string) (domain.WordList, error) {
	list, ok, err := a.store.GetWordList(id)
	if err != nil {
		return domain.WordList{}, fmt.Errorf("fetch word list: %w", err)
	}
	if !ok {
		return domain.WordList{}, ErrNotFound
	}
	if list.OwnerID != user.ID && user.Role != domain.RoleAdmin {
		return domain.WordList{}, ErrNotFound
	}
	return list, nil
}

// ProcessParams describes one correction request.
type ProcessParams struct {
	TranscriptID       string
	WordListID         string
	Mode               domain.ProcessingMode
	CustomInstructions string
	Model              string
}

// ProcessTranscript creates a correction job and runs it to a terminal
// state. Admission failures leave the job pending and are returned to the
// caller; correction-service failures mark the job failed and are not
// propagated.
func (a *App) ProcessTranscript(ctx context.Context, user domain.User, params ProcessParams) (domain.CorrectionJob, error) {
	job, transcript, pairs, err := a.createJob(user, params)
	if err != nil {
		return domain.CorrectionJob{}, err
	}
	return a.runJob(ctx, user, job, transcript, pairs)
}

// RetryJob creates a brand-new job copying a failed or cancelled job's
// configuration and runs it. The original record is never mutated.
func (a *App) RetryJob(ctx context.Context, user domain.User, jobID string) (domain.CorrectionJob, error) {
	original, err := a.GetJob(user, jobID)
	if err != nil {
		return domain.CorrectionJob{}, err
	}
	if original.Status != domain.JobFailed && original.Status != domain.JobCancelled {
		return domain.CorrectionJob{}, ErrNotRetryable
	}
	params := ProcessParams{
		TranscriptID:       original.TranscriptID,
		Mode:               original.Mode,
		CustomInstructions: original.CustomPrompt,
		Model:              original.Model,
	}
	if original.WordListID != nil {
		params.WordListID = *original.WordListID
	}
	return a.ProcessTranscript(ctx, user, params)
}

// ListJobs returns the user's jobs, newest first.
func (a *App) ListJobs(user domain.User) ([]domain.CorrectionJob, error) {
	return a.store.ListJobsByOwner(user.ID)
}

// GetJob returns one job owned by (or visible to) the user.
func (a *App) GetJob(user domain.User, id string) (domain.CorrectionJob, error) {
	job, ok, err := a.store.GetJob(id)
	if err != nil {
		return domain.CorrectionJob{}, fmt.Errorf("fetch job: %w", err)
	}
	if !ok {
		return domain.CorrectionJob{}, ErrNotFound
	}
	if job.OwnerID != user.ID && user.Role != domain.RoleAdmin {
		return domain.CorrectionJob{}, ErrNotFound
	}
	return job, nil
}

// CancelJob terminates a pending or processing job (admin use only).
func (a *App) CancelJob(id string) (domain.CorrectionJob, error) {
	if err := a.store.CancelJob(id, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.CorrectionJob{}, ErrNotFound
		case errors.Is(err, store.ErrInvalidTransition):
			return domain.CorrectionJob{}, ErrNotCancellable
		default:
			return domain.CorrectionJob{}, fmt.Errorf("cancel job: %w", err)
		}
	}
	job, _, err := a.store.GetJob(id)
	if err != nil {
		return domain.CorrectionJob{}, fmt.Errorf("fetch job: %w", err)
	}
	return job, nil
}

// DeleteJob removes a job record.
func (a *App) DeleteJob(user domain.User, id string) error {
	if _, err := a.GetJob(user, id); err != nil {
		return err
	}
	return a.store.DeleteJob(id)
}

func (a *App) createJob(user domain.User, params ProcessParams) (domain.CorrectionJob, domain.Transcript, []domain.WordPair, error) {
	transcript, err := a.GetTranscript(user, params.TranscriptID)
	if err != nil {
		return domain.CorrectionJob{}, domain.Transcript{}, nil, err
	}
	if strings.TrimSpace(transcript.Content) == "" {
		return domain.CorrectionJob{}, domain.Transcript{}, nil, errors.New("transcript has no text")
	}
	mode := params.Mode
	if _, ok := domain.ParseProcessingMode(string(mode)); !ok {
		return domain.CorrectionJob{}, domain.Transcript{}, nil, fmt.Errorf("unknown processing mode %q", mode)
	}
	model := params.Model
	if model == "" {
		model = a.defaultModel
	}
	model = pricing.Normalize(model)

	var pairs []domain.WordPair
	var wordListID *string
	if params.WordListID != "" && mode.AcceptsWordPairs() {
		list, err := a.getOwnedWordList(user, params.WordListID)
		if err != nil {
			return domain.CorrectionJob{}, domain.Transcript{}, nil, err
		}
		pairs = wordcsv.Parse(list.CSVContent)
		wordListID = &list.ID
	}

	now := time.Now().UTC()
	job := domain.CorrectionJob{
		ID:           util.NewID(),
		OwnerID:      user.ID,
		TranscriptID: transcript.ID,
		WordListID:   wordListID,
		Mode:         mode,
		CustomPrompt: strings.TrimSpace(params.CustomInstructions),
		Model:        model,
		Status:       domain.JobPending,
		Cost:         decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateJob(job); err != nil {
		return domain.CorrectionJob{}, domain.Transcript{}, nil, fmt.Errorf("save job: %w", err)
	}
	return job, transcript, pairs, nil
}

// runJob performs budget admission and one correction attempt.
func (a *App) runJob(ctx context.Context, user domain.User, job domain.CorrectionJob, transcript domain.Transcript, pairs []domain.WordPair) (domain.CorrectionJob, error) {
	estimate := pricing.EstimateCost(transcript.Content, job.Model)

	release, err := a.acquireUserLock(ctx, user.ID)
	if err != nil {
		return domain.CorrectionJob{}, err
	}
	err = func() error {
		defer release()
		// Fresh spend read under the lock: a concurrent completion may
		// have charged the ledger since the caller's last view.
		fresh, ok, ferr := a.store.GetUserByID(user.ID)
		if ferr != nil {
			return fmt.Errorf("fetch user: %w", ferr)
		}
		if !ok {
			return ErrNotFound
		}
		if !fresh.CanAfford(estimate) {
			return ErrBudgetExceeded
		}
		if terr := a.store.MarkJobProcessing(job.ID, time.Now().UTC()); terr != nil {
			return fmt.Errorf("start job: %w", terr)
		}
		return nil
	}()
	if err != nil {
		// Refused admission records no state change; the job stays pending.
		return domain.CorrectionJob{}, err
	}

	if job.WordListID != nil {
		if err := a.store.MarkWordListUsed(*job.WordListID); err != nil {
			slog.Warn("mark word list used", "word_list_id", *job.WordListID, "err", err)
		}
	}

	request := prompt.Build(job.Mode, job.CustomPrompt, transcript.Content, pairs, job.Model)
	result, err := a.corrector.Correct(ctx, request)
	now := time.Now().UTC()
	if err != nil {
		slog.Error("correction failed", "job_id", job.ID, "err", err)
		if ferr := a.store.FailJob(job.ID, err.Error(), now); ferr != nil {
			return domain.CorrectionJob{}, fmt.Errorf("record failure: %w", ferr)
		}
		return a.reloadJob(job.ID)
	}

	cost := pricing.CostFor(result.TotalTokens(), job.Model)
	if err := a.store.CompleteJob(job.ID, result.OutputText, cost, result.PromptTokens, result.CompletionTokens, now); err != nil {
		return domain.CorrectionJob{}, fmt.Errorf("record completion: %w", err)
	}
	if err := a.store.MarkTranscriptProcessed(transcript.ID); err != nil {
		slog.Warn("mark transcript processed", "transcript_id", transcript.ID, "err", err)
	}
	slog.Info("correction completed",
		"job_id", job.ID,
		"model", job.Model,
		"tokens", result.TotalTokens(),
		"cost", cost.String())
	return a.reloadJob(job.ID)
}

func (a *App) acquireUserLock(ctx context.Context, userID string) (func(), error) {
	if a.locker == nil {
		return func() {}, nil
	}
	release, err := a.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, ErrBusy
	}
	return release, nil
}

func (a *App) reloadJob(id string) (domain.CorrectionJob, error) {
	job, ok, err := a.store.GetJob(id)
	if err != nil {
		return domain.CorrectionJob{}, fmt.Errorf("fetch job: %w", err)
	}
	if !ok {
		return domain.CorrectionJob{}, ErrNotFound
	}
	return job, nil
}

func titleFromName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" {
		return base
	}
	return name
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
