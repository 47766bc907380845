package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"transcriptcleaner/internal/util"
	"transcriptcleaner/pkg/domain"
)

// MemoryStore keeps everything in-process. It mirrors the transactional
// semantics of GormStore (conditional transitions, atomic completion plus
// ledger charge) and is used by tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	transcripts map[string]domain.Transcript
	wordLists   map[string]domain.WordList
	jobs        map[string]domain.CorrectionJob
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		email:       make(map[string]string),
		transcripts: make(map[string]domain.Transcript),
		wordLists:   make(map[string]domain.WordList),
		jobs:        make(map[string]domain.CorrectionJob),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[strings.ToLower(u.Email)] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[strings.ToLower(email)]
	return ok, nil
}

// UserCount returns the number of registered users.
func (m *MemoryStore) UserCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[strings.ToLower(email)]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns users ordered by creation time.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// UpdateUserRole changes the user's role.
func (m *MemoryStore) UpdateUserRole(id string, role domain.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

// SetUsageLimit sets the user's budget limit.
func (m *MemoryStore) SetUsageLimit(id string, limit decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.UsageLimit = limit
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

// ResetSpend zeroes the user's cumulative spend.
func (m *MemoryStore) ResetSpend(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TotalSpend = decimal.Zero
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

// DeleteUser removes the user and everything they own.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	delete(m.users, id)
	delete(m.email, strings.ToLower(u.Email))
	for tid, t := range m.transcripts {
		if t.OwnerID == id {
			delete(m.transcripts, tid)
		}
	}
	for wid, w := range m.wordLists {
		if w.OwnerID == id {
			delete(m.wordLists, wid)
		}
	}
	for jid, j := range m.jobs {
		if j.OwnerID == id {
			delete(m.jobs, jid)
		}
	}
	return nil
}

// SaveTranscript stores or replaces a transcript.
func (m *MemoryStore) SaveTranscript(t domain.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[t.ID] = t
	return nil
}

// GetTranscript retrieves a transcript.
func (m *MemoryStore) GetTranscript(id string) (domain.Transcript, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transcripts[id]
	return t, ok, nil
}

// ListTranscriptsByOwner returns the owner's transcripts, newest first.
func (m *MemoryStore) ListTranscriptsByOwner(ownerID string) ([]domain.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Transcript, 0)
	for _, t := range m.transcripts {
		if t.OwnerID == ownerID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// MarkTranscriptProcessed flags the transcript.
func (m *MemoryStore) MarkTranscriptProcessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transcripts[id]
	if !ok {
		return ErrNotFound
	}
	t.Processed = true
	t.UpdatedAt = time.Now().UTC()
	m.transcripts[id] = t
	return nil
}

// DeleteTranscript removes the transcript and its jobs.
func (m *MemoryStore) DeleteTranscript(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcripts, id)
	for jid, j := range m.jobs {
		if j.TranscriptID == id {
			delete(m.jobs, jid)
		}
	}
	return nil
}

// CreateWordList persists a fresh chain root.
func (m *MemoryStore) CreateWordList(list domain.WordList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wordLists {
		if w.OwnerID == list.OwnerID && w.Name == list.Name && w.Active {
			return ErrDuplicateName
		}
	}
	m.wordLists[list.ID] = list
	return nil
}

// CreateWordListVersion appends a version and deactivates the current head,
// failing with ErrVersionConflict when the head already moved.
func (m *MemoryStore) CreateWordListVersion(currentID, csvContent, description string, wordCount int) (domain.WordList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.wordLists[currentID]
	if !ok {
		return domain.WordList{}, ErrNotFound
	}
	if !current.Active {
		return domain.WordList{}, ErrVersionConflict
	}
	if description == "" {
		description = current.Description
	}
	now := time.Now().UTC()
	current.Active = false
	current.UpdatedAt = now
	m.wordLists[currentID] = current

	next := domain.WordList{
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
	m.wordLists[next.ID] = next
	return next, nil
}

// GetWordList retrieves one version by ID.
func (m *MemoryStore) GetWordList(id string) (domain.WordList, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wordLists[id]
	return w, ok, nil
}

// GetActiveWordListByName returns the active head for owner+name.
func (m *MemoryStore) GetActiveWordListByName(ownerID, name string) (domain.WordList, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.wordLists {
		if w.OwnerID == ownerID && w.Name == name && w.Active {
			return w, true, nil
		}
	}
	return domain.WordList{}, false, nil
}

// ListActiveWordLists orders by last-used descending, never-used last,
// created-at descending as tie break.
func (m *MemoryStore) ListActiveWordLists(ownerID string) ([]domain.WordList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.WordList, 0)
	for _, w := range m.wordLists {
		if w.OwnerID == ownerID && w.Active {
			res = append(res, w)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt == nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a.LastUsedAt == nil:
			return false
		case b.LastUsedAt == nil:
			return true
		case !a.LastUsedAt.Equal(*b.LastUsedAt):
			return a.LastUsedAt.After(*b.LastUsedAt)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return res, nil
}

// GetWordListHistory returns the full chain, newest version first.
func (m *MemoryStore) GetWordListHistory(anyVersionID string) ([]domain.WordList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.wordLists[anyVersionID]
	if !ok {
		return nil, ErrNotFound
	}
	res := make([]domain.WordList, 0)
	for _, w := range m.wordLists {
		if w.RootID == row.RootID {
			res = append(res, w)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Version > res[j].Version })
	return res, nil
}

// MarkWordListUsed bumps usage on the given version only.
func (m *MemoryStore) MarkWordListUsed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wordLists[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	w.UsageCount++
	w.LastUsedAt = &now
	w.UpdatedAt = now
	m.wordLists[id] = w
	return nil
}

// DeleteWordListChain removes every version of the chain and nulls job
// references to any of them.
func (m *MemoryStore) DeleteWordListChain(anyVersionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.wordLists[anyVersionID]
	if !ok {
		return ErrNotFound
	}
	removed := make(map[string]bool)
	for id, w := range m.wordLists {
		if w.RootID == row.RootID {
			removed[id] = true
			delete(m.wordLists, id)
		}
	}
	for id, j := range m.jobs {
		if j.WordListID != nil && removed[*j.WordListID] {
			j.WordListID = nil
			m.jobs[id] = j
		}
	}
	return nil
}

// CreateJob persists a job.
func (m *MemoryStore) CreateJob(job domain.CorrectionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

// GetJob retrieves a job.
func (m *MemoryStore) GetJob(id string) (domain.CorrectionJob, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok, nil
}

// ListJobsByOwner returns the owner's jobs, newest first.
func (m *MemoryStore) ListJobsByOwner(ownerID string) ([]domain.CorrectionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.CorrectionJob, 0)
	for _, j := range m.jobs {
		if j.OwnerID == ownerID {
			res = append(res, j)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// MarkJobProcessing transitions pending -> processing.
func (m *MemoryStore) MarkJobProcessing(id string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != domain.JobPending {
		return ErrInvalidTransition
	}
	at := startedAt.UTC()
	j.Status = domain.JobProcessing
	j.StartedAt = &at
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	return nil
}

// CompleteJob transitions processing -> completed and charges the owner's
// ledger under the same lock.
func (m *MemoryStore) CompleteJob(id, output string, cost decimal.Decimal, inputTokens, outputTokens int, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != domain.JobProcessing {
		return ErrInvalidTransition
	}
	at := completedAt.UTC()
	j.Status = domain.JobCompleted
	j.CorrectedContent = output
	j.Cost = cost
	j.InputTokens = inputTokens
	j.OutputTokens = outputTokens
	j.CompletedAt = &at
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j

	if u, ok := m.users[j.OwnerID]; ok {
		u.TotalSpend = u.TotalSpend.Add(cost)
		u.UpdatedAt = time.Now().UTC()
		m.users[j.OwnerID] = u
	}
	return nil
}

// FailJob transitions processing -> failed without touching the ledger.
func (m *MemoryStore) FailJob(id, errMsg string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != domain.JobProcessing {
		return ErrInvalidTransition
	}
	at := completedAt.UTC()
	j.Status = domain.JobFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &at
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	return nil
}

// CancelJob terminates a pending or processing job.
func (m *MemoryStore) CancelJob(id string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != domain.JobPending && j.Status != domain.JobProcessing {
		return ErrInvalidTransition
	}
	at := completedAt.UTC()
	j.Status = domain.JobCancelled
	j.CompletedAt = &at
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	return nil
}

// DeleteJob removes a job record.
func (m *MemoryStore) DeleteJob(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}
