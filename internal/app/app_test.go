package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"transcriptcleaner/pkg/ai"
	"transcriptcleaner/pkg/domain"
	"transcriptcleaner/pkg/store"
)

type stubCorrector struct {
	result  ai.Result
	err     error
	lastReq ai.Request
	calls   int
}

func (s *stubCorrector) Correct(_ context.Context, req ai.Request) (ai.Result, error) {
	s.lastReq = req
	s.calls++
	if s.err != nil {
		return ai.Result{}, s.err
	}
	return s.result, nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *stubCorrector) {
	t.Helper()
	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret", 0, nil)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	corrector := &stubCorrector{result: ai.Result{
		OutputText:       "The corrected text.",
		PromptTokens:     900,
		CompletionTokens: 330,
	}}
	a, err := New(Config{
		Store:     mem,
		Sessions:  sessions,
		Corrector: corrector,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem, corrector
}

func registerUser(t *testing.T, a *App, email string) domain.User {
	t.Helper()
	user, token, err := a.Register("tester", email, "password123", "", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token == "" {
		t.Fatal("no session token issued")
	}
	return user
}

func uploadTxt(t *testing.T, a *App, user domain.User, text string) domain.Transcript {
	t.Helper()
	transcript, err := a.UploadTranscript(context.Background(), user, "", "meeting-notes.txt", []byte(text))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return transcript
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	a, _, _ := newTestApp(t)

	first := registerUser(t, a, "first@example.com")
	if first.Role != domain.RoleAdmin {
		t.Fatalf("first user role = %s", first.Role)
	}
	if !first.UsageLimit.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("default limit = %s", first.UsageLimit)
	}

	second := registerUser(t, a, "second@example.com")
	if second.Role != domain.RoleUser {
		t.Fatalf("second user role = %s", second.Role)
	}

	if _, _, err := a.Register("tester", "first@example.com", "pw12345678", "", "", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestLoginAndSessions(t *testing.T) {
	a, _, _ := newTestApp(t)
	registerUser(t, a, "user@example.com")

	user, token, err := a.Login("User@Example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, ok := a.UserFromToken(token)
	if !ok || got.ID != user.ID {
		t.Fatalf("UserFromToken: ok=%v got=%+v", ok, got)
	}
	if _, _, err := a.Login("user@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: %v", err)
	}
	if _, _, err := a.Login("nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestUploadTranscriptDerivesCounts(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := registerUser(t, a, "user@example.com")

	transcript := uploadTxt(t, a, user, "Teh meeting went well today.")
	if transcript.Title != "meeting notes" {
		t.Fatalf("title = %q", transcript.Title)
	}
	if transcript.WordCount != 5 || transcript.CharacterCount != 28 {
		t.Fatalf("counts = %d words, %d chars", transcript.WordCount, transcript.CharacterCount)
	}
	if transcript.StorageKey == "" {
		t.Fatal("raw file not archived")
	}
}

func TestUploadTranscriptRejectsBadInput(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := registerUser(t, a, "user@example.com")
	ctx := context.Background()

	if _, err := a.UploadTranscript(ctx, user, "", "notes.exe", []byte("x")); err == nil {
		t.Fatal("expected error for disallowed extension")
	}
	if _, err := a.UploadTranscript(ctx, user, "", "notes.txt", []byte{0xff, 0xfe}); err == nil {
		t.Fatal("expected error for non-UTF-8 text")
	}
	big := make([]byte, 11<<20)
	if _, err := a.UploadTranscript(ctx, user, "", "notes.txt", big); err == nil {
		t.Fatal("expected error for oversized upload")
	}
}

func TestWordListLifecycle(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := registerUser(t, a, "user@example.com")

	list, err := a.CreateWordList(user, "medical", "term fixes", "incorrect,correct\nTeh,The\n")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if list.Version != 1 || !list.Active || list.WordCount != 1 {
		t.Fatalf("root = %+v", list)
	}

	v2, err := a.EditWordList(user, list.ID, "incorrect,correct\nTeh,The\nrecieve,receive\n", "")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if v2.Version != 2 || v2.WordCount != 2 {
		t.Fatalf("v2 = %+v", v2)
	}

	// Editing the stale head is refused.
	if _, err := a.EditWordList(user, list.ID, "a,b\nx,y\n", ""); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale edit: %v", err)
	}

	restored, err := a.RestoreWordListVersion(user, list.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Version != 3 || restored.CSVContent != list.CSVContent {
		t.Fatalf("restored = %+v", restored)
	}

	history, err := a.WordListHistory(user, restored.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 || history[0].Version != 3 {
		t.Fatalf("history = %+v", history)
	}

	downloaded, err := a.DownloadWordList(user, restored.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if downloaded.CSVContent != list.CSVContent {
		t.Fatalf("downloaded content mismatch")
	}
	fresh, err := a.GetWordList(user, restored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.UsageCount != 1 {
		t.Fatalf("download did not count as a use: %+v", fresh)
	}

	if err := a.DeleteWordList(user, restored.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.GetWordList(user, list.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("chain should be gone: %v", err)
	}
}

func TestCreateWordListValidation(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := registerUser(t, a, "user@example.com")

	_, err := a.CreateWordList(user, "bad", "", "incorrect,correct\nTeh,The\n,missing\n")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Problems) != 1 || !strings.Contains(verr.Problems[0], "Row 3") {
		t.Fatalf("problems = %v", verr.Problems)
	}

	if _, err := a.CreateWordList(user, "medical", "", "incorrect,correct\nTeh,The\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.CreateWordList(user, "medical", "", "incorrect,correct\nTeh,The\n"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate name: %v", err)
	}
}

func TestWordListOwnershipHidden(t *testing.T) {
	a, _, _ := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com")
	owner := registerUser(t, a, "owner@example.com")
	other := registerUser(t, a, "other@example.com")

	list, err := a.CreateWordList(owner, "private", "", "incorrect,correct\nTeh,The\n")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.GetWordList(other, list.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign access: %v", err)
	}
	// Admins can see everything.
	if _, err := a.GetWordList(admin, list.ID); err != nil {
		t.Fatalf("admin access: %v", err)
	}
}

func TestProcessTranscriptCompletes(t *testing.T) {
	a, mem, corrector := newTestApp(t)
	user := registerUser(t, a, "user@example.com")
	transcript := uploadTxt(t, a, user, "Teh patient recieved treatment this morning and is doing well.")
	list, err := a.CreateWordList(user, "medical", "", "incorrect,correct\nTeh,The\nrecieved,received\n")
	if err != nil {
		t.Fatal(err)
	}

	job, err := a.ProcessTranscript(context.Background(), user, ProcessParams{
		TranscriptID: transcript.ID,
		WordListID:   list.ID,
		Mode:         domain.ModeProofreading,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.CorrectedContent != "The corrected text." {
		t.Fatalf("output = %q", job.CorrectedContent)
	}
	if job.Model != "gpt-4o" {
		t.Fatalf("model = %q", job.Model)
	}
	// 1230 tokens at 0.01/1K.
	if !job.Cost.Equal(decimal.RequireFromString("0.0123")) {
		t.Fatalf("cost = %s", job.Cost)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Fatal("timestamps not recorded")
	}

	// The prompt carried the pair directives in CSV order.
	if !strings.Contains(corrector.lastReq.SystemInstructions, "'Teh' → 'The'") {
		t.Fatalf("prompt missing pair directive:\n%s", corrector.lastReq.SystemInstructions)
	}
	if corrector.lastReq.UserText != transcript.Content {
		t.Fatal("prompt user text mismatch")
	}

	// Ledger charged exactly once, word list marked used, transcript processed.
	owner, _, _ := mem.GetUserByID(user.ID)
	if !owner.TotalSpend.Equal(job.Cost) {
		t.Fatalf("spend = %s", owner.TotalSpend)
	}
	usedList, _, _ := mem.GetWordList(list.ID)
	if usedList.UsageCount != 1 {
		t.Fatalf("word list usage = %d", usedList.UsageCount)
	}
	processed, _, _ := mem.GetTranscript(transcript.ID)
	if !processed.Processed {
		t.Fatal("transcript not marked processed")
	}
}

func TestProcessTranscriptBudgetAdmission(t *testing.T) {
	a, mem, _ := newTestApp(t)
	user := registerUser(t, a, "user@example.com")

	// Limit 10.00, spend 9.99: a large job is refused, a tiny one admitted.
	if err := mem.SetUsageLimit(user.ID, decimal.RequireFromString("10.00")); err != nil {
		t.Fatal(err)
	}
	seedSpend(t, a, mem, user, "9.9900")

	// ~5400 chars -> 1350 tokens -> estimate 0.0203 > 0.01 remaining.
	large := uploadTxt(t, a, user, strings.Repeat("word here ", 540))
	_, err := a.ProcessTranscript(context.Background(), user, ProcessParams{
		TranscriptID: large.ID,
		Mode:         domain.ModeProofreading,
	})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("large job: %v", err)
	}
	// The refused job records no state change.
	jobs, _ := mem.ListJobsByOwner(user.ID)
	var pending int
	for _, j := range jobs {
		if j.TranscriptID == large.ID {
			if j.Status != domain.JobPending {
				t.Fatalf("refused job status = %s", j.Status)
			}
			pending++
		}
	}
	if pending != 1 {
		t.Fatalf("refused jobs = %d", pending)
	}

	// ~120 chars -> 30 tokens -> estimate 0.0005 fits the remaining 0.01.
	small := uploadTxt(t, a, user, strings.Repeat("ok ", 40))
	job, err := a.ProcessTranscript(context.Background(), user, ProcessParams{
		TranscriptID: small.ID,
		Mode:         domain.ModeProofreading,
	})
	if err != nil {
		t.Fatalf("small job: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Fatalf("small job status = %s", job.Status)
	}
}

func TestProcessTranscriptServiceFailure(t *testing.T) {
	a, mem, corrector := newTestApp(t)
	user := registerUser(t, a, "user@example.com")
	transcript := uploadTxt(t, a, user, "Some transcript text to fix.")
	corrector.err = errors.New("correction api error: rate limited")

	job, err := a.ProcessTranscript(context.Background(), user, ProcessParams{
		TranscriptID: transcript.ID,
		Mode:         domain.ModeGrammar,
	})
	if err != nil {
		t.Fatalf("service failure must not propagate: %v", err)
	}
	if job.Status != domain.JobFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if job.ErrorMessage != "correction api error: rate limited" {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
	owner, _, _ := mem.GetUserByID(user.ID)
	if !owner.TotalSpend.IsZero() {
		t.Fatalf("failed job charged the ledger: %s", owner.TotalSpend)
	}
}

func TestRetryJob(t *testing.T) {
	a, _, corrector := newTestApp(t)
	user := registerUser(t, a, "user@example.com")
	transcript := uploadTxt(t, a, user, "Some transcript text to fix.")

	corrector.err = errors.New("correction api error: overloaded")
	failed, err := a.ProcessTranscript(context.Background(), user, ProcessParams{
		TranscriptID:       transcript.ID,
		Mode:               domain.ModeCustom,
		CustomInstructions: "keep it short",
		Model:              "gpt-4o-mini",
	})
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != domain.JobFailed {
		t.Fatalf("status = %s", failed.Status)
	}

	corrector.err = nil
	retried, err := a.RetryJob(context.Background(), user, failed.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.ID == failed.ID {
		t.Fatal("retry reused the original record")
	}
	if retried.Status != domain.JobCompleted {
		t.Fatalf("retried status = %s", retried.Status)
	}
	if retried.Mode != domain.ModeCustom || retried.CustomPrompt != "keep it short" || retried.Model != "gpt-4o-mini" {
		t.Fatalf("retry dropped configuration: %+v", retried)
	}
	// The original terminal record is untouched.
	original, err := a.GetJob(user, failed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if original.Status != domain.JobFailed {
		t.Fatalf("original mutated: %s", original.Status)
	}

	// Completed jobs are not retryable.
	if _, err := a.RetryJob(context.Background(), user, retried.ID); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("retry completed: %v", err)
	}
}

func TestCancelJobAdminPath(t *testing.T) {
	a, mem, _ := newTestApp(t)
	user := registerUser(t, a, "user@example.com")
	transcript := uploadTxt(t, a, user, "Some text.")

	// A pending job (refused admission) can be cancelled, then retried.
	if err := mem.SetUsageLimit(user.ID, decimal.Zero); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ProcessTranscript(context.Background(), user, ProcessParams{
		TranscriptID: transcript.ID,
		Mode:         domain.ModeSummary,
	}); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatal(err)
	}
	jobs, _ := mem.ListJobsByOwner(user.ID)
	pending := jobs[0]

	cancelled, err := a.CancelJob(pending.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.JobCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if _, err := a.CancelJob(pending.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("cancel terminal: %v", err)
	}

	if err := mem.SetUsageLimit(user.ID, decimal.RequireFromString("10.00")); err != nil {
		t.Fatal(err)
	}
	retried, err := a.RetryJob(context.Background(), user, pending.ID)
	if err != nil {
		t.Fatalf("retry cancelled: %v", err)
	}
	if retried.Status != domain.JobCompleted {
		t.Fatalf("retried status = %s", retried.Status)
	}
}

func TestUsageSummary(t *testing.T) {
	a, mem, _ := newTestApp(t)
	user := registerUser(t, a, "user@example.com")
	seedSpend(t, a, mem, user, "2.5000")

	summary, err := a.Usage(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Limit.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("limit = %s", summary.Limit)
	}
	if !summary.Spend.Equal(decimal.RequireFromString("2.5000")) {
		t.Fatalf("spend = %s", summary.Spend)
	}
	if !summary.Remaining.Equal(decimal.RequireFromString("7.5000")) {
		t.Fatalf("remaining = %s", summary.Remaining)
	}
	if summary.UsedPercent < 24.9 || summary.UsedPercent > 25.1 {
		t.Fatalf("usedPercent = %v", summary.UsedPercent)
	}

	if err := a.ResetSpend(user.ID); err != nil {
		t.Fatal(err)
	}
	summary, err = a.Usage(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Spend.IsZero() {
		t.Fatalf("spend after reset = %s", summary.Spend)
	}
}

// seedSpend charges the user's ledger through the only path that increases
// it: a completed job.
func seedSpend(t *testing.T, a *App, mem *store.MemoryStore, user domain.User, amount string) {
	t.Helper()
	transcript := uploadTxt(t, a, user, "seed text for ledger charge")
	job := domain.CorrectionJob{
		ID:           "seed-" + amount,
		OwnerID:      user.ID,
		TranscriptID: transcript.ID,
		Mode:         domain.ModeProofreading,
		Model:        "gpt-4o",
		Status:       domain.JobPending,
	}
	if err := mem.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	now := job.CreatedAt
	if err := mem.MarkJobProcessing(job.ID, now); err != nil {
		t.Fatal(err)
	}
	if err := mem.CompleteJob(job.ID, "seed", decimal.RequireFromString(amount), 1, 1, now); err != nil {
		t.Fatal(err)
	}
}
