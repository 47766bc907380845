package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"transcriptcleaner/internal/util"
	"transcriptcleaner/pkg/domain"
)

func seedUser(t *testing.T, s *MemoryStore) domain.User {
	t.Helper()
	u := domain.User{
		ID:         util.NewID(),
		Email:      "tester@example.com",
		Role:       domain.RoleUser,
		UsageLimit: decimal.RequireFromString("10.00"),
		TotalSpend: decimal.Zero,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.SaveUser(u); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	return u
}

func seedRootList(t *testing.T, s *MemoryStore, ownerID, name string) domain.WordList {
	t.Helper()
	id := util.NewID()
	root := domain.WordList{
		ID:         id,
		OwnerID:    ownerID,
		RootID:     id,
		Name:       name,
		CSVContent: "incorrect,correct\nTeh,The\n",
		Version:    1,
		WordCount:  1,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.CreateWordList(root); err != nil {
		t.Fatalf("CreateWordList: %v", err)
	}
	return root
}

func TestWordListVersionChain(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)
	root := seedRootList(t, s, u.ID, "medical")

	v2, err := s.CreateWordListVersion(root.ID, "incorrect,correct\nTeh,The\nrecieve,receive\n", "", 2)
	if err != nil {
		t.Fatalf("version 2: %v", err)
	}
	v3, err := s.CreateWordListVersion(v2.ID, "incorrect,correct\nTeh,The\nrecieve,receive\nwierd,weird\n", "third pass", 3)
	if err != nil {
		t.Fatalf("version 3: %v", err)
	}

	if v2.Version != 2 || v3.Version != 3 {
		t.Fatalf("versions = %d, %d", v2.Version, v3.Version)
	}
	if v2.RootID != root.ID || v3.RootID != root.ID {
		t.Fatalf("chain roots diverged: %s %s", v2.RootID, v3.RootID)
	}
	if v2.ParentID == nil || *v2.ParentID != root.ID {
		t.Fatal("v2 parent should be root")
	}
	if v3.ParentID == nil || *v3.ParentID != v2.ID {
		t.Fatal("v3 parent should be v2")
	}
	if v3.Description != "third pass" {
		t.Fatalf("description = %q", v3.Description)
	}

	// Only the newest version stays active.
	active, err := s.ListActiveWordLists(u.ID)
	if err != nil {
		t.Fatalf("ListActiveWordLists: %v", err)
	}
	if len(active) != 1 || active[0].ID != v3.ID {
		t.Fatalf("active head = %+v", active)
	}

	history, err := s.GetWordListHistory(root.ID)
	if err != nil {
		t.Fatalf("GetWordListHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d", len(history))
	}
	for i, want := range []int{3, 2, 1} {
		if history[i].Version != want {
			t.Fatalf("history[%d].Version = %d, want %d", i, history[i].Version, want)
		}
	}
}

func TestCreateWordListVersionStaleHead(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)
	root := seedRootList(t, s, u.ID, "medical")

	if _, err := s.CreateWordListVersion(root.ID, "a,b\nx,y\n", "", 1); err != nil {
		t.Fatalf("first edit: %v", err)
	}
	// Editing the now-inactive root must fail, not fork the chain.
	if _, err := s.CreateWordListVersion(root.ID, "a,b\nz,w\n", "", 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	history, _ := s.GetWordListHistory(root.ID)
	if len(history) != 2 {
		t.Fatalf("chain forked: %d versions", len(history))
	}
}

func TestCreateWordListDuplicateActiveName(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)
	seedRootList(t, s, u.ID, "medical")

	dup := domain.WordList{ID: util.NewID(), OwnerID: u.ID, Name: "medical", Active: true, Version: 1}
	dup.RootID = dup.ID
	if err := s.CreateWordList(dup); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}

func TestMarkWordListUsedIsolatedToVersion(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)
	root := seedRootList(t, s, u.ID, "medical")
	v2, err := s.CreateWordListVersion(root.ID, "a,b\nx,y\n", "", 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.MarkWordListUsed(v2.ID); err != nil {
		t.Fatal(err)
	}
	got, _, _ := s.GetWordList(v2.ID)
	if got.UsageCount != 1 || got.LastUsedAt == nil {
		t.Fatalf("v2 usage not recorded: %+v", got)
	}
	old, _, _ := s.GetWordList(root.ID)
	if old.UsageCount != 0 || old.LastUsedAt != nil {
		t.Fatalf("usage bled into old version: %+v", old)
	}
}

func TestListActiveWordListsOrder(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)
	a := seedRootList(t, s, u.ID, "first")
	b := seedRootList(t, s, u.ID, "second")
	seedRootList(t, s, u.ID, "never-used")

	if err := s.MarkWordListUsed(a.ID); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := s.MarkWordListUsed(b.ID); err != nil {
		t.Fatal(err)
	}

	lists, err := s.ListActiveWordLists(u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 3 {
		t.Fatalf("len = %d", len(lists))
	}
	if lists[0].Name != "second" || lists[1].Name != "first" || lists[2].Name != "never-used" {
		t.Fatalf("order = %s, %s, %s", lists[0].Name, lists[1].Name, lists[2].Name)
	}
}

func TestDeleteWordListChainNullsJobReferences(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)
	root := seedRootList(t, s, u.ID, "medical")
	v2, err := s.CreateWordListVersion(root.ID, "a,b\nx,y\n", "", 1)
	if err != nil {
		t.Fatal(err)
	}

	job := domain.CorrectionJob{
		ID:           util.NewID(),
		OwnerID:      u.ID,
		TranscriptID: util.NewID(),
		WordListID:   &v2.ID,
		Mode:         domain.ModeProofreading,
		Model:        "gpt-4o",
		Status:       domain.JobPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteWordListChain(root.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetWordList(v2.ID); ok {
		t.Fatal("version survived chain delete")
	}
	got, ok, _ := s.GetJob(job.ID)
	if !ok {
		t.Fatal("job deleted with chain")
	}
	if got.WordListID != nil {
		t.Fatalf("job still references deleted list: %v", *got.WordListID)
	}
}

func TestJobLifecycleChargesOnce(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)

	job := domain.CorrectionJob{
		ID:           util.NewID(),
		OwnerID:      u.ID,
		TranscriptID: util.NewID(),
		Mode:         domain.ModeGrammar,
		Model:        "gpt-4o",
		Status:       domain.JobPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	if err := s.MarkJobProcessing(job.ID, now); err != nil {
		t.Fatalf("MarkJobProcessing: %v", err)
	}
	cost := decimal.RequireFromString("0.0123")
	if err := s.CompleteJob(job.ID, "fixed text", cost, 900, 330, now); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	got, _, _ := s.GetJob(job.ID)
	if got.Status != domain.JobCompleted || got.CorrectedContent != "fixed text" {
		t.Fatalf("job = %+v", got)
	}
	if got.TotalTokens() != 1230 {
		t.Fatalf("tokens = %d", got.TotalTokens())
	}
	owner, _, _ := s.GetUserByID(u.ID)
	if !owner.TotalSpend.Equal(cost) {
		t.Fatalf("spend = %s, want %s", owner.TotalSpend, cost)
	}

	// A terminal job cannot be completed again, and must not re-charge.
	if err := s.CompleteJob(job.ID, "again", cost, 1, 1, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	owner, _, _ = s.GetUserByID(u.ID)
	if !owner.TotalSpend.Equal(cost) {
		t.Fatalf("spend changed on rejected transition: %s", owner.TotalSpend)
	}
}

func TestFailJobDoesNotCharge(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)

	job := domain.CorrectionJob{
		ID:           util.NewID(),
		OwnerID:      u.ID,
		TranscriptID: util.NewID(),
		Mode:         domain.ModeProofreading,
		Model:        "gpt-4o",
		Status:       domain.JobPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := s.MarkJobProcessing(job.ID, now); err != nil {
		t.Fatal(err)
	}
	if err := s.FailJob(job.ID, "correction api error: rate limited", now); err != nil {
		t.Fatal(err)
	}

	got, _, _ := s.GetJob(job.ID)
	if got.Status != domain.JobFailed || got.ErrorMessage == "" {
		t.Fatalf("job = %+v", got)
	}
	owner, _, _ := s.GetUserByID(u.ID)
	if !owner.TotalSpend.IsZero() {
		t.Fatalf("failed job charged the ledger: %s", owner.TotalSpend)
	}
}

func TestJobTransitionGuards(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)

	job := domain.CorrectionJob{
		ID:        util.NewID(),
		OwnerID:   u.ID,
		Mode:      domain.ModeSummary,
		Model:     "gpt-4o",
		Status:    domain.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()

	// Cannot complete or fail straight from pending.
	if err := s.CompleteJob(job.ID, "x", decimal.Zero, 0, 0, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete from pending: %v", err)
	}
	if err := s.FailJob(job.ID, "x", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("fail from pending: %v", err)
	}

	// Pending can be cancelled, after which processing is off the table.
	if err := s.CancelJob(job.ID, now); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if err := s.MarkJobProcessing(job.ID, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("process cancelled: %v", err)
	}
	if err := s.CancelJob(job.ID, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel cancelled: %v", err)
	}

	if err := s.MarkJobProcessing("missing", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing job: %v", err)
	}
}

func TestUserBudgetOperations(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)

	if err := s.SetUsageLimit(u.ID, decimal.RequireFromString("25.50")); err != nil {
		t.Fatal(err)
	}
	got, _, _ := s.GetUserByID(u.ID)
	if !got.UsageLimit.Equal(decimal.RequireFromString("25.50")) {
		t.Fatalf("limit = %s", got.UsageLimit)
	}

	// Charge something, then reset.
	job := domain.CorrectionJob{ID: util.NewID(), OwnerID: u.ID, Mode: domain.ModeProofreading, Model: "gpt-4o", Status: domain.JobPending, CreatedAt: time.Now().UTC()}
	if err := s.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := s.MarkJobProcessing(job.ID, now); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteJob(job.ID, "x", decimal.RequireFromString("1.5000"), 10, 10, now); err != nil {
		t.Fatal(err)
	}
	if err := s.ResetSpend(u.ID); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.GetUserByID(u.ID)
	if !got.TotalSpend.IsZero() {
		t.Fatalf("spend after reset = %s", got.TotalSpend)
	}

	if err := s.SetUsageLimit("missing", decimal.Zero); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := NewMemoryStore()
	u := seedUser(t, s)
	root := seedRootList(t, s, u.ID, "medical")
	tr := domain.Transcript{ID: util.NewID(), OwnerID: u.ID, OriginalFilename: "call.txt", CreatedAt: time.Now().UTC()}
	if err := s.SaveTranscript(tr); err != nil {
		t.Fatal(err)
	}
	job := domain.CorrectionJob{ID: util.NewID(), OwnerID: u.ID, TranscriptID: tr.ID, Mode: domain.ModeProofreading, Model: "gpt-4o", Status: domain.JobPending, CreatedAt: time.Now().UTC()}
	if err := s.CreateJob(job); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteUser(u.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetUserByID(u.ID); ok {
		t.Fatal("user survived delete")
	}
	if _, ok, _ := s.GetWordList(root.ID); ok {
		t.Fatal("word list survived owner delete")
	}
	if _, ok, _ := s.GetTranscript(tr.ID); ok {
		t.Fatal("transcript survived owner delete")
	}
	if _, ok, _ := s.GetJob(job.ID); ok {
		t.Fatal("job survived owner delete")
	}
	if ok, _ := s.HasUserEmail(u.Email); ok {
		t.Fatal("email index not cleaned up")
	}
}
