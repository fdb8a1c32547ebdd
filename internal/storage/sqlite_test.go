package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)
	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("versions = %v, want at least [1]", versions)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	s := openTestStore(t)

	e := Entry{
		ID:        uuid.New().String(),
		UserID:    "alice",
		Content:   "The wifi password is sunflower42.",
		Intent:    "NOTE",
		Category:  "Home",
		Embedding: []float32{0.5, -0.25, 1.0},
		CreatedAt: time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC),
	}
	if err := s.CreateEntry(e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	got, err := s.GetEntry(e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Content != e.Content || got.Intent != e.Intent || got.Category != e.Category {
		t.Errorf("got %+v, want fields of %+v", got, e)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.5 {
		t.Errorf("Embedding = %v, want %v", got.Embedding, e.Embedding)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, e.CreatedAt)
	}
}

func TestEntryWithoutEmbedding(t *testing.T) {
	s := openTestStore(t)

	e := Entry{ID: uuid.New().String(), UserID: "alice", Content: "plain", Intent: "NOTE"}
	if err := s.CreateEntry(e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	got, err := s.GetEntry(e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if len(got.Embedding) != 0 {
		t.Errorf("Embedding = %v, want empty", got.Embedding)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetEntry("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListEntries_FilterAndScope(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	for i, spec := range []struct{ user, intent string }{
		{"alice", "NOTE"},
		{"alice", "REMINDER"},
		{"bob", "NOTE"},
	} {
		err := s.CreateEntry(Entry{
			ID:        uuid.New().String(),
			UserID:    spec.user,
			Content:   "entry",
			Intent:    spec.intent,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}

	all, err := s.ListEntries("alice", "", 10, 0)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d entries for alice, want 2", len(all))
	}

	notes, err := s.ListEntries("alice", "NOTE", 10, 0)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(notes) != 1 || notes[0].Intent != "NOTE" {
		t.Errorf("notes = %+v, want single NOTE", notes)
	}
}

func TestDeleteEntry_CascadesReminders(t *testing.T) {
	s := openTestStore(t)

	entryID := uuid.New().String()
	if err := s.CreateEntry(Entry{ID: entryID, UserID: "alice", Content: "call mom", Intent: "REMINDER"}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := s.CreateReminder(Reminder{
		ID:      uuid.New().String(),
		EntryID: entryID,
		DueDate: time.Date(2026, 3, 12, 17, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	if err := s.DeleteEntry(entryID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	reminders, err := s.ListReminders("alice", "", 10)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(reminders) != 0 {
		t.Errorf("got %d reminders after cascade delete, want 0", len(reminders))
	}
}

func TestReminderLifecycle(t *testing.T) {
	s := openTestStore(t)

	entryID := uuid.New().String()
	if err := s.CreateEntry(Entry{ID: entryID, UserID: "alice", Content: "call mom", Intent: "REMINDER"}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	r := Reminder{
		ID:      uuid.New().String(),
		EntryID: entryID,
		DueDate: time.Date(2026, 3, 12, 17, 0, 0, 0, time.UTC),
	}
	if err := s.CreateReminder(r); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	pending, err := s.ListReminders("alice", ReminderPending, 10)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending reminders, want 1", len(pending))
	}
	if !pending[0].DueDate.Equal(r.DueDate) {
		t.Errorf("DueDate = %v, want %v", pending[0].DueDate, r.DueDate)
	}

	if err := s.UpdateReminderStatus(r.ID, ReminderDone); err != nil {
		t.Fatalf("UpdateReminderStatus: %v", err)
	}
	pending, err = s.ListReminders("alice", ReminderPending, 10)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after completion, want 0", len(pending))
	}
}

func TestUpdateReminderStatus_NotFound(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateReminderStatus("missing", ReminderDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestContextValues(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetContextValue("alice", "next_release", "2026-04-01", "release date"); err != nil {
		t.Fatalf("SetContextValue: %v", err)
	}
	if err := s.SetContextValue("alice", "team", "platform", ""); err != nil {
		t.Fatalf("SetContextValue: %v", err)
	}
	// Upsert replaces.
	if err := s.SetContextValue("alice", "team", "infra", ""); err != nil {
		t.Fatalf("SetContextValue upsert: %v", err)
	}

	got, err := s.GetContextValue("alice", "team")
	if err != nil {
		t.Fatalf("GetContextValue: %v", err)
	}
	if got != "infra" {
		t.Errorf("value = %q, want infra", got)
	}

	all, err := s.AllContextValues("alice")
	if err != nil {
		t.Fatalf("AllContextValues: %v", err)
	}
	if len(all) != 2 || all["next_release"] != "2026-04-01" {
		t.Errorf("all = %v, want 2 keys incl. next_release", all)
	}

	// User scoping.
	if other, err := s.AllContextValues("bob"); err != nil || len(other) != 0 {
		t.Errorf("bob context = %v (%v), want empty", other, err)
	}

	if err := s.DeleteContextValue("alice", "team"); err != nil {
		t.Fatalf("DeleteContextValue: %v", err)
	}
	if _, err := s.GetContextValue("alice", "team"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
}
