// Package storetest holds the behaviour every database.Store backend must share.
// Backend packages call Run from their own tests with a freshly migrated store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/google/uuid"
)

func encoding(seed float32) []float32 {
	enc := make([]float32, 128)
	for i := range enc {
		enc[i] = seed + float32(i)/128.0
	}
	return enc
}

func newIdentity(kind database.Kind, name string, seed float32) *database.Identity {
	return &database.Identity{
		ID:          uuid.NewString(),
		Kind:        kind,
		Name:        name,
		ExternalRef: "REF-" + name,
		Encoding:    encoding(seed),
	}
}

// Run exercises store against the shared contract. The store must be empty.
func Run(t *testing.T, store database.Store) {
	t.Helper()
	ctx := context.Background()

	ada := newIdentity(database.KindStudent, "Ada", 0.1)
	bob := newIdentity(database.KindStudent, "Bob", 0.2)
	grace := newIdentity(database.KindLecturer, "Grace", 0.3)
	alan := newIdentity(database.KindLecturer, "Alan", 0.4)

	t.Run("Identities", func(t *testing.T) {
		for _, id := range []*database.Identity{ada, grace, bob, alan} {
			if err := store.CreateIdentity(ctx, id); err != nil {
				t.Fatalf("Failed to create identity %s: %v", id.Name, err)
			}
		}

		students, err := store.ListIdentities(ctx, database.KindStudent)
		if err != nil {
			t.Fatalf("Failed to list students: %v", err)
		}
		if len(students) != 2 {
			t.Fatalf("Expected 2 students, got %d", len(students))
		}
		if students[0].Name != "Ada" || students[1].Name != "Bob" {
			t.Errorf("Expected students in enrollment order [Ada Bob], got [%s %s]", students[0].Name, students[1].Name)
		}
		if len(students[0].Encoding) != 128 {
			t.Errorf("Expected 128-dim encoding, got %d", len(students[0].Encoding))
		}
		if students[0].Encoding[5] != ada.Encoding[5] {
			t.Errorf("Expected encoding to round-trip, got %v want %v", students[0].Encoding[5], ada.Encoding[5])
		}

		all, err := store.ListIdentities(ctx, "")
		if err != nil {
			t.Fatalf("Failed to list all identities: %v", err)
		}
		if len(all) != 4 {
			t.Fatalf("Expected 4 identities, got %d", len(all))
		}
		if all[0].Kind != database.KindStudent || all[3].Kind != database.KindLecturer {
			t.Errorf("Expected students before lecturers, got %s ... %s", all[0].Kind, all[3].Kind)
		}

		got, err := store.GetIdentity(ctx, grace.ID)
		if err != nil {
			t.Fatalf("Failed to get identity: %v", err)
		}
		if got == nil || got.Name != "Grace" || got.ExternalRef != "REF-Grace" {
			t.Errorf("Unexpected identity %+v", got)
		}

		missing, err := store.GetIdentity(ctx, uuid.NewString())
		if err != nil {
			t.Fatalf("Failed to get missing identity: %v", err)
		}
		if missing != nil {
			t.Errorf("Expected nil for unknown identity, got %+v", missing)
		}
	})

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	session := &database.Session{ID: uuid.NewString(), StartTime: start, Active: true}

	t.Run("Sessions", func(t *testing.T) {
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		got, err := store.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if got == nil {
			t.Fatal("Expected session, got nil")
		}
		if !got.Active || got.EndTime != nil || got.LecturerID != "" {
			t.Errorf("Expected fresh active session, got %+v", got)
		}
		if !got.StartTime.Equal(start) {
			t.Errorf("Expected start %v, got %v", start, got.StartTime)
		}

		ok, err := store.AssignLecturer(ctx, session.ID, grace.ID)
		if err != nil {
			t.Fatalf("Failed to assign lecturer: %v", err)
		}
		if !ok {
			t.Error("Expected first lecturer assignment to succeed")
		}

		ok, err = store.AssignLecturer(ctx, session.ID, alan.ID)
		if err != nil {
			t.Fatalf("Failed to assign second lecturer: %v", err)
		}
		if ok {
			t.Error("Expected second lecturer assignment to be rejected")
		}

		got, _ = store.GetSession(ctx, session.ID)
		if got.LecturerID != grace.ID {
			t.Errorf("Expected lecturer %s to stick, got %s", grace.ID, got.LecturerID)
		}

		missing, err := store.GetSession(ctx, uuid.NewString())
		if err != nil {
			t.Fatalf("Failed to get missing session: %v", err)
		}
		if missing != nil {
			t.Errorf("Expected nil for unknown session, got %+v", missing)
		}

		malformed, err := store.GetSession(ctx, "not-a-uuid")
		if err != nil {
			t.Fatalf("Expected malformed id to be unknown, got error: %v", err)
		}
		if malformed != nil {
			t.Errorf("Expected nil for malformed session id, got %+v", malformed)
		}
	})

	t.Run("Attendance", func(t *testing.T) {
		first := start.Add(time.Minute)
		if err := store.RecordSighting(ctx, session.ID, ada.ID, first); err != nil {
			t.Fatalf("Failed to record sighting: %v", err)
		}
		second := first.Add(31 * time.Second)
		if err := store.RecordSighting(ctx, session.ID, ada.ID, second); err != nil {
			t.Fatalf("Failed to record second sighting: %v", err)
		}
		if err := store.RecordSighting(ctx, session.ID, bob.ID, second); err != nil {
			t.Fatalf("Failed to record Bob: %v", err)
		}

		records, err := store.ListAttendance(ctx, session.ID)
		if err != nil {
			t.Fatalf("Failed to list attendance: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		rec := records[0]
		if rec.StudentID != ada.ID {
			t.Fatalf("Expected Ada first, got %s", rec.StudentID)
		}
		if !rec.FirstSeen.Equal(first) {
			t.Errorf("Expected first seen %v to be kept, got %v", first, rec.FirstSeen)
		}
		if !rec.LastSeen.Equal(second) {
			t.Errorf("Expected last seen %v, got %v", second, rec.LastSeen)
		}
		if rec.Status != database.StatusPresent {
			t.Errorf("Expected status present, got %s", rec.Status)
		}

		// Touch never moves last_seen backwards.
		if err := store.TouchLastSeen(ctx, session.ID, ada.ID, first); err != nil {
			t.Fatalf("Failed to touch: %v", err)
		}
		later := second.Add(4 * time.Second)
		if err := store.TouchLastSeen(ctx, session.ID, ada.ID, later); err != nil {
			t.Fatalf("Failed to touch: %v", err)
		}
		records, _ = store.ListAttendance(ctx, session.ID)
		if !records[0].LastSeen.Equal(later) {
			t.Errorf("Expected last seen %v after touch, got %v", later, records[0].LastSeen)
		}
		if !records[0].FirstSeen.Equal(first) {
			t.Errorf("Expected first seen unchanged, got %v", records[0].FirstSeen)
		}
	})

	t.Run("EndAndOrphans", func(t *testing.T) {
		end := start.Add(time.Hour)
		if err := store.EndSession(ctx, session.ID, end, database.EndReasonStopped); err != nil {
			t.Fatalf("Failed to end session: %v", err)
		}
		if err := store.EndSession(ctx, session.ID, end.Add(time.Hour), "late"); err != nil {
			t.Fatalf("Failed to end session twice: %v", err)
		}

		got, _ := store.GetSession(ctx, session.ID)
		if got.Active {
			t.Error("Expected session inactive")
		}
		if got.EndTime == nil || !got.EndTime.Equal(end) {
			t.Errorf("Expected first end time %v to be kept, got %v", end, got.EndTime)
		}
		if got.EndReason != database.EndReasonStopped {
			t.Errorf("Expected end reason stopped, got %q", got.EndReason)
		}

		orphan := &database.Session{ID: uuid.NewString(), StartTime: start.Add(2 * time.Hour), Active: true}
		if err := store.CreateSession(ctx, orphan); err != nil {
			t.Fatalf("Failed to create orphan: %v", err)
		}
		n, err := store.CloseOrphanedSessions(ctx, start.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("Failed to close orphans: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 orphan closed, got %d", n)
		}
		got, _ = store.GetSession(ctx, orphan.ID)
		if got.Active || got.EndReason != database.EndReasonOrphaned {
			t.Errorf("Expected orphan closed with reason orphaned, got %+v", got)
		}

		sessions, err := store.ListSessions(ctx, 0)
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("Expected 2 sessions, got %d", len(sessions))
		}
		if sessions[0].ID != orphan.ID {
			t.Errorf("Expected newest session first")
		}

		limited, err := store.ListSessions(ctx, 1)
		if err != nil {
			t.Fatalf("Failed to list sessions with limit: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("Expected 1 session with limit, got %d", len(limited))
		}
	})
}
