package store

import (
	"errors"
	"testing"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{ID: "sess-1", UserName: "alice"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if sess.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByID("sess-1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.UserName != "alice" {
		t.Errorf("UserName = %q, want alice", got.UserName)
	}
	if got.EndedAt != nil {
		t.Error("new session should not be ended")
	}
	if got.Baseline != nil {
		t.Error("new session should not have a baseline")
	}
}

func TestSessionRepository_CreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	repo.Create(&Session{ID: "dup", UserName: "alice"})
	if err := repo.Create(&Session{ID: "dup", UserName: "bob"}); err == nil {
		t.Error("expected error creating a session with a duplicate ID")
	}
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Sessions().GetByID("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_Ensure(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	first, err := repo.Ensure("desk", "alice")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	second, err := repo.Ensure("desk", "someone-else")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if second.UserName != "alice" {
		t.Errorf("Ensure should not overwrite an existing session, got user %q", second.UserName)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Error("Ensure returned a different row")
	}
}

func TestSessionRepository_SetBaseline(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()
	repo.Create(&Session{ID: "sess-1", UserName: "alice"})

	want := posture.Baseline{TorsoAngle: 4.5, NeckAngle: -1.25, ShoulderTilt: 0.5}
	if err := repo.SetBaseline("sess-1", want); err != nil {
		t.Fatalf("SetBaseline() error = %v", err)
	}

	got, _ := repo.GetByID("sess-1")
	if got.Baseline == nil || *got.Baseline != want {
		t.Errorf("Baseline = %+v, want %+v", got.Baseline, want)
	}

	if err := repo.SetBaseline("missing", want); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_LatestBaseline(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	if _, err := repo.LatestBaseline("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before any calibration, got %v", err)
	}

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.Create(&Session{ID: "old", UserName: "alice", CreatedAt: base,
		Baseline: &posture.Baseline{TorsoAngle: 1}})
	repo.Create(&Session{ID: "new", UserName: "alice", CreatedAt: base.Add(time.Hour),
		Baseline: &posture.Baseline{TorsoAngle: 2}})
	repo.Create(&Session{ID: "uncalibrated", UserName: "alice", CreatedAt: base.Add(2 * time.Hour)})
	repo.Create(&Session{ID: "other", UserName: "bob", CreatedAt: base.Add(3 * time.Hour),
		Baseline: &posture.Baseline{TorsoAngle: 9}})

	got, err := repo.LatestBaseline("alice")
	if err != nil {
		t.Fatalf("LatestBaseline() error = %v", err)
	}
	if got.TorsoAngle != 2 {
		t.Errorf("LatestBaseline torso = %f, want 2", got.TorsoAngle)
	}
}

func TestSessionRepository_ListByUser(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.Create(&Session{ID: "a1", UserName: "alice", CreatedAt: base})
	repo.Create(&Session{ID: "a2", UserName: "alice", CreatedAt: base.Add(time.Minute)})
	repo.Create(&Session{ID: "b1", UserName: "bob", CreatedAt: base})

	sessions, err := repo.ListByUser("alice")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != "a2" {
		t.Errorf("newest session should come first, got %s", sessions[0].ID)
	}
}

func TestSessionRepository_End(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()
	repo.Create(&Session{ID: "sess-1", UserName: "alice"})

	end := time.Date(2026, 5, 1, 17, 30, 0, 0, time.UTC)
	if err := repo.End("sess-1", end); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if err := repo.End("sess-1", end.Add(time.Hour)); err != nil {
		t.Fatalf("second End() error = %v", err)
	}

	got, _ := repo.GetByID("sess-1")
	if got.EndedAt == nil || !got.EndedAt.Equal(end) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, end)
	}

	if err := repo.End("missing", end); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_DeleteCascadesLogs(t *testing.T) {
	s := newTestStore(t)
	s.Sessions().Create(&Session{ID: "sess-1", UserName: "alice"})
	s.Logs().Create(&LogEntry{
		SessionID:   "sess-1",
		Posture:     posture.VerdictGood,
		PostureType: posture.CategoryNormal,
	})

	if err := s.Sessions().Delete("sess-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	n, err := s.Logs().CountBySession("sess-1")
	if err != nil {
		t.Fatalf("CountBySession() error = %v", err)
	}
	if n != 0 {
		t.Errorf("logs should be deleted with their session, %d left", n)
	}

	if err := s.Sessions().Delete("sess-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
