package plugin

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

type sent struct {
	mu   sync.Mutex
	reqs []Request
}

func (s *sent) record(req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
}

func (s *sent) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.reqs))
	for i, r := range s.reqs {
		out[i] = r.Event
	}
	return out
}

func newTestAlerter(cfg AlertConfig) (*Alerter, *sent) {
	a := NewAlerter(NewManager(""), NewExecutor(time.Second), cfg)
	s := &sent{}
	a.send = s.record
	return a, s
}

func bad(category posture.Category) *posture.Result {
	return &posture.Result{
		Verdict:  posture.VerdictBad,
		Category: category,
		Features: posture.Features{TorsoAngle: 12, NeckAngle: 1, ShoulderTilt: 0.5},
	}
}

func good() *posture.Result {
	return &posture.Result{Verdict: posture.VerdictGood, Category: posture.CategoryNormal}
}

var t0 = time.Unix(1_700_000_000, 0)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func TestNewAlerter_Defaults(t *testing.T) {
	a, _ := newTestAlerter(AlertConfig{})
	if a.after != DefaultAlertAfter || a.repeat != DefaultAlertRepeat {
		t.Errorf("defaults = %v/%v", a.after, a.repeat)
	}
}

func TestAlerter_FiresAfterSustainedBadPosture(t *testing.T) {
	a, s := newTestAlerter(AlertConfig{After: 10 * time.Second, Repeat: time.Minute})

	for i := 0; i <= 9; i++ {
		a.Observe("s1", "alice", bad(posture.CategorySlouch), at(i))
	}
	if len(s.events()) != 0 {
		t.Fatalf("no alert expected before 10s, got %v", s.events())
	}

	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(10))
	if got := s.events(); len(got) != 1 || got[0] != EventBadPosture {
		t.Fatalf("expected one bad_posture alert, got %v", got)
	}

	req := s.reqs[0]
	if req.SessionID != "s1" || req.User != "alice" {
		t.Errorf("unexpected session/user %q/%q", req.SessionID, req.User)
	}
	if req.PostureType != "slouch" {
		t.Errorf("PostureType = %q, want slouch", req.PostureType)
	}
	if req.BadFor != 10 {
		t.Errorf("BadFor = %v, want 10", req.BadFor)
	}
	if req.Metrics.TorsoAngle != 12 {
		t.Errorf("Metrics.TorsoAngle = %v, want 12", req.Metrics.TorsoAngle)
	}
}

func TestAlerter_Repeats(t *testing.T) {
	a, s := newTestAlerter(AlertConfig{After: 10 * time.Second, Repeat: time.Minute})

	for i := 0; i <= 130; i += 5 {
		a.Observe("s1", "alice", bad(posture.CategorySlouch), at(i))
	}

	// 10s, 70s and 130s.
	if got := s.events(); len(got) != 3 {
		t.Errorf("expected 3 alerts, got %v", got)
	}
}

func TestAlerter_RecoveryAfterAlert(t *testing.T) {
	a, s := newTestAlerter(AlertConfig{After: 10 * time.Second, Repeat: time.Minute})

	a.Observe("s1", "alice", bad(posture.CategoryForwardHead), at(0))
	a.Observe("s1", "alice", bad(posture.CategoryForwardHead), at(15))
	a.Observe("s1", "alice", good(), at(20))

	got := s.events()
	if len(got) != 2 || got[1] != EventRecovered {
		t.Fatalf("expected bad_posture then posture_recovered, got %v", got)
	}
	if s.reqs[1].BadFor != 20 {
		t.Errorf("recovered BadFor = %v, want 20", s.reqs[1].BadFor)
	}

	// A fresh streak waits the full delay again.
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(30))
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(35))
	if len(s.events()) != 2 {
		t.Errorf("unexpected alerts %v", s.events())
	}
}

func TestAlerter_ShortStreakIsSilent(t *testing.T) {
	a, s := newTestAlerter(AlertConfig{After: 10 * time.Second})

	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(0))
	a.Observe("s1", "alice", good(), at(5))
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(6))
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(12))

	if got := s.events(); len(got) != 0 {
		t.Errorf("expected no alerts, got %v", got)
	}
}

func TestAlerter_IgnoresNoSignalAndCalibration(t *testing.T) {
	a, s := newTestAlerter(AlertConfig{After: 10 * time.Second})

	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(0))
	a.Observe("s1", "alice", nil, at(5))
	a.Observe("s1", "alice", &posture.Result{Calibrating: true}, at(6))
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(10))

	if got := s.events(); len(got) != 1 {
		t.Errorf("frames without a verdict should not break the streak, got %v", got)
	}
}

func TestAlerter_SessionsAreIndependent(t *testing.T) {
	a, s := newTestAlerter(AlertConfig{After: 10 * time.Second})

	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(0))
	a.Observe("s2", "bob", bad(posture.CategorySlouch), at(5))
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(10))
	a.Observe("s2", "bob", bad(posture.CategorySlouch), at(10))

	if len(s.reqs) != 1 || s.reqs[0].SessionID != "s1" {
		t.Errorf("expected only s1 to alert, got %+v", s.reqs)
	}
}

func TestAlerter_PrunesStaleStreaks(t *testing.T) {
	a, _ := newTestAlerter(AlertConfig{})

	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(0))
	a.Observe("s2", "bob", bad(posture.CategorySlouch), at(7200))

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.streaks["s1"]; ok {
		t.Error("stale streak should be pruned")
	}
	if _, ok := a.streaks["s2"]; !ok {
		t.Error("current streak should be kept")
	}
}

func TestAlerter_RunsPlugins(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "events.log")
	writePlugin(t, root, Manifest{
		Name:       "recorder",
		Executable: "recorder.sh",
		Events:     []string{EventBadPosture},
	}, "#!/bin/sh\ncat >> '"+out+"'\necho '{\"success\":true}'\n")
	writePlugin(t, root, Manifest{
		Name:       "ignored",
		Executable: "ignored.sh",
		Events:     []string{EventRecovered},
	}, "#!/bin/sh\ntouch '"+out+".ignored'\necho '{\"success\":true}'\n")

	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	a := NewAlerter(manager, NewExecutor(5*time.Second), AlertConfig{After: time.Second})
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(0))
	a.Observe("s1", "alice", bad(posture.CategorySlouch), at(1))
	a.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	if !strings.Contains(string(data), `"event":"bad_posture"`) || !strings.Contains(string(data), `"user":"alice"`) {
		t.Errorf("unexpected plugin input %s", data)
	}
	if _, err := os.Stat(out + ".ignored"); err == nil {
		t.Error("plugins not subscribed to bad_posture should not run")
	}
}
