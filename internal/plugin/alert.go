package plugin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/posture/internal/posture"
)

// Default alert timings.
const (
	DefaultAlertAfter  = 30 * time.Second
	DefaultAlertRepeat = 5 * time.Minute
)

// staleAfter drops streaks for sessions that stopped sending frames.
const staleAfter = time.Hour

// AlertConfig controls when the Alerter fires.
type AlertConfig struct {
	// After is how long posture must stay bad before the first alert.
	After time.Duration
	// Repeat is the gap between alerts while posture stays bad.
	Repeat time.Duration
}

type streak struct {
	since   time.Time
	last    time.Time
	alerted time.Time
}

// Alerter watches posture results and runs plugins when a session's
// posture has been bad for too long and again when it recovers.
type Alerter struct {
	manager  *Manager
	executor *Executor
	after    time.Duration
	repeat   time.Duration

	mu        sync.Mutex
	streaks   map[string]*streak
	lastPrune time.Time

	// send delivers one request to the subscribed plugins.
	send func(Request)
	wg   sync.WaitGroup
}

// NewAlerter creates an Alerter that runs the plugins known to manager.
func NewAlerter(manager *Manager, executor *Executor, cfg AlertConfig) *Alerter {
	if cfg.After <= 0 {
		cfg.After = DefaultAlertAfter
	}
	if cfg.Repeat <= 0 {
		cfg.Repeat = DefaultAlertRepeat
	}

	a := &Alerter{
		manager:  manager,
		executor: executor,
		after:    cfg.After,
		repeat:   cfg.Repeat,
		streaks:  make(map[string]*streak),
	}
	a.send = a.dispatch
	return a
}

// Observe feeds one analyzed frame. A nil result leaves the streak untouched.
func (a *Alerter) Observe(sessionID, user string, res *posture.Result, at time.Time) {
	if res == nil || res.Calibrating {
		return
	}

	a.mu.Lock()
	a.prune(at)

	s, ok := a.streaks[sessionID]
	var req *Request
	switch {
	case res.Verdict == posture.VerdictBad:
		if !ok {
			s = &streak{since: at}
			a.streaks[sessionID] = s
		}
		s.last = at
		badFor := at.Sub(s.since)
		if badFor >= a.after && (s.alerted.IsZero() || at.Sub(s.alerted) >= a.repeat) {
			s.alerted = at
			req = newRequest(EventBadPosture, sessionID, user, res, badFor)
		}
	case ok:
		delete(a.streaks, sessionID)
		if !s.alerted.IsZero() {
			req = newRequest(EventRecovered, sessionID, user, res, at.Sub(s.since))
		}
	}
	a.mu.Unlock()

	if req != nil {
		a.send(*req)
	}
}

// Wait blocks until every running plugin has exited.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

// prune must be called with mu held.
func (a *Alerter) prune(now time.Time) {
	if now.Sub(a.lastPrune) < time.Minute {
		return
	}
	a.lastPrune = now
	for id, s := range a.streaks {
		if now.Sub(s.last) > staleAfter {
			delete(a.streaks, id)
		}
	}
}

func (a *Alerter) dispatch(req Request) {
	for _, p := range a.manager.ForEvent(req.Event) {
		a.wg.Add(1)
		go func(p *Plugin, req Request) {
			defer a.wg.Done()

			resp, err := a.executor.Execute(context.Background(), p, &req)
			switch {
			case err != nil:
				slog.Warn("alert plugin failed", "plugin", p.Manifest.Name, "event", req.Event, "error", err)
			case !resp.Success:
				slog.Warn("alert plugin reported an error", "plugin", p.Manifest.Name, "event", req.Event, "error", resp.Error)
			default:
				slog.Debug("alert plugin ran", "plugin", p.Manifest.Name, "event", req.Event, "session", req.SessionID)
			}
		}(p, req)
	}
}

func newRequest(event, sessionID, user string, res *posture.Result, badFor time.Duration) *Request {
	return &Request{
		Event:       event,
		SessionID:   sessionID,
		User:        user,
		PostureType: string(res.Category),
		BadFor:      badFor.Seconds(),
		Metrics: Metrics{
			TorsoAngle:   res.Features.TorsoAngle,
			NeckAngle:    res.Features.NeckAngle,
			ShoulderTilt: res.Features.ShoulderTilt,
		},
	}
}
