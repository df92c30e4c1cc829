package service

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"spot_bot/internal/models"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time
	now       func() time.Time

	mu       sync.RWMutex
	last     models.CycleResult
	lastAt   time.Time
	lastErr  string
	errAt    time.Time
	failures int
}

// Report is the /healthz body.
type Report struct {
	Ready        bool   `json:"ready"`
	UptimeSec    int64  `json:"uptimeSec"`
	LastTickUnix int64  `json:"lastTickUnix"`
	Position     string `json:"position"`
	StopLoss     string `json:"stopLoss"`
	LastAction   string `json:"lastAction"`
	Mid          string `json:"mid"`
	LastError    string `json:"lastError,omitempty"`
	Failures     int    `json:"consecutiveFailures"`
}

func NewState() *State {
	return &State{startedAt: time.Now(), now: time.Now}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) Uptime() time.Duration { return s.now().Sub(s.startedAt) }

func (s *State) CycleDone(res models.CycleResult) {
	s.mu.Lock()
	s.last = res
	s.lastAt = s.now()
	s.failures = 0
	s.mu.Unlock()
	s.ready.Store(true)
}

func (s *State) CycleFailed(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.errAt = s.now()
	s.failures++
	s.mu.Unlock()
}

func (s *State) LastTick() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAt
}

func (s *State) Report() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := Report{
		Ready:      s.Ready(),
		UptimeSec:  int64(s.Uptime().Seconds()),
		Position:   s.last.Position.State.String(),
		StopLoss:   s.last.Position.StopLossValue().String(),
		LastAction: string(s.last.Action),
		Mid:        s.last.Snapshot.Mid.String(),
		LastError:  s.lastErr,
		Failures:   s.failures,
	}
	if !s.lastAt.IsZero() {
		r.LastTickUnix = s.lastAt.Unix()
	}
	return r
}

// Status is the plain-text answer to /status.
func (s *State) Status() string {
	r := s.Report()
	if r.LastTickUnix == 0 {
		return "no cycle completed yet"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s SL: %s\n", r.Position, r.StopLoss)
	fmt.Fprintf(&b, "last action: %s @ %s\n", r.LastAction, time.Unix(r.LastTickUnix, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "mid: %s", r.Mid)
	if r.Failures > 0 {
		fmt.Fprintf(&b, "\nfailing x%d: %s", r.Failures, r.LastError)
	}
	return b.String()
}
