// Package antitamper implements the agent's one piece of algorithmic
// subtlety (spec §4.5): bounding offline grace by a monotonic clock so that
// advancing wall time cannot extend it, while any backward wall-time jump is
// treated as an attack.
package antitamper

import (
	"log/slog"
	"sync"
	"time"
)

const sanityWindow = 5 * time.Minute

// offlineSentinel marks "not currently offline".
const offlineSentinel = int64(-1)

// Clock abstracts wall and monotonic time so tests can drive both
// independently (e.g. advance monotonic without advancing wall, or jump wall
// backward without advancing monotonic).
type Clock struct {
	WallMs    func() int64
	MonotoneNs func() int64
}

func RealClock() Clock {
	return Clock{
		WallMs:     func() int64 { return time.Now().UnixMilli() },
		MonotoneNs: func() int64 { return monotonicNow() },
	}
}

// State is the anti-tamper block from the agent state singleton.
type State struct {
	mu sync.Mutex
	clock Clock

	lastVerifyWall  int64
	lastVerifyMono  int64
	offlineStartMono int64
	graceNanos      int64
}

// New creates a State with a fixed grace window. offlineStartMono starts at
// the sentinel (-1, not offline).
func New(clock Clock, grace time.Duration) *State {
	return &State{
		clock:            clock,
		offlineStartMono: offlineSentinel,
		graceNanos:       grace.Nanoseconds(),
	}
}

// RecordOnlineVerify snapshots the current wall/mono time and clears any
// offline marker — called whenever the agent successfully contacts the
// authority.
func (s *State) RecordOnlineVerify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastVerifyWall = s.clock.WallMs()
	s.lastVerifyMono = s.clock.MonotoneNs()
	s.offlineStartMono = offlineSentinel
}

// AdoptCachedVerify seeds lastVerifyWall from a restored cache (used by
// tryDegradeFromCache) without resetting the mono anchor to "now" —
// lastVerifyMono isn't meaningful across a process restart, only
// lastVerifyWall (for the backward-clock check) and the offline marker are.
func (s *State) AdoptCachedVerify(lastVerifyWallMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastVerifyWall = lastVerifyWallMs
}

// MarkOffline sets offlineStartMono to now if not already offline. Idempotent.
func (s *State) MarkOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offlineStartMono < 0 {
		s.offlineStartMono = s.clock.MonotoneNs()
	}
}

// IsDegradationValid implements spec §4.5's isDegradationValid algorithm.
func (s *State) IsDegradationValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.WallMs()
	if now < s.lastVerifyWall {
		// Wall clock moved backward: treated as an attack, hard reject.
		return false
	}

	if s.offlineStartMono < 0 {
		return true
	}

	monoNow := s.clock.MonotoneNs()
	if monoNow-s.offlineStartMono > s.graceNanos {
		return false
	}

	wallElapsed := time.Duration(now-s.lastVerifyWall) * time.Millisecond
	monoElapsed := time.Duration(monoNow - s.lastVerifyMono)
	if wallElapsed > monoElapsed+sanityWindow {
		slog.Warn("wall clock elapsed exceeds monotonic elapsed by more than the sanity window",
			"wall_elapsed", wallElapsed, "mono_elapsed", monoElapsed)
	}

	return true
}

// RemainingGraceHours implements spec §4.5's remainingGraceHours.
func (s *State) RemainingGraceHours() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offlineStartMono < 0 {
		return float64(s.graceNanos) / 3.6e12
	}

	elapsed := s.clock.MonotoneNs() - s.offlineStartMono
	remaining := float64(s.graceNanos-elapsed) / 3.6e12
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LastVerifyWallMs returns the last recorded wall-clock verify time, used to
// populate the on-disk cache record.
func (s *State) LastVerifyWallMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVerifyWall
}
