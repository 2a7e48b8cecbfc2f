package antitamper

import (
	"sync"
	"testing"
	"time"
)

// fakeAntitamperClock drives wall and monotonic time independently, so tests
// can simulate NTP jumps and clock manipulation without real sleeps.
type fakeAntitamperClock struct {
	mu   sync.Mutex
	wall int64
	mono int64
}

func newFakeAntitamperClock() *fakeAntitamperClock {
	return &fakeAntitamperClock{wall: 1_000_000, mono: 0}
}

func (c *fakeAntitamperClock) clock() Clock {
	return Clock{
		WallMs:     func() int64 { c.mu.Lock(); defer c.mu.Unlock(); return c.wall },
		MonotoneNs: func() int64 { c.mu.Lock(); defer c.mu.Unlock(); return c.mono },
	}
}

func (c *fakeAntitamperClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wall += d.Milliseconds()
	c.mono += d.Nanoseconds()
}

func (c *fakeAntitamperClock) jumpWallBackward(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wall -= d.Milliseconds()
}

func TestIsDegradationValidWhileOnline(t *testing.T) {
	fc := newFakeAntitamperClock()
	s := New(fc.clock(), time.Hour)
	s.RecordOnlineVerify()

	if !s.IsDegradationValid() {
		t.Error("IsDegradationValid() = false while online, want true")
	}
}

func TestIsDegradationValidWithinGrace(t *testing.T) {
	fc := newFakeAntitamperClock()
	s := New(fc.clock(), time.Hour)
	s.RecordOnlineVerify()
	s.MarkOffline()

	fc.advance(30 * time.Minute)
	if !s.IsDegradationValid() {
		t.Error("IsDegradationValid() = false within grace window, want true")
	}

	hours := s.RemainingGraceHours()
	if hours <= 0 || hours >= 1 {
		t.Errorf("RemainingGraceHours() = %v, want in (0, 1)", hours)
	}
}

func TestIsDegradationValidExceedsGrace(t *testing.T) {
	fc := newFakeAntitamperClock()
	s := New(fc.clock(), time.Hour)
	s.RecordOnlineVerify()
	s.MarkOffline()

	fc.advance(2 * time.Hour)
	if s.IsDegradationValid() {
		t.Error("IsDegradationValid() = true past grace window, want false")
	}
	if hours := s.RemainingGraceHours(); hours != 0 {
		t.Errorf("RemainingGraceHours() = %v, want 0", hours)
	}
}

func TestBackwardWallClockJumpIsHardReject(t *testing.T) {
	fc := newFakeAntitamperClock()
	s := New(fc.clock(), 24*time.Hour)
	s.RecordOnlineVerify()
	s.MarkOffline()

	// Advance monotonic a little (still well within grace) but roll wall
	// time backward — simulating a clock-manipulation attack.
	fc.advance(time.Minute)
	fc.jumpWallBackward(time.Hour)

	if s.IsDegradationValid() {
		t.Error("IsDegradationValid() = true after backward wall-clock jump, want hard reject")
	}
}

func TestForwardWallClockJumpDoesNotExtendGrace(t *testing.T) {
	fc := newFakeAntitamperClock()
	s := New(fc.clock(), time.Hour)
	s.RecordOnlineVerify()
	s.MarkOffline()

	// Wall time races far ahead (NTP correction / manual change) while
	// monotonic time barely moves: grace is bounded by monotonic time, so
	// this must NOT extend the degradation window.
	fc.mu.Lock()
	fc.wall += (48 * time.Hour).Milliseconds()
	fc.mono += int64(time.Second)
	fc.mu.Unlock()

	if !s.IsDegradationValid() {
		t.Error("IsDegradationValid() = false, want true (monotonic elapsed is still small)")
	}
}

func TestAdoptCachedVerifySeedsWallTime(t *testing.T) {
	fc := newFakeAntitamperClock()
	s := New(fc.clock(), time.Hour)

	s.AdoptCachedVerify(500_000)
	if s.LastVerifyWallMs() != 500_000 {
		t.Errorf("LastVerifyWallMs() = %d, want 500000", s.LastVerifyWallMs())
	}

	s.MarkOffline()
	if !s.IsDegradationValid() {
		t.Error("IsDegradationValid() = false immediately after adopting a cached verify, want true")
	}
}

func TestMarkOfflineIsIdempotent(t *testing.T) {
	fc := newFakeAntitamperClock()
	s := New(fc.clock(), time.Hour)
	s.RecordOnlineVerify()

	s.MarkOffline()
	fc.advance(10 * time.Minute)
	s.MarkOffline() // should not reset the offline-start anchor

	fc.advance(55 * time.Minute) // total offline: 65min > 60min grace
	if s.IsDegradationValid() {
		t.Error("second MarkOffline reset the offline clock, want original anchor preserved")
	}
}
