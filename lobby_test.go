package main

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	stopped := t.stopped
	t.stopped = true
	return !stopped
}

// fakeClock hands out manual timers so registry tests never sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire expires every pending timer armed with duration d.
func (c *fakeClock) fire(d time.Duration) {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && t.d == d {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

const (
	testTimeout = time.Hour
	testGrace   = 30 * time.Second
)

func newTestRegistry(clk clock) *Registry {
	return newRegistry(clk, testRand(), testTimeout, testGrace, 10)
}

func TestCreateLobby(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	l := r.create("host-id", "Alice")

	assert.Len(t, l.Code, codeLength)
	for _, c := range l.Code {
		assert.Contains(t, codeAlphabet, string(c))
	}

	assert.Equal(t, stateWaiting, l.State)
	assert.Equal(t, "host-id", l.HostID)
	require.Len(t, l.Seats, 1)
	assert.True(t, l.Seats[0].IsHost)
	assert.True(t, l.Seats[0].Connected)
	assert.Equal(t, defaultSettings(), l.Settings)

	assert.Same(t, l, r.get(l.Code))
	assert.Same(t, l, r.byIdentity("host-id"))
}

func TestCreateLobbyCodesUnique(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	seen := make(map[string]bool)
	for i := range 50 {
		l := r.create("host", "Alice")
		assert.False(t, seen[l.Code], "duplicate code at lobby %d", i)
		seen[l.Code] = true
	}
}

func TestJoinUnknownCode(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	_, err := r.join("ZZZZZZ", "id", "Bob")
	assert.ErrorIs(t, err, errLobbyNotFound)
}

func TestJoinFullLobby(t *testing.T) {
	r := newRegistry(newFakeClock(), testRand(), testTimeout, testGrace, 3)

	l := r.create("host", "Alice")
	_, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)
	_, err = r.join(l.Code, "p2", "Carol")
	require.NoError(t, err)

	_, err = r.join(l.Code, "p3", "Dave")
	assert.ErrorIs(t, err, errLobbyFull)
}

func TestJoinInProgress(t *testing.T) {
	cards, err := loadCards()
	require.NoError(t, err)

	r := newTestRegistry(newFakeClock())

	l := r.create("host", "Alice")
	_, err = r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)
	_, err = r.join(l.Code, "p2", "Carol")
	require.NoError(t, err)

	l.mu.Lock()
	require.NoError(t, l.start(cards, testRand()))
	l.mu.Unlock()

	_, err = r.join(l.Code, "latecomer", "Eve")
	assert.ErrorIs(t, err, errGameInProgress)

	// A seated identity may still reconnect mid-game.
	got, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)
	assert.Len(t, got.Seats, 3)
}

func TestRejoinReconnectsSeatInPlace(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	l := r.create("host", "Alice")
	_, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)

	require.NotNil(t, r.leave("p1"))
	assert.False(t, l.Seats[1].Connected)

	got, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)
	assert.Len(t, got.Seats, 2)
	assert.True(t, got.Seats[1].Connected)
}

func TestLeavePromotesHost(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	l := r.create("host", "Alice")
	_, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)
	_, err = r.join(l.Code, "p2", "Carol")
	require.NoError(t, err)

	require.NotNil(t, r.leave("host"))

	assert.False(t, l.Seats[0].Connected)
	assert.False(t, l.Seats[0].IsHost)
	assert.True(t, l.Seats[1].IsHost)
	assert.Equal(t, "p1", l.HostID)

	// Exactly one host flag remains set.
	hosts := 0
	for _, s := range l.Seats {
		if s.IsHost {
			hosts++
		}
	}
	assert.Equal(t, 1, hosts)
}

func TestLeaveUnknownIdentity(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	r.create("host", "Alice")

	assert.Nil(t, r.leave("nobody"))
}

func TestGraceCloseWhenAllDisconnected(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)

	var closedCode, closedReason string
	r.onClose = func(l *Lobby, reason string) {
		closedCode = l.Code
		closedReason = reason
	}

	l := r.create("host", "Alice")
	_, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)

	r.leave("host")
	r.leave("p1")

	clk.fire(testGrace)

	assert.Nil(t, r.get(l.Code))
	assert.Equal(t, l.Code, closedCode)
	assert.Equal(t, "All players disconnected", closedReason)
}

func TestGraceCloseCancelledByReconnect(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)

	closed := false
	r.onClose = func(*Lobby, string) { closed = true }

	l := r.create("host", "Alice")
	r.leave("host")

	_, err := r.join(l.Code, "host", "Alice")
	require.NoError(t, err)

	clk.fire(testGrace)

	assert.False(t, closed)
	assert.NotNil(t, r.get(l.Code))
}

func TestGraceCloseRechecksConnectivity(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)

	l := r.create("host", "Alice")
	r.leave("host")

	// Reconnect without going through join: the timer itself must verify
	// the lobby is still abandoned before closing it.
	l.mu.Lock()
	l.Seats[0].Connected = true
	l.mu.Unlock()

	clk.fire(testGrace)

	assert.NotNil(t, r.get(l.Code))
}

func TestIdleTimeoutClosesLobby(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)

	var reason string
	r.onClose = func(_ *Lobby, why string) { reason = why }

	l := r.create("host", "Alice")

	clk.fire(testTimeout)

	assert.Nil(t, r.get(l.Code))
	assert.Contains(t, reason, "timed out")
}

func TestActivityRearmsIdleTimer(t *testing.T) {
	clk := newFakeClock()
	r := newTestRegistry(clk)

	l := r.create("host", "Alice")

	// Any successful mutation rearms the timer, leaving the original one
	// stopped.
	_, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)

	clk.mu.Lock()
	var live int
	for _, timer := range clk.timers {
		if !timer.stopped && timer.d == testTimeout {
			live++
		}
	}
	clk.mu.Unlock()

	assert.Equal(t, 1, live)
}

func TestUpdateSettings(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	l := r.create("host", "Alice")

	mode := modeDecoy
	floor := 2
	rounds := 3

	got, err := r.updateSettings(l.Code, "host", SettingsPatch{
		ImposterMode:    &mode,
		SimilarityFloor: &floor,
		NumRounds:       &rounds,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, modeDecoy, l.Settings.ImposterMode)
	assert.Equal(t, 2, l.Settings.SimilarityFloor)
	assert.Equal(t, 3, l.Settings.NumRounds)
	assert.Equal(t, 1, l.Settings.NumImposters)
}

func TestUpdateSettingsRejectsNonHost(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	l := r.create("host", "Alice")
	_, err := r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)

	rounds := 5
	_, err = r.updateSettings(l.Code, "p1", SettingsPatch{NumRounds: &rounds})
	assert.ErrorIs(t, err, errNotHost)
	assert.Equal(t, 2, l.Settings.NumRounds)
}

func TestUpdateSettingsUnknownCode(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	rounds := 3
	_, err := r.updateSettings("ZZZZZZ", "host", SettingsPatch{NumRounds: &rounds})
	assert.ErrorIs(t, err, errLobbyNotFound)
}

func TestUpdateSettingsMidGame(t *testing.T) {
	cards, err := loadCards()
	require.NoError(t, err)

	r := newTestRegistry(newFakeClock())

	l := r.create("host", "Alice")
	_, err = r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)
	_, err = r.join(l.Code, "p2", "Carol")
	require.NoError(t, err)

	l.mu.Lock()
	require.NoError(t, l.start(cards, testRand()))
	l.mu.Unlock()

	// The host is refused with a state conflict, not a permission error.
	rounds := 3
	_, err = r.updateSettings(l.Code, "host", SettingsPatch{NumRounds: &rounds})
	assert.ErrorIs(t, err, errGameInProgress)
	assert.Equal(t, 2, l.Settings.NumRounds)
}

func TestUpdateSettingsDropsInvalidValues(t *testing.T) {
	r := newTestRegistry(newFakeClock())
	l := r.create("host", "Alice")

	zero := 0
	badMode := "sideways"
	tooHigh := maxSimilarity + 1

	got, err := r.updateSettings(l.Code, "host", SettingsPatch{
		NumImposters:    &zero,
		ImposterMode:    &badMode,
		SimilarityFloor: &tooHigh,
		NumRounds:       &zero,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, defaultSettings(), l.Settings)
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newTestRegistry(newFakeClock())

	calls := 0
	r.onClose = func(*Lobby, string) { calls++ }

	l := r.create("host", "Alice")

	r.close(l.Code, "first")
	r.close(l.Code, "second")

	assert.Equal(t, 1, calls)
	assert.Nil(t, r.get(l.Code))
}

func TestStatsExposeNoCards(t *testing.T) {
	cards, err := loadCards()
	require.NoError(t, err)

	r := newTestRegistry(newFakeClock())

	l := r.create("host", "Alice")
	_, err = r.join(l.Code, "p1", "Bob")
	require.NoError(t, err)
	_, err = r.join(l.Code, "p2", "Carol")
	require.NoError(t, err)

	l.mu.Lock()
	require.NoError(t, l.start(cards, testRand()))
	l.mu.Unlock()

	stats := r.stats()
	assert.Equal(t, 1, stats.Count)
	require.Len(t, stats.Sessions, 1)

	s := stats.Sessions[0]
	assert.Equal(t, l.Code, s.Code)
	assert.Equal(t, 3, s.Seats)
	assert.Equal(t, statePlaying, s.State)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestCodeAlphabetExcludesConfusables(t *testing.T) {
	for _, c := range "0OI1l" {
		assert.False(t, strings.ContainsRune(codeAlphabet, c))
	}
}
