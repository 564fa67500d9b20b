package main

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// Excludes visually confusable characters (0, O, I, 1)
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// stopper is what timers expose to the registry, so tests can swap in
// manual timers.
type stopper interface {
	Stop() bool
}

// clock abstracts time for the registry: session code expiry and the
// disconnect grace period both run through it, so tests never sleep.
type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) stopper
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// newRand seeds a deterministic generator from crypto/rand. Game logic only
// ever sees a *rand.Rand, so tests can inject a fixed seed instead.
func newRand() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	return rand.New(rand.NewChaCha8(seed))
}

// Seat is one participant slot. Seats are never removed mid-session, only
// marked disconnected, so card and turn-order indices stay valid.
type Seat struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

type Settings struct {
	NumImposters    int    `json:"numImposters"`
	ImposterMode    string `json:"imposterMode"` // "generic" or "decoy"
	SimilarityFloor int    `json:"similarityFloor"`
	NumRounds       int    `json:"numRounds"`
	SkipDiscussion  bool   `json:"skipDiscussion"`
}

const (
	modeGeneric = "generic"
	modeDecoy   = "decoy"
)

func defaultSettings() Settings {
	return Settings{
		NumImposters:    1,
		ImposterMode:    modeGeneric,
		SimilarityFloor: 3,
		NumRounds:       2,
		SkipDiscussion:  false,
	}
}

// SettingsPatch carries host-submitted settings changes; nil fields are
// left untouched, out-of-range values are dropped.
type SettingsPatch struct {
	NumImposters    *int    `json:"numImposters,omitempty"`
	ImposterMode    *string `json:"imposterMode,omitempty"`
	SimilarityFloor *int    `json:"similarityFloor,omitempty"`
	NumRounds       *int    `json:"numRounds,omitempty"`
	SkipDiscussion  *bool   `json:"skipDiscussion,omitempty"`
}

func (s *Settings) merge(p SettingsPatch) {
	if p.NumImposters != nil && *p.NumImposters >= 1 {
		s.NumImposters = *p.NumImposters
	}
	if p.ImposterMode != nil && (*p.ImposterMode == modeGeneric || *p.ImposterMode == modeDecoy) {
		s.ImposterMode = *p.ImposterMode
	}
	if p.SimilarityFloor != nil && *p.SimilarityFloor >= 1 && *p.SimilarityFloor <= maxSimilarity {
		s.SimilarityFloor = *p.SimilarityFloor
	}
	if p.NumRounds != nil && *p.NumRounds >= 1 {
		s.NumRounds = *p.NumRounds
	}
	if p.SkipDiscussion != nil {
		s.SkipDiscussion = *p.SkipDiscussion
	}
}

const (
	stateWaiting = "waiting"
	statePlaying = "playing"
	stateEnded   = "ended"
)

// Lobby is one live game session. All fields below mu are guarded by it;
// every inbound event for a session is applied under the lock, so two
// events for the same session are never interleaved.
type Lobby struct {
	mu sync.Mutex

	Code     string
	HostID   string
	Seats    []Seat
	Settings Settings
	State    string

	// Assignment data, populated on start
	SeatCards   []Card
	RevealOrder []int
	Imposters   []int
	RealCard    *Card
	DecoyCard   *Card

	// Round state
	CurrentRound     int
	CurrentTurnIndex int
	DiscussionOrders [][]int
	Discussion       [][]string // [round][seat]
	Chat             []ChatMessage

	CreatedAt    time.Time
	LastActivity time.Time

	idleTimer  stopper
	graceTimer stopper
}

// Registry owns every live lobby, keyed by code. It is passed by reference
// to anything that needs lobby lookup; there is no ambient global state.
type Registry struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby

	clk      clock
	rng      *rand.Rand // guarded by mu
	timeout  time.Duration
	grace    time.Duration
	maxSeats int

	// onClose is invoked after a lobby leaves the registry, outside any
	// lock, so the transport can notify connected seats.
	onClose func(l *Lobby, reason string)
}

func newRegistry(clk clock, rng *rand.Rand, timeout, grace time.Duration, maxSeats int) *Registry {
	return &Registry{
		lobbies:  make(map[string]*Lobby),
		clk:      clk,
		rng:      rng,
		timeout:  timeout,
		grace:    grace,
		maxSeats: maxSeats,
	}
}

// newCode generates a 6-character code and retries until it is unique
// among live lobbies. Caller must hold r.mu.
func (r *Registry) newCode() string {
	for {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[r.rng.IntN(len(codeAlphabet))]
		}
		code := string(buf)

		if _, exists := r.lobbies[code]; !exists {
			return code
		}
	}
}

// create builds a lobby in the waiting state with a solo host seat and
// arms its inactivity timer.
func (r *Registry) create(hostID, hostName string) *Lobby {
	now := r.clk.Now()

	l := &Lobby{
		HostID: hostID,
		Seats: []Seat{{
			ID:        hostID,
			Name:      hostName,
			IsHost:    true,
			Connected: true,
		}},
		Settings:     defaultSettings(),
		State:        stateWaiting,
		CreatedAt:    now,
		LastActivity: now,
	}

	r.mu.Lock()
	l.Code = r.newCode()
	r.lobbies[l.Code] = l
	r.mu.Unlock()

	l.mu.Lock()
	r.touchLocked(l)
	l.mu.Unlock()

	return l
}

func (r *Registry) get(code string) *Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lobbies[code]
}

// byIdentity finds the lobby holding a seat for the given identity.
func (r *Registry) byIdentity(id string) *Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.lobbies {
		l.mu.Lock()
		seated := l.seatIndexLocked(id) >= 0
		l.mu.Unlock()

		if seated {
			return l
		}
	}

	return nil
}

// join seats an identity in a waiting lobby. A returning identity is
// reconnected in place rather than seated twice.
func (r *Registry) join(code, id, name string) (*Lobby, error) {
	l := r.get(code)
	if l == nil {
		return nil, errLobbyNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.seatIndexLocked(id); i >= 0 {
		l.Seats[i].Connected = true
		l.stopGraceLocked()
		r.touchLocked(l)

		return l, nil
	}

	if l.State != stateWaiting {
		return nil, errGameInProgress
	}

	if len(l.Seats) >= r.maxSeats {
		return nil, errLobbyFull
	}

	l.Seats = append(l.Seats, Seat{
		ID:        id,
		Name:      name,
		Connected: true,
	})
	l.stopGraceLocked()
	r.touchLocked(l)

	return l, nil
}

// leave marks the identity's seat disconnected. The seat itself survives so
// assignment and turn-order indices stay stable. If the host drops, the
// first connected non-host seat is promoted; if nobody is left connected, a
// deferred close is scheduled.
func (r *Registry) leave(id string) *Lobby {
	l := r.byIdentity(id)
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.seatIndexLocked(id)
	if i < 0 {
		return nil
	}

	l.Seats[i].Connected = false

	if l.Seats[i].IsHost {
		for j := range l.Seats {
			if l.Seats[j].Connected && !l.Seats[j].IsHost {
				l.Seats[i].IsHost = false
				l.Seats[j].IsHost = true
				l.HostID = l.Seats[j].ID
				break
			}
		}
	}

	if !l.anyConnectedLocked() {
		code := l.Code
		l.stopGraceLocked()
		l.graceTimer = r.clk.AfterFunc(r.grace, func() {
			r.closeIfAbandoned(code)
		})
	}

	l.LastActivity = r.clk.Now()

	return l
}

// closeIfAbandoned fires at grace-period expiry and only closes the lobby
// if every seat is still disconnected.
func (r *Registry) closeIfAbandoned(code string) {
	l := r.get(code)
	if l == nil {
		return
	}

	l.mu.Lock()
	abandoned := !l.anyConnectedLocked()
	l.mu.Unlock()

	if abandoned {
		r.close(code, "All players disconnected")
	}
}

// updateSettings merges a patch into the lobby settings. Only the current
// host may change settings, and only while the lobby is waiting; the two
// refusals are distinct errors so callers see why they were turned away.
func (r *Registry) updateSettings(code, id string, patch SettingsPatch) (*Lobby, error) {
	l := r.get(code)
	if l == nil {
		return nil, errLobbyNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.HostID != id {
		return nil, errNotHost
	}

	if l.State != stateWaiting {
		return nil, errGameInProgress
	}

	l.Settings.merge(patch)
	r.touchLocked(l)

	return l, nil
}

// touchLocked stamps activity and rearms the inactivity timer. Caller must
// hold l.mu.
func (r *Registry) touchLocked(l *Lobby) {
	l.LastActivity = r.clk.Now()

	if l.idleTimer != nil {
		l.idleTimer.Stop()
	}

	code := l.Code
	l.idleTimer = r.clk.AfterFunc(r.timeout, func() {
		r.close(code, "Session timed out after inactivity")
	})
}

func (l *Lobby) stopGraceLocked() {
	if l.graceTimer != nil {
		l.graceTimer.Stop()
		l.graceTimer = nil
	}
}

// close removes the lobby from the registry, cancels its timers, and then
// notifies the transport. Closing an already-closed code is a no-op.
func (r *Registry) close(code, reason string) {
	r.mu.Lock()
	l, ok := r.lobbies[code]
	if ok {
		delete(r.lobbies, code)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	l.mu.Lock()
	if l.idleTimer != nil {
		l.idleTimer.Stop()
	}
	l.stopGraceLocked()
	l.mu.Unlock()

	if r.onClose != nil {
		r.onClose(l, reason)
	}
}

type lobbyStats struct {
	Code      string    `json:"code"`
	Seats     int       `json:"seats"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

type registryStats struct {
	Count    int          `json:"count"`
	Sessions []lobbyStats `json:"sessions"`
}

// stats summarizes live lobbies for the monitoring endpoint. Card
// assignments never appear here.
func (r *Registry) stats() registryStats {
	r.mu.Lock()
	lobbies := make([]*Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		lobbies = append(lobbies, l)
	}
	r.mu.Unlock()

	out := registryStats{
		Count:    len(lobbies),
		Sessions: make([]lobbyStats, 0, len(lobbies)),
	}

	for _, l := range lobbies {
		l.mu.Lock()
		out.Sessions = append(out.Sessions, lobbyStats{
			Code:      l.Code,
			Seats:     len(l.Seats),
			State:     l.State,
			CreatedAt: l.CreatedAt,
		})
		l.mu.Unlock()
	}

	return out
}
