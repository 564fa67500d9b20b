// Imposterbox
//
// A social-deduction card game. Most players are dealt the same "real" card;
// one or more imposters are dealt either a generic IMPOSTER marker or a
// deliberately similar decoy card. Players then take turns describing their
// card over several discussion rounds before the final reveal.
//
// Features:
// - Sessions keyed by short join codes, created and joined over one
//   WebSocket endpoint at /imposter/ws
// - Host-controlled settings: imposter count, generic vs decoy mode,
//   similarity floor, round count, skip-discussion
// - Each seat privately receives only its own card; the full mapping is
//   disclosed only by an explicit reveal request after the game ends
// - Per-round randomized turn orders; turn ownership enforced server-side
// - Session chat, live word broadcasts, play-again and back-to-lobby resets
// - Disconnected seats keep their index; hosts are re-elected; sessions
//   close after a grace period with nobody connected, or after idling out
// - Players identified by cookie, stable across reconnects
// - In-browser QR button to share a session join link, backed by go-qrcode

package main

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type       string         `json:"type"`                 // see readPump for the full set
	PlayerName string         `json:"playerName,omitempty"` // create_lobby / join_lobby
	Code       string         `json:"code,omitempty"`       // everything after creation
	Message    string         `json:"message,omitempty"`    // send_chat
	Input      string         `json:"input,omitempty"`      // submit_discussion
	RoundIndex int            `json:"roundIndex"`           // submit_discussion
	Settings   *SettingsPatch `json:"settings,omitempty"`   // update_settings
}

// LobbyView is the sanitized per-caller snapshot of a lobby: it carries the
// caller's own card and nobody else's.
type LobbyView struct {
	Code         string        `json:"code"`
	HostID       string        `json:"hostId"`
	Players      []Seat        `json:"players"`
	GameState    string        `json:"gameState"`
	Settings     Settings      `json:"settings"`
	CurrentRound int           `json:"currentRound"`
	NumRounds    int           `json:"numRounds"`
	MyCard       *Card         `json:"myCard"`
	MyIndex      int           `json:"myIndex"`
	Chat         []ChatMessage `json:"chatMessages"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type LobbyCreatedMessage struct {
	Type  string    `json:"type"` // "lobby_created"
	Code  string    `json:"code"`
	Lobby LobbyView `json:"lobby"`
}

type LobbyJoinedMessage struct {
	Type  string    `json:"type"` // "lobby_joined"
	Lobby LobbyView `json:"lobby"`
}

type LobbyInfoMessage struct {
	Type  string    `json:"type"` // "lobby_info"
	Lobby LobbyView `json:"lobby"`
}

// JoinErrorMessage is sent only to a client whose join was refused.
type JoinErrorMessage struct {
	Type    string `json:"type"` // "join_error"
	Message string `json:"message"`
}

// ErrorMessage covers every other caller-visible failure. Errors are never
// broadcast; each goes only to the client that caused it.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type PlayersUpdatedMessage struct {
	Type    string `json:"type"` // "players_updated"
	Players []Seat `json:"players"`
}

type PlayerLeftMessage struct {
	Type     string `json:"type"` // "player_left"
	PlayerID string `json:"playerId"`
	Players  []Seat `json:"players"`
}

type SettingsUpdatedMessage struct {
	Type     string   `json:"type"` // "settings_updated"
	Settings Settings `json:"settings"`
}

// CardAssignedMessage is sent once per seat, individually, so no seat ever
// sees another seat's card.
type CardAssignedMessage struct {
	Type        string `json:"type"` // "card_assigned"
	Card        Card   `json:"card"`
	PlayerIndex int    `json:"playerIndex"`
}

type GameStartedMessage struct {
	Type               string `json:"type"` // "game_started"
	GameState          string `json:"gameState"`
	NumPlayers         int    `json:"numPlayers"`
	CurrentRound       int    `json:"currentRound"`
	CurrentPlayerIndex int    `json:"currentPlayerIndex"`
	CurrentPlayerName  string `json:"currentPlayerName"`
}

type ChatBroadcastMessage struct {
	Type string `json:"type"` // "chat_message"
	ChatMessage
}

type PlayerSubmittedMessage struct {
	Type        string `json:"type"` // "player_submitted"
	PlayerIndex int    `json:"playerIndex"`
	PlayerName  string `json:"playerName"`
	Input       string `json:"input"`
	RoundIndex  int    `json:"roundIndex"`
}

// DiscussionSubmittedMessage confirms a recorded word to the submitting
// seat only.
type DiscussionSubmittedMessage struct {
	Type       string `json:"type"` // "discussion_submitted"
	RoundIndex int    `json:"roundIndex"`
	Input      string `json:"input"`
}

type TurnChangedMessage struct {
	Type               string `json:"type"` // "turn_changed"
	CurrentPlayerIndex int    `json:"currentPlayerIndex"`
	CurrentPlayerName  string `json:"currentPlayerName"`
	RoundIndex         int    `json:"roundIndex"`
}

type RoundAdvancedMessage struct {
	Type               string `json:"type"` // "round_advanced"
	CurrentRound       int    `json:"currentRound"`
	Phase              string `json:"phase"` // "discussion" or "reveal"
	GameState          string `json:"gameState"`
	CurrentPlayerIndex int    `json:"currentPlayerIndex,omitempty"`
	CurrentPlayerName  string `json:"currentPlayerName,omitempty"`
}

type ImposterSeat struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// RevealDataMessage is the full disclosure, only available once the game
// has ended.
type RevealDataMessage struct {
	Type              string         `json:"type"` // "reveal_data"
	DiscussionSummary []SeatSummary  `json:"discussionSummary"`
	Imposters         []ImposterSeat `json:"imposters"`
	RealCard          *Card          `json:"realCard"`
	ImposterCard      *Card          `json:"imposterCard"`
	ImposterMode      string         `json:"imposterMode"`
	ChatMessages      []ChatMessage  `json:"chatMessages"`
	PlayerNames       []string       `json:"playerNames"`
	RevealOrder       []int          `json:"revealOrder"`
}

type GameRestartedMessage struct {
	Type  string    `json:"type"` // "game_restarted" or "returned_to_lobby"
	Lobby LobbyView `json:"lobby"`
}

type LobbyClosedMessage struct {
	Type   string `json:"type"` // "lobby_closed"
	Reason string `json:"reason"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	closed   bool
}

// wsServer is the synchronization layer: it maps session-mutating
// operations to broadcast and targeted deliveries. Turn-ownership checks
// live here, at the boundary, not in the round engine.
//
// Lock order is always lobby before wsServer; s.mu is never held while
// taking a lobby lock.
type wsServer struct {
	cfg      *Config
	registry *Registry
	cards    []Card

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	clients map[*Client]bool
}

func newWSServer(cfg *Config, registry *Registry, cards []Card, rng *rand.Rand) *wsServer {
	s := &wsServer{
		cfg:      cfg,
		registry: registry,
		cards:    cards,
		rng:      rng,
		clients:  make(map[*Client]bool),
	}

	registry.onClose = s.lobbyClosed

	return s
}

// lobbyClosed is the registry's close hook: a terminal session failure is
// the one error that fans out to every seat.
func (s *wsServer) lobbyClosed(l *Lobby, reason string) {
	l.mu.Lock()
	ids := l.seatIDsLocked()
	l.mu.Unlock()

	s.sendToIDs(ids, LobbyClosedMessage{
		Type:   "lobby_closed",
		Reason: reason,
	})

	logf(s.cfg, "GAMES: Closed lobby %s: %s", l.Code, reason)
}

func (l *Lobby) seatIDsLocked() map[string]bool {
	ids := make(map[string]bool, len(l.Seats))
	for _, seat := range l.Seats {
		ids[seat.ID] = true
	}

	return ids
}

// sanitizedLocked builds the caller's view of the lobby. Caller holds l.mu.
func (l *Lobby) sanitizedLocked(id string) LobbyView {
	i := l.seatIndexLocked(id)

	var myCard *Card
	if i >= 0 && i < len(l.SeatCards) {
		c := l.SeatCards[i]
		myCard = &c
	}

	return LobbyView{
		Code:         l.Code,
		HostID:       l.HostID,
		Players:      append([]Seat(nil), l.Seats...),
		GameState:    l.State,
		Settings:     l.Settings,
		CurrentRound: l.CurrentRound,
		NumRounds:    l.Settings.NumRounds,
		MyCard:       myCard,
		MyIndex:      i,
		Chat:         append([]ChatMessage(nil), l.Chat...),
		CreatedAt:    l.CreatedAt,
	}
}

// trySend queues msg for one client, dropping the client if its buffer is
// full (slow consumer). Caller must hold s.mu.
func (s *wsServer) trySendLocked(c *Client, msg any) {
	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(s.clients, c)
		c.closed = true
		close(c.send)
	}
}

func (s *wsServer) sendTo(id string, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		if c.playerID == id {
			s.trySendLocked(c, msg)
		}
	}
}

func (s *wsServer) sendToIDs(ids map[string]bool, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		if ids[c.playerID] {
			s.trySendLocked(c, msg)
		}
	}
}

func (s *wsServer) reply(c *Client, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trySendLocked(c, msg)
}

func (s *wsServer) fail(c *Client, err error) {
	s.reply(c, ErrorMessage{
		Type:    "error",
		Message: err.Error(),
	})
}

func (s *wsServer) handleCreate(c *Client, msg ClientMessage) {
	if msg.PlayerName == "" {
		return
	}

	l := s.registry.create(c.playerID, msg.PlayerName)

	l.mu.Lock()
	view := l.sanitizedLocked(c.playerID)
	l.mu.Unlock()

	s.reply(c, LobbyCreatedMessage{
		Type:  "lobby_created",
		Code:  l.Code,
		Lobby: view,
	})

	logf(s.cfg, "GAMES: Lobby %s created by %q", l.Code, msg.PlayerName)
}

func (s *wsServer) handleJoin(c *Client, msg ClientMessage) {
	if msg.PlayerName == "" {
		return
	}

	l, err := s.registry.join(msg.Code, c.playerID, msg.PlayerName)
	if err != nil {
		s.reply(c, JoinErrorMessage{
			Type:    "join_error",
			Message: err.Error(),
		})
		return
	}

	l.mu.Lock()
	view := l.sanitizedLocked(c.playerID)
	players := append([]Seat(nil), l.Seats...)
	ids := l.seatIDsLocked()
	l.mu.Unlock()

	s.reply(c, LobbyJoinedMessage{
		Type:  "lobby_joined",
		Lobby: view,
	})

	s.sendToIDs(ids, PlayersUpdatedMessage{
		Type:    "players_updated",
		Players: players,
	})

	logf(s.cfg, "GAMES: %q joined lobby %s", msg.PlayerName, msg.Code)
}

func (s *wsServer) handleSettings(c *Client, msg ClientMessage) {
	if msg.Settings == nil {
		return
	}

	l, err := s.registry.updateSettings(msg.Code, c.playerID, *msg.Settings)
	if err != nil {
		s.fail(c, err)
		return
	}

	l.mu.Lock()
	settings := l.Settings
	ids := l.seatIDsLocked()
	l.mu.Unlock()

	s.sendToIDs(ids, SettingsUpdatedMessage{
		Type:     "settings_updated",
		Settings: settings,
	})
}

func (s *wsServer) handleStart(c *Client, msg ClientMessage) {
	l := s.registry.get(msg.Code)
	if l == nil {
		s.fail(c, errLobbyNotFound)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.HostID != c.playerID {
		s.fail(c, errNotHost)
		return
	}

	if l.State != stateWaiting {
		s.fail(c, errGameInProgress)
		return
	}

	s.rngMu.Lock()
	err := l.start(s.cards, s.rng)
	s.rngMu.Unlock()

	if err != nil {
		s.fail(c, err)
		return
	}

	s.registry.touchLocked(l)

	// Each seat gets its own card and nothing else.
	for i, seat := range l.Seats {
		s.sendTo(seat.ID, CardAssignedMessage{
			Type:        "card_assigned",
			Card:        l.SeatCards[i],
			PlayerIndex: i,
		})
	}

	first := l.currentTurnSeat()
	s.sendToIDs(l.seatIDsLocked(), GameStartedMessage{
		Type:               "game_started",
		GameState:          l.State,
		NumPlayers:         len(l.Seats),
		CurrentRound:       l.CurrentRound,
		CurrentPlayerIndex: first,
		CurrentPlayerName:  l.Seats[first].Name,
	})

	logf(s.cfg, "GAMES: Started lobby %s with %d players", l.Code, len(l.Seats))

	// With discussion skipped the game goes straight to the reveal: finish
	// every round so reveal data becomes requestable.
	if l.Settings.SkipDiscussion {
		for l.State == statePlaying {
			l.advanceRound()
		}

		s.sendToIDs(l.seatIDsLocked(), RoundAdvancedMessage{
			Type:         "round_advanced",
			CurrentRound: l.CurrentRound,
			Phase:        phaseReveal,
			GameState:    l.State,
		})
	}
}

func (s *wsServer) handleChat(c *Client, msg ClientMessage) {
	l := s.registry.get(msg.Code)
	if l == nil {
		s.fail(c, errLobbyNotFound)
		return
	}

	l.mu.Lock()
	chat := l.addChat(c.playerID, msg.Message, s.registry.clk.Now())
	var ids map[string]bool
	if chat != nil {
		ids = l.seatIDsLocked()
		s.registry.touchLocked(l)
	}
	l.mu.Unlock()

	if chat == nil {
		s.fail(c, errNotSeated)
		return
	}

	s.sendToIDs(ids, ChatBroadcastMessage{
		Type:        "chat_message",
		ChatMessage: *chat,
	})
}

func (s *wsServer) handleSubmit(c *Client, msg ClientMessage) {
	l := s.registry.get(msg.Code)
	if l == nil {
		s.fail(c, errLobbyNotFound)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seat := l.seatIndexLocked(c.playerID)
	if seat < 0 {
		s.fail(c, errNotSeated)
		return
	}

	if l.State != statePlaying || msg.RoundIndex != l.CurrentRound {
		s.fail(c, errNoActiveRound)
		return
	}

	// The turn-ownership check lives here, at the boundary. The engine's
	// submitTurn trusts its caller on purpose.
	if !l.isTurn(seat) {
		s.fail(c, errNotYourTurn)
		return
	}

	l.submitTurn(seat, msg.RoundIndex, msg.Input, s.registry.clk.Now())
	s.registry.touchLocked(l)

	ids := l.seatIDsLocked()

	s.sendToIDs(ids, PlayerSubmittedMessage{
		Type:        "player_submitted",
		PlayerIndex: seat,
		PlayerName:  l.Seats[seat].Name,
		Input:       msg.Input,
		RoundIndex:  msg.RoundIndex,
	})

	s.reply(c, DiscussionSubmittedMessage{
		Type:       "discussion_submitted",
		RoundIndex: msg.RoundIndex,
		Input:      msg.Input,
	})

	next, roundComplete := l.advanceTurn()

	if !roundComplete {
		s.sendToIDs(ids, TurnChangedMessage{
			Type:               "turn_changed",
			CurrentPlayerIndex: next,
			CurrentPlayerName:  l.Seats[next].Name,
			RoundIndex:         l.CurrentRound,
		})
		return
	}

	phase := l.advanceRound()

	if phase == phaseDiscussion {
		first := l.currentTurnSeat()
		s.sendToIDs(ids, RoundAdvancedMessage{
			Type:               "round_advanced",
			CurrentRound:       l.CurrentRound,
			Phase:              phase,
			GameState:          l.State,
			CurrentPlayerIndex: first,
			CurrentPlayerName:  l.Seats[first].Name,
		})
	} else {
		s.sendToIDs(ids, RoundAdvancedMessage{
			Type:         "round_advanced",
			CurrentRound: l.CurrentRound,
			Phase:        phase,
			GameState:    l.State,
		})
	}
}

func (s *wsServer) handleReveal(c *Client, msg ClientMessage) {
	l := s.registry.get(msg.Code)
	if l == nil {
		s.fail(c, errLobbyNotFound)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State != stateEnded {
		s.fail(c, errGameNotEnded)
		return
	}

	imposters := make([]ImposterSeat, 0, len(l.Imposters))
	for _, i := range l.Imposters {
		imposters = append(imposters, ImposterSeat{
			Index: i,
			Name:  l.Seats[i].Name,
		})
	}

	names := make([]string, 0, len(l.Seats))
	for _, seat := range l.Seats {
		names = append(names, seat.Name)
	}

	s.reply(c, RevealDataMessage{
		Type:              "reveal_data",
		DiscussionSummary: l.discussionSummary(),
		Imposters:         imposters,
		RealCard:          l.RealCard,
		ImposterCard:      l.DecoyCard,
		ImposterMode:      l.Settings.ImposterMode,
		ChatMessages:      append([]ChatMessage(nil), l.Chat...),
		PlayerNames:       names,
		RevealOrder:       append([]int(nil), l.RevealOrder...),
	})
}

// handleReset serves both play_again and returned-to-lobby flows; only the
// outbound message type differs.
func (s *wsServer) handleReset(c *Client, msg ClientMessage, msgType string) {
	l := s.registry.get(msg.Code)
	if l == nil {
		s.fail(c, errLobbyNotFound)
		return
	}

	l.mu.Lock()

	if l.seatIndexLocked(c.playerID) < 0 {
		l.mu.Unlock()
		s.fail(c, errNotSeated)
		return
	}

	l.reset(s.registry.clk.Now())
	s.registry.touchLocked(l)
	ids := l.seatIDsLocked()

	// Views are per-caller, so each seat gets its own.
	views := make(map[string]LobbyView, len(ids))
	for id := range ids {
		views[id] = l.sanitizedLocked(id)
	}
	l.mu.Unlock()

	for id, view := range views {
		s.sendTo(id, GameRestartedMessage{
			Type:  msgType,
			Lobby: view,
		})
	}

	logf(s.cfg, "GAMES: Lobby %s reset to waiting room", l.Code)
}

func (s *wsServer) handleEndGame(c *Client, msg ClientMessage) {
	l := s.registry.get(msg.Code)
	if l == nil {
		return
	}

	l.mu.Lock()
	isHost := l.HostID == c.playerID
	l.mu.Unlock()

	if !isHost {
		s.fail(c, errNotHost)
		return
	}

	s.registry.close(msg.Code, "Game ended by the host")
}

func (s *wsServer) handleLobbyInfo(c *Client, msg ClientMessage) {
	l := s.registry.get(msg.Code)
	if l == nil {
		s.fail(c, errLobbyNotFound)
		return
	}

	l.mu.Lock()
	view := l.sanitizedLocked(c.playerID)
	l.mu.Unlock()

	s.reply(c, LobbyInfoMessage{
		Type:  "lobby_info",
		Lobby: view,
	})
}

// disconnected runs after a client's read loop ends. The seat is only
// marked as gone once no other connection shares its identity (a second
// browser tab keeps the seat alive).
func (s *wsServer) disconnected(c *Client) {
	s.mu.Lock()
	if s.clients[c] {
		delete(s.clients, c)
		c.closed = true
		close(c.send)
	}

	stillConnected := false
	for other := range s.clients {
		if other.playerID == c.playerID {
			stillConnected = true
			break
		}
	}
	s.mu.Unlock()

	if stillConnected {
		return
	}

	l := s.registry.leave(c.playerID)
	if l == nil {
		return
	}

	l.mu.Lock()
	players := append([]Seat(nil), l.Seats...)
	ids := l.seatIDsLocked()
	l.mu.Unlock()

	s.sendToIDs(ids, PlayerLeftMessage{
		Type:     "player_left",
		PlayerID: c.playerID,
		Players:  players,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "imposterbox_id"

// playerIdentity returns the caller's stable identity cookie, minting one
// if absent. A freshly minted cookie is returned as handshake response
// headers: the upgrader writes the response itself and ignores anything
// set on the ResponseWriter.
func playerIdentity(r *http.Request) (string, http.Header, error) {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value, nil, nil
	}

	buf := make([]byte, 16)
	if _, err := crand.Read(buf); err != nil {
		return "", nil, err
	}

	cookie := &http.Cookie{
		Name:     playerCookieName,
		Value:    hex.EncodeToString(buf),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return cookie.Value, http.Header{"Set-Cookie": {cookie.String()}}, nil
}

func (s *wsServer) handleWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID, respHeader, err := playerIdentity(r)
		if err != nil {
			log.Println("rand.Read error:", err)
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, respHeader)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		s.mu.Lock()
		s.clients[client] = true
		s.mu.Unlock()

		go client.writePump()
		s.readPump(client)
	}
}

func (s *wsServer) readPump(c *Client) {
	defer func() {
		s.disconnected(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create_lobby":
			s.handleCreate(c, msg)
		case "join_lobby":
			s.handleJoin(c, msg)
		case "update_settings":
			s.handleSettings(c, msg)
		case "start_game":
			s.handleStart(c, msg)
		case "send_chat":
			s.handleChat(c, msg)
		case "submit_discussion":
			s.handleSubmit(c, msg)
		case "get_reveal":
			s.handleReveal(c, msg)
		case "play_again":
			s.handleReset(c, msg, "game_restarted")
		case "back_to_lobby":
			s.handleReset(c, msg, "returned_to_lobby")
		case "end_game":
			s.handleEndGame(c, msg)
		case "get_lobby_info":
			s.handleLobbyInfo(c, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// Stats handler: active session summaries for monitoring. Never includes
// card assignments.
func (s *wsServer) handleStats(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(s.cfg, w)

		if err := json.NewEncoder(w).Encode(s.registry.stats()); err != nil {
			errs <- err
		}
	}
}

// Catalog handler: the sorted card name list, so clients can render the
// deck and offer guess autocompletion. Attributes stay server-side.
func (s *wsServer) handleCards(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(s.cfg, w)

		names := cardNames(s.cards)

		if err := json.NewEncoder(w).Encode(map[string]any{
			"count": len(names),
			"names": names,
		}); err != nil {
			errs <- err
		}
	}
}

// QR handler: generates a PNG QR code linking to a session join URL.
func qrHandler(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if code == "" {
			http.Error(w, "missing session code", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + path + "?code=" + code

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerImposterGame sets up routes so that:
//   - $path/ws         → WebSocket session endpoint
//   - $path/stats      → active session summaries (JSON)
//   - $path/cards      → sorted card name list (JSON)
//   - $path/qr/:code   → PNG QR code linking to a session join URL
//
// A catalog load failure is not fatal to the process: the routes still
// come up, and every game start fails with a load error instead.
func registerImposterGame(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *wsServer {
	cards, err := loadCards()
	if err != nil {
		log.Printf("ERROR: card catalog unavailable, games cannot start: %v", err)
	}

	registry := newRegistry(wallClock{}, newRand(), cfg.sessionTimeout, cfg.gracePeriod, cfg.maxSeats)
	srv := newWSServer(cfg, registry, cards, newRand())

	mux.GET(cfg.prefix+path+"/ws", srv.handleWS())
	mux.GET(cfg.prefix+path+"/stats", srv.handleStats(errs))
	mux.GET(cfg.prefix+path+"/cards", srv.handleCards(errs))
	mux.GET(cfg.prefix+path+"/qr/:code", qrHandler(cfg, path))

	return srv
}
