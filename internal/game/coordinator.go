// Package game drives the in-game round lifecycle: countdown, active
// round, answer collection, results, and on to the next round or game end.
// The host additionally owns the liveness timers (the round-end watchdog
// and the countdown expiry) and the image-alteration polling loop.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/GraysonReimer/WebGuesser/internal/display"
	"github.com/GraysonReimer/WebGuesser/internal/nav"
	"github.com/GraysonReimer/WebGuesser/internal/realtime"
	"github.com/GraysonReimer/WebGuesser/internal/roster"
	"github.com/GraysonReimer/WebGuesser/internal/sessionapi"
	"github.com/GraysonReimer/WebGuesser/internal/store"
)

// Channel is the push/invoke connection the coordinator rides on.
type Channel interface {
	On(event string, h realtime.Handler)
	Invoke(command string, args ...any) error
	Connect(ctx context.Context) error
	Post(fn func())
	State() realtime.State
	Close() error
}

// GameAPI is the request/response surface the round lifecycle needs.
type GameAPI interface {
	JoinGame(ctx context.Context, gameID string) error
	FetchRoundInfo(ctx context.Context, gameID string) (sessionapi.GameInfo, error)
	SubmitAnswer(ctx context.Context, optionID int, word string) error
	LoadRoundImage(ctx context.Context, gameID string) error
	SetImageUnaltered(ctx context.Context) error
	NextImageAlteration(ctx context.Context) error
}

// fetchImageWaitMsg is the server-wait notice the host announces while the
// round image loads; cleared again when the countdown begins.
const fetchImageWaitMsg = "Fetching image for next round. This may take some time."

// Options tunes the round lifecycle; zero values fall back to defaults.
type Options struct {
	CountdownSeconds   int
	RoundEndSeconds    int
	AlterationInterval time.Duration
	AlteredImageURL    string
	UnalteredImageURL  string
}

func (o *Options) applyDefaults() {
	if o.CountdownSeconds <= 0 {
		o.CountdownSeconds = 3
	}
	if o.RoundEndSeconds <= 0 {
		o.RoundEndSeconds = 10
	}
	if o.AlterationInterval <= 0 {
		o.AlterationInterval = time.Second
	}
}

// Deps collects the collaborators a Coordinator is wired with.
type Deps struct {
	API      GameAPI
	Channel  Channel
	Registry *roster.Registry
	Handoff  *store.Handoff
	Display  display.Display
	Nav      nav.Navigator
	Clock    clockwork.Clock
}

// Coordinator drives the round lifecycle state machine.
type Coordinator struct {
	api     GameAPI
	ch      Channel
	reg     *roster.Registry
	handoff *store.Handoff
	disp    display.Display
	nav     nav.Navigator
	clock   clockwork.Clock
	opts    Options

	mu               sync.Mutex
	phase            Phase
	gameID           string
	info             sessionapi.GameInfo
	options          []RoundOption
	submittedAnswer  int
	canSubmitAnswer  bool
	roundStartTime   time.Time
	results          *RoundResults
	canStartNewRound bool
	serverDelays     []string

	// roundGen identifies the round the armed timers belong to; a stale
	// watchdog firing into a later round is rejected by generation check.
	roundGen        int
	cancelWatchdog  func()
	cancelCountdown func()
	stopAlterLoop   func()
}

// NewCoordinator wires a game coordinator. It does nothing until Join.
func NewCoordinator(deps Deps, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		api:              deps.API,
		ch:               deps.Channel,
		reg:              deps.Registry,
		handoff:          deps.Handoff,
		disp:             deps.Display,
		nav:              deps.Nav,
		clock:            deps.Clock,
		opts:             opts,
		phase:            Idle,
		submittedAnswer:  NoAnswer,
		canStartNewRound: true,
	}
}

// Join enters the game context: authorize against the server, restore the
// roster from the lobby handoff, bring up the push channel, and, when this
// client is host, bootstrap the first round. Every failure here exits
// back to the lobby; a missing handoff snapshot is the one fatal local
// error and gets the same exit.
func (c *Coordinator) Join(ctx context.Context, gameID string) {
	if gameID == "" {
		c.exitToLobby(nil)
		return
	}

	c.mu.Lock()
	c.gameID = gameID
	c.mu.Unlock()

	if err := c.api.JoinGame(ctx, gameID); err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("game join refused")
		c.exitToLobby(nil)
		return
	}

	if !c.restoreHandoff() {
		return
	}

	c.registerHandlers(ctx)

	if err := c.ch.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("game channel connect failed")
		c.exitToLobby(nil)
		return
	}

	log.Info().Str("game_id", gameID).Int("players", c.reg.Len()).Msg("joined game")

	if c.isHost() {
		c.StartNewRound(ctx)
	}
}

// restoreHandoff rebuilds the roster from the lobby's snapshot and locates
// this client's identity within it.
func (c *Coordinator) restoreHandoff() bool {
	snap, err := c.handoff.Get()
	if err != nil {
		log.Error().Err(err).Msg("game context started without handoff snapshot")
		c.exitToLobby(nil)
		return false
	}

	var self *roster.Player
	for i := range snap.Players {
		if snap.Players[i].PlayerID == snap.ClientID {
			self = &snap.Players[i]
			break
		}
	}
	if self == nil {
		log.Error().Int("client_id", snap.ClientID).Msg("handoff snapshot missing own player")
		c.exitToLobby(nil)
		return false
	}

	c.reg.SetSelf(*self)
	c.reg.UpsertAll(snap.Players)
	return true
}

// StartNewRound is the host's round bootstrap: fetch round progress,
// announce the image wait, have the server load the round image, then kick
// off the countdown. Guarded by a latch so a double tap cannot start two
// rounds.
func (c *Coordinator) StartNewRound(ctx context.Context) {
	c.mu.Lock()
	if !c.canStartNewRound {
		c.mu.Unlock()
		return
	}
	c.canStartNewRound = false
	gameID := c.gameID
	c.mu.Unlock()

	info, err := c.api.FetchRoundInfo(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Msg("round info fetch failed")
	} else {
		c.mu.Lock()
		c.info = info
		c.mu.Unlock()
	}

	if err := c.ch.Invoke("InformClientsServerWait", fetchImageWaitMsg); err != nil {
		log.Error().Err(err).Msg("server wait announce failed")
	}

	if err := c.api.LoadRoundImage(ctx, gameID); err != nil {
		log.Error().Err(err).Msg("round image load failed")
		c.exitToLobby(nil)
		return
	}

	if err := c.ch.Invoke("StartRoundCountDown", c.opts.CountdownSeconds); err != nil {
		log.Error().Err(err).Msg("countdown start failed")
	}
}

// SubmitAnswer posts the chosen option. Submission is write-once per
// round: only a server-confirmed success locks the answer, and a second
// call once locked is a no-op. A failed confirmation leaves submission
// open so the user can simply pick again.
func (c *Coordinator) SubmitAnswer(ctx context.Context, option RoundOption) {
	c.mu.Lock()
	if !c.canSubmitAnswer {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.api.SubmitAnswer(ctx, option.ID, option.Word); err != nil {
		log.Error().Err(err).Int("option_id", option.ID).Msg("answer submission failed")
		return
	}

	c.mu.Lock()
	c.submittedAnswer = option.ID
	c.canSubmitAnswer = false
	if c.phase == Active {
		c.phase = Collecting
	}
	c.mu.Unlock()

	if err := c.ch.Invoke("PlayerAnswerSubmitted"); err != nil {
		log.Error().Err(err).Msg("answer announce failed")
	}
	log.Info().Int("option_id", option.ID).Msg("answer locked in")
}

// Phase returns the coordinator's current round phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// CanSubmitAnswer reports whether a submission would currently be posted.
func (c *Coordinator) CanSubmitAnswer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitAnswer
}

// SubmittedAnswer returns the locked answer id, NoAnswer when none.
func (c *Coordinator) SubmittedAnswer() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submittedAnswer
}

// RoundOptions returns the current round's option set.
func (c *Coordinator) RoundOptions() []RoundOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RoundOption, len(c.options))
	copy(out, c.options)
	return out
}

// Results returns the latest round results, nil between rounds.
func (c *Coordinator) Results() *RoundResults {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		return nil
	}
	cp := *c.results
	return &cp
}

// ServerDelays returns the currently announced server wait messages.
func (c *Coordinator) ServerDelays() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.serverDelays))
	copy(out, c.serverDelays)
	return out
}

// RoundStartedAt returns when the current round went active.
func (c *Coordinator) RoundStartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundStartTime
}

// RoundInfo returns the last fetched round progress.
func (c *Coordinator) RoundInfo() sessionapi.GameInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *Coordinator) isHost() bool {
	self := c.reg.Self()
	return self != nil && self.IsHost
}

func (c *Coordinator) gameIDLocked() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

// alteredImageURL returns the progressively altered round image location
// with a cache-busting timestamp.
func (c *Coordinator) alteredImageURL() string {
	return fmt.Sprintf("%s/%s.jpg?%d", c.opts.AlteredImageURL, c.gameIDLocked(), c.clock.Now().UnixMilli())
}

func (c *Coordinator) unalteredImageURL() string {
	return fmt.Sprintf("%s/%s.jpg?%d", c.opts.UnalteredImageURL, c.gameIDLocked(), c.clock.Now().UnixMilli())
}

// exitToLobby leaves the game context, optionally carrying an error code.
func (c *Coordinator) exitToLobby(code *nav.ErrorCode) {
	c.teardownTimers()
	c.ch.Close()

	params := map[string]string{}
	if code != nil {
		params[nav.ParamError] = code.Param()
	}
	c.nav.GoTo(nav.RouteLobby, params)
}

// returnToLobbyForRematch hands control back to the lobby carrying the
// session id, so the group can re-gather.
func (c *Coordinator) returnToLobbyForRematch() {
	c.teardownTimers()
	c.ch.Close()
	c.nav.GoTo(nav.RouteLobby, map[string]string{nav.ParamInvite: c.gameIDLocked()})
}

// teardownTimers cancels whichever host timers are pending. Safe when none
// are.
func (c *Coordinator) teardownTimers() {
	c.mu.Lock()
	watchdog, countdown, alter := c.cancelWatchdog, c.cancelCountdown, c.stopAlterLoop
	c.cancelWatchdog, c.cancelCountdown, c.stopAlterLoop = nil, nil, nil
	c.mu.Unlock()

	if watchdog != nil {
		watchdog()
	}
	if countdown != nil {
		countdown()
	}
	if alter != nil {
		alter()
	}
}
