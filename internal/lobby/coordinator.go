// Package lobby orchestrates joining or creating a session: reconciling
// local and remote roster and keyword state, admission decisions, and the
// handoff into the game context once the host starts the game.
package lobby

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/GraysonReimer/WebGuesser/internal/display"
	"github.com/GraysonReimer/WebGuesser/internal/keyword"
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

// SessionAPI is the request/response surface the lobby needs.
type SessionAPI interface {
	CreateSession(ctx context.Context) (string, error)
	FetchPlayers(ctx context.Context, lobbyID string) ([]roster.Player, error)
	FetchKeywords(ctx context.Context, lobbyID string) ([]string, error)
	SubmitIdentity(ctx context.Context, p roster.Player) (sessionapi.Identity, error)
	FetchAuthInfo(ctx context.Context, gameID string) (*roster.Player, error)
}

// User-facing messages, surfaced through the display collaborator.
const (
	msgUnexpectedError = "An unexpected error occured."
	msgConnectIssue    = "An issue occured while connecting you to our servers."
)

// Options tunes the coordinator; zero values fall back to defaults.
type Options struct {
	IconRange      int           // number of selectable icons
	CredentialWait time.Duration // bounded wait for the issued token before connecting
}

func (o *Options) applyDefaults() {
	if o.IconRange <= 0 {
		o.IconRange = 20
	}
	if o.CredentialWait <= 0 {
		o.CredentialWait = 10 * time.Second
	}
}

// Deps collects the collaborators a Coordinator is wired with.
type Deps struct {
	API      SessionAPI
	Channel  Channel
	Registry *roster.Registry
	Keywords *keyword.Set
	Creds    *store.Credentials
	Prefs    *store.Prefs
	Handoff  *store.Handoff
	Display  display.Display
	Nav      nav.Navigator
	Clock    clockwork.Clock
}

// Coordinator drives the lobby session state machine.
type Coordinator struct {
	api     SessionAPI
	ch      Channel
	reg     *roster.Registry
	words   *keyword.Set
	creds   *store.Credentials
	prefs   *store.Prefs
	handoff *store.Handoff
	disp    display.Display
	nav     nav.Navigator
	clock   clockwork.Clock
	opts    Options
	rand    *rand.Rand

	mu           sync.Mutex
	state        State
	lobbyID      string
	username     string
	playerIsNew  bool
	credentialed bool
}

// NewCoordinator wires a lobby coordinator. It does nothing until Start.
func NewCoordinator(deps Deps, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		api:         deps.API,
		ch:          deps.Channel,
		reg:         deps.Registry,
		words:       deps.Keywords,
		creds:       deps.Creds,
		prefs:       deps.Prefs,
		handoff:     deps.Handoff,
		disp:        deps.Display,
		nav:         deps.Nav,
		clock:       deps.Clock,
		opts:        opts,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		state:       Unjoined,
		playerIsNew: true,
	}
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LobbyID returns the session id, empty until one is created or joined.
func (c *Coordinator) LobbyID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lobbyID
}

// Start runs the join flow. An empty inviteID creates a new session with
// this client as host; otherwise the invite is resolved into either a
// reconnect or a public join. Admission failures and unrecoverable fetch
// errors resolve into a redirect, never an error return.
func (c *Coordinator) Start(ctx context.Context, inviteID string) {
	c.loadLocalUserInfo()
	c.registerHandlers()

	if inviteID == "" {
		c.setState(CreatingAsHost)
		if !c.initializeAsNewHost(ctx) {
			return
		}
	} else {
		c.mu.Lock()
		c.lobbyID = inviteID
		c.mu.Unlock()
		c.setState(AuthenticatingReconnect)

		// The invite param is also how players return from a finished
		// game, so standing membership is checked before the public join.
		self, err := c.api.FetchAuthInfo(ctx, inviteID)
		if err != nil {
			log.Debug().Err(err).Msg("auth info fetch failed, treating as unauthenticated")
			self = nil
		}

		if self != nil {
			c.setState(ReconnectedMember)
			if !c.initializeAsReconnected(ctx, *self) {
				return
			}
		} else {
			c.setState(ClientJoining)
			if !c.initializeAsClient(ctx) {
				return
			}
		}
	}

	c.connectWhenCredentialed(ctx)
}

// initializeAsNewHost creates a session server-side and submits the host's
// identity. Reports whether setup may continue.
func (c *Coordinator) initializeAsNewHost(ctx context.Context) bool {
	lobbyID, err := c.api.CreateSession(ctx)
	if err != nil {
		log.Error().Err(err).Msg("session create failed")
		c.redirectWithError(nav.NotFound)
		return false
	}

	c.mu.Lock()
	c.lobbyID = lobbyID
	c.mu.Unlock()
	log.Info().Str("lobby_id", lobbyID).Msg("created session as host")

	return c.submitClientInfo(ctx, true)
}

// initializeAsClient runs the public join flow: fetch keywords and roster,
// apply the admission bounds, then submit this client's identity. Reports
// whether the client was admitted.
func (c *Coordinator) initializeAsClient(ctx context.Context) bool {
	if err := c.loadKeywords(ctx); err != nil {
		log.Error().Err(err).Msg("keyword fetch failed, treating as not found")
		c.redirectWithError(nav.NotFound)
		return false
	}

	players, err := c.api.FetchPlayers(ctx, c.LobbyID())
	if err != nil {
		log.Error().Err(err).Msg("player list fetch failed, treating as not found")
		c.redirectWithError(nav.NotFound)
		return false
	}

	switch roster.Admissible(len(players)) {
	case roster.ErrSessionEmpty:
		c.redirectWithError(nav.NotFound)
		return false
	case roster.ErrSessionFull:
		c.redirectWithError(nav.LobbyFull)
		return false
	}

	c.reg.UpsertAll(players)
	return c.submitClientInfo(ctx, false)
}

// initializeAsReconnected restores a member who already holds standing
// membership: no public-join flow, no admission bounds, no fresh identity
// submission.
func (c *Coordinator) initializeAsReconnected(ctx context.Context, self roster.Player) bool {
	c.mu.Lock()
	c.playerIsNew = false
	c.credentialed = true
	c.mu.Unlock()

	c.reg.SetSelf(self)
	if err := c.loadKeywords(ctx); err != nil {
		log.Warn().Err(err).Msg("keyword fetch failed on reconnect")
	}

	players, err := c.api.FetchPlayers(ctx, c.LobbyID())
	if err != nil {
		log.Error().Err(err).Msg("player list fetch failed on reconnect")
		c.disp.ShowError(msgUnexpectedError)
		return true
	}
	c.reg.UpsertAll(players)

	log.Info().Str("lobby_id", c.LobbyID()).Int("player_id", self.PlayerID).Msg("reconnected to session")
	return true
}

// loadKeywords seeds the keyword set from the server. The public join flow
// treats a failure as session absence; the reconnect path tolerates it.
func (c *Coordinator) loadKeywords(ctx context.Context) error {
	words, err := c.api.FetchKeywords(ctx, c.LobbyID())
	if err != nil {
		return err
	}
	c.words.Replace(words)
	return nil
}

// submitClientInfo builds the local player record and registers it with
// the server, storing the issued credential on success.
func (c *Coordinator) submitClientInfo(ctx context.Context, isHost bool) bool {
	c.mu.Lock()
	self := roster.Player{
		Username: c.username,
		PlayerID: 0,
		GameID:   c.lobbyID,
		IsHost:   isHost,
		Points:   0,
		Icon:     c.prefs.Icon(),
	}
	c.mu.Unlock()
	c.reg.SetSelf(self)

	id, err := c.api.SubmitIdentity(ctx, self)
	if err != nil {
		log.Error().Err(err).Msg("identity submission failed")
		c.disp.ShowError(msgConnectIssue)
		return false
	}

	c.reg.Self().PlayerID = id.PlayerID
	if err := c.creds.SetToken(id.Token); err != nil {
		log.Error().Err(err).Msg("storing credential failed")
	}

	c.mu.Lock()
	c.credentialed = true
	c.mu.Unlock()

	log.Info().Int("player_id", id.PlayerID).Bool("is_host", isHost).Msg("identity registered")
	return true
}

// connectWhenCredentialed waits (bounded) for the credential to be issued,
// then brings up the push channel and announces this client. On wait
// timeout the connect is still attempted best-effort; an unauthenticated
// dial fails and is retried by the channel's reconnect loop.
func (c *Coordinator) connectWhenCredentialed(ctx context.Context) {
	deadline := c.clock.Now().Add(c.opts.CredentialWait)
	for !c.isCredentialed() {
		if !c.clock.Now().Before(deadline) {
			log.Warn().Dur("waited", c.opts.CredentialWait).Msg("credential wait timed out, connecting anyway")
			break
		}
		c.clock.Sleep(20 * time.Millisecond)
	}

	if err := c.ch.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("channel connect failed")
		return
	}

	// The push channel has no replay: the roster came over HTTP, so only
	// the self record needs announcing, and only for genuinely new
	// players.
	if c.isPlayerNew() {
		if err := c.ch.Invoke("AddNewPlayerData", *c.reg.Self()); err != nil {
			log.Error().Err(err).Msg("self announce failed")
		}
	}
	if err := c.ch.Invoke("AddConnectionToGame", c.LobbyID()); err != nil {
		log.Error().Err(err).Msg("connection group announce failed")
	}

	c.setState(Ready)
	log.Info().Str("lobby_id", c.LobbyID()).Msg("lobby ready")
}

func (c *Coordinator) isCredentialed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credentialed
}

func (c *Coordinator) isPlayerNew() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerIsNew
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		log.Debug().Stringer("from", prev).Stringer("to", s).Msg("lobby state change")
	}
}

// redirectWithError leaves the session and surfaces the reason through the
// navigation params.
func (c *Coordinator) redirectWithError(code nav.ErrorCode) {
	log.Info().Str("reason", code.Message()).Msg("redirecting out of session")
	c.nav.GoTo(nav.RouteLobby, map[string]string{nav.ParamError: code.Param()})
}

// ShowRedirectError surfaces the admission error carried in navigation
// params, if any. Called by the outer shell when the lobby route loads.
func (c *Coordinator) ShowRedirectError(param string) {
	code, ok := nav.ParseError(param)
	if !ok {
		return
	}
	c.disp.ShowError(code.Message())
}
