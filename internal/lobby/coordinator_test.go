package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GraysonReimer/WebGuesser/internal/keyword"
	"github.com/GraysonReimer/WebGuesser/internal/nav"
	"github.com/GraysonReimer/WebGuesser/internal/realtime"
	"github.com/GraysonReimer/WebGuesser/internal/roster"
	"github.com/GraysonReimer/WebGuesser/internal/sessionapi"
	"github.com/GraysonReimer/WebGuesser/internal/store"
)

type invocation struct {
	command string
	args    []any
}

// fakeChannel runs handlers and posted work inline, which matches the real
// channel's single-dispatch-goroutine guarantee from a test's perspective.
type fakeChannel struct {
	mu         sync.Mutex
	handlers   map[string]realtime.Handler
	invokes    []invocation
	connected  bool
	closed     bool
	connectErr error
	invokeErr  error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]realtime.Handler)}
}

func (f *fakeChannel) On(event string, h realtime.Handler) {
	f.mu.Lock()
	f.handlers[event] = h
	f.mu.Unlock()
}

func (f *fakeChannel) Invoke(command string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invokeErr != nil {
		return f.invokeErr
	}
	f.invokes = append(f.invokes, invocation{command: command, args: args})
	return nil
}

func (f *fakeChannel) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Post(fn func()) { fn() }

func (f *fakeChannel) State() realtime.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected && !f.closed {
		return realtime.Connected
	}
	return realtime.Disconnected
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// push delivers a server event to the registered handler, as the real
// channel's read pump would.
func (f *fakeChannel) push(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	f.mu.Lock()
	h, ok := f.handlers[event]
	f.mu.Unlock()
	require.True(t, ok, "no handler for %s", event)
	h(data)
}

func (f *fakeChannel) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.invokes))
	for i, inv := range f.invokes {
		out[i] = inv.command
	}
	return out
}

func (f *fakeChannel) countCommand(command string) int {
	n := 0
	for _, cmd := range f.commands() {
		if cmd == command {
			n++
		}
	}
	return n
}

type fakeAPI struct {
	createID    string
	createErr   error
	players     []roster.Player
	playersErr  error
	keywords    []string
	keywordsErr error
	identity    sessionapi.Identity
	identityErr error
	authInfo    *roster.Player
	authErr     error

	mu        sync.Mutex
	submitted []roster.Player
}

func (f *fakeAPI) CreateSession(context.Context) (string, error) {
	return f.createID, f.createErr
}

func (f *fakeAPI) FetchPlayers(context.Context, string) ([]roster.Player, error) {
	return f.players, f.playersErr
}

func (f *fakeAPI) FetchKeywords(context.Context, string) ([]string, error) {
	return f.keywords, f.keywordsErr
}

func (f *fakeAPI) SubmitIdentity(_ context.Context, p roster.Player) (sessionapi.Identity, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, p)
	f.mu.Unlock()
	return f.identity, f.identityErr
}

func (f *fakeAPI) FetchAuthInfo(context.Context, string) (*roster.Player, error) {
	return f.authInfo, f.authErr
}

type navCall struct {
	route  string
	params map[string]string
}

type fakeNav struct {
	mu    sync.Mutex
	calls []navCall
}

func (f *fakeNav) GoTo(route string, params map[string]string) {
	f.mu.Lock()
	f.calls = append(f.calls, navCall{route: route, params: params})
	f.mu.Unlock()
}

type fakeDisplay struct {
	mu     sync.Mutex
	errors []string
}

func (f *fakeDisplay) CountdownStarted(int)      {}
func (f *fakeDisplay) RoundBegan()               {}
func (f *fakeDisplay) AnswerOutcome(bool)        {}
func (f *fakeDisplay) ServerDelayAdded(string)   {}
func (f *fakeDisplay) ServerDelayRemoved(string) {}
func (f *fakeDisplay) ImageSourceChanged(string) {}

func (f *fakeDisplay) ShowError(message string) {
	f.mu.Lock()
	f.errors = append(f.errors, message)
	f.mu.Unlock()
}

type fixture struct {
	api     *fakeAPI
	ch      *fakeChannel
	reg     *roster.Registry
	words   *keyword.Set
	creds   *store.Credentials
	prefs   *store.Prefs
	handoff *store.Handoff
	disp    *fakeDisplay
	nav     *fakeNav
	coord   *Coordinator
}

func newFixture(api *fakeAPI) *fixture {
	f := &fixture{
		api:     api,
		ch:      newFakeChannel(),
		reg:     roster.NewRegistry(),
		words:   keyword.NewSet(),
		creds:   store.NewCredentials(store.NewMemory()),
		prefs:   store.NewPrefs(store.NewMemory()),
		handoff: store.NewHandoff(),
		disp:    &fakeDisplay{},
		nav:     &fakeNav{},
	}
	f.coord = NewCoordinator(Deps{
		API:      api,
		Channel:  f.ch,
		Registry: f.reg,
		Keywords: f.words,
		Creds:    f.creds,
		Prefs:    f.prefs,
		Handoff:  f.handoff,
		Display:  f.disp,
		Nav:      f.nav,
		Clock:    clockwork.NewRealClock(),
	}, Options{})
	return f
}

func TestHostCreatesSessionAndAnnouncesSelf(t *testing.T) {
	f := newFixture(&fakeAPI{
		createID: "abc123",
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-1"},
	})

	f.coord.Start(context.Background(), "")

	assert.Equal(t, Ready, f.coord.State())
	assert.Equal(t, "abc123", f.coord.LobbyID())
	assert.True(t, f.ch.connected)

	tok, ok := f.creds.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-1", tok)

	self := f.reg.Self()
	require.NotNil(t, self)
	assert.Equal(t, 42, self.PlayerID)
	assert.True(t, self.IsHost)
	assert.Equal(t, "abc123", self.GameID)

	assert.Equal(t, []string{"AddNewPlayerData", "AddConnectionToGame"}, f.ch.commands())
}

func TestHostKeywordFlowGatesGameStart(t *testing.T) {
	f := newFixture(&fakeAPI{
		createID: "abc123",
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-1"},
	})
	f.coord.Start(context.Background(), "")

	assert.False(t, f.coord.CanStartGame(false))

	for _, w := range []string{"cats", "dogs", "birds"} {
		require.True(t, f.coord.AddKeyword(w))
	}
	assert.False(t, f.coord.CanStartGame(false), "three keywords are one short")

	require.True(t, f.coord.AddKeyword("fish"))
	assert.True(t, f.coord.CanStartGame(false))
	assert.Equal(t, 4, f.ch.countCommand("AddKeyWord"))

	f.coord.RequestGameStart()
	assert.Equal(t, 1, f.ch.countCommand("StartGame"))
}

func TestStartRefusalSurfacesReason(t *testing.T) {
	f := newFixture(&fakeAPI{
		createID: "abc123",
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-1"},
	})
	f.coord.Start(context.Background(), "")

	f.coord.RequestGameStart()

	assert.Zero(t, f.ch.countCommand("StartGame"))
	require.NotEmpty(t, f.disp.errors)
	assert.Equal(t, "You must enter at least four keywords.", f.disp.errors[0])
}

func TestJoinEmptySessionRedirectsNotFound(t *testing.T) {
	f := newFixture(&fakeAPI{players: nil})

	f.coord.Start(context.Background(), "ghost")

	require.Len(t, f.nav.calls, 1)
	assert.Equal(t, nav.RouteLobby, f.nav.calls[0].route)
	assert.Equal(t, nav.NotFound.Param(), f.nav.calls[0].params[nav.ParamError])

	assert.Zero(t, f.reg.Len(), "an inadmissible roster is never merged")
	assert.Empty(t, f.api.submitted)
	assert.False(t, f.ch.connected)
	assert.NotEqual(t, Ready, f.coord.State())
}

func TestJoinFullSessionRedirectsLobbyFull(t *testing.T) {
	players := make([]roster.Player, 8)
	for i := range players {
		players[i] = roster.Player{PlayerID: i + 1, GameID: "abc123"}
	}
	f := newFixture(&fakeAPI{players: players})

	f.coord.Start(context.Background(), "abc123")

	require.Len(t, f.nav.calls, 1)
	assert.Equal(t, nav.LobbyFull.Param(), f.nav.calls[0].params[nav.ParamError])
	assert.Zero(t, f.reg.Len())
	assert.Empty(t, f.api.submitted)
}

func TestPlayerFetchFailureRedirectsNotFound(t *testing.T) {
	f := newFixture(&fakeAPI{playersErr: errors.New("boom")})

	f.coord.Start(context.Background(), "abc123")

	require.Len(t, f.nav.calls, 1)
	assert.Equal(t, nav.NotFound.Param(), f.nav.calls[0].params[nav.ParamError])
}

func TestKeywordFetchFailureRedirectsNotFound(t *testing.T) {
	f := newFixture(&fakeAPI{
		players:     []roster.Player{{PlayerID: 1, GameID: "abc123", IsHost: true}},
		keywordsErr: errors.New("boom"),
	})

	f.coord.Start(context.Background(), "abc123")

	require.Len(t, f.nav.calls, 1)
	assert.Equal(t, nav.NotFound.Param(), f.nav.calls[0].params[nav.ParamError])
	assert.Zero(t, f.reg.Len())
}

func TestClientJoinMergesRosterAndSubmitsIdentity(t *testing.T) {
	f := newFixture(&fakeAPI{
		players: []roster.Player{
			{Username: "host", PlayerID: 1, GameID: "abc123", IsHost: true},
			{Username: "other", PlayerID: 2, GameID: "abc123"},
		},
		keywords: []string{"cats", "dogs"},
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-2"},
	})

	f.coord.Start(context.Background(), "abc123")

	assert.Equal(t, Ready, f.coord.State())
	assert.Equal(t, 2, f.reg.Len(), "self joins the roster via the join push, not locally")
	assert.Equal(t, []string{"cats", "dogs"}, f.words.Words())
	assert.Len(t, f.api.submitted, 1)
	assert.False(t, f.api.submitted[0].IsHost)
	assert.Equal(t, []string{"AddNewPlayerData", "AddConnectionToGame"}, f.ch.commands())

	// The server echoes the join back; the roster entry and the self
	// record must resolve to the same player.
	f.ch.push(t, "playerjoined", *f.reg.Self())
	assert.Equal(t, 3, f.reg.Len())

	f.ch.push(t, "usernamechanged", usernameChange{PlayerID: 42, NewUsername: "renamed"})
	assert.Equal(t, "renamed", f.reg.Self().Username)
}

func TestReconnectSkipsJoinFlow(t *testing.T) {
	players := make([]roster.Player, 8)
	for i := range players {
		players[i] = roster.Player{Username: "p", PlayerID: i + 1, GameID: "abc123"}
	}
	players[6].Username = "me"
	f := newFixture(&fakeAPI{
		authInfo: &roster.Player{Username: "me", PlayerID: 7, GameID: "abc123"},
		players:  players,
	})

	f.coord.Start(context.Background(), "abc123")

	assert.Equal(t, Ready, f.coord.State())
	assert.Empty(t, f.api.submitted, "standing members never resubmit identity")
	assert.Zero(t, f.ch.countCommand("AddNewPlayerData"))
	assert.Equal(t, 1, f.ch.countCommand("AddConnectionToGame"))
	assert.Equal(t, 8, f.reg.Len(), "admission bounds do not apply to reconnects")

	p, ok := f.reg.FindByID(7)
	require.True(t, ok)
	assert.Equal(t, "me", p.Username)
}

func TestGameStartingHandsOffAndNavigates(t *testing.T) {
	f := newFixture(&fakeAPI{
		createID: "abc123",
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-1"},
	})
	f.coord.Start(context.Background(), "")
	f.ch.push(t, "playerjoined", *f.reg.Self())

	f.ch.push(t, "gamestarting", nil)

	assert.Equal(t, GameStarting, f.coord.State())
	assert.True(t, f.ch.closed)

	snap, err := f.handoff.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, snap.ClientID)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, 42, snap.Players[0].PlayerID)

	require.Len(t, f.nav.calls, 1)
	assert.Equal(t, nav.RouteGame, f.nav.calls[0].route)
	assert.Equal(t, "abc123", f.nav.calls[0].params[nav.ParamGameID])
}

func TestRemoteKeywordIsNotRebroadcast(t *testing.T) {
	f := newFixture(&fakeAPI{
		createID: "abc123",
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-1"},
	})
	f.coord.Start(context.Background(), "")
	before := f.ch.countCommand("AddKeyWord")

	f.ch.push(t, "addkeyword", "cats")

	assert.Contains(t, f.words.Words(), "cats")
	assert.Equal(t, before, f.ch.countCommand("AddKeyWord"), "remote words must not echo back")
}

func TestRosterPushEvents(t *testing.T) {
	f := newFixture(&fakeAPI{
		players:  []roster.Player{{Username: "host", PlayerID: 1, GameID: "abc123", IsHost: true}},
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-2"},
	})
	f.coord.Start(context.Background(), "abc123")

	f.ch.push(t, "iconchanged", iconChange{PlayerID: 1, NewIcon: 9})
	p, _ := f.reg.FindByID(1)
	assert.Equal(t, 9, p.Icon)

	f.ch.push(t, "removekeyword", "never-added")
	f.ch.push(t, "playerjoined", roster.Player{Username: "late", PlayerID: 5, GameID: "abc123"})
	assert.Equal(t, 2, f.reg.Len())
}

func TestShowRedirectError(t *testing.T) {
	f := newFixture(&fakeAPI{})

	f.coord.ShowRedirectError(nav.LobbyFull.Param())
	require.Len(t, f.disp.errors, 1)
	assert.Equal(t, "The requested lobby is full.", f.disp.errors[0])

	f.coord.ShowRedirectError("not-a-code")
	assert.Len(t, f.disp.errors, 1, "garbage params surface nothing")
}

func TestIdentityGeneratedAndRemembered(t *testing.T) {
	f := newFixture(&fakeAPI{
		createID: "abc123",
		identity: sessionapi.Identity{PlayerID: 42, Token: "tok-1"},
	})

	f.coord.Start(context.Background(), "")

	name, ok := f.prefs.Username()
	require.True(t, ok, "a generated name is remembered")
	assert.NotEmpty(t, name)
	assert.NotEqual(t, roster.IconUnset, f.prefs.Icon())

	require.Len(t, f.api.submitted, 1)
	assert.Equal(t, name, f.api.submitted[0].Username)
	assert.Zero(t, f.api.submitted[0].PlayerID, "the server assigns the id")
}

func TestRandomIconAvoidsExcluded(t *testing.T) {
	f := newFixture(&fakeAPI{})

	for i := 0; i < 500; i++ {
		icon := f.coord.randomIcon(5)
		assert.NotEqual(t, 5, icon)
		inRange := icon >= 0 && icon < 20
		assert.True(t, inRange || icon == roster.IconSecret, "unexpected icon %d", icon)
	}
}

func TestIdentitySubmissionFailureStopsJoin(t *testing.T) {
	f := newFixture(&fakeAPI{
		players:     []roster.Player{{PlayerID: 1, GameID: "abc123", IsHost: true}},
		identityErr: errors.New("boom"),
	})

	f.coord.Start(context.Background(), "abc123")

	assert.False(t, f.ch.connected)
	assert.NotEqual(t, Ready, f.coord.State())
	require.NotEmpty(t, f.disp.errors)
	assert.Equal(t, msgConnectIssue, f.disp.errors[0])
}
