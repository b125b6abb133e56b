package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GraysonReimer/WebGuesser/internal/config"
	"github.com/GraysonReimer/WebGuesser/internal/display"
	"github.com/GraysonReimer/WebGuesser/internal/game"
	"github.com/GraysonReimer/WebGuesser/internal/keyword"
	"github.com/GraysonReimer/WebGuesser/internal/lobby"
	"github.com/GraysonReimer/WebGuesser/internal/nav"
	"github.com/GraysonReimer/WebGuesser/internal/realtime"
	"github.com/GraysonReimer/WebGuesser/internal/roster"
	"github.com/GraysonReimer/WebGuesser/internal/sessionapi"
	"github.com/GraysonReimer/WebGuesser/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	setupLogging()

	invite := flag.String("invite", "", "session invite id; empty creates a new session as host")
	configPath := flag.String("config", os.Getenv("WG_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	prefsKV, err := store.OpenFile(cfg.StorePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("preference store open failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{
		cfg:     cfg,
		creds:   store.NewCredentials(store.NewMemory()),
		prefs:   store.NewPrefs(prefsKV),
		handoff: store.NewHandoff(),
		clock:   clockwork.NewRealClock(),
		disp:    display.Log{},
	}

	app.enterLobby(ctx, *invite, "")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(os.Getenv("WG_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

// app owns the stores that survive context switches and rebuilds the
// per-context coordinators on navigation.
type app struct {
	cfg     config.Config
	creds   *store.Credentials
	prefs   *store.Prefs
	handoff *store.Handoff
	clock   clockwork.Clock
	disp    display.Display
}

func (a *app) token() (string, bool) {
	return a.creds.Token()
}

func (a *app) enterLobby(ctx context.Context, invite, redirectError string) {
	reg := roster.NewRegistry()
	words := keyword.NewSet()
	api := sessionapi.NewClient(a.cfg.BaseURL, a.token)
	ch := realtime.NewChannel(realtime.DefaultConfig(a.cfg.LobbyHubURL()), a.token, a.clock)

	coord := lobby.NewCoordinator(lobby.Deps{
		API:      api,
		Channel:  ch,
		Registry: reg,
		Keywords: words,
		Creds:    a.creds,
		Prefs:    a.prefs,
		Handoff:  a.handoff,
		Display:  a.disp,
		Nav:      &router{app: a, ctx: ctx},
		Clock:    a.clock,
	}, lobby.Options{
		IconRange:      a.cfg.IconRange,
		CredentialWait: a.cfg.CredentialWait,
	})

	coord.ShowRedirectError(redirectError)
	go coord.Start(ctx, invite)
}

func (a *app) enterGame(ctx context.Context, gameID string) {
	reg := roster.NewRegistry()
	api := sessionapi.NewClient(a.cfg.BaseURL, a.token)
	ch := realtime.NewChannel(realtime.DefaultConfig(a.cfg.GameHubURL()), a.token, a.clock)

	coord := game.NewCoordinator(game.Deps{
		API:      api,
		Channel:  ch,
		Registry: reg,
		Handoff:  a.handoff,
		Display:  a.disp,
		Nav:      &router{app: a, ctx: ctx},
		Clock:    a.clock,
	}, game.Options{
		CountdownSeconds:   a.cfg.CountdownSeconds,
		RoundEndSeconds:    a.cfg.RoundEndSeconds,
		AlterationInterval: a.cfg.AlterationInterval,
		AlteredImageURL:    a.cfg.AlteredImageURL,
		UnalteredImageURL:  a.cfg.UnalteredImageURL,
	})

	go coord.Join(ctx, gameID)
}

// router implements the navigation collaborator by rebuilding the target
// context, mirroring the page navigation of the original client.
type router struct {
	app *app
	ctx context.Context
}

func (r *router) GoTo(route string, params map[string]string) {
	log.Info().Str("route", route).Interface("params", params).Msg("navigating")

	switch route {
	case nav.RouteGame:
		r.app.enterGame(r.ctx, params[nav.ParamGameID])
	case nav.RouteLobby:
		r.app.enterLobby(r.ctx, params[nav.ParamInvite], params[nav.ParamError])
	default:
		log.Warn().Str("route", route).Msg("unknown route")
	}
}
