package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GraysonReimer/WebGuesser/internal/nav"
	"github.com/GraysonReimer/WebGuesser/internal/roster"
)

type newRoundInfo struct {
	RoundOptions []RoundOption `json:"roundOptions"`
}

// registerHandlers subscribes all game push events before the channel
// connects. The ctx is the game session's lifetime and bounds every API
// call a handler makes.
func (c *Coordinator) registerHandlers(ctx context.Context) {
	c.ch.On("newround", func(data json.RawMessage) { c.onNewRound(ctx, data) })
	c.ch.On("startroundcountdown", func(data json.RawMessage) { c.onStartRoundCountdown(data) })
	c.ch.On("EndRound", func(data json.RawMessage) { c.onEndRound(ctx, data) })
	c.ch.On("EndGame", func(data json.RawMessage) { c.onEndGame(ctx, data) })
	c.ch.On("ServerWait", func(data json.RawMessage) { c.onServerWait(data) })
	c.ch.On("NextAlteration", func(json.RawMessage) { c.disp.ImageSourceChanged(c.alteredImageURL()) })
	c.ch.On("ImageUnaltered", func(json.RawMessage) { c.disp.ImageSourceChanged(c.unalteredImageURL()) })
	c.ch.On("HostQuit", func(json.RawMessage) { c.onHostQuit() })
	c.ch.On("RemoveUser", func(data json.RawMessage) { c.onRemoveUser(data) })
}

// onNewRound enters the active phase: fresh options, submission open. The
// host also starts the alteration poll and the round-end watchdog that
// keeps the game moving when some clients never answer.
func (c *Coordinator) onNewRound(ctx context.Context, data json.RawMessage) {
	var info newRoundInfo
	if err := json.Unmarshal(data, &info); err != nil {
		log.Error().Err(err).Msg("malformed newround payload")
		return
	}

	c.disp.ImageSourceChanged(c.alteredImageURL())

	c.mu.Lock()
	c.roundGen++
	gen := c.roundGen
	c.phase = Active
	c.options = info.RoundOptions
	c.submittedAnswer = NoAnswer
	c.canSubmitAnswer = true
	c.roundStartTime = c.clock.Now()

	// The countdown expiry is superseded the moment the round arrives.
	countdown := c.cancelCountdown
	c.cancelCountdown = nil
	c.mu.Unlock()
	if countdown != nil {
		countdown()
	}

	if c.isHost() {
		c.armWatchdog(gen)
		c.startAlterationLoop(ctx)
	}

	c.disp.RoundBegan()
	log.Info().Int("round_gen", gen).Int("options", len(info.RoundOptions)).Msg("round active")
}

// armWatchdog replaces any previous watchdog with one for the given round
// generation. When it fires with the round still unresolved, the host
// forces the round end server-side exactly once.
func (c *Coordinator) armWatchdog(gen int) {
	cancel := c.schedule(time.Duration(c.opts.RoundEndSeconds)*time.Second, func() {
		c.mu.Lock()
		stale := gen != c.roundGen || (c.phase != Active && c.phase != Collecting)
		c.mu.Unlock()
		if stale {
			return
		}
		log.Info().Int("round_gen", gen).Msg("watchdog forcing round end")
		if err := c.ch.Invoke("EndRound"); err != nil {
			log.Error().Err(err).Msg("watchdog end-round failed")
		}
	})

	c.mu.Lock()
	prev := c.cancelWatchdog
	c.cancelWatchdog = cancel
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// startAlterationLoop polls the server for the next image alteration every
// interval while the round runs, relaying each one to the other clients.
func (c *Coordinator) startAlterationLoop(ctx context.Context) {
	stop := c.startTickLoop(ctx, c.opts.AlterationInterval, func() {
		if err := c.api.NextImageAlteration(ctx); err != nil {
			log.Warn().Err(err).Msg("next alteration fetch failed")
			return
		}
		if err := c.ch.Invoke("NextImageAlteration"); err != nil {
			log.Error().Err(err).Msg("alteration relay failed")
		}
	})

	c.mu.Lock()
	prev := c.stopAlterLoop
	c.stopAlterLoop = stop
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// onStartRoundCountdown enters the countdown phase. The host additionally
// schedules the round start for when the countdown elapses, so Active
// begins for everyone through the server's newround relay.
func (c *Coordinator) onStartRoundCountdown(data json.RawMessage) {
	var seconds int
	if err := json.Unmarshal(data, &seconds); err != nil {
		log.Error().Err(err).Msg("malformed startroundcountdown payload")
		return
	}

	c.removeServerDelay(fetchImageWaitMsg)
	c.disp.CountdownStarted(seconds)

	c.mu.Lock()
	c.results = nil
	c.phase = Countdown
	c.mu.Unlock()

	if c.isHost() {
		cancel := c.schedule(time.Duration(seconds)*time.Second, func() {
			if err := c.ch.Invoke("StartNewRound"); err != nil {
				log.Error().Err(err).Msg("round start relay failed")
			}
		})

		c.mu.Lock()
		prev := c.cancelCountdown
		c.cancelCountdown = cancel
		c.mu.Unlock()
		if prev != nil {
			prev()
		}
	}
}

// onEndRound applies round results. A round already in Ended ignores any
// further EndRound arrival; the host watchdog forcing an end and the
// server's own end are not mutually exclusive.
func (c *Coordinator) onEndRound(ctx context.Context, data json.RawMessage) {
	var results RoundResults
	if err := json.Unmarshal(data, &results); err != nil {
		log.Error().Err(err).Msg("malformed round results")
		return
	}

	c.mu.Lock()
	if c.phase == Ended {
		c.mu.Unlock()
		log.Debug().Msg("duplicate round end ignored")
		return
	}
	c.mu.Unlock()

	c.applyRoundResults(ctx, results)
	c.disp.ImageSourceChanged(c.alteredImageURL())
}

// onEndGame applies the final results and hands control back to the lobby
// with the session id for the rematch flow.
func (c *Coordinator) onEndGame(ctx context.Context, data json.RawMessage) {
	var results RoundResults
	if err := json.Unmarshal(data, &results); err != nil {
		log.Error().Err(err).Msg("malformed game results")
		return
	}

	c.applyRoundResults(ctx, results)

	c.mu.Lock()
	c.phase = GameOver
	c.mu.Unlock()

	log.Info().Str("game_id", c.gameIDLocked()).Msg("game over")
	c.returnToLobbyForRematch()
}

// applyRoundResults cancels the host timers, merges the points summary
// into the roster and reports the local answer outcome. Point updates for
// ids missing from the roster are dropped, not errors: registry state can
// trail the results under reordering.
func (c *Coordinator) applyRoundResults(ctx context.Context, results RoundResults) {
	c.mu.Lock()
	watchdog, alter := c.cancelWatchdog, c.stopAlterLoop
	c.cancelWatchdog, c.stopAlterLoop = nil, nil
	res := results
	c.results = &res
	c.canSubmitAnswer = false
	submitted := c.submittedAnswer
	c.phase = Ended
	c.mu.Unlock()

	if watchdog != nil {
		watchdog()
	}
	if alter != nil {
		alter()
	}

	// Every client flips the server back to the unaltered image and
	// re-enables the host's next-round latch.
	if err := c.api.SetImageUnaltered(ctx); err != nil {
		log.Warn().Err(err).Msg("image unalter request failed")
	} else if err := c.ch.Invoke("ImageUnaltered"); err != nil {
		log.Error().Err(err).Msg("image unalter relay failed")
	}
	c.mu.Lock()
	c.canStartNewRound = true
	c.mu.Unlock()

	for _, ps := range results.PointsSummary {
		points := ps.Points
		c.reg.Patch(ps.PlayerID, roster.Fields{Points: &points})
	}

	c.disp.AnswerOutcome(submitted == results.CorrectAnswerID)
}

func (c *Coordinator) onServerWait(data json.RawMessage) {
	var message string
	if err := json.Unmarshal(data, &message); err != nil {
		log.Error().Err(err).Msg("malformed server wait payload")
		return
	}

	c.mu.Lock()
	c.serverDelays = append(c.serverDelays, message)
	c.mu.Unlock()
	c.disp.ServerDelayAdded(message)
}

func (c *Coordinator) removeServerDelay(message string) {
	c.mu.Lock()
	found := false
	for i, m := range c.serverDelays {
		if m == message {
			c.serverDelays = append(c.serverDelays[:i], c.serverDelays[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.disp.ServerDelayRemoved(message)
	}
}

func (c *Coordinator) onHostQuit() {
	log.Info().Msg("host quit, leaving game")
	code := nav.HostQuit
	c.exitToLobby(&code)
}

func (c *Coordinator) onRemoveUser(data json.RawMessage) {
	var playerID int
	if err := json.Unmarshal(data, &playerID); err != nil {
		log.Error().Err(err).Msg("malformed remove user payload")
		return
	}
	if c.reg.Remove(playerID) {
		log.Info().Int("player_id", playerID).Msg("player removed")
	}
}
