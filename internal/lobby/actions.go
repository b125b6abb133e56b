package lobby

import (
	"github.com/rs/zerolog/log"
)

// AddKeyword adds a keyword locally and, when this client is host,
// propagates it to the session. Invalid and duplicate words are no-ops.
func (c *Coordinator) AddKeyword(word string) bool {
	if !c.words.Add(word) {
		return false
	}
	if c.isHost() {
		if err := c.ch.Invoke("AddKeyWord", word); err != nil {
			log.Error().Err(err).Str("keyword", word).Msg("keyword add propagation failed")
		}
	}
	return true
}

// RemoveKeyword removes a keyword locally and, when this client is host,
// propagates the removal. An absent word is a no-op.
func (c *Coordinator) RemoveKeyword(word string) bool {
	if !c.words.Remove(word) {
		return false
	}
	if c.isHost() {
		if err := c.ch.Invoke("RemoveKeyWord", word); err != nil {
			log.Error().Err(err).Str("keyword", word).Msg("keyword removal propagation failed")
		}
	}
	return true
}

// CanStartGame reports whether a game start would be accepted right now,
// optionally surfacing the refusal reason to the user.
func (c *Coordinator) CanStartGame(displayErrors bool) bool {
	ok, reason := c.words.CanStartGame(c.isHost(), c.isCredentialed())
	if !ok && displayErrors {
		c.disp.ShowError(reason)
	}
	return ok
}

// RequestGameStart asks the server to start the game. Host only; every
// other client learns about the start through the gamestarting push.
func (c *Coordinator) RequestGameStart() {
	if !c.CanStartGame(true) {
		return
	}
	if err := c.ch.Invoke("StartGame"); err != nil {
		log.Error().Err(err).Msg("game start request failed")
	}
}

// ChangeUsername remembers the new name locally and propagates it. The
// roster itself is patched when the server echoes usernamechanged back.
func (c *Coordinator) ChangeUsername(name string) {
	if err := c.prefs.SetUsername(name); err != nil {
		log.Warn().Err(err).Msg("storing username failed")
	}

	c.mu.Lock()
	c.username = name
	c.mu.Unlock()

	if err := c.ch.Invoke("ChangeUsername", name); err != nil {
		log.Error().Err(err).Msg("username change failed")
	}
}

// RollNewIcon picks a fresh icon different from the current one, remembers
// it and propagates the change.
func (c *Coordinator) RollNewIcon() {
	exclude := -1
	if self := c.reg.Self(); self != nil {
		if current, ok := c.reg.FindByID(self.PlayerID); ok {
			exclude = current.Icon
		} else {
			exclude = self.Icon
		}
	}

	icon := c.randomIcon(exclude)
	if err := c.prefs.SetIcon(icon); err != nil {
		log.Warn().Err(err).Msg("storing icon failed")
	}
	if err := c.ch.Invoke("ChangeIcon", icon); err != nil {
		log.Error().Err(err).Msg("icon change failed")
	}
}

func (c *Coordinator) isHost() bool {
	self := c.reg.Self()
	return self != nil && self.IsHost
}
