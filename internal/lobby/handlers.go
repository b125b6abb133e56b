package lobby

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/GraysonReimer/WebGuesser/internal/nav"
	"github.com/GraysonReimer/WebGuesser/internal/roster"
)

type usernameChange struct {
	PlayerID    int    `json:"playerId"`
	NewUsername string `json:"newUsername"`
}

type iconChange struct {
	PlayerID int `json:"playerId"`
	NewIcon  int `json:"newIcon"`
}

// registerHandlers subscribes all lobby push events. Registration happens
// before the channel connects so nothing is missed on the first dial.
func (c *Coordinator) registerHandlers() {
	c.ch.On("playerjoined", c.onPlayerJoined)
	c.ch.On("usernamechanged", c.onUsernameChanged)
	c.ch.On("iconchanged", c.onIconChanged)
	c.ch.On("addkeyword", c.onAddKeyword)
	c.ch.On("removekeyword", c.onRemoveKeyword)
	c.ch.On("gamestarting", c.onGameStarting)
}

func (c *Coordinator) onPlayerJoined(data json.RawMessage) {
	var p roster.Player
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Msg("malformed playerjoined payload")
		return
	}
	if c.reg.UpsertNew(p) {
		log.Info().Int("player_id", p.PlayerID).Str("username", p.Username).Msg("player joined")
	}
}

func (c *Coordinator) onUsernameChanged(data json.RawMessage) {
	var ch usernameChange
	if err := json.Unmarshal(data, &ch); err != nil {
		log.Error().Err(err).Msg("malformed usernamechanged payload")
		return
	}
	c.reg.Patch(ch.PlayerID, roster.Fields{Username: &ch.NewUsername})
}

func (c *Coordinator) onIconChanged(data json.RawMessage) {
	var ch iconChange
	if err := json.Unmarshal(data, &ch); err != nil {
		log.Error().Err(err).Msg("malformed iconchanged payload")
		return
	}
	c.reg.Patch(ch.PlayerID, roster.Fields{Icon: &ch.NewIcon})
}

// onAddKeyword applies a remote-origin keyword without re-broadcasting;
// re-invoking here would echo between clients forever.
func (c *Coordinator) onAddKeyword(data json.RawMessage) {
	var word string
	if err := json.Unmarshal(data, &word); err != nil {
		log.Error().Err(err).Msg("malformed addkeyword payload")
		return
	}
	c.words.Add(word)
}

func (c *Coordinator) onRemoveKeyword(data json.RawMessage) {
	var word string
	if err := json.Unmarshal(data, &word); err != nil {
		log.Error().Err(err).Msg("malformed removekeyword payload")
		return
	}
	c.words.Remove(word)
}

// onGameStarting persists the handoff snapshot, tears down the lobby
// channel and navigates into the game context.
func (c *Coordinator) onGameStarting(json.RawMessage) {
	self := c.reg.Self()
	if self == nil {
		log.Error().Msg("gamestarting with no local identity")
		return
	}
	if err := c.handoff.Set(c.reg.Snapshot(), self.PlayerID); err != nil {
		log.Error().Err(err).Msg("handoff snapshot failed")
		return
	}

	c.setState(GameStarting)
	c.ch.Close()
	c.nav.GoTo(nav.RouteGame, map[string]string{nav.ParamGameID: c.LobbyID()})
}
