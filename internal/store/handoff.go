package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/GraysonReimer/WebGuesser/internal/roster"
)

// ErrNoSnapshot means the game context started without a lobby handoff.
// This is the one fatal local error in the client: the game coordinator
// exits straight back to the lobby on it.
var ErrNoSnapshot = errors.New("no handoff snapshot")

// Snapshot is the roster state the lobby passes to the game context: the
// serialized player list in join order plus which id is this client.
type Snapshot struct {
	Players  []roster.Player `json:"players"`
	ClientID int             `json:"clientId"`
}

// Handoff is the one-shot snapshot store. The lobby coordinator writes it
// right before navigating into the game; the round lifecycle reads it once
// at startup.
type Handoff struct {
	mu   sync.Mutex
	data []byte
	set  bool
}

// NewHandoff returns an empty handoff store.
func NewHandoff() *Handoff {
	return &Handoff{}
}

// Set serializes and stores the snapshot, replacing any previous one.
func (h *Handoff) Set(players []roster.Player, clientID int) error {
	data, err := json.Marshal(Snapshot{Players: players, ClientID: clientID})
	if err != nil {
		return fmt.Errorf("encode handoff snapshot: %w", err)
	}

	h.mu.Lock()
	h.data = data
	h.set = true
	h.mu.Unlock()
	return nil
}

// Get returns the stored snapshot, or ErrNoSnapshot when none was written.
func (h *Handoff) Get() (Snapshot, error) {
	h.mu.Lock()
	data, ok := h.data, h.set
	h.mu.Unlock()

	if !ok {
		return Snapshot{}, ErrNoSnapshot
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode handoff snapshot: %w", err)
	}
	return snap, nil
}
