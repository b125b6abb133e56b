package roster

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// MaxPlayers is the session capacity. A fetched roster at or above this size
// rejects the join.
const MaxPlayers = 8

var (
	// ErrSessionEmpty means a fetched roster had nobody in it, which is
	// indistinguishable from the session not existing.
	ErrSessionEmpty = errors.New("session has no players")
	// ErrSessionFull means the session is at capacity.
	ErrSessionFull = errors.New("session is full")
)

// Admissible applies the join admission bounds to a fetched roster size.
func Admissible(size int) error {
	switch {
	case size == 0:
		return ErrSessionEmpty
	case size >= MaxPlayers:
		return ErrSessionFull
	default:
		return nil
	}
}

// Subscriber receives an immutable roster snapshot after every mutation.
type Subscriber func(players []Player)

// Registry is the ordered, id-addressable set of players in a session plus
// the client's own player. The self record and its registry entry are the
// same underlying object, so a patch applied through either is visible
// through both.
//
// Every mutating call notifies subscribers exactly once, even when it
// changes several entries as one unit.
type Registry struct {
	mu      sync.Mutex
	players []*Player
	self    *Player
	subs    []Subscriber
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe registers fn for snapshot notifications. There is no
// unsubscribe; registries live exactly as long as their session context.
func (r *Registry) Subscribe(fn Subscriber) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// SetSelf installs the client's own identity record. The record is not part
// of the roster until it is upserted (directly or via a remote join event).
func (r *Registry) SetSelf(p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.self != nil {
		*r.self = p
		return
	}
	cp := p
	r.self = &cp
}

// Self returns a mutable handle to the client's own player, or nil when no
// identity has been installed. Only the owning coordinator may mutate it.
func (r *Registry) Self() *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self
}

// UpsertNew inserts a player if its id is unseen and reports whether an
// insert happened. An already-present id is ignored entirely; field merges
// go through Patch instead.
func (r *Registry) UpsertNew(p Player) bool {
	r.mu.Lock()
	inserted := r.insertLocked(p)
	snap := r.snapshotLocked()
	subs := r.subs
	r.mu.Unlock()

	if inserted {
		notify(subs, snap)
	}
	return inserted
}

// UpsertAll inserts every unseen player from the list, preserving list
// order, and notifies subscribers once for the whole batch. It returns the
// number of players inserted.
func (r *Registry) UpsertAll(players []Player) int {
	r.mu.Lock()
	inserted := 0
	for _, p := range players {
		if r.insertLocked(p) {
			inserted++
		}
	}
	snap := r.snapshotLocked()
	subs := r.subs
	r.mu.Unlock()

	if inserted > 0 {
		notify(subs, snap)
	}
	return inserted
}

// insertLocked adds p unless its id is already present. When p shares the
// self id, the self record becomes the roster entry so the two stay one
// object.
func (r *Registry) insertLocked(p Player) bool {
	if r.findLocked(p.PlayerID) != nil {
		return false
	}

	entry := &p
	if r.self != nil && r.self.PlayerID == p.PlayerID {
		*r.self = p
		entry = r.self
	}
	r.players = append(r.players, entry)
	return true
}

// Fields is a partial player patch; nil members are left untouched.
type Fields struct {
	Username *string
	Icon     *int
	Points   *int
}

// Patch applies a field change to the player with the given id. An unknown
// id is a silent no-op.
func (r *Registry) Patch(playerID int, f Fields) bool {
	r.mu.Lock()
	p := r.findLocked(playerID)
	if p == nil {
		r.mu.Unlock()
		log.Debug().Int("player_id", playerID).Msg("patch for unknown player ignored")
		return false
	}
	if f.Username != nil {
		p.Username = *f.Username
	}
	if f.Icon != nil {
		p.Icon = *f.Icon
	}
	if f.Points != nil {
		p.Points = *f.Points
	}
	snap := r.snapshotLocked()
	subs := r.subs
	r.mu.Unlock()

	notify(subs, snap)
	return true
}

// Remove deletes the player with the given id, preserving the order of the
// rest. An unknown id is a silent no-op.
func (r *Registry) Remove(playerID int) bool {
	r.mu.Lock()
	idx := -1
	for i, p := range r.players {
		if p.PlayerID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	snap := r.snapshotLocked()
	subs := r.subs
	r.mu.Unlock()

	notify(subs, snap)
	return true
}

// FindByID returns a copy of the player with the given id.
func (r *Registry) FindByID(playerID int) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.findLocked(playerID); p != nil {
		return *p, true
	}
	return Player{}, false
}

// Len returns the number of players in the roster.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Snapshot returns the roster as an immutable copy in join order.
func (r *Registry) Snapshot() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) findLocked(playerID int) *Player {
	for _, p := range r.players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

func (r *Registry) snapshotLocked() []Player {
	snap := make([]Player, len(r.players))
	for i, p := range r.players {
		snap[i] = *p
	}
	return snap
}

func notify(subs []Subscriber, snap []Player) {
	for _, fn := range subs {
		fn(snap)
	}
}
