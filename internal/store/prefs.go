package store

import (
	"strconv"

	"github.com/GraysonReimer/WebGuesser/internal/roster"
)

const (
	prefUsernameKey = "player_info_username"
	prefIconKey     = "player_info_icon"
)

// Prefs remembers the user's display name and icon between sessions. Read
// once at session start, never during the round lifecycle.
type Prefs struct {
	kv KV
}

// NewPrefs wraps a KV as a preference store.
func NewPrefs(kv KV) *Prefs {
	return &Prefs{kv: kv}
}

// Username returns the remembered display name, ok=false when none is set.
func (p *Prefs) Username() (string, bool) {
	name, ok := p.kv.Get(prefUsernameKey)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// SetUsername remembers a display name.
func (p *Prefs) SetUsername(name string) error {
	return p.kv.Set(prefUsernameKey, name)
}

// Icon returns the remembered icon index, or roster.IconUnset when none is
// stored or the stored value is garbage.
func (p *Prefs) Icon() int {
	raw, ok := p.kv.Get(prefIconKey)
	if !ok {
		return roster.IconUnset
	}
	icon, err := strconv.Atoi(raw)
	if err != nil {
		return roster.IconUnset
	}
	return icon
}

// SetIcon remembers an icon index.
func (p *Prefs) SetIcon(icon int) error {
	return p.kv.Set(prefIconKey, strconv.Itoa(icon))
}
