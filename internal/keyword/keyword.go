// Package keyword tracks the topic keywords a host configures before a game
// starts. The set is ordered, case-sensitive and rejects blanks and
// duplicates; whether a change propagates to other clients is the lobby
// coordinator's call, not this package's.
package keyword

import (
	"strings"
	"sync"
)

// MinToStart is the smallest keyword set a host may start a game with.
const MinToStart = 4

// Start-check refusal messages, surfaced to the user as-is.
const (
	reasonNotHost    = "Only the host can start the game."
	reasonTooFew     = "You must enter at least four keywords."
	reasonNoIdentity = "Server Error"
)

// Set is an ordered collection of distinct keywords.
type Set struct {
	mu    sync.Mutex
	words []string
}

// NewSet returns an empty keyword set.
func NewSet() *Set {
	return &Set{}
}

// Add stores the trimmed keyword and reports whether it was added. Blank,
// whitespace-only and already-present keywords are rejected.
func (s *Set) Add(word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.words {
		if w == word {
			return false
		}
	}
	s.words = append(s.words, word)
	return true
}

// Remove deletes the keyword and reports whether it was present.
func (s *Set) Remove(word string) bool {
	word = strings.TrimSpace(word)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.words {
		if w == word {
			s.words = append(s.words[:i], s.words[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the whole set for the given words, applying the same
// validity rules entry by entry. Used when a fetched keyword list seeds a
// joining client.
func (s *Set) Replace(words []string) {
	s.mu.Lock()
	s.words = nil
	s.mu.Unlock()
	for _, w := range words {
		s.Add(w)
	}
}

// Words returns the keywords in insertion order.
func (s *Set) Words() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}

// Len returns the number of keywords.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.words)
}

// CanStartGame reports whether a game start is allowed for a caller with
// the given role and credential standing. The reason is a user-facing
// message, empty when the start is allowed.
func (s *Set) CanStartGame(isHost, credentialed bool) (bool, string) {
	if !isHost {
		return false, reasonNotHost
	}
	if s.Len() < MinToStart {
		return false, reasonTooFew
	}
	if !credentialed {
		return false, reasonNoIdentity
	}
	return true, ""
}
