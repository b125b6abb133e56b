// Package nav is the navigation collaborator contract. Every terminal
// transition in the client (admission failure, game start, game end, host
// quit) resolves into a GoTo call; nothing in the coordinators terminates
// the process.
package nav

import "strconv"

// Routes the coordinators navigate between.
const (
	RouteLobby = "lobby"
	RouteGame  = "game"
)

// Query parameter names used on navigation.
const (
	ParamInvite = "invite"
	ParamGameID = "id"
	ParamError  = "red"
)

// ErrorCode identifies why a client was redirected out of a session.
type ErrorCode int

const (
	NotFound ErrorCode = iota
	LobbyFull
	Banned
	HostQuit
)

// Message returns the user-facing text for the code.
func (c ErrorCode) Message() string {
	switch c {
	case NotFound:
		return "The requested lobby could not be found."
	case LobbyFull:
		return "The requested lobby is full."
	case Banned:
		return "You are not permitted to join this lobby."
	case HostQuit:
		return "The host has left the game."
	default:
		return ""
	}
}

// Param returns the code as a query parameter value.
func (c ErrorCode) Param() string {
	return strconv.Itoa(int(c))
}

// ParseError recovers an ErrorCode from a query parameter value.
func ParseError(param string) (ErrorCode, bool) {
	n, err := strconv.Atoi(param)
	if err != nil || n < int(NotFound) || n > int(HostQuit) {
		return 0, false
	}
	return ErrorCode(n), true
}

// Navigator switches the client between contexts. Implementations are
// outside the core; the coordinators only fire and forget.
type Navigator interface {
	GoTo(route string, params map[string]string)
}
