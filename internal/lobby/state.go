package lobby

// State is the lobby coordinator's position in the join lifecycle.
// GameStarting is terminal: the session has been handed off to the game
// context.
type State int

const (
	Unjoined State = iota
	CreatingAsHost
	AuthenticatingReconnect
	ClientJoining
	ReconnectedMember
	Ready
	GameStarting
)

func (s State) String() string {
	switch s {
	case Unjoined:
		return "unjoined"
	case CreatingAsHost:
		return "creating_as_host"
	case AuthenticatingReconnect:
		return "authenticating_reconnect"
	case ClientJoining:
		return "client_joining"
	case ReconnectedMember:
		return "reconnected_member"
	case Ready:
		return "ready"
	case GameStarting:
		return "game_starting"
	default:
		return "unknown"
	}
}
