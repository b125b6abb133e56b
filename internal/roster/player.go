package roster

// Icon sentinel values. IconUnset marks a player whose icon has not been
// rolled yet; IconSecret is the rare easter-egg icon the roll can land on.
const (
	IconUnset  = -1
	IconSecret = 255
)

// Player is the identity record for one member of a session. PlayerID is
// assigned by the server; a locally created player carries PlayerID 0 until
// the identity submission comes back.
type Player struct {
	Username string `json:"username"`
	PlayerID int    `json:"playerId"`
	GameID   string `json:"gameId"`
	IsHost   bool   `json:"isHost"`
	Points   int    `json:"points"`
	Icon     int    `json:"icon"`
}

// Assigned reports whether the server has issued this player an id.
func (p Player) Assigned() bool {
	return p.PlayerID != 0
}
