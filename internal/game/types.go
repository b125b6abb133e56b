package game

// Phase is the round lifecycle coordinator's position within a game.
type Phase int

const (
	Idle Phase = iota
	// Countdown runs between rounds, before the server relays newround.
	Countdown
	// Active means answering is open.
	Active
	// Collecting means this client has answered and is waiting on results.
	Collecting
	// Ended means round results have been applied.
	Ended
	// GameOver is terminal; control returns to the lobby context.
	GameOver
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Countdown:
		return "countdown"
	case Active:
		return "active"
	case Collecting:
		return "collecting"
	case Ended:
		return "ended"
	case GameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// NoAnswer is the submittedAnswer sentinel before a round's first
// confirmed submission.
const NoAnswer = -1

// RoundOption is one selectable answer for a round. The correct id is only
// revealed at round end.
type RoundOption struct {
	ID   int    `json:"id"`
	Word string `json:"word"`
}

// PlayerPoints is one entry of a round's points summary. Points are
// absolute totals, not deltas.
type PlayerPoints struct {
	PlayerID int `json:"playerId"`
	Points   int `json:"points"`
}

// RoundResults arrives once per round on EndRound (and again on EndGame
// for the final round).
type RoundResults struct {
	CorrectAnswerID int            `json:"correctAnswerId"`
	PointsSummary   []PlayerPoints `json:"pointsSummary"`
}
