// Package display is the one-directional contract between the coordinators
// and whatever renders the game. Notifications are fire-and-forget; the
// core never waits on the display.
package display

import "github.com/rs/zerolog/log"

// Display receives state-change notifications meant for the user.
type Display interface {
	// CountdownStarted announces a round countdown of the given length.
	CountdownStarted(seconds int)
	// RoundBegan announces that answering is open.
	RoundBegan()
	// AnswerOutcome reports whether the submitted answer was correct.
	AnswerOutcome(correct bool)
	// ServerDelayAdded and ServerDelayRemoved track server-announced wait
	// messages ("fetching image...").
	ServerDelayAdded(message string)
	ServerDelayRemoved(message string)
	// ImageSourceChanged points the display at a new round image URL.
	ImageSourceChanged(url string)
	// ShowError surfaces a non-fatal user-facing message.
	ShowError(message string)
}

// Log is a Display that writes every notification to the structured log.
// The cmd binary uses it; tests use their own recorders.
type Log struct{}

func (Log) CountdownStarted(seconds int) {
	log.Info().Int("seconds", seconds).Msg("countdown started")
}

func (Log) RoundBegan() {
	log.Info().Msg("round began")
}

func (Log) AnswerOutcome(correct bool) {
	log.Info().Bool("correct", correct).Msg("answer outcome")
}

func (Log) ServerDelayAdded(message string) {
	log.Info().Str("message", message).Msg("server delay")
}

func (Log) ServerDelayRemoved(message string) {
	log.Info().Str("message", message).Msg("server delay cleared")
}

func (Log) ImageSourceChanged(url string) {
	log.Info().Str("url", url).Msg("round image changed")
}

func (Log) ShowError(message string) {
	log.Warn().Str("message", message).Msg("client error")
}
