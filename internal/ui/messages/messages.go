package messages

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fragmede/authpanel/internal/session"
)

// Data messages. Session outcomes (session.ProbeOutcome, session.AuthOutcome,
// session.LogoutOutcome) are delivered as messages as they are.
type (
	// HealthMsg carries a /health result. Once marks an extra probe outside
	// the periodic loop; only periodic results schedule the next tick.
	HealthMsg struct {
		Err  error
		Once bool
	}

	HealthTickMsg struct{}
)

// Perform runs a session call off the event loop and delivers its outcome
// back to Update. A nil call yields a nil command.
func Perform(call session.Call) tea.Cmd {
	if call == nil {
		return nil
	}
	return func() tea.Msg {
		return call(context.Background())
	}
}
