package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/authpanel/internal/session"
)

var (
	accent = lipgloss.Color("#7D56F4")

	navStyle = lipgloss.NewStyle().
			Background(accent).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	brandStyle = lipgloss.NewStyle().Bold(true)

	headingStyle = lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(1, 0)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Margin(0, 1).
			Width(28)

	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	keyStyle       = lipgloss.NewStyle().Foreground(accent)
)

// Model is the signed-in view. It draws the controller's user snapshot.
type Model struct {
	ctrl   *session.Controller
	width  int
	height int
}

// New creates the dashboard.
func New(ctrl *session.Controller) Model {
	return Model{ctrl: ctrl}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// View renders the dashboard.
func (m Model) View() string {
	state := m.ctrl.State()
	if state.User == nil {
		return ""
	}
	user := state.User

	brand := brandStyle.Render("authpanel")
	welcome := "Welcome, " + user.Username + "!"
	gap := m.width - lipgloss.Width(brand) - lipgloss.Width(welcome) - 2
	if gap < 1 {
		gap = 1
	}
	nav := navStyle.Render(brand + lipgloss.NewStyle().Width(gap).Render("") + welcome)

	profile := []string{"Username: " + user.Username, "Email: " + user.Email}
	if id := user.ExtraString("id"); id != "" {
		profile = append(profile, "ID: "+id)
	}

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Profile", profile...),
		card("Statistics", "Member since today", "Status: Active"),
		card("Quick Actions", "Start exploring!"),
	)

	footer := keyStyle.Render("L") + dimStyle.Render(" logout · ") + keyStyle.Render("q") + dimStyle.Render(" quit")
	if state.Pending {
		footer = dimStyle.Render("Signing out...")
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		headingStyle.Render("Dashboard"),
		cards,
		"",
		footer,
	)

	bodyHeight := m.height - lipgloss.Height(nav)
	if bodyHeight < 0 {
		bodyHeight = 0
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		nav,
		lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Top, body),
	)
}

func card(title string, lines ...string) string {
	content := cardTitleStyle.Render(title)
	for _, l := range lines {
		content += "\n" + dimStyle.Render(l)
	}
	return cardStyle.Render(content)
}
