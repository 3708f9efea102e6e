package form

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/authpanel/internal/render"
	"github.com/fragmede/authpanel/internal/session"
	"github.com/fragmede/authpanel/internal/ui/messages"
)

const inputWidth = 32

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).
			Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#FF5F5F")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).
			Padding(1, 0)
	boxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).Padding(0, 2)
)

var (
	labels = map[session.Field]string{
		session.FieldUsername: "Username",
		session.FieldEmail:    "Email",
		session.FieldPassword: "Password",
	}
	placeholders = map[session.Field]string{
		session.FieldUsername: "Enter your username",
		session.FieldEmail:    "Enter your email",
		session.FieldPassword: "Enter your password",
	}
)

// Model is the login/register form. Every edit goes through the
// controller; the inputs only hold cursor and echo state.
type Model struct {
	ctrl       *session.Controller
	view       session.View
	fields     []session.Field
	inputs     []textinput.Model
	focusIndex int
	width      int
	height     int
}

// New builds the form for the controller's current view, filled from its
// form buffer.
func New(ctrl *session.Controller) Model {
	state := ctrl.State()
	view := session.Derive(state)
	fields := session.Fields(view)

	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		in := textinput.New()
		in.Placeholder = placeholders[f]
		in.Width = inputWidth
		in.CharLimit = 256
		if f == session.FieldPassword {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		in.SetValue(state.Form.Get(f))
		inputs[i] = in
	}

	m := Model{
		ctrl:   ctrl,
		view:   view,
		fields: fields,
		inputs: inputs,
	}
	m.setFocus(0)
	return m
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Focused returns the field with the cursor.
func (m Model) Focused() session.Field {
	if len(m.fields) == 0 {
		return ""
	}
	return m.fields[m.focusIndex]
}

// Value returns what an input currently shows.
func (m Model) Value(f session.Field) string {
	for i, field := range m.fields {
		if field == f {
			return m.inputs[i].Value()
		}
	}
	return ""
}

// Sync copies the controller's form buffer into the inputs.
func (m *Model) Sync() {
	form := m.ctrl.State().Form
	for i, f := range m.fields {
		if v := form.Get(f); m.inputs[i].Value() != v {
			m.inputs[i].SetValue(v)
		}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if len(m.inputs) == 0 {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "tab", "down":
			m.setFocus(m.focusIndex + 1)
			return m, nil
		case "shift+tab", "up":
			m.setFocus(m.focusIndex - 1)
			return m, nil
		case "ctrl+r":
			// The parent rebuilds the form when the view changes.
			m.ctrl.ToggleMode()
			return m, nil
		case "ctrl+s":
			return m, m.submit()
		case "enter":
			if m.Focused() == session.FieldPassword {
				return m, m.submit()
			}
			m.setFocus(m.focusIndex + 1)
			return m, nil
		}
	}

	field := m.fields[m.focusIndex]
	before := m.inputs[m.focusIndex].Value()
	var cmd tea.Cmd
	m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
	if after := m.inputs[m.focusIndex].Value(); after != before {
		m.ctrl.UpdateField(field, after)
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	call, ok := m.ctrl.SubmitCall()
	if !ok {
		return nil
	}
	return messages.Perform(call)
}

func (m *Model) setFocus(i int) {
	n := len(m.inputs)
	m.focusIndex = ((i % n) + n) % n
	for j := range m.inputs {
		if j == m.focusIndex {
			m.inputs[j].Focus()
			m.inputs[j].PromptStyle = focusedStyle
		} else {
			m.inputs[j].Blur()
			m.inputs[j].PromptStyle = lipgloss.NewStyle()
		}
	}
}

// View renders the form.
func (m Model) View() string {
	state := m.ctrl.State()
	register := m.view == session.ViewRegisterForm

	var sb strings.Builder
	if register {
		sb.WriteString(titleStyle.Render("Create Account"))
	} else {
		sb.WriteString(titleStyle.Render("Welcome Back"))
	}
	sb.WriteString("\n")

	if state.Err != "" {
		sb.WriteString(errorStyle.Render(render.Wrap(state.Err, inputWidth)))
		sb.WriteString("\n\n")
	}

	for i, f := range m.fields {
		sb.WriteString(labelStyle.Render(labels[f]))
		sb.WriteString("\n")
		sb.WriteString(m.inputs[i].View())
		sb.WriteString("\n\n")
	}

	switch {
	case state.Pending && register:
		sb.WriteString("Creating account...")
	case state.Pending:
		sb.WriteString("Logging in...")
	case register:
		sb.WriteString(focusedStyle.Render("Enter") + " to register")
	default:
		sb.WriteString(focusedStyle.Render("Enter") + " to log in")
	}
	sb.WriteString("\n\n")

	if register {
		sb.WriteString(dimStyle.Render("Already have an account? ") + focusedStyle.Render("Ctrl+R") + dimStyle.Render(" to log in"))
	} else {
		sb.WriteString(dimStyle.Render("Don't have an account? ") + focusedStyle.Render("Ctrl+R") + dimStyle.Render(" to register"))
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("Tab next field · Esc quit"))

	content := boxStyle.Render(sb.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
