package ui

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/authpanel/internal/api"
	"github.com/fragmede/authpanel/internal/config"
	"github.com/fragmede/authpanel/internal/session"
	"github.com/fragmede/authpanel/internal/ui/dashboard"
	"github.com/fragmede/authpanel/internal/ui/form"
	"github.com/fragmede/authpanel/internal/ui/messages"
	"github.com/fragmede/authpanel/internal/ui/statusbar"
)

// HealthChecker probes whether the server is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// App is the root Bubble Tea model. What it shows is session.Derive of the
// controller's state; it keeps no view state of its own beyond input
// widgets and sizes.
type App struct {
	ctrl   *session.Controller
	health HealthChecker
	cfg    config.Config

	// view is the last derived view; the child models below are rebuilt
	// when it changes.
	view      session.View
	form      form.Model
	dashboard dashboard.Model
	spinner   spinner.Model
	statusBar statusbar.Model

	width  int
	height int
}

// NewApp creates the root application model. health may be nil.
func NewApp(cfg config.Config, ctrl *session.Controller, health HealthChecker) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	a := &App{
		ctrl:      ctrl,
		health:    health,
		cfg:       cfg,
		view:      session.ViewLoading,
		spinner:   sp,
		statusBar: statusbar.New(hostOf(cfg.BaseURL)),
	}
	a.sync()
	return a
}

// Init starts the session probe.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.spinner.Tick,
		messages.Perform(a.ctrl.CheckSessionCall()),
		a.checkHealth(false),
	)
}

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.statusBar.SetSize(msg.Width)
		a.resize()
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case session.Outcome:
		a.ctrl.Apply(msg)
		cmd := a.afterOutcome(msg)
		a.sync()
		return a, cmd

	case spinner.TickMsg:
		if a.view != session.ViewLoading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.HealthTickMsg:
		return a, a.checkHealth(false)

	case messages.HealthMsg:
		if msg.Err != nil && !a.statusBar.Offline() {
			log.Printf("server unreachable: %v", msg.Err)
		}
		a.statusBar.SetOffline(msg.Err != nil)
		if msg.Once {
			return a, nil
		}
		return a, tea.Tick(a.cfg.HealthInterval, func(time.Time) tea.Msg {
			return messages.HealthTickMsg{}
		})
	}

	// Everything else (cursor blink and the like) goes to the form.
	if a.isForm() {
		var cmd tea.Cmd
		a.form, cmd = a.form.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	a.statusBar, cmd = a.statusBar.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, Keys.ForceQuit) {
		return tea.Quit
	}

	switch a.view {
	case session.ViewLoading:
		if key.Matches(msg, Keys.Quit, Keys.Back) {
			return tea.Quit
		}
		return nil

	case session.ViewDashboard:
		switch {
		case key.Matches(msg, Keys.Quit, Keys.Back):
			return tea.Quit
		case key.Matches(msg, Keys.Logout):
			call, ok := a.ctrl.LogoutCall()
			if !ok {
				return nil
			}
			a.statusBar.SetStatus("", false)
			return messages.Perform(call)
		}
		return nil
	}

	// Text input views: only esc leaves.
	if key.Matches(msg, Keys.Back) {
		return tea.Quit
	}
	var cmd tea.Cmd
	a.form, cmd = a.form.Update(msg)
	a.sync()
	return cmd
}

// afterOutcome reports the transition in the status bar. A submission that
// never reached the server triggers one extra health probe.
func (a *App) afterOutcome(o session.Outcome) tea.Cmd {
	state := a.ctrl.State()
	switch o := o.(type) {
	case session.ProbeOutcome:
		if state.User != nil {
			a.statusBar.SetStatus("Session restored", false)
		}
	case session.AuthOutcome:
		if o.Err == nil && state.User != nil {
			if o.Mode == session.ModeRegister {
				a.statusBar.SetStatus("Account created", false)
			} else {
				a.statusBar.SetStatus("Logged in", false)
			}
			return nil
		}
		var transport *api.TransportError
		if errors.As(o.Err, &transport) {
			return a.checkHealth(true)
		}
	case session.LogoutOutcome:
		a.statusBar.SetStatus("Logged out", false)
	}
	return nil
}

// sync rebuilds child models when the derived view changed and mirrors the
// controller's form buffer into the inputs.
func (a *App) sync() {
	state := a.ctrl.State()
	v := session.Derive(state)

	if v != a.view {
		switch v {
		case session.ViewLoginForm, session.ViewRegisterForm:
			a.form = form.New(a.ctrl)
		case session.ViewDashboard:
			a.dashboard = dashboard.New(a.ctrl)
		}
		a.view = v
		a.resize()
	} else if a.isForm() {
		a.form.Sync()
	}

	if state.User != nil {
		a.statusBar.SetUser(state.User.Username)
	} else {
		a.statusBar.SetUser("")
	}
}

func (a *App) resize() {
	contentHeight := a.height - 1 // Reserve 1 line for status bar.
	switch a.view {
	case session.ViewLoginForm, session.ViewRegisterForm:
		a.form.SetSize(a.width, contentHeight)
	case session.ViewDashboard:
		a.dashboard.SetSize(a.width, contentHeight)
	}
}

func (a *App) isForm() bool {
	return a.view == session.ViewLoginForm || a.view == session.ViewRegisterForm
}

// checkHealth probes the server. Periodic probes keep the tick loop going;
// once probes only update the badge.
func (a *App) checkHealth(once bool) tea.Cmd {
	if a.health == nil {
		return nil
	}
	health := a.health
	return func() tea.Msg {
		return messages.HealthMsg{Err: health.Health(context.Background()), Once: once}
	}
}

// View renders the application.
func (a *App) View() string {
	var content string
	switch a.view {
	case session.ViewLoading:
		content = a.loadingView()
	case session.ViewDashboard:
		content = a.dashboard.View()
	case session.ViewLoginForm, session.ViewRegisterForm:
		content = a.form.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, a.statusBar.View())
}

func (a *App) loadingView() string {
	text := a.spinner.View() + " " + LoadingStyle.Render("Loading...")
	return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, text)
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
