// Package session holds the client's authentication state machine.
//
// Operations that talk to the server are split in two. Starting one returns
// a Call built from a snapshot of the current state; the Call only does
// network I/O. Its Outcome is handed back to Apply, which is the only place
// the state changes. A UI runs Calls off its event loop and Applies the
// outcomes on it; the blocking helpers (Login, Logout, ...) do both in one go.
package session

import (
	"context"
	"errors"
	"log"

	"github.com/fragmede/authpanel/internal/api"
)

// ConnectionErrorText is shown when a submission never reached the server.
const ConnectionErrorText = "Connection error. Please try again."

// Authenticator is the remote auth API.
type Authenticator interface {
	CheckAuth(ctx context.Context) (*api.CheckAuthResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.User, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.User, error)
	Logout(ctx context.Context) error
}

// Forgetter drops the locally stored session, such as persisted cookies.
type Forgetter interface {
	Clear() error
}

// Call performs the network half of an operation.
type Call func(ctx context.Context) Outcome

// Outcome is the result of a Call, applied with Controller.Apply.
type Outcome interface {
	apply(c *Controller)
}

// ProbeOutcome is the answer to the startup session check.
type ProbeOutcome struct {
	User *api.User
	Err  error
}

// AuthOutcome is the answer to a login or register submission.
type AuthOutcome struct {
	Mode Mode
	User *api.User
	Err  error
}

// LogoutOutcome is the answer to a logout. ClearErr is set when the local
// session could not be forgotten.
type LogoutOutcome struct {
	Err      error
	ClearErr error
}

// Controller owns the session state. It is not safe for concurrent use;
// every method must be called from the same event loop.
type Controller struct {
	auth   Authenticator
	forget Forgetter
	state  State
	probed bool
}

// NewController returns a controller waiting for its startup probe.
func NewController(auth Authenticator) *Controller {
	return &Controller{
		auth: auth,
		state: State{
			Status:   StatusUnknown,
			Mode:     ModeLogin,
			Checking: true,
		},
	}
}

// ForgetOnLogout makes every logout also clear f, whether or not the server
// acknowledged it.
func (c *Controller) ForgetOnLogout(f Forgetter) {
	c.forget = f
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	s.User = s.User.Clone()
	return s
}

// View is Derive of the current state.
func (c *Controller) View() View {
	return Derive(c.state)
}

// Apply records the outcome of a Call.
func (c *Controller) Apply(o Outcome) {
	if o == nil {
		return
	}
	o.apply(c)
}

// CheckSessionCall starts the startup probe. Only the first call returns a
// Call; the probe runs once per controller.
func (c *Controller) CheckSessionCall() Call {
	if c.probed {
		return nil
	}
	c.probed = true
	c.state.Checking = true

	auth := c.auth
	return func(ctx context.Context) Outcome {
		resp, err := auth.CheckAuth(ctx)
		if err != nil {
			return ProbeOutcome{Err: err}
		}
		if !resp.Authenticated {
			return ProbeOutcome{}
		}
		if resp.User == nil {
			return ProbeOutcome{Err: errors.New("server reported a session without a user")}
		}
		return ProbeOutcome{User: resp.User}
	}
}

// SubmitCall starts a login or register depending on the current mode.
func (c *Controller) SubmitCall() (Call, bool) {
	if c.state.Mode == ModeRegister {
		return c.RegisterCall()
	}
	return c.LoginCall()
}

// LoginCall starts a login with the form's username and password. It
// returns false while a submission is in flight or when not anonymous.
func (c *Controller) LoginCall() (Call, bool) {
	if !c.canSubmit() {
		return nil, false
	}
	req := api.LoginRequest{
		Username: c.state.Form.Username,
		Password: c.state.Form.Password,
	}
	c.begin()

	auth := c.auth
	return func(ctx context.Context) Outcome {
		user, err := auth.Login(ctx, req)
		return AuthOutcome{Mode: ModeLogin, User: user, Err: err}
	}, true
}

// RegisterCall starts a registration with the whole form.
func (c *Controller) RegisterCall() (Call, bool) {
	if !c.canSubmit() {
		return nil, false
	}
	req := api.RegisterRequest{
		Username: c.state.Form.Username,
		Email:    c.state.Form.Email,
		Password: c.state.Form.Password,
	}
	c.begin()

	auth := c.auth
	return func(ctx context.Context) Outcome {
		user, err := auth.Register(ctx, req)
		return AuthOutcome{Mode: ModeRegister, User: user, Err: err}
	}, true
}

// LogoutCall starts a logout. Only valid while authenticated.
func (c *Controller) LogoutCall() (Call, bool) {
	if c.state.Status != StatusAuthenticated || c.state.Pending {
		return nil, false
	}
	c.state.Pending = true

	auth, forget := c.auth, c.forget
	return func(ctx context.Context) Outcome {
		out := LogoutOutcome{Err: auth.Logout(ctx)}
		if forget != nil {
			out.ClearErr = forget.Clear()
		}
		return out
	}, true
}

// UpdateField edits the form. Any edit dismisses the current error.
func (c *Controller) UpdateField(name Field, value string) {
	c.state.Form.set(name, value)
	c.state.Err = ""
}

// ToggleMode switches between the login and register forms and clears
// them. It is refused while authenticated, while the probe is running and
// while a submission is in flight.
func (c *Controller) ToggleMode() bool {
	if c.state.Status != StatusAnonymous || c.state.Checking || c.state.Pending {
		return false
	}
	if c.state.Mode == ModeRegister {
		c.state.Mode = ModeLogin
	} else {
		c.state.Mode = ModeRegister
	}
	c.state.Form = Form{}
	c.state.Err = ""
	return true
}

// CheckSession runs the startup probe and applies its outcome.
func (c *Controller) CheckSession(ctx context.Context) {
	if call := c.CheckSessionCall(); call != nil {
		c.Apply(call(ctx))
	}
}

// Submit runs SubmitCall to completion. It reports whether anything was sent.
func (c *Controller) Submit(ctx context.Context) bool {
	return c.run(ctx, c.SubmitCall)
}

// Login runs LoginCall to completion.
func (c *Controller) Login(ctx context.Context) bool {
	return c.run(ctx, c.LoginCall)
}

// Register runs RegisterCall to completion.
func (c *Controller) Register(ctx context.Context) bool {
	return c.run(ctx, c.RegisterCall)
}

// Logout runs LogoutCall to completion.
func (c *Controller) Logout(ctx context.Context) bool {
	return c.run(ctx, c.LogoutCall)
}

func (c *Controller) run(ctx context.Context, start func() (Call, bool)) bool {
	call, ok := start()
	if !ok {
		return false
	}
	c.Apply(call(ctx))
	return true
}

func (c *Controller) canSubmit() bool {
	return c.state.Status == StatusAnonymous && !c.state.Checking && !c.state.Pending
}

func (c *Controller) begin() {
	c.state.Pending = true
	c.state.Err = ""
}

func (c *Controller) authenticate(user *api.User) {
	c.state.Status = StatusAuthenticated
	c.state.User = user.Clone()
	c.state.Mode = ModeHome
	c.state.Form = Form{}
	c.state.Err = ""
}

func (c *Controller) signOut() {
	c.state.Status = StatusAnonymous
	c.state.User = nil
	c.state.Mode = ModeLogin
	c.state.Form = Form{}
	c.state.Err = ""
}

func (o ProbeOutcome) apply(c *Controller) {
	c.state.Checking = false
	if o.Err != nil {
		log.Printf("session check failed: %v", o.Err)
	}
	if o.User != nil {
		c.authenticate(o.User)
		return
	}
	c.signOut()
}

func (o AuthOutcome) apply(c *Controller) {
	c.state.Pending = false
	if o.Err == nil && o.User != nil {
		c.authenticate(o.User)
		return
	}

	var rejected *api.RejectedError
	if errors.As(o.Err, &rejected) {
		c.state.Err = rejected.Message
		return
	}
	log.Printf("%s failed: %v", o.Mode, o.Err)
	c.state.Err = ConnectionErrorText
}

func (o LogoutOutcome) apply(c *Controller) {
	c.state.Pending = false
	if o.Err != nil {
		log.Printf("logout failed: %v", o.Err)
	}
	if o.ClearErr != nil {
		log.Printf("clearing stored session: %v", o.ClearErr)
	}
	c.signOut()
}
