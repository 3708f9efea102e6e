package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/authpanel/internal/api"
)

var errNoRoute = &api.TransportError{Op: "POST /api/login", Err: errors.New("connection refused")}

// stubAuth answers from canned values and records what it was sent.
type stubAuth struct {
	check    *api.CheckAuthResponse
	checkErr error

	user    *api.User
	authErr error

	logoutErr error

	logins    []api.LoginRequest
	registers []api.RegisterRequest
	logouts   int
	checks    int
}

func (s *stubAuth) CheckAuth(ctx context.Context) (*api.CheckAuthResponse, error) {
	s.checks++
	if s.checkErr != nil {
		return nil, s.checkErr
	}
	if s.check == nil {
		return &api.CheckAuthResponse{}, nil
	}
	return s.check, nil
}

func (s *stubAuth) Login(ctx context.Context, req api.LoginRequest) (*api.User, error) {
	s.logins = append(s.logins, req)
	return s.user, s.authErr
}

func (s *stubAuth) Register(ctx context.Context, req api.RegisterRequest) (*api.User, error) {
	s.registers = append(s.registers, req)
	return s.user, s.authErr
}

func (s *stubAuth) Logout(ctx context.Context) error {
	s.logouts++
	return s.logoutErr
}

// countingForgetter counts how often the stored session was dropped.
type countingForgetter struct {
	clears int
	err    error
}

func (f *countingForgetter) Clear() error {
	f.clears++
	return f.err
}

func alice() *api.User {
	return &api.User{Username: "alice", Email: "a@x.com"}
}

// anonymous returns a controller whose probe found no session.
func anonymous(t *testing.T, auth *stubAuth) *Controller {
	t.Helper()
	c := NewController(auth)
	c.CheckSession(context.Background())
	require.Equal(t, StatusAnonymous, c.State().Status)
	return c
}

// signedIn returns a controller that has logged in as alice.
func signedIn(t *testing.T, auth *stubAuth) *Controller {
	t.Helper()
	c := anonymous(t, auth)
	auth.user = alice()
	require.True(t, c.Login(context.Background()))
	require.Equal(t, StatusAuthenticated, c.State().Status)
	return c
}

func TestNewControllerIsChecking(t *testing.T) {
	c := NewController(&stubAuth{})
	s := c.State()
	assert.True(t, s.Checking)
	assert.Equal(t, StatusUnknown, s.Status)
	assert.Equal(t, ViewLoading, c.View())
}

func TestCheckSession(t *testing.T) {
	tests := []struct {
		name       string
		auth       *stubAuth
		wantStatus Status
		wantMode   Mode
	}{
		{
			name:       "active session",
			auth:       &stubAuth{check: &api.CheckAuthResponse{Authenticated: true, User: alice()}},
			wantStatus: StatusAuthenticated,
			wantMode:   ModeHome,
		},
		{
			name:       "no session",
			auth:       &stubAuth{check: &api.CheckAuthResponse{Authenticated: false}},
			wantStatus: StatusAnonymous,
			wantMode:   ModeLogin,
		},
		{
			name:       "authenticated without user",
			auth:       &stubAuth{check: &api.CheckAuthResponse{Authenticated: true}},
			wantStatus: StatusAnonymous,
			wantMode:   ModeLogin,
		},
		{
			name:       "network failure",
			auth:       &stubAuth{checkErr: &api.TransportError{Op: "GET /api/check-auth", Err: errors.New("timeout")}},
			wantStatus: StatusAnonymous,
			wantMode:   ModeLogin,
		},
		{
			name:       "server error",
			auth:       &stubAuth{checkErr: &api.RejectedError{Status: 500, Message: "boom"}},
			wantStatus: StatusAnonymous,
			wantMode:   ModeLogin,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.auth)
			c.CheckSession(context.Background())

			s := c.State()
			assert.False(t, s.Checking)
			assert.Equal(t, tt.wantStatus, s.Status)
			assert.Equal(t, tt.wantMode, s.Mode)
			// The probe never surfaces an error.
			assert.Empty(t, s.Err)
			if tt.wantStatus == StatusAuthenticated {
				assert.Equal(t, "alice", s.User.Username)
			} else {
				assert.Nil(t, s.User)
			}
		})
	}
}

func TestCheckSessionRunsOnce(t *testing.T) {
	auth := &stubAuth{}
	c := NewController(auth)
	c.CheckSession(context.Background())
	c.CheckSession(context.Background())
	assert.Nil(t, c.CheckSessionCall())
	assert.Equal(t, 1, auth.checks)
}

func TestUpdateField(t *testing.T) {
	c := anonymous(t, &stubAuth{})
	c.state.Err = "old error"

	c.UpdateField(FieldUsername, "a")
	assert.Empty(t, c.State().Err)
	c.UpdateField(FieldUsername, "al")
	c.UpdateField(FieldPassword, "pw")
	c.state.Err = "again"
	c.UpdateField(FieldEmail, "a@x.com")
	c.UpdateField(FieldUsername, "alice")

	s := c.State()
	assert.Equal(t, Form{Username: "alice", Email: "a@x.com", Password: "pw"}, s.Form)
	assert.Empty(t, s.Err)

	c.state.Err = "still"
	c.UpdateField(Field("nickname"), "x")
	assert.Empty(t, c.State().Err)
	assert.Equal(t, "alice", c.State().Form.Username)
}

func TestLoginSuccess(t *testing.T) {
	auth := &stubAuth{user: alice()}
	c := anonymous(t, auth)
	c.UpdateField(FieldUsername, "alice")
	c.UpdateField(FieldEmail, "left@over.com")
	c.UpdateField(FieldPassword, "secret")

	require.True(t, c.Submit(context.Background()))

	s := c.State()
	assert.Equal(t, StatusAuthenticated, s.Status)
	assert.Equal(t, ModeHome, s.Mode)
	assert.Equal(t, "alice", s.User.Username)
	assert.Equal(t, "a@x.com", s.User.Email)
	assert.True(t, s.Form.IsEmpty())
	assert.Empty(t, s.Err)
	assert.False(t, s.Pending)
	assert.Equal(t, ViewDashboard, c.View())

	// Email is never part of a login.
	require.Len(t, auth.logins, 1)
	assert.Equal(t, api.LoginRequest{Username: "alice", Password: "secret"}, auth.logins[0])
	assert.Empty(t, auth.registers)
}

func TestLoginRejected(t *testing.T) {
	auth := &stubAuth{authErr: &api.RejectedError{Status: http.StatusUnauthorized, Message: "invalid password"}}
	c := anonymous(t, auth)
	c.UpdateField(FieldUsername, "alice")
	c.UpdateField(FieldPassword, "wrong")

	require.True(t, c.Submit(context.Background()))

	s := c.State()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.Equal(t, ModeLogin, s.Mode)
	assert.Equal(t, "invalid password", s.Err)
	assert.Equal(t, Form{Username: "alice", Password: "wrong"}, s.Form)
	assert.False(t, s.Pending)
	assert.Equal(t, ViewLoginForm, c.View())
}

func TestLoginTransportFailure(t *testing.T) {
	auth := &stubAuth{authErr: errNoRoute}
	c := anonymous(t, auth)
	c.UpdateField(FieldUsername, "alice")
	c.UpdateField(FieldPassword, "secret")

	c.Submit(context.Background())

	s := c.State()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.Equal(t, ModeLogin, s.Mode)
	assert.Equal(t, ConnectionErrorText, s.Err)
	assert.Equal(t, Form{Username: "alice", Password: "secret"}, s.Form)
}

func TestRegisterDuplicate(t *testing.T) {
	auth := &stubAuth{authErr: &api.RejectedError{Status: http.StatusConflict, Message: "username taken"}}
	c := anonymous(t, auth)
	require.True(t, c.ToggleMode())
	c.UpdateField(FieldUsername, "alice")
	c.UpdateField(FieldEmail, "a@x.com")
	c.UpdateField(FieldPassword, "pw")

	require.True(t, c.Submit(context.Background()))

	s := c.State()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.Equal(t, ModeRegister, s.Mode)
	assert.Equal(t, "username taken", s.Err)
	assert.Equal(t, Form{Username: "alice", Email: "a@x.com", Password: "pw"}, s.Form)
	assert.Equal(t, ViewRegisterForm, c.View())

	require.Len(t, auth.registers, 1)
	assert.Equal(t, api.RegisterRequest{Username: "alice", Email: "a@x.com", Password: "pw"}, auth.registers[0])
	assert.Empty(t, auth.logins)
}

func TestRegisterSuccess(t *testing.T) {
	auth := &stubAuth{user: &api.User{Username: "bob", Email: "b@x.com"}}
	c := anonymous(t, auth)
	c.ToggleMode()
	c.UpdateField(FieldUsername, "bob")
	c.UpdateField(FieldEmail, "b@x.com")
	c.UpdateField(FieldPassword, "pw")

	require.True(t, c.Register(context.Background()))

	s := c.State()
	assert.Equal(t, StatusAuthenticated, s.Status)
	assert.Equal(t, ModeHome, s.Mode)
	assert.Equal(t, "bob", s.User.Username)
	assert.True(t, s.Form.IsEmpty())
}

func TestSuccessReplacesUserWholesale(t *testing.T) {
	auth := &stubAuth{check: &api.CheckAuthResponse{Authenticated: true, User: &api.User{
		Username: "alice", Email: "old@x.com",
		Extra: map[string]json.RawMessage{"id": json.RawMessage("7")},
	}}}
	c := NewController(auth)
	c.CheckSession(context.Background())
	require.Equal(t, "7", c.State().User.ExtraString("id"))

	auth.logoutErr = nil
	require.True(t, c.Logout(context.Background()))
	auth.user = &api.User{Username: "alice", Email: "new@x.com"}
	require.True(t, c.Login(context.Background()))

	u := c.State().User
	assert.Equal(t, "new@x.com", u.Email)
	assert.Empty(t, u.ExtraString("id"))
}

func TestStateUserIsACopy(t *testing.T) {
	c := signedIn(t, &stubAuth{})
	u := c.State().User
	u.Username = "mallory"
	assert.Equal(t, "alice", c.State().User.Username)
}

func TestSubmitIgnoredWhilePending(t *testing.T) {
	auth := &stubAuth{user: alice()}
	c := anonymous(t, auth)
	c.UpdateField(FieldUsername, "alice")
	c.UpdateField(FieldPassword, "secret")

	first, ok := c.SubmitCall()
	require.True(t, ok)
	assert.True(t, c.State().Pending)

	second, ok := c.SubmitCall()
	assert.False(t, ok)
	assert.Nil(t, second)
	assert.False(t, c.ToggleMode())

	c.Apply(first(context.Background()))
	assert.False(t, c.State().Pending)
	assert.Equal(t, StatusAuthenticated, c.State().Status)
	assert.Len(t, auth.logins, 1)
}

func TestSubmitClearsPreviousError(t *testing.T) {
	auth := &stubAuth{authErr: &api.RejectedError{Status: 401, Message: "invalid password"}}
	c := anonymous(t, auth)
	c.Submit(context.Background())
	require.Equal(t, "invalid password", c.State().Err)

	call, ok := c.SubmitCall()
	require.True(t, ok)
	assert.Empty(t, c.State().Err)
	c.Apply(call(context.Background()))
	assert.Equal(t, "invalid password", c.State().Err)
}

func TestSubmitRefusedBeforeProbeAndWhenSignedIn(t *testing.T) {
	c := NewController(&stubAuth{})
	_, ok := c.SubmitCall()
	assert.False(t, ok, "probe still running")

	c = signedIn(t, &stubAuth{})
	_, ok = c.LoginCall()
	assert.False(t, ok)
	_, ok = c.RegisterCall()
	assert.False(t, ok)
}

func TestLogoutConvergesRegardlessOfResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server success", nil},
		{"server error", &api.RejectedError{Status: 500, Message: "boom"}},
		{"transport failure", &api.TransportError{Op: "POST /api/logout", Err: errors.New("connection reset")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuth{}
			c := signedIn(t, auth)
			c.UpdateField(FieldUsername, "typed on the dashboard")
			auth.logoutErr = tt.err

			require.True(t, c.Logout(context.Background()))

			s := c.State()
			assert.Equal(t, StatusAnonymous, s.Status)
			assert.Equal(t, ModeLogin, s.Mode)
			assert.True(t, s.Form.IsEmpty())
			assert.Empty(t, s.Err)
			assert.Nil(t, s.User)
			assert.False(t, s.Pending)
			assert.Equal(t, ViewLoginForm, c.View())
			assert.Equal(t, 1, auth.logouts)
		})
	}
}

func TestLogoutForgetsStoredSession(t *testing.T) {
	for _, logoutErr := range []error{nil, &api.RejectedError{Status: 502, Message: "Bad Gateway"}} {
		auth := &stubAuth{}
		c := signedIn(t, auth)
		forget := &countingForgetter{}
		c.ForgetOnLogout(forget)
		auth.logoutErr = logoutErr

		require.True(t, c.Logout(context.Background()))
		assert.Equal(t, 1, forget.clears)
		assert.Equal(t, StatusAnonymous, c.State().Status)
	}
}

func TestLogoutSignsOutWhenForgettingFails(t *testing.T) {
	auth := &stubAuth{}
	c := signedIn(t, auth)
	c.ForgetOnLogout(&countingForgetter{err: errors.New("disk full")})

	require.True(t, c.Logout(context.Background()))
	assert.Equal(t, ViewLoginForm, c.View())
}

func TestLogoutRefusedWhenAnonymous(t *testing.T) {
	auth := &stubAuth{}
	c := anonymous(t, auth)
	forget := &countingForgetter{}
	c.ForgetOnLogout(forget)
	assert.False(t, c.Logout(context.Background()))
	assert.Zero(t, auth.logouts)
	assert.Zero(t, forget.clears)
}

func TestToggleMode(t *testing.T) {
	c := anonymous(t, &stubAuth{})
	c.UpdateField(FieldUsername, "alice")
	c.state.Err = "invalid password"

	require.True(t, c.ToggleMode())
	s := c.State()
	assert.Equal(t, ModeRegister, s.Mode)
	assert.True(t, s.Form.IsEmpty())
	assert.Empty(t, s.Err)
	assert.Equal(t, ViewRegisterForm, c.View())

	c.UpdateField(FieldEmail, "a@x.com")
	require.True(t, c.ToggleMode())
	s = c.State()
	assert.Equal(t, ModeLogin, s.Mode)
	assert.True(t, s.Form.IsEmpty())
	assert.Empty(t, s.Err)
	assert.Equal(t, StatusAnonymous, s.Status)
}

func TestToggleModeRefused(t *testing.T) {
	c := NewController(&stubAuth{})
	assert.False(t, c.ToggleMode(), "while checking")

	c = signedIn(t, &stubAuth{})
	before := c.State()
	assert.False(t, c.ToggleMode())
	after := c.State()
	assert.Equal(t, before.Mode, after.Mode)
	assert.Equal(t, ModeHome, after.Mode)
	assert.Equal(t, StatusAuthenticated, after.Status)
}

func TestApplyNil(t *testing.T) {
	c := anonymous(t, &stubAuth{})
	before := c.State()
	c.Apply(nil)
	assert.Equal(t, before, c.State())
}
