package session

import "github.com/fragmede/authpanel/internal/api"

// Status is whether the client holds a server session.
type Status int

const (
	StatusUnknown Status = iota
	StatusAnonymous
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Mode is the screen the user is on. ModeHome is only reachable while
// authenticated.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
	ModeHome
)

func (m Mode) String() string {
	switch m {
	case ModeRegister:
		return "register"
	case ModeHome:
		return "home"
	}
	return "login"
}

// Field names a form input.
type Field string

const (
	FieldUsername Field = "username"
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
)

// Form is the draft of credentials the user is typing.
type Form struct {
	Username string
	Email    string
	Password string
}

// Get returns the value of a field.
func (f Form) Get(name Field) string {
	switch name {
	case FieldUsername:
		return f.Username
	case FieldEmail:
		return f.Email
	case FieldPassword:
		return f.Password
	}
	return ""
}

func (f *Form) set(name Field, value string) bool {
	switch name {
	case FieldUsername:
		f.Username = value
	case FieldEmail:
		f.Email = value
	case FieldPassword:
		f.Password = value
	default:
		return false
	}
	return true
}

// IsEmpty reports whether every field is blank.
func (f Form) IsEmpty() bool {
	return f == Form{}
}

// State is everything the views are drawn from.
type State struct {
	Status Status
	// User is set only while Status is StatusAuthenticated.
	User *api.User
	Mode Mode
	Form Form
	// Err is the message from the last failed submission.
	Err string
	// Checking is true until the startup probe has answered.
	Checking bool
	// Pending is true while a submission or logout is in flight.
	Pending bool
}
