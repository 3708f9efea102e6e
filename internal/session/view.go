package session

// View is what the screen shows for a given State.
type View int

const (
	ViewLoading View = iota
	ViewLoginForm
	ViewRegisterForm
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewLoginForm:
		return "login"
	case ViewRegisterForm:
		return "register"
	case ViewDashboard:
		return "dashboard"
	}
	return "loading"
}

// Derive maps a state to its view. It has no side effects.
//
//	Checking                 -> ViewLoading
//	Authenticated            -> ViewDashboard
//	Anonymous, ModeRegister  -> ViewRegisterForm
//	Anonymous, otherwise     -> ViewLoginForm
func Derive(s State) View {
	switch {
	case s.Checking:
		return ViewLoading
	case s.Status == StatusAuthenticated && s.User != nil:
		return ViewDashboard
	case s.Mode == ModeRegister:
		return ViewRegisterForm
	default:
		return ViewLoginForm
	}
}

// Fields lists the inputs a form view shows, in tab order.
func Fields(v View) []Field {
	switch v {
	case ViewLoginForm:
		return []Field{FieldUsername, FieldPassword}
	case ViewRegisterForm:
		return []Field{FieldUsername, FieldEmail, FieldPassword}
	}
	return nil
}
