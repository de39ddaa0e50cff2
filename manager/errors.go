package manager

import "fmt"

// RegistrationError classifies why Register rejected a handle.
type RegistrationError int

const (
	// ErrInvalidState means the handle was not in the Ok state.
	ErrInvalidState RegistrationError = iota
	// ErrAlreadyRegistered means path is already mapped to a different
	// resource's UUID.
	ErrAlreadyRegistered
	// ErrUnableToRegister means the caller-supplied onRegister hook
	// rejected the registration (e.g. it could not persist the data).
	ErrUnableToRegister
)

func (e RegistrationError) String() string {
	switch e {
	case ErrInvalidState:
		return "invalid state"
	case ErrAlreadyRegistered:
		return "already registered"
	case ErrUnableToRegister:
		return "unable to register"
	default:
		return "unknown registration error"
	}
}

// Error implements error so RegistrationError can be returned directly
// from Register.
func (e RegistrationError) Error() string {
	return fmt.Sprintf("manager: registration rejected: %s", e.String())
}
