package shared

import "errors"

// Error taxonomy shared by every domain package. Domain errors wrap one of
// these so transport layers can classify them with errors.Is.
var (
	// ErrNotFound indicates an unknown identity or resource.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates a business rule blocks the action.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness clash such as a second attendance mark for the day.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState indicates a lifecycle precondition was not met.
	ErrInvalidState = errors.New("invalid state")
	// ErrBadRequest indicates malformed input or a missing required association.
	ErrBadRequest = errors.New("bad request")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
