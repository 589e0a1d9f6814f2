package namecheck

import "errors"

var (
	ErrEmptyName   = errors.New("name is required")
	ErrTooShort    = errors.New("name is too short")
	ErrTooLong     = errors.New("name is too long")
	ErrInvalidName = errors.New("name is invalid")
	ErrBlockedName = errors.New("name is not allowed")
)

// MessageKey returns the client-side translation key for a validation
// error, or "" when err is not one.
func MessageKey(err error) string {
	switch {
	case errors.Is(err, ErrEmptyName):
		return "name_required"
	case errors.Is(err, ErrTooShort):
		return "name_too_short"
	case errors.Is(err, ErrTooLong):
		return "name_too_long"
	case errors.Is(err, ErrInvalidName):
		return "name_invalid"
	case errors.Is(err, ErrBlockedName):
		return "name_blocked"
	default:
		return ""
	}
}
