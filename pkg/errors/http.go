package errors

// HTTPError is an error with a stable code the API returns to clients.
type HTTPError struct {
	Code       string
	Message    string
	StatusCode int
	// MessageKey is an optional localization key for the client.
	MessageKey string
}

func NewHTTPError(code string, statusCode int, message string) *HTTPError {
	return &HTTPError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithKey returns a copy of e carrying key.
func (e *HTTPError) WithKey(key string) *HTTPError {
	cp := *e
	cp.MessageKey = key
	return &cp
}

func (e HTTPError) Error() string {
	return e.Code + " - " + e.Message
}
