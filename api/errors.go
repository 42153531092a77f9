package api

import (
	"errors"
	"fmt"
)

// CodeUserNotFound is set on errors for a user the backend does not know
const CodeUserNotFound = "USER_NOT_FOUND"

var (
	// ErrUserNotFound is matched by 404 "User not found" responses
	ErrUserNotFound = errors.New("api: user not found")
	// ErrUnauthorized is matched by 401 responses
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrEmptyBaseURL is returned by New without a usable base url
	ErrEmptyBaseURL = errors.New("api: base url is empty")
)

// Error is a non-2xx response from the backend
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
	Code    string
}

// Error formats the method, path, status and message
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s %s: %d %s (%s)", e.Method, e.Path, e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Is lets errors.Is match ErrUserNotFound and ErrUnauthorized
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUserNotFound:
		return e.Code == CodeUserNotFound
	case ErrUnauthorized:
		return e.Status == 401
	}
	return false
}

// ErrInvalidBaseURL returns an error for a base url that does not parse
func ErrInvalidBaseURL(raw string, err error) error {
	return fmt.Errorf("api: invalid base url %q: %w", raw, err)
}

// ErrRequest wraps a transport failure
func ErrRequest(method, path string, err error) error {
	return fmt.Errorf("api: %s %s: %w", method, path, err)
}

// ErrDecode wraps a response body that is not the expected JSON
func ErrDecode(path string, err error) error {
	return fmt.Errorf("api: decode %s: %w", path, err)
}
