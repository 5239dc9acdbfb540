package router

import (
	"errors"
	"fmt"
)

// ErrRefreshUnavailable is returned when the backend answers a refresh
// request with a non 2xx status or a non Ok response code.
var ErrRefreshUnavailable = errors.New("route refresh unavailable")

// RefreshError describes a failed refresh request.
type RefreshError struct {
	Message string
	Cause   error
}

func (e *RefreshError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *RefreshError) Unwrap() error { return e.Cause }
