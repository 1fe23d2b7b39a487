package tokens

import "errors"

var (
	// ErrNotConnected means the user has no usable grant and must connect.
	ErrNotConnected = errors.New("tokens: quickbooks not connected")
	// ErrUpstreamRejected means the refresh token was refused; the connection
	// has been marked disconnected.
	ErrUpstreamRejected = errors.New("tokens: refresh token rejected")
	// ErrRefreshFailed wraps transient refresh failures. The connection stays.
	ErrRefreshFailed = errors.New("tokens: refresh failed")
	// ErrInvalidState is returned for unknown, expired or reused OAuth states.
	ErrInvalidState = errors.New("tokens: invalid oauth state")
)
