package domain

import "errors"

var (
	// ErrPermissionDenied is returned when the face client refuses access to
	// the microphone, camera or screen.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotSupported is returned when the face client has no such device.
	ErrNotSupported = errors.New("not supported")
	// ErrBusy is returned when a connect is requested while one is in flight.
	ErrBusy = errors.New("session is connecting or closing")
	// ErrNotConnected is returned when an operation needs an active session.
	ErrNotConnected = errors.New("session is not connected")
	// ErrMediaTimeout is returned when the face client does not answer a
	// media request in time.
	ErrMediaTimeout = errors.New("media request timed out")
	// ErrInvalidCredentials is returned when a device serial number and
	// secret do not match a registered device.
	ErrInvalidCredentials = errors.New("invalid device credentials")
)
