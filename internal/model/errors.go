package model

import "errors"

var (
	// ErrPermissionDenied aborts the camera flow without touching the screen.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrPickerCancelled means the user dismissed the picker.
	ErrPickerCancelled = errors.New("picker cancelled")
	// ErrTransport covers unreachable endpoints, non-2xx statuses and
	// unreadable bodies. Callers only ever show a generic failure for it.
	ErrTransport = errors.New("prediction transport failure")
	// ErrMalformedResponse is reported when a 2xx body lacks a usable class or confidence.
	ErrMalformedResponse = errors.New("malformed prediction response")
	// ErrSuperseded is returned when a newer submission was issued before this one resolved.
	ErrSuperseded = errors.New("prediction superseded by a newer submission")
)
