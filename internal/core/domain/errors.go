package domain

import "errors"

var (
	ErrMissingResourceID = errors.New("missing resource id")
	ErrEmptyMessage      = errors.New("empty message")
	ErrForbidden         = errors.New("forbidden")
	ErrUnknownAction     = errors.New("unknown action")
	ErrBayNotFound       = errors.New("service bay not found")
)
