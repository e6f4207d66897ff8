package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrLockHeld          = errors.New("lock already held")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrBadExecutorResult = errors.New("malformed executor result")
	ErrContextDone       = errors.New("context cancelled")
)
