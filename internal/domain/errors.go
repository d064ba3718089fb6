package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound         = errors.New("not found")
	ErrNoSteps          = errors.New("recipe has no steps")
	ErrNotSupported     = errors.New("capability not supported")
	ErrPermissionDenied = errors.New("microphone permission denied")
)
