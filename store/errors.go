package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist in the caller's workspace.
	ErrNotFound = errors.New("record not found")
	// ErrNotEditable is returned when a post has already left the scheduled state.
	ErrNotEditable = errors.New("post is no longer scheduled")
)
