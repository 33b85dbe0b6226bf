package storage

import "errors"

var (
	// ErrInvalidClient indicates a nil client or an empty name was registered.
	ErrInvalidClient = errors.New("invalid storage client")

	// ErrClientNotFound indicates that a requested client was not registered.
	ErrClientNotFound = errors.New("storage client not found")

	// ErrClientAlreadyExists indicates that the name is already in use.
	ErrClientAlreadyExists = errors.New("storage client already exists")
)
