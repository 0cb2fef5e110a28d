package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: item not found")

	// ErrAlreadyExists is returned when a creation would overwrite an
	// existing row that must not be overwritten (e.g. a second RunMeta
	// for the same run).
	ErrAlreadyExists = errors.New("store: item already exists")
)
