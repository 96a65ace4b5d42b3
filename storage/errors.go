package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a key or record is absent. Backends translate their own
	// not found errors, such as badger.ErrKeyNotFound, into it.
	ErrNotFound = errors.New("key not found")

	// ErrNotOpen is returned by stores used after Close.
	ErrNotOpen = errors.New("store is not open")
)
