package db

import "github.com/pkg/errors"

// ErrNotFound is returned when a run has no stored schedule.
var ErrNotFound = errors.New("not found")
