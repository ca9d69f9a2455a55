// Package geomerr holds the error kinds shared by the geometry packages.
// Errors returned by fieldgrid packages wrap one of these, test with errors.Is.
package geomerr

import "errors"

var (
	// ErrEmptyInput is returned when zero points are given where at least one is required.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidGeometry is returned when a ring collapses to fewer than 3 distinct points
	// or carries non-finite coordinates.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrInvalidArgument is returned for out of range scalar parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoInscribedRectangleFound is returned when every rectangle candidate failed validation.
	ErrNoInscribedRectangleFound = errors.New("no inscribed rectangle found")
)
