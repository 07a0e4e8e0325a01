package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Document stores return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: document does not exist in the collection
//   - ErrConflict: operation collides with one already in flight
//   - ErrUnavailable: the store could not be reached or refused the call
//   - ErrInvalidState: entity in wrong state for requested operation
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
