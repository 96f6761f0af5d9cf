package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Ledger clients, content stores and
// mirror stores return these (optionally wrapped) so the verification service
// can translate them into coded errors or outcomes.
//
// For caller mistakes (malformed identity, empty fields) use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrQueueFull   = errors.New("queue full")
)
