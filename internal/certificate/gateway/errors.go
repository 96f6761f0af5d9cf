package gateway

import (
	"errors"
	"fmt"
	"strings"

	"certvault/internal/certificate/models"
)

// ErrInvalidContentAddress is returned, before any request is made, for
// addresses without the content store's prefix.
var ErrInvalidContentAddress = errors.New("invalid content address")

// FailureCategory classifies why a single gateway attempt failed.
type FailureCategory string

const (
	FailureTimeout   FailureCategory = "timeout"
	FailureStatus    FailureCategory = "bad_status"
	FailureEmpty     FailureCategory = "empty_body"
	FailureTransport FailureCategory = "transport"
)

// Attempt records one failed gateway attempt.
type Attempt struct {
	Gateway    string
	Category   FailureCategory
	StatusCode int
	Err        error
}

func (a Attempt) String() string {
	switch a.Category {
	case FailureStatus:
		return fmt.Sprintf("%s: HTTP %d", a.Gateway, a.StatusCode)
	case FailureEmpty:
		return fmt.Sprintf("%s: empty body", a.Gateway)
	default:
		if a.Err != nil {
			return fmt.Sprintf("%s: %s: %v", a.Gateway, a.Category, a.Err)
		}
		return fmt.Sprintf("%s: %s", a.Gateway, a.Category)
	}
}

// AllGatewaysFailedError lists every gateway's failure, in the order tried.
type AllGatewaysFailedError struct {
	Address  models.ContentAddress
	Attempts []Attempt
}

func (e *AllGatewaysFailedError) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = a.String()
	}
	return fmt.Sprintf("all gateways failed for %s: %s", e.Address, strings.Join(reasons, "; "))
}
