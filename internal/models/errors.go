package models

import (
	"errors"
	"fmt"
)

// ErrDuplicateEvent marks a redelivered event that has already been fully
// processed. Treated as success by consumers, never surfaced to callers.
var ErrDuplicateEvent = errors.New("duplicate event")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// InvalidStateTransitionError rejects a lifecycle operation whose source
// state does not allow it. User-correctable; state is left unchanged.
type InvalidStateTransitionError struct {
	CampaignID string
	From       CampaignStatus
	Operation  string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s campaign %s from status %q", e.Operation, e.CampaignID, e.From)
}

// IsInvalidStateTransition reports whether err is a rejected lifecycle transition.
func IsInvalidStateTransition(err error) bool {
	var e *InvalidStateTransitionError
	return errors.As(err, &e)
}

// ComplianceWriteFailureError wraps a failed compliance-critical write
// (blacklist persistence). It must propagate so the message transport
// redelivers the event.
type ComplianceWriteFailureError struct {
	PhoneNumber string
	Err         error
}

func (e *ComplianceWriteFailureError) Error() string {
	return fmt.Sprintf("compliance write failed for %s: %v", e.PhoneNumber, e.Err)
}

func (e *ComplianceWriteFailureError) Unwrap() error { return e.Err }

// IsComplianceWriteFailure reports whether err is a failed blacklist write.
func IsComplianceWriteFailure(err error) bool {
	var e *ComplianceWriteFailureError
	return errors.As(err, &e)
}
