package service

import "errors"

var (
	// ErrInvalidInput indicates a request payload that failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidScore indicates a malformed model output (probability outside
	// [0,1] or a required feature missing).
	ErrInvalidScore = errors.New("invalid model score input")

	// ErrSubjectNotFound indicates the subject is unknown to the directory.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrAssessmentNotFound indicates no matching ledger entry exists.
	ErrAssessmentNotFound = errors.New("assessment not found")

	// ErrLedgerCorrupted indicates the single-active invariant is broken.
	// This is a fatal internal error, not user-recoverable.
	ErrLedgerCorrupted = errors.New("prediction ledger corrupted: multiple active assessments")

	// ErrAlertNotFound indicates no alert exists with the given id.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidTransition indicates an illegal alert state change.
	ErrInvalidTransition = errors.New("invalid alert state transition")

	// ErrAlertClosed indicates the alert already reached a terminal state.
	ErrAlertClosed = errors.New("alert is closed")

	// ErrInterventionNotFound indicates no intervention exists with the given id.
	ErrInterventionNotFound = errors.New("intervention not found")

	// ErrAlreadyFinalized indicates the intervention outcome was already set.
	ErrAlreadyFinalized = errors.New("intervention outcome already finalized")

	// ErrFollowUpNotFound indicates the subject has no rollup record yet.
	ErrFollowUpNotFound = errors.New("follow-up record not found")
)
