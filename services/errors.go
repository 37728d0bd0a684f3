package services

import "errors"

// Per-operation errors surfaced to callers. Nothing here is fatal to the
// process; the service keeps serving other plans and learners.
var (
	ErrInvalidFact            = errors.New("invalid fact")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrRetakeNotAllowed       = errors.New("retake not allowed")
	ErrInvalidRule            = errors.New("invalid rule")
	ErrPlanNotReadyToComplete = errors.New("plan not ready to complete")
	ErrNotFound               = errors.New("record not found")
)
