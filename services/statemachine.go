package services

import (
	"fmt"
	"time"

	planModels "comply/models/plan"
)

// Plan transition actions
const (
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionFinalize = "finalize"
	ActionReject   = "reject"
	ActionComplete = "complete"
	ActionArchive  = "archive"
)

type planTransition struct {
	from string
	to   string
}

// Single linear path, no regressions except reject (approving back to
// draft). Archive is handled separately: any non-archived state may be
// archived directly as an administrative abort.
var planTransitions = map[string]planTransition{
	ActionSubmit:   {planModels.StatusDraft, planModels.StatusPending},
	ActionApprove:  {planModels.StatusPending, planModels.StatusApproving},
	ActionFinalize: {planModels.StatusApproving, planModels.StatusActive},
	ActionReject:   {planModels.StatusApproving, planModels.StatusDraft},
	ActionComplete: {planModels.StatusActive, planModels.StatusCompleted},
}

// NextPlanState resolves the target state for an action, rejecting
// anything outside the explicit adjacency list.
func NextPlanState(current, action string) (string, error) {
	if action == ActionArchive {
		if current == planModels.StatusArchived {
			return "", fmt.Errorf("%w: plan is already archived", ErrInvalidTransition)
		}
		return planModels.StatusArchived, nil
	}
	t, ok := planTransitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if t.from != current {
		return "", fmt.Errorf("%w: cannot %s a plan in state %s", ErrInvalidTransition, action, current)
	}
	return t.to, nil
}

// CertificateStatusAt resolves the time-driven certificate status for the
// given instant. Only VALID and EXPIRING move with time; REVOKED and
// EXPIRED are never revisited here.
func CertificateStatusAt(status string, expireAt *time.Time, now time.Time, graceDays int) string {
	if expireAt == nil {
		return status // permanent validity
	}
	switch status {
	case planModels.CertValid, planModels.CertExpiring:
		if !now.Before(*expireAt) {
			return planModels.CertExpired
		}
		if !now.Before(expireAt.AddDate(0, 0, -graceDays)) {
			return planModels.CertExpiring
		}
		return planModels.CertValid
	}
	return status
}
