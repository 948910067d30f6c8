// Package workflow implements the syllabus review state machine.
//
// Every transition is one row of a fixed table keyed by action. Applying an
// action checks, in order, that the version is in the row's source status
// (otherwise the caller acted on a stale view) and that the actor holds the
// row's role. Reviewer tasks (workflow items) are opened and resolved in the
// same transaction as the status change.
package workflow

import (
	"fmt"
	"time"

	"github.com/helixir/syllabus-review-service/internal/domain"
)

// Rule is one edge of the review graph.
type Rule struct {
	Action domain.Action
	From   domain.SyllabusStatus
	To     domain.SyllabusStatus
	Role   domain.Role
	// OwnerOnly restricts the action to the version's author.
	OwnerOnly bool
	// Stamp selects the timestamp set when the edge is taken, if any.
	Stamp func(*domain.SyllabusVersion) **time.Time
	// ResolveItem closes the open workflow item with this status.
	ResolveItem domain.WorkflowItemStatus
	// OpenItemFor opens a pending workflow item for this role.
	OpenItemFor domain.Role
}

func submittedAt(v *domain.SyllabusVersion) **time.Time { return &v.SubmittedAt }
func reviewedAt(v *domain.SyllabusVersion) **time.Time  { return &v.ReviewedAt }
func approvedAt(v *domain.SyllabusVersion) **time.Time  { return &v.ApprovedAt }
func rejectedAt(v *domain.SyllabusVersion) **time.Time  { return &v.RejectedAt }
func publishedAt(v *domain.SyllabusVersion) **time.Time { return &v.PublishedAt }

var rules = []Rule{
	{
		Action: domain.ActionSubmit, From: domain.SyllabusStatusDraft, To: domain.SyllabusStatusPendingReview,
		Role: domain.RoleLecturer, OwnerOnly: true, Stamp: submittedAt,
		OpenItemFor: domain.RoleHOD,
	},
	{
		Action: domain.ActionReviewApprove, From: domain.SyllabusStatusPendingReview, To: domain.SyllabusStatusPendingApproval,
		Role: domain.RoleHOD, Stamp: reviewedAt,
		ResolveItem: domain.WorkflowItemApproved, OpenItemFor: domain.RoleAcademicAffairs,
	},
	{
		Action: domain.ActionReject, From: domain.SyllabusStatusPendingReview, To: domain.SyllabusStatusRejected,
		Role: domain.RoleHOD, Stamp: rejectedAt,
		ResolveItem: domain.WorkflowItemRejected,
	},
	{
		Action: domain.ActionApprove, From: domain.SyllabusStatusPendingApproval, To: domain.SyllabusStatusApproved,
		Role: domain.RoleAcademicAffairs, Stamp: approvedAt,
		ResolveItem: domain.WorkflowItemApproved,
	},
	{
		Action: domain.ActionReject, From: domain.SyllabusStatusPendingApproval, To: domain.SyllabusStatusRejected,
		Role: domain.RoleAcademicAffairs, Stamp: rejectedAt,
		ResolveItem: domain.WorkflowItemRejected,
	},
	{
		Action: domain.ActionPublish, From: domain.SyllabusStatusApproved, To: domain.SyllabusStatusPublished,
		Role: domain.RoleRector, Stamp: publishedAt,
	},
	{
		Action: domain.ActionRevise, From: domain.SyllabusStatusRejected, To: domain.SyllabusStatusDraft,
		Role: domain.RoleLecturer, OwnerOnly: true,
	},
}

// Rules returns a copy of the transition table.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// IsKnownAction reports whether a appears in the transition table.
func IsKnownAction(a domain.Action) bool {
	for _, r := range rules {
		if r.Action == a {
			return true
		}
	}
	return false
}

// Lookup finds the edge for action from status. A known action that does not
// leave status yields a *domain.StaleStateError; an edge owned by another role
// yields a *domain.ForbiddenRoleError. Ownership is checked by the caller.
func Lookup(action domain.Action, status domain.SyllabusStatus, role domain.Role) (Rule, error) {
	var candidates []Rule
	for _, r := range rules {
		if r.Action == action {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return Rule{}, domain.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}

	for _, r := range candidates {
		if r.From != status {
			continue
		}
		if r.Role != role {
			return Rule{}, &domain.ForbiddenRoleError{Action: action, Role: role, Required: r.Role}
		}
		return r, nil
	}

	stale := &domain.StaleStateError{Entity: "syllabus", Action: action, Actual: status}
	if len(candidates) == 1 {
		stale.Expected = candidates[0].From
	} else {
		for _, r := range candidates {
			if r.Role == role {
				stale.Expected = r.From
			}
		}
	}
	return Rule{}, stale
}

// AvailableActions lists the actions role may take from status, ignoring
// ownership.
func AvailableActions(status domain.SyllabusStatus, role domain.Role) []domain.Action {
	var out []domain.Action
	for _, r := range rules {
		if r.From == status && r.Role == role {
			out = append(out, r.Action)
		}
	}
	return out
}
