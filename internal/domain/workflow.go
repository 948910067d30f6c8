package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the organisational role of an actor.
type Role string

const (
	RoleLecturer        Role = "LECTURER"
	RoleHOD             Role = "HOD"
	RoleAcademicAffairs Role = "ACADEMIC_AFFAIRS"
	RoleRector          Role = "RECTOR"
)

// ParseRole normalizes a role string. Unknown roles return false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleLecturer, RoleHOD, RoleAcademicAffairs, RoleRector:
		return r, true
	case "AA":
		return RoleAcademicAffairs, true
	default:
		return "", false
	}
}

// Action is a named edge of the syllabus review graph.
type Action string

const (
	ActionSubmit        Action = "submit"
	ActionReviewApprove Action = "review_approve"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionPublish       Action = "publish"
	ActionRevise        Action = "revise"
)

// Actor is the authenticated caller performing an action.
type Actor struct {
	ID   string
	Role Role
}

// WorkflowItemStatus tracks whether a reviewer task is open.
type WorkflowItemStatus string

const (
	WorkflowItemPending  WorkflowItemStatus = "pending"
	WorkflowItemApproved WorkflowItemStatus = "approved"
	WorkflowItemRejected WorkflowItemStatus = "rejected"
)

// WorkflowItem is a reviewer task attached to a syllabus version. It exists
// while the version is in PENDING_REVIEW or PENDING_APPROVAL and is resolved
// when the version leaves that set.
type WorkflowItem struct {
	ID         uuid.UUID
	EntityID   uuid.UUID
	Status     WorkflowItemStatus
	Role       Role
	ActionBy   string
	Comment    string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// NewWorkflowItem opens a pending task for the given role.
func NewWorkflowItem(entityID uuid.UUID, role Role) *WorkflowItem {
	return &WorkflowItem{
		ID:        uuid.New(),
		EntityID:  entityID,
		Status:    WorkflowItemPending,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
}

// Resolve closes the task. Resolving twice keeps the first resolution.
func (w *WorkflowItem) Resolve(status WorkflowItemStatus, actionBy, comment string, at time.Time) {
	if w.ResolvedAt != nil {
		return
	}
	w.Status = status
	w.ActionBy = actionBy
	w.Comment = comment
	w.ResolvedAt = &at
}

// PendingItem is an open workflow item joined with the version it refers to.
type PendingItem struct {
	Item    *WorkflowItem
	Version *SyllabusVersion
}
