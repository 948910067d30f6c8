// Package domain provides domain models and business logic for the Syllabus Review Service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyllabusStatus represents the review lifecycle of a syllabus version.
// These values must match the database enum syllabus_status.
type SyllabusStatus string

const (
	SyllabusStatusDraft           SyllabusStatus = "DRAFT"
	SyllabusStatusPendingReview   SyllabusStatus = "PENDING_REVIEW"
	SyllabusStatusPendingApproval SyllabusStatus = "PENDING_APPROVAL"
	SyllabusStatusApproved        SyllabusStatus = "APPROVED"
	SyllabusStatusPublished       SyllabusStatus = "PUBLISHED"
	SyllabusStatusRejected        SyllabusStatus = "REJECTED"
)

// AllSyllabusStatuses lists every status in lifecycle order.
var AllSyllabusStatuses = []SyllabusStatus{
	SyllabusStatusDraft,
	SyllabusStatusPendingReview,
	SyllabusStatusPendingApproval,
	SyllabusStatusApproved,
	SyllabusStatusPublished,
	SyllabusStatusRejected,
}

// IsInFlight reports whether the status is one of the reviewer-owned states.
// At most one version per root may be in flight.
func (s SyllabusStatus) IsInFlight() bool {
	return s == SyllabusStatusPendingReview || s == SyllabusStatusPendingApproval
}

// IsTerminal returns true if no transition leaves the status.
func (s SyllabusStatus) IsTerminal() bool {
	return s == SyllabusStatusPublished
}

// IsValid reports whether s is a known status.
func (s SyllabusStatus) IsValid() bool {
	for _, v := range AllSyllabusStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// AllowsNewVersion reports whether a new version may be branched from a root
// whose latest version has this status.
func (s SyllabusStatus) AllowsNewVersion() bool {
	return s == SyllabusStatusDraft || s == SyllabusStatusRejected
}

// AssessmentWeight is one graded component of a syllabus.
type AssessmentWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// SyllabusModule is a teaching unit within a syllabus.
type SyllabusModule struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Weeks       int    `json:"weeks,omitempty"`
}

// SyllabusContent is the editable body of a syllabus version. It is stored as
// JSONB and only mutable while the version is a draft.
type SyllabusContent struct {
	SubjectCode       string             `json:"subjectCode"`
	SubjectName       string             `json:"subjectName"`
	Credits           int                `json:"credits,omitempty"`
	Description       string             `json:"description,omitempty"`
	Objectives        []string           `json:"objectives,omitempty"`
	Modules           []SyllabusModule   `json:"modules,omitempty"`
	AssessmentWeights []AssessmentWeight `json:"assessmentWeights,omitempty"`
	// CLOPairIDs are the identifiers of the course learning outcomes linked to
	// this syllabus in the domain-data service.
	CLOPairIDs []string `json:"cloPairIds,omitempty"`
}

// SyllabusVersion is one immutable-once-submitted revision of a syllabus.
type SyllabusVersion struct {
	ID              uuid.UUID
	RootID          uuid.UUID
	VersionNo       int
	Status          SyllabusStatus
	Content         SyllabusContent
	RejectionReason string
	CreatedBy       string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt *time.Time
	ReviewedAt  *time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	PublishedAt *time.Time
}

// NewSyllabusVersion creates a draft version. A zero rootID starts a new root
// whose ID equals the version ID.
func NewSyllabusVersion(rootID uuid.UUID, versionNo int, createdBy string, content SyllabusContent) *SyllabusVersion {
	now := time.Now().UTC()
	id := uuid.New()
	if rootID == uuid.Nil {
		rootID = id
	}
	return &SyllabusVersion{
		ID:        id,
		RootID:    rootID,
		VersionNo: versionNo,
		Status:    SyllabusStatusDraft,
		Content:   content,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StatusCounts summarizes a list of versions by status.
type StatusCounts map[SyllabusStatus]int

// CountByStatus tallies versions per status.
func CountByStatus(versions []*SyllabusVersion) StatusCounts {
	counts := make(StatusCounts, len(AllSyllabusStatuses))
	for _, v := range versions {
		counts[v.Status]++
	}
	return counts
}
