package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is a file attached to a syllabus version. The AI job identifiers
// are persisted so a later view can reattach to work already in progress.
type Document struct {
	ID               uuid.UUID
	SyllabusID       uuid.UUID
	FileName         string
	ContentType      string
	StorageURL       string
	UploadedBy       string
	AIIngestionJobID string
	AISummaryJobID   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDocument creates a document record with fresh timestamps.
func NewDocument(syllabusID uuid.UUID, fileName, contentType, storageURL, uploadedBy string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:          uuid.New(),
		SyllabusID:  syllabusID,
		FileName:    fileName,
		ContentType: contentType,
		StorageURL:  storageURL,
		UploadedBy:  uploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// JobIDFor returns the persisted job pointer for kind.
func (d *Document) JobIDFor(kind JobKind) string {
	switch kind {
	case JobKindIngest:
		return d.AIIngestionJobID
	case JobKindSummary:
		return d.AISummaryJobID
	default:
		return ""
	}
}

// SetJobID stores the job pointer for kind.
func (d *Document) SetJobID(kind JobKind, jobID string) {
	switch kind {
	case JobKindIngest:
		d.AIIngestionJobID = jobID
	case JobKindSummary:
		d.AISummaryJobID = jobID
	}
}

// SummaryLength selects the length of a generated summary.
type SummaryLength string

const (
	SummaryShort  SummaryLength = "SHORT"
	SummaryMedium SummaryLength = "MEDIUM"
	SummaryLong   SummaryLength = "LONG"
)

// SummaryPayload is the body submitted for a SUMMARY job.
type SummaryPayload struct {
	SyllabusID string        `json:"syllabusId"`
	DocumentID string        `json:"documentId"`
	Length     SummaryLength `json:"length"`
}

// IngestPayload is the body submitted for an INGEST job.
type IngestPayload struct {
	SyllabusID  string `json:"syllabusId"`
	DocumentID  string `json:"documentId"`
	SubjectName string `json:"subjectName,omitempty"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
	FileURL     string `json:"fileUrl"`
}
