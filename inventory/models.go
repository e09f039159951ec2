package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AssessmentStatus is the workflow state of a risk assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "draft"
	AssessmentStatusSubmitted AssessmentStatus = "submitted"
	AssessmentStatusApproved  AssessmentStatus = "approved"
	AssessmentStatusRejected  AssessmentStatus = "rejected"
)

// Location is a node in the storage hierarchy: building, room, cabinet,
// shelf. Parent pointers form a tree, never a cycle.
type Location struct {
	bun.BaseModel `bun:"table:locations,alias:loc"`

	ID       uuid.UUID  `bun:"id,pk,notnull" json:"id"`
	Name     string     `bun:"name,notnull" json:"name"`
	ParentID *uuid.UUID `bun:"parent_id" json:"parent_id,omitempty"`
	Parent   *Location  `bun:"rel:belongs-to,join:parent_id=id" json:"parent,omitempty"`

	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// Category groups chemicals by hazard class or use.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`

	ID          uuid.UUID `bun:"id,pk,notnull" json:"id"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Description string    `bun:"description" json:"description,omitempty"`

	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// Chemical is one tracked substance at one location.
type Chemical struct {
	bun.BaseModel `bun:"table:chemicals,alias:chm"`

	ID          uuid.UUID  `bun:"id,pk,notnull" json:"id"`
	Name        string     `bun:"name,notnull" json:"name"`
	CASNumber   string     `bun:"cas_number" json:"cas_number,omitempty"`
	HazardClass string     `bun:"hazard_class" json:"hazard_class,omitempty"`
	CategoryID  *uuid.UUID `bun:"category_id" json:"category_id,omitempty"`
	Category    *Category  `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
	LocationID  *uuid.UUID `bun:"location_id" json:"location_id,omitempty"`
	Location    *Location  `bun:"rel:belongs-to,join:location_id=id" json:"location,omitempty"`
	Quantity    float64    `bun:"quantity,notnull" json:"quantity"`
	Unit        string     `bun:"unit,notnull" json:"unit"`
	// ReorderLevel of zero means the chemical is not stock-tracked.
	ReorderLevel float64    `bun:"reorder_level,notnull,default:0" json:"reorder_level"`
	ExpiresAt    *time.Time `bun:"expires_at" json:"expires_at,omitempty"`

	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// SDSRevision is one immutable version of a chemical's safety data sheet.
// The document body lives in the blob store under BlobKey; the row only
// records the version lineage.
type SDSRevision struct {
	bun.BaseModel `bun:"table:sds_revisions,alias:sds"`

	ID          uuid.UUID  `bun:"id,pk,notnull" json:"id"`
	ChemicalID  uuid.UUID  `bun:"chemical_id,notnull" json:"chemical_id"`
	Version     int        `bun:"version,notnull" json:"version"`
	BlobKey     string     `bun:"blob_key,notnull" json:"blob_key"`
	ContentType string     `bun:"content_type,notnull" json:"content_type"`
	UploadedBy  *uuid.UUID `bun:"uploaded_by" json:"uploaded_by,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// RiskAssessment documents the hazards of working with a chemical. It moves
// through the draft, submitted, approved or rejected workflow; a rejected
// assessment goes back to draft for another pass, an approved one is final.
type RiskAssessment struct {
	bun.BaseModel `bun:"table:risk_assessments,alias:rsk"`

	ID         uuid.UUID        `bun:"id,pk,notnull" json:"id"`
	ChemicalID uuid.UUID        `bun:"chemical_id,notnull" json:"chemical_id"`
	Title      string           `bun:"title,notnull" json:"title"`
	Summary    string           `bun:"summary" json:"summary,omitempty"`
	Status     AssessmentStatus `bun:"status,notnull,default:'draft'" json:"status"`
	AuthorID   *uuid.UUID       `bun:"author_id" json:"author_id,omitempty"`
	ReviewerID *uuid.UUID       `bun:"reviewer_id" json:"reviewer_id,omitempty"`

	SubmittedAt *time.Time `bun:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `bun:"reviewed_at" json:"reviewed_at,omitempty"`

	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// EnsureStatus normalizes a zero-valued status to draft.
func (r *RiskAssessment) EnsureStatus() {
	if r.Status == "" {
		r.Status = AssessmentStatusDraft
	}
}

// Terminal reports whether the assessment can no longer change state.
func (s AssessmentStatus) Terminal() bool {
	return s == AssessmentStatusApproved
}
