package model

import (
	"time"
)

// AccessCode is a permanent record linking a short code to a subject.
type AccessCode struct {
	ID          string    `db:"id" json:"id" bson:"_id,omitempty"`
	Code        string    `db:"code" json:"code" bson:"code"`
	SubjectID   string    `db:"subject_id" json:"subject_id" bson:"subjectId"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" bson:"createdAt"`
	IsPermanent bool      `db:"is_permanent" json:"is_permanent" bson:"isPermanent"`
}

// Validation is what a submitted code resolves to.
type Validation struct {
	AccessCodeID string   `json:"access_code_id"`
	Subject      *Subject `json:"subject"`
}

type IssueAccessCodeRequest struct {
	SubjectID string `json:"subject_id" binding:"required,max=128,subjectid"`
}

type ValidateAccessCodeRequest struct {
	Code string `json:"code" binding:"required,max=32"`
}

// AccessCodeIssuedEvent is the outbox payload written after a code is
// created. Code is encrypted when Sealed is set.
type AccessCodeIssuedEvent struct {
	AccessCodeID string      `json:"access_code_id"`
	Namespace    SubjectKind `json:"namespace"`
	SubjectID    string      `json:"subject_id"`
	Code         string      `json:"code"`
	Sealed       bool        `json:"sealed,omitempty"`
	IssuedAt     time.Time   `json:"issued_at"`
}

const EventAccessCodeIssued = "ACCESS_CODE_ISSUED"
