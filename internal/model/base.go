package model

import (
	"fmt"
	"strings"
	"time"
)

// Base contains common fields for subject records
type Base struct {
	ID        string    `json:"id" db:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" bson:"updatedAt"`
}

// SubjectKind identifies who an access code grants access to
type SubjectKind string

const (
	SubjectKindPatient SubjectKind = "patient"
	SubjectKindDoctor  SubjectKind = "doctor"
)

// ParseSubjectKind accepts the singular or plural form, in any case.
func ParseSubjectKind(s string) (SubjectKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient", "patients":
		return SubjectKindPatient, nil
	case "doctor", "doctors":
		return SubjectKindDoctor, nil
	}
	return "", fmt.Errorf("unknown subject kind %q", s)
}

// Namespace is the separate code space of one subject kind.
type Namespace struct {
	Kind              SubjectKind
	CodeCollection    string
	SubjectCollection string
}

var (
	PatientNamespace = Namespace{
		Kind:              SubjectKindPatient,
		CodeCollection:    "accessCodes",
		SubjectCollection: "patients",
	}
	DoctorNamespace = Namespace{
		Kind:              SubjectKindDoctor,
		CodeCollection:    "doctorAccessCodes",
		SubjectCollection: "doctors",
	}
)

func NamespaceFor(kind SubjectKind) (Namespace, error) {
	switch kind {
	case SubjectKindPatient:
		return PatientNamespace, nil
	case SubjectKindDoctor:
		return DoctorNamespace, nil
	}
	return Namespace{}, fmt.Errorf("unknown subject kind %q", kind)
}

func (n Namespace) String() string {
	return string(n.Kind)
}
