package model

// Subject is the patient or doctor an access code resolves to. Exactly one of
// Patient and Doctor is set, matching Kind.
type Subject struct {
	Kind    SubjectKind `json:"kind"`
	Patient *Patient    `json:"patient,omitempty"`
	Doctor  *Doctor     `json:"doctor,omitempty"`
}

func PatientSubject(p *Patient) *Subject {
	return &Subject{Kind: SubjectKindPatient, Patient: p}
}

func DoctorSubject(d *Doctor) *Subject {
	return &Subject{Kind: SubjectKindDoctor, Doctor: d}
}

func (s *Subject) ID() string {
	switch {
	case s.Patient != nil:
		return s.Patient.ID
	case s.Doctor != nil:
		return s.Doctor.ID
	}
	return ""
}

func (s *Subject) Name() string {
	switch {
	case s.Patient != nil:
		return s.Patient.Name
	case s.Doctor != nil:
		return s.Doctor.Name
	}
	return ""
}

func (s *Subject) Email() string {
	switch {
	case s.Patient != nil:
		return s.Patient.Email
	case s.Doctor != nil:
		return s.Doctor.Email
	}
	return ""
}
