package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type subjectRepository struct {
	BaseRepository
}

func NewSubjectRepository(base BaseRepository) repository.SubjectRepository {
	return &subjectRepository{base}
}

func (r *subjectRepository) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	query := `
		SELECT id, name, email, phone, date_of_birth, created_at, updated_at
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *subjectRepository) GetDoctor(ctx context.Context, id string) (*model.Doctor, error) {
	query := `
		SELECT id, name, email, specialty, department, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}
