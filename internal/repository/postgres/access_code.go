package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

var codeTables = map[model.SubjectKind]string{
	model.SubjectKindPatient: "access_codes",
	model.SubjectKindDoctor:  "doctor_access_codes",
}

type accessCodeRepository struct {
	BaseRepository
}

func NewAccessCodeRepository(base BaseRepository) repository.AccessCodeRepository {
	return &accessCodeRepository{base}
}

func tableFor(ns model.Namespace) (string, error) {
	table, ok := codeTables[ns.Kind]
	if !ok {
		return "", fmt.Errorf("no access code table for namespace %q", ns.Kind)
	}
	return table, nil
}

func (r *accessCodeRepository) FindByCode(ctx context.Context, ns model.Namespace, code string) ([]*model.AccessCode, error) {
	table, err := tableFor(ns)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, code, subject_id, is_permanent, created_at
		FROM %s
		WHERE code = $1
		ORDER BY created_at ASC, id ASC
	`, table)

	var codes []*model.AccessCode
	if err := r.db.SelectContext(ctx, &codes, query, code); err != nil {
		return nil, fmt.Errorf("failed to find access code: %w", err)
	}
	return codes, nil
}

func (r *accessCodeRepository) FindBySubject(ctx context.Context, ns model.Namespace, subjectID string) ([]*model.AccessCode, error) {
	table, err := tableFor(ns)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, code, subject_id, is_permanent, created_at
		FROM %s
		WHERE subject_id = $1
		ORDER BY created_at ASC, id ASC
	`, table)

	var codes []*model.AccessCode
	if err := r.db.SelectContext(ctx, &codes, query, subjectID); err != nil {
		return nil, fmt.Errorf("failed to find subject access codes: %w", err)
	}
	return codes, nil
}

func (r *accessCodeRepository) Create(ctx context.Context, ns model.Namespace, code *model.AccessCode) error {
	table, err := tableFor(ns)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, code, subject_id, is_permanent)
		VALUES ($1, $2, $3, TRUE)
		RETURNING created_at
	`, table)

	id := uuid.New().String()
	err = r.db.QueryRowxContext(ctx, query, id, code.Code, code.SubjectID).Scan(&code.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create access code: %w", err)
	}

	code.ID = id
	code.IsPermanent = true
	return nil
}
