package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/hospital-api/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateCode is returned when the store's unique index on code
	// rejects an insert.
	ErrDuplicateCode = errors.New("access code already exists")
)

// All repository interfaces in one file
type (
	// AccessCodeRepository stores access codes, one collection per namespace.
	AccessCodeRepository interface {
		// FindByCode returns every record with exactly this code.
		FindByCode(ctx context.Context, ns model.Namespace, code string) ([]*model.AccessCode, error)
		FindBySubject(ctx context.Context, ns model.Namespace, subjectID string) ([]*model.AccessCode, error)
		// Create assigns ID and CreatedAt.
		Create(ctx context.Context, ns model.Namespace, code *model.AccessCode) error
	}

	// SubjectRepository reads the records access codes resolve to.
	SubjectRepository interface {
		GetPatient(ctx context.Context, id string) (*model.Patient, error)
		GetDoctor(ctx context.Context, id string) (*model.Doctor, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Pinger reports whether the backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
