package accesscode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

// Emitter records domain events. event.Service satisfies it.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Sealer encrypts the code carried in issuance events.
type Sealer interface {
	Seal(plain string) (string, error)
}

type Config struct {
	MaxAttempts int
	// Generator defaults to RandomGenerator.
	Generator   Generator
	// Sealer is optional; without it events carry the plain code.
	Sealer      Sealer
}

// Service issues and validates permanent access codes. Patients and doctors
// have separate namespaces; a code is only meaningful within its own.
type Service struct {
	codes       repository.AccessCodeRepository
	subjects    repository.SubjectRepository
	events      Emitter
	generator   Generator
	sealer      Sealer
	maxAttempts int
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewService(
	codes repository.AccessCodeRepository,
	subjects repository.SubjectRepository,
	events Emitter,
	config Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Generator == nil {
		config.Generator = RandomGenerator{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New("hospital", nil)
	}

	return &Service{
		codes:       codes,
		subjects:    subjects,
		events:      events,
		generator:   config.Generator,
		sealer:      config.Sealer,
		maxAttempts: config.MaxAttempts,
		logger:      log,
		metrics:     m,
	}
}

// Create issues a new code for subjectID. It does not check whether the
// subject already holds one; use Ensure for that.
func (s *Service) Create(ctx context.Context, kind model.SubjectKind, subjectID string) (*model.AccessCode, error) {
	ns, err := model.NamespaceFor(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKind, err)
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrInvalidSubject
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate access code: %w", err)
		}

		existing, err := s.codes.FindByCode(ctx, ns, code)
		if err != nil {
			return nil, unavailable("look up access code", err)
		}
		if len(existing) > 0 {
			s.collision(ns, attempt)
			continue
		}

		ac := &model.AccessCode{
			Code:        code,
			SubjectID:   subjectID,
			IsPermanent: true,
		}
		if err := s.codes.Create(ctx, ns, ac); err != nil {
			// Another writer took the code between lookup and insert.
			if errors.Is(err, repository.ErrDuplicateCode) {
				s.collision(ns, attempt)
				continue
			}
			return nil, unavailable("create access code", err)
		}

		s.metrics.CodesIssued.WithLabelValues(ns.String()).Inc()
		s.logger.Info("Issued access code",
			"namespace", ns.String(),
			"access_code_id", ac.ID,
			"subject_id", subjectID,
			"attempts", attempt)
		s.emitIssued(ctx, ns, ac)

		return ac, nil
	}

	s.metrics.GenerationExhausted.WithLabelValues(ns.String()).Inc()
	s.logger.Warn("Access code generation exhausted",
		"namespace", ns.String(),
		"subject_id", subjectID,
		"attempts", s.maxAttempts)
	return nil, ErrGenerationExhausted
}

// Ensure returns the subject's existing code, or issues one. created is true
// only when a new code was written.
func (s *Service) Ensure(ctx context.Context, kind model.SubjectKind, subjectID string) (*model.AccessCode, bool, error) {
	ac, err := s.GetBySubject(ctx, kind, subjectID)
	if err == nil {
		return ac, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	ac, err = s.Create(ctx, kind, subjectID)
	if err != nil {
		return nil, false, err
	}
	return ac, true, nil
}

// GetBySubject returns the oldest code held by subjectID.
func (s *Service) GetBySubject(ctx context.Context, kind model.SubjectKind, subjectID string) (*model.AccessCode, error) {
	ns, err := model.NamespaceFor(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKind, err)
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrInvalidSubject
	}

	records, err := s.codes.FindBySubject(ctx, ns, subjectID)
	if err != nil {
		return nil, unavailable("look up subject access codes", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return oldest(records), nil
}

// Validate resolves a submitted code to its subject. Input is matched
// case-insensitively with whitespace ignored. When legacy data holds the same
// code more than once, the oldest record wins.
func (s *Service) Validate(ctx context.Context, kind model.SubjectKind, raw string) (*model.Validation, error) {
	ns, err := model.NamespaceFor(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKind, err)
	}

	code := Normalize(raw)
	if !IsWellFormed(code) {
		s.validation(ns, "malformed")
		return nil, ErrNotFound
	}

	records, err := s.codes.FindByCode(ctx, ns, code)
	if err != nil {
		s.validation(ns, "error")
		return nil, unavailable("look up access code", err)
	}
	if len(records) == 0 {
		s.validation(ns, "not_found")
		return nil, ErrNotFound
	}
	if len(records) > 1 {
		s.logger.Warn("Duplicate access code records",
			"namespace", ns.String(),
			"count", len(records))
	}
	record := oldest(records)

	subject, err := s.resolveSubject(ctx, ns.Kind, record.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.validation(ns, "orphaned")
			s.logger.Warn("Access code refers to a missing subject",
				"namespace", ns.String(),
				"access_code_id", record.ID,
				"subject_id", record.SubjectID)
			return nil, ErrNotFound
		}
		s.validation(ns, "error")
		return nil, unavailable("look up subject", err)
	}

	s.validation(ns, "valid")
	return &model.Validation{
		AccessCodeID: record.ID,
		Subject:      subject,
	}, nil
}

func (s *Service) resolveSubject(ctx context.Context, kind model.SubjectKind, id string) (*model.Subject, error) {
	switch kind {
	case model.SubjectKindPatient:
		p, err := s.subjects.GetPatient(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.PatientSubject(p), nil
	case model.SubjectKindDoctor:
		d, err := s.subjects.GetDoctor(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.DoctorSubject(d), nil
	}
	return nil, ErrInvalidKind
}

func (s *Service) emitIssued(ctx context.Context, ns model.Namespace, ac *model.AccessCode) {
	if s.events == nil {
		return
	}
	issuedAt := ac.CreatedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}
	event := model.AccessCodeIssuedEvent{
		AccessCodeID: ac.ID,
		Namespace:    ns.Kind,
		SubjectID:    ac.SubjectID,
		Code:         ac.Code,
		IssuedAt:     issuedAt,
	}
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(ac.Code)
		if err != nil {
			s.logger.Error(err, "Failed to seal access code event, not emitting",
				"namespace", ns.String(),
				"access_code_id", ac.ID)
			return
		}
		event.Code = sealed
		event.Sealed = true
	}

	if err := s.events.Emit(ctx, model.EventAccessCodeIssued, event); err != nil {
		s.logger.Error(err, "Failed to emit access code event",
			"namespace", ns.String(),
			"access_code_id", ac.ID)
	}
}

func (s *Service) collision(ns model.Namespace, attempt int) {
	s.metrics.CodeCollisions.WithLabelValues(ns.String()).Inc()
	s.logger.Debug("Access code collision", "namespace", ns.String(), "attempt", attempt)
}

func (s *Service) validation(ns model.Namespace, result string) {
	s.metrics.Validations.WithLabelValues(ns.String(), result).Inc()
}

// oldest picks the earliest record by CreatedAt, then by ID.
func oldest(records []*model.AccessCode) *model.AccessCode {
	sorted := make([]*model.AccessCode, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
}
