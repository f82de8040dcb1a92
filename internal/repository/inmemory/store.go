// Package inmemory holds mutex-guarded repositories for tests and local
// development without a database.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

// Store implements AccessCodeRepository, SubjectRepository and Pinger.
type Store struct {
	mu       sync.RWMutex
	codes    map[model.SubjectKind][]*model.AccessCode
	patients map[string]*model.Patient
	doctors  map[string]*model.Doctor

	// EnforceUnique makes Create reject a code that already exists in the
	// namespace, the way the postgres and mongo unique indexes do.
	EnforceUnique bool
	// Err, when set, is returned by every call.
	Err           error
	// Now stamps CreatedAt.
	Now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		codes:         make(map[model.SubjectKind][]*model.AccessCode),
		patients:      make(map[string]*model.Patient),
		doctors:       make(map[string]*model.Doctor),
		EnforceUnique: true,
		Now:           time.Now,
	}
}

var (
	_ repository.AccessCodeRepository = (*Store)(nil)
	_ repository.SubjectRepository    = (*Store)(nil)
	_ repository.Pinger               = (*Store)(nil)
)

func (s *Store) Ping(ctx context.Context) error {
	return s.Err
}

func (s *Store) FindByCode(ctx context.Context, ns model.Namespace, code string) ([]*model.AccessCode, error) {
	return s.filter(ns, func(c *model.AccessCode) bool { return c.Code == code })
}

func (s *Store) FindBySubject(ctx context.Context, ns model.Namespace, subjectID string) ([]*model.AccessCode, error) {
	return s.filter(ns, func(c *model.AccessCode) bool { return c.SubjectID == subjectID })
}

func (s *Store) filter(ns model.Namespace, keep func(*model.AccessCode) bool) ([]*model.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}

	var out []*model.AccessCode
	for _, c := range s.codes[ns.Kind] {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Create(ctx context.Context, ns model.Namespace, code *model.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	if s.EnforceUnique {
		for _, c := range s.codes[ns.Kind] {
			if c.Code == code.Code {
				return repository.ErrDuplicateCode
			}
		}
	}

	code.ID = uuid.New().String()
	code.CreatedAt = s.Now()
	code.IsPermanent = true

	cp := *code
	s.codes[ns.Kind] = append(s.codes[ns.Kind], &cp)
	return nil
}

// Insert stores a record as-is, bypassing uniqueness. It simulates legacy
// duplicates left behind by non-atomic check-then-insert writers.
func (s *Store) Insert(ns model.Namespace, code model.AccessCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	s.codes[ns.Kind] = append(s.codes[ns.Kind], &code)
}

// Count returns the number of records in a namespace.
func (s *Store) Count(ns model.Namespace) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes[ns.Kind])
}

func (s *Store) PutPatient(p *model.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

func (s *Store) PutDoctor(d *model.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = d
}

func (s *Store) DeletePatient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patients, id)
}

func (s *Store) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetDoctor(ctx context.Context, id string) (*model.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}
	d, ok := s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}
