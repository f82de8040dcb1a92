package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type Outbox struct {
	mu     sync.Mutex
	events map[string]*model.OutboxEvent
}

func NewOutbox() *Outbox {
	return &Outbox{events: make(map[string]*model.OutboxEvent)}
}

var _ repository.OutboxRepository = (*Outbox)(nil)

func (o *Outbox) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	event.ID = uuid.New().String()
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	cp := *event
	o.events[event.ID] = &cp
	return nil
}

func (o *Outbox) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*model.OutboxEvent
	for _, e := range o.events {
		if e.Status == model.OutboxStatusPending {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *Outbox) UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	e.Status = status
	e.ErrorMessage = errMsg
	e.UpdatedAt = now
	switch status {
	case model.OutboxStatusProcessed:
		e.ProcessedAt = &now
	case model.OutboxStatusFailed:
		e.RetryCount++
	}
	return nil
}

func (o *Outbox) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var n int64
	for id, e := range o.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(o.events, id)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of one event.
func (o *Outbox) Get(id string) (*model.OutboxEvent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.events[id]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}
