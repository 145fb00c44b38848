package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/focusnest/go/internal/models"
)

// MemoryRepository keeps session records in process memory.
// Used for single-process development and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*models.Session),
	}
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return ErrSessionExists
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) UpdateSession(_ context.Context, id string, fn MutateFunc) (*models.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[id]
	if !ok {
		return nil, false, ErrSessionNotFound
	}

	next := current.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, false, err
	}
	if changed {
		r.sessions[id] = next.Clone()
	}
	return next, changed, nil
}

func (r *MemoryRepository) DeleteWaitingBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, s := range r.sessions {
		if s.Status == models.SessionStatusWaiting && s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryRepository) ListActiveSessions(_ context.Context) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessions []*models.Session
	for _, s := range r.sessions {
		if s.Status == models.SessionStatusActive {
			sessions = append(sessions, s.Clone())
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(*sessions[j].StartTime)
	})
	return sessions, nil
}
