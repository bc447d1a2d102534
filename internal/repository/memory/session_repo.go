package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// sessionRepo keeps encoded sessions in a map so callers never share state
// with the store.
type sessionRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]byte
	nextRef  int64
	now      func() time.Time
}

// NewSessionRepo creates an in-memory SessionRepository for tests and local runs.
func NewSessionRepo() port.SessionRepository {
	return &sessionRepo{sessions: make(map[uuid.UUID][]byte), now: time.Now}
}

func (r *sessionRepo) Create(_ context.Context, session *domain.DeclarationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("sessionRepo.Create: session %s already exists", session.ID)
	}
	now := r.now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.nextRef++
	session.Reference = r.nextRef

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	r.sessions[session.ID] = data
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	r.mu.RLock()
	data, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return decode(data)
}

func (r *sessionRepo) Update(_ context.Context, session *domain.DeclarationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	session.UpdatedAt = r.now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("sessionRepo.Update: %w", err)
	}
	r.sessions[session.ID] = data
	return nil
}

func (r *sessionRepo) List(_ context.Context, offset, limit int) ([]domain.DeclarationSession, int, error) {
	all, err := r.all()
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Reference > all[j].Reference })
	total := len(all)
	if offset >= total {
		return []domain.DeclarationSession{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *sessionRepo) ListByPhase(_ context.Context, phase domain.Phase, updatedBefore time.Time, limit int) ([]domain.DeclarationSession, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	out := make([]domain.DeclarationSession, 0)
	for _, s := range all {
		if s.Phase == phase && s.UpdatedAt.Before(updatedBefore) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *sessionRepo) all() ([]domain.DeclarationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.DeclarationSession, 0, len(r.sessions))
	for _, data := range r.sessions {
		s, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func decode(data []byte) (*domain.DeclarationSession, error) {
	var s domain.DeclarationSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("sessionRepo: decoding session: %w", err)
	}
	if s.Discrepancies == nil {
		s.Discrepancies = []domain.Discrepancy{}
	}
	return &s, nil
}
