package consultations

import (
	"context"
	"sync"
)

// MemoryRepo stores consultations in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Consultation
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Consultation)}
}

// Create stores the consultation.
func (r *MemoryRepo) Create(ctx context.Context, c Consultation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	return nil
}

// GetByID returns a consultation by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Consultation, error) {
	if err := ctx.Err(); err != nil {
		return Consultation{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return Consultation{}, ErrNotFound
	}
	return c, nil
}

// UpdateStatus applies a guarded status change.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status Status, u Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(c.Status, status) {
		return ErrInvalidTransition
	}

	now := u.timestamp()
	c.Status = status
	c.Profile = u.Profile
	c.Recommendation = u.Recommendation
	c.ErrorMessage = u.ErrorMessage
	if u.Attempts > 0 {
		c.Attempts = u.Attempts
	}
	if u.Failures != nil {
		c.Failures = copyCounts(u.Failures)
	}
	if status == StatusAnalyzing && c.StartedAt == nil {
		c.StartedAt = &now
	}
	if status.Terminal() {
		c.CompletedAt = &now
	} else {
		c.CompletedAt = nil
	}
	c.UpdatedAt = now
	r.byID[id] = c
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
