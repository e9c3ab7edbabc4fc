package consultations

import "context"

// Repo defines persistence operations for consultations.
type Repo interface {
	Create(ctx context.Context, c Consultation) error
	GetByID(ctx context.Context, id string) (Consultation, error)
	// UpdateStatus moves id to status and overwrites the result fields. It
	// returns ErrInvalidTransition when the stored status is not a legal source.
	UpdateStatus(ctx context.Context, id string, status Status, u Update) error
}
