package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"customsdesk/internal/domain"
)

// SessionRepository defines the contract for declaration session persistence.
type SessionRepository interface {
	// Create stores a new session and assigns its monotonically increasing
	// Reference.
	Create(ctx context.Context, session *domain.DeclarationSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error)
	Update(ctx context.Context, session *domain.DeclarationSession) error
	// List returns sessions newest first with the total count.
	List(ctx context.Context, offset, limit int) ([]domain.DeclarationSession, int, error)
	// ListByPhase returns up to limit sessions in phase whose last update is
	// before updatedBefore, oldest first.
	ListByPhase(ctx context.Context, phase domain.Phase, updatedBefore time.Time, limit int) ([]domain.DeclarationSession, error)
}
