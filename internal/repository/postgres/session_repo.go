package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// sessionRow is the table shape; the full session is kept in state.
type sessionRow struct {
	ID          uuid.UUID `db:"id"`
	Reference   int64     `db:"reference"`
	Phase       string    `db:"phase"`
	ClientName  string    `db:"client_name"`
	ClientEmail string    `db:"client_email"`
	State       []byte    `db:"state"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *sessionRow) toDomain() (*domain.DeclarationSession, error) {
	var s domain.DeclarationSession
	if err := json.Unmarshal(r.State, &s); err != nil {
		return nil, fmt.Errorf("decoding session state: %w", err)
	}
	s.ID = r.ID
	s.Reference = r.Reference
	s.Phase = domain.Phase(r.Phase)
	s.CreatedAt = r.CreatedAt
	s.UpdatedAt = r.UpdatedAt
	if s.Discrepancies == nil {
		s.Discrepancies = []domain.Discrepancy{}
	}
	return &s, nil
}

type sessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo creates a new PostgreSQL-backed SessionRepository.
func NewSessionRepo(db *sqlx.DB) port.SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, session *domain.DeclarationSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	state, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create marshal: %w", err)
	}

	query := `INSERT INTO declaration_sessions (id, phase, client_name, client_email, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING reference`

	err = r.db.QueryRowxContext(ctx, query,
		session.ID, string(session.Phase), session.ClientName, session.ClientEmail, state,
		session.CreatedAt, session.UpdatedAt,
	).Scan(&session.Reference)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM declaration_sessions WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}
	s, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) Update(ctx context.Context, session *domain.DeclarationSession) error {
	session.UpdatedAt = time.Now().UTC()

	state, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("sessionRepo.Update marshal: %w", err)
	}

	query := `UPDATE declaration_sessions
		SET phase = $1, client_name = $2, client_email = $3, state = $4, updated_at = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		string(session.Phase), session.ClientName, session.ClientEmail, state, session.UpdatedAt, session.ID)
	if err != nil {
		return fmt.Errorf("sessionRepo.Update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sessionRepo.Update rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepo) List(ctx context.Context, offset, limit int) ([]domain.DeclarationSession, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM declaration_sessions")
	if err != nil {
		return nil, 0, fmt.Errorf("sessionRepo.List count: %w", err)
	}

	var rows []sessionRow
	err = r.db.SelectContext(ctx, &rows,
		"SELECT * FROM declaration_sessions ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sessionRepo.List: %w", err)
	}

	sessions, err := rowsToDomain(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("sessionRepo.List: %w", err)
	}
	return sessions, total, nil
}

func (r *sessionRepo) ListByPhase(ctx context.Context, phase domain.Phase, updatedBefore time.Time, limit int) ([]domain.DeclarationSession, error) {
	var rows []sessionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM declaration_sessions
		WHERE phase = $1 AND updated_at < $2
		ORDER BY updated_at ASC LIMIT $3`, string(phase), updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListByPhase: %w", err)
	}
	sessions, err := rowsToDomain(rows)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListByPhase: %w", err)
	}
	return sessions, nil
}

func rowsToDomain(rows []sessionRow) ([]domain.DeclarationSession, error) {
	sessions := make([]domain.DeclarationSession, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}
