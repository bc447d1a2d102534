package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

const sessionsBucket = "declaration_sessions"

// DB wraps a bbolt file for single-node deployments.
type DB struct {
	db *bbolt.DB
}

// Open opens (or creates) the bbolt file at path and ensures its buckets exist.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database file.
func (d *DB) Close() error {
	return d.db.Close()
}

// PingContext reports whether the sessions bucket is readable.
func (d *DB) PingContext(_ context.Context) error {
	return d.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(sessionsBucket)) == nil {
			return fmt.Errorf("bucket %s missing", sessionsBucket)
		}
		return nil
	})
}

type sessionRepo struct {
	db *bbolt.DB
}

// NewSessionRepo creates a bbolt-backed SessionRepository. References come
// from the bucket sequence.
func NewSessionRepo(d *DB) port.SessionRepository {
	return &sessionRepo{db: d.db}
}

func (r *sessionRepo) Create(_ context.Context, session *domain.DeclarationSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket.Get([]byte(session.ID.String())) != nil {
			return fmt.Errorf("session %s already exists", session.ID)
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		session.Reference = int64(seq)
		return put(bucket, session)
	})
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	var session *domain.DeclarationSession
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionsBucket)).Get([]byte(id.String()))
		if data == nil {
			return domain.ErrSessionNotFound
		}
		s, err := decode(data)
		session = s
		return err
	})
	if err != nil {
		if err == domain.ErrSessionNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}
	return session, nil
}

func (r *sessionRepo) Update(_ context.Context, session *domain.DeclarationSession) error {
	session.UpdatedAt = time.Now().UTC()
	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket.Get([]byte(session.ID.String())) == nil {
			return domain.ErrSessionNotFound
		}
		return put(bucket, session)
	})
	if err != nil {
		if err == domain.ErrSessionNotFound {
			return err
		}
		return fmt.Errorf("sessionRepo.Update: %w", err)
	}
	return nil
}

func (r *sessionRepo) List(_ context.Context, offset, limit int) ([]domain.DeclarationSession, int, error) {
	all, err := r.all()
	if err != nil {
		return nil, 0, fmt.Errorf("sessionRepo.List: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Reference > all[j].Reference })
	return paginate(all, offset, limit), len(all), nil
}

func (r *sessionRepo) ListByPhase(_ context.Context, phase domain.Phase, updatedBefore time.Time, limit int) ([]domain.DeclarationSession, error) {
	all, err := r.all()
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListByPhase: %w", err)
	}
	out := make([]domain.DeclarationSession, 0)
	for _, s := range all {
		if s.Phase == phase && s.UpdatedAt.Before(updatedBefore) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return paginate(out, 0, limit), nil
}

func (r *sessionRepo) all() ([]domain.DeclarationSession, error) {
	sessions := make([]domain.DeclarationSession, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).ForEach(func(_, v []byte) error {
			s, err := decode(v)
			if err != nil {
				return err
			}
			sessions = append(sessions, *s)
			return nil
		})
	})
	return sessions, err
}

func put(bucket *bbolt.Bucket, session *domain.DeclarationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return bucket.Put([]byte(session.ID.String()), data)
}

func decode(data []byte) (*domain.DeclarationSession, error) {
	var s domain.DeclarationSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	if s.Discrepancies == nil {
		s.Discrepancies = []domain.Discrepancy{}
	}
	return &s, nil
}

func paginate(sessions []domain.DeclarationSession, offset, limit int) []domain.DeclarationSession {
	if offset >= len(sessions) {
		return []domain.DeclarationSession{}
	}
	end := len(sessions)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sessions[offset:end]
}
