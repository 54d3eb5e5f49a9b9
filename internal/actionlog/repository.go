package actionlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kis-labs/webbuilder/internal/platform/db"
)

// Repository persists entries.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs a repository over conn.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

// Insert writes entry.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO action_logs (user_id, action, occurred_at) VALUES ($1, $2, $3)`,
		entry.UserID, string(entry.Action), entry.At)
	if err != nil {
		return fmt.Errorf("actionlog: insert: %w", err)
	}
	return nil
}

// PurgeBefore deletes entries that occurred before cutoff and returns how many
// were removed.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM action_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("actionlog: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Acquirer hands out the shared data store handle.
type Acquirer interface {
	Acquire(ctx context.Context) (db.Handle, error)
}

// ManagedStore runs repository calls on the handle from an Acquirer.
type ManagedStore struct {
	acquirer Acquirer
}

// NewManagedStore constructs a ManagedStore.
func NewManagedStore(acquirer Acquirer) *ManagedStore {
	return &ManagedStore{acquirer: acquirer}
}

// Insert implements Store.
func (s *ManagedStore) Insert(ctx context.Context, entry Entry) error {
	h, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return db.AcquireError(ctx, err)
	}
	return NewRepository(h).Insert(ctx, entry)
}

// PurgeBefore implements Store.
func (s *ManagedStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	h, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return 0, db.AcquireError(ctx, err)
	}
	return NewRepository(h).PurgeBefore(ctx, cutoff)
}
