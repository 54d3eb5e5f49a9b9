package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	execs      []string
	execErr    error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	err := WithTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.True(t, tx.committed)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestWithTxBeginFailure(t *testing.T) {
	boom := errors.New("refused")
	err := WithTx(context.Background(), &fakeBeginner{err: boom}, func(pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.ErrorIs(t, err, boom)
}

func TestMigrateLocksThenAppliesSchema(t *testing.T) {
	tx := &fakeTx{}
	require.NoError(t, Migrate(context.Background(), &fakeBeginner{tx: tx}))
	require.Len(t, tx.execs, 2)
	require.Contains(t, tx.execs[0], "pg_advisory_xact_lock")
	require.Equal(t, Schema(), tx.execs[1])
	require.True(t, tx.committed)
}

func TestMigrateWrapsExecError(t *testing.T) {
	tx := &fakeTx{execErr: errors.New("syntax")}
	err := Migrate(context.Background(), &fakeBeginner{tx: tx})
	require.Error(t, err)
	require.Contains(t, err.Error(), "platform/db: migrate")
	require.False(t, tx.committed)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: UniqueViolation}))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("plain")))
}
