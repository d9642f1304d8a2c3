package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type stubRow struct {
	err error
}

func (r stubRow) Scan(dest ...any) error { return r.err }

type stubPool struct {
	row pgx.Row
}

func (p *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (p *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (p *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.row
}

// Only a missing row reads as "flat". A database failure must surface
// so the ledger never opens a second position off a bad read.
func Test_PostgresPositions_GetOpenErrorHandling(t *testing.T) {
	repo := &PostgresPositionRepository{pool: &stubPool{row: stubRow{err: pgx.ErrNoRows}}}
	p, err := repo.GetOpen("u1", "ACME")
	require.NoError(t, err)
	require.Nil(t, p)

	connErr := errors.New("connection refused")
	repo = &PostgresPositionRepository{pool: &stubPool{row: stubRow{err: connErr}}}
	p, err = repo.GetOpen("u1", "ACME")
	require.ErrorIs(t, err, connErr)
	require.Nil(t, p)
}
