package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"meanrev-backend/internal/domain"
)

// pgPool is the subset of pgxpool.Pool the repositories use; tests
// substitute a stub.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPositionRepository stores position ledgers in Postgres.
// Open positions: closed_at is null. The ordered reentry list and the
// signal state ride on the row as jsonb.
type PostgresPositionRepository struct {
	pool pgPool
}

func NewPostgresPositionRepository(pool *pgxpool.Pool) *PostgresPositionRepository {
	return &PostgresPositionRepository{pool: pool}
}

const positionColumns = `id, user_id, symbol, quantity, avg_price, initial_entry_price,
	last_reentry_price, reentry_count, reentries, signal_state,
	entry_reason, exit_reason, exit_price, realized_pnl, opened_at, closed_at`

func (r *PostgresPositionRepository) Create(p *domain.Position) error {
	if p == nil {
		return errors.New("nil position")
	}

	reentries, err := json.Marshal(p.Reentries)
	if err != nil {
		return err
	}
	signal, err := json.Marshal(p.Signal)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(context.Background(), `
		insert into positions(
			id, user_id, symbol, quantity, avg_price, initial_entry_price,
			last_reentry_price, reentry_count, reentries, signal_state,
			entry_reason, exit_reason, exit_price, realized_pnl, opened_at, closed_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		p.ID,
		p.UserID,
		p.Symbol,
		p.Quantity,
		p.AvgPrice,
		p.InitialEntryPrice,
		p.LastReentryPrice,
		p.ReentryCount,
		reentries,
		signal,
		p.EntryReason,
		p.ExitReason,
		nullableFloat(p.ExitPrice),
		nullableFloat(p.RealizedPnL),
		p.OpenedAt,
		nullableTime(p.ClosedAt),
	)
	return err
}

func (r *PostgresPositionRepository) GetOpen(userID, symbol string) (*domain.Position, error) {
	row := r.pool.QueryRow(context.Background(), `
		select `+positionColumns+`
		from positions
		where user_id = $1 and symbol = $2 and closed_at is null
		order by opened_at desc
		limit 1
	`, userID, symbol)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Flat symbol: not an error for callers.
			return nil, nil
		}
		// Anything else (connection loss, bad payload) must surface:
		// a swallowed error here would let a second open ledger in.
		return nil, fmt.Errorf("get open position %s/%s: %w", userID, symbol, err)
	}
	return p, nil
}

func (r *PostgresPositionRepository) GetOpenByUser(userID string) []*domain.Position {
	rows, err := r.pool.Query(context.Background(), `
		select `+positionColumns+`
		from positions
		where user_id = $1 and closed_at is null
		order by opened_at asc
	`, userID)
	if err != nil {
		return []*domain.Position{}
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		p, scanErr := scanPosition(rows)
		if scanErr != nil {
			log.Printf("Error scanning position row: %v", scanErr)
			continue
		}
		positions = append(positions, p)
	}
	return positions
}

func (r *PostgresPositionRepository) Update(p *domain.Position) error {
	if p == nil {
		return errors.New("nil position")
	}

	reentries, err := json.Marshal(p.Reentries)
	if err != nil {
		return err
	}
	signal, err := json.Marshal(p.Signal)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(context.Background(), `
		update positions set
			quantity=$2,
			avg_price=$3,
			last_reentry_price=$4,
			reentry_count=$5,
			reentries=$6,
			signal_state=$7,
			entry_reason=$8,
			exit_reason=$9,
			exit_price=$10,
			realized_pnl=$11,
			closed_at=$12
		where id=$1
	`,
		p.ID,
		p.Quantity,
		p.AvgPrice,
		p.LastReentryPrice,
		p.ReentryCount,
		reentries,
		signal,
		p.EntryReason,
		p.ExitReason,
		nullableFloat(p.ExitPrice),
		nullableFloat(p.RealizedPnL),
		nullableTime(p.ClosedAt),
	)
	return err
}

func (r *PostgresPositionRepository) GetHistory(userID string, fromTime time.Time) []*domain.Position {
	rows, err := r.pool.Query(context.Background(), `
		select `+positionColumns+`
		from positions
		where user_id = $1 and closed_at is not null and closed_at >= $2
		order by closed_at desc
	`, userID, fromTime)
	if err != nil {
		return []*domain.Position{}
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		p, scanErr := scanPosition(rows)
		if scanErr != nil {
			log.Printf("Error scanning position row: %v", scanErr)
			continue
		}
		positions = append(positions, p)
	}
	return positions
}

// Helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	var p domain.Position
	var reentries []byte
	var signal []byte
	var exitPrice pgtype.Float8
	var realizedPnL pgtype.Float8
	var closedAt pgtype.Timestamptz

	if err := s.Scan(
		&p.ID,
		&p.UserID,
		&p.Symbol,
		&p.Quantity,
		&p.AvgPrice,
		&p.InitialEntryPrice,
		&p.LastReentryPrice,
		&p.ReentryCount,
		&reentries,
		&signal,
		&p.EntryReason,
		&p.ExitReason,
		&exitPrice,
		&realizedPnL,
		&p.OpenedAt,
		&closedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(reentries, &p.Reentries); err != nil {
		return nil, fmt.Errorf("bad reentries payload for %s: %w", p.ID, err)
	}
	if len(signal) > 0 {
		p.Signal = domain.NewSignalState()
		if err := json.Unmarshal(signal, p.Signal); err != nil {
			return nil, fmt.Errorf("bad signal state payload for %s: %w", p.ID, err)
		}
	}

	if exitPrice.Valid {
		v := exitPrice.Float64
		p.ExitPrice = &v
	}
	if realizedPnL.Valid {
		v := realizedPnL.Float64
		p.RealizedPnL = &v
	}
	if closedAt.Valid {
		v := closedAt.Time
		p.ClosedAt = &v
	}

	return &p, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Valid: true, Float64: *v}
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Valid: true, Time: *v}
}

func nullableInt64(v *int64) any {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Valid: true, Int64: *v}
}

// compile-time check
var _ domain.PositionRepository = (*PostgresPositionRepository)(nil)
