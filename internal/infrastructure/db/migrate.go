package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the minimal tables needed by this app.
// This keeps setup simple (no external migration tool), but still gives persistence.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists positions (
			id text primary key,
			user_id text not null,
			symbol text not null,
			quantity double precision not null,
			avg_price double precision not null,
			initial_entry_price double precision not null,
			last_reentry_price double precision not null default 0,
			reentry_count int not null default 0,
			reentries jsonb not null default '[]'::jsonb,
			signal_state jsonb not null default '{}'::jsonb,
			entry_reason text not null default '',
			exit_reason text not null default '',
			exit_price double precision null,
			realized_pnl double precision null,
			opened_at timestamptz not null,
			closed_at timestamptz null
		);`,
		// Unique: the database itself enforces at most one open ledger
		// per (user,symbol), even if an application check is bypassed.
		`create unique index if not exists positions_open_idx on positions(user_id, symbol) where closed_at is null;`,
		`create index if not exists positions_closed_at_idx on positions(closed_at);`,
		`create table if not exists orders (
			id text primary key,
			user_id text not null,
			symbol text not null,
			side text not null,
			quantity double precision not null,
			price double precision not null,
			status text not null,
			reason text not null default '',
			last_error text not null default '',
			retryable boolean not null default false,
			retry_count int not null default 0,
			first_failed_at timestamptz null,
			last_retry_attempt timestamptz null,
			execution_price double precision null,
			execution_qty double precision null,
			filled_at timestamptz null,
			broker_order_id bigint null,
			base_priority_score double precision null,
			confidence double precision not null default 0,
			combined_score double precision not null default 0,
			signal_level int not null default 0,
			signal_rsi double precision not null default 0,
			created_at timestamptz not null
		);`,
		`create index if not exists orders_status_idx on orders(user_id, status);`,
		`create index if not exists orders_symbol_idx on orders(user_id, symbol, created_at desc);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
