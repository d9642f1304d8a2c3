package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"meanrev-backend/internal/domain"
)

// PostgresOrderRepository stores order rows in Postgres. Orders are
// never deleted; terminal states are reached via status updates.
type PostgresOrderRepository struct {
	pool pgPool
}

func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

const orderColumns = `id, user_id, symbol, side, quantity, price, status, reason, last_error,
	retryable, retry_count, first_failed_at, last_retry_attempt,
	execution_price, execution_qty, filled_at, broker_order_id,
	base_priority_score, confidence, combined_score, signal_level, signal_rsi, created_at`

func (r *PostgresOrderRepository) Create(o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}

	_, err := r.pool.Exec(context.Background(), `
		insert into orders(
			id, user_id, symbol, side, quantity, price, status, reason, last_error,
			retryable, retry_count, first_failed_at, last_retry_attempt,
			execution_price, execution_qty, filled_at, broker_order_id,
			base_priority_score, confidence, combined_score, signal_level, signal_rsi, created_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`,
		o.ID,
		o.UserID,
		o.Symbol,
		string(o.Side),
		o.Quantity,
		o.Price,
		string(o.Status),
		o.Reason,
		o.LastError,
		o.Retryable,
		o.RetryCount,
		nullableTime(o.FirstFailedAt),
		nullableTime(o.LastRetryAttempt),
		nullableFloat(o.ExecutionPrice),
		nullableFloat(o.ExecutionQty),
		nullableTime(o.FilledAt),
		nullableInt64(o.BrokerOrderID),
		nullableFloat(o.BasePriorityScore),
		o.Confidence,
		o.CombinedScore,
		o.SignalLevel,
		o.SignalRSI,
		o.CreatedAt,
	)
	return err
}

func (r *PostgresOrderRepository) GetByID(id string) (*domain.Order, error) {
	row := r.pool.QueryRow(context.Background(), `
		select `+orderColumns+` from orders where id = $1
	`, id)

	o, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("order with ID %s not found", id)
	}
	return o, nil
}

func (r *PostgresOrderRepository) Update(o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}

	_, err := r.pool.Exec(context.Background(), `
		update orders set
			status=$2,
			reason=$3,
			last_error=$4,
			retryable=$5,
			retry_count=$6,
			first_failed_at=$7,
			last_retry_attempt=$8,
			execution_price=$9,
			execution_qty=$10,
			filled_at=$11,
			broker_order_id=$12,
			base_priority_score=$13,
			confidence=$14,
			combined_score=$15,
			signal_level=$16,
			signal_rsi=$17
		where id=$1
	`,
		o.ID,
		string(o.Status),
		o.Reason,
		o.LastError,
		o.Retryable,
		o.RetryCount,
		nullableTime(o.FirstFailedAt),
		nullableTime(o.LastRetryAttempt),
		nullableFloat(o.ExecutionPrice),
		nullableFloat(o.ExecutionQty),
		nullableTime(o.FilledAt),
		nullableInt64(o.BrokerOrderID),
		nullableFloat(o.BasePriorityScore),
		o.Confidence,
		o.CombinedScore,
		o.SignalLevel,
		o.SignalRSI,
	)
	return err
}

func (r *PostgresOrderRepository) GetOpenBySymbol(userID, symbol string) []*domain.Order {
	rows, err := r.pool.Query(context.Background(), `
		select `+orderColumns+`
		from orders
		where user_id = $1 and symbol = $2
		  and (status in ('PENDING','ONGOING') or (status = 'FAILED' and retryable))
		order by created_at asc
	`, userID, symbol)
	if err != nil {
		return []*domain.Order{}
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *PostgresOrderRepository) GetFailed(userID string) []*domain.Order {
	rows, err := r.pool.Query(context.Background(), `
		select `+orderColumns+`
		from orders
		where user_id = $1 and status = 'FAILED'
		order by created_at asc
	`, userID)
	if err != nil {
		return []*domain.Order{}
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *PostgresOrderRepository) GetByUser(userID string) []*domain.Order {
	rows, err := r.pool.Query(context.Background(), `
		select `+orderColumns+`
		from orders
		where user_id = $1
		order by created_at asc
	`, userID)
	if err != nil {
		return []*domain.Order{}
	}
	defer rows.Close()
	return collectOrders(rows)
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
}

func collectOrders(rows pgRows) []*domain.Order {
	orders := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Printf("Error scanning order row: %v", err)
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	var side, status string
	var firstFailedAt, lastRetryAttempt, filledAt pgtype.Timestamptz
	var execPrice, execQty, baseScore pgtype.Float8
	var brokerOrderID pgtype.Int8

	if err := s.Scan(
		&o.ID,
		&o.UserID,
		&o.Symbol,
		&side,
		&o.Quantity,
		&o.Price,
		&status,
		&o.Reason,
		&o.LastError,
		&o.Retryable,
		&o.RetryCount,
		&firstFailedAt,
		&lastRetryAttempt,
		&execPrice,
		&execQty,
		&filledAt,
		&brokerOrderID,
		&baseScore,
		&o.Confidence,
		&o.CombinedScore,
		&o.SignalLevel,
		&o.SignalRSI,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}

	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)

	if firstFailedAt.Valid {
		v := firstFailedAt.Time
		o.FirstFailedAt = &v
	}
	if lastRetryAttempt.Valid {
		v := lastRetryAttempt.Time
		o.LastRetryAttempt = &v
	}
	if execPrice.Valid {
		v := execPrice.Float64
		o.ExecutionPrice = &v
	}
	if execQty.Valid {
		v := execQty.Float64
		o.ExecutionQty = &v
	}
	if filledAt.Valid {
		v := filledAt.Time
		o.FilledAt = &v
	}
	if brokerOrderID.Valid {
		v := brokerOrderID.Int64
		o.BrokerOrderID = &v
	}
	if baseScore.Valid {
		v := baseScore.Float64
		o.BasePriorityScore = &v
	}

	return &o, nil
}

// compile-time check
var _ domain.OrderRepository = (*PostgresOrderRepository)(nil)
