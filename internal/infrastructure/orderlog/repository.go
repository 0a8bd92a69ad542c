package orderlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"main/internal/domain/entity/depth"
	domain "main/internal/domain/entity/orderlog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const insertEntryQuery = `
	INSERT INTO order_log_entries (
		entry_id, security_uid, side, price, volume, exec_type,
		trade_price, is_cancelled, time_in_force,
		transaction_id, original_transaction_id, order_id,
		portfolio_name, user_order_id, local_time, server_time
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

func (r *Repository) AddEntry(ctx context.Context, entry *domain.Entry) error {
	if entry == nil {
		return errors.New("nil entry")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, insertEntryQuery, entryArgs(entry)...)
	return err
}

func (r *Repository) AddEntries(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(entries))
	for i := range entries {
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
		rows = append(rows, entryArgs(&entries[i]))
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"order_log_entries"},
		[]string{
			"entry_id", "security_uid", "side", "price", "volume", "exec_type",
			"trade_price", "is_cancelled", "time_in_force",
			"transaction_id", "original_transaction_id", "order_id",
			"portfolio_name", "user_order_id", "local_time", "server_time",
		},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (r *Repository) GetEntriesBetween(ctx context.Context, securityUID uuid.UUID, from, to time.Time) ([]domain.Entry, error) {
	const query = `
		SELECT entry_id, security_uid, side, price, volume, exec_type,
		       trade_price, is_cancelled, time_in_force,
		       transaction_id, original_transaction_id, order_id,
		       portfolio_name, user_order_id, local_time, server_time
		FROM order_log_entries
		WHERE security_uid=$1 AND local_time >= $2 AND local_time <= $3
		ORDER BY local_time ASC`
	rows, err := r.pool.Query(ctx, query, securityUID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *Repository) GetLastEntries(ctx context.Context, securityUID uuid.UUID, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	const query = `
		SELECT entry_id, security_uid, side, price, volume, exec_type,
		       trade_price, is_cancelled, time_in_force,
		       transaction_id, original_transaction_id, order_id,
		       portfolio_name, user_order_id, local_time, server_time
		FROM order_log_entries
		WHERE security_uid=$1
		ORDER BY local_time DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, securityUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func entryArgs(entry *domain.Entry) []interface{} {
	return []interface{}{
		entry.ID,
		entry.SecurityID,
		string(entry.Side),
		entry.Price,
		entry.Volume,
		string(entry.ExecType),
		nullableDecimal(entry.TradePrice),
		entry.IsCancelled,
		string(entry.TimeInForce),
		entry.TransactionID,
		entry.OriginalTransactionID,
		entry.OrderID,
		entry.PortfolioName,
		entry.UserOrderID,
		entry.LocalTime,
		nullableTime(entry.ServerTime),
	}
}

func scanEntry(row pgx.Row) (domain.Entry, error) {
	var (
		side       string
		execType   string
		tif        string
		tradePrice decimal.NullDecimal
		serverTime sql.NullTime
	)
	entry := domain.Entry{}
	err := row.Scan(
		&entry.ID,
		&entry.SecurityID,
		&side,
		&entry.Price,
		&entry.Volume,
		&execType,
		&tradePrice,
		&entry.IsCancelled,
		&tif,
		&entry.TransactionID,
		&entry.OriginalTransactionID,
		&entry.OrderID,
		&entry.PortfolioName,
		&entry.UserOrderID,
		&entry.LocalTime,
		&serverTime,
	)
	if err != nil {
		return domain.Entry{}, err
	}
	entry.Side = depth.Side(side)
	entry.ExecType = domain.ExecType(execType)
	entry.TimeInForce = domain.TimeInForce(tif)
	if tradePrice.Valid {
		entry.TradePrice = tradePrice.Decimal
	}
	if serverTime.Valid {
		entry.ServerTime = serverTime.Time
	}
	return entry, nil
}

func nullableDecimal(value decimal.Decimal) interface{} {
	if value.IsZero() {
		return nil
	}
	return value
}

func nullableTime(value time.Time) interface{} {
	if value.IsZero() {
		return nil
	}
	return value
}
