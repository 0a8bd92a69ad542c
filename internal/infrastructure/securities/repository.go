package securities

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "main/internal/domain/entity/securities"
	"main/internal/infrastructure/securities/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSecurityNotFound = errors.New("security not found")

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

const securityColumns = `uid, ticker, board_code, time_zone, lot, price_step, volume_step, created_at, updated_at, deleted_at`

func (r *Repository) CreateSecurity(ctx context.Context, security *domain.Security) error {
	if security == nil {
		return errors.New("security is nil")
	}
	if security.UID == uuid.Nil {
		security.UID = uuid.New()
	}
	now := time.Now().UTC()
	if security.CreatedAt.IsZero() {
		security.CreatedAt = now
	}
	security.UpdatedAt = now

	model := models.FromDomain(security)
	const query = `
		INSERT INTO securities (uid, ticker, board_code, time_zone, lot, price_step, volume_step, created_at, updated_at, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING ` + securityColumns

	row := r.pool.QueryRow(ctx, query,
		model.UID,
		model.Ticker,
		model.BoardCode,
		model.TimeZone,
		model.Lot,
		model.PriceStep,
		model.VolumeStep,
		model.CreatedAt,
		model.UpdatedAt,
		nullableDeletedAt(model),
	)
	return scanSecurityInto(row, security)
}

func (r *Repository) GetSecurity(ctx context.Context, uid uuid.UUID) (*domain.Security, error) {
	const query = `
		SELECT ` + securityColumns + `
		FROM securities
		WHERE uid = $1 AND deleted_at IS NULL`

	row := r.pool.QueryRow(ctx, query, uid)
	security := &domain.Security{}
	if err := scanSecurityInto(row, security); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSecurityNotFound
		}
		return nil, err
	}
	return security, nil
}

func (r *Repository) GetSecurityByTicker(ctx context.Context, ticker string) (*domain.Security, error) {
	const query = `
		SELECT ` + securityColumns + `
		FROM securities
		WHERE ticker = $1 AND deleted_at IS NULL`

	row := r.pool.QueryRow(ctx, query, ticker)
	security := &domain.Security{}
	if err := scanSecurityInto(row, security); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSecurityNotFound
		}
		return nil, err
	}
	return security, nil
}

func (r *Repository) ListSecurities(ctx context.Context) ([]domain.Security, error) {
	const query = `
		SELECT ` + securityColumns + `
		FROM securities
		WHERE deleted_at IS NULL
		ORDER BY ticker ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var securities []domain.Security
	for rows.Next() {
		var security domain.Security
		if err := scanSecurityInto(rows, &security); err != nil {
			return nil, err
		}
		securities = append(securities, security)
	}
	return securities, rows.Err()
}

func (r *Repository) UpdateSecurity(ctx context.Context, security *domain.Security) error {
	if security == nil {
		return errors.New("security is nil")
	}
	if security.UID == uuid.Nil {
		return errors.New("security UID is required")
	}
	security.UpdatedAt = time.Now().UTC()

	model := models.FromDomain(security)
	const query = `
		UPDATE securities
		SET ticker=$2,
			board_code=$3,
			time_zone=$4,
			lot=$5,
			price_step=$6,
			volume_step=$7,
			updated_at=$8
		WHERE uid=$1 AND deleted_at IS NULL
		RETURNING ` + securityColumns

	row := r.pool.QueryRow(ctx, query,
		model.UID,
		model.Ticker,
		model.BoardCode,
		model.TimeZone,
		model.Lot,
		model.PriceStep,
		model.VolumeStep,
		model.UpdatedAt,
	)
	if err := scanSecurityInto(row, security); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSecurityNotFound
		}
		return err
	}
	return nil
}

func (r *Repository) DeleteSecurity(ctx context.Context, uid uuid.UUID) error {
	const query = `
		UPDATE securities
		SET deleted_at = NOW()
		WHERE uid=$1 AND deleted_at IS NULL`
	cmdTag, err := r.pool.Exec(ctx, query, uid)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSecurityNotFound
	}
	return nil
}

func scanSecurityInto(row pgx.Row, security *domain.Security) error {
	var (
		model     models.SecurityModel
		deletedAt *time.Time
	)
	err := row.Scan(
		&model.UID,
		&model.Ticker,
		&model.BoardCode,
		&model.TimeZone,
		&model.Lot,
		&model.PriceStep,
		&model.VolumeStep,
		&model.CreatedAt,
		&model.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return err
	}
	*security = model.ToDomain()
	security.DeletedAt = deletedAt
	return nil
}

func nullableDeletedAt(model models.SecurityModel) interface{} {
	if !model.DeletedAt.Valid {
		return nil
	}
	return model.DeletedAt.Time
}
