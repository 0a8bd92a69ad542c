package interfaces

import (
	"context"

	domain "main/internal/domain/entity/securities"

	"github.com/google/uuid"
)

type SecuritiesRepository interface {
	CreateSecurity(ctx context.Context, security *domain.Security) error
	GetSecurity(ctx context.Context, uid uuid.UUID) (*domain.Security, error)
	GetSecurityByTicker(ctx context.Context, ticker string) (*domain.Security, error)
	ListSecurities(ctx context.Context) ([]domain.Security, error)
	UpdateSecurity(ctx context.Context, security *domain.Security) error
	DeleteSecurity(ctx context.Context, uid uuid.UUID) error
	Close()
}
