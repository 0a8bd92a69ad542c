package securities

import (
	"context"
	"errors"

	domain "main/internal/domain/entity/securities"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
)

var ErrNilSecurity = errors.New("security is nil")

type Service struct {
	repo interfaces.SecuritiesRepository
}

func NewService(repo interfaces.SecuritiesRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateSecurity(ctx context.Context, security *domain.Security) error {
	if security == nil {
		return ErrNilSecurity
	}
	if err := security.Validate(); err != nil {
		return err
	}
	return s.repo.CreateSecurity(ctx, security)
}

func (s *Service) GetSecurity(ctx context.Context, uid uuid.UUID) (*domain.Security, error) {
	return s.repo.GetSecurity(ctx, uid)
}

func (s *Service) GetSecurityByTicker(ctx context.Context, ticker string) (*domain.Security, error) {
	return s.repo.GetSecurityByTicker(ctx, ticker)
}

func (s *Service) ListSecurities(ctx context.Context) ([]domain.Security, error) {
	return s.repo.ListSecurities(ctx)
}

func (s *Service) UpdateSecurity(ctx context.Context, security *domain.Security) error {
	if security == nil {
		return ErrNilSecurity
	}
	if err := security.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateSecurity(ctx, security)
}

func (s *Service) DeleteSecurity(ctx context.Context, uid uuid.UUID) error {
	return s.repo.DeleteSecurity(ctx, uid)
}

func (s *Service) Close() {
	s.repo.Close()
}
