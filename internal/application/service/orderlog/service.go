package orderlog

import (
	"context"
	"errors"
	"time"

	orderlog "main/internal/domain/entity/orderlog"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
)

var (
	ErrNilEntry     = errors.New("order log entry is nil")
	ErrInvalidLimit = errors.New("limit must be positive")
)

type Service struct {
	repo interfaces.OrderLogRepository
}

func NewService(repo interfaces.OrderLogRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) AddEntry(ctx context.Context, entry *orderlog.Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	return s.repo.AddEntry(ctx, entry)
}

func (s *Service) AddEntries(ctx context.Context, entries []orderlog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.repo.AddEntries(ctx, entries)
}

func (s *Service) GetEntriesBetween(ctx context.Context, securityUID uuid.UUID, from, to time.Time) ([]orderlog.Entry, error) {
	if from.After(to) {
		from, to = to, from
	}
	return s.repo.GetEntriesBetween(ctx, securityUID, from, to)
}

func (s *Service) GetLastEntries(ctx context.Context, securityUID uuid.UUID, limit int) ([]orderlog.Entry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.repo.GetLastEntries(ctx, securityUID, limit)
}

func (s *Service) Close() {
	s.repo.Close()
}
