package interfaces

import (
	"context"
	"time"

	orderlog "main/internal/domain/entity/orderlog"

	"github.com/google/uuid"
)

type OrderLogRepository interface {
	AddEntry(ctx context.Context, entry *orderlog.Entry) error
	AddEntries(ctx context.Context, entries []orderlog.Entry) error
	GetEntriesBetween(ctx context.Context, securityUID uuid.UUID, from, to time.Time) ([]orderlog.Entry, error)
	GetLastEntries(ctx context.Context, securityUID uuid.UUID, limit int) ([]orderlog.Entry, error)
	Close()
}
