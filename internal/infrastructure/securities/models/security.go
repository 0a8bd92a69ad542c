package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domain "main/internal/domain/entity/securities"
)

type SecurityModel struct {
	UID        uuid.UUID       `gorm:"primaryKey;column:uid;type:uuid;not null"`
	Ticker     string          `gorm:"column:ticker;type:varchar(50);not null;index"`
	BoardCode  string          `gorm:"column:board_code;type:varchar(50)"`
	TimeZone   string          `gorm:"column:time_zone;type:varchar(64)"`
	Lot        int32           `gorm:"column:lot;type:integer;not null"`
	PriceStep  decimal.Decimal `gorm:"column:price_step;type:numeric(18,8)"`
	VolumeStep decimal.Decimal `gorm:"column:volume_step;type:numeric(18,8)"`
	CreatedAt  time.Time       `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	DeletedAt  gorm.DeletedAt  `gorm:"column:deleted_at;type:timestamp;index"`
}

func (SecurityModel) TableName() string {
	return "securities"
}

func (m SecurityModel) ToDomain() domain.Security {
	sec := domain.Security{
		UID:    m.UID,
		Ticker: m.Ticker,
		Board: domain.Board{
			Code:     m.BoardCode,
			TimeZone: m.TimeZone,
		},
		Lot:        m.Lot,
		PriceStep:  m.PriceStep,
		VolumeStep: m.VolumeStep,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.DeletedAt.Valid {
		t := m.DeletedAt.Time
		sec.DeletedAt = &t
	}
	return sec
}

func FromDomain(sec *domain.Security) SecurityModel {
	model := SecurityModel{
		UID:        sec.UID,
		Ticker:     sec.Ticker,
		BoardCode:  sec.Board.Code,
		TimeZone:   sec.Board.TimeZone,
		Lot:        sec.Lot,
		PriceStep:  sec.PriceStep,
		VolumeStep: sec.VolumeStep,
		CreatedAt:  sec.CreatedAt,
		UpdatedAt:  sec.UpdatedAt,
	}
	if sec.DeletedAt != nil {
		model.DeletedAt = gorm.DeletedAt{Time: *sec.DeletedAt, Valid: true}
	}
	return model
}
