package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rustlegion/ticket-bot/internal/errs"
	"github.com/rustlegion/ticket-bot/internal/model"
	"gorm.io/gorm"
)

// TicketStore — интерфейс хранилища для движка тикетов (подменяется
// in-memory реализацией в тестах).
type TicketStore interface {
	// Create выделяет ticket_number и вставляет строку одной транзакцией.
	Create(ctx context.Context, t *model.Ticket) error
	GetByChannel(ctx context.Context, channelID string) (*model.Ticket, error)
	// SetChannel привязывает созданный канал к строке тикета.
	SetChannel(ctx context.Context, id uint64, channelID string) error
	SetClaimed(ctx context.Context, id uint64, staffID string) error
	SetStatus(ctx context.Context, id uint64, status model.TicketStatus) error
	SetTranscriptGenerated(ctx context.Context, id uint64) error
	// MarkDeleted ставит tombstone: status=deleted, channel_id очищается.
	MarkDeleted(ctx context.Context, id uint64) error
	// Delete удаляет строку, созданную в рамках неудавшегося Create
	// (all-or-nothing при ошибке публикации summary).
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, status model.TicketStatus, limit, offset int) ([]model.Ticket, int64, error)
}

// allocRetries — число повторов вставки при гонке за ticket_number.
const allocRetries = 5

type TicketService struct {
	db *gorm.DB
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

// Create выделяет следующий номер как max(ticket_number)+1 внутри транзакции
// вставки. Гонку двух одновременных созданий ловит уникальный индекс:
// проигравшая транзакция получает ErrDuplicatedKey и повторяет выделение.
// Межпроцессная взаимоисключаемость обеспечивается индексом в БД, а не
// локом в памяти.
func (s *TicketService) Create(ctx context.Context, t *model.Ticket) error {
	for i := 0; i < allocRetries; i++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var max sql.NullInt64
			if err := tx.Model(&model.Ticket{}).Select("MAX(ticket_number)").Scan(&max).Error; err != nil {
				return err
			}
			t.TicketNumber = int(max.Int64) + 1
			return tx.Create(t).Error
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			t.ID = 0
			continue
		}
		return err
	}
	return fmt.Errorf("allocate ticket number: %w", gorm.ErrDuplicatedKey)
}

func (s *TicketService) GetByChannel(ctx context.Context, channelID string) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *TicketService) SetChannel(ctx context.Context, id uint64, channelID string) error {
	return s.updates(ctx, id, map[string]interface{}{"channel_id": channelID})
}

func (s *TicketService) SetClaimed(ctx context.Context, id uint64, staffID string) error {
	return s.updates(ctx, id, map[string]interface{}{"claimed_by": staffID})
}

func (s *TicketService) SetStatus(ctx context.Context, id uint64, status model.TicketStatus) error {
	return s.updates(ctx, id, map[string]interface{}{"status": status})
}

func (s *TicketService) SetTranscriptGenerated(ctx context.Context, id uint64) error {
	return s.updates(ctx, id, map[string]interface{}{"transcript_generated": true})
}

func (s *TicketService) MarkDeleted(ctx context.Context, id uint64) error {
	return s.updates(ctx, id, map[string]interface{}{
		"status":     model.TicketStatusDeleted,
		"channel_id": "",
	})
}

func (s *TicketService) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&model.Ticket{}, id).Error
}

func (s *TicketService) List(ctx context.Context, status model.TicketStatus, limit, offset int) ([]model.Ticket, int64, error) {
	var items []model.Ticket
	var total int64
	tx := s.db.WithContext(ctx).Model(&model.Ticket{})
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("ticket_number DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *TicketService) updates(ctx context.Context, id uint64, changes map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.Ticket{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrTicketNotFound
	}
	return nil
}
