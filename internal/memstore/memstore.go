// Package memstore — потокобезопасное in-memory хранилище тикетов.
// Реализует service.TicketStore с той же семантикой нумерации, что и
// постгресовая реализация; используется в тестах движка и аллокатора.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/rustlegion/ticket-bot/internal/errs"
	"github.com/rustlegion/ticket-bot/internal/model"
)

type Store struct {
	mu      sync.Mutex
	nextID  uint64
	tickets map[uint64]*model.Ticket

	// CreateErr/UpdateErr — инъекция ошибок хранилища в тестах.
	CreateErr error
	UpdateErr error
}

func New() *Store {
	return &Store{tickets: make(map[uint64]*model.Ticket)}
}

func (s *Store) Create(ctx context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	max := 0
	for _, existing := range s.tickets {
		if existing.TicketNumber > max {
			max = existing.TicketNumber
		}
	}
	s.nextID++
	t.ID = s.nextID
	t.TicketNumber = max + 1
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *Store) GetByChannel(ctx context.Context, channelID string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channelID == "" {
		return nil, errs.ErrTicketNotFound
	}
	for _, t := range s.tickets {
		if t.ChannelID == channelID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errs.ErrTicketNotFound
}

func (s *Store) SetChannel(ctx context.Context, id uint64, channelID string) error {
	return s.update(id, func(t *model.Ticket) { t.ChannelID = channelID })
}

func (s *Store) SetClaimed(ctx context.Context, id uint64, staffID string) error {
	return s.update(id, func(t *model.Ticket) { t.ClaimedBy = staffID })
}

func (s *Store) SetStatus(ctx context.Context, id uint64, status model.TicketStatus) error {
	return s.update(id, func(t *model.Ticket) { t.Status = status })
}

func (s *Store) SetTranscriptGenerated(ctx context.Context, id uint64) error {
	return s.update(id, func(t *model.Ticket) { t.TranscriptGenerated = true })
}

func (s *Store) MarkDeleted(ctx context.Context, id uint64) error {
	return s.update(id, func(t *model.Ticket) {
		t.Status = model.TicketStatusDeleted
		t.ChannelID = ""
	})
}

func (s *Store) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}

func (s *Store) List(ctx context.Context, status model.TicketStatus, limit, offset int) ([]model.Ticket, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []model.Ticket
	for _, t := range s.tickets {
		if status != "" && t.Status != status {
			continue
		}
		items = append(items, *t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TicketNumber > items[j].TicketNumber })
	total := int64(len(items))
	if offset > 0 {
		if offset >= len(items) {
			items = nil
		} else {
			items = items[offset:]
		}
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

// Get возвращает тикет по первичному ключу (для проверок в тестах).
func (s *Store) Get(id uint64) (*model.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (s *Store) update(id uint64, apply func(*model.Ticket)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	t, ok := s.tickets[id]
	if !ok {
		return errs.ErrTicketNotFound
	}
	apply(t)
	return nil
}
