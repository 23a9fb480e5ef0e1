package ticket

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustlegion/ticket-bot/internal/model"
	"github.com/rustlegion/ticket-bot/internal/platform"
)

// fakePlatform — потокобезопасный фейк чат-платформы для тестов движка.
type fakePlatform struct {
	mu sync.Mutex

	createErr  error
	summaryErr error
	deleteErr  error

	nextCh    int
	channels  map[string]string // channelID -> name
	deleted   []string
	summaries map[string][]platform.FieldValue // channelID -> поля карточки
	panels    []string                         // каналы с панелью закрытого тикета
	sent      map[string][]string              // channelID -> тексты сообщений
	restored  []string
	assignees map[string]string // messageID -> staffID

	history map[string][]platform.Message
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:  make(map[string]string),
		summaries: make(map[string][]platform.FieldValue),
		sent:      make(map[string][]string),
		assignees: make(map[string]string),
		history:   make(map[string][]platform.Message),
	}
}

func (f *fakePlatform) CreateTicketChannel(ctx context.Context, name, categoryID, ownerID, staffRoleID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextCh++
	id := fmt.Sprintf("chan-%d", f.nextCh)
	f.channels[id] = name
	return id, nil
}

func (f *fakePlatform) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.channels, channelID)
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakePlatform) RestoreAccess(ctx context.Context, channelID, ownerID, staffRoleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, channelID)
	return nil
}

func (f *fakePlatform) SendTicketSummary(ctx context.Context, channelID string, t *model.Ticket, fields []platform.FieldValue) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	f.summaries[channelID] = fields
	return "summary-" + channelID, nil
}

func (f *fakePlatform) UpdateSummaryAssignee(ctx context.Context, channelID, messageID, staffID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignees[messageID] = staffID
	return nil
}

func (f *fakePlatform) SendClosedPanel(ctx context.Context, channelID string, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels = append(f.panels, channelID)
	return nil
}

func (f *fakePlatform) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], content)
	return fmt.Sprintf("msg-%d", len(f.sent[channelID])), nil
}

func (f *fakePlatform) ChannelMessages(ctx context.Context, channelID, afterID string, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.history[channelID]
	start := 0
	if afterID != "" {
		for i, m := range all {
			if m.ID == afterID {
				start = i + 1
				break
			}
		}
	}
	if start >= len(all) {
		return nil, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := make([]platform.Message, end-start)
	copy(page, all[start:end])
	return page, nil
}

func (f *fakePlatform) channelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func (f *fakePlatform) deletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}
