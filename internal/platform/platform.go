// Package platform изолирует движок тикетов от чат-платформы: создание и
// удаление каналов, публикация сообщений, выборка истории. Боевая реализация —
// Discord (discord.go), тесты подставляют фейк.
package platform

import (
	"context"
	"time"

	"github.com/rustlegion/ticket-bot/internal/model"
)

// FieldValue — заполненное поле формы в порядке отображения.
type FieldValue struct {
	Label string
	Value string
}

// Message — платформонезависимое сообщение истории канала.
type Message struct {
	ID           string
	AuthorID     string
	AuthorName   string
	AuthorAvatar string
	Timestamp    time.Time
	Content      string
	Embeds       []Embed
}

// Embed — структурированный блок контента ("rich content").
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
}

type EmbedField struct {
	Name  string
	Value string
}

// Platform — возможности хост-платформы, которые нужны движку тикетов.
type Platform interface {
	// CreateTicketChannel создаёт канал в категории: владелец и staff-роль
	// видят и пишут, @everyone не видит.
	CreateTicketChannel(ctx context.Context, name, categoryID, ownerID, staffRoleID string) (channelID string, err error)
	// DeleteChannel удаляет канал. Для уже удалённого канала возвращает
	// ErrChannelGone.
	DeleteChannel(ctx context.Context, channelID string) error
	// RestoreAccess заново выставляет права владельца и staff-роли (reopen).
	RestoreAccess(ctx context.Context, channelID, ownerID, staffRoleID string) error

	// SendTicketSummary публикует карточку тикета с контролами лайфцикла,
	// возвращает id сообщения.
	SendTicketSummary(ctx context.Context, channelID string, t *model.Ticket, fields []FieldValue) (messageID string, err error)
	// UpdateSummaryAssignee правит поле "Куратор" в уже опубликованной карточке.
	UpdateSummaryAssignee(ctx context.Context, channelID, messageID, staffID string) error
	// SendClosedPanel публикует панель закрытого тикета (транскрипт/реопен/удаление).
	SendClosedPanel(ctx context.Context, channelID string, t *model.Ticket) error
	// SendMessage отправляет обычное текстовое сообщение.
	SendMessage(ctx context.Context, channelID, content string) (messageID string, err error)

	// ChannelMessages возвращает страницу истории канала строго старше afterID,
	// от старых к новым. Пустая страница означает конец истории.
	ChannelMessages(ctx context.Context, channelID, afterID string, limit int) ([]Message, error)
}
