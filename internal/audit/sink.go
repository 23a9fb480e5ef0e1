// Package audit отправляет лайфцикл-события тикетов в лог-канал
// (best-effort: ошибки логируются и не прерывают операцию).
package audit

import (
	"context"
	"fmt"
	"log"
	"time"
)

// EventType — тип лайфцикл-события.
type EventType string

const (
	EventCreated             EventType = "created"
	EventClaimed             EventType = "claimed"
	EventClosedByOwner       EventType = "closed_by_owner"
	EventClosedByStaff       EventType = "closed_by_staff"
	EventReopened            EventType = "reopened"
	EventTranscriptGenerated EventType = "transcript_generated"
	EventDeleted             EventType = "deleted"
)

// Event — структурированное событие аудита.
type Event struct {
	Type          EventType
	ChannelName   string
	TicketNumber  int
	ActorID       string
	TranscriptURL string
}

// Sender — минимальная способность платформы, нужная синку.
type Sender interface {
	SendMessage(ctx context.Context, channelID, content string) (string, error)
}

// Sink пишет события в настроенный канал. Пустой channelID — аудит отключён,
// все вызовы no-op.
type Sink struct {
	sender    Sender
	channelID string
}

func NewSink(sender Sender, channelID string) *Sink {
	return &Sink{sender: sender, channelID: channelID}
}

// Emit отправляет событие. Не блокирует вызывающий поток дольше таймаута
// и никогда не возвращает ошибку наружу.
func (s *Sink) Emit(e Event) {
	if s == nil || s.channelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.sender.SendMessage(ctx, s.channelID, formatEvent(e)); err != nil {
		log.Printf("audit: send %s for %s: %v", e.Type, e.ChannelName, err)
	}
}

func formatEvent(e Event) string {
	actor := "<@" + e.ActorID + ">"
	ticket := fmt.Sprintf("`%s` (#%04d)", e.ChannelName, e.TicketNumber)
	switch e.Type {
	case EventCreated:
		return fmt.Sprintf("📨 Тикет %s создан пользователем %s", ticket, actor)
	case EventClaimed:
		return fmt.Sprintf("🛠 Тикет %s взят в работу: %s", ticket, actor)
	case EventClosedByOwner:
		return fmt.Sprintf("🔒 Тикет %s закрыт автором %s", ticket, actor)
	case EventClosedByStaff:
		return fmt.Sprintf("🔒 Тикет %s закрыт администратором %s", ticket, actor)
	case EventReopened:
		return fmt.Sprintf("🔓 Тикет %s переоткрыт: %s", ticket, actor)
	case EventTranscriptGenerated:
		return fmt.Sprintf("📄 Транскрипт тикета %s: %s (от %s)", ticket, e.TranscriptURL, actor)
	case EventDeleted:
		return fmt.Sprintf("🗑 Тикет %s удалён: %s", ticket, actor)
	default:
		return fmt.Sprintf("Тикет %s: %s (%s)", ticket, e.Type, actor)
	}
}
