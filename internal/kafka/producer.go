package kafka

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/rustlegion/ticket-bot/internal/model"
	"github.com/segmentio/kafka-go"
)

// Producer пишет лайфцикл-события тикетов в топик Kafka (best-effort,
// не блокирует обработку интеракций). Если brokers или topic пустые —
// методы no-op.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// ProduceTicketEvent отправляет событие тикета: event — ticket.created,
// ticket.claimed, ticket.closed, ticket.transcript, ticket.deleted.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, t *model.Ticket, actorID string) {
	if p.writer == nil {
		return
	}
	msg := map[string]interface{}{
		"event":         event,
		"ticket_id":     t.ID,
		"ticket_number": t.TicketNumber,
		"ticket_type":   t.TicketType,
		"channel_id":    t.ChannelID,
		"user_id":       t.UserID,
		"status":        string(t.Status),
		"actor_id":      actorID,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("kafka: marshal ticket event: %v", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		log.Printf("kafka: write ticket event: %v", err)
	}
}

// ProduceAsync отправляет событие в отдельной горутине.
func (p *Producer) ProduceAsync(event string, t *model.Ticket, actorID string) {
	if p == nil || p.writer == nil {
		return
	}
	cp := *t
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.ProduceTicketEvent(ctx, event, &cp, actorID)
	}()
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers разбивает строку "host1:9092,host2:9092" на слайс.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
