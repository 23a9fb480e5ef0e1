package model

import (
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusClosed  TicketStatus = "closed"
	TicketStatusDeleted TicketStatus = "deleted"
)

// Ticket — строка таблицы tickets. Номер выдаётся при создании и никогда не
// переиспользуется; строка физически не удаляется (status=deleted — tombstone,
// сохраняющий историю нумерации).
type Ticket struct {
	ID                  uint64       `gorm:"primaryKey" json:"id"`
	TicketNumber        int          `gorm:"uniqueIndex;not null" json:"ticket_number"`
	TicketType          string       `gorm:"type:varchar(32);not null" json:"ticket_type"`
	TicketLetter        string       `gorm:"type:char(1);not null" json:"ticket_letter"`
	UserID              string       `gorm:"type:varchar(32);index;not null" json:"user_id"`
	ChannelID           string       `gorm:"type:varchar(32);index" json:"channel_id,omitempty"`
	Status              TicketStatus `gorm:"type:varchar(16);index;not null;default:open" json:"status"`
	TranscriptGenerated bool         `gorm:"not null;default:false" json:"transcript_generated"`
	ClaimedBy           string       `gorm:"type:varchar(32)" json:"claimed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChannelName — имя тикет-канала вида ticket-0007T.
func (t *Ticket) ChannelName() string {
	return fmt.Sprintf("ticket-%04d%s", t.TicketNumber, t.TicketLetter)
}

// DisplayID — отображаемый идентификатор (#0007T).
func (t *Ticket) DisplayID() string {
	return fmt.Sprintf("#%04d%s", t.TicketNumber, t.TicketLetter)
}

func (t *Ticket) IsOpen() bool   { return t.Status == TicketStatusOpen }
func (t *Ticket) IsClosed() bool { return t.Status == TicketStatusClosed }
