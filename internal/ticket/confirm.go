package ticket

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type confirmKind int

const (
	confirmClose confirmKind = iota
	confirmDelete
)

// pending — короткоживущее состояние подтверждения. Хранит только ссылку на
// тикет и срок; по истечении просто выбрасывается (истечение = отмена).
type pending struct {
	kind      confirmKind
	ticketID  uint64
	channelID string
	actorID   string
	expiresAt time.Time
}

// confirms — реестр живых подтверждений. Токен одноразовый: Take снимает
// запись независимо от результата.
type confirms struct {
	mu    sync.Mutex
	items map[string]pending
	ttl   time.Duration
	now   func() time.Time
}

func newConfirms(ttl time.Duration) *confirms {
	return &confirms{
		items: make(map[string]pending),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *confirms) put(kind confirmKind, ticketID uint64, channelID, actorID string) string {
	token := uuid.NewString()
	c.mu.Lock()
	c.items[token] = pending{
		kind:      kind,
		ticketID:  ticketID,
		channelID: channelID,
		actorID:   actorID,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	// Просроченные записи вычищаются сами, чтобы реестр не рос.
	time.AfterFunc(c.ttl+time.Second, func() { c.drop(token) })
	return token
}

// take возвращает запись, если токен жив и нужного вида. Запись снимается
// в любом случае.
func (c *confirms) take(token string, kind confirmKind) (pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[token]
	if !ok {
		return pending{}, false
	}
	delete(c.items, token)
	if p.kind != kind || c.now().After(p.expiresAt) {
		return pending{}, false
	}
	return p, true
}

func (c *confirms) drop(token string) {
	c.mu.Lock()
	delete(c.items, token)
	c.mu.Unlock()
}
