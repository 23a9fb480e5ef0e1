package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmTakeOnce(t *testing.T) {
	c := newConfirms(time.Minute)
	token := c.put(confirmClose, 1, "chan-1", "u1")

	p, ok := c.take(token, confirmClose)
	require.True(t, ok)
	assert.Equal(t, uint64(1), p.ticketID)
	assert.Equal(t, "chan-1", p.channelID)
	assert.Equal(t, "u1", p.actorID)

	_, ok = c.take(token, confirmClose)
	assert.False(t, ok, "token must be single-use")
}

func TestConfirmKindMismatch(t *testing.T) {
	c := newConfirms(time.Minute)
	token := c.put(confirmClose, 1, "chan-1", "u1")

	_, ok := c.take(token, confirmDelete)
	assert.False(t, ok)
}

func TestConfirmExpiry(t *testing.T) {
	c := newConfirms(time.Minute)
	token := c.put(confirmDelete, 2, "chan-2", "u2")

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := c.take(token, confirmDelete)
	assert.False(t, ok, "expired token must act as cancelled")
}

func TestConfirmUnknownToken(t *testing.T) {
	c := newConfirms(time.Minute)
	_, ok := c.take("nope", confirmClose)
	assert.False(t, ok)
}
