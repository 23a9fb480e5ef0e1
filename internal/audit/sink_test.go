package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []string
	channels []string
}

func (r *recordingSender) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, channelID)
	r.messages = append(r.messages, content)
	return "msg-1", nil
}

func TestEmitSendsToConfiguredChannel(t *testing.T) {
	sender := &recordingSender{}
	sink := NewSink(sender, "log-1")

	sink.Emit(Event{Type: EventCreated, ChannelName: "ticket-0007T", TicketNumber: 7, ActorID: "u1"})

	require.Len(t, sender.messages, 1)
	assert.Equal(t, "log-1", sender.channels[0])
	assert.Contains(t, sender.messages[0], "ticket-0007T")
	assert.Contains(t, sender.messages[0], "<@u1>")
}

func TestEmitDisabledWithoutChannel(t *testing.T) {
	sender := &recordingSender{}
	sink := NewSink(sender, "")

	sink.Emit(Event{Type: EventDeleted, ChannelName: "ticket-0001A", TicketNumber: 1, ActorID: "u1"})
	assert.Empty(t, sender.messages)
}

func TestTranscriptEventCarriesLink(t *testing.T) {
	sender := &recordingSender{}
	sink := NewSink(sender, "log-1")

	sink.Emit(Event{
		Type:          EventTranscriptGenerated,
		ChannelName:   "ticket-0007T",
		TicketNumber:  7,
		ActorID:       "staff-1",
		TranscriptURL: "https://tickets.example.com/transcripts/ticket-0007T.html",
	})

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "https://tickets.example.com/transcripts/ticket-0007T.html")
}
