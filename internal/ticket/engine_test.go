package ticket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rustlegion/ticket-bot/internal/audit"
	"github.com/rustlegion/ticket-bot/internal/errs"
	"github.com/rustlegion/ticket-bot/internal/kafka"
	"github.com/rustlegion/ticket-bot/internal/memstore"
	"github.com/rustlegion/ticket-bot/internal/model"
	"github.com/rustlegion/ticket-bot/internal/platform"
	"github.com/rustlegion/ticket-bot/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store, *fakePlatform) {
	t.Helper()
	store := memstore.New()
	fake := newFakePlatform()
	renderer := transcript.New(t.TempDir())
	sink := audit.NewSink(fake, "log-channel")
	events := kafka.NewProducer(nil, "")
	engine := NewEngine(store, fake, renderer, sink, events, Config{
		CategoryID:    "category-1",
		StaffRoleID:   "staff-role",
		TranscriptURL: func(filename string) string { return "https://tickets.example.com/transcripts/" + filename },
	})
	return engine, store, fake
}

func mustCreate(t *testing.T, e *Engine, typeKey, ownerID string, values map[string]string) *model.Ticket {
	t.Helper()
	tk, err := e.Create(context.Background(), typeKey, ownerID, values)
	require.NoError(t, err)
	return tk
}

func techValues(text string) map[string]string {
	return map[string]string{"description": text}
}

var (
	owner    = Actor{ID: "user-1"}
	staff    = Actor{ID: "staff-1", Staff: true}
	stranger = Actor{ID: "user-2"}
)

func TestCreateTechRoundTrip(t *testing.T) {
	engine, store, fake := newTestEngine(t)

	tk := mustCreate(t, engine, model.TypeTech, "user-1", techValues("X"))

	assert.Equal(t, "T", tk.TicketLetter)
	assert.Equal(t, model.TicketStatusOpen, tk.Status)
	assert.Equal(t, 1, tk.TicketNumber)
	assert.Equal(t, "ticket-0001T", tk.ChannelName())
	assert.False(t, tk.TranscriptGenerated)

	stored, ok := store.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, tk.ChannelID, stored.ChannelID)
	assert.Equal(t, "user-1", stored.UserID)

	// карточка опубликована в созданный канал
	fields := fake.summaries[tk.ChannelID]
	require.Len(t, fields, 1)
	assert.Equal(t, "X", fields[0].Value)
}

func TestCreateConcurrentNumbersDistinct(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	const n = 50
	var wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := engine.Create(context.Background(), model.TypeTech, fmt.Sprintf("user-%d", i), techValues("проблема"))
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			results <- tk.TicketNumber
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for num := range results {
		assert.False(t, seen[num], "duplicate ticket number %d", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestCreateValidation(t *testing.T) {
	engine, _, fake := newTestEngine(t)

	tests := []struct {
		name    string
		typeKey string
		values  map[string]string
	}{
		{"missing required", model.TypeTech, map[string]string{}},
		{"blank required", model.TypeTech, map[string]string{"description": "   "}},
		{"too long short field", model.TypePlayerReport, map[string]string{
			"violator":    longString(65),
			"time":        "вчера",
			"description": "описание",
		}},
		{"bad steam id", model.TypeUnbanRequest, map[string]string{
			"steam_id":    "not-a-steamid",
			"ban_date":    "20.01.2026",
			"description": "прошу разбан",
		}},
		{"unknown type", "other", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Create(context.Background(), tt.typeKey, "user-1", tt.values)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err), "want validation error, got %v", err)
		})
	}
	// ни строк, ни каналов не осталось
	assert.Equal(t, 0, fake.channelCount())
}

func TestCreateProvisioningFailureLeavesNoRow(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	fake.createErr = errors.New("category missing")

	_, err := engine.Create(context.Background(), model.TypeTech, "user-1", techValues("X"))
	require.Error(t, err)
	assert.True(t, errs.IsProvisioning(err))

	items, _, listErr := store.List(context.Background(), "", 0, 0)
	require.NoError(t, listErr)
	assert.Empty(t, items)
}

func TestCreateSummaryFailureRollsBack(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	fake.summaryErr = errors.New("send failed")

	_, err := engine.Create(context.Background(), model.TypeTech, "user-1", techValues("X"))
	require.Error(t, err)

	items, _, _ := store.List(context.Background(), "", 0, 0)
	assert.Empty(t, items, "row must not survive a failed create")
	assert.Equal(t, 0, fake.channelCount(), "orphaned channel must be removed")
}

func TestClaim(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	_, err := engine.Claim(context.Background(), tk.ChannelID, "summary-1", owner)
	assert.ErrorIs(t, err, errs.ErrPermission)

	claimed, err := engine.Claim(context.Background(), tk.ChannelID, "summary-1", staff)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, claimed.ClaimedBy)
	assert.Equal(t, staff.ID, fake.assignees["summary-1"])

	// повторный claim перезаписывает куратора
	other := Actor{ID: "staff-2", Staff: true}
	reclaimed, err := engine.Claim(context.Background(), tk.ChannelID, "summary-1", other)
	require.NoError(t, err)
	assert.Equal(t, other.ID, reclaimed.ClaimedBy)

	stored, _ := store.Get(tk.ID)
	assert.Equal(t, other.ID, stored.ClaimedBy)
}

func TestCloseByStrangerRejected(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	_, err := engine.Close(context.Background(), tk.ChannelID, stranger)
	assert.ErrorIs(t, err, errs.ErrPermission)

	stored, _ := store.Get(tk.ID)
	assert.Equal(t, model.TicketStatusOpen, stored.Status)
}

func TestCloseByOwnerNeedsConfirmation(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	outcome, err := engine.Close(context.Background(), tk.ChannelID, owner)
	require.NoError(t, err)
	assert.Nil(t, outcome.Closed)
	require.NotEmpty(t, outcome.ConfirmToken)

	// до подтверждения статус не меняется
	stored, _ := store.Get(tk.ID)
	assert.Equal(t, model.TicketStatusOpen, stored.Status)

	closed, err := engine.ConfirmClose(context.Background(), outcome.ConfirmToken, owner)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusClosed, closed.Status)

	stored, _ = store.Get(tk.ID)
	assert.Equal(t, model.TicketStatusClosed, stored.Status)
}

func TestCloseConfirmExpiresToCancel(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	outcome, err := engine.Close(context.Background(), tk.ChannelID, owner)
	require.NoError(t, err)

	// сдвигаем часы реестра за срок действия
	engine.confirms.now = func() time.Time { return time.Now().Add(CloseConfirmTTL + time.Second) }

	_, err = engine.ConfirmClose(context.Background(), outcome.ConfirmToken, owner)
	assert.ErrorIs(t, err, errs.ErrConfirmExpired)

	stored, _ := store.Get(tk.ID)
	assert.Equal(t, model.TicketStatusOpen, stored.Status, "timeout must leave status unchanged")
}

func TestCloseConfirmWrongActorRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	outcome, err := engine.Close(context.Background(), tk.ChannelID, owner)
	require.NoError(t, err)

	_, err = engine.ConfirmClose(context.Background(), outcome.ConfirmToken, stranger)
	assert.ErrorIs(t, err, errs.ErrPermission)
}

func TestCloseTokenIsSingleUse(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	outcome, err := engine.Close(context.Background(), tk.ChannelID, owner)
	require.NoError(t, err)

	engine.CancelClose(outcome.ConfirmToken)
	_, err = engine.ConfirmClose(context.Background(), outcome.ConfirmToken, owner)
	assert.ErrorIs(t, err, errs.ErrConfirmExpired)
}

func TestCloseByStaffImmediate(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	outcome, err := engine.Close(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	require.NotNil(t, outcome.Closed)
	assert.Empty(t, outcome.ConfirmToken)

	stored, _ := store.Get(tk.ID)
	assert.Equal(t, model.TicketStatusClosed, stored.Status)
	assert.Contains(t, fake.panels, tk.ChannelID, "closed-state panel must be posted")

	// повторное закрытие отклоняется
	_, err = engine.Close(context.Background(), tk.ChannelID, staff)
	assert.ErrorIs(t, err, errs.ErrTicketClosed)
}

func TestUnknownChannelIsNotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Close(context.Background(), "no-such-channel", staff)
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)

	_, err = engine.Claim(context.Background(), "no-such-channel", "", staff)
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)

	_, err = engine.Reopen(context.Background(), "no-such-channel", staff)
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)
}

func TestDeleteRequiresClose(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	_, err := engine.Delete(context.Background(), tk.ChannelID, staff)
	assert.ErrorIs(t, err, errs.ErrTicketNotClosed)
}

func TestDeleteWithoutTranscriptNeedsConfirmation(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	engine.deleteGrace = 5 * time.Millisecond
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))
	_, err := engine.Close(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)

	outcome, err := engine.Delete(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	assert.False(t, outcome.Scheduled)
	require.NotEmpty(t, outcome.ConfirmToken)

	// канал цел, пока подтверждение не записано
	assert.Empty(t, fake.deletedChannels())

	_, err = engine.ConfirmDelete(context.Background(), outcome.ConfirmToken, staff)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, _ := store.Get(tk.ID)
		return stored.Status == model.TicketStatusDeleted
	}, time.Second, 5*time.Millisecond)

	stored, _ := store.Get(tk.ID)
	assert.Empty(t, stored.ChannelID, "tombstone must clear channel_id")
	require.Eventually(t, func() bool {
		return len(fake.deletedChannels()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteWithTranscriptSchedulesDirectly(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	engine.deleteGrace = 5 * time.Millisecond
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))
	_, err := engine.Close(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	_, err = engine.GenerateTranscript(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)

	outcome, err := engine.Delete(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	assert.True(t, outcome.Scheduled)

	// анонс удаления отправлен в канал
	assert.NotEmpty(t, fake.sent[tk.ChannelID])

	require.Eventually(t, func() bool {
		stored, _ := store.Get(tk.ID)
		return stored.Status == model.TicketStatusDeleted
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteToleratesChannelGone(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	engine.deleteGrace = 5 * time.Millisecond
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))
	_, err := engine.Close(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	_, err = engine.GenerateTranscript(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)

	fake.deleteErr = platform.ErrChannelGone

	_, err = engine.Delete(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, _ := store.Get(tk.ID)
		return stored.Status == model.TicketStatusDeleted
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteRequiresStaff(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))
	_, err := engine.Close(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)

	_, err = engine.Delete(context.Background(), tk.ChannelID, owner)
	assert.ErrorIs(t, err, errs.ErrPermission)
}

func TestReopenRestoresAccessAndStatus(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))
	_, err := engine.Close(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)

	_, err = engine.Reopen(context.Background(), tk.ChannelID, owner)
	assert.ErrorIs(t, err, errs.ErrPermission)

	reopened, err := engine.Reopen(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusOpen, reopened.Status)
	assert.Contains(t, fake.restored, tk.ChannelID)

	stored, _ := store.Get(tk.ID)
	assert.Equal(t, model.TicketStatusOpen, stored.Status)

	// после реопена владелец снова закрывает через подтверждение
	outcome, err := engine.Close(context.Background(), tk.ChannelID, owner)
	require.NoError(t, err)
	assert.Nil(t, outcome.Closed)
	assert.NotEmpty(t, outcome.ConfirmToken)
}

func TestGenerateTranscript(t *testing.T) {
	engine, store, fake := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	// транскрипт доступен только на закрытом тикете и только staff
	_, err := engine.GenerateTranscript(context.Background(), tk.ChannelID, staff)
	assert.ErrorIs(t, err, errs.ErrTicketNotClosed)

	_, err = engine.Close(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)

	_, err = engine.GenerateTranscript(context.Background(), tk.ChannelID, owner)
	assert.ErrorIs(t, err, errs.ErrPermission)

	fake.history[tk.ChannelID] = []platform.Message{
		{ID: "1", AuthorID: "user-1", AuthorName: "Игрок", Timestamp: time.Now(), Content: "привет"},
		{ID: "2", AuthorID: "staff-1", AuthorName: "Админ", Timestamp: time.Now(), Content: "здравствуйте"},
		{ID: "3", AuthorID: "user-1", AuthorName: "Игрок", Timestamp: time.Now(), Content: "спасибо"},
	}

	res, err := engine.GenerateTranscript(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	assert.Equal(t, "ticket-0001T.html", res.Filename)
	assert.Equal(t, "https://tickets.example.com/transcripts/ticket-0001T.html", res.URL)
	require.Len(t, res.Participants, 2)

	stored, _ := store.Get(tk.ID)
	assert.True(t, stored.TranscriptGenerated)

	// повторная генерация допустима и остаётся идемпотентной по флагу
	_, err = engine.GenerateTranscript(context.Background(), tk.ChannelID, staff)
	require.NoError(t, err)
	stored, _ = store.Get(tk.ID)
	assert.True(t, stored.TranscriptGenerated)
}

func TestStorageErrorSurfaces(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	tk := mustCreate(t, engine, model.TypeTech, owner.ID, techValues("X"))

	store.UpdateErr = errors.New("connection refused")
	_, err := engine.Close(context.Background(), tk.ChannelID, staff)
	require.Error(t, err)

	var se *errs.StorageError
	assert.True(t, errors.As(err, &se), "want StorageError, got %v", err)
}

func longString(n int) string {
	runes := make([]rune, n)
	for i := range runes {
		runes[i] = 'я'
	}
	return string(runes)
}
