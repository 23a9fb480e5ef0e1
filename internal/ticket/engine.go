// Package ticket — машина состояний тикета: create, claim, close, reopen,
// delete и генерация транскрипта. Каждый переход перечитывает состояние из
// хранилища; кеша тикетов в памяти нет.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rustlegion/ticket-bot/internal/audit"
	"github.com/rustlegion/ticket-bot/internal/errs"
	"github.com/rustlegion/ticket-bot/internal/kafka"
	"github.com/rustlegion/ticket-bot/internal/model"
	"github.com/rustlegion/ticket-bot/internal/platform"
	"github.com/rustlegion/ticket-bot/internal/service"
	"github.com/rustlegion/ticket-bot/internal/transcript"
)

const (
	// CloseConfirmTTL — сколько живёт запрос подтверждения закрытия.
	CloseConfirmTTL = 60 * time.Second
	// DeleteGracePeriod — пауза между подтверждением удаления и сносом канала.
	DeleteGracePeriod = 5 * time.Second
)

// Actor — инициатор перехода. Staff выставляется вызывающим слоем по ролям
// участника; проверки самих переходов остаются в движке.
type Actor struct {
	ID    string
	Staff bool
}

// Config — параметры движка.
type Config struct {
	CategoryID  string
	StaffRoleID string
	// TranscriptURL строит публичную ссылку по имени файла артефакта.
	TranscriptURL func(filename string) string
}

type Engine struct {
	store    service.TicketStore
	platform platform.Platform
	renderer *transcript.Renderer
	audit    *audit.Sink
	events   *kafka.Producer
	cfg      Config

	confirms    *confirms
	deleteGrace time.Duration
}

func NewEngine(store service.TicketStore, p platform.Platform, renderer *transcript.Renderer, sink *audit.Sink, events *kafka.Producer, cfg Config) *Engine {
	return &Engine{
		store:       store,
		platform:    p,
		renderer:    renderer,
		audit:       sink,
		events:      events,
		cfg:         cfg,
		confirms:    newConfirms(CloseConfirmTTL),
		deleteGrace: DeleteGracePeriod,
	}
}

// Create валидирует форму, выделяет номер, создаёт канал и публикует карточку.
// Либо всё проходит целиком, либо не остаётся ни строки, ни канала: строка
// вставляется первой (номер фиксируется транзакцией аллокатора) и убирается
// компенсацией, если платформа отказала. Сожжённый номер — допустимый пропуск.
func (e *Engine) Create(ctx context.Context, typeKey, ownerID string, values map[string]string) (*model.Ticket, error) {
	spec, ok := model.TicketTypeByKey(typeKey)
	if !ok {
		return nil, errs.Validation("", "неизвестный тип тикета")
	}
	fields, err := ValidateFields(spec, values)
	if err != nil {
		return nil, err
	}

	t := &model.Ticket{
		TicketType:   spec.Key,
		TicketLetter: spec.Letter,
		UserID:       ownerID,
		Status:       model.TicketStatusOpen,
	}
	if err := e.store.Create(ctx, t); err != nil {
		return nil, errs.Storage("create ticket", err)
	}

	channelID, err := e.platform.CreateTicketChannel(ctx, t.ChannelName(), e.cfg.CategoryID, ownerID, e.cfg.StaffRoleID)
	if err != nil {
		e.compensateCreate(ctx, t.ID, "")
		return nil, errs.Provisioning("create channel", err)
	}
	t.ChannelID = channelID
	if err := e.store.SetChannel(ctx, t.ID, channelID); err != nil {
		e.compensateCreate(ctx, t.ID, channelID)
		return nil, errs.Storage("attach channel", err)
	}
	if _, err := e.platform.SendTicketSummary(ctx, channelID, t, fields); err != nil {
		e.compensateCreate(ctx, t.ID, channelID)
		return nil, errs.Provisioning("post summary", err)
	}

	e.audit.Emit(audit.Event{Type: audit.EventCreated, ChannelName: t.ChannelName(), TicketNumber: t.TicketNumber, ActorID: ownerID})
	e.events.ProduceAsync("ticket.created", t, ownerID)
	return t, nil
}

func (e *Engine) compensateCreate(ctx context.Context, id uint64, channelID string) {
	if channelID != "" {
		if err := e.platform.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, platform.ErrChannelGone) {
			log.Printf("ticket: compensate create, delete channel %s: %v", channelID, err)
		}
	}
	if err := e.store.Delete(ctx, id); err != nil {
		log.Printf("ticket: compensate create, delete row %d: %v", id, err)
	}
}

// Claim назначает куратора. Повторный claim перезаписывает прежнего,
// снятия назначения нет.
func (e *Engine) Claim(ctx context.Context, channelID, summaryMessageID string, actor Actor) (*model.Ticket, error) {
	if !actor.Staff {
		return nil, errs.ErrPermission
	}
	t, err := e.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !t.IsOpen() {
		return nil, errs.ErrTicketClosed
	}
	if err := e.store.SetClaimed(ctx, t.ID, actor.ID); err != nil {
		return nil, errs.Storage("set claimed", err)
	}
	t.ClaimedBy = actor.ID

	if summaryMessageID != "" {
		if err := e.platform.UpdateSummaryAssignee(ctx, channelID, summaryMessageID, actor.ID); err != nil {
			log.Printf("ticket: update summary assignee %s: %v", t.ChannelName(), err)
		}
	}
	e.audit.Emit(audit.Event{Type: audit.EventClaimed, ChannelName: t.ChannelName(), TicketNumber: t.TicketNumber, ActorID: actor.ID})
	e.events.ProduceAsync("ticket.claimed", t, actor.ID)
	return t, nil
}

// CloseOutcome — результат Close: либо тикет закрыт сразу, либо выдан токен
// подтверждения для владельца.
type CloseOutcome struct {
	Closed       *model.Ticket
	ConfirmToken string
	ConfirmTTL   time.Duration
}

// Close закрывает тикет. Staff закрывает сразу; владелец без staff-роли
// получает 60-секундный запрос подтверждения (истечение = отмена, статус
// не меняется); остальным — отказ.
func (e *Engine) Close(ctx context.Context, channelID string, actor Actor) (*CloseOutcome, error) {
	t, err := e.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !t.IsOpen() {
		return nil, errs.ErrTicketClosed
	}

	switch {
	case actor.Staff:
		if err := e.finishClose(ctx, t, actor, audit.EventClosedByStaff); err != nil {
			return nil, err
		}
		return &CloseOutcome{Closed: t}, nil
	case actor.ID == t.UserID:
		token := e.confirms.put(confirmClose, t.ID, t.ChannelID, actor.ID)
		return &CloseOutcome{ConfirmToken: token, ConfirmTTL: e.confirms.ttl}, nil
	default:
		return nil, errs.ErrPermission
	}
}

// ConfirmClose завершает закрытие по токену владельца.
func (e *Engine) ConfirmClose(ctx context.Context, token string, actor Actor) (*model.Ticket, error) {
	p, ok := e.confirms.take(token, confirmClose)
	if !ok {
		return nil, errs.ErrConfirmExpired
	}
	if p.actorID != actor.ID {
		return nil, errs.ErrPermission
	}
	t, err := e.getTicket(ctx, p.channelID)
	if err != nil {
		return nil, err
	}
	if !t.IsOpen() {
		return nil, errs.ErrTicketClosed
	}
	if err := e.finishClose(ctx, t, actor, audit.EventClosedByOwner); err != nil {
		return nil, err
	}
	return t, nil
}

// CancelClose снимает запрос подтверждения (кнопка «Отмена»).
func (e *Engine) CancelClose(token string) {
	e.confirms.drop(token)
}

func (e *Engine) finishClose(ctx context.Context, t *model.Ticket, actor Actor, event audit.EventType) error {
	if err := e.store.SetStatus(ctx, t.ID, model.TicketStatusClosed); err != nil {
		return errs.Storage("set status closed", err)
	}
	t.Status = model.TicketStatusClosed
	if err := e.platform.SendClosedPanel(ctx, t.ChannelID, t); err != nil {
		log.Printf("ticket: send closed panel %s: %v", t.ChannelName(), err)
	}
	e.audit.Emit(audit.Event{Type: event, ChannelName: t.ChannelName(), TicketNumber: t.TicketNumber, ActorID: actor.ID})
	e.events.ProduceAsync("ticket.closed", t, actor.ID)
	return nil
}

// TranscriptResult — артефакт и участники переписки.
type TranscriptResult struct {
	Filename     string
	URL          string
	Participants []transcript.Participant
}

// GenerateTranscript рендерит историю канала в файл. Повторный вызов
// перерендеривает и перезаписывает файл по тому же пути; флаг
// transcript_generated в хранилище идемпотентен.
func (e *Engine) GenerateTranscript(ctx context.Context, channelID string, actor Actor) (*TranscriptResult, error) {
	if !actor.Staff {
		return nil, errs.ErrPermission
	}
	t, err := e.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !t.IsClosed() {
		return nil, errs.ErrTicketNotClosed
	}

	source := func(ctx context.Context, afterID string, limit int) ([]platform.Message, error) {
		return e.platform.ChannelMessages(ctx, channelID, afterID, limit)
	}
	filename, participants, err := e.renderer.Render(ctx, t.ChannelName(), source)
	if err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	if err := e.store.SetTranscriptGenerated(ctx, t.ID); err != nil {
		return nil, errs.Storage("set transcript_generated", err)
	}
	t.TranscriptGenerated = true

	url := e.cfg.TranscriptURL(filename)
	e.audit.Emit(audit.Event{Type: audit.EventTranscriptGenerated, ChannelName: t.ChannelName(), TicketNumber: t.TicketNumber, ActorID: actor.ID, TranscriptURL: url})
	e.events.ProduceAsync("ticket.transcript", t, actor.ID)
	return &TranscriptResult{Filename: filename, URL: url, Participants: participants}, nil
}

// DeleteOutcome — результат Delete: либо удаление запланировано, либо нужен
// отдельный подтверждающий шаг (история будет потеряна).
type DeleteOutcome struct {
	Scheduled    bool
	ConfirmToken string
	Grace        time.Duration
}

// Delete удаляет закрытый тикет. Без сгенерированного транскрипта сначала
// требуется явное подтверждение потери истории. Само удаление отложенное:
// анонс, grace-период, tombstone в хранилище, снос канала.
func (e *Engine) Delete(ctx context.Context, channelID string, actor Actor) (*DeleteOutcome, error) {
	if !actor.Staff {
		return nil, errs.ErrPermission
	}
	t, err := e.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !t.IsClosed() {
		return nil, errs.ErrTicketNotClosed
	}
	if !t.TranscriptGenerated {
		token := e.confirms.put(confirmDelete, t.ID, t.ChannelID, actor.ID)
		return &DeleteOutcome{ConfirmToken: token}, nil
	}
	e.scheduleDelete(ctx, t, actor)
	return &DeleteOutcome{Scheduled: true, Grace: e.deleteGrace}, nil
}

// ConfirmDelete завершает удаление тикета без транскрипта.
func (e *Engine) ConfirmDelete(ctx context.Context, token string, actor Actor) (*DeleteOutcome, error) {
	if !actor.Staff {
		return nil, errs.ErrPermission
	}
	p, ok := e.confirms.take(token, confirmDelete)
	if !ok {
		return nil, errs.ErrConfirmExpired
	}
	t, err := e.getTicket(ctx, p.channelID)
	if err != nil {
		return nil, err
	}
	if !t.IsClosed() {
		return nil, errs.ErrTicketNotClosed
	}
	e.scheduleDelete(ctx, t, actor)
	return &DeleteOutcome{Scheduled: true, Grace: e.deleteGrace}, nil
}

// scheduleDelete анонсирует удаление и откладывает финальный шаг на
// grace-период, не блокируя обработку интеракции. Если канал к этому
// моменту уже снесён извне — это не ошибка.
func (e *Engine) scheduleDelete(ctx context.Context, t *model.Ticket, actor Actor) {
	seconds := int(e.deleteGrace / time.Second)
	if _, err := e.platform.SendMessage(ctx, t.ChannelID, fmt.Sprintf("⚠️ Канал будет удалён через %d сек.", seconds)); err != nil {
		log.Printf("ticket: announce deletion %s: %v", t.ChannelName(), err)
	}

	cp := *t
	actorID := actor.ID
	time.AfterFunc(e.deleteGrace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		e.finalizeDelete(ctx, &cp, actorID)
	})
}

func (e *Engine) finalizeDelete(ctx context.Context, t *model.Ticket, actorID string) {
	if err := e.store.MarkDeleted(ctx, t.ID); err != nil {
		log.Printf("ticket: mark deleted %s: %v", t.ChannelName(), err)
		return
	}
	t.Status = model.TicketStatusDeleted
	e.audit.Emit(audit.Event{Type: audit.EventDeleted, ChannelName: t.ChannelName(), TicketNumber: t.TicketNumber, ActorID: actorID})
	e.events.ProduceAsync("ticket.deleted", t, actorID)

	if err := e.platform.DeleteChannel(ctx, t.ChannelID); err != nil && !errors.Is(err, platform.ErrChannelGone) {
		log.Printf("ticket: delete channel %s: %v", t.ChannelName(), err)
	}
}

// Reopen восстанавливает доступ владельца и staff-роли и возвращает статус
// open. Последующее закрытие владельцем снова идёт через подтверждение.
func (e *Engine) Reopen(ctx context.Context, channelID string, actor Actor) (*model.Ticket, error) {
	if !actor.Staff {
		return nil, errs.ErrPermission
	}
	t, err := e.getTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !t.IsClosed() {
		return nil, errs.ErrTicketNotClosed
	}
	if err := e.platform.RestoreAccess(ctx, channelID, t.UserID, e.cfg.StaffRoleID); err != nil {
		return nil, errs.Provisioning("restore access", err)
	}
	if err := e.store.SetStatus(ctx, t.ID, model.TicketStatusOpen); err != nil {
		return nil, errs.Storage("set status open", err)
	}
	t.Status = model.TicketStatusOpen
	e.audit.Emit(audit.Event{Type: audit.EventReopened, ChannelName: t.ChannelName(), TicketNumber: t.TicketNumber, ActorID: actor.ID})
	e.events.ProduceAsync("ticket.reopened", t, actor.ID)
	return t, nil
}

func (e *Engine) getTicket(ctx context.Context, channelID string) (*model.Ticket, error) {
	t, err := e.store.GetByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			return nil, err
		}
		return nil, errs.Storage("get ticket by channel", err)
	}
	return t, nil
}
