// Package bot — слой интеракций Discord: панель тикетов, модальные формы и
// кнопки лайфцикла. Вся доменная логика живёт в internal/ticket, здесь только
// разбор интеракций и ответы пользователю.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rustlegion/ticket-bot/internal/model"
	"github.com/rustlegion/ticket-bot/internal/platform"
	"github.com/rustlegion/ticket-bot/internal/ticket"
)

// Custom ID интеракций, не привязанных к карточкам (те — в platform).
const (
	customIDTypeSelect    = "ticket:type"
	customIDModalPrefix   = "ticket:modal:"
	customIDCloseConfirm  = "ticket:close_confirm:"
	customIDCloseCancel   = "ticket:close_cancel:"
	customIDDeleteConfirm = "ticket:delete_confirm:"
	customIDDeleteCancel  = "ticket:delete_cancel:"
)

// interactionTimeout — бюджет на обработку одной интеракции.
const interactionTimeout = 15 * time.Second

type Bot struct {
	session     *discordgo.Session
	engine      *ticket.Engine
	staffRoleID string
	guildID     string
}

func New(session *discordgo.Session, engine *ticket.Engine, staffRoleID, guildID string) *Bot {
	return &Bot{
		session:     session,
		engine:      engine,
		staffRoleID: staffRoleID,
		guildID:     guildID,
	}
}

// Register вешает обработчики и регистрирует slash-команды.
func (b *Bot) Register() error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("bot: logged in as %s#%s", r.User.Username, r.User.Discriminator)
	})
	b.session.AddHandler(b.onInteraction)

	adminPerm := int64(discordgo.PermissionAdministrator)
	_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, &discordgo.ApplicationCommand{
		Name:                     "ticket-panel",
		Description:              "Создать панель тикетов в этом канале",
		DefaultMemberPermissions: &adminPerm,
	})
	if err != nil {
		return fmt.Errorf("register ticket-panel command: %w", err)
	}
	return nil
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == "ticket-panel" {
			b.handlePanelCommand(ctx, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		b.handleModalSubmit(ctx, i)
	}
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	actor := b.actor(i)

	switch {
	case customID == customIDTypeSelect:
		b.handleTypeSelected(i)
	case customID == platform.CustomIDClaim:
		b.handleClaim(ctx, i, actor)
	case customID == platform.CustomIDClose:
		b.handleClose(ctx, i, actor)
	case strings.HasPrefix(customID, customIDCloseConfirm):
		b.handleCloseConfirm(ctx, i, actor, strings.TrimPrefix(customID, customIDCloseConfirm))
	case strings.HasPrefix(customID, customIDCloseCancel):
		b.engine.CancelClose(strings.TrimPrefix(customID, customIDCloseCancel))
		b.updateEphemeral(i, "Закрытие отменено.")
	case customID == platform.CustomIDTranscript:
		b.handleTranscript(ctx, i, actor)
	case customID == platform.CustomIDReopen:
		b.handleReopen(ctx, i, actor)
	case customID == platform.CustomIDDelete:
		b.handleDelete(ctx, i, actor)
	case strings.HasPrefix(customID, customIDDeleteConfirm):
		b.handleDeleteConfirm(ctx, i, actor, strings.TrimPrefix(customID, customIDDeleteConfirm))
	case strings.HasPrefix(customID, customIDDeleteCancel):
		b.updateEphemeral(i, "Удаление отменено.")
	}
}

// actor собирает инициатора перехода: staff определяется по роли участника.
func (b *Bot) actor(i *discordgo.InteractionCreate) ticket.Actor {
	a := ticket.Actor{}
	if i.Member != nil && i.Member.User != nil {
		a.ID = i.Member.User.ID
		for _, role := range i.Member.Roles {
			if role == b.staffRoleID {
				a.Staff = true
				break
			}
		}
	} else if i.User != nil {
		a.ID = i.User.ID
	}
	return a
}

func (b *Bot) handleClaim(ctx context.Context, i *discordgo.InteractionCreate, actor ticket.Actor) {
	t, err := b.engine.Claim(ctx, i.ChannelID, i.Message.ID, actor)
	if err != nil {
		b.respondError(i, err)
		return
	}
	b.respondEphemeral(i, fmt.Sprintf("Тикет %s закреплён за вами.", t.DisplayID()))
}

func (b *Bot) handleClose(ctx context.Context, i *discordgo.InteractionCreate, actor ticket.Actor) {
	outcome, err := b.engine.Close(ctx, i.ChannelID, actor)
	if err != nil {
		b.respondError(i, err)
		return
	}
	if outcome.Closed != nil {
		b.respondEphemeral(i, fmt.Sprintf("Тикет %s закрыт.", outcome.Closed.DisplayID()))
		return
	}
	// Владелец: транзитный запрос подтверждения, истечение = отмена.
	b.respondConfirm(i,
		fmt.Sprintf("Закрыть тикет? Запрос действует %d сек.", int(outcome.ConfirmTTL/time.Second)),
		customIDCloseConfirm+outcome.ConfirmToken,
		customIDCloseCancel+outcome.ConfirmToken,
		"Закрыть")
}

func (b *Bot) handleCloseConfirm(ctx context.Context, i *discordgo.InteractionCreate, actor ticket.Actor, token string) {
	t, err := b.engine.ConfirmClose(ctx, token, actor)
	if err != nil {
		b.updateEphemeral(i, userMessage(err))
		return
	}
	b.updateEphemeral(i, fmt.Sprintf("Тикет %s закрыт.", t.DisplayID()))
}

func (b *Bot) handleTranscript(ctx context.Context, i *discordgo.InteractionCreate, actor ticket.Actor) {
	b.deferEphemeral(i)
	res, err := b.engine.GenerateTranscript(ctx, i.ChannelID, actor)
	if err != nil {
		b.followupError(i, err)
		return
	}
	names := make([]string, 0, len(res.Participants))
	for _, p := range res.Participants {
		names = append(names, p.Name)
	}
	b.followup(i, fmt.Sprintf("📄 Транскрипт готов: %s\nУчастники: %s", res.URL, strings.Join(names, ", ")))
}

func (b *Bot) handleReopen(ctx context.Context, i *discordgo.InteractionCreate, actor ticket.Actor) {
	t, err := b.engine.Reopen(ctx, i.ChannelID, actor)
	if err != nil {
		b.respondError(i, err)
		return
	}
	b.respondEphemeral(i, fmt.Sprintf("Тикет %s переоткрыт.", t.DisplayID()))
}

func (b *Bot) handleDelete(ctx context.Context, i *discordgo.InteractionCreate, actor ticket.Actor) {
	outcome, err := b.engine.Delete(ctx, i.ChannelID, actor)
	if err != nil {
		b.respondError(i, err)
		return
	}
	if outcome.Scheduled {
		b.respondEphemeral(i, "Удаление запланировано.")
		return
	}
	b.respondConfirm(i,
		"⚠️ Транскрипт не создан — история канала будет потеряна безвозвратно. Удалить?",
		customIDDeleteConfirm+outcome.ConfirmToken,
		customIDDeleteCancel+outcome.ConfirmToken,
		"Удалить без транскрипта")
}

func (b *Bot) handleDeleteConfirm(ctx context.Context, i *discordgo.InteractionCreate, actor ticket.Actor, token string) {
	if _, err := b.engine.ConfirmDelete(ctx, token, actor); err != nil {
		b.updateEphemeral(i, userMessage(err))
		return
	}
	b.updateEphemeral(i, "Удаление запланировано.")
}

func (b *Bot) handlePanelCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	options := make([]discordgo.SelectMenuOption, 0, 4)
	for _, spec := range model.TicketTypeSpecs() {
		options = append(options, discordgo.SelectMenuOption{
			Label:       spec.Label,
			Value:       spec.Key,
			Description: spec.Description,
		})
	}
	_, err := b.session.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "🎫 Тикет-система",
			Description: "Выберите причину обращения в меню ниже.\n\n" +
				"⚠️ Пожалуйста, выбирайте категорию корректно — это ускорит обработку вашего тикета.",
			Color: 0x5865F2,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    customIDTypeSelect,
					Placeholder: "Выберите причину тикета",
					Options:     options,
				},
			}},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		b.respondEphemeral(i, "Не удалось создать панель тикетов.")
		log.Printf("bot: create panel: %v", err)
		return
	}
	b.respondEphemeral(i, "Панель тикетов создана.")
}
