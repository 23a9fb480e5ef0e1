package bot

import (
	"errors"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/rustlegion/ticket-bot/internal/errs"
)

// userMessage переводит доменную ошибку в приватный ответ пользователю.
// StorageError и всё неизвестное схлопываются в общую формулировку.
func userMessage(err error) string {
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		if ve.Field != "" {
			return "❌ " + ve.Field + ": " + ve.Message
		}
		return "❌ " + ve.Message
	}
	switch {
	case errors.Is(err, errs.ErrPermission):
		return "Недостаточно прав для этого действия."
	case errors.Is(err, errs.ErrTicketNotFound):
		return "Этот канал не привязан к тикету."
	case errors.Is(err, errs.ErrTicketClosed):
		return "Тикет уже закрыт."
	case errors.Is(err, errs.ErrTicketNotClosed):
		return "Действие доступно только для закрытого тикета."
	case errors.Is(err, errs.ErrConfirmExpired):
		return "Подтверждение истекло. Повторите действие."
	case errs.IsProvisioning(err):
		return "Не удалось подготовить канал тикета. Сообщите администрации."
	default:
		return "Внутренняя ошибка. Попробуйте позже."
	}
}

func (b *Bot) respondError(i *discordgo.InteractionCreate, err error) {
	log.Printf("bot: %s: %v", i.ChannelID, err)
	b.respondEphemeral(i, userMessage(err))
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("bot: respond: %v", err)
	}
}

// respondConfirm отвечает приватным сообщением с кнопками подтверждения/отмены.
func (b *Bot) respondConfirm(i *discordgo.InteractionCreate, content, confirmID, cancelID, confirmLabel string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: confirmLabel, Style: discordgo.DangerButton, CustomID: confirmID},
					discordgo.Button{Label: "Отмена", Style: discordgo.SecondaryButton, CustomID: cancelID},
				}},
			},
		},
	})
	if err != nil {
		log.Printf("bot: respond confirm: %v", err)
	}
}

// updateEphemeral заменяет исходное ephemeral-сообщение (убирает кнопки).
func (b *Bot) updateEphemeral(i *discordgo.InteractionCreate, content string) {
	empty := []discordgo.MessageComponent{}
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: empty,
		},
	})
	if err != nil {
		log.Printf("bot: update message: %v", err)
	}
}

func (b *Bot) deferEphemeral(i *discordgo.InteractionCreate) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Printf("bot: defer: %v", err)
	}
}

func (b *Bot) followup(i *discordgo.InteractionCreate, content string) {
	_, err := b.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Printf("bot: followup: %v", err)
	}
}

func (b *Bot) followupError(i *discordgo.InteractionCreate, err error) {
	log.Printf("bot: %s: %v", i.ChannelID, err)
	b.followup(i, userMessage(err))
}
