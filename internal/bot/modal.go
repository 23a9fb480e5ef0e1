package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rustlegion/ticket-bot/internal/model"
)

// handleTypeSelected открывает модальную форму выбранного типа тикета.
func (b *Bot) handleTypeSelected(i *discordgo.InteractionCreate) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	spec, ok := model.TicketTypeByKey(values[0])
	if !ok {
		b.respondEphemeral(i, "Неизвестный тип тикета.")
		return
	}

	rows := make([]discordgo.MessageComponent, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		style := discordgo.TextInputShort
		if f.Paragraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    f.Key,
				Label:       f.Label,
				Placeholder: f.Placeholder,
				Style:       style,
				Required:    f.Required,
				MaxLength:   f.MaxLength,
			},
		}})
	}

	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customIDModalPrefix + spec.Key,
			Title:      spec.Label,
			Components: rows,
		},
	})
	if err != nil {
		log.Printf("bot: open modal %s: %v", spec.Key, err)
	}
}

// handleModalSubmit собирает значения формы и создаёт тикет. Ответ отложенный:
// создание канала может не уложиться в 3-секундное окно интеракции.
func (b *Bot) handleModalSubmit(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	if !strings.HasPrefix(data.CustomID, customIDModalPrefix) {
		return
	}
	typeKey := strings.TrimPrefix(data.CustomID, customIDModalPrefix)
	actor := b.actor(i)

	values := make(map[string]string)
	for _, row := range data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range ar.Components {
			if input, ok := comp.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}

	b.deferEphemeral(i)
	t, err := b.engine.Create(ctx, typeKey, actor.ID, values)
	if err != nil {
		b.followupError(i, err)
		return
	}
	b.followup(i, fmt.Sprintf("✅ Тикет создан: <#%s>", t.ChannelID))
}
