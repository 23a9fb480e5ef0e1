package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rustlegion/ticket-bot/internal/model"
)

// ErrChannelGone — канал уже удалён на стороне платформы. Финальный шаг
// удаления тикета обязан это переживать.
var ErrChannelGone = errors.New("channel gone")

// Custom ID кнопок на карточках тикета. Обрабатываются в internal/bot.
const (
	CustomIDClaim      = "ticket:claim"
	CustomIDClose      = "ticket:close"
	CustomIDTranscript = "ticket:transcript"
	CustomIDReopen     = "ticket:reopen"
	CustomIDDelete     = "ticket:delete"
)

const embedColor = 0x5865F2 // blurple

// Discord — реализация Platform поверх discordgo.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) CreateTicketChannel(ctx context.Context, name, categoryID, ownerID, staffRoleID string) (string, error) {
	category, err := d.session.Channel(categoryID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("category %s: %w", categoryID, err)
	}
	overwrites := []*discordgo.PermissionOverwrite{
		{
			// @everyone совпадает с id гильдии
			ID:   category.GuildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    ownerID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberChannelPerms,
		},
		{
			ID:    staffRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberChannelPerms,
		},
	}
	ch, err := d.session.GuildChannelCreateComplex(category.GuildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             categoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel %q: %w", name, err)
	}
	return ch.ID, nil
}

const memberChannelPerms = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if err != nil {
		var rest *discordgo.RESTError
		if errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownChannel {
			return ErrChannelGone
		}
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

func (d *Discord) RestoreAccess(ctx context.Context, channelID, ownerID, staffRoleID string) error {
	if err := d.session.ChannelPermissionSet(channelID, ownerID, discordgo.PermissionOverwriteTypeMember, memberChannelPerms, 0, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("restore owner access: %w", err)
	}
	if err := d.session.ChannelPermissionSet(channelID, staffRoleID, discordgo.PermissionOverwriteTypeRole, memberChannelPerms, 0, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("restore staff access: %w", err)
	}
	return nil
}

const assigneeFieldName = "Куратор"

func (d *Discord) SendTicketSummary(ctx context.Context, channelID string, t *model.Ticket, fields []FieldValue) (string, error) {
	embed := &discordgo.MessageEmbed{
		Title: "Тикет " + t.DisplayID(),
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Автор", Value: mention(t.UserID)},
		},
	}
	for _, f := range fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Label, Value: f.Value})
	}
	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Взять в работу", Style: discordgo.PrimaryButton, CustomID: CustomIDClaim},
				discordgo.Button{Label: "Закрыть", Style: discordgo.DangerButton, CustomID: CustomIDClose},
			}},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send summary: %w", err)
	}
	return msg.ID, nil
}

func (d *Discord) UpdateSummaryAssignee(ctx context.Context, channelID, messageID, staffID string) error {
	msg, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch summary: %w", err)
	}
	if len(msg.Embeds) == 0 {
		return fmt.Errorf("summary message %s has no embed", messageID)
	}
	embed := msg.Embeds[0]
	updated := false
	for _, f := range embed.Fields {
		if f.Name == assigneeFieldName {
			f.Value = mention(staffID)
			updated = true
			break
		}
	}
	if !updated {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  assigneeFieldName,
			Value: mention(staffID),
		})
	}
	_, err = d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:      messageID,
		Channel: channelID,
		Embeds:  &msg.Embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit summary: %w", err)
	}
	return nil
}

func (d *Discord) SendClosedPanel(ctx context.Context, channelID string, t *model.Ticket) error {
	embed := &discordgo.MessageEmbed{
		Title:       "Тикет закрыт",
		Description: "Тикет " + t.DisplayID() + " закрыт. Доступные действия ниже.",
		Color:       embedColor,
	}
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Транскрипт", Style: discordgo.SecondaryButton, CustomID: CustomIDTranscript},
				discordgo.Button{Label: "Переоткрыть", Style: discordgo.SuccessButton, CustomID: CustomIDReopen},
				discordgo.Button{Label: "Удалить", Style: discordgo.DangerButton, CustomID: CustomIDDelete},
			}},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send closed panel: %w", err)
	}
	return nil
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return msg.ID, nil
}

// ChannelMessages листает историю через параметр after. Discord отдаёт
// страницу от новых к старым, поэтому она разворачивается.
func (d *Discord) ChannelMessages(ctx context.Context, channelID, afterID string, limit int) ([]Message, error) {
	raw, err := d.session.ChannelMessages(channelID, limit, "", afterID, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("channel messages: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		out = append(out, convertMessage(raw[i]))
	}
	return out, nil
}

func convertMessage(m *discordgo.Message) Message {
	msg := Message{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		if m.Author.GlobalName != "" {
			msg.AuthorName = m.Author.GlobalName
		}
		msg.AuthorAvatar = m.Author.AvatarURL("64")
	}
	for _, e := range m.Embeds {
		embed := Embed{Title: e.Title, Description: e.Description}
		for _, f := range e.Fields {
			embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: f.Value})
		}
		msg.Embeds = append(msg.Embeds, embed)
	}
	return msg
}

func mention(userID string) string {
	return "<@" + userID + ">"
}
