package discord

import (
	"discord-quiz-bot/internal/domain"
	"github.com/bwmarrin/discordgo"
)

// buttonsPerRow is the platform limit for one action row.
const buttonsPerRow = 5

func toEmbed(e domain.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Type:        discordgo.EmbedType(e.Type),
		Color:       e.Color,
	}
	if out.Type == "" {
		out.Type = discordgo.EmbedTypeRich
	}
	if e.Image != nil {
		out.Image = &discordgo.MessageEmbedImage{URL: e.Image.URL}
	}
	if e.Thumbnail != nil {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail.URL}
	}
	return out
}

func embeds(m domain.Message) []*discordgo.MessageEmbed {
	if m.Embed == nil {
		return []*discordgo.MessageEmbed{}
	}
	return []*discordgo.MessageEmbed{toEmbed(*m.Embed)}
}

func buttonStyle(s domain.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case domain.ButtonSecondary:
		return discordgo.SecondaryButton
	case domain.ButtonSuccess:
		return discordgo.SuccessButton
	case domain.ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

// components lays buttons out in rows of five.
func components(buttons []domain.Button) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := start + buttonsPerRow
		if end > len(buttons) {
			end = len(buttons)
		}
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				CustomID: b.CustomID,
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
				Disabled: b.Disabled,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func responseData(m domain.Message, ephemeral bool) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    m.Content,
		Embeds:     embeds(m),
		Components: components(m.Buttons),
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func webhookEdit(m domain.Message) *discordgo.WebhookEdit {
	content := m.Content
	es := embeds(m)
	comps := components(m.Buttons)
	return &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &es,
		Components: &comps,
	}
}

func messageEdit(loc domain.MessageLocation, m domain.Message) *discordgo.MessageEdit {
	content := m.Content
	es := embeds(m)
	comps := components(m.Buttons)
	return &discordgo.MessageEdit{
		ID:         loc.MessageID,
		Channel:    loc.ChannelID,
		Content:    &content,
		Embeds:     &es,
		Components: &comps,
	}
}

func messageSend(m domain.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    m.Content,
		Embeds:     embeds(m),
		Components: components(m.Buttons),
	}
}

func modalData(modal domain.Modal) *discordgo.InteractionResponseData {
	rows := make([]discordgo.MessageComponent, 0, len(modal.Fields))
	for _, f := range modal.Fields {
		style := discordgo.TextInputShort
		if f.Multiline {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    f.CustomID,
				Label:       f.Label,
				Style:       style,
				Placeholder: f.Placeholder,
				Value:       f.Value,
				Required:    f.Required,
				MaxLength:   f.MaxLength,
			},
		}})
	}
	return &discordgo.InteractionResponseData{
		CustomID:   modal.CustomID,
		Title:      modal.Title,
		Components: rows,
	}
}

// modalValues flattens submitted text inputs by custom ID.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}
