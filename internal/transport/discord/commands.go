package discord

import (
	"errors"
	"fmt"

	"discord-quiz-bot/internal/app"
	"discord-quiz-bot/internal/domain"
	"github.com/bwmarrin/discordgo"
)

const (
	editCommand       = "edit"
	thumbnailOption   = "thumbnail"
	imageOption       = "image"
	clearImagesOption = "clear_images"
)

// Commands are the slash commands the bot owns. /edit is hidden from members
// without the Administrator permission; the handler checks again.
func Commands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	dm := false
	sub := func(name, what string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: "Edit the " + what + " embed",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionAttachment, Name: thumbnailOption, Description: "Thumbnail image"},
				{Type: discordgo.ApplicationCommandOptionAttachment, Name: imageOption, Description: "Large image"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: clearImagesOption, Description: "Remove the current images"},
			},
		}
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:                     editCommand,
			Description:              "Customize the quiz messages",
			DefaultMemberPermissions: &adminOnly,
			DMPermission:             &dm,
			Options: []*discordgo.ApplicationCommandOption{
				sub("pass_embed", "pass"),
				sub("fail_embed", "fail"),
				sub("quiz_embed", "quiz announcement"),
			},
		},
	}
}

// Registrar is the subset of *discordgo.Session used to publish commands.
type Registrar interface {
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// RegisterCommands replaces the bot's commands. An empty guildID registers
// them globally.
func RegisterCommands(r Registrar, appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	if appID == "" {
		return nil, errors.New("application id not configured")
	}
	created, err := r.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	return created, nil
}

// editRequest decodes /edit <kind> [thumbnail] [image] [clear_images].
func editRequest(data discordgo.ApplicationCommandInteractionData, m domain.Member) (app.OpenRequest, error) {
	if data.Name != editCommand || len(data.Options) == 0 {
		return app.OpenRequest{}, fmt.Errorf("%w: command %q", domain.ErrUnknownInteraction, data.Name)
	}
	sub := data.Options[0]
	kind, ok := domain.ParseEmbedKind(sub.Name)
	if !ok {
		return app.OpenRequest{}, fmt.Errorf("%w: subcommand %q", domain.ErrUnknownInteraction, sub.Name)
	}

	req := app.OpenRequest{Member: m, Kind: kind}
	for _, opt := range sub.Options {
		switch opt.Name {
		case thumbnailOption:
			req.Thumbnail = attachmentURL(data, opt)
		case imageOption:
			req.Image = attachmentURL(data, opt)
		case clearImagesOption:
			req.ClearImages = opt.BoolValue()
		}
	}
	return req, nil
}

func attachmentURL(data discordgo.ApplicationCommandInteractionData, opt *discordgo.ApplicationCommandInteractionDataOption) string {
	id, _ := opt.Value.(string)
	if id == "" || data.Resolved == nil {
		return ""
	}
	if att, ok := data.Resolved.Attachments[id]; ok && att != nil {
		return att.URL
	}
	return ""
}
