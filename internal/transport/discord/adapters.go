package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"discord-quiz-bot/internal/domain"
	"github.com/bwmarrin/discordgo"
)

// API is the subset of *discordgo.Session the bot calls.
type API interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

// JSON error codes that mean the target message can no longer be edited.
const (
	codeUnknownChannel     = 10003
	codeUnknownMessage     = 10008
	codeUnknownWebhook     = 10015
	codeUnknownInteraction = 10062
	codeInvalidToken       = 50027
)

// classify maps "message is gone" REST failures to domain.ErrMessageUnreachable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case codeUnknownChannel, codeUnknownMessage, codeUnknownWebhook, codeUnknownInteraction, codeInvalidToken:
			return fmt.Errorf("%w: %v", domain.ErrMessageUnreachable, err)
		}
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", domain.ErrMessageUnreachable, err)
	}
	return err
}

// interactionAnchor edits the ephemeral reply created for a quiz start.
type interactionAnchor struct {
	api         API
	interaction *discordgo.Interaction
}

func (a *interactionAnchor) Edit(ctx context.Context, msg domain.Message) error {
	_, err := a.api.InteractionResponseEdit(a.interaction, webhookEdit(msg), discordgo.WithContext(ctx))
	return classify(err)
}

// RoleGranter adds roles through the REST API.
type RoleGranter struct {
	api API
}

func NewRoleGranter(api API) *RoleGranter {
	return &RoleGranter{api: api}
}

func (g *RoleGranter) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return g.api.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// Announcer posts and edits channel messages.
type Announcer struct {
	api API
}

func NewAnnouncer(api API) *Announcer {
	return &Announcer{api: api}
}

func (a *Announcer) EditMessage(ctx context.Context, loc domain.MessageLocation, msg domain.Message) error {
	_, err := a.api.ChannelMessageEditComplex(messageEdit(loc, msg), discordgo.WithContext(ctx))
	return classify(err)
}

func (a *Announcer) PostMessage(ctx context.Context, channelID string, msg domain.Message) (domain.MessageLocation, error) {
	posted, err := a.api.ChannelMessageSendComplex(channelID, messageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return domain.MessageLocation{}, classify(err)
	}
	return domain.MessageLocation{ChannelID: posted.ChannelID, MessageID: posted.ID}, nil
}
