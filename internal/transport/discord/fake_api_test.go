package discord

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

type roleAdd struct {
	guildID, userID, roleID string
}

// fakeAPI records calls instead of talking to Discord.
type fakeAPI struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	roles     []roleAdd
	sent      []*discordgo.MessageSend
	edited    []*discordgo.MessageEdit
	owner     string
	editErr   error

	edits chan *discordgo.WebhookEdit
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{edits: make(chan *discordgo.WebhookEdit, 32)}
}

func (f *fakeAPI) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeAPI) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits <- edit
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, roleAdd{guildID, userID, roleID})
	return nil
}

func (f *fakeAPI) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, m)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: "posted-1", ChannelID: channelID}, nil
}

func (f *fakeAPI) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID, OwnerID: f.owner}, nil
}

func (f *fakeAPI) lastResponse() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil
	}
	return f.responses[len(f.responses)-1]
}

func (f *fakeAPI) nextEdit() *discordgo.WebhookEdit {
	select {
	case e := <-f.edits:
		return e
	case <-time.After(2 * time.Second):
		return nil
	}
}

func (f *fakeAPI) roleAdds() []roleAdd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]roleAdd(nil), f.roles...)
}
