package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"discord-quiz-bot/internal/app"
	"discord-quiz-bot/internal/domain"
	"github.com/bwmarrin/discordgo"
)

// interactionTimeout bounds the work done before answering an interaction.
const interactionTimeout = 10 * time.Second

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string, logger *slog.Logger) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	routeLibraryLogs(logger)
	return s, nil
}

// Deps are the use cases the bot forwards interactions to.
type Deps struct {
	Quiz   *app.QuizService
	Editor *app.EmbedEditor
	Clicks *app.Dispatcher
	Logger *slog.Logger
}

// Bot turns gateway interactions into quiz and editor calls.
type Bot struct {
	api    API
	state  *discordgo.State
	quiz   *app.QuizService
	editor *app.EmbedEditor
	clicks *app.Dispatcher
	logger *slog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// NewBot wires a bot to a session. state may be nil, in which case guild
// owners are fetched over REST.
func NewBot(api API, state *discordgo.State, deps Deps) *Bot {
	return &Bot{
		api:    api,
		state:  state,
		quiz:   deps.Quiz,
		editor: deps.Editor,
		clicks: deps.Clicks,
		logger: deps.Logger,
		ctx:    context.Background(),
	}
}

// Run connects to the gateway and serves interactions until ctx is done.
// Running quizzes are abandoned on shutdown.
func (b *Bot) Run(ctx context.Context, session *discordgo.Session) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	remove := session.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
		b.Handle(ic.Interaction)
	})
	defer remove()
	session.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	<-ctx.Done()

	b.logger.Info("closing discord gateway")
	err := session.Close()
	b.quiz.Wait()
	return err
}

func (b *Bot) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// Handle routes a single interaction. Panics are logged and contained.
func (b *Bot) Handle(i *discordgo.Interaction) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("interaction handler panicked", "interaction", i.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	ctx, cancel := context.WithTimeout(b.context(), interactionTimeout)
	defer cancel()

	m, ok := b.member(i)
	if !ok {
		b.reply(i, app.GuildOnlyMessage())
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i, m)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, i, m)
	case discordgo.InteractionModalSubmit:
		b.handleModal(i, m)
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction, m domain.Member) {
	req, err := editRequest(i.ApplicationCommandData(), b.withOwner(m))
	if err != nil {
		b.logger.Warn("unknown command", "error", err)
		return
	}
	msg, err := b.editor.Open(ctx, req)
	if err != nil && !errors.Is(err, domain.ErrNotAdmin) {
		b.logger.Error("open embed editor", "guild", m.GuildID, "kind", req.Kind, "error", err)
	}
	b.reply(i, msg)
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.Interaction, m domain.Member) {
	ev, err := domain.ParseCustomID(i.MessageComponentData().CustomID)
	if err != nil {
		b.logger.Debug("ignoring component", "error", err)
		return
	}

	switch ev.Kind {
	case domain.EventBegin:
		b.beginQuiz(ctx, i, m)
	case domain.EventAnswer:
		b.answer(i, m, ev)
	case domain.EventEditor:
		b.editorAction(ctx, i, b.withOwner(m), ev)
	}
}

func (b *Bot) beginQuiz(ctx context.Context, i *discordgo.Interaction, m domain.Member) {
	sess, err := b.quiz.Admit(ctx, m)
	var denied *domain.IneligibleError
	switch {
	case errors.As(err, &denied):
		b.reply(i, app.DenialMessage(denied))
		return
	case err != nil:
		b.logger.Error("admit quiz", "guild", m.GuildID, "user", m.UserID, "error", err)
		b.reply(i, app.FailureMessage())
		return
	}

	// The ephemeral reply becomes the session's anchor; a failure here means
	// the member never saw the quiz.
	if err := b.respond(i, discordgo.InteractionResponseChannelMessageWithSource, responseData(app.PreparingMessage(), true)); err != nil {
		b.logger.Error("create quiz anchor", "session", sess.ID, "error", err)
		return
	}
	b.quiz.Launch(b.context(), sess, &interactionAnchor{api: b.api, interaction: i})
}

func (b *Bot) answer(i *discordgo.Interaction, m domain.Member, ev domain.Event) {
	res := b.clicks.Dispatch(app.Click{SessionID: ev.Target, UserID: m.UserID, Turn: ev.Turn, Choice: ev.Choice})
	switch res {
	case app.Delivered:
		_ = b.respond(i, discordgo.InteractionResponseDeferredMessageUpdate, nil)
	case app.Busy:
		b.logger.Warn("answer dropped, click queue full", "session", ev.Target, "user", m.UserID, "turn", ev.Turn)
		b.reply(i, app.BusyMessage())
	case app.NotParticipant:
		b.reply(i, app.NotParticipantMessage())
	case app.Expired:
		b.reply(i, app.SessionEndedMessage())
	}
	b.logger.Debug("answer click", "session", ev.Target, "user", m.UserID, "turn", ev.Turn, "result", res)
}

func (b *Bot) editorAction(ctx context.Context, i *discordgo.Interaction, m domain.Member, ev domain.Event) {
	switch ev.Action {
	case domain.ActionEdit:
		modal, err := b.editor.Form(ev.Target, m.UserID)
		if err != nil {
			b.update(i, editorFailure(err))
			return
		}
		_ = b.respond(i, discordgo.InteractionResponseModal, modalData(modal))
	case domain.ActionSave:
		msg, err := b.editor.Save(ctx, ev.Target, m.UserID, i.ChannelID)
		if err != nil {
			b.logger.Error("save embed", "guild", m.GuildID, "draft", ev.Target, "error", err)
			if errors.Is(err, domain.ErrDraftNotFound) || errors.Is(err, domain.ErrNotAdmin) {
				msg = editorFailure(err)
			}
		}
		b.update(i, msg)
	case domain.ActionCancel:
		msg, err := b.editor.Cancel(ev.Target, m.UserID)
		if err != nil {
			msg = editorFailure(err)
		}
		b.update(i, msg)
	}
}

func (b *Bot) handleModal(i *discordgo.Interaction, m domain.Member) {
	data := i.ModalSubmitData()
	ev, err := domain.ParseCustomID(data.CustomID)
	if err != nil || ev.Kind != domain.EventEditor || ev.Action != domain.ActionForm {
		b.logger.Debug("ignoring modal", "custom_id", data.CustomID)
		return
	}
	msg, err := b.editor.Submit(ev.Target, m.UserID, modalValues(data))
	if err != nil {
		b.update(i, editorFailure(err))
		return
	}
	b.update(i, msg)
}

func editorFailure(err error) domain.Message {
	if errors.Is(err, domain.ErrNotAdmin) {
		return app.NotAdminMessage()
	}
	if errors.Is(err, domain.ErrDraftNotFound) {
		return app.DraftExpiredMessage()
	}
	return domain.Message{Content: "Could not apply the change: " + err.Error()}
}

// member converts the interaction author. Interactions from DMs carry no member.
func (b *Bot) member(i *discordgo.Interaction) (domain.Member, bool) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return domain.Member{}, false
	}
	m := domain.Member{
		UserID:        i.Member.User.ID,
		GuildID:       i.GuildID,
		Roles:         i.Member.Roles,
		Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
	return m, true
}

// withOwner marks the guild owner, who may use admin flows without the
// Administrator permission.
func (b *Bot) withOwner(m domain.Member) domain.Member {
	if !m.Administrator {
		m.Owner = b.ownerID(m.GuildID) == m.UserID
	}
	return m
}

func (b *Bot) ownerID(guildID string) string {
	if b.state != nil {
		if g, err := b.state.Guild(guildID); err == nil {
			return g.OwnerID
		}
	}
	g, err := b.api.Guild(guildID)
	if err != nil {
		b.logger.Warn("lookup guild owner", "guild", guildID, "error", err)
		return ""
	}
	return g.OwnerID
}

func (b *Bot) respond(i *discordgo.Interaction, typ discordgo.InteractionResponseType, data *discordgo.InteractionResponseData) error {
	err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{Type: typ, Data: data})
	if err != nil {
		b.logger.Warn("interaction response failed", "interaction", i.ID, "type", typ, "error", err)
	}
	return err
}

// reply answers with a private message.
func (b *Bot) reply(i *discordgo.Interaction, msg domain.Message) {
	_ = b.respond(i, discordgo.InteractionResponseChannelMessageWithSource, responseData(msg, true))
}

// update rewrites the message the component belongs to.
func (b *Bot) update(i *discordgo.Interaction, msg domain.Message) {
	_ = b.respond(i, discordgo.InteractionResponseUpdateMessage, responseData(msg, false))
}

var routeOnce sync.Once

// routeLibraryLogs sends discordgo's own log lines through slog.
func routeLibraryLogs(logger *slog.Logger) {
	routeOnce.Do(func() {
		discordgo.Logger = func(msgL, _ int, format string, a ...interface{}) {
			level := slog.LevelDebug
			switch msgL {
			case discordgo.LogError:
				level = slog.LevelError
			case discordgo.LogWarning:
				level = slog.LevelWarn
			case discordgo.LogInformational:
				level = slog.LevelInfo
			}
			logger.Log(context.Background(), level, fmt.Sprintf(format, a...), "component", "discordgo")
		}
	})
}
