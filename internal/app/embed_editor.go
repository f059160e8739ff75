package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"discord-quiz-bot/internal/domain"
	"github.com/google/uuid"
)

const (
	// DraftTTL matches the lifetime of the interaction token that shows the draft.
	DraftTTL = 15 * time.Minute

	TitleMaxLength = 250
	BodyMaxLength  = 3500

	titleFieldID = "title"
	bodyFieldID  = "body"
)

// OpenRequest starts an editing flow for one of the guild embeds.
type OpenRequest struct {
	Member      domain.Member
	Kind        domain.EmbedKind
	Thumbnail   string
	Image       string
	ClearImages bool
}

type draft struct {
	guildID   string
	owner     string
	kind      domain.EmbedKind
	embed     domain.Embed
	createdAt time.Time
}

// EmbedEditor is the admin flow for customizing the pass, fail and
// announcement embeds. Pending edits live in memory until saved.
type EmbedEditor struct {
	settings  *GuildSettings
	announcer Announcer
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	drafts map[string]*draft
}

func NewEmbedEditor(settings *GuildSettings, announcer Announcer, logger *slog.Logger) *EmbedEditor {
	return &EmbedEditor{
		settings:  settings,
		announcer: announcer,
		logger:    logger,
		now:       time.Now,
		drafts:    make(map[string]*draft),
	}
}

// Authorize allows guild administrators and the guild owner.
func Authorize(m domain.Member) error {
	if m.Administrator || m.Owner {
		return nil
	}
	return domain.ErrNotAdmin
}

// Open loads the current embed into a new draft and renders it for review.
func (e *EmbedEditor) Open(ctx context.Context, req OpenRequest) (domain.Message, error) {
	if err := Authorize(req.Member); err != nil {
		return NotAdminMessage(), err
	}
	embed, err := e.settings.Embed(ctx, req.Member.GuildID, req.Kind)
	if err != nil {
		return editFailedMessage(), err
	}

	switch {
	case req.ClearImages:
		embed.SetImages("", "")
	case req.Thumbnail != "" || req.Image != "":
		thumb, img := req.Thumbnail, req.Image
		if thumb == "" && embed.Thumbnail != nil {
			thumb = embed.Thumbnail.URL
		}
		if img == "" && embed.Image != nil {
			img = embed.Image.URL
		}
		embed.SetImages(thumb, img)
	}

	id := uuid.NewString()
	e.mu.Lock()
	e.pruneLocked()
	e.drafts[id] = &draft{
		guildID:   req.Member.GuildID,
		owner:     req.Member.UserID,
		kind:      req.Kind,
		embed:     embed,
		createdAt: e.now(),
	}
	e.mu.Unlock()

	content := fmt.Sprintf("Here is your currently configured '%s' embed.  You can click the buttons below to make changes, "+
		"submit the changes, or cancel the change", req.Kind.Label())
	return editorMessage(content, id, embed, false), nil
}

// Form returns the modal pre-filled with the draft's title and body.
func (e *EmbedEditor) Form(draftID, userID string) (domain.Modal, error) {
	d, err := e.lookup(draftID, userID)
	if err != nil {
		return domain.Modal{}, err
	}
	return domain.Modal{
		CustomID: domain.EditorID(draftID, domain.ActionForm),
		Title:    "Edit Embed",
		Fields: []domain.TextField{
			{CustomID: titleFieldID, Label: "Title", Placeholder: "Edit the title of your embed", Value: d.embed.Title, MaxLength: TitleMaxLength, Required: true},
			{CustomID: bodyFieldID, Label: "Body", Placeholder: "Edit the body of your embed", Value: d.embed.Description, MaxLength: BodyMaxLength, Required: true, Multiline: true},
		},
	}, nil
}

// Submit applies the form values to the draft only; nothing is persisted.
func (e *EmbedEditor) Submit(draftID, userID string, values map[string]string) (domain.Message, error) {
	title := strings.TrimSpace(values[titleFieldID])
	body := strings.TrimSpace(values[bodyFieldID])
	if title == "" || body == "" {
		return domain.Message{}, errors.New("title and body are required")
	}
	if len([]rune(title)) > TitleMaxLength || len([]rune(body)) > BodyMaxLength {
		return domain.Message{}, errors.New("title or body too long")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.lookupLocked(draftID, userID)
	if err != nil {
		return domain.Message{}, err
	}
	d.embed.Title = title
	d.embed.Description = body
	return editorMessage("", draftID, d.embed, false), nil
}

// Save persists the draft. For the announcement embed it also edits the
// standing "Start Quiz" message, or posts a new one in channelID when the
// recorded message is gone or was never posted.
func (e *EmbedEditor) Save(ctx context.Context, draftID, userID, channelID string) (domain.Message, error) {
	d, err := e.take(draftID, userID)
	if err != nil {
		return DraftExpiredMessage(), err
	}

	if err := e.settings.SetEmbed(ctx, d.guildID, d.kind, d.embed); err != nil {
		e.restore(draftID, d)
		return editFailedMessage(), err
	}
	e.logger.Info("embed saved", "guild", d.guildID, "kind", d.kind, "user", userID)

	done := editorMessage(savedText, draftID, d.embed, true)
	if d.kind != domain.EmbedQuizAnnounce {
		return done, nil
	}
	if err := e.ensureAnnouncement(ctx, d.guildID, channelID, d.embed); err != nil {
		return done, fmt.Errorf("announcement: %w", err)
	}
	return done, nil
}

// Cancel discards the draft.
func (e *EmbedEditor) Cancel(draftID, userID string) (domain.Message, error) {
	d, err := e.take(draftID, userID)
	if err != nil {
		return DraftExpiredMessage(), err
	}
	return editorMessage(cancelledText, draftID, d.embed, true), nil
}

func (e *EmbedEditor) ensureAnnouncement(ctx context.Context, guildID, channelID string, embed domain.Embed) error {
	msg := AnnouncementMessage(embed)
	loc, err := e.settings.AnnounceLocation(ctx, guildID)
	if err != nil {
		return err
	}
	if !loc.IsZero() {
		err := e.announcer.EditMessage(ctx, loc, msg)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrMessageUnreachable) {
			return err
		}
		e.logger.Info("announcement message gone, posting a new one", "guild", guildID, "channel", loc.ChannelID, "message", loc.MessageID)
	}

	posted, err := e.announcer.PostMessage(ctx, channelID, msg)
	if err != nil {
		return err
	}
	return e.settings.SetAnnounceLocation(ctx, guildID, posted)
}

func (e *EmbedEditor) lookup(draftID, userID string) (*draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.lookupLocked(draftID, userID)
	if err != nil {
		return nil, err
	}
	cp := *d
	cp.embed = d.embed.Clone()
	return &cp, nil
}

func (e *EmbedEditor) lookupLocked(draftID, userID string) (*draft, error) {
	d, ok := e.drafts[draftID]
	if !ok || e.now().Sub(d.createdAt) > DraftTTL {
		delete(e.drafts, draftID)
		return nil, domain.ErrDraftNotFound
	}
	if d.owner != userID {
		return nil, domain.ErrNotAdmin
	}
	return d, nil
}

func (e *EmbedEditor) take(draftID, userID string) (*draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.lookupLocked(draftID, userID)
	if err != nil {
		return nil, err
	}
	delete(e.drafts, draftID)
	return d, nil
}

func (e *EmbedEditor) restore(draftID string, d *draft) {
	e.mu.Lock()
	e.drafts[draftID] = d
	e.mu.Unlock()
}

func (e *EmbedEditor) pruneLocked() {
	now := e.now()
	for id, d := range e.drafts {
		if now.Sub(d.createdAt) > DraftTTL {
			delete(e.drafts, id)
		}
	}
}

// Pending reports the number of open drafts.
func (e *EmbedEditor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.drafts)
}
