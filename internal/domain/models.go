package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// QuizItem is one question of the bank with its correct answer and distractors.
type QuizItem struct {
	Question  string   `json:"question"`
	Correct   string   `json:"correct"`
	Incorrect []string `json:"incorrect"`
}

// Answers returns the correct answer followed by the distractors.
func (q QuizItem) Answers() []string {
	answers := make([]string, 0, len(q.Incorrect)+1)
	answers = append(answers, q.Correct)
	return append(answers, q.Incorrect...)
}

// Snowflake is a platform ID. It is stored as a JSON number when numeric so
// config files written by earlier versions of the bot stay readable.
type Snowflake string

func (s Snowflake) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseUint(string(s), 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(string(s))
}

func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = Snowflake(raw)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("snowflake: %w", err)
	}
	*s = Snowflake(n.String())
	return nil
}

// EmbedKind names one of the three configurable embeds of a guild.
type EmbedKind string

const (
	EmbedPass         EmbedKind = "pass"
	EmbedFail         EmbedKind = "fail"
	EmbedQuizAnnounce EmbedKind = "quiz"
)

// ParseEmbedKind accepts the kind names as well as the legacy config keys.
func ParseEmbedKind(raw string) (EmbedKind, bool) {
	switch raw {
	case "pass", "correct", "pass_embed":
		return EmbedPass, true
	case "fail", "incorrect", "fail_embed":
		return EmbedFail, true
	case "quiz", "quiz_embed", "quizAnnounce":
		return EmbedQuizAnnounce, true
	}
	return "", false
}

// Label is the human name used in admin replies.
func (k EmbedKind) Label() string {
	switch k {
	case EmbedPass:
		return "Pass"
	case EmbedFail:
		return "Fail"
	default:
		return "Quiz"
	}
}

// EmbedMedia is an image or thumbnail reference.
type EmbedMedia struct {
	URL string `json:"url"`
}

// Embed is the persisted shape of a rich message body.
type Embed struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Type        string      `json:"type,omitempty"`
	Color       int         `json:"color,omitempty"`
	Image       *EmbedMedia `json:"image,omitempty"`
	Thumbnail   *EmbedMedia `json:"thumbnail,omitempty"`
}

// DefaultEmbed is shown until an admin customizes an embed.
func DefaultEmbed() Embed {
	return Embed{
		Title:       "Example Embed Title",
		Description: "Example embed description",
		Type:        "rich",
	}
}

// SetImages replaces both media URLs; an empty URL clears the slot.
func (e *Embed) SetImages(thumbnail, image string) {
	e.Thumbnail = nil
	e.Image = nil
	if thumbnail != "" {
		e.Thumbnail = &EmbedMedia{URL: thumbnail}
	}
	if image != "" {
		e.Image = &EmbedMedia{URL: image}
	}
}

// Clone returns a deep copy.
func (e Embed) Clone() Embed {
	out := e
	if e.Image != nil {
		img := *e.Image
		out.Image = &img
	}
	if e.Thumbnail != nil {
		th := *e.Thumbnail
		out.Thumbnail = &th
	}
	return out
}

// MessageLocation points at a message in a guild channel.
type MessageLocation struct {
	ChannelID string
	MessageID string
}

// IsZero reports whether no location has been recorded.
func (l MessageLocation) IsZero() bool {
	return l.ChannelID == "" || l.MessageID == ""
}

// GuildConfig is the persisted per-guild record. Field names keep the
// legacy config file layout.
type GuildConfig struct {
	QuizMessageID Snowflake   `json:"quiz_message_id"`
	QuizChannelID Snowflake   `json:"quiz_channel_id"`
	Pass          Embed       `json:"correct"`
	Fail          Embed       `json:"incorrect"`
	QuizAnnounce  Embed       `json:"quiz"`
	Quizzed       []Snowflake `json:"quizzed"`
}

// DefaultGuildConfig is synthesized for guilds without a record.
func DefaultGuildConfig() GuildConfig {
	return GuildConfig{
		Pass:         DefaultEmbed(),
		Fail:         DefaultEmbed(),
		QuizAnnounce: DefaultEmbed(),
		Quizzed:      []Snowflake{},
	}
}

// Embed returns the embed stored under kind.
func (c GuildConfig) Embed(kind EmbedKind) Embed {
	switch kind {
	case EmbedPass:
		return c.Pass.Clone()
	case EmbedFail:
		return c.Fail.Clone()
	default:
		return c.QuizAnnounce.Clone()
	}
}

// SetEmbed stores e under kind.
func (c *GuildConfig) SetEmbed(kind EmbedKind, e Embed) {
	switch kind {
	case EmbedPass:
		c.Pass = e.Clone()
	case EmbedFail:
		c.Fail = e.Clone()
	default:
		c.QuizAnnounce = e.Clone()
	}
}

// AnnounceLocation returns the recorded "Start Quiz" message, if any.
func (c GuildConfig) AnnounceLocation() MessageLocation {
	return MessageLocation{ChannelID: string(c.QuizChannelID), MessageID: string(c.QuizMessageID)}
}

// SetAnnounceLocation records the "Start Quiz" message.
func (c *GuildConfig) SetAnnounceLocation(loc MessageLocation) {
	c.QuizChannelID = Snowflake(loc.ChannelID)
	c.QuizMessageID = Snowflake(loc.MessageID)
}

// HasQuizzed reports whether memberID was recorded as having passed.
func (c GuildConfig) HasQuizzed(memberID string) bool {
	for _, id := range c.Quizzed {
		if string(id) == memberID {
			return true
		}
	}
	return false
}

// MarkQuizzed records memberID once and reports whether it was added.
func (c *GuildConfig) MarkQuizzed(memberID string) bool {
	if c.HasQuizzed(memberID) {
		return false
	}
	c.Quizzed = append(c.Quizzed, Snowflake(memberID))
	return true
}

// Member is a guild member as seen by the gate and the editor.
type Member struct {
	UserID        string
	GuildID       string
	Roles         []string
	Administrator bool
	Owner         bool
}

// HasRole reports whether the member carries roleID.
func (m Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// ButtonStyle mirrors the platform button colors the bot uses.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is one clickable component.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// Message is a platform-neutral message body. A nil Embed clears the embed
// and an empty Buttons slice clears all components.
type Message struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// TextField is one input of a modal form.
type TextField struct {
	CustomID    string
	Label       string
	Placeholder string
	Value       string
	MaxLength   int
	Required    bool
	Multiline   bool
}

// Modal is a form shown to a user.
type Modal struct {
	CustomID string
	Title    string
	Fields   []TextField
}

// Outcome is the terminal classification of a session.
type Outcome string

const (
	OutcomePass      Outcome = "pass"
	OutcomeFail      Outcome = "fail"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeAbandoned Outcome = "abandoned"
)

// EventType identifies an activity feed event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventAnswered  EventType = "answered"
	EventCompleted EventType = "completed"
	EventTimedOut  EventType = "timed_out"
	EventAbandoned EventType = "abandoned"
	EventDenied    EventType = "denied"
)

// QuizEvent is published on the activity feed.
type QuizEvent struct {
	Type      EventType `json:"type"`
	GuildID   string    `json:"guildId"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId,omitempty"`
	Turn      int       `json:"turn,omitempty"`
	Correct   bool      `json:"correct,omitempty"`
	Score     int       `json:"score,omitempty"`
	Total     int       `json:"total,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// DecodeGuildConfig parses a stored record on top of the defaults, so keys
// missing from older files keep their default values.
func DecodeGuildConfig(raw []byte) (GuildConfig, error) {
	cfg := DefaultGuildConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return GuildConfig{}, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	if cfg.Quizzed == nil {
		cfg.Quizzed = []Snowflake{}
	}
	return cfg, nil
}
