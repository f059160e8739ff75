package app

import (
	"fmt"
	"strings"
	"time"

	"discord-quiz-bot/internal/domain"
)

const (
	preparingText   = "Preparing quiz.  Please do not close this message"
	questionTitle   = "Quiz in Process"
	failureText     = "Something went wrong while finishing your quiz. Please try again later."
	notAdminText    = "It seems you do not have the required permissions to use this command"
	savedText       = "Your customization has been saved. You may close this message."
	cancelledText   = "Customization has been cancelled."
	startQuizLabel  = "Start Quiz"
	zeroWidthSpace  = "\u200b"
	draftExpiredMsg = "This customization expired. Run the command again to start over."
	notYoursText    = "This quiz belongs to someone else. Press Start Quiz to take your own."
	endedText       = "This quiz is no longer running. Press Start Quiz to try again."
	guildOnlyText   = "This only works inside a server."
	editFailedText  = "Your customization could not be saved. Please try again."
	busyText        = "Still processing your last answer. Please click again in a moment."
)

// PreparingMessage is the first content of an anchor message.
func PreparingMessage() domain.Message {
	return domain.Message{Content: preparingText}
}

// NotAdminMessage is the private reply for non-admin callers of /edit.
func NotAdminMessage() domain.Message {
	return domain.Message{Content: notAdminText}
}

// DraftExpiredMessage replies to clicks on an editor that no longer exists.
func DraftExpiredMessage() domain.Message {
	return domain.Message{Content: draftExpiredMsg}
}

// NotParticipantMessage answers clicks on another member's quiz.
func NotParticipantMessage() domain.Message {
	return domain.Message{Content: notYoursText}
}

// SessionEndedMessage answers clicks on a quiz that already finished.
func SessionEndedMessage() domain.Message {
	return domain.Message{Content: endedText}
}

// BusyMessage answers a click that arrived while earlier clicks are still queued.
func BusyMessage() domain.Message {
	return domain.Message{Content: busyText}
}

// GuildOnlyMessage answers interactions sent from direct messages.
func GuildOnlyMessage() domain.Message {
	return domain.Message{Content: guildOnlyText}
}

// FailureMessage is shown when a session ends on an internal error.
func FailureMessage() domain.Message {
	return domain.Message{Content: failureText}
}

// AnnouncementMessage is the standing message carrying the "Start Quiz" button.
func AnnouncementMessage(e domain.Embed) domain.Message {
	embed := e.Clone()
	return domain.Message{
		Embed: &embed,
		Buttons: []domain.Button{
			{CustomID: domain.BeginQuizID, Label: startQuizLabel, Style: domain.ButtonPrimary},
		},
	}
}

func editFailedMessage() domain.Message {
	return domain.Message{Content: editFailedText}
}

func questionMessage(sessionID string, turn int, item domain.QuizItem, answers []string) domain.Message {
	buttons := make([]domain.Button, 0, len(answers))
	for i, a := range answers {
		buttons = append(buttons, domain.Button{
			CustomID: domain.AnswerID(sessionID, turn, i),
			Label:    a,
			Style:    domain.ButtonPrimary,
		})
	}
	return domain.Message{
		Embed: &domain.Embed{
			Title:       questionTitle,
			Description: zeroWidthSpace + "\n" + item.Question + "\n" + zeroWidthSpace,
			Type:        "rich",
		},
		Buttons: buttons,
	}
}

func timeoutMessage(cooldown time.Duration) domain.Message {
	return domain.Message{
		Content: "Whoops. Looks like you ran out of time which caused you to fail this time. Try again in " +
			humanDuration(cooldown) + ".",
	}
}

func outcomeMessage(outcome domain.Outcome, correct, total int, embed domain.Embed) domain.Message {
	var text string
	if outcome == domain.OutcomePass {
		text = fmt.Sprintf("Great job! You got %d out of %d correct!", correct, total)
	} else {
		text = fmt.Sprintf("So close, but you only got %d out of %d correct.", correct, total)
	}
	e := embed.Clone()
	return domain.Message{Content: text, Embed: &e}
}

// DenialMessage renders the private notice for a gate denial.
func DenialMessage(err *domain.IneligibleError) domain.Message {
	switch err.Reason {
	case domain.ReasonMissingRoles:
		return domain.Message{Content: fmt.Sprintf(
			"You must have %s assigned to you before you can take this quiz.", roleMentions(err.Required))}
	case domain.ReasonOnCooldown:
		return domain.Message{Content: fmt.Sprintf(
			"This button is on cooldown.  Please try again <t:%d:R>", err.RetryAt.Unix())}
	default:
		return domain.Message{Content: "You have already passed this quiz."}
	}
}

func roleMentions(roles []string) string {
	mentions := make([]string, len(roles))
	for i, r := range roles {
		mentions[i] = "<@&" + r + ">"
	}
	switch len(mentions) {
	case 0:
		return "the required roles"
	case 1:
		return mentions[0]
	case 2:
		return mentions[0] + " and " + mentions[1]
	}
	return strings.Join(mentions[:len(mentions)-1], ", ") + ", and " + mentions[len(mentions)-1]
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	case d >= time.Second && d%time.Second == 0:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return d.String()
}

func editorMessage(content string, draftID string, e domain.Embed, disabled bool) domain.Message {
	embed := e.Clone()
	return domain.Message{
		Content: content,
		Embed:   &embed,
		Buttons: []domain.Button{
			{CustomID: domain.EditorID(draftID, domain.ActionEdit), Label: "Edit", Style: domain.ButtonPrimary, Disabled: disabled},
			{CustomID: domain.EditorID(draftID, domain.ActionSave), Label: "Save", Style: domain.ButtonSuccess, Disabled: disabled},
			{CustomID: domain.EditorID(draftID, domain.ActionCancel), Label: "Cancel", Style: domain.ButtonDanger, Disabled: disabled},
		},
	}
}
