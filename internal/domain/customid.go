package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// BeginQuizID is the custom ID of the standing "Start Quiz" button. It predates
// the tagged format and is kept so existing announcement messages still work.
const BeginQuizID = "begin_quiz"

// EventKind is the tag of a decoded component interaction.
type EventKind int

const (
	EventBegin EventKind = iota + 1
	EventAnswer
	EventEditor
)

// EditorAction is a step of the embed editing flow.
type EditorAction string

const (
	ActionEdit   EditorAction = "edit"
	ActionSave   EditorAction = "save"
	ActionCancel EditorAction = "cancel"
	ActionForm   EditorAction = "form"
)

// Event is the decoded form of a button or modal custom ID.
type Event struct {
	Kind   EventKind
	Target string
	Turn   int
	Choice int
	Action EditorAction
}

// AnswerID encodes an answer button for a session turn.
func AnswerID(sessionID string, turn, choice int) string {
	return fmt.Sprintf("quiz:%s:%d:%d", sessionID, turn, choice)
}

// EditorID encodes an editor button or form for a draft.
func EditorID(draftID string, action EditorAction) string {
	return "editor:" + draftID + ":" + string(action)
}

// ParseCustomID decodes a custom ID produced by this bot.
func ParseCustomID(id string) (Event, error) {
	if id == BeginQuizID {
		return Event{Kind: EventBegin}, nil
	}
	parts := strings.Split(id, ":")
	switch {
	case len(parts) == 4 && parts[0] == "quiz":
		turn, err := strconv.Atoi(parts[2])
		if err != nil || turn < 0 {
			return Event{}, fmt.Errorf("%w: bad turn in %q", ErrUnknownInteraction, id)
		}
		choice, err := strconv.Atoi(parts[3])
		if err != nil || choice < 0 {
			return Event{}, fmt.Errorf("%w: bad choice in %q", ErrUnknownInteraction, id)
		}
		if parts[1] == "" {
			return Event{}, fmt.Errorf("%w: empty session in %q", ErrUnknownInteraction, id)
		}
		return Event{Kind: EventAnswer, Target: parts[1], Turn: turn, Choice: choice}, nil
	case len(parts) == 3 && parts[0] == "editor":
		action := EditorAction(parts[2])
		switch action {
		case ActionEdit, ActionSave, ActionCancel, ActionForm:
		default:
			return Event{}, fmt.Errorf("%w: bad editor action in %q", ErrUnknownInteraction, id)
		}
		if parts[1] == "" {
			return Event{}, fmt.Errorf("%w: empty draft in %q", ErrUnknownInteraction, id)
		}
		return Event{Kind: EventEditor, Target: parts[1], Action: action}, nil
	}
	return Event{}, fmt.Errorf("%w: %q", ErrUnknownInteraction, id)
}
