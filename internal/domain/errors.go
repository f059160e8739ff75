package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingRoles is returned when a member lacks one of the required roles.
	ErrMissingRoles = errors.New("missing required roles")
	// ErrOnCooldown is returned when the member started a quiz inside the cooldown window.
	ErrOnCooldown = errors.New("quiz on cooldown")
	// ErrAlreadyPassed is returned when retakes are blocked and the member already passed.
	ErrAlreadyPassed = errors.New("member already passed the quiz")
	// ErrAnswerTimeout is returned when no qualifying click arrived in time.
	ErrAnswerTimeout = errors.New("answer timed out")
	// ErrMessageUnreachable means the anchor or announcement message is gone.
	ErrMessageUnreachable = errors.New("message unreachable")
	// ErrConfigCorrupt wraps decode failures of persisted guild configuration.
	ErrConfigCorrupt = errors.New("guild config corrupt")
	// ErrBankEmpty indicates the question bank has no items.
	ErrBankEmpty = errors.New("question bank is empty")
	// ErrInvalidBank indicates a malformed question bank item.
	ErrInvalidBank = errors.New("invalid question bank")
	// ErrNotAdmin is returned when a non-admin invokes an admin command.
	ErrNotAdmin = errors.New("caller is not a guild administrator")
	// ErrDraftNotFound indicates an embed draft expired or never existed.
	ErrDraftNotFound = errors.New("embed draft not found")
	// ErrUnknownInteraction indicates a custom ID the bot does not own.
	ErrUnknownInteraction = errors.New("unknown interaction")
)

// DenialReason classifies why a member may not start a quiz.
type DenialReason string

const (
	ReasonMissingRoles  DenialReason = "missing_roles"
	ReasonOnCooldown    DenialReason = "on_cooldown"
	ReasonAlreadyPassed DenialReason = "already_passed"
)

// IneligibleError carries the details of a gate denial.
type IneligibleError struct {
	Reason   DenialReason
	RetryAt  time.Time
	// Required lists every role the guild requires; Missing the ones absent.
	Required []string
	Missing  []string
}

func (e *IneligibleError) Error() string {
	switch e.Reason {
	case ReasonOnCooldown:
		return fmt.Sprintf("quiz on cooldown until %s", e.RetryAt.UTC().Format(time.RFC3339))
	case ReasonMissingRoles:
		return fmt.Sprintf("missing required roles %v", e.Missing)
	default:
		return string(e.Reason)
	}
}

func (e *IneligibleError) Unwrap() error {
	switch e.Reason {
	case ReasonOnCooldown:
		return ErrOnCooldown
	case ReasonMissingRoles:
		return ErrMissingRoles
	case ReasonAlreadyPassed:
		return ErrAlreadyPassed
	}
	return nil
}
