package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxAnswers is the number of buttons a single message can carry.
	MaxAnswers = 25
	// MaxLabelLength is the platform limit for a button label.
	MaxLabelLength = 80
)

// ValidateBank checks every item of a question bank.
func ValidateBank(items []QuizItem) error {
	if len(items) == 0 {
		return ErrBankEmpty
	}
	for i, item := range items {
		if err := validateItem(item); err != nil {
			return fmt.Errorf("%w: item %d: %v", ErrInvalidBank, i, err)
		}
	}
	return nil
}

func validateItem(item QuizItem) error {
	if strings.TrimSpace(item.Question) == "" {
		return fmt.Errorf("question is empty")
	}
	if strings.TrimSpace(item.Correct) == "" {
		return fmt.Errorf("correct answer is empty")
	}
	if len(item.Incorrect) == 0 {
		return fmt.Errorf("no incorrect answers")
	}
	answers := item.Answers()
	if len(answers) > MaxAnswers {
		return fmt.Errorf("%d answers exceed the limit of %d", len(answers), MaxAnswers)
	}
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("empty answer")
		}
		if utf8.RuneCountInString(a) > MaxLabelLength {
			return fmt.Errorf("answer %q longer than %d characters", a, MaxLabelLength)
		}
		if _, dup := seen[a]; dup {
			return fmt.Errorf("duplicate answer %q", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}
