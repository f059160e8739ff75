package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"discord-quiz-bot/internal/domain"
)

// BankLoader reads the question bank from a JSON array of
// {question, correct, incorrect} objects.
type BankLoader struct {
	path string
}

func NewBankLoader(path string) *BankLoader {
	return &BankLoader{path: path}
}

func (l *BankLoader) LoadBank(_ context.Context) ([]domain.QuizItem, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read bank %s: %w", l.path, err)
	}
	items, err := DecodeBank(data)
	if err != nil {
		return nil, fmt.Errorf("bank %s: %w", l.path, err)
	}
	return items, nil
}

// DecodeBank parses and validates a bank document.
func DecodeBank(data []byte) ([]domain.QuizItem, error) {
	var items []domain.QuizItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBank, err)
	}
	if err := domain.ValidateBank(items); err != nil {
		return nil, err
	}
	return items, nil
}
