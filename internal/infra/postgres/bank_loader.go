package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"discord-quiz-bot/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BankLoader loads a question bank stored as a JSONB array in question_banks.
type BankLoader struct {
	pool   *pgxpool.Pool
	bankID string
}

func NewBankLoader(pool *pgxpool.Pool, bankID string) *BankLoader {
	return &BankLoader{pool: pool, bankID: bankID}
}

func (l *BankLoader) LoadBank(ctx context.Context) ([]domain.QuizItem, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE id=$1`, l.bankID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bank %q: %w", l.bankID, domain.ErrBankEmpty)
	}
	if err != nil {
		return nil, fmt.Errorf("load bank: %w", err)
	}
	var items []domain.QuizItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: unmarshal bank: %v", domain.ErrInvalidBank, err)
	}
	if err := domain.ValidateBank(items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveBank validates items and replaces the stored bank.
func (l *BankLoader) SaveBank(ctx context.Context, items []domain.QuizItem) error {
	if err := domain.ValidateBank(items); err != nil {
		return err
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal bank: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO question_banks (id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		l.bankID, raw)
	if err != nil {
		return fmt.Errorf("save bank: %w", err)
	}
	return nil
}
