package store

import (
	"context"
	"database/sql"
)

// HintRepo хранит дополнительные подсказки по (processing_id, card_number).
type HintRepo struct{ DB *sql.DB }

func NewHintRepo(db *sql.DB) *HintRepo { return &HintRepo{DB: db} }

func (r *HintRepo) Find(ctx context.Context, processingID string, cardNumber int) (string, error) {
	const q = `select hint from hints_cache where processing_id=$1 and card_number=$2`
	var hint string
	if err := r.DB.QueryRowContext(ctx, q, processingID, cardNumber).Scan(&hint); err != nil {
		return "", err
	}
	return hint, nil
}

// Upsert перезаписывает подсказку и освежает created_at.
func (r *HintRepo) Upsert(ctx context.Context, processingID string, cardNumber int, hint string) error {
	const q = `
insert into hints_cache(processing_id, card_number, hint)
values ($1,$2,$3)
on conflict (processing_id, card_number)
do update set hint=excluded.hint, created_at=now()`
	_, err := r.DB.ExecContext(ctx, q, processingID, cardNumber, hint)
	return err
}
