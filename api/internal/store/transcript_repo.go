package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"lexie-server/api/internal/types"
)

// TranscriptRepo - кэш расшифровок страниц по (image_hash, engine, model).
type TranscriptRepo struct {
	DB     *sql.DB
	MaxAge time.Duration
}

func NewTranscriptRepo(db *sql.DB, maxAge time.Duration) *TranscriptRepo {
	return &TranscriptRepo{DB: db, MaxAge: maxAge}
}

// Find вернёт ErrNotFound, если записи нет, она старше MaxAge или JSON битый.
func (r *TranscriptRepo) Find(ctx context.Context, imageHash, engine, model string) (types.Transcript, error) {
	const q = `select transcript, created_at
	           from transcripts_cache
	           where image_hash=$1 and engine=$2 and model=$3`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, imageHash, engine, model).Scan(&js, &ts); err != nil {
		return types.Transcript{}, err
	}
	if r.MaxAge > 0 && time.Since(ts) > r.MaxAge {
		return types.Transcript{}, ErrNotFound
	}
	var t types.Transcript
	if err := json.Unmarshal(js, &t); err != nil {
		return types.Transcript{}, ErrNotFound
	}
	return t, nil
}

func (r *TranscriptRepo) Upsert(ctx context.Context, imageHash, engine, model string, t types.Transcript) error {
	js, err := json.Marshal(t)
	if err != nil {
		return err
	}
	const q = `
insert into transcripts_cache(image_hash, engine, model, transcript)
values ($1,$2,$3,$4)
on conflict (image_hash, engine, model)
do update set transcript=excluded.transcript, created_at=now()`
	_, err = r.DB.ExecContext(ctx, q, imageHash, engine, model, js)
	return err
}
