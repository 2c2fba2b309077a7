package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leaf-doctor/api/internal/analyzer"

	"github.com/oklog/ulid/v2"
)

type DiagnosisRepo struct{ DB *sql.DB }

func NewDiagnosisRepo(db *sql.DB) *DiagnosisRepo { return &DiagnosisRepo{DB: db} }

// DiagnosisRecord is one stored analysis.
type DiagnosisRecord struct {
	ID        string
	CreatedAt time.Time
	ChatID    int64
	ImageHash string
	MIME      string
	Source    string
	Diagnosis analyzer.Diagnosis
}

// FindRecent returns the newest diagnosis for (imageHash, engine, model).
// With maxAge > 0 an older row counts as missing.
func (r *DiagnosisRepo) FindRecent(ctx context.Context, imageHash, engine, model string, maxAge time.Duration) (analyzer.Diagnosis, error) {
	const q = `
select result_json, created_at
from diagnoses
where image_hash = $1 and engine = $2 and model = $3
order by created_at desc
limit 1`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, imageHash, engine, model).Scan(&js, &ts); err != nil {
		return analyzer.Diagnosis{}, err
	}
	if maxAge > 0 && time.Since(ts) > maxAge {
		return analyzer.Diagnosis{}, ErrNotFound
	}
	var d analyzer.Diagnosis
	if err := json.Unmarshal(js, &d); err != nil {
		// a broken row is treated as a miss
		return analyzer.Diagnosis{}, ErrNotFound
	}
	return d, nil
}

// Save appends rec to the history.
func (r *DiagnosisRepo) Save(ctx context.Context, rec analyzer.Record) error {
	js, err := json.Marshal(rec.Diagnosis)
	if err != nil {
		return fmt.Errorf("marshal diagnosis: %w", err)
	}
	const q = `
insert into diagnoses(id, chat_id, image_hash, mime, source, engine, model, disease, confidence, result_json)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	d := rec.Diagnosis
	_, err = r.DB.ExecContext(ctx, q,
		ulid.Make().String(), rec.ChatID, rec.ImageHash, rec.MIME, rec.Source,
		d.Engine, d.Model, d.Disease, d.Confidence, js,
	)
	return err
}

// ListByChat returns the newest records of a chat, newest first.
func (r *DiagnosisRepo) ListByChat(ctx context.Context, chatID int64, limit int) ([]DiagnosisRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
select id, created_at, chat_id, image_hash, mime, source, result_json
from diagnoses
where chat_id = $1
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DiagnosisRecord
	for rows.Next() {
		var (
			rec DiagnosisRecord
			js  []byte
		)
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.ChatID, &rec.ImageHash, &rec.MIME, &rec.Source, &js); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(js, &rec.Diagnosis); err != nil {
			return nil, fmt.Errorf("decode diagnosis %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
