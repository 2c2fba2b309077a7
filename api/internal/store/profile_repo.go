package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Profile is what signup collects. A profile with a name counts as signed in.
type Profile struct {
	ChatID    int64
	Name      string
	Email     string
	Phone     string
	Language  string
	UpdatedAt time.Time
}

func (p Profile) Complete() bool { return strings.TrimSpace(p.Name) != "" }

type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

func (r *ProfileRepo) Get(ctx context.Context, chatID int64) (Profile, error) {
	const q = `select chat_id, name, email, phone, language, updated_at from profiles where chat_id = $1`
	var p Profile
	err := r.DB.QueryRowContext(ctx, q, chatID).Scan(&p.ChatID, &p.Name, &p.Email, &p.Phone, &p.Language, &p.UpdatedAt)
	return p, err
}

// Upsert stores every field of p.
func (r *ProfileRepo) Upsert(ctx context.Context, p Profile) error {
	const q = `
insert into profiles(chat_id, name, email, phone, language)
values ($1,$2,$3,$4,$5)
on conflict (chat_id)
do update set name=excluded.name, email=excluded.email, phone=excluded.phone,
              language=excluded.language, updated_at=now()`
	_, err := r.DB.ExecContext(ctx, q, p.ChatID, p.Name, p.Email, p.Phone, p.Language)
	return err
}

// SetLanguage changes only the preferred language, creating the row if needed.
func (r *ProfileRepo) SetLanguage(ctx context.Context, chatID int64, lang string) error {
	const q = `
insert into profiles(chat_id, language)
values ($1,$2)
on conflict (chat_id)
do update set language=excluded.language, updated_at=now()`
	_, err := r.DB.ExecContext(ctx, q, chatID, lang)
	return err
}
