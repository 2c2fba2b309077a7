package store

import (
	"context"
	"sync"
	"time"

	"leaf-doctor/api/internal/analyzer"
)

// MemoryHistory is the in-process History used when no database is configured.
type MemoryHistory struct {
	mu   sync.Mutex
	recs []DiagnosisRecord
	max  int
}

func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = 1000
	}
	return &MemoryHistory{max: max}
}

func (m *MemoryHistory) FindRecent(_ context.Context, imageHash, engine, model string, maxAge time.Duration) (analyzer.Diagnosis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.recs) - 1; i >= 0; i-- {
		r := m.recs[i]
		if r.ImageHash != imageHash || r.Diagnosis.Engine != engine || r.Diagnosis.Model != model {
			continue
		}
		if maxAge > 0 && time.Since(r.CreatedAt) > maxAge {
			return analyzer.Diagnosis{}, ErrNotFound
		}
		return r.Diagnosis, nil
	}
	return analyzer.Diagnosis{}, ErrNotFound
}

func (m *MemoryHistory) Save(_ context.Context, rec analyzer.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, DiagnosisRecord{
		CreatedAt: time.Now(),
		ChatID:    rec.ChatID,
		ImageHash: rec.ImageHash,
		MIME:      rec.MIME,
		Source:    rec.Source,
		Diagnosis: rec.Diagnosis,
	})
	if over := len(m.recs) - m.max; over > 0 {
		m.recs = append(m.recs[:0:0], m.recs[over:]...)
	}
	return nil
}

func (m *MemoryHistory) ListByChat(_ context.Context, chatID int64, limit int) ([]DiagnosisRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DiagnosisRecord
	for i := len(m.recs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.recs[i].ChatID == chatID {
			out = append(out, m.recs[i])
		}
	}
	return out, nil
}

// MemoryProfiles keeps profiles in a sync.Map keyed by chat id.
type MemoryProfiles struct{ m sync.Map }

func NewMemoryProfiles() *MemoryProfiles { return &MemoryProfiles{} }

func (p *MemoryProfiles) Get(_ context.Context, chatID int64) (Profile, error) {
	if v, ok := p.m.Load(chatID); ok {
		return v.(Profile), nil
	}
	return Profile{}, ErrNotFound
}

func (p *MemoryProfiles) Upsert(_ context.Context, pr Profile) error {
	pr.UpdatedAt = time.Now()
	p.m.Store(pr.ChatID, pr)
	return nil
}

func (p *MemoryProfiles) SetLanguage(ctx context.Context, chatID int64, lang string) error {
	pr, _ := p.Get(ctx, chatID)
	pr.ChatID = chatID
	pr.Language = lang
	return p.Upsert(ctx, pr)
}
