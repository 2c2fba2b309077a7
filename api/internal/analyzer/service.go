package analyzer

import (
	"context"
	"errors"
	"time"

	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/metrics"

	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

// Record is one finished analysis as stored in history.
type Record struct {
	ChatID    int64
	ImageHash string
	MIME      string
	Source    string
	Diagnosis Diagnosis
}

// History caches diagnoses by (image hash, engine, model) and keeps a
// per-chat log. FindRecent returns an error on a miss.
type History interface {
	FindRecent(ctx context.Context, imageHash, engine, model string, maxAge time.Duration) (Diagnosis, error)
	Save(ctx context.Context, rec Record) error
}

type Service struct {
	manager *Manager
	history History
	maxAge  time.Duration
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

type ServiceOption func(*Service)

func WithHistory(h History, maxAge time.Duration) ServiceOption {
	return func(s *Service) {
		s.history = h
		s.maxAge = maxAge
	}
}

func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(m *Manager, opts ...ServiceOption) *Service {
	s := &Service{
		manager: m,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Manager() *Manager { return s.manager }

// Analyze runs the chat's current engine on c.
func (s *Service) Analyze(ctx context.Context, chatID int64, c media.Candidate) (Diagnosis, error) {
	return s.AnalyzeWith(ctx, s.manager.Get(chatID), chatID, c)
}

// AnalyzeWith runs eng on c. The call returns within the service timeout
// even when the engine ignores cancellation. Every failure is an *Error.
func (s *Service) AnalyzeWith(ctx context.Context, eng Engine, chatID int64, c media.Candidate) (Diagnosis, error) {
	if eng == nil {
		return Diagnosis{}, &Error{Kind: KindServiceUnavailable, Err: ErrNoEngine}
	}
	name, model := eng.Name(), eng.GetModel()
	log := s.log.With(zap.Int64("chat_id", chatID), zap.String("engine", name), zap.String("model", model))
	hash := c.Hash()

	if s.history != nil {
		if d, err := s.history.FindRecent(ctx, hash, name, model, s.maxAge); err == nil {
			metrics.AnalysesTotal.WithLabelValues(name, "cached").Inc()
			log.Debug("diagnosis cache hit", zap.String("image_hash", hash))
			return d, nil
		}
	}

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	d, err := s.call(actx, eng, c)
	metrics.AnalysisDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err == nil {
		err = ApplyDiagnosisPolicy(&d)
	}
	if err != nil {
		kind := Classify(err)
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		metrics.AnalysesTotal.WithLabelValues(name, kind.String()).Inc()
		log.Warn("analysis failed", zap.Stringer("kind", kind), zap.Error(err))
		return Diagnosis{}, &Error{Kind: kind, Engine: name, Err: err}
	}

	d.Engine, d.Model, d.AnalyzedAt = name, model, s.now().UTC()
	metrics.AnalysesTotal.WithLabelValues(name, "ok").Inc()
	log.Info("analysis done",
		zap.String("disease", d.Disease),
		zap.Float64("confidence", d.Confidence),
		zap.Duration("took", time.Since(start)),
	)

	if s.history != nil {
		rec := Record{ChatID: chatID, ImageHash: hash, MIME: c.MIME(), Source: c.Source().String(), Diagnosis: d}
		if err := s.history.Save(context.WithoutCancel(ctx), rec); err != nil {
			log.Error("save diagnosis", zap.Error(err))
		}
	}
	return d, nil
}

type result struct {
	d   Diagnosis
	err error
}

func (s *Service) call(ctx context.Context, eng Engine, c media.Candidate) (Diagnosis, error) {
	ch := make(chan result, 1)
	go func() {
		d, err := eng.Analyze(ctx, c.Bytes(), c.MIME())
		ch <- result{d, err}
	}()
	select {
	case r := <-ch:
		return r.d, r.err
	case <-ctx.Done():
		return Diagnosis{}, ctx.Err()
	}
}

// ChatClient binds a Service to one chat.
type ChatClient struct {
	svc    *Service
	chatID int64
}

func (s *Service) ForChat(chatID int64) *ChatClient {
	return &ChatClient{svc: s, chatID: chatID}
}

func (c *ChatClient) Analyze(ctx context.Context, cand media.Candidate) (Diagnosis, error) {
	return c.svc.Analyze(ctx, c.chatID, cand)
}
