package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leaf-doctor/api/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memHistory struct {
	mu    sync.Mutex
	cache map[string]Diagnosis
	saved []Record
}

func (h *memHistory) FindRecent(_ context.Context, hash, engine, model string, _ time.Duration) (Diagnosis, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.cache[hash+engine+model]; ok {
		return d, nil
	}
	return Diagnosis{}, errors.New("miss")
}

func (h *memHistory) Save(_ context.Context, rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, rec)
	return nil
}

func candidate() media.Candidate {
	return media.NewCandidate([]byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}, "image/jpeg", media.SourceCamera)
}

func TestServiceAnalyzeSuccessRecordsHistory(t *testing.T) {
	eng := &fakeEngine{name: "stub", reply: func(context.Context) (Diagnosis, error) {
		return Diagnosis{Disease: "Nitrogen Deficiency", Confidence: 88.34, Treatment: "Fertilize."}, nil
	}}
	h := &memHistory{cache: map[string]Diagnosis{}}
	svc := NewService(NewManager(eng), WithHistory(h, time.Hour), WithLogger(zaptest.NewLogger(t)))

	d, err := svc.ForChat(42).Analyze(context.Background(), candidate())
	require.NoError(t, err)
	assert.Equal(t, 88.3, d.Confidence)
	assert.Equal(t, "stub", d.Engine)
	assert.Equal(t, "stub-model", d.Model)
	assert.False(t, d.AnalyzedAt.IsZero())

	require.Len(t, h.saved, 1)
	assert.Equal(t, int64(42), h.saved[0].ChatID)
	assert.Equal(t, "camera", h.saved[0].Source)
	assert.Equal(t, candidate().Hash(), h.saved[0].ImageHash)
}

func TestServiceCacheHitSkipsEngine(t *testing.T) {
	eng := &fakeEngine{name: "stub", reply: func(context.Context) (Diagnosis, error) {
		t.Fatal("engine must not be called on cache hit")
		return Diagnosis{}, nil
	}}
	c := candidate()
	cached := Diagnosis{Disease: "Healthy Plant", Confidence: 95.7}
	h := &memHistory{cache: map[string]Diagnosis{c.Hash() + "stub" + "stub-model": cached}}
	svc := NewService(NewManager(eng), WithHistory(h, time.Hour))

	d, err := svc.Analyze(context.Background(), 1, c)
	require.NoError(t, err)
	assert.Equal(t, cached, d)
	assert.Zero(t, eng.calls)
}

func TestServiceTimeoutWhenEngineIgnoresContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	eng := &fakeEngine{name: "slow", reply: func(context.Context) (Diagnosis, error) {
		<-block
		return Diagnosis{Disease: "late"}, nil
	}}
	svc := NewService(NewManager(eng), WithTimeout(20*time.Millisecond))

	_, err := svc.Analyze(context.Background(), 1, candidate())
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindTimeout, ae.Kind)
	assert.Equal(t, "slow", ae.Engine)
}

func TestServiceClassifiesFailures(t *testing.T) {
	cases := []struct {
		reply func(context.Context) (Diagnosis, error)
		want  ErrorKind
	}{
		{func(context.Context) (Diagnosis, error) { return Diagnosis{}, errors.New("dial tcp: refused") }, KindServiceUnavailable},
		{func(context.Context) (Diagnosis, error) { return Diagnosis{Disease: "", Confidence: 10}, nil }, KindInvalidResponse},
		{func(context.Context) (Diagnosis, error) { return Diagnosis{Disease: "x", Confidence: 250}, nil }, KindInvalidResponse},
	}
	for _, tc := range cases {
		svc := NewService(NewManager(&fakeEngine{name: "e", reply: tc.reply}))
		_, err := svc.Analyze(context.Background(), 1, candidate())
		assert.Equal(t, tc.want, Classify(err))
	}
}

func TestServiceNoEngine(t *testing.T) {
	svc := NewService(NewManager(nil))
	_, err := svc.Analyze(context.Background(), 1, candidate())
	assert.ErrorIs(t, err, ErrNoEngine)
	assert.Equal(t, KindServiceUnavailable, Classify(err))
}
