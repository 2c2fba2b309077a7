package diagnosis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/preview"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	d   analyzer.Diagnosis
	err error
}

// blockingClient hands each call to the test and waits for its reply. It
// ignores ctx so late completions can be produced on purpose.
type blockingClient struct {
	calls   chan media.Candidate
	replies chan reply
	n       atomic.Int32
}

func newBlockingClient() *blockingClient {
	return &blockingClient{calls: make(chan media.Candidate, 4), replies: make(chan reply, 4)}
}

func (b *blockingClient) Analyze(_ context.Context, c media.Candidate) (analyzer.Diagnosis, error) {
	b.n.Add(1)
	b.calls <- c
	r := <-b.replies
	return r.d, r.err
}

var leafSpot = analyzer.Diagnosis{
	Disease:    "Leaf Spot Disease",
	Confidence: 92.5,
	Treatment:  "Apply copper-based fungicide. Remove affected leaves and improve air circulation. Avoid overhead watering.",
}

func jpegOf(size int) media.Candidate {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return media.NewCandidate(data, "image/jpeg", media.SourcePicker)
}

func newTestSession(t *testing.T) (*Session, *blockingClient, *preview.Deriver) {
	t.Helper()
	c := newBlockingClient()
	d := preview.NewDeriver(0)
	s := NewSession(c, media.NewValidator(0), d)
	t.Cleanup(func() {
		close(c.replies)
		s.Close()
	})
	return s, c, d
}

func TestScenarioSelectAnalyzeResult(t *testing.T) {
	s, c, _ := newTestSession(t)

	v, err := s.SelectImage(jpegOf(2 << 20))
	require.NoError(t, err)
	require.True(t, v.Accepted)
	require.Equal(t, KindPreviewing, s.State().Kind())

	tok, ok := s.StartAnalysis(context.Background())
	require.True(t, ok)
	assert.False(t, tok.IsZero())
	st, isAnalyzing := s.State().(Analyzing)
	require.True(t, isAnalyzing)
	assert.Equal(t, tok, st.Token)

	<-c.calls
	c.replies <- reply{d: leafSpot}
	s.Wait()

	res, isResult := s.State().(Result)
	require.True(t, isResult)
	assert.Equal(t, leafSpot, res.Diagnosis)
	assert.NotNil(t, res.Preview)
	assert.False(t, res.Preview.Released())
}

func TestScenarioResetBeforeCompletion(t *testing.T) {
	s, c, d := newTestSession(t)

	_, err := s.SelectImage(jpegOf(2 << 20))
	require.NoError(t, err)
	_, ok := s.StartAnalysis(context.Background())
	require.True(t, ok)
	<-c.calls

	s.Reset()
	assert.Equal(t, KindIdle, s.State().Kind())

	c.replies <- reply{d: leafSpot}
	s.Wait()

	assert.Equal(t, KindIdle, s.State().Kind())
	assert.Zero(t, d.Live())
	assert.EqualValues(t, 1, d.ReleasedCount())
}

func TestStartAnalysisTwiceKeepsOneToken(t *testing.T) {
	s, c, _ := newTestSession(t)
	_, err := s.SelectImage(jpegOf(1024))
	require.NoError(t, err)

	tok1, ok1 := s.StartAnalysis(context.Background())
	tok2, ok2 := s.StartAnalysis(context.Background())
	assert.True(t, ok1)
	assert.False(t, ok2)
	assert.Equal(t, tok1, tok2)

	<-c.calls
	c.replies <- reply{d: leafSpot}
	s.Wait()
	assert.EqualValues(t, 1, c.n.Load())
}

func TestStartAnalysisOutsidePreviewing(t *testing.T) {
	s, _, _ := newTestSession(t)
	tok, ok := s.StartAnalysis(context.Background())
	assert.False(t, ok)
	assert.True(t, tok.IsZero())
	assert.Equal(t, KindIdle, s.State().Kind())
}

func TestStaleCompletionNeverMutates(t *testing.T) {
	s, c, _ := newTestSession(t)
	_, err := s.SelectImage(jpegOf(1024))
	require.NoError(t, err)
	old, _ := s.StartAnalysis(context.Background())
	<-c.calls

	s.Reset()
	_, err = s.SelectImage(jpegOf(2048))
	require.NoError(t, err)

	assert.False(t, s.Complete(old, leafSpot, nil))
	assert.Equal(t, KindPreviewing, s.State().Kind())

	c.replies <- reply{d: leafSpot}
	s.Wait()
	assert.Equal(t, KindPreviewing, s.State().Kind())
}

func TestNonImageRejectedKeepsState(t *testing.T) {
	s, _, d := newTestSession(t)
	text := media.NewCandidate([]byte("hello"), "text/plain", media.SourceDrop)

	v, err := s.SelectImage(text)
	require.NoError(t, err)
	assert.Equal(t, media.ReasonUnsupportedType, v.Reason)
	assert.Equal(t, KindIdle, s.State().Kind())

	_, err = s.SelectImage(jpegOf(100))
	require.NoError(t, err)
	before := s.State()

	v, err = s.SelectImage(text)
	require.NoError(t, err)
	assert.False(t, v.Accepted)
	assert.Equal(t, before, s.State())
	assert.Equal(t, 1, d.Live())
}

func TestTooLargeRejected(t *testing.T) {
	s, _, d := newTestSession(t)
	v, err := s.SelectImage(jpegOf(int(media.DefaultMaxBytes) + 1))
	require.NoError(t, err)
	assert.Equal(t, media.ReasonTooLarge, v.Reason)
	assert.Equal(t, KindIdle, s.State().Kind())
	assert.Zero(t, d.Live())
}

func TestSelectWhileAnalyzingIsBusy(t *testing.T) {
	s, c, d := newTestSession(t)
	_, err := s.SelectImage(jpegOf(100))
	require.NoError(t, err)
	s.StartAnalysis(context.Background())
	<-c.calls

	v, err := s.SelectImage(jpegOf(200))
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, v.Accepted)
	assert.Equal(t, KindAnalyzing, s.State().Kind())
	assert.Equal(t, 1, d.Live())

	c.replies <- reply{d: leafSpot}
	s.Wait()
}

func TestReplacingImageReleasesPrevious(t *testing.T) {
	s, _, d := newTestSession(t)
	_, err := s.SelectImage(jpegOf(100))
	require.NoError(t, err)
	first := PreviewOf(s.State())

	_, err = s.SelectImage(jpegOf(200))
	require.NoError(t, err)

	assert.True(t, first.Released())
	assert.Equal(t, 1, d.Live())
	assert.EqualValues(t, 1, d.ReleasedCount())
}

func TestResetFromEveryStateReleasesOnce(t *testing.T) {
	setups := map[string]func(t *testing.T, s *Session, c *blockingClient){
		"previewing": func(t *testing.T, s *Session, _ *blockingClient) {
			_, err := s.SelectImage(jpegOf(100))
			require.NoError(t, err)
		},
		"analyzing": func(t *testing.T, s *Session, c *blockingClient) {
			_, err := s.SelectImage(jpegOf(100))
			require.NoError(t, err)
			s.StartAnalysis(context.Background())
			<-c.calls
		},
		"result": func(t *testing.T, s *Session, c *blockingClient) {
			_, err := s.SelectImage(jpegOf(100))
			require.NoError(t, err)
			s.StartAnalysis(context.Background())
			<-c.calls
			c.replies <- reply{d: leafSpot}
			s.Wait()
			require.Equal(t, KindResult, s.State().Kind())
		},
		"failed": func(t *testing.T, s *Session, c *blockingClient) {
			_, err := s.SelectImage(jpegOf(100))
			require.NoError(t, err)
			s.StartAnalysis(context.Background())
			<-c.calls
			c.replies <- reply{err: &analyzer.Error{Kind: analyzer.KindServiceUnavailable, Err: errors.New("down")}}
			s.Wait()
			require.Equal(t, KindFailed, s.State().Kind())
		},
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s, c, d := newTestSession(t)
			setup(t, s, c)
			h := PreviewOf(s.State())
			require.NotNil(t, h)

			s.Reset()
			assert.Equal(t, KindIdle, s.State().Kind())
			assert.True(t, h.Released())
			assert.Zero(t, d.Live())

			s.Reset()
			assert.EqualValues(t, 1, d.ReleasedCount())

			if name == "analyzing" {
				c.replies <- reply{d: leafSpot}
				s.Wait()
				assert.Equal(t, KindIdle, s.State().Kind())
			}
		})
	}
}

func TestFailureKindsAndRetry(t *testing.T) {
	kinds := []analyzer.ErrorKind{analyzer.KindTimeout, analyzer.KindServiceUnavailable, analyzer.KindInvalidResponse}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			s, c, _ := newTestSession(t)
			_, err := s.SelectImage(jpegOf(100))
			require.NoError(t, err)
			first, _ := s.StartAnalysis(context.Background())
			<-c.calls
			c.replies <- reply{err: &analyzer.Error{Kind: kind, Err: errors.New("boom")}}
			s.Wait()

			f, ok := s.State().(Failed)
			require.True(t, ok)
			assert.Equal(t, kind, f.Reason)

			require.True(t, s.Retry())
			p, ok := s.State().(Previewing)
			require.True(t, ok)
			assert.Same(t, f.Preview, p.Preview)

			second, ok := s.StartAnalysis(context.Background())
			require.True(t, ok)
			assert.NotEqual(t, first, second)
			<-c.calls
			c.replies <- reply{d: leafSpot}
			s.Wait()
			assert.Equal(t, KindResult, s.State().Kind())
		})
	}
}

func TestObserverSeesEveryState(t *testing.T) {
	c := newBlockingClient()
	var seen []Kind
	s := NewSession(c, media.NewValidator(0), nil, WithObserver(func(st State) { seen = append(seen, st.Kind()) }))

	_, err := s.SelectImage(jpegOf(100))
	require.NoError(t, err)
	s.StartAnalysis(context.Background())
	<-c.calls
	c.replies <- reply{d: leafSpot}
	s.Wait()
	s.Reset()

	assert.Equal(t, []Kind{KindPreviewing, KindAnalyzing, KindResult, KindIdle}, seen)
}
