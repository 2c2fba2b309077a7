package diagnosis

import (
	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/media"
	"leaf-doctor/api/internal/preview"
)

// Transitions are pure: each returns the next state and, where the old
// preview leaves the session, the handle to release.

func selectImage(cur State, c media.Candidate, h *preview.Handle) (next State, release *preview.Handle, err error) {
	if cur.Kind() == KindAnalyzing {
		return cur, nil, ErrBusy
	}
	return Previewing{Candidate: c, Preview: h}, PreviewOf(cur), nil
}

func startAnalysis(cur State, tok Token) (State, bool) {
	p, ok := cur.(Previewing)
	if !ok {
		return cur, false
	}
	return Analyzing{Candidate: p.Candidate, Preview: p.Preview, Token: tok}, true
}

func complete(cur State, tok Token, d analyzer.Diagnosis, err error) (State, bool) {
	a, ok := cur.(Analyzing)
	if !ok || a.Token != tok {
		return cur, false
	}
	if err != nil {
		return Failed{Candidate: a.Candidate, Preview: a.Preview, Reason: analyzer.Classify(err), Err: err}, true
	}
	return Result{Candidate: a.Candidate, Preview: a.Preview, Diagnosis: d}, true
}

func reset(cur State) (State, *preview.Handle) {
	return Idle{}, PreviewOf(cur)
}

func retry(cur State) (State, bool) {
	f, ok := cur.(Failed)
	if !ok {
		return cur, false
	}
	return Previewing{Candidate: f.Candidate, Preview: f.Preview}, true
}
