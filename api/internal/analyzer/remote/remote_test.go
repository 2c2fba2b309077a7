package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leaf-doctor/api/internal/analyzer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRoundTrip(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/diagnose", r.URL.Path)
		assert.Equal(t, "20s", r.Header.Get("X-Request-Timeout"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemini", req.Engine)
		assert.Equal(t, "image/png", req.MIME)
		raw, err := base64.StdEncoding.DecodeString(req.ImageB64)
		require.NoError(t, err)
		assert.Equal(t, img, raw)

		_ = json.NewEncoder(w).Encode(analyzer.Diagnosis{Disease: "Powdery Mildew", Confidence: 81, Treatment: "Sulfur spray."})
	}))
	defer srv.Close()

	e := New(srv.URL+"/", "gemini", 20*time.Second).WithHTTPClient(srv.Client())
	d, err := e.Analyze(context.Background(), img, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Powdery Mildew", d.Disease)
	assert.Equal(t, "gemini", e.GetModel())
}

func TestAnalyzeMapsProxyErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   analyzer.ErrorKind
	}{
		{http.StatusGatewayTimeout, `{"error":"deadline","kind":"timeout"}`, analyzer.KindTimeout},
		{http.StatusBadGateway, `{"error":"bad json","kind":"invalid_response"}`, analyzer.KindInvalidResponse},
		{http.StatusServiceUnavailable, `{"error":"down","kind":"service_unavailable"}`, analyzer.KindServiceUnavailable},
		{http.StatusGatewayTimeout, `<html>nginx</html>`, analyzer.KindTimeout},
		{http.StatusInternalServerError, `oops`, analyzer.KindServiceUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := New(srv.URL, "", 0).Analyze(context.Background(), []byte("x"), "image/jpeg")
		srv.Close()
		require.Error(t, err)
		assert.Equal(t, tc.want, analyzer.Classify(err), tc.body)
	}
}

func TestAnalyzeUnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, "", 0).Analyze(context.Background(), []byte("x"), "image/jpeg")
	require.Error(t, err)
	assert.Equal(t, analyzer.KindServiceUnavailable, analyzer.Classify(err))
}
