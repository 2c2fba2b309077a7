// Package remote forwards analyses to a diagnosis-proxy over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/util"
)

// Request is the body of POST /v1/diagnose.
type Request struct {
	Engine   string `json:"engine,omitempty"`
	ImageB64 string `json:"image_b64"`
	MIME     string `json:"mime,omitempty"`
}

// ErrorBody is returned by the proxy on failure.
type ErrorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type Engine struct {
	BaseURL string
	// Upstream is the engine name asked of the proxy; empty means its default.
	Upstream string
	Timeout  time.Duration
	httpc    *http.Client
}

func New(baseURL, upstream string, timeout time.Duration) *Engine {
	return &Engine{
		BaseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Upstream: upstream,
		Timeout:  timeout,
		httpc:    &http.Client{},
	}
}

// WithHTTPClient overrides the internal HTTP client.
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string { return "remote" }

func (e *Engine) GetModel() string {
	if e.Upstream == "" {
		return "proxy"
	}
	return e.Upstream
}

func (e *Engine) Analyze(ctx context.Context, image []byte, mime string) (analyzer.Diagnosis, error) {
	payload, err := json.Marshal(Request{
		Engine:   e.Upstream,
		ImageB64: base64.StdEncoding.EncodeToString(image),
		MIME:     mime,
	})
	if err != nil {
		return analyzer.Diagnosis{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/v1/diagnose", bytes.NewReader(payload))
	if err != nil {
		return analyzer.Diagnosis{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.Timeout > 0 {
		req.Header.Set("X-Request-Timeout", e.Timeout.String())
	}

	resp, err := e.httpc.Do(req)
	if err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("remote analyze: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("remote analyze: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb ErrorBody
		if json.Unmarshal(raw, &eb) == nil {
			if kind, ok := analyzer.ParseErrorKind(eb.Kind); ok {
				return analyzer.Diagnosis{}, &analyzer.Error{Kind: kind, Engine: e.GetModel(), Err: fmt.Errorf("proxy: %s", eb.Error)}
			}
		}
		return analyzer.Diagnosis{}, &analyzer.StatusError{Op: "remote", StatusCode: resp.StatusCode, Body: util.Truncate(string(raw), 512)}
	}

	var out analyzer.Diagnosis
	if err := json.Unmarshal(raw, &out); err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("remote analyze: %w: %v", analyzer.ErrInvalidResponse, err)
	}
	return out, nil
}
