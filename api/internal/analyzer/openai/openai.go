package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/util"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Engine struct {
	APIKey  string
	Model   string
	baseURL string
	httpc   *http.Client
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient overrides the internal HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.httpc = c
		}
	}
}

// WithBaseURL points the engine at a compatible endpoint.
func WithBaseURL(u string) Option {
	return func(e *Engine) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			e.baseURL = u
		}
	}
}

func New(key, model string, opts ...Option) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	e := &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		baseURL: defaultBaseURL,
		// the caller's context bounds each request
		httpc: &http.Client{Transport: tr},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *Engine) Analyze(ctx context.Context, image []byte, mime string) (analyzer.Diagnosis, error) {
	if e.APIKey == "" {
		return analyzer.Diagnosis{}, errors.New("OPENAI_API_KEY not set")
	}
	mime = util.PickMIME(mime, "", image)
	if !isOpenAIImageMIME(mime) {
		return analyzer.Diagnosis{}, fmt.Errorf("gpt analyze: unsupported mime %q", mime)
	}

	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": analyzer.SystemPrompt},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": analyzer.UserPrompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(image)), "detail": "high"}},
				},
			},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return analyzer.Diagnosis{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return analyzer.Diagnosis{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("gpt analyze: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("gpt analyze: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return analyzer.Diagnosis{}, &analyzer.StatusError{Op: "gpt", StatusCode: resp.StatusCode, Body: util.Truncate(string(raw), 512)}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("gpt analyze: %w: %v", analyzer.ErrInvalidResponse, err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return analyzer.Diagnosis{}, fmt.Errorf("gpt analyze: %w: no choices", analyzer.ErrInvalidResponse)
	}
	var out analyzer.Diagnosis
	if err := util.DecodeLLMJSON(cr.Choices[0].Message.Content, &out); err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("gpt analyze: %w: %v", analyzer.ErrInvalidResponse, err)
	}
	return out, nil
}

func isOpenAIImageMIME(m string) bool {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	}
	return false
}
