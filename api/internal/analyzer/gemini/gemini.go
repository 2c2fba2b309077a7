package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leaf-doctor/api/internal/analyzer"
	"leaf-doctor/api/internal/util"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Engine struct {
	APIKey string
	Model  string
	opts   []option.ClientOption
}

func New(apiKey, model string, opts ...option.ClientOption) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		opts:   opts,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Analyze sends the leaf photo with the shared system prompt and decodes the
// JSON reply.
func (e *Engine) Analyze(ctx context.Context, image []byte, mime string) (analyzer.Diagnosis, error) {
	if e.APIKey == "" {
		return analyzer.Diagnosis{}, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)...)
	if err != nil {
		return analyzer.Diagnosis{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return analyzer.Diagnosis{}, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(analyzer.SystemPrompt)},
	}

	parts := []genai.Part{
		genai.Text(analyzer.UserPrompt),
		genai.Blob{MIMEType: util.PickMIME(mime, "", image), Data: image},
	}
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("gemini analyze: %w", err)
	}
	txt := FirstText(resp)
	if txt == "" {
		return analyzer.Diagnosis{}, fmt.Errorf("gemini analyze: %w: empty response", analyzer.ErrInvalidResponse)
	}
	var out analyzer.Diagnosis
	if err := util.DecodeLLMJSON(txt, &out); err != nil {
		return analyzer.Diagnosis{}, fmt.Errorf("gemini analyze: %w: %v", analyzer.ErrInvalidResponse, err)
	}
	return out, nil
}

// FirstText returns the first text part of the first candidate that has one.
func FirstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return strings.TrimSpace(string(t))
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
