package voicenote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leaf-doctor/api/internal/analyzer/gemini"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiTranscriber transcribes voice notes with a Gemini model.
type GeminiTranscriber struct {
	APIKey string
	Model  string
	opts   []option.ClientOption
}

func NewGeminiTranscriber(apiKey, model string, opts ...option.ClientOption) *GeminiTranscriber {
	return &GeminiTranscriber{APIKey: strings.TrimSpace(apiKey), Model: strings.TrimSpace(model), opts: opts}
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mime, locale string) (string, error) {
	if g.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	if len(audio) == 0 {
		return "", nil
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(g.APIKey)}, g.opts...)...)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.Model)
	m.SetTemperature(0)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(
		"You transcribe short voice notes dictated into a form field. " +
			"Return only the spoken words as plain text, without quotes or commentary. " +
			"Spell out email addresses and phone numbers in their written form. " +
			"If nothing is said, return an empty string.")}}

	if mime == "" {
		mime = "audio/ogg"
	}
	resp, err := m.GenerateContent(ctx,
		genai.Text(fmt.Sprintf("Spoken language: %s.", locale)),
		genai.Blob{MIMEType: mime, Data: audio},
	)
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w", err)
	}
	return strings.Trim(gemini.FirstText(resp), "\"' \n"), nil
}
