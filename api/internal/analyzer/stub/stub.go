// Package stub is a no-network engine returning one of a few canned
// diagnoses. The pick is derived from the image hash so a given photo always
// gets the same answer.
package stub

import (
	"context"
	"crypto/sha256"
	"time"

	"leaf-doctor/api/internal/analyzer"
)

// Results are the canned diagnoses, in pick order.
var Results = []analyzer.Diagnosis{
	{
		Disease:    "Leaf Spot Disease",
		Category:   analyzer.CategoryDisease,
		Confidence: 92.5,
		Treatment:  "Apply copper-based fungicide. Remove affected leaves and improve air circulation. Avoid overhead watering.",
	},
	{
		Disease:    "Nitrogen Deficiency",
		Category:   analyzer.CategoryDeficiency,
		Confidence: 88.3,
		Treatment:  "Apply nitrogen-rich fertilizer (urea or ammonium nitrate). Consider organic options like compost or manure.",
	},
	{
		Disease:    "Healthy Plant",
		Category:   analyzer.CategoryHealthy,
		Confidence: 95.7,
		Treatment:  "Your plant appears healthy! Continue current care routine and monitor regularly.",
	},
}

type Engine struct {
	Latency time.Duration
}

func New(latency time.Duration) *Engine { return &Engine{Latency: latency} }

func (e *Engine) Name() string     { return "stub" }
func (e *Engine) GetModel() string { return "canned-v1" }

func (e *Engine) Analyze(ctx context.Context, image []byte, _ string) (analyzer.Diagnosis, error) {
	if e.Latency > 0 {
		t := time.NewTimer(e.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return analyzer.Diagnosis{}, ctx.Err()
		case <-t.C:
		}
	}
	return Pick(image), nil
}

// Pick returns the canned result for image.
func Pick(image []byte) analyzer.Diagnosis {
	sum := sha256.Sum256(image)
	return Results[int(sum[0])%len(Results)]
}
