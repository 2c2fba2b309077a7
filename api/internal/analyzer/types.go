// Package analyzer is the boundary to the inference service: it picks an
// engine per chat, bounds each call with a timeout, and reports failures as
// Timeout, ServiceUnavailable or InvalidResponse.
package analyzer

import "time"

// Category of a finding.
type Category string

const (
	CategoryDisease    Category = "disease"
	CategoryDeficiency Category = "nutrient_deficiency"
	CategoryHealthy    Category = "healthy"
)

// Diagnosis is the structured result of one analysis.
type Diagnosis struct {
	Disease    string   `json:"disease"`
	Confidence float64  `json:"confidence"` // 0..100
	Treatment  string   `json:"treatment"`
	Category   Category `json:"category,omitempty"`

	Engine     string    `json:"engine,omitempty"`
	Model      string    `json:"model,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at,omitempty"`
}
