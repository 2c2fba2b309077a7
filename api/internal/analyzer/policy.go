package analyzer

import (
	"fmt"
	"math"
	"strings"
)

// ApplyDiagnosisPolicy normalizes an engine reply in place and rejects
// replies the session cannot show. Confidence is a percentage and is
// never rescaled, so applying the policy twice yields the same reply.
func ApplyDiagnosisPolicy(d *Diagnosis) error {
	d.Disease = strings.TrimSpace(d.Disease)
	d.Treatment = strings.TrimSpace(d.Treatment)
	if d.Disease == "" {
		return fmt.Errorf("%w: empty disease", ErrInvalidResponse)
	}

	c := d.Confidence
	if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
		return fmt.Errorf("%w: confidence %v", ErrInvalidResponse, c)
	}
	if c > 100 {
		return fmt.Errorf("%w: confidence %v above 100", ErrInvalidResponse, c)
	}
	d.Confidence = math.Round(c*10) / 10

	switch Category(strings.ToLower(strings.TrimSpace(string(d.Category)))) {
	case CategoryDisease:
		d.Category = CategoryDisease
	case CategoryDeficiency, "deficiency":
		d.Category = CategoryDeficiency
	case CategoryHealthy:
		d.Category = CategoryHealthy
	default:
		d.Category = ""
	}
	return nil
}
