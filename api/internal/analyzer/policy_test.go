package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDiagnosisPolicy(t *testing.T) {
	cases := []struct {
		name    string
		in      Diagnosis
		want    Diagnosis
		invalid bool
	}{
		{
			name: "percent kept",
			in:   Diagnosis{Disease: " Leaf Spot ", Confidence: 92.54, Treatment: " spray ", Category: "Disease"},
			want: Diagnosis{Disease: "Leaf Spot", Confidence: 92.5, Treatment: "spray", Category: CategoryDisease},
		},
		{
			name: "small percent not rescaled",
			in:   Diagnosis{Disease: "Rust", Confidence: 0.54, Category: "deficiency"},
			want: Diagnosis{Disease: "Rust", Confidence: 0.5, Category: CategoryDeficiency},
		},
		{
			name: "unknown category dropped",
			in:   Diagnosis{Disease: "Healthy", Confidence: 0, Category: "fine"},
			want: Diagnosis{Disease: "Healthy", Confidence: 0},
		},
		{name: "empty disease", in: Diagnosis{Disease: "  ", Confidence: 50}, invalid: true},
		{name: "negative", in: Diagnosis{Disease: "x", Confidence: -1}, invalid: true},
		{name: "above 100", in: Diagnosis{Disease: "x", Confidence: 140}, invalid: true},
		{name: "nan", in: Diagnosis{Disease: "x", Confidence: math.NaN()}, invalid: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.in
			err := ApplyDiagnosisPolicy(&d)
			if tc.invalid {
				require.ErrorIs(t, err, ErrInvalidResponse)
				assert.Equal(t, KindInvalidResponse, Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, d)
		})
	}
}

func TestApplyDiagnosisPolicyIdempotent(t *testing.T) {
	for _, c := range []float64{0, 0.5, 1, 42.2, 100} {
		d := Diagnosis{Disease: "Rust", Confidence: c}
		require.NoError(t, ApplyDiagnosisPolicy(&d))
		once := d
		require.NoError(t, ApplyDiagnosisPolicy(&d))
		assert.Equal(t, once, d, "confidence %v", c)
		assert.Equal(t, c, d.Confidence)
	}
}
