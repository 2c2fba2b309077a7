package media

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegOfSize(n int) []byte {
	b := bytes.Repeat([]byte{0x00}, n)
	if n >= 2 {
		b[0], b[1] = 0xFF, 0xD8
	}
	return b
}

func TestValidateRejectsNonImageTypes(t *testing.T) {
	v := NewValidator(0)
	for _, mime := range []string{"application/pdf", "text/plain", "video/mp4", "imagex/png", "image"} {
		t.Run(mime, func(t *testing.T) {
			got := v.Validate(NewCandidate([]byte("hello"), mime, SourcePicker))
			assert.False(t, got.Accepted)
			assert.Equal(t, ReasonUnsupportedType, got.Reason)
		})
	}
}

func TestValidateTypeCheckPrecedesSize(t *testing.T) {
	v := NewValidator(4)
	got := v.Validate(NewCandidate([]byte("far too large"), "text/plain", SourceDrop))
	assert.Equal(t, ReasonUnsupportedType, got.Reason)
}

func TestValidateSizeBoundary(t *testing.T) {
	v := NewValidator(0)

	atLimit := v.Validate(NewCandidate(jpegOfSize(int(DefaultMaxBytes)), "image/jpeg", SourcePicker))
	assert.True(t, atLimit.Accepted)
	assert.Equal(t, ReasonOK, atLimit.Reason)

	over := v.Validate(NewCandidate(jpegOfSize(int(DefaultMaxBytes)+1), "image/jpeg", SourcePicker))
	assert.False(t, over.Accepted)
	assert.Equal(t, ReasonTooLarge, over.Reason)
}

func TestValidateUsesDeclaredSize(t *testing.T) {
	v := NewValidator(1024)
	c := NewCandidate(jpegOfSize(10), "image/png", SourceCamera).WithSize(2048)
	assert.Equal(t, ReasonTooLarge, v.Validate(c).Reason)
}

func TestValidateIgnoresParametersAndCase(t *testing.T) {
	v := NewValidator(0)
	got := v.Validate(NewCandidate(jpegOfSize(16), "IMAGE/WebP; q=1", SourcePicker))
	assert.True(t, got.Accepted)
}

func TestCandidateSniffsUndeclaredType(t *testing.T) {
	c := NewCandidate(jpegOfSize(32), "", SourceCamera)
	assert.Equal(t, "image/jpeg", c.MIME())
	assert.Equal(t, int64(32), c.Size())
	assert.Equal(t, SourceCamera, c.Source())
}

func TestCandidateIsImmutable(t *testing.T) {
	src := jpegOfSize(8)
	c := NewCandidate(src, "image/jpeg", SourcePicker)
	src[2] = 0x42
	out := c.Bytes()
	out[3] = 0x43
	assert.Equal(t, byte(0x00), c.Bytes()[2])
	assert.Equal(t, byte(0x00), c.Bytes()[3])
}

func TestVerdictErr(t *testing.T) {
	assert.NoError(t, Verdict{Accepted: true}.Err())

	err := Verdict{Reason: ReasonTooLarge}.Err()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ReasonTooLarge, ve.Reason)
	assert.Equal(t, "validate image: file too large", err.Error())
}
