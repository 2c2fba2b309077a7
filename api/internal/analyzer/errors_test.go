package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{context.DeadlineExceeded, KindTimeout},
		{fmt.Errorf("post: %w", timeoutErr{}), KindTimeout},
		{fmt.Errorf("decode: %w", ErrInvalidResponse), KindInvalidResponse},
		{&StatusError{Op: "gpt", StatusCode: http.StatusGatewayTimeout}, KindTimeout},
		{&StatusError{Op: "gpt", StatusCode: http.StatusTooManyRequests}, KindServiceUnavailable},
		{&Error{Kind: KindInvalidResponse, Err: errors.New("x")}, KindInvalidResponse},
		{errors.New("connection refused"), KindServiceUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), tc.err.Error())
	}
	assert.Zero(t, Classify(nil))
}

func TestErrorKindRoundTrip(t *testing.T) {
	for _, k := range []ErrorKind{KindTimeout, KindServiceUnavailable, KindInvalidResponse} {
		got, ok := ParseErrorKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseErrorKind("boom")
	assert.False(t, ok)
}
