package main

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	assert.Zero(t, retryDelayFromError(nil))
	assert.Equal(t, 7*time.Second, retryDelayFromError(&tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}))
	assert.Equal(t, 5*time.Second, retryDelayFromError(errors.New("Too Many Requests: retry after 5")))
	assert.Equal(t, 3*time.Second, retryDelayFromError(errors.New("too many requests")))
	assert.Equal(t, 2*time.Second, retryDelayFromError(timeoutErr{}))
	assert.Equal(t, time.Second, retryDelayFromError(errors.New("boom")))
}

func TestShortHashStable(t *testing.T) {
	a := shortHash("123:abc")
	assert.Len(t, a, 16)
	assert.Equal(t, a, shortHash("123:abc"))
	assert.NotEqual(t, a, shortHash("123:abd"))
}

type fakeSource struct {
	calls   int
	offsets []int
	cancel  context.CancelFunc
}

func (f *fakeSource) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.calls++
	f.offsets = append(f.offsets, cfg.Offset)
	switch f.calls {
	case 1:
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	default:
		f.cancel()
		return nil, nil
	}
}

func TestRunPollingAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{cancel: cancel}
	var got []int
	runPolling(ctx, zap.NewNop(), src, func(u tgbotapi.Update) { got = append(got, u.UpdateID) })

	assert.Equal(t, []int{10, 11}, got)
	assert.Equal(t, []int{0, 12}, src.offsets)
}
