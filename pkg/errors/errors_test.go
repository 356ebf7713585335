package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewNetwork("fetcher", "GET https://example.com failed", stderrors.New("connection refused"))
	assert.Equal(t, "[network] fetcher: GET https://example.com failed - connection refused", err.Error())

	err = NewConfiguration("TELEGRAM_BOT_TOKEN is required", nil)
	assert.Equal(t, "[configuration] config: TELEGRAM_BOT_TOKEN is required", err.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewLedger("file", "write ledger", cause)
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewNetwork("fetcher", "timeout", nil).IsRetryable())
	assert.False(t, NewRateLimit("fetcher", "60").IsRetryable())
	assert.False(t, NewParsing("crawler", "bad html", nil).IsRetryable())
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("listing: %w", NewRateLimit("fetcher", "120"))
	assert.True(t, IsRateLimit(wrapped))
	assert.Contains(t, wrapped.Error(), "retry after 120")

	assert.False(t, IsRateLimit(stderrors.New("plain")))
	assert.True(t, IsType(NewNotifier("telegram", "rejected", nil), ErrorTypeNotifier))
}
