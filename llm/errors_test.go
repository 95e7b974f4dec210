package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	transient := NewTransientError(base)
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))
	assert.False(t, IsRateLimited(transient))

	fatal := NewFatalError(base)
	assert.True(t, IsFatal(fatal))
	assert.False(t, IsTransient(fatal))
}

func TestRateLimitIsAlsoTransient(t *testing.T) {
	err := NewRateLimitError(errors.New("429"))

	assert.True(t, IsRateLimited(err))
	assert.True(t, IsTransient(err), "rate limits retry like any transient error")
	assert.False(t, IsFatal(err))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("call failed: %w", NewRateLimitError(errors.New("quota")))

	assert.True(t, IsRateLimited(err))
	assert.True(t, IsTransient(err))
}

func TestClassifyHTTPError(t *testing.T) {
	assert.True(t, IsRateLimited(classifyHTTPError(429, nil)))
	assert.True(t, IsTransient(classifyHTTPError(503, nil)))
	assert.True(t, IsTransient(classifyHTTPError(500, nil)))
	assert.True(t, IsFatal(classifyHTTPError(401, nil)))
	assert.True(t, IsFatal(classifyHTTPError(400, nil)))
}

func TestClassifyHTTPErrorTruncatesBody(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}

	err := classifyHTTPError(500, body)
	assert.Less(t, len(err.Error()), 300)
}
