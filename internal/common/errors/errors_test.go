package errors

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeAssignmentContextLoadFailed, 3},
		{ErrCodeRecommendationIndexFailed, 3},
		{ErrCodeQueryExecutionFailed, 3},
		{ErrCodeExternalService, 3},
		{ErrCodeTimeout, 2},
		{ErrCodeAssignmentInputInvalid, 0},
		{ErrCodeAssignmentContextNotFound, 0},
		{ErrCodeRuleSetInvalid, 0},
		{ErrCodeInternal, 0},
		{ErrorCode("SOMETHING_ELSE"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetRetryCount(tt.code))
			assert.Equal(t, tt.expected > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("infrastructure code collapses to assignment code", func(t *testing.T) {
		stdErr := NewQueryExecutionFailedError("accounts", io.ErrUnexpectedEOF)
		bpmnErr := ConvertToBPMNError(stdErr)

		assert.Equal(t, "ASSIGNMENT_CONTEXT_LOAD_FAILED", bpmnErr.Code)
		assert.True(t, bpmnErr.Retryable)
		assert.Equal(t, 3, bpmnErr.Retries)
		assert.Equal(t, "QUERY_EXECUTION_FAILED", bpmnErr.ErrorVariables["originalErrorCode"])
	})

	t.Run("non retryable error gets no retries", func(t *testing.T) {
		stdErr := NewAssignmentInputInvalidError("accounts: is required")
		bpmnErr := ConvertToBPMNError(stdErr)

		assert.Equal(t, "ASSIGNMENT_INPUT_INVALID", bpmnErr.Code)
		assert.False(t, bpmnErr.Retryable)
		assert.Zero(t, bpmnErr.Retries)
	})

	t.Run("retryable flag off overrides code", func(t *testing.T) {
		stdErr := NewExternalServiceError("zeebe", io.EOF)
		stdErr.Retryable = false
		assert.Zero(t, ConvertToBPMNError(stdErr).Retries)
	})

	t.Run("unmapped code passes through with metadata", func(t *testing.T) {
		stdErr := NewInternalError(io.EOF).WithMetadata("runId", "run-1")
		bpmnErr := ConvertToBPMNError(stdErr)

		assert.Equal(t, "INTERNAL_ERROR", bpmnErr.Code)
		vars := bpmnErr.ToErrorVariables()
		assert.Equal(t, "run-1", vars["runId"])
		assert.Equal(t, "INTERNAL_ERROR", vars["errorCode"])
		assert.Equal(t, "Unexpected error", vars["errorMessage"])
	})
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrCodeRuleSetInvalid, "RULES"},
		{ErrCodeAssignmentContextLoadFailed, "DATABASE"},
		{ErrCodeAssignmentContextNotFound, "DATABASE"},
		{ErrCodeQueryExecutionFailed, "DATABASE"},
		{ErrCodeRecommendationIndexFailed, "SEARCH"},
		{ErrCodeElasticsearchConnectionFailed, "SEARCH"},
		{ErrCodeCacheUnavailable, "CACHE"},
		{ErrCodeAssignmentInputInvalid, "VALIDATION"},
		{ErrCodeTimeout, "INTEGRATION"},
		{ErrCodeInternal, "OTHER"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetErrorCategory(tt.code), string(tt.code))
	}
}

func TestNormalize(t *testing.T) {
	original := NewAssignmentContextNotFoundError("accounts missing: acc-9")
	wrapped := fmt.Errorf("load context: %w", original)

	assert.Same(t, original, Normalize(wrapped))

	plain := Normalize(context.DeadlineExceeded)
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, context.DeadlineExceeded.Error(), plain.Details)
}

func TestAsStandardError(t *testing.T) {
	_, ok := AsStandardError(io.EOF)
	assert.False(t, ok)

	stdErr, ok := AsStandardError(NewCacheUnavailableError(io.EOF))
	require.True(t, ok)
	assert.Equal(t, ErrCodeCacheUnavailable, stdErr.Code)
	assert.Contains(t, stdErr.Error(), "CACHE_UNAVAILABLE")
}

func TestRemainingRetries(t *testing.T) {
	tests := []struct {
		jobRetries int32
		max        int
		expected   int32
	}{
		{3, 3, 2},
		{5, 3, 3},
		{1, 3, 0},
		{0, 3, 0},
		{2, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RemainingRetries(tt.jobRetries, tt.max), "retries=%d max=%d", tt.jobRetries, tt.max)
	}
}

func TestRetriesAfterFailure(t *testing.T) {
	retryable := ConvertToBPMNError(NewAssignmentContextLoadFailedError("postgres", io.EOF))
	timeout := ConvertToBPMNError(NewTimeoutError("postgres", context.DeadlineExceeded))
	business := ConvertToBPMNError(NewRuleSetInvalidError("rule-1", io.EOF))

	tests := []struct {
		name       string
		bpmnErr    *BPMNError
		jobRetries int32
		expected   int32
	}{
		{"retryable with retries left", retryable, 3, 2},
		{"retryable capped by code", retryable, 9, 3},
		{"retryable on last attempt throws", retryable, 1, 0},
		{"retryable with no retries throws", retryable, 0, 0},
		{"timeout on last attempt throws", timeout, 1, 0},
		{"business error always throws", business, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, retriesAfterFailure(tt.bpmnErr, tt.jobRetries))
		})
	}
}
