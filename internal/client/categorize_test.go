package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory,
// including sentinel errors, wrapped errors, and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{Offset: 1}
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryCanceled},
		{"location not found", ErrLocationNotFound, ErrorCategoryLocationNotFound},
		{"upstream 401", fmt.Errorf("%w: %w", ErrUpstreamFailure, ErrInvalidAPIKey), ErrorCategoryInvalidAPIKey},
		{"upstream 429", fmt.Errorf("%w: %w", ErrUpstreamFailure, ErrRateLimited), ErrorCategoryRateLimited},
		{"upstream failure", fmt.Errorf("%w: HTTP 500", ErrUpstreamFailure), ErrorCategoryUpstream},
		{"timeout in message", fmt.Errorf("request timeout: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"network in message", errors.New("connection refused"), ErrorCategoryNetwork},
		{"json syntax", fmt.Errorf("parse response: %w", syntaxErr), ErrorCategoryParsing},
		{"parse in message", errors.New("parse response: missing main"), ErrorCategoryParsing},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
