package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Distinct(t *testing.T) {
	errs := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrInvalidExpiry,
		ErrInvalidPrivacy,
		ErrMissingScopeReference,
		ErrUnsupportedType,
		ErrMalformedContent,
		ErrSchemaViolation,
		ErrPipelineTimeout,
		ErrDuplicateRace,
	}

	for i, a := range errs {
		assert.NotEmpty(t, a.Error())
		for j, b := range errs {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageNormalise, Err: fmt.Errorf("message 3: %w", ErrSchemaViolation)}

	assert.Equal(t, "stage normalise: message 3: schema violation", err.Error())
	assert.ErrorIs(t, err, ErrSchemaViolation)

	var stageErr *StageError
	wrapped := fmt.Errorf("submit: %w", err)
	assert.True(t, errors.As(wrapped, &stageErr))
	assert.Equal(t, StageNormalise, stageErr.Stage)
}

func TestFetchError(t *testing.T) {
	cause := errors.New("service unavailable")

	withStatus := &FetchError{URL: "https://x/a.json", StatusCode: 503, Temporary: true, Err: cause}
	assert.Equal(t, "fetch https://x/a.json: status 503: service unavailable", withStatus.Error())
	assert.ErrorIs(t, withStatus, cause)

	transport := &FetchError{URL: "https://x/a.json", Err: cause}
	assert.Equal(t, "fetch https://x/a.json: service unavailable", transport.Error())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"validation", ErrMalformedContent, false},
		{"temporary fetch", &FetchError{Temporary: true, Err: errors.New("x")}, true},
		{"permanent fetch", &FetchError{StatusCode: 404, Err: errors.New("x")}, false},
		{"wrapped temporary", fmt.Errorf("outer: %w", &FetchError{Temporary: true, Err: errors.New("x")}), true},
		{"in stage error", &StageError{Stage: StageExtract, Err: &FetchError{Temporary: true, Err: errors.New("x")}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
