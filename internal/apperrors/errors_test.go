package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		is   error
	}{
		{name: "invalid recurrence", err: InvalidRecurrence("parse", errors.New("bad FREQ")), kind: KindInvalidRecurrence, is: ErrInvalidRecurrence},
		{name: "storage failure", err: StorageFailure("find lesson", context.DeadlineExceeded), kind: KindStorageFailure, is: ErrStorageFailure},
		{name: "not found", err: NotFound("attach file", "occurrence %d", 7), kind: KindNotFound, is: ErrNotFound},
		{name: "wrapped", err: fmt.Errorf("materialize: %w", StorageFailure("upsert", errors.New("boom"))), kind: KindStorageFailure, is: ErrStorageFailure},
		{name: "plain", err: errors.New("plain"), kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			if tt.is != nil {
				assert.ErrorIs(t, tt.err, tt.is)
			}
		})
	}
}

func TestStorageFailureKeepsCause(t *testing.T) {
	err := StorageFailure("find lesson", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "find lesson: storage failure: context deadline exceeded", err.Error())
	assert.Same(t, err, StorageFailure("outer", err))
	assert.NoError(t, StorageFailure("noop", nil))
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	err := NotFound("lesson", "lesson %d", 1)

	assert.False(t, IsStorageFailure(err))
	assert.False(t, IsInvalidRecurrence(err))
	assert.True(t, IsNotFound(err))
}
