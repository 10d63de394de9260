package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "typed", err: New(KindConflict, "publish", ""), want: KindConflict},
		{name: "wrapped typed", err: fmt.Errorf("outer: %w", New(KindInsufficientStock, "reserve", "")), want: KindInsufficientStock},
		{name: "untyped", err: errors.New("connection reset"), want: KindStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "No caregiver is available", Message(New(KindNoCaregiverAvailable, "reserve", "")))
	assert.Equal(t, "Please login as a patient", Message(New(KindWrongRole, "reserve", "Please login as a patient")))
	assert.Equal(t, "Please try again", Message(errors.New("boom")))
	assert.Equal(t, "", Message(nil))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("serialization failure")
	err := Wrap(KindStoreUnavailable, "reserve", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindStoreUnavailable))
	assert.Contains(t, err.Error(), "serialization failure")
}
