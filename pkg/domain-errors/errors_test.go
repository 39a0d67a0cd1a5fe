package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	base := errors.New("connection reset")

	t.Run("wrap keeps cause reachable", func(t *testing.T) {
		err := Wrap(base, CodeInternal, "load flow")
		assert.ErrorIs(t, err, base)
		assert.True(t, Is(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("wrap nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "noop"))
	})

	t.Run("is inspects outermost code only", func(t *testing.T) {
		inner := New(CodeFlowNotFound, "flow not found")
		outer := Wrap(inner, CodeInternal, "accept")
		assert.False(t, Is(outer, CodeFlowNotFound))
		assert.True(t, HasCode(outer, CodeFlowNotFound))
	})

	t.Run("fmt wrapping preserves code", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeInvalidScope, "scope not allowed"))
		assert.True(t, Is(err, CodeInvalidScope))
	})

	t.Run("uncoded errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(base))
	})
}
