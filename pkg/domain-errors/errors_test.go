package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("wrapped error keeps code and cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "failed to load submission")

		assert.True(t, HasCode(err, CodeInternal))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load submission: connection reset", err.Error())
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeLocked, "submission is locked"))

		require.True(t, Is(err, CodeLocked))
		assert.Equal(t, CodeLocked, CodeOf(err))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		err := errors.New("boom")

		assert.False(t, HasCode(err, CodeNotFound))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}
