package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("production emits JSON", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, true).Info("populated", "submission_id", "abc")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "populated", line["msg"])
		assert.Equal(t, "abc", line["submission_id"])
	})

	t.Run("development emits text with debug", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, false).Debug("detail", "element", "a1101")
		assert.Contains(t, buf.String(), "element=a1101")
	})
}
