package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amsf/pkg/domain"
)

func TestValue(t *testing.T) {
	t.Run("zero value is an empty scalar", func(t *testing.T) {
		var v Value
		assert.Equal(t, KindScalar, v.Kind())
		assert.True(t, v.IsEmpty())
		assert.True(t, v.Equal(Scalar("")))
	})

	t.Run("dimensional copies its input", func(t *testing.T) {
		m := map[string]string{"FR": "2"}
		v := Dimensional(m)
		m["FR"] = "99"
		assert.Equal(t, "2", v.Dims()["FR"])
	})

	t.Run("equality is kind aware", func(t *testing.T) {
		assert.False(t, Scalar("").Equal(Dimensional(nil)))
		assert.True(t, Dimensional(map[string]string{"FR": "1", "MC": "2"}).Equal(Dimensional(map[string]string{"MC": "2", "FR": "1"})))
		assert.False(t, Scalar("1").Equal(Scalar("1.00")))
	})

	t.Run("totals", func(t *testing.T) {
		total, ok := Dimensional(map[string]string{"FR": "2", "MC": "3.5"}).Total()
		require.True(t, ok)
		assert.True(t, decimal.RequireFromString("5.5").Equal(total))

		_, ok = Scalar("Oui").Total()
		assert.False(t, ok)
	})

	t.Run("string is deterministic", func(t *testing.T) {
		v := Dimensional(map[string]string{"MC": "1", "FR": "2"})
		assert.Equal(t, "FR=2, MC=1", v.String())
		assert.Equal(t, []string{"FR", "MC"}, v.Keys())
	})
}

func TestValue_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Value
	}{
		{"string", `"42"`, Scalar("42")},
		{"object", `{"FR":"3"}`, Dimensional(map[string]string{"FR": "3"})},
		{"number", `12`, Scalar("12")},
		{"null", `null`, Scalar("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Value
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	b, err := json.Marshal(Dimensional(map[string]string{"MC": "1"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"MC":"1"}`, string(b))
}

func TestSubmissionValue_Override(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	user := id.UserID(uuid.New())
	v := SubmissionValue{ElementName: "a1101", Value: Scalar("3"), Source: SourceCalculated, ConfirmedAt: &now}
	require.True(t, v.Recomputable())

	v.ApplyOverride(Scalar("4"), user, now)
	assert.False(t, v.Recomputable())
	assert.Equal(t, "4", v.Value.Text())
	require.NotNil(t, v.PreviousValue)
	assert.Equal(t, "3", v.PreviousValue.Text())
	assert.Nil(t, v.ConfirmedAt)

	v.ApplyOverride(Scalar("5"), user, now)
	assert.Equal(t, "3", v.PreviousValue.Text())

	v.ApplyConfirm(user, now)
	assert.NotNil(t, v.ConfirmedAt)
	v.ApplyReview("  checked against ledger ", user, now)
	assert.Equal(t, "checked against ledger", v.ReviewNote)

	manual := SubmissionValue{Source: SourceManual}
	assert.False(t, manual.Recomputable())
}

func TestMerge(t *testing.T) {
	values := []SubmissionValue{
		{ElementName: "a1101", Value: Scalar("42"), Source: SourceCalculated},
		{ElementName: "a1110", Value: Dimensional(map[string]string{"FR": "1"}), Source: SourceCalculated},
		{ElementName: "ac1601", Value: Scalar("Oui"), Source: SourceFromSettings},
	}
	answers := []Answer{
		{XbrlID: "a1101", Value: "999"},
		{XbrlID: "am1701", Value: "Aucun commentaire"},
	}

	merged := Merge(values, answers)

	v, ok := merged.Value("a1101")
	require.True(t, ok)
	assert.Equal(t, "999", v.Text())
	assert.True(t, merged["a1101"].FromAnswer)
	assert.Equal(t, SourceManual, merged["a1101"].Source)
	assert.Equal(t, SourceFromSettings, merged["ac1601"].Source)
	assert.True(t, merged["a1110"].Value.IsDimensional())
	assert.Equal(t, []string{"a1101", "a1110", "ac1601", "am1701"}, merged.Codes())
	assert.Len(t, merged.Values(), 4)
}
