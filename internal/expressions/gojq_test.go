package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awa-io/awa/pkg/schema"
)

func TestGoJQEvaluate(t *testing.T) {
	eng := NewGoJQEngine()

	tests := []struct {
		name  string
		expr  string
		scope map[string]any
		want  any
	}{
		{
			name:  "field selection",
			expr:  `.order.total`,
			scope: map[string]any{"order": map[string]any{"total": 42.5}},
			want:  42.5,
		},
		{
			name:  "reshape object",
			expr:  `{amount: .total, flagged: (.total > 100)}`,
			scope: map[string]any{"total": 250.0},
			want:  map[string]any{"amount": 250.0, "flagged": true},
		},
		{
			name:  "missing field yields nil",
			expr:  `.nope`,
			scope: map[string]any{},
			want:  nil,
		},
		{
			name:  "multiple outputs collected",
			expr:  `.items[]`,
			scope: map[string]any{"items": []any{"a", "b"}},
			want:  []any{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eng.Evaluate(context.Background(), tt.expr, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGoJQParseError(t *testing.T) {
	eng := NewGoJQEngine()

	_, err := eng.Evaluate(context.Background(), `.[unclosed`, map[string]any{})
	require.Error(t, err)

	var aerr *schema.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, schema.ErrCodeValidation, aerr.Code)
}

func TestGoJQEnvBlocked(t *testing.T) {
	eng := NewGoJQEngine()

	got, err := eng.Evaluate(context.Background(), `env.HOME`, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, got, "environment access must be sandboxed away")
}
