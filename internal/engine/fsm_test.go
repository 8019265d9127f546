package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/awa-io/awa/pkg/schema"
)

func TestIsValidTokenTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  schema.TokenStatus
		to    schema.TokenStatus
		valid bool
	}{
		{"active to waiting", schema.TokenActive, schema.TokenWaiting, true},
		{"active to completed", schema.TokenActive, schema.TokenCompleted, true},
		{"active to failed", schema.TokenActive, schema.TokenFailed, true},
		{"active to cancelled", schema.TokenActive, schema.TokenCancelled, true},
		{"waiting to active", schema.TokenWaiting, schema.TokenActive, true},
		{"waiting to cancelled", schema.TokenWaiting, schema.TokenCancelled, true},
		{"active to active", schema.TokenActive, schema.TokenActive, false},
		{"waiting to waiting", schema.TokenWaiting, schema.TokenWaiting, false},
		{"completed is terminal", schema.TokenCompleted, schema.TokenActive, false},
		{"failed is terminal", schema.TokenFailed, schema.TokenActive, false},
		{"cancelled is terminal", schema.TokenCancelled, schema.TokenWaiting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidTokenTransition(tt.from, tt.to))
		})
	}
}

func TestDeriveEngineStatus(t *testing.T) {
	mk := func(statuses ...schema.TokenStatus) []*Token {
		tokens := make([]*Token, 0, len(statuses))
		for i, s := range statuses {
			tok := NewToken("wf", fmt.Sprintf("n%d", i), nil)
			if s != schema.TokenActive {
				tok.UpdateStatus(s, nil)
			}
			tokens = append(tokens, tok)
		}
		return tokens
	}

	tests := []struct {
		name   string
		tokens []*Token
		want   schema.EngineStatus
	}{
		{"any active token wins", mk(schema.TokenCompleted, schema.TokenActive, schema.TokenWaiting), schema.EngineRunning},
		{"waiting without active", mk(schema.TokenCompleted, schema.TokenWaiting), schema.EngineWaitingHuman},
		{"all terminal", mk(schema.TokenCompleted, schema.TokenCancelled), schema.EngineCompleted},
		{"failed tokens do not fail the run", mk(schema.TokenFailed, schema.TokenCompleted), schema.EngineCompleted},
		{"no tokens", nil, schema.EngineCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveEngineStatus(tt.tokens))
		})
	}
}
