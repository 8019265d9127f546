package engine

import "github.com/awa-io/awa/pkg/schema"

// ValidTokenTransitions defines the transitions the engine will drive.
// Tokens themselves accept anything; the engine consults this table.
// Terminal states have no exits.
var ValidTokenTransitions = map[schema.TokenStatus][]schema.TokenStatus{
	schema.TokenActive:    {schema.TokenWaiting, schema.TokenCompleted, schema.TokenFailed, schema.TokenCancelled},
	schema.TokenWaiting:   {schema.TokenActive, schema.TokenCompleted, schema.TokenFailed, schema.TokenCancelled},
	schema.TokenCompleted: {},
	schema.TokenFailed:    {},
	schema.TokenCancelled: {},
}

func isValidTokenTransition(from, to schema.TokenStatus) bool {
	for _, allowed := range ValidTokenTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// deriveEngineStatus maps the token population to the engine state:
// running while any token is active, waiting_human when none is active but
// at least one waits, completed otherwise. Failed tokens do not fail the
// run; callers inspect per-token statuses for partial failure.
func deriveEngineStatus(tokens []*Token) schema.EngineStatus {
	waiting := false
	for _, t := range tokens {
		switch t.Status() {
		case schema.TokenActive:
			return schema.EngineRunning
		case schema.TokenWaiting:
			waiting = true
		}
	}
	if waiting {
		return schema.EngineWaitingHuman
	}
	return schema.EngineCompleted
}
