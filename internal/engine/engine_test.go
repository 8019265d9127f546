package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awa-io/awa/internal/actors"
	"github.com/awa-io/awa/internal/streaming"
	"github.com/awa-io/awa/internal/tasks"
	"github.com/awa-io/awa/pkg/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func appActivity(id string) schema.Activity {
	return schema.Activity{ID: id, Name: id, ActorType: schema.ActorApplication}
}

// chainWorkflow builds a1 -> a2 -> ... -> an of application activities.
func chainWorkflow(n int) schema.Workflow {
	wf := schema.Workflow{ID: "wf-chain", Name: "Chain", Version: "1.0.0"}
	for i := 1; i <= n; i++ {
		wf.Activities = append(wf.Activities, appActivity(fmt.Sprintf("a%d", i)))
	}
	for i := 1; i < n; i++ {
		wf.Edges = append(wf.Edges, schema.Edge{
			ID:       fmt.Sprintf("e%d", i),
			SourceID: fmt.Sprintf("a%d", i),
			TargetID: fmt.Sprintf("a%d", i+1),
		})
	}
	return wf
}

// approvalWorkflow routes on data.risk: low -> fulfil, high -> review,
// anything else -> archive via the default edge.
func approvalWorkflow() schema.Workflow {
	return schema.Workflow{
		ID: "wf-approval", Name: "Approval", Version: "1.0.0",
		Activities: []schema.Activity{
			appActivity("receive"),
			appActivity("fulfil"),
			appActivity("review"),
			appActivity("archive"),
		},
		DecisionNodes: []schema.DecisionNode{{
			ID: "route", Name: "Route by risk",
			DecisionTable: schema.DecisionTable{
				Inputs: []schema.TableColumn{{Name: "risk"}},
				Rules: []schema.DecisionRule{
					{InputEntries: []string{"low"}, OutputEdgeID: "to-fulfil"},
					{InputEntries: []string{"high"}, OutputEdgeID: "to-review"},
				},
			},
			DefaultOutputEdgeID: "to-archive",
		}},
		Edges: []schema.Edge{
			{ID: "e1", SourceID: "receive", TargetID: "route"},
			{ID: "to-fulfil", SourceID: "route", TargetID: "fulfil"},
			{ID: "to-review", SourceID: "route", TargetID: "review"},
			{ID: "to-archive", SourceID: "route", TargetID: "archive"},
		},
	}
}

func TestEngineRunsLinearChain(t *testing.T) {
	eng, err := New(chainWorkflow(3), WithLogger(testLogger()))
	require.NoError(t, err)
	assert.Equal(t, schema.EngineIdle, eng.Status())

	res, err := eng.Run(context.Background(), map[string]any{"order_id": "o-1"})
	require.NoError(t, err)

	assert.Equal(t, schema.EngineCompleted, res.Status)
	assert.Equal(t, "wf-chain", res.WorkflowID)
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.FinishedAt)
	require.Len(t, res.Tokens, 1)

	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)
	assert.Equal(t, "a3", tok.ActivityID)
	assert.Equal(t, "o-1", tok.ContextData["order_id"])
	assert.Equal(t, true, tok.ContextData[actors.KeyCompleted])
	assert.Equal(t, actors.AgentSoftware, tok.ContextData[actors.KeyActor])

	require.Len(t, tok.History, 6)
	assert.Equal(t, schema.HistoryCreated, tok.History[0].Action)
	assert.Equal(t, "a1", tok.History[0].NodeID)

	exited := tok.History[1]
	assert.Equal(t, schema.HistoryExited, exited.Action)
	require.NotNil(t, exited.Analytics)
	assert.NotEmpty(t, exited.Analytics.ProcessTime)
	assert.Equal(t, exited.Analytics.ProcessTime, exited.Analytics.CycleTime)
	assert.Equal(t, exited.Analytics.ProcessTime, exited.Analytics.LeadTime)
	require.NotNil(t, exited.Analytics.ValueAdded)
	assert.True(t, *exited.Analytics.ValueAdded)
	assert.Empty(t, exited.Analytics.WasteCategories)

	last := tok.History[5]
	assert.Equal(t, schema.HistoryStatusChange(schema.TokenCompleted), last.Action)
	assert.Equal(t, "a3", last.NodeID)
	require.NotNil(t, last.Analytics)

	for i := 1; i < len(tok.History); i++ {
		assert.True(t, tok.History[i].Timestamp.After(tok.History[i-1].Timestamp),
			"history entry %d not after entry %d", i, i-1)
	}

	assert.Equal(t, schema.EngineCompleted, eng.Status())
}

func TestEngineHistoryLengthTracksChainLength(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d activities", n), func(t *testing.T) {
			eng, err := New(chainWorkflow(n), WithLogger(testLogger()))
			require.NoError(t, err)

			res, err := eng.Run(context.Background(), nil)
			require.NoError(t, err)
			require.Len(t, res.Tokens, 1)
			assert.Len(t, res.Tokens[0].History, 2*n)
		})
	}
}

func TestEngineRunTwiceConflicts(t *testing.T) {
	eng, err := New(chainWorkflow(1), WithLogger(testLogger()))
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), nil)
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))
}

func TestEngineContinueBeforeRunConflicts(t *testing.T) {
	eng, err := New(chainWorkflow(1), WithLogger(testLogger()))
	require.NoError(t, err)

	_, err = eng.Continue(context.Background())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))
}

func TestEngineRejectsInvalidWorkflow(t *testing.T) {
	tests := []struct {
		name     string
		workflow schema.Workflow
	}{
		{"no activities", schema.Workflow{ID: "wf-empty", Name: "Empty", Version: "1.0.0"}},
		{"edge to unknown node", func() schema.Workflow {
			wf := chainWorkflow(2)
			wf.Edges = append(wf.Edges, schema.Edge{ID: "e-bad", SourceID: "a2", TargetID: "ghost"})
			return wf
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.workflow, WithLogger(testLogger()))
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeConfiguration, schema.CodeOf(err))
		})
	}
}

func TestEngineDecisionRouting(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"first rule wins", map[string]any{"risk": "low"}, "fulfil"},
		{"second rule", map[string]any{"risk": "high"}, "review"},
		{"default edge", map[string]any{"risk": "unknown"}, "archive"},
		{"missing input takes default", map[string]any{}, "archive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := New(approvalWorkflow(), WithLogger(testLogger()))
			require.NoError(t, err)

			res, err := eng.Run(context.Background(), tt.data)
			require.NoError(t, err)

			assert.Equal(t, schema.EngineCompleted, res.Status)
			require.Len(t, res.Tokens, 1)
			tok := res.Tokens[0]
			assert.Equal(t, schema.TokenCompleted, tok.Status)
			assert.Equal(t, tt.want, tok.ActivityID)

			// Decision moves carry no analytics.
			for _, entry := range tok.History {
				if entry.Action == schema.HistoryExited && entry.NodeID == "route" {
					assert.Nil(t, entry.Analytics)
				}
			}
		})
	}
}

func TestEngineDecisionDeadEndFailsToken(t *testing.T) {
	wf := approvalWorkflow()
	wf.DecisionNodes[0].DefaultOutputEdgeID = ""

	eng, err := New(wf, WithLogger(testLogger()))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), map[string]any{"risk": "unknown"})
	require.NoError(t, err)

	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenFailed, tok.Status)
	assert.Equal(t, "route", tok.ActivityID)

	last := tok.History[len(tok.History)-1]
	assert.Equal(t, schema.HistoryStatusChange(schema.TokenFailed), last.Action)
	assert.Nil(t, last.Analytics)
}

func TestEngineHumanTaskSuspendsAndResumes(t *testing.T) {
	wf := schema.Workflow{
		ID: "wf-onboard", Name: "Onboarding", Version: "1.0.0",
		Activities: []schema.Activity{
			appActivity("prepare"),
			{ID: "approve", Name: "Approve hire", ActorType: schema.ActorHuman, RoleID: "manager"},
			appActivity("notify"),
		},
		Edges: []schema.Edge{
			{ID: "e1", SourceID: "prepare", TargetID: "approve"},
			{ID: "e2", SourceID: "approve", TargetID: "notify"},
		},
	}

	queue := tasks.NewMemoryQueue()
	eng, err := New(wf, WithLogger(testLogger()), WithQueue(queue))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), map[string]any{"employee": "sam"})
	require.NoError(t, err)

	assert.Equal(t, schema.EngineWaitingHuman, res.Status)
	assert.Nil(t, res.FinishedAt)
	require.Len(t, res.Tokens, 1)

	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenWaiting, tok.Status)
	assert.Equal(t, "approve", tok.ActivityID)
	assert.Equal(t, true, tok.ContextData[actors.KeyRequiresHumanAction])
	assert.Contains(t, tok.ContextData, actors.KeyWaitingSince)

	taskID, ok := tok.ContextData[actors.KeyHumanTaskID].(string)
	require.True(t, ok)

	task, err := queue.Get(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, schema.TaskStatusPending, task.Status)
	assert.Equal(t, tok.ID, task.TokenID)
	assert.Equal(t, "manager", task.AssigneeID)
	assert.Equal(t, "sam", task.Data["employee"])

	waitingEntry := tok.History[len(tok.History)-1]
	assert.Equal(t, schema.HistoryStatusChange(schema.TokenWaiting), waitingEntry.Action)
	require.NotNil(t, waitingEntry.Analytics)
	assert.Contains(t, waitingEntry.Analytics.WasteCategories, schema.WasteWaiting)

	ok = eng.ResumeToken(context.Background(), tok.ID, map[string]any{"approved": true})
	require.True(t, ok)
	assert.Equal(t, schema.EngineRunning, eng.Status())

	// A token can only be resumed out of the waiting state once.
	assert.False(t, eng.ResumeToken(context.Background(), tok.ID, nil))

	final, err := eng.Continue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, schema.EngineCompleted, final.Status)
	require.Len(t, final.Tokens, 1)
	done := final.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, done.Status)
	assert.Equal(t, "notify", done.ActivityID)
	assert.Equal(t, true, done.ContextData["approved"])

	var resumed *schema.HistoryEntry
	for i := range done.History {
		if done.History[i].Action == schema.HistoryStatusChange(schema.TokenActive) {
			resumed = &done.History[i]
		}
	}
	require.NotNil(t, resumed)
	require.NotNil(t, resumed.Analytics)
	assert.NotEmpty(t, resumed.Analytics.WaitTime)
	assert.Contains(t, resumed.Analytics.WasteCategories, schema.WasteWaiting)
}

func TestEngineResumeTokenRejections(t *testing.T) {
	eng, err := New(chainWorkflow(1), WithLogger(testLogger()))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, eng.ResumeToken(context.Background(), "no-such-token", nil))
	assert.False(t, eng.ResumeToken(context.Background(), res.Tokens[0].ID, nil),
		"completed tokens must not resume")
}

func TestEngineSimulatedKinds(t *testing.T) {
	for _, kind := range []schema.ActorKind{schema.ActorAIAgent, schema.ActorRobot} {
		t.Run(string(kind), func(t *testing.T) {
			wf := schema.Workflow{
				ID: "wf-sim", Name: "Simulated", Version: "1.0.0",
				Activities: []schema.Activity{{ID: "work", Name: "work", ActorType: kind}},
			}
			eng, err := New(wf, WithLogger(testLogger()))
			require.NoError(t, err)

			res, err := eng.Run(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, schema.EngineCompleted, res.Status)
			tok := res.Tokens[0]
			assert.Equal(t, schema.TokenCompleted, tok.Status)
			assert.Equal(t, true, tok.ContextData[actors.KeySimulated])
			assert.Len(t, tok.History, 2)
		})
	}
}

func TestEngineUnregisteredKindCompletesEmpty(t *testing.T) {
	reg := actors.NewRegistry()
	require.NoError(t, reg.Register(actors.NewSoftwareActor(nil)))

	wf := schema.Workflow{
		ID: "wf-robot", Name: "Robot", Version: "1.0.0",
		Activities: []schema.Activity{{ID: "weld", Name: "weld", ActorType: schema.ActorRobot}},
	}
	eng, err := New(wf, WithLogger(testLogger()), WithRegistry(reg))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), nil)
	require.NoError(t, err)

	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)
	assert.NotContains(t, tok.ContextData, actors.KeySimulated)
	assert.NotContains(t, tok.ContextData, actors.KeyCompleted)
}

func TestEngineMandatoryControl(t *testing.T) {
	controlled := func(enforcement schema.Enforcement) schema.Workflow {
		act := appActivity("charge")
		act.Controls = []schema.Control{{
			ID:          "ctl-limit",
			Name:        "Spending limit",
			Type:        schema.ControlValidation,
			Expression:  `data.amount <= 100.0`,
			Enforcement: enforcement,
		}}
		return schema.Workflow{ID: "wf-charge", Name: "Charge", Version: "1.0.0", Activities: []schema.Activity{act}}
	}

	t.Run("mandatory control blocks", func(t *testing.T) {
		eng, err := New(controlled(schema.EnforcementMandatory), WithLogger(testLogger()))
		require.NoError(t, err)

		res, err := eng.Run(context.Background(), map[string]any{"amount": 250.5})
		require.NoError(t, err)

		tok := res.Tokens[0]
		assert.Equal(t, schema.TokenFailed, tok.Status)

		last := tok.History[len(tok.History)-1]
		require.NotNil(t, last.Analytics)
		require.NotNil(t, last.Analytics.ErrorRate)
		assert.Equal(t, 1.0, *last.Analytics.ErrorRate)
		assert.Contains(t, last.Analytics.WasteCategories, schema.WasteDefects)
	})

	t.Run("mandatory control passes", func(t *testing.T) {
		eng, err := New(controlled(schema.EnforcementMandatory), WithLogger(testLogger()))
		require.NoError(t, err)

		res, err := eng.Run(context.Background(), map[string]any{"amount": 50.0})
		require.NoError(t, err)
		assert.Equal(t, schema.TokenCompleted, res.Tokens[0].Status)
	})

	t.Run("advisory control never blocks", func(t *testing.T) {
		eng, err := New(controlled(schema.EnforcementAdvisory), WithLogger(testLogger()))
		require.NoError(t, err)

		res, err := eng.Run(context.Background(), map[string]any{"amount": 250.5})
		require.NoError(t, err)
		assert.Equal(t, schema.TokenCompleted, res.Tokens[0].Status)
	})
}

func TestEngineContextBindings(t *testing.T) {
	wf := schema.Workflow{
		ID: "wf-pricing", Name: "Pricing", Version: "1.0.0",
		Contexts: []schema.Context{{ID: "order-data", Name: "Order data"}},
		Activities: []schema.Activity{
			{
				ID: "price", Name: "price", ActorType: schema.ActorApplication,
				Programs: []schema.Program{{
					ID: "calc", Name: "calc", Language: "expr",
					Code: `{"total": data.quantity * data.unit_price}`,
				}},
				ContextBindings: []schema.ContextBinding{{
					ContextID:  "order-data",
					AccessMode: schema.AccessWrite,
					Transforms: &schema.Transforms{OnWrite: `{net: .total}`},
				}},
			},
			{
				ID: "ship", Name: "ship", ActorType: schema.ActorApplication,
				Programs: []schema.Program{{
					ID: "copy", Name: "copy", Language: "expr",
					Code: `{"net_copy": data.net}`,
				}},
				ContextBindings: []schema.ContextBinding{{
					ContextID:  "order-data",
					AccessMode: schema.AccessRead,
				}},
			},
		},
		Edges: []schema.Edge{{ID: "e1", SourceID: "price", TargetID: "ship"}},
	}

	eng, err := New(wf, WithLogger(testLogger()))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), map[string]any{"quantity": 3, "unit_price": 4})
	require.NoError(t, err)

	assert.Equal(t, schema.EngineCompleted, res.Status)

	// The write binding pushed the transformed result into the context.
	require.Contains(t, res.Contexts, "order-data")
	assert.EqualValues(t, 12, res.Contexts["order-data"]["net"])

	// Marker keys never cross into contexts.
	assert.NotContains(t, res.Contexts["order-data"], actors.KeyCompleted)

	// The read binding fed the context view into the next activity.
	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)
	assert.EqualValues(t, 12, tok.ContextData["net_copy"])
}

func TestEngineTokenFailsOnEventNode(t *testing.T) {
	wf := schema.Workflow{
		ID: "wf-ev", Name: "EventTarget", Version: "1.0.0",
		Activities: []schema.Activity{appActivity("a1")},
		Events:     []schema.Event{{ID: "done", Name: "Done", EventType: "terminate"}},
		Edges:      []schema.Edge{{ID: "e1", SourceID: "a1", TargetID: "done"}},
	}

	eng, err := New(wf, WithLogger(testLogger()))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, schema.EngineCompleted, res.Status)
	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenFailed, tok.Status)
	assert.Equal(t, "done", tok.ActivityID)

	last := tok.History[len(tok.History)-1]
	assert.Equal(t, schema.HistoryStatusChange(schema.TokenFailed), last.Action)
	assert.Nil(t, last.Analytics)
}

type panicActor struct{}

func (panicActor) Kind() schema.ActorKind { return schema.ActorApplication }

func (panicActor) Execute(context.Context, actors.Invocation) (map[string]any, error) {
	panic("wiring fault")
}

func TestEngineActorPanicIsEngineFault(t *testing.T) {
	reg := actors.NewRegistry()
	require.NoError(t, reg.Register(panicActor{}))

	eng, err := New(chainWorkflow(1), WithLogger(testLogger()), WithRegistry(reg))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
	assert.Equal(t, schema.EngineFailed, eng.Status())
}

func TestEngineContextCancellation(t *testing.T) {
	eng, err := New(chainWorkflow(3), WithLogger(testLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := eng.Run(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeCancelled, schema.CodeOf(err))

	require.NotNil(t, res)
	assert.Equal(t, schema.EngineCancelled, res.Status)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, schema.TokenCancelled, res.Tokens[0].Status)
}

func TestEngineCancelToken(t *testing.T) {
	wf := schema.Workflow{
		ID: "wf-wait", Name: "Wait", Version: "1.0.0",
		Activities: []schema.Activity{
			{ID: "approve", Name: "approve", ActorType: schema.ActorHuman, RoleID: "ops"},
		},
	}
	eng, err := New(wf, WithLogger(testLogger()))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, schema.EngineWaitingHuman, res.Status)

	tokenID := res.Tokens[0].ID
	assert.True(t, eng.CancelToken(context.Background(), tokenID))
	assert.False(t, eng.CancelToken(context.Background(), tokenID), "already terminal")
	assert.False(t, eng.CancelToken(context.Background(), "no-such-token"))

	snap, found := eng.Token(tokenID)
	require.True(t, found)
	assert.Equal(t, schema.TokenCancelled, snap.Status)
	assert.Equal(t, schema.EngineCompleted, eng.Status())

	// A cancelled token can no longer resume.
	assert.False(t, eng.ResumeToken(context.Background(), tokenID, nil))
}

func TestEngineTokenAccessors(t *testing.T) {
	eng, err := New(chainWorkflow(2), WithLogger(testLogger()))
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), nil)
	require.NoError(t, err)

	all := eng.Tokens()
	require.Len(t, all, 1)

	snap, found := eng.Token(all[0].ID)
	assert.True(t, found)
	assert.Equal(t, all[0].ID, snap.ID)

	_, found = eng.Token("missing")
	assert.False(t, found)
}

func TestEnginePublishesRunEvents(t *testing.T) {
	hub := streaming.NewMemoryHub()
	eng, err := New(chainWorkflow(2), WithLogger(testLogger()), WithHub(hub))
	require.NoError(t, err)

	events, unsubscribe, err := hub.Subscribe(context.Background(), streaming.EventFilter{})
	require.NoError(t, err)
	defer unsubscribe()

	_, err = eng.Run(context.Background(), nil)
	require.NoError(t, err)

	var types []string
	for {
		select {
		case ev := <-events:
			assert.Equal(t, eng.RunID(), ev.RunID)
			types = append(types, ev.EventType)
			continue
		default:
		}
		break
	}

	require.NotEmpty(t, types)
	assert.Equal(t, schema.EventRunStarted, types[0])
	assert.Equal(t, schema.EventRunCompleted, types[len(types)-1])
	assert.Contains(t, types, schema.EventTokenCreated)
	assert.Contains(t, types, schema.EventActivityCompleted)
	assert.Contains(t, types, schema.EventTokenMoved)
	assert.Contains(t, types, schema.EventTokenCompleted)
}
