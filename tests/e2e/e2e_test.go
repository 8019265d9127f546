// Package e2e runs full workflow scenarios against the real stack: the
// service layer on a libSQL-backed task queue and run archive, the default
// actor registry, and the engine underneath. Nothing is mocked.
package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awa-io/awa/internal/scheduler"
	"github.com/awa-io/awa/internal/service"
	"github.com/awa-io/awa/internal/store"
	"github.com/awa-io/awa/pkg/schema"
)

// --- Harness ---

type harness struct {
	t     *testing.T
	store *store.LibSQLStore
	svc   *service.Service
}

// newHarness builds the single-binary durable deployment: one libSQL file
// serving as both task queue and run archive, one service over it.
func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.Open("file:" + filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	svc := newServiceOver(t, st)
	return &harness{t: t, store: st, svc: svc}
}

func newServiceOver(t *testing.T, st *store.LibSQLStore) *service.Service {
	t.Helper()
	svc, err := service.New(
		service.WithArchive(st),
		service.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)
	return svc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (h *harness) run(wf schema.Workflow, data map[string]any) *schema.RunResult {
	h.t.Helper()
	res, err := h.svc.RunWorkflow(context.Background(), wf, data)
	require.NoError(h.t, err)
	return res
}

// onlyPendingTask fetches the single task the run is waiting on.
func (h *harness) onlyPendingTask() schema.HumanTask {
	h.t.Helper()
	pending, err := h.svc.ListTasks(context.Background(), "")
	require.NoError(h.t, err)
	require.Len(h.t, pending, 1)
	return pending[0]
}

func historyActions(tok schema.TokenSnapshot) []string {
	out := make([]string, 0, len(tok.History))
	for _, entry := range tok.History {
		out = append(out, entry.Action)
	}
	return out
}

func visitedNodes(tok schema.TokenSnapshot) map[string]bool {
	seen := make(map[string]bool, len(tok.History))
	for _, entry := range tok.History {
		if entry.Action == schema.HistoryCreated || entry.Action == schema.HistoryEntered {
			seen[entry.NodeID] = true
		}
	}
	return seen
}

// --- Workflow fixtures ---

// releaseChain is a linear pipeline of n application steps.
func releaseChain(n int) schema.Workflow {
	wf := schema.Workflow{ID: "wf-release", Name: "Release Pipeline", Version: "1.0.0"}
	for i := 1; i <= n; i++ {
		wf.Activities = append(wf.Activities, schema.Activity{
			ID:        fmt.Sprintf("step%d", i),
			Name:      fmt.Sprintf("Step %d", i),
			ActorType: schema.ActorApplication,
		})
	}
	for i := 1; i < n; i++ {
		wf.Edges = append(wf.Edges, schema.Edge{
			ID:       fmt.Sprintf("e%d", i),
			SourceID: fmt.Sprintf("step%d", i),
			TargetID: fmt.Sprintf("step%d", i+1),
		})
	}
	return wf
}

// expenseWorkflow routes an expense by band: intake classifies the amount,
// high goes to a finance review, low to robotic auto-approval, and both
// paths end at a notify step recording the outcome in the ledger context.
func expenseWorkflow() schema.Workflow {
	return schema.Workflow{
		ID: "wf-expense", Name: "Expense Approval", Version: "2.1.0",
		Contexts: []schema.Context{{ID: "ledger", Name: "Expense ledger", Type: schema.ContextData}},
		Activities: []schema.Activity{
			{
				ID: "intake", Name: "Classify expense", ActorType: schema.ActorApplication,
				Programs: []schema.Program{{
					ID: "classify", Name: "classify", Language: "expr",
					Code: `{"band": data.amount > 1000.0 ? "high" : "low"}`,
				}},
			},
			{ID: "review", Name: "Finance review", ActorType: schema.ActorHuman, RoleID: "finance"},
			{ID: "auto_approve", Name: "Auto approve", ActorType: schema.ActorRobot},
			{
				ID: "notify", Name: "Notify requester", ActorType: schema.ActorApplication,
				Programs: []schema.Program{{
					ID: "record", Name: "record", Language: "expr",
					Code: `{"recorded_amount": data.amount, "recorded_band": data.band}`,
				}},
				ContextBindings: []schema.ContextBinding{{
					ContextID:  "ledger",
					AccessMode: schema.AccessWrite,
				}},
			},
		},
		DecisionNodes: []schema.DecisionNode{{
			ID: "route", Name: "Route by band",
			DecisionTable: schema.DecisionTable{
				HitPolicy: schema.HitPolicyFirst,
				Inputs:    []schema.TableColumn{{Name: "band"}},
				Rules: []schema.DecisionRule{
					{InputEntries: []string{"high"}, OutputEdgeID: "e-review"},
					{InputEntries: []string{"low"}, OutputEdgeID: "e-auto"},
				},
			},
			DefaultOutputEdgeID: "e-auto",
		}},
		Edges: []schema.Edge{
			{ID: "e-route", SourceID: "intake", TargetID: "route"},
			{ID: "e-review", SourceID: "route", TargetID: "review"},
			{ID: "e-auto", SourceID: "route", TargetID: "auto_approve"},
			{ID: "e-review-done", SourceID: "review", TargetID: "notify"},
			{ID: "e-auto-done", SourceID: "auto_approve", TargetID: "notify"},
		},
	}
}

// articleWorkflow pushes data through a shared context with jq transforms
// on both sides of the boundary: collect reshapes its output on write,
// summarize reshapes the context view on read.
func articleWorkflow() schema.Workflow {
	return schema.Workflow{
		ID: "wf-article", Name: "Article Pipeline", Version: "1.0.0",
		Contexts: []schema.Context{{ID: "article", Name: "Article state", Type: schema.ContextDocument}},
		Activities: []schema.Activity{
			{
				ID: "collect", Name: "Collect copy", ActorType: schema.ActorApplication,
				Programs: []schema.Program{{
					ID: "meta", Name: "meta", Language: "expr",
					Code: `{"title": data.title, "word_count": 1280}`,
				}},
				ContextBindings: []schema.ContextBinding{{
					ContextID:  "article",
					AccessMode: schema.AccessWrite,
					Transforms: &schema.Transforms{OnWrite: `{title: .title, words: .word_count}`},
				}},
			},
			{
				ID: "summarize", Name: "Summarize", ActorType: schema.ActorApplication,
				Programs: []schema.Program{{
					ID: "tagline", Name: "tagline", Language: "expr",
					Code: `{"tagline": data.headline + ": draft ready"}`,
				}},
				ContextBindings: []schema.ContextBinding{{
					ContextID:  "article",
					AccessMode: schema.AccessRead,
					Transforms: &schema.Transforms{OnRead: `{headline: .title}`},
				}},
			},
		},
		Edges: []schema.Edge{{ID: "e1", SourceID: "collect", TargetID: "summarize"}},
	}
}

// --- Scenarios ---

// A linear chain of N activities leaves exactly 2N history entries on its
// token: created, N-1 exited/entered pairs, and a final status change.
func TestChainAuditTrail(t *testing.T) {
	h := newHarness(t)
	const n = 4

	res := h.run(releaseChain(n), map[string]any{"build": "2026.08.1"})

	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.NotNil(t, res.FinishedAt)
	require.Len(t, res.Tokens, 1)

	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)
	assert.Equal(t, fmt.Sprintf("step%d", n), tok.ActivityID)
	assert.Equal(t, "2026.08.1", tok.ContextData["build"])

	actions := historyActions(tok)
	require.Len(t, actions, 2*n)
	assert.Equal(t, schema.HistoryCreated, actions[0])
	for i := 1; i < len(actions)-1; i += 2 {
		assert.Equal(t, schema.HistoryExited, actions[i])
		assert.Equal(t, schema.HistoryEntered, actions[i+1])
	}
	assert.Equal(t, schema.HistoryStatusChange(schema.TokenCompleted), actions[len(actions)-1])

	// Timestamps are strictly increasing even when steps finish within the
	// clock's resolution.
	for i := 1; i < len(tok.History); i++ {
		assert.True(t, tok.History[i].Timestamp.After(tok.History[i-1].Timestamp),
			"history[%d] not after history[%d]", i, i-1)
	}
}

func TestExpenseHighBandSuspendsForReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.run(expenseWorkflow(), map[string]any{"amount": 2400.0, "requester": "kim"})
	require.Equal(t, schema.EngineWaitingHuman, res.Status)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, "review", res.Tokens[0].ActivityID)
	assert.Equal(t, "high", res.Tokens[0].ContextData["band"])

	// The waiting run is archived as such.
	rec, err := h.svc.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, schema.EngineWaitingHuman, rec.Status)
	assert.Equal(t, "Expense Approval", rec.WorkflowName)

	task := h.onlyPendingTask()
	assert.Equal(t, "review", task.ActivityID)
	assert.Equal(t, "finance", task.AssigneeID)
	assert.Equal(t, "kim", task.Data["requester"])
	assert.Equal(t, "high", task.Data["band"])

	completed, runRes, err := h.svc.CompleteTask(ctx, task.ID,
		map[string]any{"approved": true, "reviewer": "dana"})
	require.NoError(t, err)
	assert.Equal(t, schema.TaskStatusCompleted, completed.Status)

	require.NotNil(t, runRes)
	assert.Equal(t, schema.EngineCompleted, runRes.Status)
	tok := runRes.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)
	assert.Equal(t, "notify", tok.ActivityID)
	assert.Equal(t, true, tok.ContextData["approved"])
	assert.Equal(t, "dana", tok.ContextData["reviewer"])

	visited := visitedNodes(tok)
	assert.True(t, visited["review"])
	assert.False(t, visited["auto_approve"], "high band must not take the auto path")

	// The notify step pushed its record through the write binding.
	assert.Equal(t, 2400.0, runRes.Contexts["ledger"]["recorded_amount"])
	assert.Equal(t, "high", runRes.Contexts["ledger"]["recorded_band"])

	// Settled; the archive now holds the final state.
	rec, err = h.svc.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, schema.EngineCompleted, rec.Status)

	pending, err := h.svc.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExpenseLowBandAutoApproves(t *testing.T) {
	h := newHarness(t)

	res := h.run(expenseWorkflow(), map[string]any{"amount": 240.0})

	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)
	assert.Equal(t, "low", tok.ContextData["band"])

	visited := visitedNodes(tok)
	assert.True(t, visited["route"])
	assert.True(t, visited["auto_approve"])
	assert.False(t, visited["review"], "low band must not reach the reviewer")

	pending, err := h.svc.ListTasks(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, pending, "no human task for the auto path")
}

func TestDecisionFallsToDefaultEdge(t *testing.T) {
	h := newHarness(t)

	// Without the classify program the band comes straight from the
	// initial data; a value no rule matches takes the default edge.
	wf := expenseWorkflow()
	wf.Activities[0].Programs = nil

	res := h.run(wf, map[string]any{"amount": 77.0, "band": "flagged"})
	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, schema.TokenCompleted, res.Tokens[0].Status)
	assert.True(t, visitedNodes(res.Tokens[0])["auto_approve"])
}

func TestFailingProgramFailsTokenNotRun(t *testing.T) {
	h := newHarness(t)

	// No amount: the classify program errors on the missing key, which
	// must fail the token while the run itself settles cleanly.
	res := h.run(expenseWorkflow(), nil)
	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, schema.TokenFailed, res.Tokens[0].Status)
	assert.Equal(t, "intake", res.Tokens[0].ActivityID)
}

func TestArticlePipelineTransforms(t *testing.T) {
	h := newHarness(t)

	res := h.run(articleWorkflow(), map[string]any{"title": "Q3 report"})

	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)

	// on_write reshaped word_count into words.
	article := res.Contexts["article"]
	require.NotNil(t, article)
	assert.Equal(t, "Q3 report", article["title"])
	assert.EqualValues(t, 1280, article["words"])
	assert.NotContains(t, article, "word_count")

	// on_read exposed the title as headline to the summarize step.
	assert.Equal(t, "Q3 report: draft ready", tok.ContextData["tagline"])
	assert.NotContains(t, tok.ContextData, "headline",
		"the read view feeds the invocation, not the token")
}

func TestMandatoryControlBlocksToken(t *testing.T) {
	h := newHarness(t)

	wf := schema.Workflow{
		ID: "wf-deploy", Name: "Production Deploy", Version: "1.0.0",
		Activities: []schema.Activity{{
			ID: "deploy", Name: "Deploy", ActorType: schema.ActorApplication,
			Controls: []schema.Control{{
				ID: "ctl-clearance", Name: "Clearance gate",
				Type:        schema.ControlAuthorization,
				Expression:  `data.clearance == "high"`,
				Enforcement: schema.EnforcementMandatory,
			}},
		}},
	}

	res := h.run(wf, map[string]any{"clearance": "low"})
	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, schema.TokenFailed, res.Tokens[0].Status)

	res = h.run(wf, map[string]any{"clearance": "high"})
	assert.Equal(t, schema.EngineCompleted, res.Status)
	assert.Equal(t, schema.TokenCompleted, res.Tokens[0].Status)
}

func TestScheduledSubmissionArchived(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sched := scheduler.Schedule{
		ID:          "sched-nightly",
		Name:        "nightly-release",
		Workflow:    releaseChain(2),
		InitialData: map[string]any{"trigger": "cron"},
	}
	require.NoError(t, h.svc.SubmitScheduled(ctx, sched))

	// Shutdown drains the worker pool, so the run is fully settled.
	h.svc.Shutdown()

	metrics := h.svc.PoolMetrics()
	assert.EqualValues(t, 1, metrics.Submitted)
	assert.EqualValues(t, 1, metrics.Completed)

	runs, err := h.svc.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, schema.EngineCompleted, runs[0].Status)
	assert.Equal(t, "Release Pipeline", runs[0].WorkflowName)
	require.NotNil(t, runs[0].Result)
	assert.Equal(t, "cron", runs[0].Result.Tokens[0].ContextData["trigger"])
}

// Engine state is in-memory only; the queue and the archive are what
// survive a restart. A task completed after the owning process died is
// recorded, and the archived run keeps its last settled state.
func TestDurableQueueSurvivesRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.run(expenseWorkflow(), map[string]any{"amount": 9800.0})
	require.Equal(t, schema.EngineWaitingHuman, res.Status)
	task := h.onlyPendingTask()

	// A fresh service over the same database stands in for the restarted
	// process.
	svc2 := newServiceOver(t, h.store)

	rec, err := svc2.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, schema.EngineWaitingHuman, rec.Status)

	pending, err := svc2.ListTasks(ctx, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].ID)

	completed, runRes, err := svc2.CompleteTask(ctx, task.ID, map[string]any{"approved": false})
	require.NoError(t, err)
	assert.Equal(t, schema.TaskStatusCompleted, completed.Status)
	assert.Nil(t, runRes, "no live engine owns the token after a restart")

	rec, err = svc2.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, schema.EngineWaitingHuman, rec.Status,
		"archived state is the last settle point")

	pending, err = svc2.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunListingFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.run(releaseChain(2), nil)
	h.run(expenseWorkflow(), map[string]any{"amount": 5000.0})

	all, err := h.svc.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	waiting, err := h.svc.ListRuns(ctx, store.RunFilter{Status: string(schema.EngineWaitingHuman)})
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "wf-expense", waiting[0].WorkflowID)

	byWorkflow, err := h.svc.ListRuns(ctx, store.RunFilter{WorkflowID: "wf-release"})
	require.NoError(t, err)
	require.Len(t, byWorkflow, 1)
	assert.Equal(t, schema.EngineCompleted, byWorkflow[0].Status)

	limited, err := h.svc.ListRuns(ctx, store.RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
