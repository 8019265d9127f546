package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/awa-io/awa/internal/diagram"
	"github.com/awa-io/awa/pkg/schema"
)

// examplesDir resolves the repository's examples directory relative to
// this file.
func examplesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "examples")
}

// loadExample reads examples/<name>'s workflow document in whichever
// format it ships.
func loadExample(t *testing.T, name string) schema.Workflow {
	t.Helper()
	wf, err := schema.ParseWorkflow(readExampleFile(t, name, "workflow"))
	require.NoError(t, err)
	return wf
}

// loadInputs reads the example's sample initial data.
func loadInputs(t *testing.T, name string) map[string]any {
	t.Helper()
	data := readExampleFile(t, name, "inputs")

	var inputs map[string]any
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		require.NoError(t, json.Unmarshal(data, &inputs))
	} else {
		require.NoError(t, yaml.Unmarshal(data, &inputs))
	}
	return inputs
}

func readExampleFile(t *testing.T, name, base string) []byte {
	t.Helper()
	dir := filepath.Join(examplesDir(), name)
	for _, ext := range []string{".json", ".yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, base+ext))
		if err == nil {
			return data
		}
	}
	t.Fatalf("example %s has no %s.json or %s.yaml", name, base, base)
	return nil
}

func exampleNames(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(examplesDir())
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	require.NotEmpty(t, names)
	return names
}

// --- Sweeps over every shipped example ---

// Shipped documents hold the bar the validator sets for everyone else:
// no errors, no warnings, in either format.
func TestExamplesValidate(t *testing.T) {
	h := newHarness(t)

	for _, name := range exampleNames(t) {
		t.Run(name, func(t *testing.T) {
			wf := loadExample(t, name)
			verdict := h.svc.ValidateWorkflow(wf)
			assert.True(t, verdict.Valid(), "errors: %+v", verdict.Errors)
			assert.Empty(t, verdict.Warnings, "warnings: %+v", verdict.Warnings)
		})
	}
}

// Every example renders to a Mermaid graph carrying all of its nodes.
func TestExamplesRenderDiagrams(t *testing.T) {
	for _, name := range exampleNames(t) {
		t.Run(name, func(t *testing.T) {
			wf := loadExample(t, name)
			model, err := diagram.Build(wf, nil)
			require.NoError(t, err)

			out := diagram.RenderMermaid(model)
			assert.True(t, strings.HasPrefix(out, "graph TD"))
			assert.Contains(t, out, wf.Name)
			for _, a := range wf.Activities {
				assert.Contains(t, out, a.Name)
			}
			for _, d := range wf.DecisionNodes {
				assert.Contains(t, out, d.Name)
			}
		})
	}
}

// --- Scenario runs with the shipped inputs ---

func TestExample_ExpenseApproval(t *testing.T) {
	h := newHarness(t)
	wf := loadExample(t, "expense-approval")

	// The shipped inputs are over the review threshold.
	res := h.run(wf, loadInputs(t, "expense-approval"))
	require.Equal(t, schema.EngineWaitingHuman, res.Status)

	task := h.onlyPendingTask()
	assert.Equal(t, "review", task.ActivityID)
	assert.Equal(t, "finance", task.AssigneeID)

	_, runRes, err := h.svc.CompleteTask(context.Background(), task.ID,
		map[string]any{"approved": true, "reviewer": "noor"})
	require.NoError(t, err)
	require.NotNil(t, runRes)
	assert.Equal(t, schema.EngineCompleted, runRes.Status)

	// The reviewer's verdict lands through the on_write transform, the
	// record step adds the final entry.
	ledger := runRes.Contexts["ledger"]
	require.NotNil(t, ledger)
	assert.Equal(t, true, ledger["approved"])
	assert.Equal(t, "noor", ledger["reviewed_by"])
	assert.Equal(t, "dana / high", ledger["entry"])
	assert.Equal(t, 2400.0, ledger["amount"])
}

func TestExample_ReleaseGate(t *testing.T) {
	h := newHarness(t)
	wf := loadExample(t, "release-gate")

	res := h.run(wf, loadInputs(t, "release-gate"))
	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	tok := res.Tokens[0]
	assert.Equal(t, schema.TokenCompleted, tok.Status)
	assert.Equal(t, "announce", tok.ActivityID)
	assert.Equal(t, "v1.4.0", tok.ContextData["tag"])
	assert.Equal(t, "stable", tok.ContextData["channel"])

	// Red CI trips the mandatory gate control.
	res = h.run(wf, map[string]any{"version": "1.4.1", "tests_passed": false})
	assert.Equal(t, schema.EngineCompleted, res.Status)
	tok = res.Tokens[0]
	assert.Equal(t, schema.TokenFailed, tok.Status)
	assert.Equal(t, "verify", tok.ActivityID)
}

func TestExample_ContentPipeline(t *testing.T) {
	h := newHarness(t)
	wf := loadExample(t, "content-pipeline")

	res := h.run(wf, loadInputs(t, "content-pipeline"))
	require.Equal(t, schema.EngineWaitingHuman, res.Status)
	assert.Equal(t, "review", res.Tokens[0].ActivityID)

	task := h.onlyPendingTask()
	assert.Equal(t, "editor", task.AssigneeID)

	_, runRes, err := h.svc.CompleteTask(context.Background(), task.ID,
		map[string]any{"released": true})
	require.NoError(t, err)
	require.NotNil(t, runRes)
	assert.Equal(t, schema.EngineCompleted, runRes.Status)

	// The draft is reshaped on write, then republished under the on_read
	// view, so the announcement proves both transforms ran.
	article := runRes.Contexts["article"]
	require.NotNil(t, article)
	assert.Equal(t, "Token lifecycles explained", article["title"])
	assert.EqualValues(t, 640, article["words"])
	assert.Equal(t, "Token lifecycles explained is live",
		runRes.Tokens[0].ContextData["announcement"])
}

func TestExample_IncidentTriage(t *testing.T) {
	h := newHarness(t)
	wf := loadExample(t, "incident-triage")
	ctx := context.Background()

	// The shipped inputs describe a critical incident; it pages on-call.
	res := h.run(wf, loadInputs(t, "incident-triage"))
	require.Equal(t, schema.EngineWaitingHuman, res.Status)
	assert.Equal(t, "page", res.Tokens[0].ActivityID)
	assert.Equal(t, "critical", res.Tokens[0].ContextData["severity"])

	task := h.onlyPendingTask()
	assert.Equal(t, "oncall", task.AssigneeID)
	_, runRes, err := h.svc.CompleteTask(ctx, task.ID, map[string]any{"acknowledged": true})
	require.NoError(t, err)
	require.NotNil(t, runRes)
	assert.Equal(t, schema.EngineCompleted, runRes.Status)

	// A warning files a ticket instead.
	res = h.run(wf, map[string]any{"service": "search", "error_rate": 0.2})
	assert.Equal(t, schema.EngineCompleted, res.Status)
	tok := res.Tokens[0]
	assert.True(t, visitedNodes(tok)["ticket"])
	assert.Equal(t, "INC-search", tok.ContextData["ticket"])

	// Background noise takes the default edge and is logged.
	res = h.run(wf, map[string]any{"service": "search", "error_rate": 0.02})
	assert.Equal(t, schema.EngineCompleted, res.Status)
	assert.True(t, visitedNodes(res.Tokens[0])["log"])

	pending, err := h.svc.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending, "only the critical path involves a human")
}

func TestExample_CustomerOnboarding(t *testing.T) {
	h := newHarness(t)
	wf := loadExample(t, "customer-onboarding")

	res := h.run(wf, loadInputs(t, "customer-onboarding"))
	require.Equal(t, schema.EngineWaitingHuman, res.Status)

	task := h.onlyPendingTask()
	assert.Equal(t, "verify", task.ActivityID)
	assert.Equal(t, "compliance", task.AssigneeID)
	assert.Equal(t, "growth", task.Data["tier"])

	_, runRes, err := h.svc.CompleteTask(context.Background(), task.ID,
		map[string]any{"cleared": true})
	require.NoError(t, err)
	require.NotNil(t, runRes)
	assert.Equal(t, schema.EngineCompleted, runRes.Status)

	account := runRes.Contexts["account"]
	require.NotNil(t, account)
	assert.Equal(t, "acct-eu-central", account["account_id"])
	assert.Equal(t, true, account["kyc_cleared"])

	tok := runRes.Tokens[0]
	assert.Equal(t, "welcome", tok.ActivityID)
	assert.Equal(t, schema.TokenCompleted, tok.Status)
}

func TestExample_NightlyMetrics(t *testing.T) {
	h := newHarness(t)
	wf := loadExample(t, "nightly-metrics")

	res := h.run(wf, loadInputs(t, "nightly-metrics"))
	assert.Equal(t, schema.EngineCompleted, res.Status)
	require.Len(t, res.Tokens, 1)
	assert.Equal(t, schema.TokenCompleted, res.Tokens[0].Status)

	// The on_write transform files the rollup under its date key.
	metrics := res.Contexts["metrics"]
	require.NotNil(t, metrics)
	day, ok := metrics["2026-08-24"].(map[string]any)
	require.True(t, ok, "rollup is keyed by date")
	assert.Equal(t, "2026-08-24: 87 signups", day["headline"])

	conversion, ok := day["conversion"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 87.0/5320.0, conversion, 1e-9)
}
