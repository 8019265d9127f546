package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/awa-io/awa/internal/actors"
	"github.com/awa-io/awa/internal/logging"
	"github.com/awa-io/awa/internal/reasoning"
	"github.com/awa-io/awa/internal/service"
	"github.com/awa-io/awa/internal/tasks"
	"github.com/awa-io/awa/pkg/schema"
)

var runFlags struct {
	inputs    []string
	inputFile string
	outPath   string
	aiKey     string
	strict    bool
	logLevel  string
}

var runCmd = &cobra.Command{
	Use:   "run <workflow.{json,yaml}>",
	Short: "Validate and execute a workflow, printing the run result",
	Long: `Run executes a workflow document in-process and prints the RunResult
as JSON. Initial data comes from --input-file plus --input pairs.

Human activities cannot be completed from a one-shot run: a workflow that
reaches one exits with status waiting_human. Start 'awa serve' to complete
human tasks over HTTP or MCP.

AI activities run simulated unless --ai-key (or AWA_AI_KEY) supplies a
model credential.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringArrayVar(&runFlags.inputs, "input", nil, "Initial data entry key=value (repeatable; JSON values keep their type)")
	f.StringVar(&runFlags.inputFile, "input-file", "", "JSON or YAML file with initial data")
	f.StringVarP(&runFlags.outPath, "out", "o", "", "Write the run result to a file instead of stdout")
	f.StringVar(&runFlags.aiKey, "ai-key", "", "API key for AI activities (default: $AWA_AI_KEY)")
	f.BoolVar(&runFlags.strict, "strict", false, "Exit 1 when any token failed, even if the run completed")
	f.StringVar(&runFlags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

func runRun(cmd *cobra.Command, args []string) error {
	workflow, err := loadWorkflow(args[0])
	if err != nil {
		return err
	}
	inputs, err := parseInputs(runFlags.inputs, runFlags.inputFile)
	if err != nil {
		return err
	}

	log := logging.New(runFlags.logLevel, "text")
	svc, err := buildService(log, runFlags.aiKey)
	if err != nil {
		return err
	}

	result, err := svc.RunWorkflow(cmd.Context(), workflow, inputs)
	if err != nil {
		return err
	}

	rendered, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := writeOutput(runFlags.outPath, append(rendered, '\n')); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if runFlags.outPath != "" {
		fmt.Printf("Result: %s\n", runFlags.outPath)
	}

	return runVerdict(result, runFlags.strict)
}

// runVerdict maps a run result to the process exit contract: a failed run
// is always an error, failed tokens only under --strict, and a run waiting
// on human tasks is a success with a hint on stderr.
func runVerdict(result *schema.RunResult, strict bool) error {
	switch result.Status {
	case schema.EngineFailed:
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Error)
	case schema.EngineWaitingHuman:
		waiting := 0
		for _, token := range result.Tokens {
			if token.Status == schema.TokenWaiting {
				waiting++
			}
		}
		fmt.Fprintf(os.Stderr, "run %s is waiting on %d human task(s); use 'awa serve' to complete them\n",
			result.RunID, waiting)
		return nil
	}

	if strict {
		failed := 0
		for _, token := range result.Tokens {
			if token.Status == schema.TokenFailed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("run %s completed with %d failed token(s)", result.RunID, failed)
		}
	}
	return nil
}

// buildService wires an in-memory service for one-shot commands. The AI
// actor gets a real generator only when a key is configured.
func buildService(log *slog.Logger, aiKey string) (*service.Service, error) {
	queue := tasks.NewMemoryQueue()

	var regOpts []actors.Option
	if aiKey == "" {
		aiKey = os.Getenv("AWA_AI_KEY")
	}
	if aiKey != "" {
		regOpts = append(regOpts, actors.WithGenerator(
			reasoning.NewOpenAIGenerator(aiKey, reasoning.WithLogger(log))))
	}
	registry, err := actors.DefaultRegistry(queue, log, regOpts...)
	if err != nil {
		return nil, err
	}

	return service.New(
		service.WithQueue(queue),
		service.WithRegistry(registry),
		service.WithLogger(log),
	)
}
