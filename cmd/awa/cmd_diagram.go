package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/awa-io/awa/internal/diagram"
)

var diagramFlags struct {
	format  string
	outPath string
}

var diagramCmd = &cobra.Command{
	Use:   "diagram <workflow.{json,yaml}>",
	Short: "Render a workflow graph as Mermaid text or a PNG image",
	Long: `Diagram renders the workflow graph: activities as boxes annotated with
their actor kind, decisions as diamonds, events as circles, edges labeled
with conditions. Mermaid goes to stdout unless --out is set; PNG always
goes to a file, defaulting to the workflow filename with a .png extension.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagram,
}

func init() {
	f := diagramCmd.Flags()
	f.StringVar(&diagramFlags.format, "format", "mermaid", "Output format: mermaid or png")
	f.StringVarP(&diagramFlags.outPath, "out", "o", "", "Output file (default: stdout for mermaid, <workflow>.png for png)")
}

func runDiagram(cmd *cobra.Command, args []string) error {
	workflow, err := loadWorkflow(args[0])
	if err != nil {
		return err
	}

	model, err := diagram.Build(workflow, nil)
	if err != nil {
		return err
	}

	switch diagramFlags.format {
	case "mermaid":
		out := diagram.RenderMermaid(model)
		if err := writeOutput(diagramFlags.outPath, []byte(out)); err != nil {
			return fmt.Errorf("write diagram: %w", err)
		}
		if diagramFlags.outPath != "" {
			fmt.Printf("Diagram: %s\n", diagramFlags.outPath)
		}
		return nil

	case "png":
		png, err := diagram.RenderImage(model)
		if err != nil {
			return err
		}
		outPath := diagramFlags.outPath
		if outPath == "" {
			base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
			outPath = base + ".png"
		}
		if err := writeOutput(outPath, png); err != nil {
			return fmt.Errorf("write diagram: %w", err)
		}
		fmt.Printf("Diagram: %s\n", outPath)
		return nil

	default:
		return fmt.Errorf("unknown format %q, expected mermaid or png", diagramFlags.format)
	}
}
