// awa is the workflow engine CLI: run, validate, serve, diagram.
//
// Usage:
//
//	awa run <workflow.{json,yaml}> [--input k=v]... [--out result.json]
//	awa validate <workflow.{json,yaml}>
//	awa serve [--listen :8420] [--db awa.db] [--mcp]
//	awa diagram <workflow.{json,yaml}> [--format mermaid|png] [--out file]
//	awa version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
