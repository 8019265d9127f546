package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the awa version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version)
	},
}
