package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/framepipe/kernel"
)

var kernelsCmd = &cobra.Command{
	Use:   "kernels",
	Short: "List the built-in kernels",
	Run: func(cmd *cobra.Command, args []string) {
		for i, s := range kernel.Builtins() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", i+1, s.Name)
		}
	},
}
