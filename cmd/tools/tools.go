package tools

import (
	"github.com/spf13/cobra"
)

// ToolsCmd groups read-only introspection subcommands that sit outside the
// linking pipeline itself.
var ToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "staticld introspection tools",
}

func init() {
	ToolsCmd.AddCommand(objdumpLiteCmd)
}
