package cmd

import (
	"os"

	"github.com/Manu343726/staticld/cmd/tools"
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "staticld",
	Short: "A minimal static linker for x86_64 ELF objects",
	Long: `staticld links x86_64 ELF64 relocatable objects and ar archives into a
single ET_EXEC executable with one RWX PT_LOAD segment.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to run once.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(linkCmd, tools.ToolsCmd)
}
