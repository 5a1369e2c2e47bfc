package tools

import (
	"fmt"
	"os"

	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/pkg/utils"
	"github.com/spf13/cobra"
)

var objdumpLiteCmd = &cobra.Command{
	Use:   "objdump-lite <object-file>",
	Short: "Dump a relocatable object's sections and symbol table",
	Args:  cobra.ExactArgs(1),
	RunE:  runObjdumpLite,
}

func runObjdumpLite(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	obj, err := object.ParseObject(data)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "sections:")
	for _, sec := range obj.Sections {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %-16s size=%s align=%-4d relocs=%d\n",
			sec.OriginalIndex, sec.Name, utils.FormatUintHex(sec.Size, 8), sec.Align, len(sec.Relocs))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "symbols:")
	for i, sym := range obj.Symbols {
		status := "defined"
		switch {
		case sym.Undefined:
			status = "undefined"
		case sym.Local:
			status = "local"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %-24s value=%s %s\n", i, sym.Name, utils.FormatUintHex(sym.Value, 8), status)
	}

	return nil
}
