package cmd

import (
	"log/slog"
	"os"

	"github.com/Manu343726/staticld/internal/cliargs"
	"github.com/Manu343726/staticld/internal/config"
	"github.com/Manu343726/staticld/internal/diagnostics"
	"github.com/Manu343726/staticld/internal/linker"
	"github.com/Manu343726/staticld/internal/logging"
	"github.com/spf13/cobra"
)

// linkCmd parses its own argv with internal/cliargs since spec.md §6's
// -L/-l resolution depends on left-to-right argument order, which cobra's
// pflag-based parsing does not preserve.
var linkCmd = &cobra.Command{
	Use:                "link [flags] inputs...",
	Short:              "Link relocatable objects and archives into an executable",
	DisableFlagParsing: true,
	RunE:               runLink,
}

func runLink(cmd *cobra.Command, argv []string) error {
	levelName := config.Load()
	logger := logging.New(logging.ParseLevel(levelName), levelName == "trace")
	slog.SetDefault(logger)

	parsed, err := cliargs.Parse(argv, config.DefaultOutput())
	if err != nil {
		diagnostics.Fatal(err)
		os.Exit(1)
	}
	for _, w := range parsed.Warnings {
		diagnostics.Warn("%s", w)
	}

	var inputs []linker.Input
	for _, path := range parsed.Inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			diagnostics.Fatal(err)
			os.Exit(1)
		}
		inputs = append(inputs, linker.Input{Path: path, Data: data})
	}

	image, err := linker.Link(inputs, logger)
	if err != nil {
		diagnostics.Fatal(err)
		os.Exit(1)
	}

	if err := os.WriteFile(parsed.Output, image, 0o755); err != nil {
		diagnostics.Fatal(err)
		os.Exit(1)
	}
	return nil
}
