package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"therapy-intake/internal/instrument"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates the root command of the instruments tool.
func NewRootCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "instruments",
		Short: "Inspect, validate and dry-run self-assessment instruments",
		Long: `instruments works on the questionnaire definitions served by the intake
server. Without a directory argument it uses the definitions compiled into
the binary.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewSimulateCommand())

	return cmd
}

func loadCatalog(dir string) (*instrument.Catalog, error) {
	if dir == "" {
		return instrument.Default()
	}
	return instrument.LoadDir(dir)
}
