package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("validation failed")

func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate instrument definitions",
		Long: `Parse and validate every *.yaml definition in dir, checking for:
  - questions with a response scale
  - severity bands covering every score from 0 to the maximum
  - crisis and add-on rules that reference existing questions and fields

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return validateDir(dir, cmd.OutOrStdout())
		},
	}
}

func validateDir(dir string, out io.Writer) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed, color.Bold)

	catalog, err := loadCatalog(dir)
	if err != nil {
		red.Fprintln(out, "Validation failed:")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(out, "  - %s\n", line)
		}
		return errValidationFailed
	}

	for _, in := range catalog.List() {
		fmt.Fprintf(out, "  %s: %d questions, max score %d, %d bands\n",
			in.ID, in.QuestionCount(), in.MaxScore(), len(in.Bands))
	}
	green.Fprintf(out, "All %d instruments are valid\n", len(catalog.List()))
	return nil
}
