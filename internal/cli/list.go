package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewListCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "List available instruments and their severity bands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return listInstruments(dir, verbose, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show severity bands and ancillary fields")
	return cmd
}

func listInstruments(dir string, verbose bool, out io.Writer) error {
	catalog, err := loadCatalog(dir)
	if err != nil {
		return err
	}
	bold := color.New(color.Bold)

	fmt.Fprintf(out, "%-12s %-32s %9s %4s\n", "ID", "TITLE", "QUESTIONS", "MAX")
	for _, in := range catalog.List() {
		fmt.Fprintf(out, "%-12s %-32s %9d %4d\n", in.ID, in.Title, in.QuestionCount(), in.MaxScore())
	}
	if !verbose {
		return nil
	}

	for _, in := range catalog.List() {
		fmt.Fprintln(out)
		bold.Fprintln(out, in.Title)
		for _, b := range in.Bands {
			fmt.Fprintf(out, "  %2d-%-2d  %s\n", b.Lower, b.Upper, b.Label)
		}
		for _, f := range in.AncillaryFields() {
			req := ""
			if f.Required {
				req = " (required)"
			}
			var opts []string
			for _, o := range f.Options {
				opts = append(opts, o.Value)
			}
			line := fmt.Sprintf("  %s [%s]%s", f.ID, f.Kind, req)
			if len(opts) > 0 {
				line += ": " + strings.Join(opts, ", ")
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
