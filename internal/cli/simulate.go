package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"therapy-intake/internal/assessment"
	"therapy-intake/internal/instrument"
)

type simulateOptions struct {
	dir       string
	answers   []string
	ancillary []string
	asJSON    bool
}

func NewSimulateCommand() *cobra.Command {
	var opts simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate <instrument-id>",
		Short: "Run a scripted session and print the result",
		Long: `Answer every question of an instrument in order, set ancillary fields and
print the finalized result: score, severity, crisis flag and recommendations.

Example:
  instruments simulate depression --answers 1,1,2,0,0,1,0,0,0 --ancillary functional_impact=somewhat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simulate(args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", "", "instrument definitions directory (default: built-in)")
	cmd.Flags().StringSliceVar(&opts.answers, "answers", nil, "comma-separated answer values, one per question")
	cmd.Flags().StringArrayVar(&opts.ancillary, "ancillary", nil, "ancillary answer as field=value (repeatable; multi select values are comma-separated)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	return cmd
}

func simulate(id string, opts simulateOptions, out io.Writer) error {
	catalog, err := loadCatalog(opts.dir)
	if err != nil {
		return err
	}
	in, err := catalog.Get(id)
	if err != nil {
		return err
	}
	if len(opts.answers) != in.QuestionCount() {
		return fmt.Errorf("%s has %d questions, got %d answers", in.ID, in.QuestionCount(), len(opts.answers))
	}

	sess, err := assessment.NewSession(in)
	if err != nil {
		return err
	}
	for _, kv := range opts.ancillary {
		fieldID, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("ancillary %q: expected field=value", kv)
		}
		field, err := in.Field(fieldID)
		if err != nil {
			return err
		}
		value, err := field.ParseText(raw)
		if err != nil {
			return err
		}
		if err := sess.SetAncillary(fieldID, value); err != nil {
			return err
		}
	}
	for i, s := range opts.answers {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("answer %d: %w", i, err)
		}
		if err := sess.Answer(i, v); err != nil {
			return err
		}
		if err := sess.Advance(); err != nil {
			return err
		}
	}

	res, err := sess.Finalize()
	if err != nil {
		return err
	}
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(out, in, res)
	return nil
}

func printResult(out io.Writer, in *instrument.Instrument, res assessment.Result) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)

	bold.Fprintln(out, in.Title)
	fmt.Fprintf(out, "Score:    %d / %d\n", res.TotalScore, res.MaxScore)
	fmt.Fprintf(out, "Severity: %s\n", res.SeverityLabel)
	if res.CrisisFlag {
		red.Fprintln(out, "Crisis:   yes")
	} else {
		fmt.Fprintln(out, "Crisis:   no")
	}

	fmt.Fprintln(out)
	for _, t := range res.Recommendations.Tiers {
		if t.Emergency {
			red.Fprintf(out, "[%s] %s\n", t.Key, t.Title)
		} else {
			cyan.Fprintf(out, "[%s] %s\n", t.Key, t.Title)
		}
		for _, a := range t.Actions {
			fmt.Fprintf(out, "  - %s\n", a)
		}
	}
	for _, a := range res.Recommendations.AddOns {
		cyan.Fprintf(out, "+ %s\n", a.Title)
	}
}
