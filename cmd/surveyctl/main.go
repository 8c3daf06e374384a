// Command surveyctl runs the survey pipeline offline against a CRM fixture:
// it computes values, renders the XBRL instance or report, validates and
// compares with the previous year without a database.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// errInvalid makes the process exit non-zero without repeating the issues.
var errInvalid = errors.New("submission is not valid")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Compute, render and check AMSF annual surveys from a CRM fixture",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.fixture, "fixture", "f", "", "CRM fixture: a JSON array of datasets")
	flags.StringVar(&opts.answersPath, "answers", "", "JSON object of element code to manual answer, applied to the reporting year")
	flags.StringVar(&opts.taxonomyPath, "taxonomy", "", "taxonomy manifest (defaults to the embedded one)")
	flags.StringVar(&opts.org, "org", "", "organization id")
	flags.IntVarP(&opts.year, "year", "y", time.Now().Year()-1, "reporting year")
	flags.BoolVar(&opts.lenient, "lenient", false, "skip malformed values instead of failing the render")
	flags.StringVar(&opts.remoteURL, "remote-url", "", "remote validation service (local checks only when empty)")
	flags.DurationVar(&opts.remoteWait, "remote-timeout", 10*time.Second, "per-attempt remote validation timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		newCalculateCmd(opts),
		newRenderCmd(opts),
		newReportCmd(opts),
		newValidateCmd(opts),
		newCompareCmd(opts),
		newTaxonomyCmd(opts),
	)
	return root
}
