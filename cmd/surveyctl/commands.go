package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"amsf/internal/filing"
	"amsf/internal/submission/models"
	"amsf/internal/survey/calculator"
	"amsf/internal/taxonomy"
	vmodels "amsf/internal/validation/models"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f39c12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#27ae60")).Bold(true)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCalculateCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Compute every calculated element for the organization and year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			values, err := ws.engine.CalculateAll(cmd.Context(), ws.org, ws.year)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), values)
			}

			t := table.New().Border(lipgloss.NormalBorder()).Headers("Code", "Libellé", "Valeur")
			for _, el := range ws.tax.Computed() {
				if v, ok := values[el.Code]; ok {
					t.Row(el.Code, el.Label, v.String())
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print values as JSON")
	return cmd
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the XBRL instance or the Markdown report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := filing.ParseFormat(format)
			if err != nil {
				return err
			}
			ws, err := openWorkspace(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sub, err := ws.draft(cmd.Context(), ws.year)
			if err != nil {
				return err
			}
			doc, err := ws.filing.Render(cmd.Context(), sub.ID, f)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(doc.Body)
				return err
			}
			if err := os.WriteFile(out, doc.Body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(doc.Body))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(filing.FormatXBRL), "xbrl or markdown")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var style string
	var width int
	var raw bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Display the Markdown report in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sub, err := ws.draft(cmd.Context(), ws.year)
			if err != nil {
				return err
			}
			doc, err := ws.filing.Render(cmd.Context(), sub.ID, filing.FormatMarkdown)
			if err != nil {
				return err
			}
			if raw {
				_, err = cmd.OutOrStdout().Write(doc.Body)
				return err
			}

			styleOpt := glamour.WithAutoStyle()
			if style != "auto" {
				styleOpt = glamour.WithStandardStyle(style)
			}
			renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
			if err != nil {
				return fmt.Errorf("create markdown renderer: %w", err)
			}
			rendered, err := renderer.Render(string(doc.Body))
			if err != nil {
				return fmt.Errorf("render markdown: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().StringVar(&style, "style", "auto", "glamour style: auto, dark, light, notty")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the Markdown source")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run local and, when configured, remote validation",
		Long:  "Exits with status 1 when the submission has blocking errors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sub, err := ws.draft(cmd.Context(), ws.year)
			if err != nil {
				return err
			}
			out, err := ws.filing.Validate(cmd.Context(), sub.ID, cliUser)
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), out.Result); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), out.Result)
			}
			if !out.Result.Valid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the combined result as JSON")
	return cmd
}

func printResult(w io.Writer, res vmodels.Combined) {
	printIssues := func(layer string, r vmodels.Result) {
		for _, issue := range r.Errors {
			fmt.Fprintf(w, "%s [%s] %s %s: %s\n", errorStyle.Render("ERROR"), layer, issue.Code, issue.Element, issue.Message)
		}
		for _, issue := range r.Warnings {
			fmt.Fprintf(w, "%s [%s] %s %s: %s\n", warningStyle.Render("WARN "), layer, issue.Code, issue.Element, issue.Message)
		}
	}
	printIssues("local", res.Local)
	if res.Remote != nil {
		printIssues("remote", *res.Remote)
	}
	switch {
	case res.Degraded():
		fmt.Fprintln(w, warningStyle.Render("remote validation unavailable; the document was only checked locally"))
	case res.Valid:
		fmt.Fprintln(w, okStyle.Render("valid"))
	}
}

func newCompareCmd(opts *rootOptions) *cobra.Command {
	var asJSON, onlySignificant bool
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the year with the previous one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if _, err := ws.draft(cmd.Context(), ws.year-1); err != nil {
				return err
			}
			sub, err := ws.draft(cmd.Context(), ws.year)
			if err != nil {
				return err
			}
			cmp, err := ws.filing.Compare(cmd.Context(), sub.ID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cmp)
			}

			t := table.New().Border(lipgloss.NormalBorder()).
				Headers("Code", "Libellé", strconv.Itoa(ws.year-1), strconv.Itoa(ws.year), "Écart")
			for _, c := range cmp.Changes {
				if onlySignificant && !c.Significant() {
					continue
				}
				delta := "-"
				if c.ChangePercent != nil {
					delta = fmt.Sprintf("%+.1f%%", *c.ChangePercent)
					if c.Significant() {
						delta = warningStyle.Render(delta)
					}
				}
				t.Row(c.Element, c.Label, display(c.Previous), display(c.Current), delta)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the comparison as JSON")
	cmd.Flags().BoolVar(&onlySignificant, "significant", false, "only list changes above the significance threshold")
	return cmd
}

func display(v *models.Value) string {
	if v == nil {
		return "-"
	}
	return v.String()
}

func newTaxonomyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Check that every calculated element has an implementation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tax, err := taxonomy.Load(opts.taxonomyPath)
			if err != nil {
				return err
			}
			c := tax.CheckCompleteness(calculator.For(tax))
			fmt.Fprintf(cmd.OutOrStdout(), "taxonomy %s: %d sections, %d elements, %d calculated\n",
				tax.Version, len(tax.Sections()), len(tax.Elements()), len(tax.Computed()))
			if !c.OK() {
				return c
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("complete"))
			return nil
		},
	}
}
