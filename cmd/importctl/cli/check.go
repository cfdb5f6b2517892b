package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/equinox-erp/equinox/internal/imports"
	"github.com/equinox-erp/equinox/internal/imports/sheet"
)

type checkOptions struct {
	division string
	layout   string
	workers  int
	json     bool
	all      bool
}

// CheckReport is the JSON output of the check command.
type CheckReport struct {
	File     string                 `json:"file"`
	Division string                 `json:"division"`
	Layout   string                 `json:"layout"`
	Sheet    string                 `json:"sheet"`
	Summary  imports.Summary        `json:"summary"`
	Rows     []imports.ValidatedRow `json:"rows"`
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse and validate a price list without touching the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.division, "division", "APT", "Division code (APT or HOSPI)")
	cmd.Flags().StringVar(&opts.layout, "layout", sheet.LayoutFixed, "Layout: fixed or heuristic")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Validation workers")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the full report as JSON")
	cmd.Flags().BoolVar(&opts.all, "all", false, "List every row, not only rows with messages")
	return cmd
}

func runCheck(out io.Writer, path string, opts checkOptions) error {
	division := strings.ToUpper(strings.TrimSpace(opts.division))
	layout, err := sheet.ParseLayout(opts.layout, division)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	defer f.Close()

	parsed, err := sheet.Read(f, filepath.Base(path), layout)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	rows := imports.Validator{Workers: opts.workers}.Validate(
		imports.Normalize(parsed), nil, imports.NewSKUGenerator(division, 0, nil))
	summary := imports.Summarize(rows)

	if opts.json {
		report := CheckReport{
			File:     filepath.Base(path),
			Division: division,
			Layout:   parsed.Layout,
			Sheet:    parsed.Name,
			Summary:  summary,
			Rows:     rows,
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return &ExitError{Code: 2, Err: fmt.Errorf("encode json: %w", err)}
		}
	} else {
		renderCheck(out, path, parsed, rows, summary, opts.all)
	}

	if summary.Error > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d row(s) with errors", summary.Error)}
	}
	return nil
}

func renderCheck(out io.Writer, path string, parsed *sheet.Sheet, rows []imports.ValidatedRow, s imports.Summary, all bool) {
	_, _ = fmt.Fprintf(out, "%s: sheet %q, %s layout, header row %d\n", filepath.Base(path), parsed.Name, parsed.Layout, parsed.HeaderRow)
	_, _ = fmt.Fprintf(out, "rows %d: valid %d, warning %d, error %d, auto sku %d\n", s.Total, s.Valid, s.Warning, s.Error, s.AutoSKU)
	for _, r := range rows {
		if !all && len(r.Messages) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "  row %d [%s] %s %s\n", r.RowNumber, r.Status(), r.SKU, r.Name)
		for _, m := range r.Messages {
			_, _ = fmt.Fprintf(out, "    %s %s: %s\n", m.Severity, m.Field, m.Message)
		}
	}
}
