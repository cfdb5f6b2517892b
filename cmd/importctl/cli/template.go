package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/equinox-erp/equinox/internal/imports/sheet"
)

func newTemplateCmd() *cobra.Command {
	var (
		division string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the import template workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			division = strings.ToUpper(strings.TrimSpace(division))
			if output == "" {
				output = strings.ToLower(division) + "_product_import_template.xlsx"
			}
			f, err := os.Create(output)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			if err := sheet.WriteTemplate(f, division); err != nil {
				_ = f.Close()
				return &ExitError{Code: 2, Err: err}
			}
			if err := f.Close(); err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&division, "division", "APT", "Division code (APT or HOSPI)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	return cmd
}
