package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/bonus/export"
)

func newCalculateCommand(rt *Runtime) *cobra.Command {
	var (
		from, to, format, out string
		vendorID              int64
	)
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Compute vendor bonuses for a date range",
		Example: `  bonusctl calculate --from 2024-01-01 --to 2024-01-31
  bonusctl calculate --from 2024-01-01 --to 2024-01-31 --vendor 7 --format xlsx --out jan.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "json", "csv", "xlsx"); err != nil {
				return err
			}
			start, err := parseDate("from", from)
			if err != nil {
				return err
			}
			end, err := parseDate("to", to)
			if err != nil {
				return err
			}
			req := bonus.CalculateRequest{StartDate: start, EndDate: end}
			if vendorID > 0 {
				req.VendorID = &vendorID
			}

			svc, err := rt.Service(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := svc.CalculateBonuses(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, format, func(w io.Writer) error {
				switch format {
				case "csv":
					return export.WriteBonusSummaryCSV(w, resp)
				case "xlsx":
					return export.WriteBonusXLSX(w, resp, rt.Formatter())
				}
				return writeJSON(w, resp)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "period end, inclusive (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&vendorID, "vendor", 0, "restrict to one vendor id")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, csv or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file (stdout when empty)")
	return cmd
}
