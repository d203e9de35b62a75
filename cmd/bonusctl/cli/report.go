package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/bonus/export"
)

func newReportCommand(rt *Runtime) *cobra.Command {
	var (
		from, to, caseNumber, taxID, format, out string
		vendorID, clientID                       int64
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the enriched billing report",
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
			filter := bonus.ReportFilter{StartDate: start, EndDate: end}
			if caseNumber != "" {
				filter.CaseNumber = &caseNumber
			}
			if taxID != "" {
				filter.VendorTaxID = &taxID
			}
			if vendorID > 0 {
				filter.VendorID = &vendorID
			}
			if clientID > 0 {
				filter.ClientID = &clientID
			}

			svc, err := rt.Service(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := svc.ExportReport(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, format, func(w io.Writer) error {
				switch format {
				case "csv":
					return export.WriteReportCSV(w, resp)
				case "xlsx":
					return export.WriteReportXLSX(w, resp, rt.Formatter())
				}
				return writeJSON(w, resp)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "period end, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&caseNumber, "case", "", "case number substring")
	cmd.Flags().StringVar(&taxID, "vendor-tax-id", "", "vendor tax id, punctuation ignored")
	cmd.Flags().Int64Var(&vendorID, "vendor", 0, "vendor id")
	cmd.Flags().Int64Var(&clientID, "client", 0, "client id")
	cmd.Flags().StringVar(&format, "format", "csv", "output format: json, csv or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file (stdout when empty)")
	return cmd
}
