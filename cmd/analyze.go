package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/credit-cli/internal/analysis"
	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <cnpj>",
	Short: "Run a full credit analysis for a CNPJ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		amount, _ := cmd.Flags().GetFloat64("amount")
		installments, _ := cmd.Flags().GetInt("installments")
		rate, _ := cmd.Flags().GetFloat64("rate")
		capital, _ := cmd.Flags().GetString("capital")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := initService(st).Analyze(ctx, model.CreditRequest{
			CNPJ:            args[0],
			RequestedAmount: amount,
			Installments:    installments,
			MonthlyRate:     rate,
			DeclaredCapital: capital,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if asJSON {
			return writeJSON(os.Stdout, a)
		}
		formatAnalysis(os.Stdout, a)
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <cnpj>",
	Short: "Fetch and merge the registry profile of a CNPJ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := initService(st).Lookup(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "lookup")
		}
		formatLookup(os.Stdout, res)
		return nil
	},
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatLookup(out io.Writer, res *analysis.Lookup) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "CNPJ:\t%s\n", model.FormatCNPJ(res.CNPJ))
	for _, key := range model.ProfileFields {
		if key == model.FieldPartners || key == model.FieldTaxID {
			continue
		}
		if v := res.Profile.String(key); v != "" {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", key, v)
		}
	}
	for _, p := range res.Profile.Partners() {
		_, _ = fmt.Fprintf(w, "partner:\t%s (%s)\n", p.Name, p.Role)
	}

	var srcs []string
	for _, key := range []string{model.ProviderOpenCNPJ, model.ProviderBrasilAPI, model.ProviderCNPJa, model.ProviderInverTexto} {
		mark := "-"
		if res.Sources[key] {
			mark = "+"
		}
		srcs = append(srcs, mark+key)
	}
	_, _ = fmt.Fprintf(w, "sources:\t%s\n", strings.Join(srcs, " "))
	_ = w.Flush()
}

func formatAnalysis(out io.Writer, a *model.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if a.ID > 0 {
		_, _ = fmt.Fprintf(w, "Analysis:\t#%d\n", a.ID)
	}
	_, _ = fmt.Fprintf(w, "Company:\t%s\n", a.Profile.LegalName())
	_, _ = fmt.Fprintf(w, "CNPJ:\t%s\n", model.FormatCNPJ(a.Request.CNPJ))
	_, _ = fmt.Fprintf(w, "Score:\t%d/100 (%s)\n", a.Score.Score, a.Score.Tier.Label())
	_, _ = fmt.Fprintf(w, "Requested:\t%s\n", report.Money(a.Request.RequestedAmount))
	_, _ = fmt.Fprintf(w, "Suggested:\t%s\n", report.Money(a.Score.SuggestedAmount))
	_, _ = fmt.Fprintf(w, "Proceedings:\t%d\n", a.Litigation.Count)
	if a.ReportPath != "" {
		_, _ = fmt.Fprintf(w, "Report:\t%s\n", a.ReportPath)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	for _, r := range a.Score.Reasons {
		_, _ = fmt.Fprintf(out, "  %s %s (%+d)\n", r.Marker.Symbol(), r.Message, r.Delta)
	}

	_, _ = fmt.Fprintf(out, "\nNarrative (%s):\n%s\n", a.Narrative.Provider, a.Narrative.Text)
}

func init() {
	analyzeCmd.Flags().Float64("amount", 0, "requested credit amount in BRL")
	analyzeCmd.Flags().Int("installments", analysis.DefaultInstallments, "number of monthly installments")
	analyzeCmd.Flags().Float64("rate", analysis.DefaultMonthlyRate, "monthly interest rate in percent")
	analyzeCmd.Flags().String("capital", "", "declared share capital overriding the registry value")
	analyzeCmd.Flags().Bool("json", false, "print the full analysis as JSON")
	rootCmd.AddCommand(analyzeCmd, lookupCmd)
}
