package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/credit-cli/internal/model"
	"github.com/sells-group/credit-cli/internal/report"
	"github.com/sells-group/credit-cli/internal/store"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect stored credit analyses",
	Long:  "Commands for listing, viewing, deleting and exporting stored analyses and their reports.",
}

// -- analyses list --

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListAnalyses(ctx, analysisFilter(cmd))
		if err != nil {
			return eris.Wrap(err, "analyses list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		formatAnalysesList(os.Stdout, list)
		return nil
	},
}

// -- analyses show --

var analysesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a, err := st.GetAnalysis(ctx, id)
		if err != nil {
			return eris.Wrap(err, "analyses show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, a)
		}
		formatAnalysis(os.Stdout, a)
		return nil
	},
}

// -- analyses delete --

var analysesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored analysis and its related rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteAnalysis(ctx, id); err != nil {
			return eris.Wrap(err, "analyses delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted analysis #%d.\n", id)
		return nil
	},
}

// -- analyses stats --

var analysesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics of stored analyses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "analyses stats")
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

// -- analyses export --

var analysesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored analyses to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListAnalyses(ctx, analysisFilter(cmd))
		if err != nil {
			return eris.Wrap(err, "analyses export")
		}

		path, _ := cmd.Flags().GetString("out")
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "analyses export: create %s", path)
		}
		defer f.Close() //nolint:errcheck

		if err := report.WriteXLSX(f, list); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d analyses to %s.\n", len(list), path)
		return nil
	},
}

// -- analyses report --

var analysesReportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Render the PDF report of a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a, err := st.GetAnalysis(ctx, id)
		if err != nil {
			return eris.Wrap(err, "analyses report")
		}

		rep, err := report.NewRenderer(cfg.Report.Dir).Render(a)
		if err != nil {
			return err
		}
		if err := st.SaveReport(ctx, *rep); err != nil {
			return eris.Wrap(err, "analyses report")
		}
		fmt.Fprintln(os.Stdout, rep.Path)
		return nil
	},
}

func analysisFilter(cmd *cobra.Command) store.AnalysisFilter {
	cnpj, _ := cmd.Flags().GetString("cnpj")
	tier, _ := cmd.Flags().GetString("tier")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return store.AnalysisFilter{
		CNPJ:   model.NormalizeCNPJ(cnpj),
		Tier:   model.Tier(tier),
		Limit:  limit,
		Offset: offset,
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid analysis id %q", s)
	}
	return id, nil
}

func formatAnalysesList(out io.Writer, list []model.AnalysisSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCNPJ\tCOMPANY\tSCORE\tTIER\tSUGGESTED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t-----\t----\t---------\t-------")

	for _, a := range list {
		company := a.LegalName
		if len(company) > 30 {
			company = company[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			a.ID,
			model.FormatCNPJ(a.CNPJ),
			company,
			a.Score,
			a.Tier,
			report.Money(a.SuggestedAmount),
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatStats(out io.Writer, s *model.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Low risk:\t%d\n", s.Low)
	_, _ = fmt.Fprintf(w, "Medium risk:\t%d\n", s.Medium)
	_, _ = fmt.Fprintf(w, "High risk:\t%d\n", s.High)
	_, _ = fmt.Fprintf(w, "Average score:\t%.1f\n", s.AverageScore)
	_ = w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{analysesListCmd, analysesExportCmd} {
		c.Flags().String("cnpj", "", "filter by CNPJ")
		c.Flags().String("tier", "", "filter by risk tier (LOW, MEDIUM, HIGH, VERY_HIGH)")
		c.Flags().Int("offset", 0, "results to skip")
	}
	analysesListCmd.Flags().Int("limit", 50, "max results")
	analysesExportCmd.Flags().Int("limit", 10000, "max rows exported")
	analysesExportCmd.Flags().String("out", "analises.xlsx", "output workbook path")
	analysesShowCmd.Flags().Bool("json", false, "print the full analysis as JSON")

	analysesCmd.AddCommand(analysesListCmd, analysesShowCmd, analysesDeleteCmd, analysesStatsCmd, analysesExportCmd, analysesReportCmd)
	rootCmd.AddCommand(analysesCmd)
}
