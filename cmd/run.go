package cmd

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
	"github.com/KaramelBytes/dashloom-cli/internal/report"
)

var (
	runData   datasetFlags
	runCode   string
	runFile   string
	runPlan   string
	runJSON   bool
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run <dataset>",
	Short: "Run an analysis snippet or a dashboard plan against a dataset",
	Long: `Run model-written analysis code against a CSV, TSV or XLSX dataset. The
dataset is bound to df; the snippet sets result (or fig for charts). Known
mistakes are rewritten and retried once; the rewrite is shown when applied.`,
	Example: `  dashloom run sales.csv --code "result = df['revenue'].sum()"
  dashloom run sales.csv --file kpi.py
  dashloom run sales.csv --plan reply.txt -o dashboard.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := runData.load(args[0])
		if err != nil {
			return err
		}
		e := engine()

		if runPlan != "" {
			text, err := readSource("", runPlan, cmd.InOrStdin())
			if err != nil {
				return err
			}
			plan, err := extract.Parse(text)
			if err != nil {
				return err
			}
			d, err := extract.DecodeDashboard(plan)
			if err != nil {
				return err
			}
			return showDashboard(cmd, e.RunDashboard(d, ds), runJSON, runOutput)
		}

		code, err := readSource(runCode, runFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if strings.TrimSpace(code) == "" {
			return errors.New("no snippet: pass --code, --file or --plan")
		}
		out := e.Run(code, ds)
		if runJSON {
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			printOutcome(out)
		}
		if err := writeOutput(runOutput, report.Outcome(out), out); err != nil {
			return err
		}
		if !out.OK() {
			return errors.Newf("snippet failed: %s", out.Err.Kind)
		}
		return nil
	},
}

func showDashboard(cmd *cobra.Command, res repair.DashboardResult, asJSON bool, output string) error {
	if asJSON {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		printDashboard(res)
	}
	if err := writeOutput(output, report.Dashboard(res), res); err != nil {
		return err
	}
	if n := res.Failures(); n > 0 {
		pterm.Warning.Printf("%d of %d snippets failed\n", n, len(res.KPIs)+len(res.Charts))
	}
	return nil
}

func printDashboard(res repair.DashboardResult) {
	title := res.Title
	if title == "" {
		title = "Dashboard"
	}
	pterm.DefaultHeader.WithFullWidth().Println(title)
	if res.Description != "" {
		pterm.Println(res.Description)
	}
	if len(res.KPIs) > 0 {
		data := pterm.TableData{{"KPI", "Value", "Status"}}
		for _, k := range res.KPIs {
			status := pterm.Green("ok")
			val := k.Display
			switch {
			case !k.Outcome.OK():
				status = pterm.Red(k.Outcome.Err.Kind)
				val = "-"
			case k.Outcome.Repair != nil:
				status = pterm.Yellow("repaired: " + strings.Join(k.Outcome.Repair.Rules, ", "))
			}
			data = append(data, []string{k.Label, val, status})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	for _, c := range res.Charts {
		pterm.DefaultSection.Println(c.Title)
		printOutcome(c.Outcome)
		if c.Insight != "" && c.Insight != c.Outcome.Note {
			pterm.Info.Println(c.Insight)
		}
	}
	for _, in := range res.Insights {
		pterm.Printf("• %s\n", in)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runData.register(runCmd)
	runCmd.Flags().StringVar(&runCode, "code", "", "snippet source given inline")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "snippet source file ('-' reads stdin)")
	runCmd.Flags().StringVar(&runPlan, "plan", "", "dashboard plan or raw model reply to run ('-' reads stdin)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the outcome as JSON")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the result to a Markdown or .json file")
}
