package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/report"
)

var (
	monData       datasetFlags
	monIndicators string
	monRecord     bool
	monLabel      string
	monJSON       bool
	monOutput     string
	monFailOn     string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <dataset>",
	Short: "Compare a dataset's indicators with the recorded history",
	Long: `Evaluate the indicators against the dataset and compare them with the newest
snapshot. Moves of 10%, 20% and 50% are flagged low, medium and high by
default (see thresholds.* in the config). With --record the values are also
appended to the history.`,
	Example: `  dashloom monitor sales.csv
  dashloom monitor sales.csv --indicators kpis.yaml --record --fail-on warning`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := monData.load(args[0])
		if err != nil {
			return err
		}
		inds, err := loadIndicators(monIndicators, ds)
		if err != nil {
			return err
		}
		m, closeStore, err := openMonitor(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		rep := m.Check(ds, inds, cfg.Thresholds)
		if monJSON {
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
		} else {
			printReport(rep, m.History().Len())
		}
		if err := writeOutput(monOutput, report.Anomalies(rep), rep); err != nil {
			return err
		}
		if monRecord {
			s, err := m.Snapshot(cmd.Context(), ds, inds, monLabel)
			if err != nil {
				return err
			}
			if !monJSON {
				pterm.Success.Printf("Recorded %q\n", s.Label)
			}
		}
		return failOn(monFailOn, rep.Status)
	},
}

// failOn turns a report status into an exit error for scripted checks.
func failOn(level, status string) error {
	switch strings.ToLower(level) {
	case "":
		return nil
	case monitor.StatusWarning:
		if status != monitor.StatusHealthy {
			return errors.Newf("status %s", status)
		}
	case monitor.StatusCritical:
		if status == monitor.StatusCritical {
			return errors.Newf("status %s", status)
		}
	default:
		return errors.Newf("unknown --fail-on: %s (use warning|critical)", level)
	}
	return nil
}

func printReport(rep monitor.Report, snapshots int) {
	if snapshots == 0 {
		pterm.Info.Println("No snapshots yet; record one with `dashloom snapshot` or --record")
	}
	switch rep.Status {
	case monitor.StatusCritical:
		pterm.Error.Println("Status: critical")
	case monitor.StatusWarning:
		pterm.Warning.Println("Status: warning")
	default:
		pterm.Success.Println("Status: healthy")
	}
	if rep.Baseline != "" {
		pterm.Printf("Compared with %s\n", pterm.LightCyan(rep.Baseline))
	}
	if len(rep.Entries) > 0 {
		data := pterm.TableData{{"Indicator", "Previous", "Current", "Change", "Severity"}}
		for _, a := range rep.Entries {
			sev := a.Severity
			switch sev {
			case monitor.SeverityHigh:
				sev = pterm.Red(sev)
			case monitor.SeverityMedium:
				sev = pterm.Yellow(sev)
			}
			data = append(data, []string{
				a.Indicator,
				fmt.Sprintf("%.4g", a.Previous),
				fmt.Sprintf("%.4g", a.Current),
				fmt.Sprintf("%+.2f%%", a.ChangePct),
				sev,
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	for _, t := range rep.Trends {
		arrow := "→"
		switch t.Direction {
		case monitor.TrendUp:
			arrow = pterm.Green("↑")
		case monitor.TrendDown:
			arrow = pterm.Red("↓")
		}
		vals := make([]string, len(t.Values))
		for i, v := range t.Values {
			vals[i] = report.FormatIndicator(v)
		}
		pterm.Printf("%s %s  %s\n", arrow, t.Indicator, pterm.Gray(strings.Join(vals, " → ")))
	}
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monData.register(monitorCmd)
	monitorCmd.Flags().StringVarP(&monIndicators, "indicators", "i", "", "YAML file of indicator definitions")
	monitorCmd.Flags().BoolVar(&monRecord, "record", false, "also record a snapshot after the comparison")
	monitorCmd.Flags().StringVarP(&monLabel, "label", "l", "", "label for the recorded snapshot")
	monitorCmd.Flags().BoolVar(&monJSON, "json", false, "print the report as JSON")
	monitorCmd.Flags().StringVarP(&monOutput, "output", "o", "", "write a Markdown (or .json) report")
	monitorCmd.Flags().StringVar(&monFailOn, "fail-on", "", "exit non-zero at this status: warning|critical")
}
