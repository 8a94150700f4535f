package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/report"
)

var (
	snapData       datasetFlags
	snapLabel      string
	snapIndicators string
	snapJSON       bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <dataset>",
	Short: "Record indicator values and the quality score in the history",
	Long: `Evaluate each indicator against the dataset and append a snapshot to the
history. Without --indicators the mean of each numeric column is tracked.
An indicator that fails is recorded as missing.`,
	Example: `  dashloom snapshot sales.csv --label "week 12"
  dashloom snapshot sales.csv --indicators kpis.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := snapData.load(args[0])
		if err != nil {
			return err
		}
		inds, err := loadIndicators(snapIndicators, ds)
		if err != nil {
			return err
		}
		m, closeStore, err := openMonitor(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		s, err := m.Snapshot(cmd.Context(), ds, inds, snapLabel)
		if err != nil {
			return err
		}
		if snapJSON {
			return printJSON(cmd.OutOrStdout(), s)
		}
		printSnapshot(s)
		return nil
	},
}

func printSnapshot(s monitor.Snapshot) {
	pterm.Success.Printf("Recorded %q (%d rows, quality %d/100)\n", s.Label, s.Rows, s.Quality)
	data := pterm.TableData{{"Indicator", "Value"}}
	for _, l := range report.IndicatorLabels([]monitor.Snapshot{s}) {
		data = append(data, []string{l, report.FormatIndicator(s.Indicators[l])})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

var (
	indData   datasetFlags
	indOutput string
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators <dataset>",
	Short: "Write preset indicator definitions for a dataset to YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := indData.load(args[0])
		if err != nil {
			return err
		}
		inds, err := loadIndicators("", ds)
		if err != nil {
			return err
		}
		if indOutput == "" {
			for _, in := range inds {
				pterm.Printf("%s: %s\n", in.Label, in.Code)
			}
			return nil
		}
		if err := monitor.SaveIndicators(indOutput, inds); err != nil {
			return err
		}
		pterm.Success.Printf("Saved %d indicators to %s\n", len(inds), indOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapData.register(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&snapLabel, "label", "l", "", "snapshot label (default \"Snapshot N\")")
	snapshotCmd.Flags().StringVarP(&snapIndicators, "indicators", "i", "", "YAML file of indicator definitions")
	snapshotCmd.Flags().BoolVar(&snapJSON, "json", false, "print the snapshot as JSON")

	rootCmd.AddCommand(indicatorsCmd)
	indData.register(indicatorsCmd)
	indicatorsCmd.Flags().StringVarP(&indOutput, "output", "o", "", "YAML file to write")
}
