package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/report"
)

var (
	histLimit  int
	histJSON   bool
	histClear  bool
	histOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return errors.New("no config loaded")
		}
		h, store, err := cfg.OpenHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if histClear {
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			h.Clear()
			pterm.Success.Println("History cleared")
			return nil
		}

		list := h.List()
		if histLimit > 0 {
			list = h.Last(histLimit)
		}
		if histJSON {
			if list == nil {
				list = []monitor.Snapshot{}
			}
			return printJSON(cmd.OutOrStdout(), list)
		}
		printHistory(list, cfg.HistoryPath)
		return writeOutput(histOutput, report.Snapshots(list), list)
	},
}

func printHistory(list []monitor.Snapshot, source string) {
	if len(list) == 0 {
		pterm.Info.Printf("No snapshots recorded in %s\n", source)
		return
	}
	labels := report.IndicatorLabels(list)
	header := append([]string{"Label", "Time", "Rows", "Quality"}, labels...)
	data := pterm.TableData{header}
	for _, s := range list {
		row := []string{s.Label, s.Timestamp.Local().Format("2006-01-02 15:04"), fmt.Sprint(s.Rows), fmt.Sprint(s.Quality)}
		for _, l := range labels {
			row = append(row, report.FormatIndicator(s.Indicators[l]))
		}
		data = append(data, row)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&histLimit, "limit", "n", 0, "show only the newest n snapshots")
	historyCmd.Flags().BoolVar(&histJSON, "json", false, "print snapshots as JSON")
	historyCmd.Flags().BoolVar(&histClear, "clear", false, "delete every recorded snapshot")
	historyCmd.Flags().StringVarP(&histOutput, "output", "o", "", "write a Markdown (or .json) table")
}
