package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/report"
)

var (
	scoreData   datasetFlags
	scoreJSON   bool
	scoreOutput string
)

var scoreCmd = &cobra.Command{
	Use:   "score <dataset>",
	Short: "Score a dataset's quality and list validation issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := scoreData.load(args[0])
		if err != nil {
			return err
		}
		weights := quality.DefaultWeights()
		if cfg != nil {
			weights = cfg.Quality
		}
		bd := quality.Explain(ds, weights)
		issues := quality.Validate(ds)
		result := struct {
			quality.Breakdown
			Issues []quality.Issue `json:"issues"`
		}{bd, issues}

		if scoreJSON {
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			printScore(bd, issues)
		}
		return writeOutput(scoreOutput, report.Dataset(ds)+"\n"+report.Quality(bd, issues), result)
	},
}

func printScore(bd quality.Breakdown, issues []quality.Issue) {
	color := pterm.Green
	switch {
	case bd.Score < 60:
		color = pterm.Red
	case bd.Score < 80:
		color = pterm.Yellow
	}
	pterm.Printf("Quality score: %s\n", color(fmt.Sprintf("%d/100", bd.Score)))
	data := pterm.TableData{
		{"Term", "Value"},
		{"Missing cells", fmt.Sprintf("%.2f%%", bd.MissingPct)},
		{"Duplicate rows", fmt.Sprintf("%.2f%%", bd.DuplicatePct)},
		{"Numeric-looking text columns", fmt.Sprint(bd.TypeIssues)},
		{"Outlier columns", fmt.Sprint(bd.OutlierColumns)},
		{"Fill bonus", fmt.Sprint(bd.Bonus)},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	if len(issues) == 0 {
		pterm.Success.Println("No issues found")
		return
	}
	for _, is := range issues {
		if is.Severity == quality.SeverityWarning {
			pterm.Warning.Printf("%s: %s\n", is.Type, is.Message)
		} else {
			pterm.Info.Printf("%s: %s\n", is.Type, is.Message)
		}
	}
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreData.register(scoreCmd)
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print the score as JSON")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "write a Markdown (or .json) report")
}
