package cmd

import (
	"bytes"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

var (
	cleanData   datasetFlags
	cleanCode   string
	cleanFile   string
	cleanPlan   string
	cleanOutput string
	cleanJSON   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <dataset>",
	Short: "Run a cleaning snippet and save the cleaned dataset",
	Long: `Run cleaning code that must leave a replacement dataset in result (or in
df_clean, df_cleaned, cleaned_df or df_final). Date-like text columns are
converted first. The quality score is reported before and after.`,
	Example: `  dashloom clean raw.csv --code "df_clean = df.drop_duplicates()" -o clean.csv
  dashloom clean raw.csv --plan cleaning_reply.txt -o clean.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cleanData.load(args[0])
		if err != nil {
			return err
		}
		code, err := cleaningCode(cmd)
		if err != nil {
			return err
		}

		weights := quality.DefaultWeights()
		if cfg != nil {
			weights = cfg.Quality
		}
		before := quality.Score(ds, weights)
		out := engine().Clean(code, ds)
		cleaned, _ := out.Value.(*dataset.Dataset)

		if cleanJSON {
			summary := cleanSummary(out, before, cleaned, weights)
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
		} else {
			printOutcome(out)
		}
		if cleaned == nil {
			return errors.Newf("cleaning failed: %s", out.Err.Raw)
		}
		after := quality.Score(cleaned, weights)
		if !cleanJSON {
			pterm.Info.Printf("Quality score: %d → %d (%d → %d rows)\n", before, after, ds.Rows(), cleaned.Rows())
		}
		if cleanOutput != "" {
			var buf bytes.Buffer
			if err := dataset.WriteCSV(&buf, cleaned); err != nil {
				return err
			}
			if err := utils.SafeWriteFile(cleanOutput, buf.Bytes()); err != nil {
				return errors.Wrap(err, "write cleaned dataset")
			}
			pterm.Success.Printf("Saved cleaned dataset to %s\n", cleanOutput)
		}
		return nil
	},
}

// cleaningCode resolves the snippet from --code, --file or a cleaning plan.
func cleaningCode(cmd *cobra.Command) (string, error) {
	if cleanPlan != "" {
		text, err := readSource("", cleanPlan, cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		plan, err := extract.Parse(text)
		if err != nil {
			return "", err
		}
		cp, err := extract.DecodeCleaning(plan)
		if err != nil {
			return "", err
		}
		for _, is := range cp.Issues {
			pterm.Info.Printf("%s %s: %s\n", is.Severity, is.IssueType, is.FixDescription)
		}
		return cp.Code, nil
	}
	code, err := readSource(cleanCode, cleanFile, cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(code) == "" {
		return "", errors.New("no cleaning code: pass --code, --file or --plan")
	}
	return code, nil
}

func cleanSummary(out sandbox.Outcome, before int, cleaned *dataset.Dataset, w quality.Weights) map[string]any {
	m := map[string]any{"score_before": before}
	if cleaned != nil {
		m["score_after"] = quality.Score(cleaned, w)
		m["rows"] = cleaned.Rows()
		m["columns"] = cleaned.Names()
		out.Value = nil
	}
	m["outcome"] = out
	return m
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanData.register(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanCode, "code", "", "cleaning code given inline")
	cleanCmd.Flags().StringVarP(&cleanFile, "file", "f", "", "cleaning code file ('-' reads stdin)")
	cleanCmd.Flags().StringVar(&cleanPlan, "plan", "", "cleaning plan or raw model reply ('-' reads stdin)")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "path to write the cleaned CSV")
	cleanCmd.Flags().BoolVar(&cleanJSON, "json", false, "print a JSON summary instead of tables")
}
