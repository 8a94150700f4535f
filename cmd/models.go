package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog and pricing",
	Example: `  dashloom models show
  dashloom models sync --file ./models.json`,
}

var modelsJSON bool

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		if modelsJSON {
			return printJSON(cmd.OutOrStdout(), cat)
		}
		data := pterm.TableData{{"Model", "Context", "Input $/1K", "Output $/1K"}}
		for _, m := range cat {
			data = append(data, []string{
				m.Name,
				fmt.Sprint(m.ContextTokens),
				fmt.Sprintf("%.5f", m.InputPerK),
				fmt.Sprintf("%.5f", m.OutputPerK),
			})
		}
		pterm.Printf("Runtimes: %v\n", ai.Providers())
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var syncPath string

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge model catalog/pricing from a JSON file",
	Long: `Merge model entries from a JSON object keyed by model name. Set
models_catalog in the config to load the file on every run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return errors.New("--file is required")
		}
		if err := ai.MergeCatalogFile(syncPath); err != nil {
			return errors.Wrap(err, "load catalog")
		}
		pterm.Success.Printf("Merged model catalog from %s (%d models)\n", syncPath, len(ai.Catalog()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)

	modelsShowCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
}
