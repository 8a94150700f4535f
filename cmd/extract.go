package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
)

var (
	extKind string
	extText string
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extract the structured plan from raw model output",
	Long: `Extract the first JSON object from model output, tolerating code fences,
surrounding prose and trailing commas. With --kind the plan is also decoded
into a dashboard, cleaning or indicator plan.`,
	Example: `  dashloom extract reply.txt
  pbpaste | dashloom extract - --kind dashboard`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		text, err := readSource(extText, path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return errors.New("nothing to extract: pass a file, '-' for stdin, or --text")
		}
		plan, err := extract.Parse(text)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch extKind {
		case "":
			return printJSON(out, plan)
		case "dashboard":
			d, err := extract.DecodeDashboard(plan)
			if err != nil {
				return err
			}
			return printJSON(out, d)
		case "cleaning":
			c, err := extract.DecodeCleaning(plan)
			if err != nil {
				return err
			}
			return printJSON(out, c)
		case "indicators":
			p, err := extract.DecodeIndicators(plan)
			if err != nil {
				return err
			}
			return printJSON(out, p)
		}
		return errors.Newf("unknown --kind: %s (use dashboard|cleaning|indicators)", extKind)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extKind, "kind", "", "decode the plan as dashboard|cleaning|indicators")
	extractCmd.Flags().StringVar(&extText, "text", "", "model output given inline")
}
