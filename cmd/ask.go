package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

var (
	askData           datasetFlags
	askKind           string
	askQuestion       string
	askModel          string
	askProvider       string
	askOllamaHost     string
	askMaxTokens      int
	askTimeoutSec     int
	askBudget         float64
	askSamples        int
	askDryRun         bool
	askPrintPrompt    bool
	askJSON           bool
	askOutput         string
	askSaveReply      string
	askSaveIndicators string
	askCleaned        string
)

var askCmd = &cobra.Command{
	Use:   "ask <dataset> [request]",
	Short: "Ask a model for a plan and run it against the dataset",
	Long: `Profile the dataset, ask the configured model for a dashboard, cleaning or
indicator plan, extract the plan from the reply and run every snippet with
automatic repair.`,
	Example: `  dashloom ask sales.csv "revenue by region and month"
  dashloom ask sales.csv --question "Which region is slipping?" -o dashboard.md
  dashloom ask raw.csv --kind cleaning --cleaned clean.csv
  dashloom ask sales.csv --kind indicators --save-indicators kpis.yaml
  dashloom ask sales.csv --provider ollama --model llama3.1:8b`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := askData.load(args[0])
		if err != nil {
			return err
		}
		request := ""
		if len(args) == 2 {
			request = args[1]
		}
		prompt, err := buildPrompt(ds, askKind, request, askQuestion)
		if err != nil {
			return err
		}
		if cfg != nil && cfg.Temperature > 0 {
			prompt.Temperature = cfg.Temperature
		}

		model := selectModel(cfg, askModel)
		maxTokens := askMaxTokens
		if maxTokens == 0 && cfg != nil {
			maxTokens = cfg.MaxTokens
		}
		if maxTokens == 0 {
			maxTokens = 4096
		}
		tokens := prompt.Total()
		pterm.Info.Printf("Prompt: %s plan, ≈%d tokens (%s)\n", prompt.Kind, tokens, strings.Join(ai.SortedTokens(prompt), ", "))
		if !ai.FitsContext(model, tokens, maxTokens) {
			pterm.Warning.Printf("Prompt (%d tokens) + max-tokens (%d) exceeds the %s context window\n", tokens, maxTokens, model)
		}
		if est, ok := ai.EstimateCostUSD(model, tokens, maxTokens); ok {
			pterm.Info.Printf("Model: %s, estimated cost up to ~$%.4f\n", model, est)
			if err := enforceBudget(est, askBudget); err != nil {
				return err
			}
		}
		if askPrintPrompt || askDryRun {
			pterm.DefaultSection.Println("Prompt")
			fmt.Fprintln(cmd.OutOrStdout(), prompt.Text)
		}
		if askDryRun {
			return nil
		}

		rt, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: askProvider, OllamaHost: askOllamaHost})
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if askTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(askTimeoutSec)*time.Second)
			defer cancel()
		}

		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting for %s (%s)...", model, provider))
		start := time.Now()
		plan, resp, err := ai.Ask(ctx, rt, prompt, model, maxTokens)
		if resp != nil && askSaveReply != "" {
			if werr := utils.SafeWriteFile(askSaveReply, []byte(resp.Text())); werr != nil {
				pterm.Warning.Printf("could not save reply: %v\n", werr)
			}
		}
		if err != nil {
			if spinner != nil {
				spinner.Fail("Model request failed")
			}
			if resp != nil {
				fmt.Fprintln(os.Stderr, resp.Text())
			}
			return err
		}
		if spinner != nil {
			spinner.Success(fmt.Sprintf("Reply in %.1fs (%d prompt + %d completion tokens)",
				time.Since(start).Seconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens))
		}

		switch prompt.Kind {
		case ai.PlanCleaning:
			return runCleaningPlan(cmd, plan, ds)
		case ai.PlanIndicators:
			return runIndicatorPlan(cmd, plan)
		}
		d, err := extract.DecodeDashboard(plan)
		if err != nil {
			return err
		}
		if askSaveIndicators != "" {
			if err := saveIndicators(monitor.FromKPIs(d.KPIs)); err != nil {
				return err
			}
		}
		return showDashboard(cmd, engine().RunDashboard(d, ds), askJSON, askOutput)
	},
}

func buildPrompt(ds *dataset.Dataset, kind, request, question string) (ai.Prompt, error) {
	budget := ai.DefaultProfileBudget
	if cfg != nil && cfg.ProfileTokens > 0 {
		budget = cfg.ProfileTokens
	}
	profile := ai.ProfileDataset(ds, askSamples)
	switch strings.ToLower(kind) {
	case "", ai.PlanDashboard:
		return ai.DashboardPrompt(profile, request, question, budget), nil
	case ai.PlanCleaning:
		return ai.CleaningPrompt(profile, question, budget), nil
	case ai.PlanIndicators:
		return ai.IndicatorPrompt(profile, request, budget), nil
	}
	return ai.Prompt{}, errors.Newf("unknown --kind: %s (use dashboard|cleaning|indicators)", kind)
}

func runCleaningPlan(cmd *cobra.Command, plan extract.Plan, ds *dataset.Dataset) error {
	cp, err := extract.DecodeCleaning(plan)
	if err != nil {
		return err
	}
	if cp.Summary.Overview != "" {
		pterm.DefaultSection.Println(cp.Summary.Title)
		pterm.Println(cp.Summary.Overview)
	}
	for _, is := range cp.Issues {
		pterm.Info.Printf("%s %s: %s\n", is.Severity, is.IssueType, is.FixDescription)
	}
	out := engine().Clean(cp.Code, ds)
	if askJSON {
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		printOutcome(out)
	}
	cleaned, ok := out.Value.(*dataset.Dataset)
	if !ok {
		return errors.Newf("cleaning failed: %s", out.Err.Raw)
	}
	if askCleaned != "" {
		var buf bytes.Buffer
		if err := dataset.WriteCSV(&buf, cleaned); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(askCleaned, buf.Bytes()); err != nil {
			return errors.Wrap(err, "write cleaned dataset")
		}
		pterm.Success.Printf("Saved cleaned dataset to %s\n", askCleaned)
	}
	return nil
}

func runIndicatorPlan(cmd *cobra.Command, plan extract.Plan) error {
	ip, err := extract.DecodeIndicators(plan)
	if err != nil {
		return err
	}
	inds := monitor.FromKPIs(ip.Indicators)
	if askJSON {
		if err := printJSON(cmd.OutOrStdout(), inds); err != nil {
			return err
		}
	} else {
		data := pterm.TableData{{"Indicator", "Code"}}
		for _, in := range inds {
			data = append(data, []string{in.Label, in.Code})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	if askSaveIndicators == "" {
		return nil
	}
	return saveIndicators(inds)
}

func saveIndicators(inds []monitor.Indicator) error {
	if err := monitor.SaveIndicators(askSaveIndicators, inds); err != nil {
		return err
	}
	pterm.Success.Printf("Saved %d indicators to %s\n", len(inds), askSaveIndicators)
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askData.register(askCmd)
	askCmd.Flags().StringVarP(&askKind, "kind", "k", ai.PlanDashboard, "plan to ask for: dashboard|cleaning|indicators")
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "business question the plan should answer")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model name (defaults to config default_model)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "runtime: openrouter|ollama (defaults to config)")
	askCmd.Flags().StringVar(&askOllamaHost, "ollama-host", "", "Ollama host URL (overrides config)")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "max completion tokens (defaults to config)")
	askCmd.Flags().IntVar(&askTimeoutSec, "timeout-sec", 180, "overall request timeout in seconds")
	askCmd.Flags().Float64Var(&askBudget, "budget-limit", 0, "abort when the estimated cost exceeds this many USD")
	askCmd.Flags().IntVar(&askSamples, "samples", 5, "sample values per column in the profile")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "print the prompt and exit without calling the model")
	askCmd.Flags().BoolVar(&askPrintPrompt, "print-prompt", false, "print the prompt before sending")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print results as JSON")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", "", "write the dashboard to a Markdown or .json file")
	askCmd.Flags().StringVar(&askSaveReply, "save-reply", "", "save the raw model reply to a file")
	askCmd.Flags().StringVar(&askSaveIndicators, "save-indicators", "", "save the plan's KPIs as indicator YAML")
	askCmd.Flags().StringVar(&askCleaned, "cleaned", "", "cleaning plans: path to write the cleaned CSV")
}
