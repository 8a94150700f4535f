package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dashloom-cli/internal/config"
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
	"github.com/KaramelBytes/dashloom-cli/internal/report"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

// datasetFlags are shared by every command that loads a dataset.
type datasetFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	maxRows    int
	sheet      string
	parseDates bool
}

func (f *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default by extension)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "maximum rows to load (0 = default cap)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
	cmd.Flags().BoolVar(&f.parseDates, "parse-dates", false, "load columns whose every value is a date as temporal")
}

func (f *datasetFlags) options() (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	if f.maxRows > 0 {
		opt.MaxRows = f.maxRows
	}
	opt.ParseDates = f.parseDates
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|":
		opt.Delimiter = '|'
	default:
		return opt, errors.Newf("unsupported --delimiter: %s", f.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, errors.Newf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, errors.Newf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

func (f *datasetFlags) load(path string) (*dataset.Dataset, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	if f.sheet != "" {
		return dataset.ReadXLSX(path, f.sheet, opt)
	}
	return dataset.Load(path, opt)
}

// readSource returns the inline value, or the contents of path ("-" reads stdin).
func readSource(inline, path string, stdin io.Reader) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if path == "" {
		return "", nil
	}
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read stdin")
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(b), nil
}

func engine() *repair.Engine {
	if cfg == nil {
		return repair.New()
	}
	return cfg.Engine()
}

// openMonitor opens the configured history. The returned close func flushes
// nothing; every snapshot is persisted as it is recorded.
func openMonitor(ctx context.Context) (*monitor.Monitor, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("no config loaded")
	}
	h, store, err := cfg.OpenHistory(ctx)
	if err != nil {
		return nil, nil, err
	}
	m := monitor.New(h,
		monitor.WithEngine(cfg.Engine()),
		monitor.WithWeights(cfg.Quality),
		monitor.WithStore(store))
	return m, func() { _ = store.Close() }, nil
}

// loadIndicators reads definitions from path or proposes presets for ds.
func loadIndicators(path string, ds *dataset.Dataset) ([]monitor.Indicator, error) {
	if path == "" {
		inds := monitor.PresetIndicators(ds)
		if len(inds) == 0 {
			return nil, errors.New("no numeric columns to track; pass --indicators")
		}
		return inds, nil
	}
	return monitor.LoadIndicators(path)
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func normalizeProvider(name string) string {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case "local", "ollama":
		return ai.ProviderOllama
	case "openai", "anthropic", "google", "gemini", "meta", "llama":
		return ai.ProviderOpenRouter
	default:
		return p
	}
}

func buildRuntime(c *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	provider := normalizeProvider(opts.ProviderFlag)
	if provider == "" && c != nil {
		provider = normalizeProvider(c.DefaultProvider)
	}
	if provider == "" {
		provider = ai.ProviderOpenRouter
	}
	var rc ai.RuntimeConfig
	if c != nil {
		rc = c.Runtime(provider)
	}
	if h := strings.TrimSpace(opts.OllamaHost); h != "" {
		rc.Host = h
	}
	rt, err := ai.NewRuntime(provider, rc)
	if err != nil {
		return nil, provider, err
	}
	return rt, provider, nil
}

func selectModel(c *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c != nil && c.DefaultModel != "" {
		return c.DefaultModel
	}
	return ai.DefaultModel
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return errors.Newf("estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return errors.Wrap(err, "marshal output")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// writeOutput saves content to path as Markdown, or as JSON of v for .json paths.
func writeOutput(path, markdown string, v any) error {
	if path == "" {
		return nil
	}
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := utils.WriteJSON(path, v); err != nil {
			return errors.Wrap(err, "write output")
		}
	} else if err := utils.SafeWriteFile(path, []byte(markdown)); err != nil {
		return errors.Wrap(err, "write output")
	}
	pterm.Success.Printf("Saved output to %s\n", path)
	return nil
}

// printOutcome shows one snippet result on the terminal.
func printOutcome(o sandbox.Outcome) {
	if o.Repair != nil {
		pterm.Warning.Printf("Repaired with %s (attempts: %d)\n", strings.Join(o.Repair.Rules, ", "), o.Attempts)
		pterm.Println(pterm.Gray(strings.TrimSpace(o.Snippet)))
	}
	if o.Output != "" {
		pterm.Print(o.Output)
	}
	switch {
	case o.Err != nil:
		pterm.Error.Println(o.Err.Raw)
	case o.Value == nil:
		pterm.Info.Println("Snippet ran; no result was set")
	default:
		printValue(o.Value)
	}
	if o.Note != "" {
		pterm.Info.Println(o.Note)
	}
}

func printValue(v any) {
	switch x := v.(type) {
	case *dataset.Dataset:
		printTable(x, 20)
	case json.Marshaler:
		b, err := utils.PrettyJSON(x)
		if err != nil {
			pterm.Error.Println(err)
			return
		}
		pterm.Println(string(b))
	default:
		pterm.Println(pterm.LightCyan(strings.TrimSpace(report.Outcome(sandbox.Outcome{Value: v}))))
	}
}

// printTable renders the first limit rows of ds.
func printTable(ds *dataset.Dataset, limit int) {
	data := pterm.TableData{ds.Names()}
	n := ds.Rows()
	if limit > 0 && n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		row := ds.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = dataset.FormatCell(v)
		}
		data = append(data, cells)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	if ds.Rows() > n {
		pterm.Printf("… %d more rows (%d x %d)\n", ds.Rows()-n, ds.Rows(), ds.Width())
	}
}
