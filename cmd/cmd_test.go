package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dashloom-cli/internal/config"
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
)

func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

const salesCSV = "region,revenue,fill_rate\nnorth,100,0.2\nsouth,300,0.4\nsouth,300,0.4\n"

// setup isolates HOME, loads a fresh config and writes the sales fixture.
func setup(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")
	c, err := cfgpkg.Load("")
	require.NoError(t, err)
	cfg = c
	t.Cleanup(func() { cfg = nil })
	return writeFile(t, home, "sales.csv", salesCSV)
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScoreCommandJSON(t *testing.T) {
	path := setup(t)
	out, err := execute(t, "score", path, "--json")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, res, "score")
	assert.NotEmpty(t, res["issues"])
}

func TestRunCommandRepairsSum(t *testing.T) {
	path := setup(t)
	out, err := execute(t, "run", path, "--code", "result = df['fill_rate'].sum()", "--json")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 0.3333, res["value"], 1e-3)
	assert.Contains(t, res["snippet"], ".mean()")
}

func TestRunCommandReportsFault(t *testing.T) {
	path := setup(t)
	_, err := execute(t, "run", path, "--code", "result = df['nope'].sum()", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KeyError")
}

func TestExtractCommand(t *testing.T) {
	setup(t)
	reply := "Here you go:\n```json\n{\"title\": \"Sales\", \"kpis\": [], \"visualizations\": [],}\n```"
	out, err := execute(t, "extract", "--text", reply, "--kind", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Sales"`)

	_, err = execute(t, "extract", "--text", "no plan here", "--kind", "")
	require.Error(t, err)
}

func TestSnapshotThenMonitor(t *testing.T) {
	path := setup(t)
	dir := filepath.Dir(path)
	inds := writeFile(t, dir, "kpis.yaml", "indicators:\n  - label: revenue\n    code: result = df['revenue'].sum()\n")

	_, err := execute(t, "snapshot", path, "--indicators", inds, "--label", "monday", "--json")
	require.NoError(t, err)

	doubled := writeFile(t, dir, "doubled.csv", "region,revenue,fill_rate\nnorth,200,0.2\nsouth,600,0.4\nsouth,600,0.4\n")
	out, err := execute(t, "monitor", doubled, "--indicators", inds, "--json")
	require.NoError(t, err)

	var rep monitor.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, monitor.StatusCritical, rep.Status)
	assert.Equal(t, "monday", rep.Baseline)
	require.Len(t, rep.Entries, 1)
	assert.InDelta(t, 100, rep.Entries[0].ChangePct, 1e-9)

	_, err = execute(t, "monitor", doubled, "--indicators", inds, "--json", "--fail-on", "critical")
	require.Error(t, err)

	out, err = execute(t, "history", "--json")
	require.NoError(t, err)
	var list []monitor.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 1)
}

func TestCleanCommandWritesCSV(t *testing.T) {
	path := setup(t)
	dest := filepath.Join(filepath.Dir(path), "clean.csv")
	_, err := execute(t, "clean", path, "--code", "df_clean = df.drop_duplicates()", "-o", dest, "--json")
	require.NoError(t, err)

	ds, err := dataset.ReadCSV(dest, dataset.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Rows())
}

func TestAskDryRunPrintsPrompt(t *testing.T) {
	path := setup(t)
	out, err := execute(t, "ask", path, "revenue by region", "--dry-run", "--kind", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "revenue by region")
	assert.Contains(t, out, "fill_rate")
}

func TestDatasetFlagOptions(t *testing.T) {
	f := datasetFlags{delimiter: "tab", decimal: "comma", thousands: "space", maxRows: 10}
	opt, err := f.options()
	require.NoError(t, err)
	assert.Equal(t, '\t', opt.Delimiter)
	assert.Equal(t, ',', opt.DecimalSeparator)
	assert.Equal(t, ' ', opt.ThousandsSeparator)
	assert.Equal(t, 10, opt.MaxRows)

	for _, bad := range []datasetFlags{{delimiter: "#"}, {decimal: "x"}, {thousands: "_"}} {
		_, err := bad.options()
		assert.Error(t, err)
	}
}

func TestReadSource(t *testing.T) {
	got, err := readSource("inline", "ignored", nil)
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	got, err = readSource("", "-", bytes.NewBufferString("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	_, err = readSource("", filepath.Join(t.TempDir(), "missing.py"), nil)
	assert.Error(t, err)
}

func TestSelectModelAndProvider(t *testing.T) {
	c := &cfgpkg.Global{DefaultModel: "cfg-model"}
	assert.Equal(t, "cli-model", selectModel(c, "cli-model"))
	assert.Equal(t, "cfg-model", selectModel(c, ""))
	assert.Equal(t, ai.DefaultModel, selectModel(nil, ""))

	assert.Equal(t, ai.ProviderOllama, normalizeProvider("Local"))
	assert.Equal(t, ai.ProviderOpenRouter, normalizeProvider("anthropic"))

	_, provider, err := buildRuntime(&cfgpkg.Global{DefaultProvider: "ollama"}, runtimeOptions{})
	require.NoError(t, err)
	assert.Equal(t, ai.ProviderOllama, provider)
	_, _, err = buildRuntime(nil, runtimeOptions{ProviderFlag: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestEnforceBudget(t *testing.T) {
	assert.NoError(t, enforceBudget(0, 1))
	assert.NoError(t, enforceBudget(0.5, 0))
	assert.Error(t, enforceBudget(2, 1))
}

func TestSetConfigValue(t *testing.T) {
	c := &cfgpkg.Global{Thresholds: monitor.DefaultThresholds()}
	require.NoError(t, setConfigValue(c, "thresholds.high", "60"))
	assert.Equal(t, 60.0, c.Thresholds.High)
	assert.Equal(t, 20.0, c.Thresholds.Medium)
	require.NoError(t, setConfigValue(c, "thresholds.trend_window", "5"))
	assert.Equal(t, 5, c.Thresholds.TrendWindow)

	require.NoError(t, setConfigValue(c, "rate_words", "Rate, Share ,"))
	assert.Equal(t, []string{"rate", "share"}, c.RateWords)
	require.NoError(t, setConfigValue(c, "default_provider", "LOCAL"))
	assert.Equal(t, ai.ProviderOllama, c.DefaultProvider)
	require.NoError(t, setConfigValue(c, "history_capacity", "25"))
	assert.Equal(t, 25, c.HistoryCapacity)

	assert.Error(t, setConfigValue(c, "thresholds.bogus", "1"))
	assert.Error(t, setConfigValue(c, "history_store", "redis"))
	assert.Error(t, setConfigValue(c, "max_tokens", "lots"))
	assert.Error(t, setConfigValue(c, "nope", "1"))
}

func TestFailOn(t *testing.T) {
	assert.NoError(t, failOn("", monitor.StatusCritical))
	assert.NoError(t, failOn("critical", monitor.StatusWarning))
	assert.Error(t, failOn("critical", monitor.StatusCritical))
	assert.Error(t, failOn("warning", monitor.StatusWarning))
	assert.NoError(t, failOn("warning", monitor.StatusHealthy))
	assert.Error(t, failOn("sometimes", monitor.StatusHealthy))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "******", mask("abc"))
	assert.Equal(t, "sk-****xyz", mask("sk-1234567xyz"))
}
