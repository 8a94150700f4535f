package monitor

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
)

// Indicator is a named snippet whose numeric result is tracked over time.
type Indicator struct {
	Label  string `yaml:"label" json:"label"`
	Code   string `yaml:"code" json:"code"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

const (
	presetColumns = 6
	presetFormat  = "{:,.2f}"
)

// PresetIndicators proposes the mean of each of the first numeric columns.
func PresetIndicators(ds *dataset.Dataset) []Indicator {
	var out []Indicator
	for _, c := range ds.Columns {
		if c.Kind != dataset.KindNumeric {
			continue
		}
		out = append(out, Indicator{
			Label:  titleCase(strings.ReplaceAll(c.Name, "_", " ")),
			Code:   fmt.Sprintf("result = df[%q].mean()", c.Name),
			Format: presetFormat,
		})
		if len(out) == presetColumns {
			break
		}
	}
	return out
}

// FromKPIs converts dashboard KPIs into indicators.
func FromKPIs(kpis []extract.KPI) []Indicator {
	out := make([]Indicator, 0, len(kpis))
	for _, k := range kpis {
		out = append(out, Indicator{Label: k.Label, Code: k.Code, Format: k.Format})
	}
	return out
}

type indicatorFile struct {
	Indicators []Indicator `yaml:"indicators"`
}

// LoadIndicators reads indicator definitions from a YAML file holding either
// a list or a mapping with an "indicators" key.
func LoadIndicators(path string) ([]Indicator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read indicators %s", path)
	}
	return ParseIndicators(b)
}

// ParseIndicators decodes indicator definitions from YAML.
func ParseIndicators(b []byte) ([]Indicator, error) {
	var list []Indicator
	if err := yaml.Unmarshal(b, &list); err != nil {
		var f indicatorFile
		if err2 := yaml.Unmarshal(b, &f); err2 != nil {
			return nil, errors.Wrap(errors.ErrInvalidRequest, err2.Error())
		}
		list = f.Indicators
	}
	seen := map[string]bool{}
	for i, ind := range list {
		if strings.TrimSpace(ind.Label) == "" || strings.TrimSpace(ind.Code) == "" {
			return nil, errors.NewInvalidRequestError("indicator %d needs a label and code", i+1)
		}
		if seen[ind.Label] {
			return nil, errors.NewInvalidRequestError("duplicate indicator label %q", ind.Label)
		}
		seen[ind.Label] = true
	}
	return list, nil
}

// SaveIndicators writes definitions in the format LoadIndicators reads.
func SaveIndicators(path string, inds []Indicator) error {
	b, err := yaml.Marshal(indicatorFile{Indicators: inds})
	if err != nil {
		return errors.Wrap(err, "marshal indicators")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write indicators")
	}
	return nil
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return sb.String()
}
