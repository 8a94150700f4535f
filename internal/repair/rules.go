package repair

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
)

// Stage says when a rule is consulted.
type Stage int

const (
	// Preflight rules inspect the snippet text before the first attempt.
	Preflight Stage = iota
	// OnFailure rules inspect the failure of the first attempt.
	OnFailure
)

func (s Stage) String() string {
	if s == Preflight {
		return "preflight"
	}
	return "on_failure"
}

// Rule is a pure pattern-to-rewrite function. Trigger receives a nil error
// for Preflight rules. Rewrite reports false when it found nothing to change.
type Rule struct {
	Name    string
	Stage   Stage
	Trigger func(err *sandbox.ErrorDescriptor, src string) bool
	Rewrite func(err *sandbox.ErrorDescriptor, src string) (string, bool)
}

// Rule names.
const (
	RuleUnexpectedKwarg  = "unexpected-kwarg"
	RuleSumToMean        = "sum-to-mean"
	RuleDatetimeAccessor = "datetime-accessor"
	RuleFrameTruthiness  = "frame-truthiness"
)

// DefaultRateWords are the name fragments that mark a column as a rate-like
// quantity that must be averaged, not summed.
var DefaultRateWords = []string{
	"rate", "rates", "pct", "percent", "percentage", "ratio", "utilization", "utilisation", "util", "capacity",
}

// DefaultRules returns the standard catalogue in evaluation order.
func DefaultRules() []Rule { return StandardRules(DefaultRateWords) }

// StandardRules is the standard catalogue with a custom rate vocabulary.
// An empty list falls back to DefaultRateWords.
func StandardRules(rateWords []string) []Rule {
	if len(rateWords) == 0 {
		rateWords = DefaultRateWords
	}
	return []Rule{
		SumToMean(rateWords),
		UnexpectedKwarg(),
		DatetimeAccessor(),
		FrameTruthiness(),
	}
}

var kwargMessage = regexp.MustCompile(`got an unexpected keyword argument '(\w+)'`)

// UnexpectedKwarg strips the one keyword argument a helper rejected.
func UnexpectedKwarg() Rule {
	return Rule{
		Name:  RuleUnexpectedKwarg,
		Stage: OnFailure,
		Trigger: func(err *sandbox.ErrorDescriptor, _ string) bool {
			return err != nil && kwargMessage.MatchString(err.Message)
		},
		Rewrite: func(err *sandbox.ErrorDescriptor, src string) (string, bool) {
			m := kwargMessage.FindStringSubmatch(err.Message)
			if m == nil {
				return src, false
			}
			return StripKwargAt(src, m[1], err.Line)
		},
	}
}

// StripKwarg removes the first name=value argument from src together with
// the comma that separates it from its neighbours. The value ends at the
// first comma or closing bracket outside nested brackets and string literals.
func StripKwarg(src, name string) (string, bool) {
	return StripKwargAt(src, name, 0)
}

// StripKwargAt is StripKwarg restricted to the call on the 1-based line.
// A call spanning several lines is searched from that line on. Line 0, or a
// line without the argument, falls back to the whole snippet.
func StripKwargAt(src, name string, line int) (string, bool) {
	re := regexp.MustCompile(`([(,])\s*` + regexp.QuoteMeta(name) + `\s*=[^=]`)
	var loc []int
	if start, end, ok := lineSpan(src, line); ok {
		if l := re.FindStringSubmatchIndex(src[start:end]); l != nil {
			loc = shift(l, start)
		} else if l := re.FindStringSubmatchIndex(src[start:]); l != nil {
			loc = shift(l, start)
		}
	}
	if loc == nil {
		loc = re.FindStringSubmatchIndex(src)
	}
	if loc == nil {
		return src, false
	}
	sep := loc[2]
	valueStart := loc[1] - 1
	end := scanValue(src, valueStart)
	if end < 0 {
		return src, false
	}
	if src[sep] == ',' {
		return src[:sep] + src[end:], true
	}
	// First argument: drop the value and the following comma, if any.
	rest := src[end:]
	trimmed := strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(trimmed, ",") {
		rest = strings.TrimLeft(trimmed[1:], " \t")
	}
	return src[:sep+1] + rest, true
}

// lineSpan returns the byte offsets of the 1-based line in src.
func lineSpan(src string, line int) (int, int, bool) {
	if line <= 0 {
		return 0, 0, false
	}
	start := 0
	for n := 1; n < line; n++ {
		i := strings.IndexByte(src[start:], '\n')
		if i < 0 {
			return 0, 0, false
		}
		start += i + 1
	}
	end := len(src)
	if i := strings.IndexByte(src[start:], '\n'); i >= 0 {
		end = start + i
	}
	return start, end, true
}

func shift(loc []int, by int) []int {
	out := make([]int, len(loc))
	for i, v := range loc {
		if v >= 0 {
			v += by
		}
		out[i] = v
	}
	return out
}

// scanValue returns the index just past an argument value starting at i.
func scanValue(src string, i int) int {
	depth := 0
	var quote byte
	for ; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return trimRight(src, i)
			}
			depth--
		case ',':
			if depth == 0 {
				return trimRight(src, i)
			}
		}
	}
	return -1
}

func trimRight(src string, i int) int {
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t' || src[i-1] == '\n') {
		i--
	}
	return i
}

// columnSum matches df['col'].sum(), df["col"].sum() and df.col.sum().
var columnSum = regexp.MustCompile(`(\[\s*['"]([^'"\]]+)['"]\s*\]|\.([A-Za-z_]\w*))(\s*)\.sum\(\s*\)`)

// SumToMean rewrites .sum() to .mean() on columns whose name reads as a rate.
func SumToMean(words []string) Rule {
	vocab := make(map[string]bool, len(words))
	for _, w := range words {
		vocab[strings.ToLower(w)] = true
	}
	rateLike := func(name string) bool {
		for _, tok := range nameTokens(name) {
			if vocab[tok] {
				return true
			}
		}
		return false
	}
	rewrite := func(src string) (string, bool) {
		var b strings.Builder
		last := 0
		for _, loc := range columnSum.FindAllStringSubmatchIndex(src, -1) {
			var name string
			if loc[4] >= 0 {
				name = src[loc[4]:loc[5]]
			} else {
				name = src[loc[6]:loc[7]]
			}
			if !rateLike(name) || dividedAfter(src, loc[1]) {
				continue
			}
			b.WriteString(src[last:loc[0]])
			b.WriteString(src[loc[2]:loc[3]])
			b.WriteString(src[loc[8]:loc[9]])
			b.WriteString(".mean()")
			last = loc[1]
		}
		if last == 0 {
			return src, false
		}
		b.WriteString(src[last:])
		return b.String(), true
	}
	return Rule{
		Name:  RuleSumToMean,
		Stage: Preflight,
		Trigger: func(_ *sandbox.ErrorDescriptor, src string) bool {
			_, ok := rewrite(src)
			return ok
		},
		Rewrite: func(_ *sandbox.ErrorDescriptor, src string) (string, bool) {
			return rewrite(src)
		},
	}
}

// dividedAfter reports whether the sum ending at i is already divided,
// as in df['rate'].sum() / len(df).
func dividedAfter(src string, i int) bool {
	rest := strings.TrimLeft(src[i:], " \t")
	return strings.HasPrefix(rest, "/")
}

// nameTokens splits snake_case, kebab-case, spaces and camelCase into lower-case words.
func nameTokens(name string) []string {
	var toks []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return toks
}

var (
	dtUse      = regexp.MustCompile(`\b([A-Za-z_]\w*)\[\s*(['"])([^'"\]]+)['"]\s*\]\s*\.dt\b`)
	dtAttrUse  = regexp.MustCompile(`\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)\.dt\b`)
	dtMessage  = regexp.MustCompile(`(?i)\.?dt accessor|datetimelike`)
	assignLine = `^(\s*)%s\s*=[^=]`
)

// DatetimeAccessor converts columns used with .dt to datetimes when the
// first attempt failed because they were still text.
func DatetimeAccessor() Rule {
	return Rule{
		Name:  RuleDatetimeAccessor,
		Stage: OnFailure,
		Trigger: func(err *sandbox.ErrorDescriptor, _ string) bool {
			return err != nil && dtMessage.MatchString(err.Message)
		},
		Rewrite: func(_ *sandbox.ErrorDescriptor, src string) (string, bool) {
			return InjectDatetime(src)
		},
	}
}

// InjectDatetime inserts X['col'] = pd.to_datetime(X['col'], errors='coerce')
// for every X['col'].dt or X.col.dt use. The conversion goes right after the line that
// copies the dataset into X, or at the top when X is df itself.
func InjectDatetime(src string) (string, bool) {
	lines := strings.Split(src, "\n")
	type target struct{ frame, col string }
	var targets []target
	seen := map[target]bool{}
	add := func(frame, col string) {
		t := target{frame, col}
		if !seen[t] {
			seen[t] = true
			targets = append(targets, t)
		}
	}
	for _, m := range dtUse.FindAllStringSubmatch(src, -1) {
		add(m[1], m[3])
	}
	for _, m := range dtAttrUse.FindAllStringSubmatch(src, -1) {
		if m[1] == "pd" || m[1] == "np" {
			continue
		}
		add(m[1], m[2])
	}
	inserts := map[int][]string{}
	for _, t := range targets {
		if alreadyConverted(src, t.frame, t.col) {
			continue
		}
		at, indent := insertionPoint(lines, t.frame)
		if at < 0 {
			continue
		}
		inserts[at] = append(inserts[at], fmt.Sprintf("%s%s['%s'] = pd.to_datetime(%s['%s'], errors='coerce')",
			indent, t.frame, t.col, t.frame, t.col))
	}
	if len(inserts) == 0 {
		return src, false
	}
	var out []string
	for i := 0; i <= len(lines); i++ {
		out = append(out, inserts[i]...)
		if i < len(lines) {
			out = append(out, lines[i])
		}
	}
	return strings.Join(out, "\n"), true
}

func alreadyConverted(src, frame, col string) bool {
	re := regexp.MustCompile(regexp.QuoteMeta(frame) + `\[\s*['"]` + regexp.QuoteMeta(col) + `['"]\s*\]\s*=\s*pd\.to_datetime`)
	return re.MatchString(src)
}

// insertionPoint returns the line index to insert before and its indentation.
func insertionPoint(lines []string, frame string) (int, string) {
	if frame == "df" {
		return 0, ""
	}
	assign := regexp.MustCompile(fmt.Sprintf(assignLine, regexp.QuoteMeta(frame)))
	first := -1
	indent := ""
	for i, l := range lines {
		m := assign.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		if strings.Contains(l, "copy(") {
			return i + 1, m[1]
		}
		if first < 0 {
			first, indent = i+1, m[1]
		}
	}
	return first, indent
}

var truthMessage = regexp.MustCompile(`(?i)truth value of an? \w+ is ambiguous`)

// FrameTruthiness rewrites bare truth tests of tabular values. On the line
// that failed every identifier is rewritten; elsewhere only frame-named ones.
func FrameTruthiness() Rule {
	return Rule{
		Name:  RuleFrameTruthiness,
		Stage: OnFailure,
		Trigger: func(err *sandbox.ErrorDescriptor, _ string) bool {
			return err != nil && truthMessage.MatchString(err.Message)
		},
		Rewrite: func(err *sandbox.ErrorDescriptor, src string) (string, bool) {
			line := 0
			if err != nil {
				line = err.Line
			}
			return RewriteTruthiness(src, line, frameNamed)
		},
	}
}

var (
	ifNot     = regexp.MustCompile(`\b(if|elif)\s+not\s+([A-Za-z_]\w*)\s*:`)
	ifBare    = regexp.MustCompile(`\b(if|elif)\s+([A-Za-z_]\w*)\s*:`)
	andOrBare = regexp.MustCompile(`\b(and|or)\s+([A-Za-z_]\w*)\s*:`)
	frameName = regexp.MustCompile(`^\w*(df|frame)\w*$`)
)

var keywords = map[string]bool{
	"True": true, "False": true, "None": true, "not": true, "len": true, "isinstance": true, "type": true,
}

func frameNamed(name string) bool { return frameName.MatchString(name) }

// RewriteTruthiness replaces `if X:`, `if not X:`, `and X:` and `or X:` with
// explicit null and row-count tests. Identifiers on failedLine are always
// rewritten; on other lines only when eligible(name) holds.
func RewriteTruthiness(src string, failedLine int, eligible func(string) bool) (string, bool) {
	lines := strings.Split(src, "\n")
	changed := false
	for i, l := range lines {
		ok := func(name string) bool {
			if keywords[name] {
				return false
			}
			return i+1 == failedLine || eligible(name)
		}
		nl := ifNot.ReplaceAllStringFunc(l, func(m string) string {
			sub := ifNot.FindStringSubmatch(m)
			if !ok(sub[2]) {
				return m
			}
			return fmt.Sprintf("%s %s is None or len(%s) == 0:", sub[1], sub[2], sub[2])
		})
		nl = ifBare.ReplaceAllStringFunc(nl, func(m string) string {
			sub := ifBare.FindStringSubmatch(m)
			if !ok(sub[2]) {
				return m
			}
			return fmt.Sprintf("%s %s is not None and len(%s) > 0:", sub[1], sub[2], sub[2])
		})
		nl = andOrBare.ReplaceAllStringFunc(nl, func(m string) string {
			sub := andOrBare.FindStringSubmatch(m)
			if !ok(sub[2]) {
				return m
			}
			return fmt.Sprintf("%s %s is not None and len(%s) > 0:", sub[1], sub[2], sub[2])
		})
		if nl != l {
			lines[i] = nl
			changed = true
		}
	}
	return strings.Join(lines, "\n"), changed
}
