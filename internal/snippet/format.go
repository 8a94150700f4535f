package snippet

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type formatSpec struct {
	fill      rune
	align     byte
	sign      byte
	alt       bool
	zero      bool
	width     int
	grouping  byte
	precision int
	kind      byte
}

func parseSpec(spec string) (formatSpec, error) {
	fs := formatSpec{fill: ' ', precision: -1}
	rs := []rune(spec)
	i := 0
	isAlign := func(r rune) bool { return r == '<' || r == '>' || r == '^' || r == '=' }
	if len(rs) >= 2 && isAlign(rs[1]) {
		fs.fill, fs.align = rs[0], byte(rs[1])
		i = 2
	} else if len(rs) >= 1 && isAlign(rs[0]) {
		fs.align = byte(rs[0])
		i = 1
	}
	if i < len(rs) && (rs[i] == '+' || rs[i] == '-' || rs[i] == ' ') {
		fs.sign = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '#' {
		fs.alt = true
		i++
	}
	if i < len(rs) && rs[i] == '0' {
		fs.zero = true
		i++
	}
	start := i
	for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
		i++
	}
	if i > start {
		fs.width, _ = strconv.Atoi(string(rs[start:i]))
	}
	if i < len(rs) && (rs[i] == ',' || rs[i] == '_') {
		fs.grouping = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '.' {
		i++
		start = i
		for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
			i++
		}
		if i == start {
			return fs, valueErrorf("Format specifier missing precision")
		}
		fs.precision, _ = strconv.Atoi(string(rs[start:i]))
	}
	if i < len(rs) {
		fs.kind = byte(rs[i])
		i++
	}
	if i != len(rs) {
		return fs, valueErrorf("Invalid format specifier '%s'", spec)
	}
	return fs, nil
}

// FormatSpec formats v with a format-spec mini-language string such as ",.2f".
func FormatSpec(v Value, spec string) (string, error) {
	if t, ok := v.(time.Time); ok && strings.Contains(spec, "%") {
		return Strftime(t, spec), nil
	}
	if spec == "" {
		return Str(v), nil
	}
	fs, err := parseSpec(spec)
	if err != nil {
		return "", err
	}
	var body string
	numeric := false
	switch x := v.(type) {
	case float64, bool:
		f, _ := toFloat(x)
		numeric = true
		if body, err = formatNumber(f, fs, TypeName(v)); err != nil {
			return "", err
		}
	case string:
		if fs.kind != 0 && fs.kind != 's' {
			return "", valueErrorf("Unknown format code '%c' for object of type 'str'", fs.kind)
		}
		body = x
		if fs.precision >= 0 && fs.precision < utf8.RuneCountInString(x) {
			body = string([]rune(x)[:fs.precision])
		}
	default:
		if fs.kind != 0 && fs.kind != 's' {
			return "", typeErrorf("unsupported format string passed to %s.__format__", TypeName(v))
		}
		body = Str(v)
	}
	return pad(body, fs, numeric), nil
}

func formatNumber(f float64, fs formatSpec, typeName string) (string, error) {
	neg := f < 0 || (f == 0 && math.Signbit(f))
	a := math.Abs(f)
	var digits string
	switch fs.kind {
	case 'f', 'F':
		digits = strconv.FormatFloat(a, 'f', precisionOr(fs.precision, 6), 64)
	case 'e', 'E':
		digits = strconv.FormatFloat(a, 'e', precisionOr(fs.precision, 6), 64)
		if fs.kind == 'E' {
			digits = strings.ToUpper(digits)
		}
	case 'g', 'G':
		p := precisionOr(fs.precision, 6)
		if p == 0 {
			p = 1
		}
		digits = strconv.FormatFloat(a, 'g', p, 64)
		if fs.kind == 'G' {
			digits = strings.ToUpper(digits)
		}
	case '%':
		digits = strconv.FormatFloat(a*100, 'f', precisionOr(fs.precision, 6), 64) + "%"
	case 'd', 'n':
		if !integral(f) {
			return "", valueErrorf("Unknown format code '%c' for object of type 'float'", fs.kind)
		}
		digits = strconv.FormatFloat(a, 'f', 0, 64)
	case 0:
		if fs.precision >= 0 {
			digits = strconv.FormatFloat(a, 'g', max(fs.precision, 1), 64)
		} else {
			digits = formatFloat(a)
		}
	default:
		return "", valueErrorf("Unknown format code '%c' for object of type '%s'", fs.kind, typeName)
	}
	if math.IsNaN(f) {
		digits, neg = "nan", false
	} else if math.IsInf(f, 0) {
		digits = "inf"
	}
	if fs.grouping != 0 {
		digits = groupDigits(digits, fs.grouping)
	}
	switch {
	case neg:
		digits = "-" + digits
	case fs.sign == '+':
		digits = "+" + digits
	case fs.sign == ' ':
		digits = " " + digits
	}
	return digits, nil
}

func precisionOr(p, def int) int {
	if p < 0 {
		return def
	}
	return p
}

// groupDigits inserts a thousands separator into the integer part of digits.
func groupDigits(digits string, sep byte) string {
	end := len(digits)
	for i, c := range digits {
		if c < '0' || c > '9' {
			end = i
			break
		}
	}
	intPart, rest := digits[:end], digits[end:]
	if len(intPart) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + rest
}

func pad(body string, fs formatSpec, numeric bool) string {
	n := utf8.RuneCountInString(body)
	if fs.width <= n {
		return body
	}
	fill := string(fs.fill)
	gap := fs.width - n
	align := fs.align
	if fs.zero && align == 0 {
		fill, align = "0", '='
	}
	if align == 0 {
		align = '<'
		if numeric {
			align = '>'
		}
	}
	switch align {
	case '>':
		return strings.Repeat(fill, gap) + body
	case '^':
		left := gap / 2
		return strings.Repeat(fill, left) + body + strings.Repeat(fill, gap-left)
	case '=':
		if body != "" && (body[0] == '-' || body[0] == '+' || body[0] == ' ') {
			return body[:1] + strings.Repeat(fill, gap) + body[1:]
		}
		return strings.Repeat(fill, gap) + body
	}
	return body + strings.Repeat(fill, gap)
}

// FormatTemplate applies str.format semantics to a template.
func FormatTemplate(tmpl string, pos []Value, kw map[string]Value) (string, error) {
	var b strings.Builder
	rs := []rune(tmpl)
	auto := 0
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		if c == '{' && i+1 < len(rs) && rs[i+1] == '{' {
			b.WriteRune('{')
			i++
			continue
		}
		if c == '}' && i+1 < len(rs) && rs[i+1] == '}' {
			b.WriteRune('}')
			i++
			continue
		}
		if c != '{' {
			b.WriteRune(c)
			continue
		}
		j := i + 1
		for j < len(rs) && rs[j] != '}' {
			j++
		}
		if j >= len(rs) {
			return "", valueErrorf("Single '{' encountered in format string")
		}
		field := string(rs[i+1 : j])
		i = j
		name, spec, _ := strings.Cut(field, ":")
		conv := ""
		if k := strings.Index(name, "!"); k >= 0 {
			name, conv = name[:k], name[k+1:]
		}
		var v Value
		switch {
		case name == "":
			if auto >= len(pos) {
				return "", Errorf("IndexError", "Replacement index %d out of range for positional args tuple", auto)
			}
			v = pos[auto]
			auto++
		case name[0] >= '0' && name[0] <= '9':
			n, _ := strconv.Atoi(name)
			if n >= len(pos) {
				return "", Errorf("IndexError", "Replacement index %d out of range for positional args tuple", n)
			}
			v = pos[n]
		default:
			val, ok := kw[name]
			if !ok {
				return "", keyError(name)
			}
			v = val
		}
		switch conv {
		case "r":
			v = Repr(v)
		case "s":
			v = Str(v)
		}
		s, err := FormatSpec(v, spec)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

var strftimeCodes = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'H': "15", 'I': "03", 'M': "04", 'S': "05",
	'p': "PM", 'b': "Jan", 'B': "January", 'a': "Mon", 'A': "Monday", 'Z': "MST", 'z': "-0700",
}

// Strftime formats t with C-style % directives.
func Strftime(t time.Time, layout string) string {
	var b strings.Builder
	for i := 0; i < len(layout); i++ {
		if layout[i] != '%' || i+1 >= len(layout) {
			b.WriteByte(layout[i])
			continue
		}
		i++
		c := layout[i]
		switch c {
		case '%':
			b.WriteByte('%')
		case 'j':
			b.WriteString(leftPad(strconv.Itoa(t.YearDay()), 3))
		case 'f':
			b.WriteString(leftPad(strconv.Itoa(t.Nanosecond()/1000), 6))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'U', 'W':
			_, wk := t.ISOWeek()
			b.WriteString(leftPad(strconv.Itoa(wk), 2))
		case 'q':
			b.WriteString(strconv.Itoa((int(t.Month())-1)/3 + 1))
		default:
			if g, ok := strftimeCodes[c]; ok {
				b.WriteString(t.Format(g))
			} else {
				b.WriteByte('%')
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

func leftPad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}

// FormatDisplay applies a display template such as "${:,.0f}" or "{:.1%}" to
// a scalar. Templates without a replacement field are treated as a bare spec.
func FormatDisplay(v Value, template string) string {
	if template == "" {
		return Str(v)
	}
	if !strings.Contains(template, "{") {
		if s, err := FormatSpec(v, template); err == nil {
			return s
		}
		return Str(v)
	}
	s, err := FormatTemplate(template, []Value{v}, nil)
	if err != nil {
		return Str(v)
	}
	return s
}
