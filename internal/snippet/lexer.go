package snippet

import (
	"strconv"
	"strings"
	"unicode"
)

type tokKind int

const (
	tEOF tokKind = iota
	tNewline
	tIndent
	tDedent
	tName
	tNumber
	tString
	tOp
)

type token struct {
	kind tokKind
	val  string
	num  float64
	fstr bool // val holds the undecoded f-string body
	line int
}

var operators = []string{
	"**=", "//=", ">>=", "<<=",
	"**", "//", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "->", ":=", "<<", ">>",
	"+", "-", "*", "/", "%", "<", ">", "=", "(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "@", "&", "|", "~", "^",
}

type lexer struct {
	src     []rune
	pos     int
	line    int
	depth   int
	indents []int
	toks    []token
	atStart bool
}

func syntaxError(line int, msg string) *Fault {
	if msg == "" {
		msg = "invalid syntax"
	}
	return &Fault{Kind: "SyntaxError", Message: msg + " (line " + strconv.Itoa(line) + ")", Line: line}
}

func tokenize(src string) ([]token, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lx := &lexer{src: []rune(src), line: 1, indents: []int{0}, atStart: true}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.toks, nil
}

func (lx *lexer) emit(k tokKind, val string) {
	lx.toks = append(lx.toks, token{kind: k, val: val, line: lx.line})
}

func (lx *lexer) peek(off int) rune {
	if lx.pos+off < len(lx.src) {
		return lx.src[lx.pos+off]
	}
	return 0
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.src) {
		if lx.atStart && lx.depth == 0 {
			if err := lx.indentation(); err != nil {
				return err
			}
			if lx.pos >= len(lx.src) {
				break
			}
		}
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.pos++
			if lx.depth == 0 {
				lx.newline()
				lx.atStart = true
			}
			lx.line++
		case c == ' ' || c == '\t' || c == '\f':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == '\\' && lx.peek(1) == '\n':
			lx.pos += 2
			lx.line++
		case c == '_' || unicode.IsLetter(c):
			if err := lx.name(); err != nil {
				return err
			}
		case unicode.IsDigit(c) || (c == '.' && unicode.IsDigit(lx.peek(1))):
			if err := lx.number(); err != nil {
				return err
			}
		case c == '"' || c == '\'':
			if err := lx.str("", lx.pos); err != nil {
				return err
			}
		default:
			if err := lx.op(); err != nil {
				return err
			}
		}
	}
	if lx.depth > 0 {
		return syntaxError(lx.line, "unexpected EOF while parsing")
	}
	lx.newline()
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(tDedent, "")
	}
	lx.emit(tEOF, "")
	return nil
}

func (lx *lexer) newline() {
	if n := len(lx.toks); n > 0 && lx.toks[n-1].kind != tNewline && lx.toks[n-1].kind != tIndent && lx.toks[n-1].kind != tDedent {
		lx.emit(tNewline, "")
	}
}

// indentation consumes leading whitespace of a logical line, skipping blank
// and comment-only lines, and emits INDENT/DEDENT tokens.
func (lx *lexer) indentation() error {
	for {
		col := 0
		for lx.pos < len(lx.src) && (lx.src[lx.pos] == ' ' || lx.src[lx.pos] == '\t') {
			if lx.src[lx.pos] == '\t' {
				col = (col/8 + 1) * 8
			} else {
				col++
			}
			lx.pos++
		}
		if lx.pos >= len(lx.src) {
			return nil
		}
		switch lx.src[lx.pos] {
		case '\n':
			lx.pos++
			lx.line++
			continue
		case '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
			continue
		}
		lx.atStart = false
		top := lx.indents[len(lx.indents)-1]
		switch {
		case col > top:
			lx.indents = append(lx.indents, col)
			lx.emit(tIndent, "")
		case col < top:
			for col < lx.indents[len(lx.indents)-1] {
				lx.indents = lx.indents[:len(lx.indents)-1]
				lx.emit(tDedent, "")
			}
			if col != lx.indents[len(lx.indents)-1] {
				return &Fault{Kind: "IndentationError", Message: "unindent does not match any outer indentation level (line " + strconv.Itoa(lx.line) + ")", Line: lx.line}
			}
		}
		return nil
	}
}

func (lx *lexer) name() error {
	start := lx.pos
	for lx.pos < len(lx.src) && (lx.src[lx.pos] == '_' || unicode.IsLetter(lx.src[lx.pos]) || unicode.IsDigit(lx.src[lx.pos])) {
		lx.pos++
	}
	word := string(lx.src[start:lx.pos])
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') && isStringPrefix(word) {
		return lx.str(strings.ToLower(word), lx.pos)
	}
	lx.emit(tName, word)
	return nil
}

func isStringPrefix(w string) bool {
	switch strings.ToLower(w) {
	case "f", "r", "b", "u", "rf", "fr", "rb", "br":
		return true
	}
	return false
}

func (lx *lexer) number() error {
	start := lx.pos
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if unicode.IsDigit(c) || c == '.' || c == '_' {
			lx.pos++
			continue
		}
		if (c == 'e' || c == 'E') && lx.pos > start {
			lx.pos++
			if lx.peek(0) == '+' || lx.peek(0) == '-' {
				lx.pos++
			}
			continue
		}
		break
	}
	text := strings.ReplaceAll(string(lx.src[start:lx.pos]), "_", "")
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return syntaxError(lx.line, "invalid decimal literal")
	}
	if lx.pos < len(lx.src) && (unicode.IsLetter(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
		return syntaxError(lx.line, "invalid decimal literal")
	}
	lx.toks = append(lx.toks, token{kind: tNumber, val: text, num: f, line: lx.line})
	return nil
}

func (lx *lexer) str(prefix string, at int) error {
	line := lx.line
	q := lx.src[at]
	triple := lx.peek(1) == q && lx.peek(2) == q
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}
	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return syntaxError(line, "unterminated string literal")
		}
		c := lx.src[lx.pos]
		if c == '\\' && lx.pos+1 < len(lx.src) {
			b.WriteRune(c)
			b.WriteRune(lx.src[lx.pos+1])
			if lx.src[lx.pos+1] == '\n' {
				lx.line++
			}
			lx.pos += 2
			continue
		}
		if c == q {
			if !triple {
				lx.pos++
				break
			}
			if lx.peek(1) == q && lx.peek(2) == q {
				lx.pos += 3
				break
			}
		}
		if c == '\n' {
			if !triple {
				return syntaxError(line, "unterminated string literal")
			}
			lx.line++
		}
		b.WriteRune(c)
		lx.pos++
	}
	body := b.String()
	raw := strings.Contains(prefix, "r")
	tok := token{kind: tString, line: line}
	switch {
	case strings.Contains(prefix, "f"):
		tok.fstr = true
		tok.val = body
		if raw {
			tok.val = strings.ReplaceAll(body, `\`, `\\`)
		}
	case raw:
		tok.val = body
	default:
		tok.val = unescape(body)
	}
	lx.toks = append(lx.toks, tok)
	return nil
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '\\' || i+1 >= len(rs) {
			b.WriteRune(rs[i])
			continue
		}
		i++
		switch rs[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		case '0':
			b.WriteByte(0)
		case '\n':
		case 'u', 'x':
			n := 4
			if rs[i] == 'x' {
				n = 2
			}
			if i+n < len(rs) {
				if v, err := strconv.ParseUint(string(rs[i+1:i+1+n]), 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += n
					continue
				}
			}
			b.WriteRune('\\')
			b.WriteRune(rs[i])
		default:
			b.WriteRune('\\')
			b.WriteRune(rs[i])
		}
	}
	return b.String()
}

func (lx *lexer) op() error {
	rest := string(lx.src[lx.pos:min(lx.pos+3, len(lx.src))])
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			lx.pos += len([]rune(op))
			switch op {
			case "(", "[", "{":
				lx.depth++
			case ")", "]", "}":
				if lx.depth == 0 {
					return syntaxError(lx.line, "unmatched '"+op+"'")
				}
				lx.depth--
			}
			lx.emit(tOp, op)
			return nil
		}
	}
	return syntaxError(lx.line, "invalid character '"+string(lx.src[lx.pos])+"'")
}
