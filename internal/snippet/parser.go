package snippet

import (
	"strings"
)

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true, "if": true, "else": true, "elif": true,
	"for": true, "while": true, "def": true, "class": true, "return": true, "lambda": true, "None": true,
	"True": true, "False": true, "try": true, "except": true, "finally": true, "raise": true, "pass": true,
	"break": true, "continue": true, "import": true, "from": true, "as": true, "del": true, "assert": true,
	"global": true, "nonlocal": true, "with": true, "yield": true, "async": true, "await": true,
}

// unsupported statements are rejected at parse time.
var unsupported = map[string]bool{
	"while": true, "def": true, "class": true, "return": true, "global": true, "nonlocal": true,
	"with": true, "yield": true, "async": true, "await": true,
}

type parser struct {
	toks []token
	pos  int
}

// Parse compiles snippet source into statements.
func Parse(src string) ([]Stmt, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var out []Stmt
	for !p.at(tEOF, "") {
		if p.at(tNewline, "") {
			p.pos++
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (p *parser) tok() token { return p.toks[p.pos] }

func (p *parser) at(k tokKind, val string) bool {
	t := p.toks[p.pos]
	return t.kind == k && (val == "" || t.val == val)
}

func (p *parser) atOp(val string) bool { return p.at(tOp, val) }
func (p *parser) atKw(val string) bool { return p.at(tName, val) }

func (p *parser) accept(k tokKind, val string) bool {
	if p.at(k, val) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(k tokKind, val string) error {
	if !p.accept(k, val) {
		return p.fail()
	}
	return nil
}

func (p *parser) fail() error {
	t := p.tok()
	if t.kind == tIndent {
		return &Fault{Kind: "IndentationError", Message: "unexpected indent", Line: t.line}
	}
	return syntaxError(t.line, "")
}

func (p *parser) statement() ([]Stmt, error) {
	t := p.tok()
	if t.kind == tIndent {
		return nil, p.fail()
	}
	if t.kind == tName && unsupported[t.val] {
		return nil, syntaxError(t.line, "'"+t.val+"' statements are not supported")
	}
	if t.kind == tName {
		switch t.val {
		case "if":
			s, err := p.ifStmt()
			return []Stmt{s}, err
		case "for":
			s, err := p.forStmt()
			return []Stmt{s}, err
		case "try":
			s, err := p.tryStmt()
			return []Stmt{s}, err
		}
	}
	return p.simpleStmts()
}

func (p *parser) simpleStmts() ([]Stmt, error) {
	var out []Stmt
	for {
		s, err := p.smallStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if !p.accept(tOp, ";") {
			break
		}
		if p.at(tNewline, "") || p.at(tEOF, "") {
			break
		}
	}
	if p.accept(tNewline, "") || p.at(tEOF, "") || p.at(tDedent, "") {
		return out, nil
	}
	return nil, p.fail()
}

func (p *parser) block() ([]Stmt, error) {
	if err := p.expect(tOp, ":"); err != nil {
		return nil, err
	}
	if !p.accept(tNewline, "") {
		return p.simpleStmts()
	}
	if !p.accept(tIndent, "") {
		return nil, &Fault{Kind: "IndentationError", Message: "expected an indented block", Line: p.tok().line}
	}
	var out []Stmt
	for !p.accept(tDedent, "") {
		if p.at(tEOF, "") {
			break
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	line := p.tok().line
	p.pos++
	cond, err := p.test()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s := &If{pos: pos{line}, Cond: cond, Body: body}
	switch {
	case p.atKw("elif"):
		elif, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		s.Else = []Stmt{elif}
	case p.accept(tName, "else"):
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) forStmt() (Stmt, error) {
	line := p.tok().line
	p.pos++
	target, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tName, "in"); err != nil {
		return nil, err
	}
	iter, err := p.testList()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s := &For{pos: pos{line}, Target: target, Iter: iter, Body: body}
	if p.accept(tName, "else") {
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) tryStmt() (Stmt, error) {
	line := p.tok().line
	p.pos++
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s := &Try{pos: pos{line}, Body: body}
	for p.atKw("except") {
		p.pos++
		var h Handler
		if !p.atOp(":") {
			if h.Types, err = p.test(); err != nil {
				return nil, err
			}
			if p.accept(tName, "as") {
				if !p.at(tName, "") {
					return nil, p.fail()
				}
				h.Name = p.tok().val
				p.pos++
			}
		}
		if h.Body, err = p.block(); err != nil {
			return nil, err
		}
		s.Handlers = append(s.Handlers, h)
	}
	if p.accept(tName, "else") {
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	if p.accept(tName, "finally") {
		if s.Finally, err = p.block(); err != nil {
			return nil, err
		}
	}
	if len(s.Handlers) == 0 && s.Finally == nil {
		return nil, syntaxError(line, "expected 'except' or 'finally' block")
	}
	return s, nil
}

func (p *parser) smallStmt() (Stmt, error) {
	t := p.tok()
	at := pos{t.line}
	if t.kind == tName {
		if unsupported[t.val] {
			return nil, syntaxError(t.line, "'"+t.val+"' statements are not supported")
		}
		switch t.val {
		case "pass":
			p.pos++
			return &Pass{at}, nil
		case "break":
			p.pos++
			return &Break{at}, nil
		case "continue":
			p.pos++
			return &Continue{at}, nil
		case "raise":
			p.pos++
			s := &Raise{pos: at}
			if !p.endOfStmt() {
				var err error
				if s.Exc, err = p.test(); err != nil {
					return nil, err
				}
				if p.accept(tName, "from") {
					if _, err := p.test(); err != nil {
						return nil, err
					}
				}
			}
			return s, nil
		case "assert":
			p.pos++
			test, err := p.test()
			if err != nil {
				return nil, err
			}
			s := &Assert{pos: at, Test: test}
			if p.accept(tOp, ",") {
				if s.Msg, err = p.test(); err != nil {
					return nil, err
				}
			}
			return s, nil
		case "del":
			p.pos++
			targets, err := p.exprList()
			if err != nil {
				return nil, err
			}
			if tup, ok := targets.(*TupleExpr); ok {
				return &Del{pos: at, Targets: tup.Elts}, nil
			}
			return &Del{pos: at, Targets: []Expr{targets}}, nil
		case "import":
			p.pos++
			s := &Import{pos: at}
			for {
				mod, err := p.dottedName()
				if err != nil {
					return nil, err
				}
				a := ImportAlias{Module: mod}
				if p.accept(tName, "as") {
					a.As = p.tok().val
					if err := p.expect(tName, ""); err != nil {
						return nil, err
					}
				}
				s.Names = append(s.Names, a)
				if !p.accept(tOp, ",") {
					return s, nil
				}
			}
		case "from":
			p.pos++
			mod, err := p.dottedName()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tName, "import"); err != nil {
				return nil, err
			}
			s := &ImportFrom{pos: at, Module: mod}
			paren := p.accept(tOp, "(")
			for {
				if p.accept(tOp, "*") {
					s.Names = append(s.Names, ImportAlias{Module: "*"})
				} else {
					if !p.at(tName, "") {
						return nil, p.fail()
					}
					a := ImportAlias{Module: p.tok().val}
					p.pos++
					if p.accept(tName, "as") {
						a.As = p.tok().val
						if err := p.expect(tName, ""); err != nil {
							return nil, err
						}
					}
					s.Names = append(s.Names, a)
				}
				if !p.accept(tOp, ",") || (paren && p.atOp(")")) {
					break
				}
			}
			if paren {
				if err := p.expect(tOp, ")"); err != nil {
					return nil, err
				}
			}
			return s, nil
		}
	}

	first, err := p.testListStar()
	if err != nil {
		return nil, err
	}
	if p.at(tOp, "") {
		op := p.tok().val
		if len(op) >= 2 && strings.HasSuffix(op, "=") && op != "==" && op != "!=" && op != "<=" && op != ">=" {
			p.pos++
			if !assignable(first) || isTuple(first) {
				return nil, syntaxError(t.line, "illegal expression for augmented assignment")
			}
			val, err := p.testList()
			if err != nil {
				return nil, err
			}
			return &AugAssign{pos: at, Target: first, Op: strings.TrimSuffix(op, "="), Value: val}, nil
		}
	}
	if !p.atOp("=") {
		return &ExprStmt{pos: at, X: first}, nil
	}
	targets := []Expr{first}
	var value Expr
	for p.accept(tOp, "=") {
		next, err := p.testListStar()
		if err != nil {
			return nil, err
		}
		targets = append(targets, next)
	}
	value = targets[len(targets)-1]
	targets = targets[:len(targets)-1]
	for _, tg := range targets {
		if !assignable(tg) {
			return nil, syntaxError(t.line, "cannot assign to expression")
		}
	}
	return &Assign{pos: at, Targets: targets, Value: value}, nil
}

func isTuple(e Expr) bool {
	switch e.(type) {
	case *TupleExpr, *ListExpr:
		return true
	}
	return false
}

func assignable(e Expr) bool {
	switch x := e.(type) {
	case *Name, *Attribute, *Subscript:
		return true
	case *Starred:
		return assignable(x.Value)
	case *TupleExpr:
		for _, el := range x.Elts {
			if !assignable(el) {
				return false
			}
		}
		return true
	case *ListExpr:
		for _, el := range x.Elts {
			if !assignable(el) {
				return false
			}
		}
		return true
	}
	return false
}

func (p *parser) endOfStmt() bool {
	return p.at(tNewline, "") || p.at(tEOF, "") || p.atOp(";") || p.at(tDedent, "")
}

func (p *parser) dottedName() (string, error) {
	if !p.at(tName, "") {
		return "", p.fail()
	}
	parts := []string{p.tok().val}
	p.pos++
	for p.accept(tOp, ".") {
		if !p.at(tName, "") {
			return "", p.fail()
		}
		parts = append(parts, p.tok().val)
		p.pos++
	}
	return strings.Join(parts, "."), nil
}

// testList parses "a, b, c" into a tuple, or a single expression.
func (p *parser) testList() (Expr, error) {
	return p.sequence(p.test)
}

func (p *parser) testListStar() (Expr, error) {
	return p.sequence(func() (Expr, error) {
		if p.accept(tOp, "*") {
			v, err := p.expr()
			return &Starred{Value: v}, err
		}
		return p.test()
	})
}

// exprList is the target list of for loops and del.
func (p *parser) exprList() (Expr, error) {
	return p.sequence(func() (Expr, error) {
		if p.accept(tOp, "*") {
			v, err := p.expr()
			return &Starred{Value: v}, err
		}
		return p.expr()
	})
}

func (p *parser) sequence(item func() (Expr, error)) (Expr, error) {
	first, err := item()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.accept(tOp, ",") {
		if p.endOfSequence() {
			break
		}
		e, err := item()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &TupleExpr{Elts: elts}, nil
}

func (p *parser) endOfSequence() bool {
	if p.endOfStmt() {
		return true
	}
	if p.at(tOp, "") {
		switch p.tok().val {
		case "=", ")", "]", "}", ":":
			return true
		}
		if v := p.tok().val; len(v) >= 2 && strings.HasSuffix(v, "=") && v != "==" && v != "!=" && v != "<=" && v != ">=" {
			return true
		}
	}
	return p.atKw("in")
}

func (p *parser) test() (Expr, error) {
	if p.atKw("lambda") {
		return p.lambda()
	}
	x, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if p.accept(tName, "if") {
		cond, err := p.orTest()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tName, "else"); err != nil {
			return nil, err
		}
		els, err := p.test()
		if err != nil {
			return nil, err
		}
		return &IfExp{Cond: cond, Then: x, Else: els}, nil
	}
	return x, nil
}

// testNoCond is a test without a trailing conditional, used in comprehension filters.
func (p *parser) testNoCond() (Expr, error) {
	if p.atKw("lambda") {
		return p.lambda()
	}
	return p.orTest()
}

func (p *parser) lambda() (Expr, error) {
	p.pos++
	l := &Lambda{}
	for !p.atOp(":") {
		if !p.at(tName, "") {
			return nil, p.fail()
		}
		name := p.tok().val
		p.pos++
		l.Params = append(l.Params, name)
		if p.accept(tOp, "=") {
			d, err := p.test()
			if err != nil {
				return nil, err
			}
			if l.Defaults == nil {
				l.Defaults = map[string]Expr{}
			}
			l.Defaults[name] = d
		}
		if !p.accept(tOp, ",") {
			break
		}
	}
	if err := p.expect(tOp, ":"); err != nil {
		return nil, err
	}
	body, err := p.test()
	if err != nil {
		return nil, err
	}
	l.Body = body
	return l, nil
}

func (p *parser) orTest() (Expr, error) {
	x, err := p.andTest()
	if err != nil {
		return nil, err
	}
	for p.accept(tName, "or") {
		r, err := p.andTest()
		if err != nil {
			return nil, err
		}
		x = &BoolOp{Op: "or", L: x, R: r}
	}
	return x, nil
}

func (p *parser) andTest() (Expr, error) {
	x, err := p.notTest()
	if err != nil {
		return nil, err
	}
	for p.accept(tName, "and") {
		r, err := p.notTest()
		if err != nil {
			return nil, err
		}
		x = &BoolOp{Op: "and", L: x, R: r}
	}
	return x, nil
}

func (p *parser) notTest() (Expr, error) {
	if p.accept(tName, "not") {
		x, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "not", X: x}, nil
	}
	return p.comparison()
}

func (p *parser) compOp() string {
	t := p.tok()
	switch {
	case t.kind == tOp:
		switch t.val {
		case "<", ">", "==", ">=", "<=", "!=":
			p.pos++
			return t.val
		}
	case t.kind == tName && t.val == "in":
		p.pos++
		return "in"
	case t.kind == tName && t.val == "not" && p.toks[p.pos+1].kind == tName && p.toks[p.pos+1].val == "in":
		p.pos += 2
		return "not in"
	case t.kind == tName && t.val == "is":
		p.pos++
		if p.accept(tName, "not") {
			return "is not"
		}
		return "is"
	}
	return ""
}

func (p *parser) comparison() (Expr, error) {
	x, err := p.expr()
	if err != nil {
		return nil, err
	}
	var c *CompareExpr
	for {
		op := p.compOp()
		if op == "" {
			break
		}
		r, err := p.expr()
		if err != nil {
			return nil, err
		}
		if c == nil {
			c = &CompareExpr{L: x}
		}
		c.Ops = append(c.Ops, op)
		c.Rs = append(c.Rs, r)
	}
	if c == nil {
		return x, nil
	}
	return c, nil
}

// binary builds a left-associative chain of the given operators.
func (p *parser) binary(ops []string, next func() (Expr, error)) (Expr, error) {
	x, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range ops {
			if p.atOp(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			return x, nil
		}
		p.pos++
		r, err := next()
		if err != nil {
			return nil, err
		}
		x = &BinOp{Op: matched, L: x, R: r}
	}
}

func (p *parser) expr() (Expr, error)  { return p.binary([]string{"|"}, p.xorExpr) }
func (p *parser) xorExpr() (Expr, error) { return p.binary([]string{"^"}, p.andExpr) }
func (p *parser) andExpr() (Expr, error) { return p.binary([]string{"&"}, p.shiftExpr) }
func (p *parser) shiftExpr() (Expr, error) {
	return p.binary([]string{"<<", ">>"}, p.arith)
}
func (p *parser) arith() (Expr, error) { return p.binary([]string{"+", "-"}, p.term) }
func (p *parser) term() (Expr, error) {
	return p.binary([]string{"*", "/", "//", "%", "@"}, p.factor)
}

func (p *parser) factor() (Expr, error) {
	for _, op := range []string{"-", "+", "~"} {
		if p.accept(tOp, op) {
			x, err := p.factor()
			if err != nil {
				return nil, err
			}
			if c, ok := x.(*Const); ok && op == "-" {
				if f, ok := c.Value.(float64); ok {
					return &Const{Value: -f}, nil
				}
			}
			return &UnaryOp{Op: op, X: x}, nil
		}
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	x, err := p.atomExpr()
	if err != nil {
		return nil, err
	}
	if p.accept(tOp, "**") {
		r, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: "**", L: x, R: r}, nil
	}
	return x, nil
}

func (p *parser) atomExpr() (Expr, error) {
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept(tOp, "("):
			call, err := p.callArgs(x)
			if err != nil {
				return nil, err
			}
			x = call
		case p.accept(tOp, "["):
			idx, err := p.subscriptList()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tOp, "]"); err != nil {
				return nil, err
			}
			x = &Subscript{Value: x, Index: idx}
		case p.accept(tOp, "."):
			if !p.at(tName, "") {
				return nil, p.fail()
			}
			x = &Attribute{Value: x, Attr: p.tok().val}
			p.pos++
		default:
			return x, nil
		}
	}
}

func (p *parser) callArgs(fn Expr) (Expr, error) {
	call := &Call{Func: fn}
	for !p.accept(tOp, ")") {
		switch {
		case p.accept(tOp, "**"):
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Value: v})
		case p.accept(tOp, "*"):
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &Starred{Value: v})
		case p.at(tName, "") && !keywords[p.tok().val] && p.toks[p.pos+1].kind == tOp && p.toks[p.pos+1].val == "=":
			name := p.tok().val
			p.pos += 2
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Name: name, Value: v})
		default:
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			if p.atKw("for") {
				gens, err := p.compFor()
				if err != nil {
					return nil, err
				}
				v = &ListComp{Elt: v, Gens: gens}
			}
			if len(call.Keywords) > 0 {
				return nil, syntaxError(p.tok().line, "positional argument follows keyword argument")
			}
			call.Args = append(call.Args, v)
		}
		if !p.accept(tOp, ",") {
			if err := p.expect(tOp, ")"); err != nil {
				return nil, err
			}
			break
		}
	}
	return call, nil
}

func (p *parser) subscriptList() (Expr, error) {
	var elts []Expr
	for {
		e, err := p.subscriptItem()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if !p.accept(tOp, ",") || p.atOp("]") {
			break
		}
	}
	if len(elts) == 1 && !p.toksBeforeWasComma() {
		return elts[0], nil
	}
	return &TupleExpr{Elts: elts}, nil
}

func (p *parser) toksBeforeWasComma() bool {
	return p.pos > 0 && p.toks[p.pos-1].kind == tOp && p.toks[p.pos-1].val == ","
}

func (p *parser) subscriptItem() (Expr, error) {
	var lo Expr
	var err error
	if !p.atOp(":") {
		if lo, err = p.test(); err != nil {
			return nil, err
		}
		if !p.atOp(":") {
			return lo, nil
		}
	}
	p.pos++
	s := &Slice{Lo: lo}
	if !p.atOp(":") && !p.atOp("]") && !p.atOp(",") {
		if s.Hi, err = p.test(); err != nil {
			return nil, err
		}
	}
	if p.accept(tOp, ":") && !p.atOp("]") && !p.atOp(",") {
		if s.Step, err = p.test(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) compFor() ([]Comprehension, error) {
	var gens []Comprehension
	for p.accept(tName, "for") {
		target, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tName, "in"); err != nil {
			return nil, err
		}
		iter, err := p.orTest()
		if err != nil {
			return nil, err
		}
		g := Comprehension{Target: target, Iter: iter}
		for p.accept(tName, "if") {
			cond, err := p.testNoCond()
			if err != nil {
				return nil, err
			}
			g.Ifs = append(g.Ifs, cond)
		}
		gens = append(gens, g)
	}
	return gens, nil
}

func (p *parser) atom() (Expr, error) {
	t := p.tok()
	switch t.kind {
	case tNumber:
		p.pos++
		return &Const{Value: t.num}, nil
	case tString:
		return p.strings()
	case tName:
		switch t.val {
		case "None":
			p.pos++
			return &Const{Value: nil}, nil
		case "True":
			p.pos++
			return &Const{Value: true}, nil
		case "False":
			p.pos++
			return &Const{Value: false}, nil
		}
		if keywords[t.val] {
			return nil, p.fail()
		}
		p.pos++
		return &Name{ID: t.val}, nil
	case tOp:
		switch t.val {
		case "(":
			p.pos++
			if p.accept(tOp, ")") {
				return &TupleExpr{}, nil
			}
			first, err := p.testListStar()
			if err != nil {
				return nil, err
			}
			if p.atKw("for") {
				gens, err := p.compFor()
				if err != nil {
					return nil, err
				}
				first = &ListComp{Elt: first, Gens: gens}
			}
			if err := p.expect(tOp, ")"); err != nil {
				return nil, err
			}
			return first, nil
		case "[":
			p.pos++
			return p.listDisplay()
		case "{":
			p.pos++
			return p.dictDisplay()
		}
	}
	return nil, p.fail()
}

func (p *parser) listDisplay() (Expr, error) {
	if p.accept(tOp, "]") {
		return &ListExpr{}, nil
	}
	first, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.atKw("for") {
		gens, err := p.compFor()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tOp, "]"); err != nil {
			return nil, err
		}
		return &ListComp{Elt: first, Gens: gens}, nil
	}
	elts := []Expr{first}
	for p.accept(tOp, ",") {
		if p.atOp("]") {
			break
		}
		e, err := p.test()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if err := p.expect(tOp, "]"); err != nil {
		return nil, err
	}
	return &ListExpr{Elts: elts}, nil
}

// dictDisplay parses dict and set displays; sets evaluate to lists.
func (p *parser) dictDisplay() (Expr, error) {
	if p.accept(tOp, "}") {
		return &DictExpr{}, nil
	}
	if p.accept(tOp, "**") {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		return p.dictRest(&DictExpr{Keys: []Expr{nil}, Values: []Expr{v}})
	}
	first, err := p.test()
	if err != nil {
		return nil, err
	}
	if !p.accept(tOp, ":") {
		if p.atKw("for") {
			gens, err := p.compFor()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tOp, "}"); err != nil {
				return nil, err
			}
			return &ListComp{Elt: first, Gens: gens}, nil
		}
		elts := []Expr{first}
		for p.accept(tOp, ",") {
			if p.atOp("}") {
				break
			}
			e, err := p.test()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		if err := p.expect(tOp, "}"); err != nil {
			return nil, err
		}
		return &ListExpr{Elts: elts}, nil
	}
	val, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.atKw("for") {
		gens, err := p.compFor()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tOp, "}"); err != nil {
			return nil, err
		}
		return &DictComp{Key: first, Value: val, Gens: gens}, nil
	}
	return p.dictRest(&DictExpr{Keys: []Expr{first}, Values: []Expr{val}})
}

func (p *parser) dictRest(d *DictExpr) (Expr, error) {
	for p.accept(tOp, ",") {
		if p.atOp("}") {
			break
		}
		if p.accept(tOp, "**") {
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, v)
			continue
		}
		k, err := p.test()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tOp, ":"); err != nil {
			return nil, err
		}
		v, err := p.test()
		if err != nil {
			return nil, err
		}
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
	}
	if err := p.expect(tOp, "}"); err != nil {
		return nil, err
	}
	return d, nil
}

// strings joins adjacent literals; any f-string part makes the result a JoinedStr.
func (p *parser) strings() (Expr, error) {
	var parts []Expr
	formatted := false
	for p.at(tString, "") {
		t := p.tok()
		p.pos++
		if !t.fstr {
			parts = append(parts, &Const{Value: t.val})
			continue
		}
		formatted = true
		fp, err := parseFString(t.val, t.line)
		if err != nil {
			return nil, err
		}
		parts = append(parts, fp...)
	}
	if !formatted {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.(*Const).Value.(string))
		}
		return &Const{Value: b.String()}, nil
	}
	return &JoinedStr{Parts: parts}, nil
}

func parseFString(body string, line int) ([]Expr, error) {
	var parts []Expr
	rs := []rune(body)
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &Const{Value: unescape(lit.String())})
			lit.Reset()
		}
	}
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '{' && i+1 < len(rs) && rs[i+1] == '{':
			lit.WriteRune('{')
			i++
		case c == '}' && i+1 < len(rs) && rs[i+1] == '}':
			lit.WriteRune('}')
			i++
		case c == '}':
			return nil, syntaxError(line, "f-string: single '}' is not allowed")
		case c == '{':
			flush()
			end, fv, err := parseHole(rs, i+1, line)
			if err != nil {
				return nil, err
			}
			parts = append(parts, fv)
			i = end
		default:
			lit.WriteRune(c)
		}
	}
	flush()
	return parts, nil
}

// parseHole parses the replacement field starting at rs[start] and returns the
// index of its closing brace.
func parseHole(rs []rune, start, line int) (int, *FormattedValue, error) {
	depth := 0
	var quote rune
	exprEnd, convAt, specAt := -1, -1, -1
	i := start
	for ; i < len(rs); i++ {
		c := rs[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				goto done
			}
			depth--
		case '!':
			if depth == 0 && exprEnd < 0 && i+1 < len(rs) && rs[i+1] != '=' {
				exprEnd, convAt = i, i+1
			}
		case ':':
			if depth == 0 {
				if exprEnd < 0 {
					exprEnd = i
				}
				specAt = i + 1
				// the format spec runs to the matching brace and may hold nested fields
				nest := 0
				for i = specAt; i < len(rs); i++ {
					if rs[i] == '{' {
						nest++
					} else if rs[i] == '}' {
						if nest == 0 {
							goto done
						}
						nest--
					}
				}
				return 0, nil, syntaxError(line, "f-string: expecting '}'")
			}
		}
	}
	return 0, nil, syntaxError(line, "f-string: expecting '}'")
done:
	if exprEnd < 0 {
		exprEnd = i
	}
	src := strings.TrimSpace(string(rs[start:exprEnd]))
	src = strings.TrimSuffix(src, "=")
	if src == "" {
		return 0, nil, syntaxError(line, "f-string: empty expression not allowed")
	}
	fv := &FormattedValue{}
	if convAt >= 0 {
		fv.Conv = byte(rs[convAt])
	}
	toks, err := tokenize(src)
	if err != nil {
		return 0, nil, syntaxError(line, "f-string: invalid syntax")
	}
	sub := &parser{toks: toks}
	if fv.Value, err = sub.testList(); err != nil {
		return 0, nil, syntaxError(line, "f-string: invalid syntax")
	}
	if specAt >= 0 {
		specParts, err := parseFString(string(rs[specAt:i]), line)
		if err != nil {
			return 0, nil, err
		}
		fv.Spec = &JoinedStr{Parts: specParts}
	}
	return i, fv, nil
}
