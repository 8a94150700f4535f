package snippet

// EvalExpr evaluates a single expression with extra variables layered over
// the globals. With vectorised set, boolean keywords and membership tests
// become their elementwise forms, as in DataFrame.query.
func (in *Interp) EvalExpr(src string, vars map[string]Value, vectorised bool) (Value, error) {
	stmts, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, syntaxError(1, "expected a single expression")
	}
	es, ok := stmts[0].(*ExprStmt)
	if !ok {
		return nil, syntaxError(1, "expected an expression")
	}
	x := es.X
	if vectorised {
		x = vectorise(x)
	}
	sc := newScope(in.globals)
	for k, v := range vars {
		sc.vars[k] = v
	}
	v, err := in.eval(x, sc)
	if err != nil {
		return nil, asFault(err, 1)
	}
	return v, nil
}

func vectorise(e Expr) Expr {
	switch x := e.(type) {
	case *BoolOp:
		op := "&"
		if x.Op == "or" {
			op = "|"
		}
		return &BinOp{Op: op, L: vectorise(x.L), R: vectorise(x.R)}
	case *UnaryOp:
		if x.Op == "not" {
			return &UnaryOp{Op: "~", X: vectorise(x.X)}
		}
		return &UnaryOp{Op: x.Op, X: vectorise(x.X)}
	case *BinOp:
		return &BinOp{Op: x.Op, L: vectorise(x.L), R: vectorise(x.R)}
	case *CompareExpr:
		if len(x.Ops) == 1 && (x.Ops[0] == "in" || x.Ops[0] == "not in") {
			call := &Call{Func: &Attribute{Value: vectorise(x.L), Attr: "isin"}, Args: []Expr{x.Rs[0]}}
			if x.Ops[0] == "not in" {
				return &UnaryOp{Op: "~", X: call}
			}
			return call
		}
		rs := make([]Expr, len(x.Rs))
		for i, r := range x.Rs {
			rs[i] = vectorise(r)
		}
		return &CompareExpr{L: vectorise(x.L), Ops: x.Ops, Rs: rs}
	}
	return e
}
