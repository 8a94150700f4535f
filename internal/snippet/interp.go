package snippet

import (
	"fmt"
	"strings"
)

type scope struct {
	vars   map[string]Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[string]Value{}, parent: parent}
}

func (s *scope) lookup(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Interp evaluates parsed snippets against a set of global bindings.
type Interp struct {
	globals *scope
	modules map[string]Value
	out     strings.Builder
	active  []*Fault
}

// New returns an interpreter whose globals hold a copy of bindings. Modules
// lists the names importable with import statements.
func New(bindings map[string]Value, modules map[string]Value) *Interp {
	in := &Interp{globals: newScope(nil), modules: modules}
	for k, v := range bindings {
		in.globals.vars[k] = v
	}
	return in
}

// Get reads a global binding.
func (in *Interp) Get(name string) (Value, bool) {
	v, ok := in.globals.vars[name]
	return v, ok
}

// Set writes a global binding.
func (in *Interp) Set(name string, v Value) { in.globals.vars[name] = v }

// Output returns everything print() wrote.
func (in *Interp) Output() string { return in.out.String() }

// ExecSource parses and runs src. Any fault, including a host panic, comes
// back as a *Fault.
func (in *Interp) ExecSource(src string) (err error) {
	stmts, err := Parse(src)
	if err != nil {
		return err
	}
	return in.Exec(stmts)
}

// Exec runs parsed statements in the global scope.
func (in *Interp) Exec(stmts []Stmt) (err error) {
	line := 0
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Kind: "RuntimeError", Message: fmt.Sprint(r), Line: line}
		}
	}()
	for _, s := range stmts {
		line = s.stmtLine()
		if err := in.exec(s, in.globals); err != nil {
			return asFault(err, line)
		}
	}
	return nil
}

func asFault(err error, line int) *Fault {
	switch e := err.(type) {
	case *Fault:
		if e.Line == 0 {
			e.Line = line
		}
		return e
	case loopSignal:
		return &Fault{Kind: "SyntaxError", Message: e.Error(), Line: line}
	}
	return &Fault{Kind: "RuntimeError", Message: err.Error(), Line: line}
}

func (in *Interp) execBlock(stmts []Stmt, sc *scope) error {
	for _, s := range stmts {
		if err := in.exec(s, sc); err != nil {
			if f, ok := err.(*Fault); ok && f.Line == 0 {
				f.Line = s.stmtLine()
			}
			return err
		}
	}
	return nil
}

func (in *Interp) exec(s Stmt, sc *scope) error {
	switch st := s.(type) {
	case *ExprStmt:
		_, err := in.eval(st.X, sc)
		return err
	case *Assign:
		v, err := in.eval(st.Value, sc)
		if err != nil {
			return err
		}
		for _, t := range st.Targets {
			if err := in.assign(t, v, sc); err != nil {
				return err
			}
		}
		return nil
	case *AugAssign:
		return in.augAssign(st, sc)
	case *If:
		c, err := in.eval(st.Cond, sc)
		if err != nil {
			return err
		}
		ok, err := Truth(c)
		if err != nil {
			return err
		}
		if ok {
			return in.execBlock(st.Body, sc)
		}
		return in.execBlock(st.Else, sc)
	case *For:
		return in.forLoop(st, sc)
	case *Try:
		return in.try(st, sc)
	case *Raise:
		return in.raise(st, sc)
	case *Assert:
		v, err := in.eval(st.Test, sc)
		if err != nil {
			return err
		}
		ok, err := Truth(v)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		msg := ""
		if st.Msg != nil {
			m, err := in.eval(st.Msg, sc)
			if err != nil {
				return err
			}
			msg = Str(m)
		}
		return &Fault{Kind: "AssertionError", Message: msg}
	case *Del:
		for _, t := range st.Targets {
			if err := in.del(t, sc); err != nil {
				return err
			}
		}
		return nil
	case *Pass:
		return nil
	case *Break:
		return signalBreak
	case *Continue:
		return signalContinue
	case *Import:
		for _, a := range st.Names {
			mod, ok := in.modules[a.Module]
			if !ok {
				return moduleNotFound(a.Module)
			}
			if a.As != "" {
				sc.vars[a.As] = mod
				continue
			}
			top, _, _ := strings.Cut(a.Module, ".")
			root, ok := in.modules[top]
			if !ok {
				return moduleNotFound(top)
			}
			sc.vars[top] = root
		}
		return nil
	case *ImportFrom:
		mod, ok := in.modules[st.Module]
		if !ok {
			return moduleNotFound(st.Module)
		}
		for _, a := range st.Names {
			if a.Module == "*" {
				if m, ok := mod.(*Module); ok {
					for k, v := range m.Attrs {
						sc.vars[k] = v
					}
				}
				continue
			}
			v, err := in.getAttr(mod, a.Module)
			if err != nil {
				if sub, ok := in.modules[st.Module+"."+a.Module]; ok {
					v = sub
				} else {
					return Errorf("ImportError", "cannot import name '%s' from '%s'", a.Module, st.Module)
				}
			}
			name := a.As
			if name == "" {
				name = a.Module
			}
			sc.vars[name] = v
		}
		return nil
	}
	return Errorf("RuntimeError", "unsupported statement %T", s)
}

func moduleNotFound(name string) *Fault {
	return Errorf("ModuleNotFoundError", "No module named '%s'", name)
}

func (in *Interp) forLoop(st *For, sc *scope) error {
	it, err := in.eval(st.Iter, sc)
	if err != nil {
		return err
	}
	items, err := Iterate(it)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := in.assign(st.Target, item, sc); err != nil {
			return err
		}
		err := in.execBlock(st.Body, sc)
		if err == signalBreak {
			return nil
		}
		if err != nil && err != signalContinue {
			return err
		}
	}
	return in.execBlock(st.Else, sc)
}

func (in *Interp) try(st *Try, sc *scope) error {
	err := in.execBlock(st.Body, sc)
	if f, ok := err.(*Fault); ok {
		for _, h := range st.Handlers {
			match, herr := in.handlerMatches(h, f, sc)
			if herr != nil {
				err = herr
				break
			}
			if !match {
				continue
			}
			if h.Name != "" {
				sc.vars[h.Name] = f
			}
			in.active = append(in.active, f)
			err = in.execBlock(h.Body, sc)
			in.active = in.active[:len(in.active)-1]
			break
		}
	} else if err == nil {
		err = in.execBlock(st.Else, sc)
	}
	if st.Finally != nil {
		if ferr := in.execBlock(st.Finally, sc); ferr != nil {
			return ferr
		}
	}
	return err
}

func (in *Interp) handlerMatches(h Handler, f *Fault, sc *scope) (bool, error) {
	if h.Types == nil {
		return true, nil
	}
	t, err := in.eval(h.Types, sc)
	if err != nil {
		return false, err
	}
	classes := []Value{t}
	if tup, ok := t.(Tuple); ok {
		classes = tup
	}
	for _, c := range classes {
		b, ok := c.(*Builtin)
		if !ok || !b.Exc {
			return false, typeErrorf("catching classes that do not inherit from BaseException is not allowed")
		}
		if exceptionMatches(f.Kind, b.Name) {
			return true, nil
		}
	}
	return false, nil
}

func (in *Interp) raise(st *Raise, sc *scope) error {
	if st.Exc == nil {
		if n := len(in.active); n > 0 {
			return in.active[n-1]
		}
		return Errorf("RuntimeError", "No active exception to reraise")
	}
	v, err := in.eval(st.Exc, sc)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case *Fault:
		cp := *x
		cp.Line = st.Line
		return &cp
	case *Builtin:
		if x.Exc {
			return &Fault{Kind: x.Name, Line: st.Line}
		}
	}
	return typeErrorf("exceptions must derive from BaseException")
}

func (in *Interp) assign(target Expr, v Value, sc *scope) error {
	switch t := target.(type) {
	case *Name:
		sc.vars[t.ID] = v
		return nil
	case *Attribute:
		obj, err := in.eval(t.Value, sc)
		if err != nil {
			return err
		}
		if s, ok := obj.(AttrSetter); ok {
			return s.SetAttr(t.Attr, v)
		}
		return attrError(obj, t.Attr)
	case *Subscript:
		obj, err := in.eval(t.Value, sc)
		if err != nil {
			return err
		}
		key, err := in.evalIndex(t.Index, sc)
		if err != nil {
			return err
		}
		return setItem(obj, key, v)
	case *TupleExpr:
		return in.unpack(t.Elts, v, sc)
	case *ListExpr:
		return in.unpack(t.Elts, v, sc)
	}
	return syntaxError(0, "cannot assign to expression")
}

func (in *Interp) unpack(targets []Expr, v Value, sc *scope) error {
	items, err := Iterate(v)
	if err != nil {
		return typeErrorf("cannot unpack non-iterable %s object", TypeName(v))
	}
	star := -1
	for i, t := range targets {
		if _, ok := t.(*Starred); ok {
			star = i
		}
	}
	if star < 0 {
		if len(items) > len(targets) {
			return valueErrorf("too many values to unpack (expected %d)", len(targets))
		}
		if len(items) < len(targets) {
			return valueErrorf("not enough values to unpack (expected %d, got %d)", len(targets), len(items))
		}
		for i, t := range targets {
			if err := in.assign(t, items[i], sc); err != nil {
				return err
			}
		}
		return nil
	}
	after := len(targets) - star - 1
	if len(items) < len(targets)-1 {
		return valueErrorf("not enough values to unpack (expected at least %d, got %d)", len(targets)-1, len(items))
	}
	for i := 0; i < star; i++ {
		if err := in.assign(targets[i], items[i], sc); err != nil {
			return err
		}
	}
	mid := append([]Value(nil), items[star:len(items)-after]...)
	if err := in.assign(targets[star].(*Starred).Value, &List{Items: mid}, sc); err != nil {
		return err
	}
	for i := 0; i < after; i++ {
		if err := in.assign(targets[star+1+i], items[len(items)-after+i], sc); err != nil {
			return err
		}
	}
	return nil
}

func setItem(obj, key, v Value) error {
	switch x := obj.(type) {
	case *List:
		if s, ok := key.(*SliceVal); ok {
			start, stop, step, err := sliceBounds(s, len(x.Items))
			if err != nil {
				return err
			}
			if step != 1 {
				return valueErrorf("extended slice assignment is not supported")
			}
			repl, err := Iterate(v)
			if err != nil {
				return err
			}
			if stop < start {
				stop = start
			}
			items := append(append(append([]Value(nil), x.Items[:start]...), repl...), x.Items[stop:]...)
			x.Items = items
			return nil
		}
		i, err := seqIndex(x.Items, key, "list assignment")
		if err != nil {
			return err
		}
		x.Items[i] = v
		return nil
	case *Dict:
		return x.Set(key, v)
	case ItemSetter:
		return x.SetItem(key, v)
	}
	return typeErrorf("'%s' object does not support item assignment", TypeName(obj))
}

func (in *Interp) del(target Expr, sc *scope) error {
	switch t := target.(type) {
	case *Name:
		if _, ok := sc.vars[t.ID]; !ok {
			return Errorf("NameError", "name '%s' is not defined", t.ID)
		}
		delete(sc.vars, t.ID)
		return nil
	case *Subscript:
		obj, err := in.eval(t.Value, sc)
		if err != nil {
			return err
		}
		key, err := in.evalIndex(t.Index, sc)
		if err != nil {
			return err
		}
		switch x := obj.(type) {
		case *Dict:
			if !x.Delete(key) {
				return keyError(key)
			}
			return nil
		case *List:
			i, err := seqIndex(x.Items, key, "list assignment")
			if err != nil {
				return err
			}
			x.Items = append(x.Items[:i], x.Items[i+1:]...)
			return nil
		case ItemDeleter:
			return x.DelItem(key)
		}
		return typeErrorf("'%s' object does not support item deletion", TypeName(obj))
	case *TupleExpr:
		for _, el := range t.Elts {
			if err := in.del(el, sc); err != nil {
				return err
			}
		}
		return nil
	}
	return syntaxError(0, "cannot delete expression")
}

func (in *Interp) augAssign(st *AugAssign, sc *scope) error {
	rhs, err := in.eval(st.Value, sc)
	if err != nil {
		return err
	}
	combine := func(cur Value) (Value, error) {
		if l, ok := cur.(*List); ok && st.Op == "+" {
			items, err := Iterate(rhs)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, items...)
			return l, nil
		}
		return BinaryOp(st.Op, cur, rhs)
	}
	switch t := st.Target.(type) {
	case *Name:
		cur, err := in.lookupName(t.ID, sc)
		if err != nil {
			return err
		}
		v, err := combine(cur)
		if err != nil {
			return err
		}
		sc.vars[t.ID] = v
		return nil
	case *Subscript:
		obj, err := in.eval(t.Value, sc)
		if err != nil {
			return err
		}
		key, err := in.evalIndex(t.Index, sc)
		if err != nil {
			return err
		}
		cur, err := in.getItem(obj, key)
		if err != nil {
			return err
		}
		v, err := combine(cur)
		if err != nil {
			return err
		}
		return setItem(obj, key, v)
	case *Attribute:
		obj, err := in.eval(t.Value, sc)
		if err != nil {
			return err
		}
		cur, err := in.getAttr(obj, t.Attr)
		if err != nil {
			return err
		}
		v, err := combine(cur)
		if err != nil {
			return err
		}
		if s, ok := obj.(AttrSetter); ok {
			return s.SetAttr(t.Attr, v)
		}
		return attrError(obj, t.Attr)
	}
	return syntaxError(0, "illegal expression for augmented assignment")
}

func (in *Interp) lookupName(name string, sc *scope) (Value, error) {
	if v, ok := sc.lookup(name); ok {
		return v, nil
	}
	if v, ok := builtins[name]; ok {
		return v, nil
	}
	return nil, Errorf("NameError", "name '%s' is not defined", name)
}

func (in *Interp) eval(e Expr, sc *scope) (Value, error) {
	switch x := e.(type) {
	case *Const:
		return x.Value, nil
	case *Name:
		return in.lookupName(x.ID, sc)
	case *JoinedStr:
		var b strings.Builder
		for _, part := range x.Parts {
			switch p := part.(type) {
			case *Const:
				b.WriteString(p.Value.(string))
			case *FormattedValue:
				s, err := in.formatted(p, sc)
				if err != nil {
					return nil, err
				}
				b.WriteString(s)
			}
		}
		return b.String(), nil
	case *ListExpr:
		items, err := in.evalElts(x.Elts, sc)
		if err != nil {
			return nil, err
		}
		return &List{Items: items}, nil
	case *TupleExpr:
		items, err := in.evalElts(x.Elts, sc)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case *DictExpr:
		d := NewDict()
		for i, k := range x.Keys {
			v, err := in.eval(x.Values[i], sc)
			if err != nil {
				return nil, err
			}
			if k == nil {
				src, ok := v.(*Dict)
				if !ok {
					return nil, typeErrorf("'%s' object is not a mapping", TypeName(v))
				}
				for j, sk := range src.keys {
					_ = d.Set(sk, src.vals[j])
				}
				continue
			}
			kv, err := in.eval(k, sc)
			if err != nil {
				return nil, err
			}
			if err := d.Set(kv, v); err != nil {
				return nil, err
			}
		}
		return d, nil
	case *Attribute:
		obj, err := in.eval(x.Value, sc)
		if err != nil {
			return nil, err
		}
		return in.getAttr(obj, x.Attr)
	case *Subscript:
		obj, err := in.eval(x.Value, sc)
		if err != nil {
			return nil, err
		}
		key, err := in.evalIndex(x.Index, sc)
		if err != nil {
			return nil, err
		}
		return in.getItem(obj, key)
	case *Call:
		return in.evalCall(x, sc)
	case *BinOp:
		l, err := in.eval(x.L, sc)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(x.R, sc)
		if err != nil {
			return nil, err
		}
		return BinaryOp(x.Op, l, r)
	case *UnaryOp:
		v, err := in.eval(x.X, sc)
		if err != nil {
			return nil, err
		}
		if x.Op == "not" {
			ok, err := Truth(v)
			if err != nil {
				return nil, err
			}
			return !ok, nil
		}
		return UnaryOperation(x.Op, v)
	case *BoolOp:
		l, err := in.eval(x.L, sc)
		if err != nil {
			return nil, err
		}
		ok, err := Truth(l)
		if err != nil {
			return nil, err
		}
		if (x.Op == "and") != ok {
			return l, nil
		}
		return in.eval(x.R, sc)
	case *CompareExpr:
		return in.compare(x, sc)
	case *IfExp:
		c, err := in.eval(x.Cond, sc)
		if err != nil {
			return nil, err
		}
		ok, err := Truth(c)
		if err != nil {
			return nil, err
		}
		if ok {
			return in.eval(x.Then, sc)
		}
		return in.eval(x.Else, sc)
	case *Lambda:
		return &Closure{fn: x, env: sc}, nil
	case *ListComp:
		var out []Value
		err := in.comprehend(x.Gens, newScope(sc), func(inner *scope) error {
			v, err := in.eval(x.Elt, inner)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &List{Items: out}, nil
	case *DictComp:
		d := NewDict()
		err := in.comprehend(x.Gens, newScope(sc), func(inner *scope) error {
			k, err := in.eval(x.Key, inner)
			if err != nil {
				return err
			}
			v, err := in.eval(x.Value, inner)
			if err != nil {
				return err
			}
			return d.Set(k, v)
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	case *Slice:
		return in.evalIndex(x, sc)
	case *Starred:
		return nil, syntaxError(0, "can't use starred expression here")
	}
	return nil, Errorf("RuntimeError", "unsupported expression %T", e)
}

func (in *Interp) evalElts(elts []Expr, sc *scope) ([]Value, error) {
	out := make([]Value, 0, len(elts))
	for _, el := range elts {
		if st, ok := el.(*Starred); ok {
			v, err := in.eval(st.Value, sc)
			if err != nil {
				return nil, err
			}
			items, err := Iterate(v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		v, err := in.eval(el, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *Interp) evalIndex(e Expr, sc *scope) (Value, error) {
	switch x := e.(type) {
	case *Slice:
		s := &SliceVal{}
		var err error
		if x.Lo != nil {
			if s.Lo, err = in.eval(x.Lo, sc); err != nil {
				return nil, err
			}
		}
		if x.Hi != nil {
			if s.Hi, err = in.eval(x.Hi, sc); err != nil {
				return nil, err
			}
		}
		if x.Step != nil {
			if s.Step, err = in.eval(x.Step, sc); err != nil {
				return nil, err
			}
		}
		return s, nil
	case *TupleExpr:
		items := make(Tuple, len(x.Elts))
		for i, el := range x.Elts {
			v, err := in.evalIndex(el, sc)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	}
	return in.eval(e, sc)
}

func (in *Interp) formatted(p *FormattedValue, sc *scope) (string, error) {
	v, err := in.eval(p.Value, sc)
	if err != nil {
		return "", err
	}
	switch p.Conv {
	case 'r', 'a':
		v = Repr(v)
	case 's':
		v = Str(v)
	}
	spec := ""
	if p.Spec != nil {
		sv, err := in.eval(p.Spec, sc)
		if err != nil {
			return "", err
		}
		spec = sv.(string)
	}
	return FormatSpec(v, spec)
}

func (in *Interp) compare(x *CompareExpr, sc *scope) (Value, error) {
	l, err := in.eval(x.L, sc)
	if err != nil {
		return nil, err
	}
	var result Value = true
	for i, op := range x.Ops {
		r, err := in.eval(x.Rs[i], sc)
		if err != nil {
			return nil, err
		}
		v, err := CompareOp(op, l, r)
		if err != nil {
			return nil, err
		}
		if len(x.Ops) == 1 {
			return v, nil
		}
		ok, err := Truth(v)
		if err != nil {
			return nil, err
		}
		if !ok {
			return v, nil
		}
		result = v
		l = r
	}
	return result, nil
}

func (in *Interp) comprehend(gens []Comprehension, sc *scope, body func(*scope) error) error {
	if len(gens) == 0 {
		return body(sc)
	}
	g := gens[0]
	it, err := in.eval(g.Iter, sc)
	if err != nil {
		return err
	}
	items, err := Iterate(it)
	if err != nil {
		return err
	}
outer:
	for _, item := range items {
		if err := in.assign(g.Target, item, sc); err != nil {
			return err
		}
		for _, cond := range g.Ifs {
			c, err := in.eval(cond, sc)
			if err != nil {
				return err
			}
			ok, err := Truth(c)
			if err != nil {
				return err
			}
			if !ok {
				continue outer
			}
		}
		if err := in.comprehend(gens[1:], sc, body); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) evalCall(c *Call, sc *scope) (Value, error) {
	fn, err := in.eval(c.Func, sc)
	if err != nil {
		return nil, err
	}
	a := &Args{}
	for _, arg := range c.Args {
		if st, ok := arg.(*Starred); ok {
			v, err := in.eval(st.Value, sc)
			if err != nil {
				return nil, err
			}
			items, err := Iterate(v)
			if err != nil {
				return nil, err
			}
			a.Pos = append(a.Pos, items...)
			continue
		}
		v, err := in.eval(arg, sc)
		if err != nil {
			return nil, err
		}
		a.Pos = append(a.Pos, v)
	}
	for _, kw := range c.Keywords {
		v, err := in.eval(kw.Value, sc)
		if err != nil {
			return nil, err
		}
		if kw.Name != "" {
			a.Kw = append(a.Kw, Kwarg{Name: kw.Name, Value: v})
			continue
		}
		d, ok := v.(*Dict)
		if !ok {
			return nil, typeErrorf("argument after ** must be a mapping, not %s", TypeName(v))
		}
		for i, k := range d.keys {
			a.Kw = append(a.Kw, Kwarg{Name: Str(k), Value: d.vals[i]})
		}
	}
	return in.CallArgs(fn, a)
}

// Call invokes fn with positional arguments.
func (in *Interp) Call(fn Value, args ...Value) (Value, error) {
	return in.CallArgs(fn, &Args{Pos: args})
}

// CallArgs invokes fn with full arguments.
func (in *Interp) CallArgs(fn Value, a *Args) (Value, error) {
	switch f := fn.(type) {
	case *Closure:
		return in.callClosure(f, a)
	case Callable:
		return f.Call(in, a)
	}
	return nil, typeErrorf("'%s' object is not callable", TypeName(fn))
}

func (in *Interp) callClosure(c *Closure, a *Args) (Value, error) {
	sc := newScope(c.env)
	if len(a.Pos) > len(c.fn.Params) {
		return nil, typeErrorf("<lambda>() takes %d positional arguments but %d were given", len(c.fn.Params), len(a.Pos))
	}
	for i, v := range a.Pos {
		sc.vars[c.fn.Params[i]] = v
	}
	for _, kw := range a.Kw {
		if indexOf(c.fn.Params, kw.Name) < 0 {
			return nil, UnexpectedKeyword("<lambda>", kw.Name)
		}
		sc.vars[kw.Name] = kw.Value
	}
	for _, p := range c.fn.Params {
		if _, ok := sc.vars[p]; ok {
			continue
		}
		d, ok := c.fn.Defaults[p]
		if !ok {
			return nil, typeErrorf("<lambda>() missing 1 required positional argument: '%s'", p)
		}
		v, err := in.eval(d, c.env)
		if err != nil {
			return nil, err
		}
		sc.vars[p] = v
	}
	return in.eval(c.fn.Body, sc)
}

func (in *Interp) getItem(obj, key Value) (Value, error) {
	switch x := obj.(type) {
	case *List:
		if s, ok := key.(*SliceVal); ok {
			items, err := sliceValues(x.Items, s)
			return &List{Items: items}, err
		}
		i, err := seqIndex(x.Items, key, "list")
		if err != nil {
			return nil, err
		}
		return x.Items[i], nil
	case Tuple:
		if s, ok := key.(*SliceVal); ok {
			items, err := sliceValues(x, s)
			return Tuple(items), err
		}
		i, err := seqIndex(x, key, "tuple")
		if err != nil {
			return nil, err
		}
		return x[i], nil
	case string:
		rs := []rune(x)
		items := make([]Value, len(rs))
		for i, r := range rs {
			items[i] = string(r)
		}
		if s, ok := key.(*SliceVal); ok {
			sel, err := sliceValues(items, s)
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			for _, it := range sel {
				b.WriteString(it.(string))
			}
			return b.String(), nil
		}
		i, err := seqIndex(items, key, "string")
		if err != nil {
			return nil, err
		}
		return items[i], nil
	case *Dict:
		v, ok := x.Get(key)
		if !ok {
			if _, err := hashKey(key); err != nil {
				return nil, err
			}
			return nil, keyError(key)
		}
		return v, nil
	case ItemGetter:
		return x.GetItem(key)
	}
	return nil, typeErrorf("'%s' object is not subscriptable", TypeName(obj))
}

func (in *Interp) getAttr(obj Value, name string) (Value, error) {
	if g, ok := obj.(AttrGetter); ok {
		return g.GetAttr(name)
	}
	if m := scalarMethod(in, obj, name); m != nil {
		return m, nil
	}
	return nil, attrError(obj, name)
}
