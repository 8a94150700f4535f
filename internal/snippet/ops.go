package snippet

import (
	"math"
	"strings"
	"time"
)

var opNames = map[string]string{"+": "+", "-": "-", "*": "*", "/": "/", "//": "//", "%": "%", "**": "** or pow()", "&": "&", "|": "|", "^": "^", "<<": "<<", ">>": ">>", "@": "@"}

func unsupportedOperand(op string, l, r Value) *Fault {
	name := opNames[op]
	if name == "" {
		name = op
	}
	return typeErrorf("unsupported operand type(s) for %s: '%s' and '%s'", name, TypeName(l), TypeName(r))
}

// BinaryOp applies an arithmetic or bitwise operator.
func BinaryOp(op string, l, r Value) (Value, error) {
	if bo, ok := l.(BinOper); ok {
		v, err := bo.BinOp(op, r, false)
		if err != errNotImplemented {
			return v, err
		}
	}
	if bo, ok := r.(BinOper); ok {
		v, err := bo.BinOp(op, l, true)
		if err != errNotImplemented {
			return v, err
		}
	}
	return scalarOp(op, l, r)
}

func scalarOp(op string, l, r Value) (Value, error) {
	lb, lIsBool := l.(bool)
	rb, rIsBool := r.(bool)
	if lIsBool && rIsBool {
		switch op {
		case "&":
			return lb && rb, nil
		case "|":
			return lb || rb, nil
		case "^":
			return lb != rb, nil
		}
	}
	if a, ok := toFloat(l); ok {
		if b, ok := toFloat(r); ok {
			return floatOp(op, a, b)
		}
	}
	switch x := l.(type) {
	case string:
		switch y := r.(type) {
		case string:
			if op == "+" {
				return x + y, nil
			}
		default:
			if op == "*" {
				if n, err := ToInt(r); err == nil {
					return strings.Repeat(x, max(n, 0)), nil
				}
			}
			if op == "%" {
				return percentFormat(x, r)
			}
			if op == "+" {
				return nil, typeErrorf("can only concatenate str (not \"%s\") to str", TypeName(r))
			}
		}
	case *List:
		switch y := r.(type) {
		case *List:
			if op == "+" {
				items := append(append([]Value(nil), x.Items...), y.Items...)
				return &List{Items: items}, nil
			}
		default:
			if op == "*" {
				if n, err := ToInt(r); err == nil {
					var items []Value
					for i := 0; i < n; i++ {
						items = append(items, x.Items...)
					}
					return &List{Items: items}, nil
				}
			}
		}
	case Tuple:
		if y, ok := r.(Tuple); ok && op == "+" {
			return append(append(Tuple(nil), x...), y...), nil
		}
	case time.Time:
		switch y := r.(type) {
		case time.Time:
			if op == "-" {
				return x.Sub(y), nil
			}
		case time.Duration:
			switch op {
			case "+":
				return x.Add(y), nil
			case "-":
				return x.Add(-y), nil
			}
		}
	case time.Duration:
		switch y := r.(type) {
		case time.Duration:
			switch op {
			case "+":
				return x + y, nil
			case "-":
				return x - y, nil
			case "/":
				if y == 0 {
					return nil, Errorf("ZeroDivisionError", "division by zero")
				}
				return float64(x) / float64(y), nil
			}
		case time.Time:
			if op == "+" {
				return y.Add(x), nil
			}
		case float64:
			switch op {
			case "*":
				return time.Duration(float64(x) * y), nil
			case "/":
				if y == 0 {
					return nil, Errorf("ZeroDivisionError", "division by zero")
				}
				return time.Duration(float64(x) / y), nil
			}
		}
	}
	if op == "*" {
		if _, ok := toFloat(l); ok {
			switch r.(type) {
			case string, *List:
				return scalarOp(op, r, l)
			}
		}
		if y, ok := r.(time.Duration); ok {
			if f, ok := toFloat(l); ok {
				return time.Duration(float64(y) * f), nil
			}
		}
	}
	return nil, unsupportedOperand(op, l, r)
}

func integral(f float64) bool { return f == math.Trunc(f) && !math.IsInf(f, 0) }

func floatOp(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			if integral(a) {
				return nil, Errorf("ZeroDivisionError", "division by zero")
			}
			return nil, Errorf("ZeroDivisionError", "float division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			if integral(a) {
				return nil, Errorf("ZeroDivisionError", "integer division or modulo by zero")
			}
			return nil, Errorf("ZeroDivisionError", "float floor division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			if integral(a) {
				return nil, Errorf("ZeroDivisionError", "integer modulo by zero")
			}
			return nil, Errorf("ZeroDivisionError", "float modulo")
		}
		return pyMod(a, b), nil
	case "**":
		if a == 0 && b < 0 {
			return nil, Errorf("ZeroDivisionError", "0.0 cannot be raised to a negative power")
		}
		return math.Pow(a, b), nil
	case "&", "|", "^", "<<", ">>":
		if !integral(a) || !integral(b) {
			return nil, unsupportedOperand(op, a, b)
		}
		x, y := int64(a), int64(b)
		switch op {
		case "&":
			return float64(x & y), nil
		case "|":
			return float64(x | y), nil
		case "^":
			return float64(x ^ y), nil
		case "<<":
			return float64(x << uint(y)), nil
		default:
			return float64(x >> uint(y)), nil
		}
	}
	return nil, unsupportedOperand(op, a, b)
}

func pyMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// UnaryOperation applies -, + or ~.
func UnaryOperation(op string, v Value) (Value, error) {
	if u, ok := v.(UnaryOper); ok {
		return u.UnaryOp(op)
	}
	switch x := v.(type) {
	case bool:
		if op == "~" {
			if x {
				return -2.0, nil
			}
			return -1.0, nil
		}
		f, _ := toFloat(x)
		return UnaryOperation(op, f)
	case float64:
		switch op {
		case "-":
			return -x, nil
		case "+":
			return x, nil
		case "~":
			if integral(x) {
				return float64(^int64(x)), nil
			}
		}
	case time.Duration:
		switch op {
		case "-":
			return -x, nil
		case "+":
			return x, nil
		}
	}
	return nil, typeErrorf("bad operand type for unary %s: '%s'", op, TypeName(v))
}

// CompareOp evaluates a single comparison operator.
func CompareOp(op string, l, r Value) (Value, error) {
	switch op {
	case "in", "not in":
		ok, err := Contains(r, l)
		if err != nil {
			return nil, err
		}
		return ok == (op == "in"), nil
	case "is", "is not":
		return identical(l, r) == (op == "is"), nil
	}
	if bo, ok := l.(BinOper); ok {
		v, err := bo.BinOp(op, r, false)
		if err != errNotImplemented {
			return v, err
		}
	}
	if bo, ok := r.(BinOper); ok {
		v, err := bo.BinOp(op, l, true)
		if err != errNotImplemented {
			return v, err
		}
	}
	return compareScalars(op, l, r)
}

func compareScalars(op string, l, r Value) (Value, error) {
	switch op {
	case "==":
		return Equal(l, r), nil
	case "!=":
		return !Equal(l, r), nil
	}
	c, err := Compare(op, l, r)
	if err != nil {
		return nil, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, syntaxError(0, "")
}

// reflectOp swaps a comparison for a reflected operand.
func reflectOp(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	}
	return op
}

func identical(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64, string:
		return Equal(a, b)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && len(x) == 0 && len(y) == 0
	}
	if b == nil {
		return false
	}
	return a == b
}

// percentFormat supports the printf-style "%" string operator for common verbs.
func percentFormat(format string, arg Value) (Value, error) {
	var args []Value
	if t, ok := arg.(Tuple); ok {
		args = t
	} else {
		args = []Value{arg}
	}
	var b strings.Builder
	rs := []rune(format)
	n := 0
	for i := 0; i < len(rs); i++ {
		if rs[i] != '%' {
			b.WriteRune(rs[i])
			continue
		}
		j := i + 1
		for j < len(rs) && strings.ContainsRune("0123456789.-+ ,#", rs[j]) {
			j++
		}
		if j >= len(rs) {
			return nil, valueErrorf("incomplete format")
		}
		verb := rs[j]
		if verb == '%' {
			b.WriteRune('%')
			i = j
			continue
		}
		if n >= len(args) {
			return nil, typeErrorf("not enough arguments for format string")
		}
		spec := string(rs[i+1 : j])
		var s string
		var err error
		switch verb {
		case 's':
			s, err = FormatSpec(Str(args[n]), spec)
		case 'r':
			s, err = FormatSpec(Repr(args[n]), spec)
		case 'd', 'i':
			s, err = FormatSpec(args[n], spec+"d")
		case 'f', 'F', 'e', 'E', 'g', 'G':
			s, err = FormatSpec(args[n], spec+string(verb))
		default:
			return nil, valueErrorf("unsupported format character '%c'", verb)
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
		n++
		i = j
	}
	if n < len(args) {
		return nil, typeErrorf("not all arguments converted during string formatting")
	}
	return b.String(), nil
}
