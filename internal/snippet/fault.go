package snippet

import "fmt"

// Fault is a runtime or syntax error raised by a snippet. Kind mirrors the
// exception class a data-analysis runtime would report (KeyError, TypeError, ...).
type Fault struct {
	Kind    string
	Message string
	Line    int
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return f.Kind
	}
	return f.Kind + ": " + f.Message
}

// Raw renders the fault the way it is shown to operators.
func (f *Fault) Raw() string {
	if f.Line > 0 {
		return fmt.Sprintf("line %d: %s", f.Line, f.Error())
	}
	return f.Error()
}

// Str is what str(e) shows inside a snippet.
func (f *Fault) Str() string { return f.Message }

// TypeName implements Object so caught exceptions can be bound with "as e".
func (f *Fault) TypeName() string { return f.Kind }

// Errorf builds a fault of the given kind.
func Errorf(kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) *Fault  { return Errorf("TypeError", format, args...) }
func valueErrorf(format string, args ...any) *Fault { return Errorf("ValueError", format, args...) }
func keyError(key Value) *Fault                     { return &Fault{Kind: "KeyError", Message: Repr(key)} }
func attrError(v Value, name string) *Fault {
	return Errorf("AttributeError", "'%s' object has no attribute '%s'", TypeName(v), name)
}

// UnexpectedKeyword is the fault raised when a helper receives a keyword it does not accept.
func UnexpectedKeyword(fn, kw string) *Fault {
	return typeErrorf("%s() got an unexpected keyword argument '%s'", fn, kw)
}

// exception kinds recognised by raise/except; Exception catches all of them.
var exceptionKinds = []string{
	"Exception", "ValueError", "TypeError", "KeyError", "IndexError", "AttributeError",
	"ZeroDivisionError", "NameError", "RuntimeError", "AssertionError", "ImportError",
	"NotImplementedError", "ArithmeticError", "LookupError", "ModuleNotFoundError",
}

func exceptionMatches(kind, handler string) bool {
	switch handler {
	case "Exception", "BaseException":
		return true
	case "ArithmeticError":
		return kind == "ZeroDivisionError" || kind == "ArithmeticError"
	case "LookupError":
		return kind == "KeyError" || kind == "IndexError" || kind == "LookupError"
	case "ImportError":
		return kind == "ImportError" || kind == "ModuleNotFoundError"
	case "ValueError":
		return kind == "ValueError" || kind == "DateParseError" || kind == "IntCastingNaNError"
	}
	return kind == handler
}

type loopSignal int

const (
	signalBreak loopSignal = iota + 1
	signalContinue
)

func (s loopSignal) Error() string {
	if s == signalBreak {
		return "'break' outside loop"
	}
	return "'continue' not properly in loop"
}
