package snippet

// Expr is an expression node.
type Expr interface{ exprNode() }

// Stmt is a statement node; every statement records its source line.
type Stmt interface{ stmtLine() int }

type (
	Name  struct{ ID string }
	Const struct{ Value Value }

	// JoinedStr is an f-string: literal parts are *Const, holes are *FormattedValue.
	JoinedStr      struct{ Parts []Expr }
	FormattedValue struct {
		Value Expr
		Conv  byte
		Spec  Expr
	}

	ListExpr  struct{ Elts []Expr }
	TupleExpr struct{ Elts []Expr }
	DictExpr  struct{ Keys, Values []Expr }

	Attribute struct {
		Value Expr
		Attr  string
	}
	Subscript struct {
		Value Expr
		Index Expr
	}
	Slice struct{ Lo, Hi, Step Expr }

	Keyword struct {
		Name  string // empty for **mapping
		Value Expr
	}
	Call struct {
		Func     Expr
		Args     []Expr
		Keywords []Keyword
	}
	Starred struct{ Value Expr }

	BinOp struct {
		Op   string
		L, R Expr
	}
	UnaryOp struct {
		Op string
		X  Expr
	}
	BoolOp struct {
		Op   string
		L, R Expr
	}
	CompareExpr struct {
		L   Expr
		Ops []string
		Rs  []Expr
	}
	IfExp  struct{ Cond, Then, Else Expr }
	Lambda struct {
		Params   []string
		Defaults map[string]Expr
		Body     Expr
	}

	Comprehension struct {
		Target Expr
		Iter   Expr
		Ifs    []Expr
	}
	// ListComp covers list, set and generator comprehensions.
	ListComp struct {
		Elt  Expr
		Gens []Comprehension
	}
	DictComp struct {
		Key, Value Expr
		Gens       []Comprehension
	}
)

func (*Name) exprNode()           {}
func (*Const) exprNode()          {}
func (*JoinedStr) exprNode()      {}
func (*FormattedValue) exprNode() {}
func (*ListExpr) exprNode()       {}
func (*TupleExpr) exprNode()      {}
func (*DictExpr) exprNode()       {}
func (*Attribute) exprNode()      {}
func (*Subscript) exprNode()      {}
func (*Slice) exprNode()          {}
func (*Call) exprNode()           {}
func (*Starred) exprNode()        {}
func (*BinOp) exprNode()          {}
func (*UnaryOp) exprNode()        {}
func (*BoolOp) exprNode()         {}
func (*CompareExpr) exprNode()    {}
func (*IfExp) exprNode()          {}
func (*Lambda) exprNode()         {}
func (*ListComp) exprNode()       {}
func (*DictComp) exprNode()       {}

type pos struct{ Line int }

func (p pos) stmtLine() int { return p.Line }

type (
	ExprStmt struct {
		pos
		X Expr
	}
	Assign struct {
		pos
		Targets []Expr
		Value   Expr
	}
	AugAssign struct {
		pos
		Target Expr
		Op     string
		Value  Expr
	}
	If struct {
		pos
		Cond Expr
		Body []Stmt
		Else []Stmt
	}
	For struct {
		pos
		Target Expr
		Iter   Expr
		Body   []Stmt
		Else   []Stmt
	}
	Handler struct {
		Types Expr
		Name  string
		Body  []Stmt
	}
	Try struct {
		pos
		Body     []Stmt
		Handlers []Handler
		Else     []Stmt
		Finally  []Stmt
	}
	Raise struct {
		pos
		Exc Expr
	}
	Assert struct {
		pos
		Test, Msg Expr
	}
	Del struct {
		pos
		Targets []Expr
	}
	Pass     struct{ pos }
	Break    struct{ pos }
	Continue struct{ pos }

	ImportAlias struct{ Module, As string }
	Import      struct {
		pos
		Names []ImportAlias
	}
	ImportFrom struct {
		pos
		Module string
		Names  []ImportAlias
	}
)
