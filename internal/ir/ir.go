// Package ir defines the tagged-tree intermediate form the bytecode
// compiler consumes. The front-end that produces it lives outside this
// module; this package gives the shape a concrete, closed node set so
// the compiler has something to walk.
package ir

// Node is any IR tree node. The node-kind set is deliberately small and
// closed — the compiler type-switches over concrete types, it never
// needs an open visitor interface.
type Node interface{ irNode() }

// Program is a sequence of top-level subroutine definitions.
type Program struct {
	Subs []*SubDef
}

// SubDef is one Perl subroutine: a name, the register count its locals
// were assigned by the front-end, and a body of statements.
type SubDef struct {
	Name     string
	NumLocal int
	Body     []Stmt
}

// Stmt is a statement-position IR node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression-position IR node, always assignable to a local.
type Expr interface {
	Node
	exprNode()
}

type base struct{}

func (base) irNode() {}

// ---- Expressions ----

// Literal is a compile-time constant (int, double, string, or bool).
type Literal struct {
	base
	Value interface{} // int64, float64, string, or bool
}

func (Literal) exprNode() {}

// LocalRef reads a fixed local-variable slot the front-end has already
// resolved to a register index.
type LocalRef struct {
	base
	Slot int
}

func (LocalRef) exprNode() {}

// Binary applies a binary operator ("+", "-", "*", "/", "%", "lt", "eq",
// "cmp", "." for concat, ...) to two subexpressions.
type Binary struct {
	base
	Op          string
	Left, Right Expr
}

func (Binary) exprNode() {}

// Unary applies a unary operator ("-", "!") to a subexpression.
type Unary struct {
	base
	Op      string
	Operand Expr
}

func (Unary) exprNode() {}

// Call invokes a statically-named subroutine with a fixed argument list.
type Call struct {
	base
	Sub  string
	Args []Expr
}

func (Call) exprNode() {}

// CallRef invokes a computed callable value (a closure/coderef held in a
// local) — compiles to CALL_REF rather than CALL.
type CallRef struct {
	base
	Target Expr
	Args   []Expr
}

func (CallRef) exprNode() {}

// GotoSub is `goto &NAME`: a tail call that reuses the current frame.
type GotoSub struct {
	base
	Sub  string
	Args []Expr
}

func (GotoSub) exprNode() {}

// ---- Statements ----

// ExprStmt evaluates an expression for its side effects, discarding the
// result.
type ExprStmt struct {
	base
	X Expr
}

func (ExprStmt) stmtNode() {}

// Assign stores the value of X into the local slot named by Slot.
type Assign struct {
	base
	Slot int
	X    Expr
}

func (Assign) stmtNode() {}

// Return returns the value of X (nil means "return nothing meaningful",
// compiled as RETURN of an undef register) from the enclosing subroutine.
type Return struct {
	base
	X Expr
}

func (Return) stmtNode() {}

// If is a conditional with an optional else branch.
type If struct {
	base
	Cond       Expr
	Then, Else []Stmt
}

func (If) stmtNode() {}

// ForLoop is a C-style numeric loop, compiled to the same
// comparison/branch/increment shape a while-loop would produce.
type ForLoop struct {
	base
	Label           string
	Init, Limit, Step Expr
	Slot            int
	Body            []Stmt
}

func (ForLoop) stmtNode() {}

// LabelledBlock wraps a body of statements with a loop label that
// last/next/redo (local or cross-frame, via control-flow markers) can
// target.
type LabelledBlock struct {
	base
	Label string
	Body  []Stmt
}

func (LabelledBlock) stmtNode() {}

// LoopControl is a local (same-frame) last/next/redo, compiled as a
// plain jump. Cross-frame loop control is represented instead by a Call
// to a subroutine whose body ends in a MarkerReturn — the IR has no
// separate cross-frame node because the marker only becomes visible at
// the call boundary, not in the issuing frame's own statement list.
type LoopControl struct {
	base
	Kind  string // "last", "next", "redo"
	Label string // "" means innermost enclosing loop
}

func (LoopControl) stmtNode() {}

// MarkerReturn returns a control-flow marker (LAST/NEXT/REDO) from the
// current subroutine, for the case where the loop being controlled
// lives in a calling frame. Kind "tailcall" is `goto &NAME` instead: it
// compiles to MARK_TAIL, which reuses the current frame for Sub and
// produces no marker value.
type MarkerReturn struct {
	base
	Kind  string // "last", "next", "redo", "tailcall"
	Label string
	Sub   string // populated when Kind == "tailcall"
	Args  []Expr // populated when Kind == "tailcall"
}

func (MarkerReturn) stmtNode() {}
