package resolver

import (
	"fmt"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/token"
)

// Scope indicates how a binding is reached from the code that references it.
type Scope uint8

const (
	Undefined Scope = iota // name could not be resolved at all
	Local                  // local to its function (or the program, for Global)
	Cell                   // function-local but captured by at least one nested function
	Free                   // a cell of some enclosing function, captured via closure
	Global                 // a var/let/const/function binding declared at the top level
	Universal              // a language or host built-in, not declared anywhere in the source
)

var scopeNames = [...]string{
	Undefined:  "undefined",
	Local:      "local",
	Cell:       "cell",
	Free:       "free",
	Global:     "global",
	Universal:  "universal",
}

func (s Scope) String() string {
	if int(s) >= len(scopeNames) {
		return fmt.Sprintf("<invalid Scope %d>", s)
	}
	return scopeNames[s]
}

// Binding ties together every identifier that denotes the same variable and
// records how the compiler should emit references to it.
type Binding struct {
	Scope Scope

	// Index records the index into the enclosing
	//   - function's Locals, if Scope == Local or Cell
	//   - function's FreeVars, if Scope == Free
	// It is meaningless when Scope is Global, Universal, or Undefined.
	Index int

	// Decl is the identifier that introduced this binding: a Declarator's
	// Name, a function's own name, a parameter, a catch parameter, or a
	// for-in/for-of loop variable.
	Decl *ast.Ident

	// Kind is the declaration keyword (VAR, LET or CONST) for variables, 0 for
	// parameters and other implicit bindings, or FUNCTION for a hoisted
	// function declaration.
	Kind token.Token

	// TDZ is true for let/const bindings between their binding's creation and
	// the point the declaration statement finishes executing: referencing
	// such a binding is a runtime error (temporal dead zone).
	TDZ bool
}

// Function records the local variable layout of a single function (or, for
// the top-level Function, of the whole program).
type Function struct {
	// Definition is the node that introduces this function: *ast.Program,
	// *ast.FuncExpr, *ast.FuncDeclStmt or *ast.ArrowFuncExpr.
	Definition ast.Node

	Locals   []*Binding // local/cell variables, parameters first
	FreeVars []*Binding // enclosing cells captured by this function, in capture order

	// Global is true only for the pseudo-function that represents the
	// program's top level: its Locals are addressed by name (GET_GLOBAL /
	// SET_GLOBAL), not by Local slot index.
	Global bool

	// IsArrow is true for arrow functions, which do not get their own `this`
	// binding: a `this` reference inside one resolves through the normal
	// free-variable capture mechanism to the nearest enclosing non-arrow
	// function (or to the program's global `this`, which is undefined).
	IsArrow bool

	// HasThis is true if a non-arrow function's `this` binding was actually
	// referenced (directly, or captured by a nested arrow function), so the
	// compiler knows whether to reserve and populate its slot.
	HasThis bool

	top *block // the function's outermost (parameter-holding) block
}
