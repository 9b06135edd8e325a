package compiler

// Position is a compiled function's notion of a source location: enough to
// report a line:col in diagnostics and stack traces without keeping the
// resolver's full token.Pos (and the source text it indexes into) alive
// for the lifetime of the compiled program.
type Position struct {
	Filename  string
	Line, Col int32
}

func (p Position) String() string {
	if p.Filename == "" {
		return "-"
	}
	return p.Filename
}

// Binding names one local, free, or loaded variable slot, for diagnostics
// and disassembly; the slot index itself lives in the referencing opcode's
// operand, not here.
type Binding struct {
	Name string
	Pos  Position
}

// Defer marks a lexical region [PC0, PC1) of a Funcode's code whose
// corresponding finally (Defers) or catch (Catches) block begins at
// StartPC. try/catch/finally compiles to entries in these tables rather
// than to ordinary conditional jumps, so the interpreter can run the right
// cleanup block regardless of whether the region exited via fallthrough,
// return, throw, break or continue.
type Defer struct {
	PC0, PC1, StartPC uint32
}

// Covers reports whether pc falls inside d's protected region [PC0, PC1).
// A negative pc (the sentinel the interpreter uses for "exiting the
// function entirely") never matches.
func (d Defer) Covers(pc int64) bool {
	return pc >= 0 && pc >= int64(d.PC0) && pc < int64(d.PC1)
}

// Program is the output of compiling one source file: its constant pool,
// its name table (used by GET_GLOBAL/SET_GLOBAL/GET_PROP/&c. to avoid
// embedding strings directly in bytecode), and every function literal it
// contains, with Toplevel holding the implicit top-level function that
// runs the file's own statements.
type Program struct {
	Filename  string
	Names     []string
	Constants []any // string | float64 (NewNumber decides SmallInt vs Float at load time)
	Toplevel  *Funcode
	Functions []*Funcode
}
