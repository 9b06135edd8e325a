package ast

import (
	"fmt"
	"io"
	"strings"
)

// PosMode controls whether Printer includes source positions in its output.
type PosMode int

// List of position printing modes.
const (
	PosNone PosMode = iota
	PosLine
)

// Printer controls pretty-printing of the AST as an indented tree dump, one
// node per line.
type Printer struct {
	// Output is the io.Writer to print to.
	Output io.Writer

	// Pos indicates the position printing mode.
	Pos PosMode

	// Filename is used to resolve Pos into line:col when Pos != PosNone.
	Filename string

	// NodeFmt is the format verb+flags to use to print each node, e.g. "%v"
	// or "%#v". Defaults to "%v".
	NodeFmt string
}

// Print pretty-prints the AST node n.
func (p *Printer) Print(n Node) error {
	pp := &printer{w: p.Output, pos: p.Pos, filename: p.Filename, nodeFmt: p.NodeFmt}
	if pp.nodeFmt == "" {
		pp.nodeFmt = "%v"
	}
	Walk(pp, n)
	return pp.err
}

type printer struct {
	w        io.Writer
	pos      PosMode
	filename string
	nodeFmt  string
	depth    int
	err      error
}

func (p *printer) Visit(n Node, dir VisitDirection) Visitor {
	if dir == VisitExit || p.err != nil {
		p.depth--
		return nil
	}
	p.depth++
	p.printNode(n, p.depth-1)
	return p
}

func (p *printer) printNode(n Node, indent int) {
	if p.err != nil {
		return
	}

	format := "%s"
	args := []interface{}{strings.Repeat(". ", indent)}
	if p.pos != PosNone {
		start, end := n.Span()
		format += "[%s:%s] "
		args = append(args, start.Position(p.filename), end.Position(p.filename))
	}
	format += p.nodeFmt + "\n"
	args = append(args, n)

	_, p.err = fmt.Fprintf(p.w, format, args...)
}
