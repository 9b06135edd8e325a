package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/parser"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFiles(ctx, stdio, ast.PosLine, "", args...)
}

// ParseFiles parses each file in turn and prints its AST.
func ParseFiles(ctx context.Context, stdio mainer.Stdio, posMode ast.PosMode, nodeFmt string, files ...string) error {
	printer := ast.Printer{Output: stdio.Stdout, Pos: posMode, NodeFmt: nodeFmt}

	var failed bool
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			failed = true
			continue
		}
		prog, err := parser.ParseProgram(file, src)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			failed = true
			continue
		}
		printer.Filename = file
		if err := printer.Print(prog); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("parse: one or more files had errors")
	}
	return nil
}
