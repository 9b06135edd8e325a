package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/cortenjs/corten/lang/ast"
	"github.com/cortenjs/corten/lang/machine"
	"github.com/cortenjs/corten/lang/parser"
	"github.com/cortenjs/corten/lang/resolver"
)

func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ResolveFiles(ctx, stdio, ast.PosLine, "", args...)
}

// ResolveFiles parses and resolves each file in turn, printing its AST
// followed by the scope each identifier resolved to.
func ResolveFiles(ctx context.Context, stdio mainer.Stdio, posMode ast.PosMode, nodeFmt string, files ...string) error {
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
			continue
		}

		result, err := resolver.Resolve(file, prog, machine.IsUniverse)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			failed = true
		}
		if result != nil {
			printResolution(stdio, file, result)
		}
	}
	if failed {
		return fmt.Errorf("resolve: one or more files had errors")
	}
	return nil
}

// printResolution dumps every ident's resolved scope, then every `this`
// reference's, since the resolver itself records bindings in side-tables
// rather than on the AST nodes. Lines are printed in map iteration order;
// they are not sorted by source position.
func printResolution(stdio mainer.Stdio, file string, result *resolver.Result) {
	for ident, b := range result.Idents {
		start, _ := ident.Span()
		fmt.Fprintf(stdio.Stdout, "%s: %q resolves to %s", start.Position(file), ident.Name, b.Scope)
		if b.Scope == resolver.Local || b.Scope == resolver.Cell || b.Scope == resolver.Free {
			fmt.Fprintf(stdio.Stdout, " #%d", b.Index)
		}
		fmt.Fprintln(stdio.Stdout)
	}
	for this, b := range result.This {
		start, _ := this.Span()
		fmt.Fprintf(stdio.Stdout, "%s: this resolves to %s\n", start.Position(file), b.Scope)
	}
}
