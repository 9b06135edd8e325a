package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/cortenjs/corten/lang/compiler"
	"github.com/cortenjs/corten/lang/machine"
	"github.com/cortenjs/corten/lang/parser"
	"github.com/cortenjs/corten/lang/resolver"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFiles(ctx, stdio, args...)
}

// RunFiles compiles and runs each file in turn on its own Thread.
func RunFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	var failed bool
	for _, file := range files {
		if err := runFile(ctx, stdio, file); err != nil {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("run: one or more files had errors")
	}
	return nil
}

func runFile(ctx context.Context, stdio mainer.Stdio, file string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return printError(stdio, err)
	}
	prog, err := parser.ParseProgram(file, src)
	if err != nil {
		return printError(stdio, err)
	}
	res, err := resolver.Resolve(file, prog, machine.IsUniverse)
	if err != nil {
		return printError(stdio, err)
	}
	code := compiler.Compile(prog, res, file)

	th := machine.NewThread(file)
	th.Stdout, th.Stderr, th.Stdin = stdio.Stdout, stdio.Stderr, stdio.Stdin
	if _, err := th.RunProgram(ctx, code); err != nil {
		return printError(stdio, err)
	}
	return nil
}
