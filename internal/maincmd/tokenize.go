package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/cortenjs/corten/lang/scanner"
	"github.com/cortenjs/corten/lang/token"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(ctx, stdio, args...)
}

// TokenizeFiles scans each file in turn, printing one line per token.
func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	var failed bool
	for _, file := range files {
		if err := tokenizeFile(stdio, file); err != nil {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("tokenize: one or more files had errors")
	}
	return nil
}

func tokenizeFile(stdio mainer.Stdio, file string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	var errs scanner.ErrorList
	sc := scanner.New(file, src, errs.Add)
	for {
		tok := sc.Scan()
		fmt.Fprintf(stdio.Stdout, "%s: %s", tok.Pos, tok.Kind)
		switch tok.Kind {
		case token.NUMBER:
			fmt.Fprintf(stdio.Stdout, " %g", tok.Number)
		case token.STRING, token.IDENT:
			fmt.Fprintf(stdio.Stdout, " %s", tok.Lexeme)
		}
		fmt.Fprintln(stdio.Stdout)
		if tok.Kind == token.EOF {
			break
		}
	}
	if err := errs.Err(); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return nil
}
