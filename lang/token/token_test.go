package token_test

import (
	"testing"

	"github.com/cortenjs/corten/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosRoundTrip(t *testing.T) {
	cases := []struct {
		line, col int
	}{
		{1, 1},
		{42, 7},
		{1000, 1000},
	}
	for _, c := range cases {
		p := token.MakePos(c.line, c.col)
		gotLine, gotCol := p.LineCol()
		assert.Equal(t, c.line, gotLine)
		assert.Equal(t, c.col, gotCol)
		assert.False(t, p.Unknown())
	}
}

func TestPosUnknown(t *testing.T) {
	var p token.Pos
	assert.True(t, p.Unknown())
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "+", token.PLUS.String())
	assert.Equal(t, "function", token.FUNCTION.String())
	assert.Equal(t, "'+'", token.PLUS.GoString())
}

func TestKeywords(t *testing.T) {
	tok, ok := token.Keywords["function"]
	require.True(t, ok)
	assert.Equal(t, token.FUNCTION, tok)

	_, ok = token.Keywords["notakeyword"]
	assert.False(t, ok)
}

func TestBinaryOp(t *testing.T) {
	assert.Equal(t, token.PLUS, token.PLUS_EQ.BinaryOp())
	assert.Equal(t, token.ILLEGAL, token.ASSIGN.BinaryOp())
}
