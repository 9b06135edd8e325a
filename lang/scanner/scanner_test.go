package scanner_test

import (
	"testing"
	"unicode/utf16"

	"github.com/cortenjs/corten/lang/scanner"
	"github.com/cortenjs/corten/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) ([]scanner.Token, scanner.ErrorList) {
	t.Helper()
	var errs scanner.ErrorList
	s := scanner.New("test.js", []byte(src), func(p token.Position, msg string) { errs.Add(p, msg) })
	var toks []scanner.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, errs
}

func TestScanPunctuation(t *testing.T) {
	toks, errs := scanAll(t, "(){}[];,.=>=== !== <<= >>> ??= ?.")
	assert.Empty(t, errs)
	var kinds []token.Token
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.Equal(t, []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.LBRACK,
		token.RBRACK, token.SEMI, token.COMMA, token.DOT, token.ARROW,
		token.EQEQEQ, token.NEQEQ, token.LTLT_EQ, token.GTGTGT, token.QQ_EQ,
		token.OPTDOT, token.EOF,
	}, kinds)
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	toks, errs := scanAll(t, "let x = function() {}")
	require.Empty(t, errs)
	require.Len(t, toks, 9)
	assert.Equal(t, token.LET, toks[0].Kind)
	assert.Equal(t, token.IDENT, toks[1].Kind)
	assert.Equal(t, "x", toks[1].Lexeme)
	assert.Equal(t, token.ASSIGN, toks[2].Kind)
	assert.Equal(t, token.FUNCTION, toks[3].Kind)
}

func TestScanNumbers(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"123", 123},
		{"1.5", 1.5},
		{"1e10", 1e10},
		{"0x1F", 31},
		{"0o17", 15},
		{"0b101", 5},
		{".5", 0.5},
	}
	for _, c := range cases {
		toks, errs := scanAll(t, c.src)
		require.Empty(t, errs, c.src)
		require.Equal(t, token.NUMBER, toks[0].Kind, c.src)
		assert.Equal(t, c.want, toks[0].Number, c.src)
	}
}

func TestScanStrings(t *testing.T) {
	toks, errs := scanAll(t, `"hello\nworld" 'it\'s'`)
	require.Empty(t, errs)
	require.Len(t, toks, 3)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, utf16.Encode([]rune("hello\nworld")), toks[0].Units)
	assert.Equal(t, token.STRING, toks[1].Kind)
	assert.Equal(t, utf16.Encode([]rune("it's")), toks[1].Units)
}

func TestScanUnicodeEscape(t *testing.T) {
	toks, errs := scanAll(t, `"A\u{1F600}"`)
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	want := append(append([]uint16{}, uint16('A')), []uint16{0xD83D, 0xDE00}...)
	assert.Equal(t, want, toks[0].Units)
}

func TestScanUnpairedSurrogateSurvives(t *testing.T) {
	toks, errs := scanAll(t, `"\uD800"`)
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	assert.Equal(t, []uint16{0xD800}, toks[0].Units)
}

func TestSkipsCommentsAndWhitespace(t *testing.T) {
	toks, errs := scanAll(t, "// line comment\n/* block\ncomment */ 42")
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	assert.Equal(t, token.NUMBER, toks[0].Kind)
	assert.Equal(t, float64(42), toks[0].Number)
}

func TestUnterminatedStringReportsError(t *testing.T) {
	_, errs := scanAll(t, `"no closing quote`)
	require.NotEmpty(t, errs)
}

func TestIllegalCharacterReportsError(t *testing.T) {
	_, errs := scanAll(t, "@")
	require.NotEmpty(t, errs)
}

func TestPositionsAdvanceAcrossLines(t *testing.T) {
	toks, errs := scanAll(t, "a\nb")
	require.Empty(t, errs)
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
}
