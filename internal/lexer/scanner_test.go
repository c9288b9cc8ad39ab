package lexer

import "testing"

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func assertTypes(t *testing.T, source string, want ...TokenType) {
	t.Helper()
	got := tokenTypes(NewScanner(source).ScanTokens())
	want = append(want, TokenEOF)
	if len(got) != len(want) {
		t.Fatalf("ScanTokens(%q) = %v, want %v", source, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ScanTokens(%q)[%d] = %s, want %s (full: %v)", source, i, got[i], want[i], got)
		}
	}
}

func TestScanNumbers(t *testing.T) {
	assertTypes(t, "42", TokenLong)
	assertTypes(t, "3.14", TokenDouble)
	assertTypes(t, "1e10", TokenDouble)
	assertTypes(t, "1e-5", TokenDouble)
}

func TestScanBooleans(t *testing.T) {
	assertTypes(t, "T", TokenBoolean)
	assertTypes(t, "f", TokenBoolean)
}

func TestScanStrings(t *testing.T) {
	toks := NewScanner(`'hello'`).ScanTokens()
	if toks[0].Type != TokenString || toks[0].Lexeme != "hello" {
		t.Fatalf("got %+v, want STRING \"hello\"", toks[0])
	}
	toks2 := NewScanner(`"world"`).ScanTokens()
	if toks2[0].Type != TokenString || toks2[0].Lexeme != "world" {
		t.Fatalf("got %+v, want STRING \"world\"", toks2[0])
	}
}

func TestScanUnterminatedString(t *testing.T) {
	toks := NewScanner(`'hello`).ScanTokens()
	if toks[0].Type != "" {
		t.Fatalf("expected an error token for an unterminated string, got %+v", toks[0])
	}
}

func TestScanBitString(t *testing.T) {
	toks := NewScanner(`b'1100x'`).ScanTokens()
	if toks[0].Type != TokenBitStr || toks[0].Lexeme != "1100x" {
		t.Fatalf("got %+v, want BITSTR \"1100x\"", toks[0])
	}
}

func TestScanColumnAndRowRefs(t *testing.T) {
	assertTypes(t, "#3", TokenColRef)
	assertTypes(t, "#ROW", TokenRowRef)
	assertTypes(t, "#row", TokenRowRef)
}

func TestScanIdentifierVsFunction(t *testing.T) {
	assertTypes(t, "X", TokenIdent)
	assertTypes(t, "SIN(X)", TokenFunc, TokenLParen, TokenIdent, TokenRParen)
	assertTypes(t, "SIN (X)", TokenFunc, TokenLParen, TokenIdent, TokenRParen)
}

func TestScanKeywordsCaseInsensitive(t *testing.T) {
	assertTypes(t, "AND", TokenAnd)
	assertTypes(t, "and", TokenAnd)
	assertTypes(t, "Or", TokenOr)
}

func TestScanOperators(t *testing.T) {
	assertTypes(t, "==", TokenEqEq)
	assertTypes(t, "!=", TokenNe)
	assertTypes(t, "<=", TokenLe)
	assertTypes(t, ">=", TokenGe)
	assertTypes(t, "&&", TokenAndAnd)
	assertTypes(t, "||", TokenOrOr)
	assertTypes(t, "**", TokenPow)
	assertTypes(t, "!", TokenNot)
	assertTypes(t, "~", TokenTilde)
}

func TestScanCasts(t *testing.T) {
	assertTypes(t, "(int)X", TokenIntCast, TokenIdent)
	assertTypes(t, "(float)X", TokenFloatCast, TokenIdent)
	assertTypes(t, "(X)", TokenLParen, TokenIdent, TokenRParen)
}

func TestScanWhitespaceInsignificant(t *testing.T) {
	assertTypes(t, "  1   +   2  ", TokenLong, TokenPlus, TokenLong)
}
