// Package parser implements the precedence-climbing grammar of the row
// expression language. Four static value classes flow through it —
// numeric, boolean, string, and bit-string expressions — sharing one
// recursive-descent cursor, emitting arena.Node values with type
// promotion, shape checking, and constant folding performed by the node
// constructors themselves.
//
// Every parse function returns an explicit error rather than panicking;
// a syntax error anywhere abandons the whole parse and the caller
// discards the partially built arena.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"rowexpr/internal/arena"
	rerr "rowexpr/internal/errors"
	"rowexpr/internal/functions"
	"rowexpr/internal/host"
	"rowexpr/internal/lexer"
	"rowexpr/internal/types"
)

// Parser holds the token cursor and the arena under construction.
type Parser struct {
	tokens  []lexer.Token
	current int
	catalog host.ColumnCatalog
	arena   *arena.Arena
	source  string
}

// Parse lexes and parses text against catalog, returning the root node
// index of the compiled arena, or a ParseError.
func Parse(text string, catalog host.ColumnCatalog) (*arena.Arena, int32, error) {
	toks := lexer.NewScanner(text).ScanTokens()
	p := &Parser{tokens: toks, catalog: catalog, arena: arena.New(), source: text}
	root, err := p.parseExpr()
	if err != nil {
		return nil, 0, err
	}
	if !p.check(lexer.TokenEOF) {
		return nil, 0, p.errAt("unexpected trailing input after expression")
	}
	return p.arena, root, nil
}

// --- token cursor -----------------------------------------------------

func (p *Parser) peek() lexer.Token  { return p.tokens[p.current] }
func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}
func (p *Parser) isAtEnd() bool { return p.peek().Type == lexer.TokenEOF }

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() && t != lexer.TokenEOF {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, p.errAt(fmt.Sprintf("%s (got %q)", msg, p.peek().Lexeme))
}

func (p *Parser) errAt(msg string) error {
	tok := p.peek()
	e := rerr.New(rerr.ParseSyntax, msg, tok.Offset, tok.Line, tok.Column)
	if line := p.sourceLine(tok.Line); line != "" {
		e = e.WithSource(line)
	}
	return e
}

func (p *Parser) sourceLine(n int) string {
	lines := strings.Split(p.source, "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

func (p *Parser) node(idx int32) *arena.Node { return p.arena.At(idx) }

// --- grammar, lowest to highest precedence ----------------------------

func (p *Parser) parseExpr() (int32, error) { return p.parseRange() }

// parseRange implements "expr = lo : hi" desugaring to
// (lo <= expr) AND (expr <= hi).
func (p *Parser) parseRange() (int32, error) {
	left, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	if !p.check(lexer.TokenEq) {
		return left, nil
	}
	p.advance()
	lo, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	if _, err := p.consume(lexer.TokenColon, "expected ':' in range expression"); err != nil {
		return 0, err
	}
	hi, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	loLeft, loRight, _, err := p.arena.Promote(lo, left)
	if err != nil {
		return 0, err
	}
	leftCmp, err := p.arena.NewBinOp(types.KindBool, loLeft, arena.OpLe, loRight)
	if err != nil {
		return 0, err
	}
	hiLeft, hiRight, _, err := p.arena.Promote(left, hi)
	if err != nil {
		return 0, err
	}
	rightCmp, err := p.arena.NewBinOp(types.KindBool, hiLeft, arena.OpLe, hiRight)
	if err != nil {
		return 0, err
	}
	return p.arena.NewBinOp(types.KindBool, leftCmp, arena.OpAnd, rightCmp)
}

func (p *Parser) parseOr() (int32, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.match(lexer.TokenOr, lexer.TokenOrOr) {
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		left, err = p.buildLogical(left, arena.OpOr, right)
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

func (p *Parser) parseAnd() (int32, error) {
	left, err := p.parseEquality()
	if err != nil {
		return 0, err
	}
	for p.match(lexer.TokenAnd, lexer.TokenAndAnd) {
		right, err := p.parseEquality()
		if err != nil {
			return 0, err
		}
		left, err = p.buildLogical(left, arena.OpAnd, right)
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

func (p *Parser) buildLogical(left int32, op arena.Op, right int32) (int32, error) {
	ln, rn := p.node(left), p.node(right)
	if ln.Type != types.KindBool || rn.Type != types.KindBool {
		return 0, p.errAt("AND/OR require boolean operands")
	}
	return p.arena.NewBinOp(types.KindBool, left, op, right)
}

func (p *Parser) parseEquality() (int32, error) {
	left, err := p.parseRelational()
	if err != nil {
		return 0, err
	}
	for p.check(lexer.TokenEqEq) || p.check(lexer.TokenNe) || p.check(lexer.TokenTilde) {
		opTok := p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return 0, err
		}
		if opTok.Type == lexer.TokenTilde {
			left, err = p.buildApprox(left, right)
		} else {
			op := arena.OpEq
			if opTok.Type == lexer.TokenNe {
				op = arena.OpNe
			}
			left, err = p.buildComparison(left, op, right)
		}
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

func (p *Parser) parseRelational() (int32, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return 0, err
	}
	for p.check(lexer.TokenLt) || p.check(lexer.TokenLe) || p.check(lexer.TokenGt) || p.check(lexer.TokenGe) {
		opTok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return 0, err
		}
		var op arena.Op
		switch opTok.Type {
		case lexer.TokenLt:
			op = arena.OpLt
		case lexer.TokenLe:
			op = arena.OpLe
		case lexer.TokenGt:
			op = arena.OpGt
		case lexer.TokenGe:
			op = arena.OpGe
		}
		left, err = p.buildComparison(left, op, right)
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

// buildComparison promotes numeric operands, or compares string/bit-str
// operands directly, and always yields a Bool.
func (p *Parser) buildComparison(left int32, op arena.Op, right int32) (int32, error) {
	ln, rn := p.node(left), p.node(right)
	if ln.Type == types.KindString || ln.Type == types.KindBitStr {
		if ln.Type != rn.Type {
			return 0, p.errAt("cannot compare string and bit-string operands")
		}
		return p.arena.NewBinOp(types.KindBool, left, op, right)
	}
	l, r, _, err := p.arena.Promote(left, right)
	if err != nil {
		return 0, err
	}
	return p.arena.NewBinOp(types.KindBool, l, op, r)
}

func (p *Parser) buildApprox(left, right int32) (int32, error) {
	l, r, _, err := p.promoteAtLeast(left, right, types.KindLong)
	if err != nil {
		return 0, err
	}
	return p.arena.NewBinOp(types.KindBool, l, arena.OpApprox, r)
}

// promoteAtLeast promotes two numeric operands to a common kind no lower
// than floor in the lattice. Arithmetic and '~' never operate on raw
// Bool operands; '**' always runs in Double.
func (p *Parser) promoteAtLeast(left, right int32, floor types.Kind) (int32, int32, types.Kind, error) {
	l, r, common, err := p.arena.Promote(left, right)
	if err != nil {
		return 0, 0, 0, err
	}
	if common == floor || common == types.Promote(common, floor) {
		return l, r, common, nil
	}
	op := arena.OpCastLong
	if floor == types.KindDouble {
		op = arena.OpCastDouble
	}
	l = p.arena.NewUnary(floor, op, l)
	r = p.arena.NewUnary(floor, op, r)
	return l, r, floor, nil
}

func (p *Parser) parseAdditive() (int32, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return 0, err
	}
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) || p.check(lexer.TokenPercent) {
		opTok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return 0, err
		}
		left, err = p.buildArith(left, arithOpFor(opTok.Type), right)
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

func arithOpFor(t lexer.TokenType) arena.Op {
	switch t {
	case lexer.TokenPlus:
		return arena.OpAdd
	case lexer.TokenMinus:
		return arena.OpSub
	default:
		return arena.OpMod
	}
}

func (p *Parser) buildArith(left int32, op arena.Op, right int32) (int32, error) {
	ln, rn := p.node(left), p.node(right)
	if op == arena.OpAdd && (ln.Type == types.KindString || ln.Type == types.KindBitStr) {
		if ln.Type != rn.Type {
			return 0, p.errAt("type mismatch in '+'")
		}
		concatOp := arena.OpConcat
		return p.arena.NewBinOp(ln.Type, left, concatOp, right)
	}
	l, r, common, err := p.promoteAtLeast(left, right, types.KindLong)
	if err != nil {
		return 0, err
	}
	return p.arena.NewBinOp(common, l, op, r)
}

func (p *Parser) parseMultiplicative() (int32, error) {
	left, err := p.parseBitwise()
	if err != nil {
		return 0, err
	}
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) {
		opTok := p.advance()
		right, err := p.parseBitwise()
		if err != nil {
			return 0, err
		}
		op := arena.OpMul
		if opTok.Type == lexer.TokenSlash {
			op = arena.OpDiv
		}
		l, r, common, err := p.promoteAtLeast(left, right, types.KindLong)
		if err != nil {
			return 0, err
		}
		left, err = p.arena.NewBinOp(common, l, op, r)
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

// parseBitwise handles the bit-string '&'/'|' operators, which bind
// tighter than arithmetic but looser than '**'.
func (p *Parser) parseBitwise() (int32, error) {
	left, err := p.parsePow()
	if err != nil {
		return 0, err
	}
	for p.check(lexer.TokenAmp) || p.check(lexer.TokenPipe) {
		opTok := p.advance()
		right, err := p.parsePow()
		if err != nil {
			return 0, err
		}
		ln, rn := p.node(left), p.node(right)
		if ln.Type != types.KindBitStr || rn.Type != types.KindBitStr {
			return 0, p.errAt("'&'/'|' require bit-string operands")
		}
		op := arena.OpBitAnd
		if opTok.Type == lexer.TokenPipe {
			op = arena.OpBitOr
		}
		left, err = p.arena.NewBinOp(types.KindBitStr, left, op, right)
		if err != nil {
			return 0, err
		}
	}
	return left, nil
}

// parsePow handles right-associative '**' (and its '^' spelling). Both
// operands are promoted all the way to Double: exponentiation always
// runs in the Double kernel and always yields a Double.
func (p *Parser) parsePow() (int32, error) {
	left, err := p.parseNot()
	if err != nil {
		return 0, err
	}
	if p.match(lexer.TokenPow, lexer.TokenCaret) {
		right, err := p.parsePow() // right-assoc: recurse at the same level
		if err != nil {
			return 0, err
		}
		l, r, _, err := p.promoteAtLeast(left, right, types.KindDouble)
		if err != nil {
			return 0, err
		}
		return p.arena.NewBinOp(types.KindDouble, l, arena.OpPow, r)
	}
	return left, nil
}

func (p *Parser) parseNot() (int32, error) {
	if p.match(lexer.TokenNot) {
		operand, err := p.parseCast()
		if err != nil {
			return 0, err
		}
		n := p.node(operand)
		switch n.Type {
		case types.KindBool:
			return p.arena.NewUnary(types.KindBool, arena.OpNot, operand), nil
		case types.KindBitStr:
			return p.arena.NewUnary(types.KindBitStr, arena.OpBitNot, operand), nil
		default:
			return 0, p.errAt("'!'/NOT requires a boolean or bit-string operand")
		}
	}
	return p.parseCast()
}

func (p *Parser) parseCast() (int32, error) {
	if p.check(lexer.TokenIntCast) {
		p.advance()
		operand, err := p.parseCast()
		if err != nil {
			return 0, err
		}
		if !types.Numeric(p.node(operand).Type) {
			return 0, p.errAt("(int) cast requires a numeric operand")
		}
		return p.arena.NewUnary(types.KindLong, arena.OpCastLong, operand), nil
	}
	if p.check(lexer.TokenFloatCast) {
		p.advance()
		operand, err := p.parseCast()
		if err != nil {
			return 0, err
		}
		if !types.Numeric(p.node(operand).Type) {
			return 0, p.errAt("(float) cast requires a numeric operand")
		}
		return p.arena.NewUnary(types.KindDouble, arena.OpCastDouble, operand), nil
	}
	return p.parseUnaryMinus()
}

func (p *Parser) parseUnaryMinus() (int32, error) {
	if p.match(lexer.TokenMinus) {
		operand, err := p.parseUnaryMinus()
		if err != nil {
			return 0, err
		}
		if !types.Numeric(p.node(operand).Type) {
			return 0, p.errAt("unary '-' requires a numeric operand")
		}
		if p.node(operand).Type == types.KindBool {
			operand = p.arena.NewUnary(types.KindLong, arena.OpCastLong, operand)
		}
		return p.arena.NewUnary(0, arena.OpNeg, operand), nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary and any trailing dereference subscripts.
func (p *Parser) parsePostfix() (int32, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	for p.check(lexer.TokenLBrack) {
		p.advance()
		var dims []int32
		for {
			d, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			dims = append(dims, d)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		if _, err := p.consume(lexer.TokenRBrack, "expected ']' after dereference index"); err != nil {
			return 0, err
		}
		expr, err = p.arena.NewDeref(expr, dims)
		if err != nil {
			return 0, err
		}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (int32, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenLong:
		p.advance()
		v, _ := strconv.ParseInt(tok.Lexeme, 10, 64)
		return p.arena.NewConst(types.KindLong, arena.Scalar{L: v}), nil
	case lexer.TokenDouble:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return p.arena.NewConst(types.KindDouble, arena.Scalar{D: v}), nil
	case lexer.TokenBoolean:
		p.advance()
		v := strings.EqualFold(tok.Lexeme, "t")
		return p.arena.NewConst(types.KindBool, arena.Scalar{B: v}), nil
	case lexer.TokenString:
		p.advance()
		if len(tok.Lexeme) > 255 {
			return 0, p.errAt("string literal exceeds 255 characters")
		}
		return p.arena.NewConst(types.KindString, arena.Scalar{S: tok.Lexeme}), nil
	case lexer.TokenBitStr:
		p.advance()
		if len(tok.Lexeme) > 255 {
			return 0, p.errAt("bit-string literal exceeds 255 characters")
		}
		return p.arena.NewConst(types.KindBitStr, arena.Scalar{S: tok.Lexeme}), nil
	case lexer.TokenRowRef:
		p.advance()
		return p.arena.NewFunc(types.KindLong, false, -1, arena.FuncRow)
	case lexer.TokenColRef:
		p.advance()
		n, err := strconv.Atoi(tok.Lexeme[1:])
		if err != nil {
			return 0, p.errAt("malformed column reference")
		}
		info, ok := p.catalog.ByIndex(n)
		if !ok {
			return 0, p.errAt(fmt.Sprintf("column #%d does not exist", n))
		}
		return p.arena.NewColumn(n, info.Type, info.Shape), nil
	case lexer.TokenIdent:
		p.advance()
		idx, info, ok := p.catalog.Lookup(tok.Lexeme)
		if !ok {
			return 0, p.errAt(fmt.Sprintf("unknown column %q", tok.Lexeme))
		}
		return p.arena.NewColumn(idx, info.Type, info.Shape), nil
	case lexer.TokenFunc:
		p.advance()
		return p.parseCall(tok.Lexeme)
	case lexer.TokenLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if _, err := p.consume(lexer.TokenRParen, "expected ')'"); err != nil {
			return 0, err
		}
		return expr, nil
	default:
		return 0, p.errAt(fmt.Sprintf("unexpected token %q", tok.Lexeme))
	}
}

func (p *Parser) parseCall(name string) (int32, error) {
	if _, err := p.consume(lexer.TokenLParen, "expected '(' after function name"); err != nil {
		return 0, err
	}
	spec, ok := functions.Lookup(name)
	if !ok {
		return 0, p.errAt(fmt.Sprintf("Function %s(...) not supported", name))
	}
	var args []int32
	if !p.check(lexer.TokenRParen) {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, a)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	if _, err := p.consume(lexer.TokenRParen, "expected ')' after arguments"); err != nil {
		return 0, err
	}
	if len(args) != spec.Arity {
		return 0, p.errAt(fmt.Sprintf("%s expects %d argument(s), got %d", name, spec.Arity, len(args)))
	}
	for i, rule := range spec.Args {
		n := p.node(args[i])
		switch rule {
		case functions.ArgNumeric:
			if !types.Numeric(n.Type) {
				return 0, p.errAt(fmt.Sprintf("%s argument %d must be numeric", name, i+1))
			}
			if n.Type != types.KindDouble {
				args[i] = p.arena.NewUnary(types.KindDouble, arena.OpCastDouble, args[i])
			}
		case functions.ArgScalarOnly:
			if !n.Shape.IsScalar() {
				return 0, p.errAt(fmt.Sprintf("%s argument %d must be a scalar", name, i+1))
			}
			if !types.Numeric(n.Type) {
				return 0, p.errAt(fmt.Sprintf("%s argument %d must be numeric", name, i+1))
			}
			if n.Type != types.KindDouble {
				args[i] = p.arena.NewUnary(types.KindDouble, arena.OpCastDouble, args[i])
			}
		case functions.ArgAny:
			// SUM/NELEM reject string/bit-string vectors.
			if (strings.EqualFold(name, "SUM") || strings.EqualFold(name, "NELEM")) &&
				(n.Type == types.KindString || n.Type == types.KindBitStr) {
				return 0, p.errAt(fmt.Sprintf("%s does not accept string or bit-string arguments", name))
			}
		}
	}
	if strings.EqualFold(name, "DEFNULL") {
		an, bn := p.node(args[0]), p.node(args[1])
		if types.Numeric(an.Type) && types.Numeric(bn.Type) && an.Type != bn.Type {
			a, b, _, err := p.arena.Promote(args[0], args[1])
			if err != nil {
				return 0, err
			}
			args[0], args[1] = a, b
		} else if an.Type != bn.Type {
			return 0, p.errAt("DEFNULL arguments must share a type")
		}
		if !arena.TestDims(p.node(args[0]), p.node(args[1])) {
			return 0, p.errAt("DEFNULL arguments must share a shape")
		}
		// The result follows the non-scalar operand, wherever it sits.
		if p.node(args[0]).Shape.IsScalar() && !p.node(args[1]).Shape.IsScalar() {
			spec.ShapeArg = 1
		}
	}
	return p.arena.NewFunc(spec.ReturnKind, spec.InheritType, spec.ShapeArg, spec.Op, args...)
}
