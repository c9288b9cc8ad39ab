// Package functions holds the closed table of built-in row-expression
// functions: their opcode, fixed arity, a per-argument coercion rule
// the parser applies before emitting the call node, and how the call
// node's result type/shape is derived from its arguments.
package functions

import (
	"strings"

	"rowexpr/internal/arena"
	"rowexpr/internal/types"
)

// ArgRule says how the parser should handle one argument position.
type ArgRule int

const (
	ArgNumeric    ArgRule = iota // require a numeric argument; cast it to DOUBLE unless already DOUBLE
	ArgAny                       // accept the argument's own type (SUM/NELEM/ISNULL/DEFNULL)
	ArgScalarOnly                // reject a non-scalar (vector) argument at parse time
)

// Spec describes one built-in function.
type Spec struct {
	Op          arena.Op
	Arity       int
	Args        []ArgRule
	ReturnKind  types.Kind // meaningful only when InheritType is false
	InheritType bool       // true: result kind = first argument's kind
	ShapeArg    int        // index of the argument whose Shape the result carries; -1 forces a scalar result
}

// table is keyed by the upper-cased function name; lookups are
// case-insensitive.
var table = map[string]Spec{
	"SUM":     {Op: arena.FuncSum, Arity: 1, Args: []ArgRule{ArgAny}, InheritType: true, ShapeArg: -1},
	"NELEM":   {Op: arena.FuncNelem, Arity: 1, Args: []ArgRule{ArgAny}, ReturnKind: types.KindLong, ShapeArg: -1},
	"ABS":     {Op: arena.FuncAbs, Arity: 1, Args: []ArgRule{ArgAny}, InheritType: true, ShapeArg: 0},
	"SIN":     {Op: arena.FuncSin, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"COS":     {Op: arena.FuncCos, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"TAN":     {Op: arena.FuncTan, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"ARCSIN":  {Op: arena.FuncArcsin, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"ARCCOS":  {Op: arena.FuncArccos, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"ARCTAN":  {Op: arena.FuncArctan, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"ARCTAN2": {Op: arena.FuncArctan2, Arity: 2, Args: []ArgRule{ArgNumeric, ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"EXP":     {Op: arena.FuncExp, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"LOG":     {Op: arena.FuncLog, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"LOG10":   {Op: arena.FuncLog10, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"SQRT":    {Op: arena.FuncSqrt, Arity: 1, Args: []ArgRule{ArgNumeric}, ReturnKind: types.KindDouble, ShapeArg: 0},
	"RANDOM":  {Op: arena.FuncRandom, Arity: 0, ReturnKind: types.KindDouble, ShapeArg: -1},
	"ISNULL":  {Op: arena.FuncIsNull, Arity: 1, Args: []ArgRule{ArgAny}, ReturnKind: types.KindBool, ShapeArg: 0},
	"DEFNULL": {Op: arena.FuncDefnull, Arity: 2, Args: []ArgRule{ArgAny, ArgAny}, InheritType: true, ShapeArg: 0},
	"NEAR":    {Op: arena.FuncNear, Arity: 3, Args: []ArgRule{ArgScalarOnly, ArgScalarOnly, ArgScalarOnly}, ReturnKind: types.KindBool, ShapeArg: -1},
	"CIRCLE":  {Op: arena.FuncCircle, Arity: 5, Args: []ArgRule{ArgScalarOnly, ArgScalarOnly, ArgScalarOnly, ArgNumeric, ArgNumeric}, ReturnKind: types.KindBool, ShapeArg: 3},
	"BOX":     {Op: arena.FuncBox, Arity: 7, Args: []ArgRule{ArgScalarOnly, ArgScalarOnly, ArgScalarOnly, ArgScalarOnly, ArgScalarOnly, ArgNumeric, ArgNumeric}, ReturnKind: types.KindBool, ShapeArg: 5},
	"ELLIPSE": {Op: arena.FuncEllipse, Arity: 7, Args: []ArgRule{ArgScalarOnly, ArgScalarOnly, ArgScalarOnly, ArgScalarOnly, ArgScalarOnly, ArgNumeric, ArgNumeric}, ReturnKind: types.KindBool, ShapeArg: 5},
}

// Lookup resolves a function name case-insensitively. #ROW is handled
// separately by the parser (it is a token, not a call).
func Lookup(name string) (Spec, bool) {
	s, ok := table[strings.ToUpper(name)]
	return s, ok
}
