package eval

import "rowexpr/internal/arena"

// cellIndex maps a (row, elem) pair to n's flat Vec offset, broadcasting
// a shape-scalar node's single per-row value across every elem.
func cellIndex(n *arena.Node, row, elem int) int {
	if n.Shape.Nelem == 1 {
		return row
	}
	return row*n.Shape.Nelem + elem
}

func longAt(n *arena.Node, row, elem int) (int64, bool) {
	if n.IsConst() {
		return n.Scalar.L, false
	}
	idx := cellIndex(n, row, elem)
	return n.Vec.L[idx], n.Vec.Undef != nil && n.Vec.Undef[idx] != 0
}

func doubleAt(n *arena.Node, row, elem int) (float64, bool) {
	if n.IsConst() {
		return n.Scalar.D, false
	}
	idx := cellIndex(n, row, elem)
	return n.Vec.D[idx], n.Vec.Undef != nil && n.Vec.Undef[idx] != 0
}

func boolAt(n *arena.Node, row, elem int) (bool, bool) {
	if n.IsConst() {
		return n.Scalar.B, false
	}
	idx := cellIndex(n, row, elem)
	return n.Vec.B[idx], n.Vec.Undef != nil && n.Vec.Undef[idx] != 0
}

func stringAt(n *arena.Node, row, elem int) (string, bool) {
	if n.IsConst() {
		return n.Scalar.S, false
	}
	idx := cellIndex(n, row, elem)
	return n.Vec.S[idx], n.Vec.Undef != nil && n.Vec.Undef[idx] != 0
}
