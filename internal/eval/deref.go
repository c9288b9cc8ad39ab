package eval

import (
	"rowexpr/internal/arena"
	rerr "rowexpr/internal/errors"
	"rowexpr/internal/types"
)

// computeDeref evaluates V[i] / V[i,j,...]: either a full scalarization
// (one constant-or-runtime index per axis) or a single-axis reduction
// over axis 0, which is the slowest-varying axis under the row-major
// layout this engine stores array-valued columns in.
func (w *walker) computeDeref(idx int32) error {
	n := w.a.At(idx)
	vn := w.a.At(n.Children[0])
	naxis := vn.Shape.Naxis
	nelem := vn.Shape.Nelem
	ndims := n.NChildren - 1
	strides := make([]int, naxis)
	strides[naxis-1] = 1
	for k := naxis - 2; k >= 0; k-- {
		strides[k] = strides[k+1] * vn.Shape.Naxes[k+1]
	}

	resultNelem := n.Shape.Nelem
	out := arena.NewComputedVector()
	total := w.nRows * resultNelem
	switch n.Type {
	case types.KindLong:
		out.L = make([]int64, total)
	case types.KindDouble:
		out.D = make([]float64, total)
	case types.KindBool:
		out.B = make([]bool, total)
	case types.KindString, types.KindBitStr:
		out.S = make([]string, total)
	}
	if vn.Vec.Undef != nil {
		out.Undef = make([]byte, total)
	}

	for row := 0; row < w.nRows; row++ {
		var blockOffset int
		if ndims == naxis {
			for k := 0; k < ndims; k++ {
				dim := w.a.At(n.Children[1+k])
				dv, du := longAt(dim, row, 0)
				if du {
					return rerr.New(rerr.NullIndex, "dereference index is undefined", 0, 0, 0)
				}
				if dv < 1 || int(dv) > vn.Shape.Naxes[k] {
					return rerr.Newf(rerr.IndexOutOfRange, 0, 0, 0, "index %d out of range for axis %d (size %d)", dv, k, vn.Shape.Naxes[k])
				}
				blockOffset += (int(dv) - 1) * strides[k]
			}
		} else {
			dim := w.a.At(n.Children[1])
			dv, du := longAt(dim, row, 0)
			if du {
				return rerr.New(rerr.NullIndex, "dereference index is undefined", 0, 0, 0)
			}
			if dv < 1 || int(dv) > vn.Shape.Naxes[0] {
				return rerr.Newf(rerr.IndexOutOfRange, 0, 0, 0, "index %d out of range for axis 0 (size %d)", dv, vn.Shape.Naxes[0])
			}
			blockOffset = (int(dv) - 1) * resultNelem
		}

		for e := 0; e < resultNelem; e++ {
			src := row*nelem + blockOffset + e
			dst := row*resultNelem + e
			if vn.Vec.Undef != nil && vn.Vec.Undef[src] != 0 {
				out.Undef[dst] = 1
				continue
			}
			switch n.Type {
			case types.KindLong:
				out.L[dst] = vn.Vec.L[src]
			case types.KindDouble:
				out.D[dst] = vn.Vec.D[src]
			case types.KindBool:
				out.B[dst] = vn.Vec.B[src]
			case types.KindString, types.KindBitStr:
				out.S[dst] = vn.Vec.S[src]
			}
		}
	}
	n.Vec = out
	return nil
}
