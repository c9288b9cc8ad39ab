// Package region implements the 2-D geometric predicates used by the
// CIRCLE, BOX, and ELLIPSE built-in functions: pure float64 math with no
// dependency on the expression tree, so both the constant folder and the
// vectorized evaluator can call the same kernel.
package region

import "math"

// Near reports whether x and y are within tol of each other.
func Near(x, y, tol float64) bool {
	return math.Abs(x-y) < tol
}

// InCircle reports whether (x, y) lies in the closed disc centered at
// (xc, yc) with radius r.
func InCircle(xc, yc, r, x, y float64) bool {
	dx, dy := x-xc, y-yc
	return dx*dx+dy*dy <= r*r
}

// rotate rotates (x, y) by -rotDeg degrees about the origin, the
// convention BOX and ELLIPSE use to test against an axis-aligned shape.
func rotate(x, y, rotDeg float64) (float64, float64) {
	theta := -rotDeg * math.Pi / 180.0
	sin, cos := math.Sin(theta), math.Cos(theta)
	return x*cos - y*sin, x*sin + y*cos
}

// InBox reports whether (x, y) lies in a w-by-h rectangle centered at
// (xc, yc) and rotated rotDeg degrees.
func InBox(xc, yc, w, h, rotDeg, x, y float64) bool {
	rx, ry := rotate(x-xc, y-yc, rotDeg)
	return math.Abs(rx) <= w/2 && math.Abs(ry) <= h/2
}

// InEllipse reports whether (x, y) lies in an ellipse with semi-axes a,
// b centered at (xc, yc) and rotated rotDeg degrees.
func InEllipse(xc, yc, a, b, rotDeg, x, y float64) bool {
	rx, ry := rotate(x-xc, y-yc, rotDeg)
	return (rx*rx)/(a*a)+(ry*ry)/(b*b) <= 1.0
}
