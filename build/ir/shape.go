// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import "fmt"

type (
	// Dim is the size of one axis of a vector or a matrix.
	Dim interface {
		fmt.Stringer
		dimNode()
	}

	// LitDim is a literal size.
	LitDim int

	// SymDim is a size given by a non-differentiable scalar symbol.
	// Two symbolic sizes are known to be equal only when they
	// reference the same symbol.
	SymDim struct {
		Sym *Symbol
	}

	// SumDim is the size of the concatenation of two sized values.
	SumDim struct {
		X, Y Dim
	}
)

func (LitDim) dimNode() {}
func (SymDim) dimNode() {}
func (SumDim) dimNode() {}

// String returns the size as source text.
func (d LitDim) String() string { return fmt.Sprintf("%d", int(d)) }

// String returns the name of the symbol providing the size.
func (d SymDim) String() string { return d.Sym.Name }

// String returns the sum of the two sizes as source text.
func (d SumDim) String() string { return d.X.String() + "+" + d.Y.String() }

// DimValue returns the literal value of a size if it is known
// at compile time.
func DimValue(d Dim) (int, bool) {
	switch dim := d.(type) {
	case LitDim:
		return int(dim), true
	case SumDim:
		x, xOk := DimValue(dim.X)
		y, yOk := DimValue(dim.Y)
		if xOk && yOk {
			return x + y, true
		}
	}
	return 0, false
}

// AddDims returns the size of a concatenation, folding literal sizes.
func AddDims(x, y Dim) Dim {
	xv, xOk := DimValue(x)
	yv, yOk := DimValue(y)
	if xOk && yOk {
		return LitDim(xv + yv)
	}
	return SumDim{X: x, Y: y}
}

// DimEqual reports if two sizes are known to be equal at compile time.
func DimEqual(a, b Dim) bool {
	switch da := a.(type) {
	case LitDim:
		db, ok := b.(LitDim)
		return ok && da == db
	case SymDim:
		db, ok := b.(SymDim)
		return ok && da.Sym == db.Sym
	case SumDim:
		db, ok := b.(SumDim)
		return ok && DimEqual(da.X, db.X) && DimEqual(da.Y, db.Y)
	}
	return false
}

// DimCompatible reports if two sizes may be equal at run time.
// Sizes are incompatible only when both are known at compile time
// and disagree.
func DimCompatible(a, b Dim) bool {
	av, aOk := DimValue(a)
	bv, bOk := DimValue(b)
	if aOk && bOk {
		return av == bv
	}
	return true
}

// Kind is the category of a shape.
type Kind int

const (
	// ScalarKind is a single number.
	ScalarKind Kind = iota
	// VectorKind is a column of numbers.
	VectorKind
	// MatrixKind is a rectangular array of numbers.
	MatrixKind
)

var kindNames = [...]string{
	ScalarKind: "scalar",
	VectorKind: "vector",
	MatrixKind: "matrix",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Shape describes the dimensions of an expression value.
// A vector of size n is a n by 1 column. The zero value is a scalar.
type Shape struct {
	Knd  Kind
	Rows Dim // vector length or matrix rows, nil for scalars
	Cols Dim // matrix columns, nil otherwise
}

// Scalar returns the shape of a single number.
func Scalar() Shape {
	return Shape{Knd: ScalarKind}
}

// Vector returns the shape of a column of a given size.
func Vector(n Dim) Shape {
	return Shape{Knd: VectorKind, Rows: n}
}

// Matrix returns the shape of a rows by cols array.
func Matrix(rows, cols Dim) Shape {
	return normalize(Shape{Knd: MatrixKind, Rows: rows, Cols: cols})
}

// normalize reduces degenerate matrix shapes: a 1 by 1 matrix is a
// scalar and a single column matrix is a vector.
func normalize(s Shape) Shape {
	if s.Knd != MatrixKind {
		return s
	}
	rows, rowsLit := DimValue(s.Rows)
	cols, colsLit := DimValue(s.Cols)
	if rowsLit && colsLit && rows == 1 && cols == 1 {
		return Scalar()
	}
	if colsLit && cols == 1 {
		return Vector(s.Rows)
	}
	return s
}

// Kind returns the category of the shape.
func (s Shape) Kind() Kind {
	return s.Knd
}

// IsScalar reports if the shape is a single number.
func (s Shape) IsScalar() bool {
	return s.Knd == ScalarKind
}

// String returns the shape as source text.
func (s Shape) String() string {
	switch s.Knd {
	case ScalarKind:
		return "scalar"
	case VectorKind:
		return fmt.Sprintf("vector(%s)", s.Rows)
	case MatrixKind:
		return fmt.Sprintf("matrix(%s, %s)", s.Rows, s.Cols)
	}
	return "invalid"
}

// Equal reports if two shapes are known to be equal at compile time.
func (s Shape) Equal(o Shape) bool {
	if s.Knd != o.Knd {
		return false
	}
	switch s.Knd {
	case ScalarKind:
		return true
	case VectorKind:
		return DimEqual(s.Rows, o.Rows)
	case MatrixKind:
		return DimEqual(s.Rows, o.Rows) && DimEqual(s.Cols, o.Cols)
	}
	return false
}

// Compatible reports if two shapes may be equal at run time.
func (s Shape) Compatible(o Shape) bool {
	if s.Knd != o.Knd {
		return false
	}
	switch s.Knd {
	case ScalarKind:
		return true
	case VectorKind:
		return DimCompatible(s.Rows, o.Rows)
	case MatrixKind:
		return DimCompatible(s.Rows, o.Rows) && DimCompatible(s.Cols, o.Cols)
	}
	return false
}

// matRows returns the rows of the shape viewed as a matrix,
// a vector being a single column.
func (s Shape) matRows() Dim {
	switch s.Knd {
	case VectorKind, MatrixKind:
		return s.Rows
	}
	return LitDim(1)
}

// matCols returns the columns of the shape viewed as a matrix.
func (s Shape) matCols() Dim {
	switch s.Knd {
	case VectorKind:
		return LitDim(1)
	case MatrixKind:
		return s.Cols
	}
	return LitDim(1)
}

// NumElements returns the total number of elements of the shape
// if all its sizes are known at compile time.
func (s Shape) NumElements() (int, bool) {
	switch s.Knd {
	case ScalarKind:
		return 1, true
	case VectorKind:
		return DimValue(s.Rows)
	case MatrixKind:
		rows, rowsOk := DimValue(s.Rows)
		cols, colsOk := DimValue(s.Cols)
		if rowsOk && colsOk {
			return rows * cols, true
		}
	}
	return 0, false
}

// addShape returns the shape of an elementwise sum or difference.
// A scalar operand scales to the shape of the other operand.
func addShape(x, y Shape) (Shape, bool) {
	if x.IsScalar() {
		return y, true
	}
	if y.IsScalar() {
		return x, true
	}
	if !x.Compatible(y) {
		return Shape{}, false
	}
	return x, true
}

// mulShape returns the shape of a product. A scalar operand scales
// the other operand; otherwise the operands multiply as matrices
// with a vector as a single column.
func mulShape(x, y Shape) (Shape, bool) {
	if x.IsScalar() {
		return y, true
	}
	if y.IsScalar() {
		return x, true
	}
	if !DimCompatible(x.matCols(), y.matRows()) {
		return Shape{}, false
	}
	return Matrix(x.matRows(), y.matCols()), true
}

// transposeShape returns the shape of a transposition.
func transposeShape(x Shape) Shape {
	switch x.Knd {
	case ScalarKind:
		return x
	case VectorKind:
		return Matrix(LitDim(1), x.Rows)
	}
	return Matrix(x.Cols, x.Rows)
}
