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

// Package ir defines the typed intermediate representation of
// expressions. Every node carries the shape of its value. Nodes are
// built through constructors that infer the shape of the result and
// reject operands of incompatible shapes.
package ir

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/gx-org/gradgen/base/stringseq"
	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/syntax"
)

// SymbolKind is the category of a declared symbol.
type SymbolKind int

const (
	// NumberSymbol is a scalar declared with the number keyword.
	NumberSymbol SymbolKind = iota
	// IntSymbol is an integer scalar. Integers are never
	// differentiation variables.
	IntSymbol
	// VectorSymbol is a column of numbers.
	VectorSymbol
	// MatrixSymbol is a rectangular array of numbers.
	MatrixSymbol
	// ConstSymbol is a named constant folded at compile time.
	ConstSymbol
	// SubexprSymbol is a named sub-expression.
	SubexprSymbol
	// LoopSymbol is a reduction loop variable.
	LoopSymbol
)

var symbolKindNames = [...]string{
	NumberSymbol:  "number",
	IntSymbol:     "int",
	VectorSymbol:  "vector",
	MatrixSymbol:  "matrix",
	ConstSymbol:   "const",
	SubexprSymbol: "expr",
	LoopSymbol:    "loop variable",
}

// String returns the name of the symbol kind.
func (k SymbolKind) String() string {
	if k < 0 || int(k) >= len(symbolKindNames) {
		return "invalid"
	}
	return symbolKindNames[k]
}

// Symbol is a declared name: an input value, a constant, a named
// sub-expression or a reduction loop variable.
type Symbol struct {
	Name string
	Kind SymbolKind
	Shp  Shape
	// NoDiff excludes the symbol from the differentiation variables.
	NoDiff bool
	// Equivalent marks the scalar components of the symbol as
	// structurally interchangeable for derivative sharing.
	Equivalent bool
	// Index is the position of the symbol in declaration order.
	Index int
	Pos   fmterr.Pos
	// Value is the folded literal of a constant or the tree of a
	// named sub-expression.
	Value Expr
}

// Shape returns the shape of the symbol value.
func (s *Symbol) Shape() Shape {
	return s.Shp
}

// Differentiable reports if the symbol contributes differentiation
// variables: scalar numbers and vector elements not marked nodiff.
func (s *Symbol) Differentiable() bool {
	if s.NoDiff {
		return false
	}
	return s.Kind == NumberSymbol || s.Kind == VectorSymbol
}

// String returns the name of the symbol.
func (s *Symbol) String() string {
	return s.Name
}

// Func is a builtin function.
type Func int

// Builtin functions.
const (
	FuncSqrt Func = iota
	FuncLn
	FuncSin
	FuncCos
	FuncTan
	FuncCot
	FuncNorm
)

var funcNames = [...]string{
	FuncSqrt: "sqrt",
	FuncLn:   "ln",
	FuncSin:  "sin",
	FuncCos:  "cos",
	FuncTan:  "tan",
	FuncCot:  "cot",
	FuncNorm: "norm",
}

// String returns the source name of the function.
func (f Func) String() string {
	if f < 0 || int(f) >= len(funcNames) {
		return "invalid"
	}
	return funcNames[f]
}

// FuncByName returns the builtin function with a source name.
func FuncByName(name string) (Func, bool) {
	for f, fname := range funcNames {
		if fname == name {
			return Func(f), true
		}
	}
	return 0, false
}

// Expr is a node of an expression tree.
type Expr interface {
	fmt.Stringer
	// Pos returns the position of the source construct the node was
	// built from. Synthetic nodes return an invalid position.
	Pos() fmterr.Pos
	// Shape returns the shape of the node value.
	Shape() Shape
	exprNode()
}

type (
	// Number is a scalar literal.
	Number struct {
		pos fmterr.Pos
		Val *big.Float
	}

	// Ref references a declared symbol or a loop variable.
	Ref struct {
		pos fmterr.Pos
		Sym *Symbol
	}

	// Unary is a prefix operation. The only unary operator is minus.
	Unary struct {
		pos   fmterr.Pos
		shape Shape
		Op    syntax.TokenType
		X     Expr
	}

	// Binary is a binary operation.
	Binary struct {
		pos   fmterr.Pos
		shape Shape
		Op    syntax.TokenType
		X, Y  Expr
	}

	// Call applies a builtin function to an argument.
	Call struct {
		pos fmterr.Pos
		Fun Func
		Arg Expr
	}

	// Index selects an element of a vector or a row of a matrix.
	Index struct {
		pos   fmterr.Pos
		shape Shape
		X     Expr
		At    Expr
	}

	// Transpose swaps the axes of its operand.
	Transpose struct {
		pos   fmterr.Pos
		shape Shape
		X     Expr
	}

	// VectorLit builds a vector from scalar elements.
	VectorLit struct {
		pos  fmterr.Pos
		Elts []Expr
	}

	// Reduce accumulates a body over an inclusive integer range
	// bound to a loop variable.
	Reduce struct {
		pos    fmterr.Pos
		Op     syntax.TokenType // SUM or PRODUCT
		Sym    *Symbol
		Lo, Hi Expr
		Body   Expr
	}

	// Zero is a literal zero of any shape.
	Zero struct {
		shape Shape
	}

	// Unit is a vector with a single element set to one. It is
	// introduced while differentiating and usually folded away by
	// the product and indexing rules.
	Unit struct {
		shape Shape
		At    int
	}
)

func (*Number) exprNode()    {}
func (*Ref) exprNode()       {}
func (*Unary) exprNode()     {}
func (*Binary) exprNode()    {}
func (*Call) exprNode()      {}
func (*Index) exprNode()     {}
func (*Transpose) exprNode() {}
func (*VectorLit) exprNode() {}
func (*Reduce) exprNode()    {}
func (*Zero) exprNode()      {}
func (*Unit) exprNode()      {}

var (
	_ Expr = (*Number)(nil)
	_ Expr = (*Ref)(nil)
	_ Expr = (*Unary)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Index)(nil)
	_ Expr = (*Transpose)(nil)
	_ Expr = (*VectorLit)(nil)
	_ Expr = (*Reduce)(nil)
	_ Expr = (*Zero)(nil)
	_ Expr = (*Unit)(nil)
)

// NewNumber returns a scalar literal.
func NewNumber(pos fmterr.Pos, val *big.Float) *Number {
	return &Number{pos: pos, Val: val}
}

// NewFloat returns a scalar literal from a float value.
func NewFloat(pos fmterr.Pos, val float64) *Number {
	return NewNumber(pos, big.NewFloat(val))
}

// Pos returns the position of the literal.
func (e *Number) Pos() fmterr.Pos { return e.pos }

// Shape returns the scalar shape.
func (e *Number) Shape() Shape { return Scalar() }

// String returns the literal as source text.
func (e *Number) String() string { return e.Val.Text('g', -1) }

// IsInt reports if the literal holds an integer value, returning it.
func (e *Number) IsInt() (int, bool) {
	if !e.Val.IsInt() {
		return 0, false
	}
	v, _ := e.Val.Int64()
	return int(v), true
}

// NewRef returns a reference to a symbol.
func NewRef(pos fmterr.Pos, sym *Symbol) *Ref {
	return &Ref{pos: pos, Sym: sym}
}

// Pos returns the position of the reference.
func (e *Ref) Pos() fmterr.Pos { return e.pos }

// Shape returns the shape of the referenced symbol.
func (e *Ref) Shape() Shape { return e.Sym.Shp }

// String returns the name of the referenced symbol.
func (e *Ref) String() string { return e.Sym.Name }

// NewNeg returns the negation of an expression.
func NewNeg(pos fmterr.Pos, x Expr) *Unary {
	return &Unary{pos: pos, shape: x.Shape(), Op: syntax.SUB, X: x}
}

// Pos returns the position of the operator.
func (e *Unary) Pos() fmterr.Pos { return e.pos }

// Shape returns the shape of the operand.
func (e *Unary) Shape() Shape { return e.shape }

// String returns the operation as source text.
func (e *Unary) String() string { return "-" + e.X.String() }

// NewBinary returns a binary operation, inferring the shape of the
// result. Operands of incompatible shapes are rejected with a shape
// error carrying the operator and both shapes.
func NewBinary(pos fmterr.Pos, op syntax.TokenType, x, y Expr) (*Binary, error) {
	xs, ys := x.Shape(), y.Shape()
	var shape Shape
	ok := false
	switch op {
	case syntax.ADD, syntax.SUB:
		shape, ok = addShape(xs, ys)
	case syntax.MUL:
		shape, ok = mulShape(xs, ys)
	case syntax.QUO:
		if ys.IsScalar() {
			shape, ok = xs, true
		}
	case syntax.POW:
		if xs.IsScalar() && ys.IsScalar() {
			shape, ok = Scalar(), true
		}
	case syntax.DOT:
		if xs.Kind() == VectorKind && ys.Kind() == VectorKind && DimCompatible(xs.Rows, ys.Rows) {
			shape, ok = Scalar(), true
		}
	case syntax.HASH:
		if xs.Kind() == VectorKind && ys.Kind() == VectorKind {
			shape, ok = Vector(AddDims(xs.Rows, ys.Rows)), true
		}
	default:
		return nil, fmterr.Internalf(pos, "invalid binary operator %s", op)
	}
	if !ok {
		return nil, fmterr.Errorf(fmterr.ShapeError, pos, "cannot apply operator %s to %s and %s", op, xs, ys)
	}
	return &Binary{pos: pos, shape: shape, Op: op, X: x, Y: y}, nil
}

// Pos returns the position of the operation.
func (e *Binary) Pos() fmterr.Pos { return e.pos }

// Shape returns the shape of the result.
func (e *Binary) Shape() Shape { return e.shape }

// String returns the operation as source text.
func (e *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.X, e.Op, e.Y)
}

// NewCall applies a builtin function to an argument.
func NewCall(pos fmterr.Pos, fun Func, arg Expr) (*Call, error) {
	shape := arg.Shape()
	switch fun {
	case FuncNorm:
		if shape.IsScalar() {
			return nil, fmterr.Errorf(fmterr.ShapeError, pos, "cannot apply %s to a scalar", fun)
		}
	default:
		if !shape.IsScalar() {
			return nil, fmterr.Errorf(fmterr.ShapeError, pos, "cannot apply %s to %s: argument must be a scalar", fun, shape)
		}
	}
	return &Call{pos: pos, Fun: fun, Arg: arg}, nil
}

// Pos returns the position of the call.
func (e *Call) Pos() fmterr.Pos { return e.pos }

// Shape returns the scalar shape: all builtin functions return scalars.
func (e *Call) Shape() Shape { return Scalar() }

// String returns the call as source text.
func (e *Call) String() string {
	return fmt.Sprintf("%s(%s)", e.Fun, e.Arg)
}

// NewIndex selects an element of a vector or a row of a matrix.
// A literal index is checked against a literal size.
func NewIndex(pos fmterr.Pos, x, at Expr) (*Index, error) {
	if !at.Shape().IsScalar() {
		return nil, fmterr.Errorf(fmterr.ShapeError, pos, "index must be a scalar, got %s", at.Shape())
	}
	if !IsIntValued(at) {
		return nil, fmterr.Errorf(fmterr.ShapeError, pos, "index %s is not an integer", at)
	}
	xs := x.Shape()
	var shape Shape
	switch xs.Kind() {
	case VectorKind:
		shape = Scalar()
	case MatrixKind:
		shape = Vector(xs.Cols)
	default:
		return nil, fmterr.Errorf(fmterr.ShapeError, pos, "cannot index %s", xs)
	}
	if iv, ok := IntValue(at); ok {
		if iv < 0 {
			return nil, fmterr.Errorf(fmterr.ShapeError, pos, "index %d is negative", iv)
		}
		if n, ok := DimValue(xs.Rows); ok && iv >= n {
			return nil, fmterr.Errorf(fmterr.ShapeError, pos, "index %d out of range for %s", iv, xs)
		}
	}
	return &Index{pos: pos, shape: shape, X: x, At: at}, nil
}

// Pos returns the position of the indexing.
func (e *Index) Pos() fmterr.Pos { return e.pos }

// Shape returns the shape of the selected element or row.
func (e *Index) Shape() Shape { return e.shape }

// String returns the indexing as source text.
func (e *Index) String() string {
	return fmt.Sprintf("%s[%s]", e.X, e.At)
}

// NewTranspose swaps the axes of an expression.
func NewTranspose(pos fmterr.Pos, x Expr) *Transpose {
	return &Transpose{pos: pos, shape: transposeShape(x.Shape()), X: x}
}

// Pos returns the position of the transposition.
func (e *Transpose) Pos() fmterr.Pos { return e.pos }

// Shape returns the transposed shape.
func (e *Transpose) Shape() Shape { return e.shape }

// String returns the transposition as source text.
func (e *Transpose) String() string {
	return e.X.String() + "'"
}

// NewVectorLit builds a vector from scalar elements.
func NewVectorLit(pos fmterr.Pos, elts []Expr) (*VectorLit, error) {
	if len(elts) == 0 {
		return nil, fmterr.Errorf(fmterr.ShapeError, pos, "vector literal needs at least one element")
	}
	for _, elt := range elts {
		if !elt.Shape().IsScalar() {
			return nil, fmterr.Errorf(fmterr.ShapeError, elt.Pos(), "vector literal element must be a scalar, got %s", elt.Shape())
		}
	}
	return &VectorLit{pos: pos, Elts: elts}, nil
}

// Pos returns the position of the literal.
func (e *VectorLit) Pos() fmterr.Pos { return e.pos }

// Shape returns the vector shape of the literal.
func (e *VectorLit) Shape() Shape { return Vector(LitDim(len(e.Elts))) }

// String returns the literal as source text.
func (e *VectorLit) String() string {
	return "[" + stringseq.JoinStringer(slices.Values(e.Elts), ", ") + "]"
}

// NewReduce accumulates a body over an inclusive integer range.
func NewReduce(pos fmterr.Pos, op syntax.TokenType, sym *Symbol, lo, hi, body Expr) (*Reduce, error) {
	if op != syntax.SUM && op != syntax.PRODUCT {
		return nil, fmterr.Internalf(pos, "invalid reduction operator %s", op)
	}
	for _, bound := range []Expr{lo, hi} {
		if !bound.Shape().IsScalar() || !IsIntValued(bound) {
			return nil, fmterr.Errorf(fmterr.ShapeError, bound.Pos(), "reduction bound %s is not an integer", bound)
		}
	}
	if loV, ok := IntValue(lo); ok {
		if hiV, ok := IntValue(hi); ok && hiV < loV {
			return nil, fmterr.Errorf(fmterr.ShapeError, pos, "empty reduction range [%d, %d]", loV, hiV)
		}
	}
	return &Reduce{pos: pos, Op: op, Sym: sym, Lo: lo, Hi: hi, Body: body}, nil
}

// Pos returns the position of the reduction.
func (e *Reduce) Pos() fmterr.Pos { return e.pos }

// Shape returns the shape of the reduction body.
func (e *Reduce) Shape() Shape { return e.Body.Shape() }

// String returns the reduction as source text.
func (e *Reduce) String() string {
	return fmt.Sprintf("for %s in [%s, %s] %s(%s)", e.Sym.Name, e.Lo, e.Hi, e.Op, e.Body)
}

// NewZero returns a literal zero of a given shape.
func NewZero(shape Shape) *Zero {
	return &Zero{shape: shape}
}

// Pos returns an invalid position: zeros are synthetic.
func (e *Zero) Pos() fmterr.Pos { return fmterr.Pos{} }

// Shape returns the shape of the zero.
func (e *Zero) Shape() Shape { return e.shape }

// String returns the zero as source text.
func (e *Zero) String() string {
	if e.shape.IsScalar() {
		return "0"
	}
	return fmt.Sprintf("zero(%s)", e.shape)
}

// NewUnit returns a vector with element at set to one and every
// other element set to zero.
func NewUnit(shape Shape, at int) (*Unit, error) {
	if shape.Kind() != VectorKind {
		return nil, fmterr.Internal(fmt.Errorf("unit shape %s is not a vector", shape))
	}
	return &Unit{shape: shape, At: at}, nil
}

// Pos returns an invalid position: units are synthetic.
func (e *Unit) Pos() fmterr.Pos { return fmterr.Pos{} }

// Shape returns the vector shape of the unit.
func (e *Unit) Shape() Shape { return e.shape }

// String returns the unit as source text.
func (e *Unit) String() string {
	return fmt.Sprintf("unit(%s, %d)", e.shape, e.At)
}

// IsZero reports if an expression is a zero literal.
func IsZero(e Expr) bool {
	switch x := e.(type) {
	case *Zero:
		return true
	case *Number:
		return x.Val.Sign() == 0
	}
	return false
}

// IsOne reports if an expression is a scalar literal one.
func IsOne(e Expr) bool {
	x, ok := e.(*Number)
	return ok && x.Val.Cmp(big.NewFloat(1)) == 0
}

// IntValue returns the value of a literal integer expression,
// folding a prefix minus.
func IntValue(e Expr) (int, bool) {
	switch x := e.(type) {
	case *Number:
		return x.IsInt()
	case *Unary:
		if v, ok := IntValue(x.X); ok {
			return -v, true
		}
	case *Zero:
		if x.shape.IsScalar() {
			return 0, true
		}
	}
	return 0, false
}

// IsIntValued reports if an expression always evaluates to an
// integer: integer literals, integer and loop symbols, and sums,
// differences and products of those.
func IsIntValued(e Expr) bool {
	switch x := e.(type) {
	case *Number:
		_, ok := x.IsInt()
		return ok
	case *Zero:
		return x.shape.IsScalar()
	case *Ref:
		return x.Sym.Kind == IntSymbol || x.Sym.Kind == LoopSymbol
	case *Unary:
		return IsIntValued(x.X)
	case *Binary:
		switch x.Op {
		case syntax.ADD, syntax.SUB, syntax.MUL:
			return IsIntValued(x.X) && IsIntValued(x.Y)
		}
	}
	return false
}
